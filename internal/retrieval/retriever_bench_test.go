package retrieval

import (
	"context"
	"fmt"
	"testing"

	"github.com/hyperjump/lexrag/internal/embedding"
	"github.com/hyperjump/lexrag/internal/index"
	"github.com/hyperjump/lexrag/internal/models"
)

func BenchmarkRetrieve(b *testing.B) {
	emb, err := embedding.NewHashingEmbedder(1024)
	if err != nil {
		b.Fatal(err)
	}
	chunks := make([]models.Chunk, 1000)
	for i := range chunks {
		chunks[i] = models.Chunk{
			Text:        fmt.Sprintf("Clause %d. The user may terminate the agreement after %d days written notice.", i, i%90),
			SourceLabel: "bench",
		}
	}
	ctx := context.Background()
	idx, err := index.Build(ctx, chunks, emb, index.BuildOptions{})
	if err != nil {
		b.Fatal(err)
	}
	r := New(StaticSource{Index: idx}, emb)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = r.Retrieve(ctx, "how can a user terminate their contract?", 3)
	}
}
