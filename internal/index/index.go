// Package index builds, persists, and loads the chunk index: chunks in order, one
// embedding per chunk, and a vector search structure over the embeddings.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hyperjump/lexrag/internal/embedding"
	"github.com/hyperjump/lexrag/internal/models"
	"github.com/hyperjump/lexrag/internal/vector"
)

var (
	// ErrIndexUnavailable is returned when no usable index exists at a location.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrSchemaMismatch is returned when the persisted index does not match SchemaVersion
	// or its parts disagree in shape. It matches ErrIndexUnavailable.
	ErrSchemaMismatch = fmt.Errorf("%w: schema mismatch", ErrIndexUnavailable)
	// ErrEmbedderMismatch is returned when the index was built by a different embedder.
	// It matches ErrIndexUnavailable.
	ErrEmbedderMismatch = fmt.Errorf("%w: embedder mismatch", ErrIndexUnavailable)
	// ErrNoChunks is returned by Build when there is nothing to index.
	ErrNoChunks = errors.New("no chunks to index")
)

// BuildOptions configures Build.
type BuildOptions struct {
	IndexType string // "memory" or "faiss"
	ChunkSize int    // recorded in the manifest
}

// Index is an immutable, ordered set of chunks with their embeddings.
// It is safe for concurrent use once built or loaded.
type Index struct {
	manifest Manifest
	chunks   []models.Chunk
	vectors  *vector.MemoryIndex // raw vectors, persisted as vectors.bin
	search   vector.VectorIndex  // same as vectors for the memory type
}

// Build embeds every chunk in order and builds the search structure. Chunk IDs are
// reassigned to their position so IDs are unique across source documents.
func Build(ctx context.Context, chunks []models.Chunk, emb embedding.Embedder, opts BuildOptions) (*Index, error) {
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}
	indexType := opts.IndexType
	if indexType == "" {
		indexType = string(vector.IndexTypeMemory)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	embeddings, err := emb.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(chunks))
	}
	dim := emb.Dimensions()
	for i, v := range embeddings {
		if len(v) != dim {
			return nil, fmt.Errorf("chunk %d: embedding dimension %d, expected %d", i, len(v), dim)
		}
	}

	raw, err := vector.NewMemoryIndex(dim)
	if err != nil {
		return nil, err
	}
	if err := raw.Add(ctx, embeddings); err != nil {
		return nil, fmt.Errorf("failed to index vectors: %w", err)
	}
	search, err := newSearchStructure(ctx, indexType, raw, embeddings)
	if err != nil {
		return nil, err
	}

	owned := make([]models.Chunk, len(chunks))
	copy(owned, chunks)
	for i := range owned {
		owned[i].ID = i
	}

	return &Index{
		manifest: Manifest{
			SchemaVersion: SchemaVersion,
			Embedder:      EmbedderInfo{Identity: emb.Identity(), Dimensions: dim},
			IndexType:     indexType,
			ChunkCount:    len(owned),
			ChunkSize:     opts.ChunkSize,
			SourceLabels:  sourceLabels(owned),
			CreatedAt:     time.Now().UTC(),
		},
		chunks:  owned,
		vectors: raw,
		search:  search,
	}, nil
}

func newSearchStructure(ctx context.Context, indexType string, raw *vector.MemoryIndex, embeddings [][]float32) (vector.VectorIndex, error) {
	if vector.IndexType(indexType) == vector.IndexTypeMemory {
		return raw, nil
	}
	vi, err := vector.NewVectorIndex(indexType, raw.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("create %s index: %w", indexType, err)
	}
	if err := vi.Add(ctx, embeddings); err != nil {
		_ = vi.Close()
		return nil, fmt.Errorf("failed to index vectors: %w", err)
	}
	return vi, nil
}

func sourceLabels(chunks []models.Chunk) []string {
	seen := make(map[string]struct{})
	var labels []string
	for _, ch := range chunks {
		if _, ok := seen[ch.SourceLabel]; ok || ch.SourceLabel == "" {
			continue
		}
		seen[ch.SourceLabel] = struct{}{}
		labels = append(labels, ch.SourceLabel)
	}
	sort.Strings(labels)
	return labels
}

// Search returns the k chunks most similar to query, best first. Equal scores keep chunk order.
func (idx *Index) Search(ctx context.Context, query []float32, k int) ([]models.ScoredChunk, error) {
	hits, err := idx.search.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	out := make([]models.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		if h.ID < 0 || h.ID >= len(idx.chunks) {
			return nil, fmt.Errorf("search returned unknown chunk %d", h.ID)
		}
		out = append(out, models.ScoredChunk{Chunk: idx.chunks[h.ID], Score: h.Score})
	}
	return out, nil
}

// Len returns the number of chunks.
func (idx *Index) Len() int { return len(idx.chunks) }

// Manifest returns a copy of the index manifest.
func (idx *Index) Manifest() Manifest {
	m := idx.manifest
	m.SourceLabels = append([]string(nil), idx.manifest.SourceLabels...)
	return m
}

// Embedder returns the embedding function the index was built with.
func (idx *Index) Embedder() EmbedderInfo { return idx.manifest.Embedder }

// Chunks returns a copy of the chunks in index order.
func (idx *Index) Chunks() []models.Chunk {
	out := make([]models.Chunk, len(idx.chunks))
	copy(out, idx.chunks)
	return out
}

// Close releases the search structure.
func (idx *Index) Close() error {
	if idx.search != idx.vectors {
		if err := idx.search.Close(); err != nil {
			return err
		}
	}
	return idx.vectors.Close()
}
