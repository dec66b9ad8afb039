// Package embedding turns chunk and question text into fixed-dimension, L2-normalized vectors.
package embedding

import (
	"context"
	"errors"
)

// Embedder produces vector embeddings for text.
// Identity names the model and dimension; an index can only be queried by an embedder with the
// identity it was built with.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Identity() string
	Close() error
}

// ErrEmptyResponse is returned when a remote provider answers without vectors.
var ErrEmptyResponse = errors.New("empty embedding response")

// embedEach calls embed for each text in order.
func embedEach(ctx context.Context, texts []string, embed func(context.Context, string) ([]float32, error)) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
