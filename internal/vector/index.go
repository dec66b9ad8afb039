// Package vector provides the nearest-neighbour search structures behind a chunk index.
package vector

import "context"

// VectorIndex stores fixed-dimension vectors in insertion order and searches them by inner product.
// The ID of a vector is its insertion position, which is also the position of its chunk.
type VectorIndex interface {
	Add(ctx context.Context, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// VectorResult is a single search hit.
type VectorResult struct {
	ID    int
	Score float64 // inner product; cosine similarity for normalized vectors
}
