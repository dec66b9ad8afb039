// Package storage defines the persistence interface for index chunk metadata.
package storage

import (
	"context"

	"github.com/hyperjump/lexrag/internal/models"
)

// ChunkStore persists the chunk side of an index generation.
type ChunkStore interface {
	BatchCreateChunks(ctx context.Context, chunks []models.Chunk) error
	// ListChunks returns every chunk ordered by ID.
	ListChunks(ctx context.Context) ([]models.Chunk, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
