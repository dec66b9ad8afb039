// Package retrieval finds the chunks most similar to a question.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/lexrag/internal/embedding"
	"github.com/hyperjump/lexrag/internal/index"
	"github.com/hyperjump/lexrag/internal/metrics"
	"github.com/hyperjump/lexrag/internal/models"
)

var (
	// ErrIndexNotLoaded is returned when the index source has no index yet.
	ErrIndexNotLoaded = errors.New("index not loaded")
	// ErrInvalidK is returned for k <= 0.
	ErrInvalidK = errors.New("k must be positive")
)

// IndexSource yields the index to search. *index.Holder implements it.
type IndexSource interface {
	Current() *index.Index
}

// StaticSource serves a single fixed index.
type StaticSource struct{ Index *index.Index }

// Current returns s.Index.
func (s StaticSource) Current() *index.Index { return s.Index }

// Retriever embeds a question and searches the current index.
type Retriever struct {
	source   IndexSource
	embedder embedding.Embedder
}

// New creates a retriever. emb must be the embedder the index was built with.
func New(source IndexSource, emb embedding.Embedder) *Retriever {
	return &Retriever{source: source, embedder: emb}
}

// Retrieve returns the min(k, n) chunks most similar to query, best first.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) (models.RetrievalResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidK, k)
	}
	idx := r.source.Current()
	if idx == nil {
		return nil, ErrIndexNotLoaded
	}
	if want, got := idx.Embedder().Identity, r.embedder.Identity(); want != got {
		return nil, fmt.Errorf("%w: index built with %q, query embedder is %q", index.ErrEmbedderMismatch, want, got)
	}

	start := time.Now()
	defer func() { metrics.RetrievalDuration.Observe(time.Since(start).Seconds()) }()

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	scored, err := idx.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return models.RetrievalResult(scored), nil
}
