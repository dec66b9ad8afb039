package index

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/hyperjump/lexrag/internal/metrics"
)

// Holder publishes the current index to concurrent readers and swaps it on reload.
// Readers that already hold an *Index keep using it after a swap.
type Holder struct {
	location string
	identity string
	logger   *zap.Logger

	current  atomic.Pointer[Index]
	reloadMu sync.Mutex
}

// NewHolder creates an empty holder for the index at location. identity is the
// embedder identity every loaded index must match.
func NewHolder(location, identity string, logger *zap.Logger) *Holder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Holder{location: location, identity: identity, logger: logger}
}

// Current returns the loaded index, or nil before the first successful load.
func (h *Holder) Current() *Index {
	return h.current.Load()
}

// Swap installs idx and returns the previous index.
func (h *Holder) Swap(idx *Index) *Index {
	prev := h.current.Swap(idx)
	if idx != nil {
		metrics.IndexChunks.Set(float64(idx.Len()))
	}
	return prev
}

// Reload loads the current generation and installs it. On error the previous
// index stays in place.
func (h *Holder) Reload() (*Index, error) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	idx, err := Load(h.location, h.identity)
	if err != nil {
		metrics.IndexReloadsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	// The previous index is not closed: in-flight queries may still be searching it.
	h.Swap(idx)
	metrics.IndexReloadsTotal.WithLabelValues("success").Inc()
	m := idx.Manifest()
	h.logger.Info("index loaded",
		zap.String("location", h.location),
		zap.Int("chunks", idx.Len()),
		zap.String("embedder", m.Embedder.Identity),
		zap.String("index_type", m.IndexType),
		zap.Time("created_at", m.CreatedAt))
	return idx, nil
}

// Location returns the index location the holder loads from.
func (h *Holder) Location() string { return h.location }
