package embedding

import (
	"fmt"

	"github.com/hyperjump/lexrag/internal/config"
)

// NewFromConfig builds the configured embedder, wrapped in a query cache when cache_size > 0.
func NewFromConfig(cfg *config.Config) (Embedder, error) {
	ec := cfg.Embedding
	var (
		e   Embedder
		err error
	)
	switch ec.Provider {
	case config.EmbeddingHashing, "":
		e, err = NewHashingEmbedder(ec.Dimensions)
	case config.EmbeddingOpenAI:
		e, err = NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     cfg.EmbeddingAPIKey(),
			BaseURL:    ec.BaseURL,
			Model:      ec.Model,
			Dimensions: ec.Dimensions,
		})
	case config.EmbeddingONNX:
		e, err = NewONNXEmbedder(ec.ModelPath, ec.Dimensions, ec.MaxTokens)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", ec.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s embedder: %w", ec.Provider, err)
	}
	if ec.CacheSize > 0 {
		return NewCachedEmbedder(e, ec.CacheSize), nil
	}
	return e, nil
}
