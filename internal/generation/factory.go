package generation

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/lexrag/internal/config"
)

// NewFromConfig builds the configured generator.
func NewFromConfig(cfg *config.Config, logger *zap.Logger) (Generator, error) {
	gc := cfg.Generation
	switch gc.Provider {
	case config.ProviderGroq, config.ProviderOpenAI:
		g, err := NewOpenAIGenerator(OpenAIConfig{
			APIKey:  cfg.GenerationAPIKey(),
			BaseURL: gc.BaseURL,
			Model:   gc.Model,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create %s generator: %w", gc.Provider, err)
		}
		return g, nil
	case config.ProviderEcho:
		return NewEchoGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown generation provider: %s", gc.Provider)
	}
}
