// Package config provides configuration loading and structs for lexrag.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingCredential is returned by Validate when a configured provider needs an API key
// and the named environment variable is empty.
var ErrMissingCredential = errors.New("missing credential")

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	LogLevel   string           `yaml:"log_level"`
	Server     ServerConfig     `yaml:"server"`
	Index      IndexConfig      `yaml:"index"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// IndexConfig holds where the persisted index lives and how it is built.
type IndexConfig struct {
	Location  string `yaml:"location"`
	Type      string `yaml:"type"`       // memory or faiss
	ChunkSize int    `yaml:"chunk_size"` // maximum words per chunk
}

// EmbeddingConfig selects and configures the embedder.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // hashing, openai or onnx
	Dimensions int    `yaml:"dimensions"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	CacheSize  int    `yaml:"cache_size"`
	ModelPath  string `yaml:"model_path"`
	MaxTokens  int    `yaml:"max_tokens"`
}

// GenerationConfig configures the chat completion endpoint.
type GenerationConfig struct {
	Provider    string   `yaml:"provider"` // groq, openai or echo
	Model       string   `yaml:"model"`
	BaseURL     string   `yaml:"base_url"`
	APIKeyEnv   string   `yaml:"api_key_env"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float32 `yaml:"temperature"`
}

// TemperatureOrDefault returns the configured temperature; defaults to 0.7 when unset.
func (g *GenerationConfig) TemperatureOrDefault() float32 {
	if g.Temperature != nil {
		return *g.Temperature
	}
	return DefaultTemperature
}

// RetrievalConfig holds query-time retrieval settings.
type RetrievalConfig struct {
	TopK          int `yaml:"top_k"`
	PreviewLength int `yaml:"preview_length"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Index.Location = expandPath(cfg.Index.Location, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// LoadDotEnv loads KEY=value pairs from the given .env files (default ./.env) into the
// process environment. Variables already set are not overridden; missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// GenerationAPIKey returns the generation API key from the environment.
func (c *Config) GenerationAPIKey() string {
	return strings.TrimSpace(os.Getenv(c.Generation.APIKeyEnv))
}

// EmbeddingAPIKey returns the embedding API key from the environment.
func (c *Config) EmbeddingAPIKey() string {
	return strings.TrimSpace(os.Getenv(c.Embedding.APIKeyEnv))
}

// Validate checks settings that ApplyDefaults cannot repair.
// Missing API keys for remote providers return an error wrapping ErrMissingCredential.
func (c *Config) Validate() error {
	if err := c.ValidateIndexing(); err != nil {
		return err
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Generation.MaxTokens <= 0 {
		return fmt.Errorf("generation.max_tokens must be positive, got %d", c.Generation.MaxTokens)
	}
	if t := c.Generation.TemperatureOrDefault(); t < 0 || t > 2 {
		return fmt.Errorf("generation.temperature must be within [0, 2], got %g", t)
	}
	switch c.Generation.Provider {
	case ProviderGroq, ProviderOpenAI:
		if c.GenerationAPIKey() == "" {
			return fmt.Errorf("generation provider %s needs %s: %w", c.Generation.Provider, c.Generation.APIKeyEnv, ErrMissingCredential)
		}
	case ProviderEcho:
	default:
		return fmt.Errorf("generation.provider %q: must be groq, openai or echo", c.Generation.Provider)
	}
	return nil
}

// ValidateIndexing checks only the settings needed to build an index: index and embedding.
func (c *Config) ValidateIndexing() error {
	switch c.Index.Type {
	case "memory", "faiss":
	default:
		return fmt.Errorf("index.type %q: must be memory or faiss", c.Index.Type)
	}
	if c.Index.ChunkSize <= 0 {
		return fmt.Errorf("index.chunk_size must be positive, got %d", c.Index.ChunkSize)
	}
	switch c.Embedding.Provider {
	case EmbeddingHashing, EmbeddingONNX:
	case EmbeddingOpenAI:
		if c.EmbeddingAPIKey() == "" {
			return fmt.Errorf("embedding provider openai needs %s: %w", c.Embedding.APIKeyEnv, ErrMissingCredential)
		}
	default:
		return fmt.Errorf("embedding.provider %q: must be hashing, openai or onnx", c.Embedding.Provider)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
