package config

// Provider names.
const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderEcho   = "echo"

	EmbeddingHashing = "hashing"
	EmbeddingOpenAI  = "openai"
	EmbeddingONNX    = "onnx"
)

// Defaults for the answer pipeline.
const (
	DefaultChunkSize     = 300
	DefaultTopK          = 3
	DefaultMaxTokens     = 1000
	DefaultTemperature   = float32(0.7)
	DefaultPreviewLength = 200
	DefaultGroqBaseURL   = "https://api.groq.com/openai/v1"
	DefaultGroqModel     = "llama3-8b-8192"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Index.Location == "" {
		cfg.Index.Location = "/usr/local/var/lexrag/index"
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "memory"
	}
	if cfg.Index.ChunkSize == 0 {
		cfg.Index.ChunkSize = DefaultChunkSize
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = EmbeddingHashing
	}
	if cfg.Embedding.Dimensions == 0 {
		switch cfg.Embedding.Provider {
		case EmbeddingONNX:
			cfg.Embedding.Dimensions = 384
		case EmbeddingOpenAI:
			cfg.Embedding.Dimensions = 1536
		default:
			cfg.Embedding.Dimensions = 1024
		}
	}
	if cfg.Embedding.Provider == EmbeddingOpenAI {
		if cfg.Embedding.Model == "" {
			cfg.Embedding.Model = "text-embedding-3-small"
		}
		if cfg.Embedding.APIKeyEnv == "" {
			cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
		}
	}
	if cfg.Embedding.Provider == EmbeddingONNX && cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/lexrag/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}

	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = ProviderGroq
	}
	switch cfg.Generation.Provider {
	case ProviderGroq:
		if cfg.Generation.BaseURL == "" {
			cfg.Generation.BaseURL = DefaultGroqBaseURL
		}
		if cfg.Generation.Model == "" {
			cfg.Generation.Model = DefaultGroqModel
		}
		if cfg.Generation.APIKeyEnv == "" {
			cfg.Generation.APIKeyEnv = "GROQ_API_KEY"
		}
	case ProviderOpenAI:
		if cfg.Generation.Model == "" {
			cfg.Generation.Model = "gpt-4o-mini"
		}
		if cfg.Generation.APIKeyEnv == "" {
			cfg.Generation.APIKeyEnv = "OPENAI_API_KEY"
		}
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = DefaultMaxTokens
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = DefaultTopK
	}
	if cfg.Retrieval.PreviewLength == 0 {
		cfg.Retrieval.PreviewLength = DefaultPreviewLength
	}
}

// Default returns a config with every default applied. Used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
