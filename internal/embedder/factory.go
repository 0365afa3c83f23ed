package embedder

import (
	"context"
	"fmt"
	"os"
	"strconv"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "all-minilm"
	defaultOpenAIModel = "text-embedding-3-small"

	// defaultOllamaDimensions is the output size of all-minilm.
	defaultOllamaDimensions = 384
	// defaultOpenAIDimensions is the output size of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
)

// Backend names accepted by EMBEDDING_PROVIDER.
const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
	BackendAzure  = "azure"
	BackendNone   = "none"
)

// Config is the resolved embedding configuration.
type Config struct {
	// Backend is one of ollama, openai, azure, none.
	Backend string
	// Model is the embedding model or Azure deployment name.
	Model string
	// Endpoint is the API base URL (Ollama host, OpenAI base, or Azure resource).
	Endpoint string
	// APIKey authenticates against OpenAI or Azure.
	APIKey string
	// APIVersion is the Azure OpenAI API version.
	APIVersion string
	// Dimensions is the expected vector length.
	Dimensions int
}

// Namespace identifies the vector space produced by this configuration.
// Used to key caches and to name vector collections.
func (c *Config) Namespace() string {
	return c.Backend + ":" + c.Model
}

// ConfigFromEnv resolves the embedding configuration, inheriting from the chat
// provider settings where embedding-specific overrides are not set.
//
// Environment variables:
//
//	EMBEDDING_PROVIDER    ollama | openai | azure | none (default: MODEL_PROVIDER, then ollama)
//	EMBEDDING_MODEL       model name (ollama: all-minilm, openai/azure: text-embedding-3-small)
//	EMBEDDING_ENDPOINT    overrides OLLAMA_HOST / the OpenAI base / AZURE_OPENAI_ENDPOINT
//	EMBEDDING_API_KEY     overrides OPENAI_API_KEY / AZURE_OPENAI_API_KEY
//	EMBEDDING_DIMENSIONS  overrides the per-backend default vector size
func ConfigFromEnv() *Config {
	backend := os.Getenv("EMBEDDING_PROVIDER")
	if backend == "" {
		backend = getEnvOrDefault("MODEL_PROVIDER", BackendOllama)
	}

	cfg := &Config{Backend: backend}
	switch backend {
	case BackendOllama:
		cfg.Endpoint = firstNonEmpty(os.Getenv("EMBEDDING_ENDPOINT"), getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434"))
		cfg.Model = getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel)
		cfg.Dimensions = getEnvInt("EMBEDDING_DIMENSIONS", defaultOllamaDimensions)
	case BackendOpenAI:
		cfg.Endpoint = firstNonEmpty(os.Getenv("EMBEDDING_ENDPOINT"), "https://api.openai.com/v1")
		cfg.APIKey = firstNonEmpty(os.Getenv("EMBEDDING_API_KEY"), os.Getenv("OPENAI_API_KEY"))
		cfg.Model = getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel)
		cfg.Dimensions = getEnvInt("EMBEDDING_DIMENSIONS", defaultOpenAIDimensions)
	case BackendAzure:
		cfg.Endpoint = firstNonEmpty(os.Getenv("EMBEDDING_ENDPOINT"), os.Getenv("AZURE_OPENAI_ENDPOINT"))
		cfg.APIKey = firstNonEmpty(os.Getenv("EMBEDDING_API_KEY"), os.Getenv("AZURE_OPENAI_API_KEY"))
		cfg.APIVersion = getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2024-02-01")
		cfg.Model = getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel)
		cfg.Dimensions = getEnvInt("EMBEDDING_DIMENSIONS", defaultOpenAIDimensions)
	}
	return cfg
}

// New constructs the Embedder described by cfg. It returns ErrDisabled when
// the backend is "none".
func New(ctx context.Context, cfg *Config) (Embedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendOllama:
		return NewOllamaEmbedder(&OllamaConfig{Host: cfg.Endpoint, Model: cfg.Model}), nil
	case BackendOpenAI, BackendAzure:
		e, err := NewOpenAIEmbedder(ctx, &OpenAIConfig{
			BaseURL:    cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Azure:      cfg.Backend == BackendAzure,
			APIVersion: cfg.APIVersion,
		})
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, ErrDisabled
	}
}

// NewFromEnv is New(ctx, ConfigFromEnv()).
func NewFromEnv(ctx context.Context) (Embedder, *Config, error) {
	cfg := ConfigFromEnv()
	e, err := New(ctx, cfg)
	return e, cfg, err
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// errMissing builds the error for an unset required variable.
func errMissing(backend, vars string) error {
	return fmt.Errorf("embedder: %s requires %s", backend, vars)
}
