package embedder

import (
	"context"
	"fmt"
	"time"

	openaiEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"
)

// OpenAIConfig holds the settings for an OpenAI or Azure OpenAI embedder.
type OpenAIConfig struct {
	// BaseURL is the API base. For OpenAI: "https://api.openai.com/v1".
	// For Azure: "https://<resource>.openai.azure.com".
	BaseURL string
	// APIKey is the authentication key.
	APIKey string
	// Model is the embedding model (OpenAI) or deployment name (Azure).
	Model string
	// Dimensions requests a shortened vector; 0 keeps the model default.
	Dimensions int
	// Azure switches to Azure OpenAI auth and URL layout.
	Azure bool
	// APIVersion is the Azure OpenAI API version. Ignored unless Azure is set.
	APIVersion string
	// Timeout bounds each HTTP call. Defaults to 30s.
	Timeout time.Duration
}

// OpenAIEmbedder adapts an eino embedding.Embedder to the float32 Embedder
// interface used by the vector index.
type OpenAIEmbedder struct {
	// inner is the eino-ext OpenAI embedding component.
	inner embedding.Embedder
}

// NewOpenAIEmbedder constructs an OpenAIEmbedder from cfg.
func NewOpenAIEmbedder(ctx context.Context, cfg *OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedder: openai: api key is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	ecfg := &openaiEmbed.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: timeout,
	}
	if cfg.Dimensions > 0 {
		dims := cfg.Dimensions
		ecfg.Dimensions = &dims
	}
	if cfg.Azure {
		ecfg.ByAzure = true
		ecfg.APIVersion = cfg.APIVersion
	}

	inner, err := openaiEmbed.NewEmbedder(ctx, ecfg)
	if err != nil {
		return nil, fmt.Errorf("embedder: openai: %w", err)
	}
	return &OpenAIEmbedder{inner: inner}, nil
}

// Embed calls the embeddings endpoint and narrows the result to float32.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := e.inner.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("openai embedder: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("openai embedder: expected %d embeddings, got %d", len(texts), len(vecs))
	}
	return toFloat32(vecs), nil
}

// toFloat32 converts eino's float64 vectors into the index element type.
func toFloat32(in [][]float64) [][]float32 {
	out := make([][]float32, len(in))
	for i, v := range in {
		f := make([]float32, len(v))
		for j, x := range v {
			f[j] = float32(x)
		}
		out[i] = f
	}
	return out
}
