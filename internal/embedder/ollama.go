package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaEmbedder calls the Ollama /api/embed endpoint. Ollama returns
// unit-length vectors from this endpoint, which is what the default distance
// scale assumes. No API key is required.
type OllamaEmbedder struct {
	// host is the Ollama server base URL without a trailing slash.
	host string
	// model is the embedding model name (e.g. "all-minilm").
	model string
	// client is the shared HTTP client.
	client *http.Client
}

// OllamaConfig holds the settings for constructing an OllamaEmbedder.
type OllamaConfig struct {
	// Host is the Ollama server base URL (e.g. "http://localhost:11434").
	Host string
	// Model is the embedding model name.
	Model string
	// Timeout bounds each HTTP call. Defaults to 60s.
	Timeout time.Duration
}

// NewOllamaEmbedder constructs an OllamaEmbedder from cfg.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &OllamaEmbedder{
		host:   strings.TrimRight(cfg.Host, "/"),
		model:  cfg.Model,
		client: &http.Client{Timeout: timeout},
	}
}

// embedRequest is the /api/embed body. Truncate lets long titles through
// instead of failing the whole batch on one oversized input.
type embedRequest struct {
	Model    string   `json:"model"`
	Input    []string `json:"input"`
	Truncate bool     `json:"truncate"`
}

type embedReply struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// maxReplyBytes caps how much of an /api/embed reply is read.
const maxReplyBytes = 256 << 20

// Embed sends texts to Ollama in a single request.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: %s: %w", e.model, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: read reply: %w", err)
	}
	var reply embedReply
	jsonErr := json.Unmarshal(raw, &reply)

	switch {
	case resp.StatusCode/100 != 2 && jsonErr == nil && reply.Error != "":
		return nil, fmt.Errorf("ollama embedder: %s: %s", e.model, reply.Error)
	case resp.StatusCode/100 != 2:
		return nil, fmt.Errorf("ollama embedder: %s: HTTP %d", e.model, resp.StatusCode)
	case jsonErr != nil:
		return nil, fmt.Errorf("ollama embedder: decode reply: %w", jsonErr)
	case len(reply.Embeddings) != len(texts):
		return nil, fmt.Errorf("ollama embedder: sent %d texts, got %d vectors", len(texts), len(reply.Embeddings))
	}
	return reply.Embeddings, nil
}
