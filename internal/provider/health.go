package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HealthCheckConfig probes a backend without spending tokens.
type HealthCheckConfig interface {
	// HealthCheck returns nil when the backend answers its listing endpoint.
	HealthCheck(ctx context.Context) error
}

// httpHealthCheck issues a GET against a cheap listing endpoint.
type httpHealthCheck struct {
	// url is the endpoint to probe.
	url string
	// header holds auth headers sent with the probe.
	header http.Header
	// client performs the request.
	client *http.Client
}

// NewHealthCheck returns a token-free probe for the configured backend, or
// nil when the backend has no suitable endpoint (bedrock, gemini).
func NewHealthCheck(cfg *Config) HealthCheckConfig {
	client := &http.Client{Timeout: 5 * time.Second}
	switch cfg.Backend {
	case BackendOllama:
		return &httpHealthCheck{
			url:    strings.TrimRight(cfg.Ollama.Host, "/") + "/api/tags",
			client: client,
		}
	case BackendOpenAI:
		h := http.Header{}
		h.Set("Authorization", "Bearer "+cfg.OpenAI.APIKey)
		return &httpHealthCheck{url: "https://api.openai.com/v1/models", header: h, client: client}
	case BackendAzure:
		h := http.Header{}
		h.Set("api-key", cfg.AzureOpenAI.APIKey)
		return &httpHealthCheck{
			url:    strings.TrimRight(cfg.AzureOpenAI.Endpoint, "/") + "/openai/models?api-version=" + cfg.AzureOpenAI.APIVersion,
			header: h,
			client: client,
		}
	}
	return nil
}

// HealthCheck performs the probe.
func (h *httpHealthCheck) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("provider: health request: %w", err)
	}
	for k, v := range h.header {
		req.Header[k] = v
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider: health probe: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider: health probe: status %d", resp.StatusCode)
	}
	return nil
}
