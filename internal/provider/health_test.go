package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewHealthCheck_Ollama(t *testing.T) {
	t.Parallel()

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	hc := NewHealthCheck(&Config{Backend: BackendOllama, Ollama: ProviderOllama{Host: srv.URL + "/"}})
	if err := hc.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if gotPath != "/api/tags" {
		t.Errorf("path: got %q", gotPath)
	}
}

func TestNewHealthCheck_AzureSendsKey(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "k" || r.URL.Query().Get("api-version") != "2024-02-01" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	hc := NewHealthCheck(&Config{Backend: BackendAzure, AzureOpenAI: ProviderAzureOpenAI{
		APIKey: "k", Endpoint: srv.URL, APIVersion: "2024-02-01",
	}})
	if err := hc.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}

func TestNewHealthCheck_Non200(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	hc := NewHealthCheck(&Config{Backend: BackendOllama, Ollama: ProviderOllama{Host: srv.URL}})
	if err := hc.HealthCheck(context.Background()); err == nil {
		t.Error("expected error for 502")
	}
}

func TestNewHealthCheck_Unsupported(t *testing.T) {
	t.Parallel()
	for _, b := range []Backend{BackendBedrock, BackendGemini} {
		if hc := NewHealthCheck(&Config{Backend: b}); hc != nil {
			t.Errorf("%s: expected nil health check", b)
		}
	}
}
