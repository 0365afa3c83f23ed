//go:build integration

package embedder

import (
	"context"
	"math"
	"os"
	"testing"
	"time"
)

// TestOllamaEmbedder_Integration embeds three record titles against a live
// Ollama and checks that related titles land closer together than unrelated
// ones. Requires `ollama pull all-minilm`; OLLAMA_HOST and EMBEDDING_MODEL
// override the defaults.
//
//	go test -tags=integration -run TestOllamaEmbedder_Integration ./internal/embedder/
func TestOllamaEmbedder_Integration(t *testing.T) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}
	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = "all-minilm"
	}
	emb := NewOllamaEmbedder(&OllamaConfig{Host: host, Model: model})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	vecs, err := emb.Embed(ctx, []string{
		"Smart battery management system for electric vehicles",
		"Battery cell cooling plate for an electric car",
		"Hinged lid for a beverage container",
	})
	if err != nil {
		t.Fatalf("Embed: %v (is %q pulled?)", err, model)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}

	// The flat index's default distance scale assumes unit vectors.
	for i, v := range vecs {
		if n := dot(v, v); math.Abs(n-1) > 0.02 {
			t.Errorf("vector %d: squared norm %.3f, want ~1", i, n)
		}
	}

	related, unrelated := dot(vecs[0], vecs[1]), dot(vecs[0], vecs[2])
	if related <= unrelated {
		t.Errorf("battery titles should be closer (%.3f) than battery vs lid (%.3f)", related, unrelated)
	}
	t.Logf("model=%s dim=%d related=%.3f unrelated=%.3f", model, len(vecs[0]), related, unrelated)
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range min(len(a), len(b)) {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
