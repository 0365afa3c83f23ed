// Package embedder converts record titles and queries into dense vectors.
// Backends: Ollama (plain HTTP against /api/embed) and OpenAI / Azure OpenAI
// (via the eino-ext embedding component). Any backend can be wrapped in a
// Redis-backed cache with [NewCached].
package embedder

import (
	"context"
	"errors"
)

// ErrDisabled is returned by NewFromEnv when EMBEDDING_PROVIDER=none. The
// vector search capability is then absent and retrieval runs lexically.
var ErrDisabled = errors.New("embedder: embedding disabled")

// Embedder converts a batch of texts into embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed returns one vector per input text, parallel to texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Func adapts an ordinary function to the Embedder interface.
type Func func(ctx context.Context, texts []string) ([][]float32, error)

// Embed calls f.
func (f Func) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}
