package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"

	"github.com/54b3r/priorart-go/internal/provider"
)

// LLMPinger probes the chat backend. It satisfies the Pinger interface.
type LLMPinger struct {
	// model is probed with a one-word Generate call when no health check
	// endpoint exists for the backend.
	model model.BaseChatModel
	// healthCheck is the token-free probe; nil for backends without one.
	healthCheck provider.HealthCheckConfig
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewLLMPinger constructs an LLMPinger for the given model and backend name.
func NewLLMPinger(m model.BaseChatModel, hc provider.HealthCheckConfig, name string) *LLMPinger {
	return &LLMPinger{model: m, healthCheck: hc, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return p.name }

// Ping probes the LLM backend. The token-free health check is preferred;
// otherwise a single Generate call is made.
func (p *LLMPinger) Ping(ctx context.Context) error {
	if p.healthCheck != nil {
		if err := p.healthCheck.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s health check failed: %w", p.name, err)
		}
		return nil
	}
	if p.model == nil {
		return errors.New("chat model not configured")
	}

	slog.Debug("pinger: Generate-based health check, tokens will be consumed",
		slog.String("backend", p.name),
	)
	resp, err := p.model.Generate(ctx, []*schema.Message{schema.UserMessage("ping")})
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("generate returned nil response")
	}
	return nil
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if _, err := p.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// RedisPinger probes the embedding cache.
type RedisPinger struct {
	// client is the Redis client to probe.
	client redis.UniversalClient
}

// NewRedisPinger constructs a RedisPinger.
func NewRedisPinger(client redis.UniversalClient) *RedisPinger {
	return &RedisPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *RedisPinger) Name() string { return "redis" }

// Ping sends PING.
func (p *RedisPinger) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// corpusSizer reports how many records are loaded.
// *retrieval.Engine satisfies it.
type corpusSizer interface {
	StoreSize() int
}

// CorpusPinger fails when no corpus records are loaded, in which case every
// query is answered from placeholder samples.
type CorpusPinger struct {
	// engine reports the loaded record count.
	engine corpusSizer
}

// NewCorpusPinger constructs a CorpusPinger.
func NewCorpusPinger(engine corpusSizer) *CorpusPinger {
	return &CorpusPinger{engine: engine}
}

// Name returns the dependency label used in readiness responses.
func (p *CorpusPinger) Name() string { return "corpus" }

// Ping reports an error when the corpus is empty or failed to load.
func (p *CorpusPinger) Ping(context.Context) error {
	if p.engine.StoreSize() == 0 {
		return errors.New("no records loaded, serving placeholder samples")
	}
	return nil
}
