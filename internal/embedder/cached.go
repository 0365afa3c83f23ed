package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/54b3r/priorart-go/internal/logging"
)

// defaultCacheTTL is how long a cached embedding lives when no TTL is given.
const defaultCacheTTL = 7 * 24 * time.Hour

// CacheConfig configures a Cached embedder.
type CacheConfig struct {
	// Namespace separates keys for different models sharing one Redis. It
	// should include the model name so a model switch never serves stale
	// vectors of another dimension.
	Namespace string
	// TTL is the expiry applied to every written key. Defaults to 7 days.
	TTL time.Duration
}

// Cached wraps an Embedder with a Redis read-through cache keyed by a SHA-256
// of the namespace and text. Redis failures are logged and bypassed: the
// cache never turns a working embedder into a failing one.
type Cached struct {
	// inner computes embeddings on cache miss.
	inner Embedder
	// rdb is the Redis client holding cached vectors.
	rdb redis.Cmdable
	// namespace prefixes every key.
	namespace string
	// ttl is the expiry for written keys.
	ttl time.Duration
}

// NewCached returns inner wrapped with a Redis cache.
func NewCached(inner Embedder, rdb redis.Cmdable, cfg CacheConfig) *Cached {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	return &Cached{inner: inner, rdb: rdb, namespace: cfg.Namespace, ttl: ttl}
}

// Embed serves hits from Redis and computes the misses with the inner
// embedder in one batch, writing them back afterwards.
func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	log := logging.FromContext(ctx)

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.key(t)
	}

	out := make([][]float32, len(texts))
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		log.Warn("embedder: cache read failed, bypassing", slog.Any("error", err))
		vals = nil
	}

	var missIdx []int
	for i := range texts {
		if i < len(vals) {
			if s, ok := vals[i].(string); ok {
				if v, decErr := decodeVector(s); decErr == nil {
					out[i] = v
					continue
				}
			}
		}
		missIdx = append(missIdx, i)
	}
	if len(missIdx) == 0 {
		return out, nil
	}

	missTexts := make([]string, len(missIdx))
	for j, i := range missIdx {
		missTexts[j] = texts[i]
	}
	fresh, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missIdx) {
		return nil, fmt.Errorf("embedder: cache: inner returned %d vectors for %d texts", len(fresh), len(missIdx))
	}

	pipe := c.rdb.Pipeline()
	for j, i := range missIdx {
		out[i] = fresh[j]
		pipe.Set(ctx, keys[i], encodeVector(fresh[j]), c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		log.Warn("embedder: cache write failed", slog.Any("error", err), slog.Int("keys", len(missIdx)))
	}

	return out, nil
}

// key returns the Redis key for text.
func (c *Cached) key(text string) string {
	sum := sha256.Sum256([]byte(c.namespace + "\x00" + text))
	return "priorart:emb:" + hex.EncodeToString(sum[:])
}

// encodeVector packs v as little-endian float32s.
func encodeVector(v []float32) string {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return string(buf)
}

// decodeVector is the inverse of encodeVector.
func decodeVector(s string) ([]float32, error) {
	if len(s) == 0 || len(s)%4 != 0 {
		return nil, fmt.Errorf("embedder: cache: corrupt vector of %d bytes", len(s))
	}
	b := []byte(s)
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
