package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/54b3r/priorart-go/internal/logging"
)

const (
	// defaultRateLimit is the token refill rate per client, in tokens/second.
	defaultRateLimit = 10
	// defaultRateBurst is the bucket capacity per client.
	defaultRateBurst = 20
	// analyzeCost is the number of tokens one POST /api/analyze consumes. An
	// analysis runs two model calls, a search runs none.
	analyzeCost = 5
	// searchCost is the number of tokens one POST /api/search consumes.
	searchCost = 1
	// bucketIdleTTL is how long an unused client bucket is kept.
	bucketIdleTTL = 5 * time.Minute
	// sweepInterval is how often idle buckets are dropped.
	sweepInterval = time.Minute
)

// clientBucket is one client's token bucket.
type clientBucket struct {
	lim      *rate.Limiter
	lastUsed time.Time
}

// rateLimiter enforces per-client token buckets on the expensive endpoints.
// Each route is charged its own cost so a client cannot drain the model
// backends at the rate it may search.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket

	refill rate.Limit
	burst  int

	// rejected counts 429 replies by handler.
	rejected *prometheus.CounterVec
}

// newRateLimiter returns a limiter and a stop function for its sweeper.
func newRateLimiter(rps float64, burst int, rejected *prometheus.CounterVec) (*rateLimiter, func()) {
	rl := &rateLimiter{
		buckets:  make(map[string]*clientBucket),
		refill:   rate.Limit(rps),
		burst:    max(burst, 1),
		rejected: rejected,
	}
	ctx, cancel := context.WithCancel(context.Background())
	go rl.sweep(ctx)
	return rl, cancel
}

// take charges cost tokens to client and reports whether they were available,
// along with how long the client should wait before retrying.
func (rl *rateLimiter) take(client string, cost int, now time.Time) (bool, time.Duration) {
	rl.mu.Lock()
	b, ok := rl.buckets[client]
	if !ok {
		b = &clientBucket{lim: rate.NewLimiter(rl.refill, rl.burst)}
		rl.buckets[client] = b
	}
	b.lastUsed = now
	rl.mu.Unlock()

	// A cost above the bucket capacity could never be paid.
	cost = min(cost, rl.burst)
	if b.lim.AllowN(now, cost) {
		return true, 0
	}
	r := b.lim.ReserveN(now, cost)
	wait := r.DelayFrom(now)
	r.CancelAt(now)
	return false, wait
}

func (rl *rateLimiter) sweep(ctx context.Context) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			rl.dropIdle(now.Add(-bucketIdleTTL))
		}
	}
}

// dropIdle forgets buckets unused since cutoff.
func (rl *rateLimiter) dropIdle(cutoff time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	n := 0
	for client, b := range rl.buckets {
		if b.lastUsed.Before(cutoff) {
			delete(rl.buckets, client)
			n++
		}
	}
	return n
}

// limit wraps next so each request costs cost tokens from the caller's
// bucket. Rejections get a JSON 429 with a whole-second Retry-After.
func (rl *rateLimiter) limit(handler string, cost int, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientIP(r)
		ok, wait := rl.take(client, cost, time.Now())
		if ok {
			next.ServeHTTP(w, r)
			return
		}
		if rl.rejected != nil {
			rl.rejected.WithLabelValues(handler).Inc()
		}
		logging.FromContext(r.Context()).Warn("rate limited",
			slog.String("client", client),
			slog.String("handler", handler),
			slog.Int("cost", cost),
		)
		w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(wait)))
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
	})
}

// retrySeconds rounds wait up to whole seconds, at least 1.
func retrySeconds(wait time.Duration) int {
	secs := int((wait + time.Second - 1) / time.Second)
	return max(secs, 1)
}

// clientIP is the host part of RemoteAddr. Proxy headers are ignored because
// the server binds to loopback by default.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
