// metrics.go registers the Prometheus metrics for the HTTP gateway and the
// instrumentation middleware that feeds them.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// labelHandler partitions metrics by logical endpoint name rather than the
// raw URL path, which would explode cardinality for /api/analyses/{id}.
const labelHandler = "handler"

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created per Server so tests can inject a fresh
// prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// analyzeRequestsTotal counts completed /api/analyze requests by outcome:
	// "ok", "degraded", "timeout", "invalid" or "error".
	analyzeRequestsTotal *prometheus.CounterVec

	// analyzeDurationSeconds records the wall-clock duration of each
	// /api/analyze request.
	analyzeDurationSeconds *prometheus.HistogramVec

	// analyzeInFlight is the number of pipeline runs currently executing.
	analyzeInFlight prometheus.Gauge

	// httpRequestsTotal counts all HTTP requests by method, handler and code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec

	// rateLimitedTotal counts 429 replies by handler.
	rateLimitedTotal *prometheus.CounterVec

	// authFailuresTotal counts 401 replies by reason.
	authFailuresTotal *prometheus.CounterVec

	// readyProbeFailuresTotal counts failed readiness probes by dependency.
	readyProbeFailuresTotal *prometheus.CounterVec
}

// newServerMetrics registers all server metrics against reg.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		analyzeRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "priorart",
			Subsystem: "analyze",
			Name:      "requests_total",
			Help:      "Total number of /api/analyze requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		analyzeDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "priorart",
			Subsystem: "analyze",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /api/analyze requests.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"}),

		analyzeInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "priorart",
			Subsystem: "analyze",
			Name:      "in_flight",
			Help:      "Number of /api/analyze pipeline runs currently executing.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "priorart",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "priorart",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),

		rateLimitedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "priorart",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected with 429 by the per-client rate limiter.",
		}, []string{labelHandler}),

		authFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "priorart",
			Subsystem: "http",
			Name:      "auth_failures_total",
			Help:      "Requests rejected with 401, partitioned by reason.",
		}, []string{"reason"}),

		readyProbeFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "priorart",
			Subsystem: "ready",
			Name:      "probe_failures_total",
			Help:      "Failed readiness probes, partitioned by dependency.",
		}, []string{"dependency"}),
	}
}

// instrument records request count and latency for next under name.
func (s *Server) instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rw, r)
		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
	})
}
