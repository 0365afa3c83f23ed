package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/priorart-go/internal/corpus"
	"github.com/54b3r/priorart-go/internal/pipeline"
	"github.com/54b3r/priorart-go/internal/retrieval"
	"github.com/54b3r/priorart-go/internal/stage"
	"github.com/54b3r/priorart-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// exceed AnalyzeTimeout.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// AnalyzeTimeout bounds one POST /api/analyze pipeline run (default: 5m).
	AnalyzeTimeout time.Duration
	// CORSOrigin is the Access-Control-Allow-Origin value (default: "*").
	CORSOrigin string
	// Logger is the structured logger used by the server and its handlers.
	// If nil, slog.Default() is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server metrics. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer is served on GET /metrics. Defaults to
	// prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// runner is the pipeline surface the handlers call.
// *pipeline.Orchestrator satisfies it; tests inject a fake.
type runner interface {
	// Validate trims and checks a query without running any stage.
	Validate(query string) (string, error)
	// RunTopK runs the full pipeline for query.
	RunTopK(ctx context.Context, query string, topK int) (pipeline.Output, error)
}

// searcher is the retrieval-only surface used by POST /api/search.
// *retrieval.Engine satisfies it.
type searcher interface {
	FindSimilar(ctx context.Context, query string, topK int) stage.Result[retrieval.Result]
}

// Server is the HTTP gateway in front of the analysis pipeline.
type Server struct {
	// runner executes analysis requests.
	runner runner
	// searcher serves retrieval-only requests.
	searcher searcher
	// analyses persists completed runs; nil disables persistence.
	analyses store.AnalysisStore
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors for this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// analyzeRequest is the JSON body for POST /api/analyze.
type analyzeRequest struct {
	// Query is the idea to analyse.
	Query string `json:"query"`
	// PatentText is accepted as an alias for Query.
	PatentText string `json:"patent_text"`
	// TopK is the optional number of similar records (capped at 50).
	TopK int `json:"top_k"`
}

// text returns whichever of Query or PatentText was supplied.
func (r analyzeRequest) text() string {
	if r.Query != "" {
		return r.Query
	}
	return r.PatentText
}

// analyzeResponse is the JSON response for POST /api/analyze.
type analyzeResponse struct {
	// AnalysisID is the persisted record id, empty when persistence failed
	// or is disabled.
	AnalysisID string `json:"analysis_id"`
	// Status is "completed", or "degraded" when any stage fell back.
	Status string `json:"status"`
	pipeline.Output
}

// searchRequest is the JSON body for POST /api/search.
type searchRequest struct {
	// Query is the text to search for.
	Query string `json:"query"`
	// TopK is the optional number of results (capped at 50).
	TopK int `json:"top_k"`
}

// searchResponse is the JSON response for POST /api/search.
type searchResponse struct {
	// Query is the trimmed query.
	Query string `json:"query"`
	// Strategy is the retrieval path that served the request.
	Strategy retrieval.Strategy `json:"retrieval_strategy"`
	// Status is ok or degraded.
	Status stage.Status `json:"status"`
	// SimilarRecords holds the ranked matches.
	SimilarRecords []corpus.Match `json:"similar_records"`
}

// listResponse is the JSON response for GET /api/analyses.
type listResponse struct {
	// Analyses holds the most recent records, newest first.
	Analyses []store.Analysis `json:"analyses"`
}

// errorResponse is the JSON body of every error reply.
type errorResponse struct {
	// Error is a human-readable message.
	Error string `json:"error"`
}
