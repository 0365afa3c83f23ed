// Package server implements the HTTP gateway that exposes the prior-art
// analysis pipeline as a JSON API. It is started by `priorart serve`.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/priorart-go/internal/logging"
	"github.com/54b3r/priorart-go/internal/pipeline"
	"github.com/54b3r/priorart-go/internal/retrieval"
	"github.com/54b3r/priorart-go/internal/store"
	"github.com/54b3r/priorart-go/internal/version"
)

const (
	// defaultListLimit is the page size for GET /api/analyses.
	defaultListLimit = 20
	// maxListLimit caps the limit query parameter.
	maxListLimit = 100
	// maxBodyBytes caps request bodies.
	maxBodyBytes = 1 << 20
)

// New constructs a Server. analyses may be nil to disable persistence.
func New(orch *pipeline.Orchestrator, engine *retrieval.Engine, analyses store.AnalysisStore, cfg *Config) (*Server, error) {
	if orch == nil {
		return nil, fmt.Errorf("server: orchestrator must not be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("server: retrieval engine must not be nil")
	}
	return newServer(orch, engine, analyses, cfg), nil
}

// newServer resolves defaults and wires the mux. Tests call it with fakes.
func newServer(r runner, sr searcher, analyses store.AnalysisStore, cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.AnalyzeTimeout == 0 {
		cfg.AnalyzeTimeout = 5 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = cfg.AnalyzeTimeout + 30*time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		runner:   r,
		searcher: sr,
		analyses: analyses,
		cfg:      cfg,
		log:      log,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(cfg.MetricsRegistry),
	}

	rl, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.metrics.rateLimitedTotal)
	s.stopRL = stop

	auth := newAPIKeyAuth(cfg.APIKey, s.metrics.authFailuresTotal)
	if auth == nil {
		log.Warn("server: API key not set, authentication disabled")
	}
	protect := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, auth.wrap(h))
	}
	limited := func(name string, cost int, h http.HandlerFunc) http.Handler {
		return s.instrument(name, auth.wrap(rl.limit(name, cost, h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/analyze", limited("analyze", analyzeCost, s.handleAnalyze))
	mux.Handle("POST /api/search", limited("search", searchCost, s.handleSearch))
	mux.Handle("GET /api/analyses", protect("analyses_list", s.handleListAnalyses))
	mux.Handle("GET /api/analyses/{id}", protect("analyses_get", s.handleGetAnalysis))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, corsMiddleware(cfg.CORSOrigin, mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("priorart server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleAnalyze handles POST /api/analyze. Validation errors map to 400;
// degraded pipeline runs still return 200.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var req analyzeRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.metrics.analyzeRequestsTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.metrics.analyzeInFlight.Inc()
	defer s.metrics.analyzeInFlight.Dec()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.AnalyzeTimeout)
	defer cancel()

	out, err := s.runner.RunTopK(ctx, req.text(), req.TopK)
	if errors.Is(err, pipeline.ErrValidation) {
		s.metrics.analyzeRequestsTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.metrics.analyzeRequestsTotal.WithLabelValues("error").Inc()
		log.Error("analyze: pipeline error", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	outcome := "ok"
	status := "completed"
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		outcome, status = "timeout", "degraded"
	case out.Degraded():
		outcome, status = "degraded", "degraded"
	}
	s.metrics.analyzeRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.analyzeDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	resp := analyzeResponse{Status: status, Output: out}
	resp.AnalysisID = s.persist(r.Context(), out)
	writeJSON(w, http.StatusOK, resp)
}

// persist saves out and returns its id. Failures are logged and yield "".
func (s *Server) persist(ctx context.Context, out pipeline.Output) string {
	if s.analyses == nil {
		return ""
	}
	log := logging.FromContext(ctx)
	payload, err := json.Marshal(out)
	if err != nil {
		log.Warn("analyze: encode payload for persistence", slog.Any("error", err))
		return ""
	}
	id, err := s.analyses.Save(ctx, store.Analysis{
		Query:    out.Query,
		Novelty:  string(out.Analysis.Novelty),
		Strategy: string(out.Strategy),
		Report:   out.Report,
		Payload:  payload,
	})
	if err != nil {
		log.Warn("analyze: failed to persist analysis", slog.Any("error", err))
		return ""
	}
	return id
}

// handleSearch handles POST /api/search, running retrieval only.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	q, err := s.runner.Validate(req.Query)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := s.searcher.FindSimilar(r.Context(), q, req.TopK)
	writeJSON(w, http.StatusOK, searchResponse{
		Query:          q,
		Strategy:       res.Value.Strategy,
		Status:         res.Status,
		SimilarRecords: res.Value.Matches,
	})
}

// handleGetAnalysis handles GET /api/analyses/{id}.
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.analyses == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence disabled")
		return
	}
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid analysis id")
		return
	}

	a, err := s.analyses.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("analyses: get failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleListAnalyses handles GET /api/analyses?limit=N.
func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	if s.analyses == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence disabled")
		return
	}
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	list, err := s.analyses.Recent(r.Context(), limit)
	if err != nil {
		logging.FromContext(r.Context()).Error("analyses: list failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if list == nil {
		list = []store.Analysis{}
	}
	writeJSON(w, http.StatusOK, listResponse{Analyses: list})
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.Version})
}

// decodeBody decodes a size-limited JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("server: decode body: %w", err)
	}
	return nil
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("server: encode response", slog.Any("error", err))
	}
}

// writeError writes an errorResponse.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
