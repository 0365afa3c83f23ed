package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/priorart-go/internal/analysis"
	"github.com/54b3r/priorart-go/internal/corpus"
	"github.com/54b3r/priorart-go/internal/pipeline"
	"github.com/54b3r/priorart-go/internal/retrieval"
	"github.com/54b3r/priorart-go/internal/stage"
	"github.com/54b3r/priorart-go/internal/store"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeRunner implements the runner interface for tests.
type fakeRunner struct {
	// out is returned by every successful RunTopK call.
	out pipeline.Output
	// err is returned by RunTopK after validation passes.
	err error
	// gotTopK records the last requested result count.
	gotTopK int
}

func (f *fakeRunner) Validate(query string) (string, error) {
	q := strings.TrimSpace(query)
	if len(q) < pipeline.MinQueryLength {
		return "", fmt.Errorf("%w: query must be at least %d characters", pipeline.ErrValidation, pipeline.MinQueryLength)
	}
	return q, nil
}

func (f *fakeRunner) RunTopK(_ context.Context, query string, topK int) (pipeline.Output, error) {
	q, err := f.Validate(query)
	if err != nil {
		return pipeline.Output{}, err
	}
	f.gotTopK = topK
	if f.err != nil {
		return pipeline.Output{}, f.err
	}
	out := f.out
	out.Query = q
	return out, nil
}

// fakeSearcher implements the searcher interface for tests.
type fakeSearcher struct {
	res     stage.Result[retrieval.Result]
	gotTopK int
}

func (f *fakeSearcher) FindSimilar(_ context.Context, _ string, topK int) stage.Result[retrieval.Result] {
	f.gotTopK = topK
	return f.res
}

// memStore is an in-memory store.AnalysisStore.
type memStore struct {
	mu      sync.Mutex
	records map[string]store.Analysis
	order   []string
	saveErr error
}

func newMemStore() *memStore { return &memStore{records: map[string]store.Analysis{}} }

func (m *memStore) Save(_ context.Context, a store.Analysis) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.NewString()
	a.CreatedAt = time.Now()
	m.records[a.ID] = a
	m.order = append(m.order, a.ID)
	return a.ID, nil
}

func (m *memStore) Get(_ context.Context, id string) (store.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.records[id]
	if !ok {
		return store.Analysis{}, store.ErrNotFound
	}
	return a, nil
}

func (m *memStore) Recent(_ context.Context, n int) ([]store.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Analysis
	for i := len(m.order) - 1; i >= 0 && len(out) < n; i-- {
		a := m.records[m.order[i]]
		a.Payload = nil
		out = append(out, a)
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func sampleOutput() pipeline.Output {
	res := analysis.Default()
	res.Novelty = analysis.NoveltyMedium
	return pipeline.Output{
		SimilarRecords: []corpus.Match{{
			Record: corpus.Record{ID: "US-1", Title: "Smart Battery Management System", Category: "Electronics"},
			Score:  0.91,
			Rank:   1,
		}},
		Analysis: res,
		Report:   "## Introduction",
		Strategy: retrieval.StrategyVector,
		Stages: []pipeline.StageReport{
			{Name: pipeline.StageRetrieval, Status: stage.StatusOK},
			{Name: pipeline.StageAnalysis, Status: stage.StatusOK},
			{Name: pipeline.StageWrite, Status: stage.StatusOK},
		},
	}
}

// newTestServer builds a Server with fakes and an isolated metrics registry.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestServerWith(t, &fakeRunner{out: sampleOutput()}, &fakeSearcher{}, nil, &Config{})
}

func newTestServerWith(t *testing.T, r runner, sr searcher, st store.AnalysisStore, cfg *Config) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	cfg.MetricsRegistry = reg
	cfg.MetricsGatherer = reg
	cfg.Logger = slog.New(slog.DiscardHandler)
	s := newServer(r, sr, st, cfg)
	t.Cleanup(s.stopRL)
	return s
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v body: %s", err, w.Body.String())
	}
	return v
}

// ---------------------------------------------------------------------------
// POST /api/analyze
// ---------------------------------------------------------------------------

func TestHandleAnalyze_Success(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	r := &fakeRunner{out: sampleOutput()}
	s := newTestServerWith(t, r, &fakeSearcher{}, st, &Config{})

	w := do(t, s, http.MethodPost, "/api/analyze", `{"query":"battery management system for electric vehicles","top_k":3}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}

	resp := decode[map[string]any](t, w)
	if resp["status"] != "completed" {
		t.Errorf("status: got %v", resp["status"])
	}
	id, _ := resp["analysis_id"].(string)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("analysis_id %q is not a UUID", id)
	}
	if resp["retrieval_strategy"] != "vector" || resp["query"] != "battery management system for electric vehicles" {
		t.Errorf("unexpected body: %v", resp)
	}
	records, _ := resp["similar_records"].([]any)
	if len(records) != 1 {
		t.Fatalf("similar_records: %v", resp["similar_records"])
	}
	rec := records[0].(map[string]any)
	if rec["patent_id"] != "US-1" || rec["rank"] != float64(1) || rec["similarity_score"] != 0.91 {
		t.Errorf("record fields: %v", rec)
	}
	if r.gotTopK != 3 {
		t.Errorf("top_k passthrough: got %d", r.gotTopK)
	}

	saved, err := st.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("persisted record missing: %v", err)
	}
	if saved.Novelty != "Medium" || saved.Strategy != "vector" || !json.Valid(saved.Payload) {
		t.Errorf("persisted record: %+v", saved)
	}
}

func TestHandleAnalyze_PatentTextAlias(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	w := do(t, s, http.MethodPost, "/api/analyze", `{"patent_text":"a foldable solar charging umbrella"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := decode[map[string]any](t, w)["query"]; got != "a foldable solar charging umbrella" {
		t.Errorf("query: got %v", got)
	}
}

func TestHandleAnalyze_BadRequests(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"invalid json": `not-json`,
		"empty query":  `{"query":""}`,
		"short query":  `{"query":"   too short  "}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer(t)
			w := do(t, s, http.MethodPost, "/api/analyze", body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if decode[errorResponse](t, w).Error == "" {
				t.Error("expected error message")
			}
		})
	}
}

func TestHandleAnalyze_DegradedIs200(t *testing.T) {
	t.Parallel()

	out := sampleOutput()
	out.Stages[1].Status = stage.StatusDegraded
	out.Analysis = analysis.Default()
	s := newTestServerWith(t, &fakeRunner{out: out}, &fakeSearcher{}, nil, &Config{})

	w := do(t, s, http.MethodPost, "/api/analyze", `{"query":"an idea that is long enough"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode[map[string]any](t, w)
	if resp["status"] != "degraded" {
		t.Errorf("status: got %v", resp["status"])
	}
	if resp["analysis_id"] != "" {
		t.Errorf("no store configured, analysis_id should be empty: %v", resp["analysis_id"])
	}
}

func TestHandleAnalyze_PersistFailureStillSucceeds(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	st.saveErr = errors.New("disk full")
	s := newTestServerWith(t, &fakeRunner{out: sampleOutput()}, &fakeSearcher{}, st, &Config{})

	w := do(t, s, http.MethodPost, "/api/analyze", `{"query":"an idea that is long enough"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if id := decode[map[string]any](t, w)["analysis_id"]; id != "" {
		t.Errorf("analysis_id should be empty on persist failure, got %v", id)
	}
}

func TestHandleAnalyze_PipelineError(t *testing.T) {
	t.Parallel()

	s := newTestServerWith(t, &fakeRunner{err: errors.New("boom")}, &fakeSearcher{}, nil, &Config{})
	w := do(t, s, http.MethodPost, "/api/analyze", `{"query":"an idea that is long enough"}`)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestHandleAnalyze_RequiresAuth(t *testing.T) {
	t.Parallel()

	s := newTestServerWith(t, &fakeRunner{out: sampleOutput()}, &fakeSearcher{}, nil, &Config{APIKey: "secret"})
	w := do(t, s, http.MethodPost, "/api/analyze", `{"query":"an idea that is long enough"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if got := w.Header().Get("WWW-Authenticate"); !strings.Contains(got, `realm="priorart"`) {
		t.Errorf("WWW-Authenticate: got %q", got)
	}
}

// ---------------------------------------------------------------------------
// POST /api/search
// ---------------------------------------------------------------------------

func TestHandleSearch(t *testing.T) {
	t.Parallel()

	sr := &fakeSearcher{res: stage.Degraded(retrieval.Result{
		Matches:  sampleOutput().SimilarRecords,
		Strategy: retrieval.StrategyLexical,
	}, errors.New("vector index unreachable"))}
	s := newTestServerWith(t, &fakeRunner{}, sr, nil, &Config{})

	w := do(t, s, http.MethodPost, "/api/search", `{"query":"  battery management  ","top_k":7}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body: %s", w.Code, w.Body.String())
	}
	resp := decode[searchResponse](t, w)
	if resp.Query != "battery management" || resp.Strategy != retrieval.StrategyLexical || resp.Status != stage.StatusDegraded {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(resp.SimilarRecords) != 1 || sr.gotTopK != 7 {
		t.Errorf("records %d, topK %d", len(resp.SimilarRecords), sr.gotTopK)
	}
}

func TestHandleSearch_ShortQuery(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	if w := do(t, s, http.MethodPost, "/api/search", `{"query":"short"}`); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// GET /api/analyses
// ---------------------------------------------------------------------------

func TestHandleGetAnalysis(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	id, _ := st.Save(context.Background(), store.Analysis{Query: "stored idea text", Novelty: "Low"})
	s := newTestServerWith(t, &fakeRunner{}, &fakeSearcher{}, st, &Config{})

	tests := []struct {
		name string
		path string
		want int
	}{
		{"found", "/api/analyses/" + id, http.StatusOK},
		{"not a uuid", "/api/analyses/42", http.StatusBadRequest},
		{"missing", "/api/analyses/" + uuid.NewString(), http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			w := do(t, s, http.MethodGet, tc.path, "")
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d body: %s", tc.want, w.Code, w.Body.String())
			}
			if tc.want == http.StatusOK {
				if a := decode[store.Analysis](t, w); a.ID != id || a.Novelty != "Low" {
					t.Errorf("unexpected record: %+v", a)
				}
			}
		})
	}
}

func TestHandleAnalyses_PersistenceDisabled(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	for _, path := range []string{"/api/analyses", "/api/analyses/" + uuid.NewString()} {
		if w := do(t, s, http.MethodGet, path, ""); w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", path, w.Code)
		}
	}
}

func TestHandleListAnalyses(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	for i := range 3 {
		_, _ = st.Save(context.Background(), store.Analysis{Query: fmt.Sprintf("idea number %d", i)})
	}
	s := newTestServerWith(t, &fakeRunner{}, &fakeSearcher{}, st, &Config{})

	w := do(t, s, http.MethodGet, "/api/analyses?limit=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode[listResponse](t, w)
	if len(resp.Analyses) != 2 || resp.Analyses[0].Query != "idea number 2" {
		t.Errorf("unexpected list: %+v", resp.Analyses)
	}

	if w := do(t, s, http.MethodGet, "/api/analyses?limit=zero", ""); w.Code != http.StatusBadRequest {
		t.Errorf("invalid limit: expected 400, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// CORS
// ---------------------------------------------------------------------------

func TestCORS_PreflightBypassesAuth(t *testing.T) {
	t.Parallel()

	s := newTestServerWith(t, &fakeRunner{}, &fakeSearcher{}, nil, &Config{APIKey: "secret"})
	req := httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin: got %q", got)
	}
}

func TestCORS_ConfiguredOrigin(t *testing.T) {
	t.Parallel()

	s := newTestServerWith(t, &fakeRunner{}, &fakeSearcher{}, nil, &Config{CORSOrigin: "https://app.example.com"})
	w := do(t, s, http.MethodGet, "/api/health", "")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin: got %q", got)
	}
	if w.Header().Get("Vary") != "Origin" {
		t.Error("expected Vary: Origin for a fixed origin")
	}
}
