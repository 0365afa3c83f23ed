// Package pipeline sequences retrieval, analysis and report synthesis for one
// query. Each stage is isolated: a failure or panic in one stage substitutes
// that stage's fallback and the run continues, so a late failure never erases
// earlier results. Only query validation errors reach the caller.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/priorart-go/internal/analysis"
	"github.com/54b3r/priorart-go/internal/corpus"
	"github.com/54b3r/priorart-go/internal/logging"
	"github.com/54b3r/priorart-go/internal/report"
	"github.com/54b3r/priorart-go/internal/retrieval"
	"github.com/54b3r/priorart-go/internal/stage"
)

// MinQueryLength is the default minimum trimmed query length in characters.
const MinQueryLength = 10

// ErrValidation is returned (wrapped) when a query is rejected before any
// stage runs.
var ErrValidation = errors.New("pipeline: invalid query")

// Stage names used in StageReport and metrics.
const (
	StageRetrieval = "retrieval"
	StageAnalysis  = "analysis"
	StageWrite     = "report"
)

// Retriever finds records similar to a query. Implemented by *retrieval.Engine.
type Retriever interface {
	FindSimilar(ctx context.Context, query string, topK int) stage.Result[retrieval.Result]
}

// Analyzer produces the structured assessment. Implemented by *analysis.Client.
type Analyzer interface {
	Analyze(ctx context.Context, query string, summaries []string) stage.Result[analysis.Result]
}

// ReportWriter renders the assessment as prose. Implemented by
// *report.Synthesizer.
type ReportWriter interface {
	Write(ctx context.Context, res analysis.Result) stage.Result[string]
}

// StageReport describes how one stage completed.
type StageReport struct {
	// Name is the stage name.
	Name string `json:"name"`
	// Status is ok or degraded.
	Status stage.Status `json:"status"`
	// Error is the degradation cause, empty when none was recorded.
	Error string `json:"error,omitempty"`
}

// Output is the result of one pipeline run.
type Output struct {
	// SimilarRecords is never empty and carries dense ranks 1..n.
	SimilarRecords []corpus.Match `json:"similar_records"`
	// Analysis is always fully populated.
	Analysis analysis.Result `json:"analysis"`
	// Report is the narrative report or report.Fallback.
	Report string `json:"report"`
	// Query is the trimmed query that was analysed.
	Query string `json:"query"`
	// Strategy is the retrieval path that produced SimilarRecords.
	Strategy retrieval.Strategy `json:"retrieval_strategy"`
	// Stages lists per-stage status in execution order.
	Stages []StageReport `json:"stages"`
}

// Degraded reports whether any stage substituted a fallback.
func (o Output) Degraded() bool {
	for _, s := range o.Stages {
		if s.Status == stage.StatusDegraded {
			return true
		}
	}
	return false
}

// Config holds orchestrator settings.
type Config struct {
	// TopK is the default number of similar records. Zero defers to the
	// retriever's own default.
	TopK int
	// MinQueryLength is the minimum trimmed query length. Defaults to
	// MinQueryLength.
	MinQueryLength int
	// MetricsRegistry receives the pipeline metrics. When nil a private
	// registry is used and the metrics are not exported.
	MetricsRegistry prometheus.Registerer
}

// Orchestrator runs the analysis pipeline. It holds no per-request state and
// is safe for concurrent use.
type Orchestrator struct {
	// retriever finds similar records.
	retriever Retriever
	// analyzer produces the structured assessment; may be nil.
	analyzer Analyzer
	// writer renders the report; may be nil.
	writer ReportWriter
	// cfg holds the resolved settings.
	cfg Config
	// metrics holds the Prometheus collectors.
	metrics *pipelineMetrics
}

// New constructs an Orchestrator. A nil analyzer or writer makes the
// corresponding stage always return its fallback.
func New(retriever Retriever, analyzer Analyzer, writer ReportWriter, cfg Config) (*Orchestrator, error) {
	if retriever == nil {
		return nil, fmt.Errorf("pipeline: retriever must not be nil")
	}
	if cfg.MinQueryLength <= 0 {
		cfg.MinQueryLength = MinQueryLength
	}
	reg := cfg.MetricsRegistry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Orchestrator{
		retriever: retriever,
		analyzer:  analyzer,
		writer:    writer,
		cfg:       cfg,
		metrics:   newPipelineMetrics(reg),
	}, nil
}

// Validate checks query without running any stage.
func (o *Orchestrator) Validate(query string) (string, error) {
	q := strings.TrimSpace(query)
	if utf8.RuneCountInString(q) < o.cfg.MinQueryLength {
		return "", fmt.Errorf("%w: query must be at least %d characters", ErrValidation, o.cfg.MinQueryLength)
	}
	return q, nil
}

// Run analyses query with the default result count.
func (o *Orchestrator) Run(ctx context.Context, query string) (Output, error) {
	return o.RunTopK(ctx, query, o.cfg.TopK)
}

// RunTopK analyses query, retrieving up to topK similar records.
func (o *Orchestrator) RunTopK(ctx context.Context, query string, topK int) (Output, error) {
	q, err := o.Validate(query)
	if err != nil {
		return Output{}, err
	}
	start := time.Now()
	log := logging.FromContext(ctx)

	out := Output{Query: q}

	found := stage.Guard(retrieval.Placeholders(), func() stage.Result[retrieval.Result] {
		return o.retriever.FindSimilar(ctx, q, topK)
	})
	o.record(ctx, &out, StageRetrieval, found.Status, found.Err)
	out.SimilarRecords = found.Value.Matches
	out.Strategy = found.Value.Strategy
	o.metrics.strategyTotal.WithLabelValues(string(out.Strategy)).Inc()

	summaries := make([]string, len(out.SimilarRecords))
	for i, m := range out.SimilarRecords {
		summaries[i] = m.Summary()
	}

	assessed := stage.Guard(analysis.Default(), func() stage.Result[analysis.Result] {
		if o.analyzer == nil {
			return stage.Degraded(analysis.Default(), analysis.ErrNoModel)
		}
		return o.analyzer.Analyze(ctx, q, summaries)
	})
	o.record(ctx, &out, StageAnalysis, assessed.Status, assessed.Err)
	out.Analysis = assessed.Value

	written := stage.Guard(report.Fallback, func() stage.Result[string] {
		if o.writer == nil {
			return stage.Degraded(report.Fallback, report.ErrNoModel)
		}
		return o.writer.Write(ctx, out.Analysis)
	})
	o.record(ctx, &out, StageWrite, written.Status, written.Err)
	out.Report = written.Value

	outcome := "ok"
	if out.Degraded() {
		outcome = "degraded"
	}
	elapsed := time.Since(start)
	o.metrics.durationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
	log.Info("pipeline: run complete",
		slog.String("strategy", string(out.Strategy)),
		slog.Int("matches", len(out.SimilarRecords)),
		slog.String("novelty", string(out.Analysis.Novelty)),
		slog.String("outcome", outcome),
		slog.Duration("elapsed", elapsed),
	)
	return out, nil
}

// record appends the stage report, bumps its counter and logs degradation.
func (o *Orchestrator) record(ctx context.Context, out *Output, name string, status stage.Status, err error) {
	rep := StageReport{Name: name, Status: status}
	if err != nil {
		rep.Error = err.Error()
	}
	out.Stages = append(out.Stages, rep)
	o.metrics.stageTotal.WithLabelValues(name, string(status)).Inc()
	if status == stage.StatusDegraded {
		logging.FromContext(ctx).Warn("pipeline: stage degraded",
			slog.String("stage", name),
			slog.Any("error", err),
		)
	}
}
