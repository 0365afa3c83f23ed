package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// pipelineMetrics holds the Prometheus metrics owned by the orchestrator.
type pipelineMetrics struct {
	// stageTotal counts stage executions by stage name and status.
	stageTotal *prometheus.CounterVec

	// strategyTotal counts which retrieval strategy served each run.
	strategyTotal *prometheus.CounterVec

	// durationSeconds records end-to-end pipeline latency, partitioned by
	// whether any stage degraded.
	durationSeconds *prometheus.HistogramVec
}

// newPipelineMetrics registers the orchestrator metrics against reg.
func newPipelineMetrics(reg prometheus.Registerer) *pipelineMetrics {
	factory := promauto.With(reg)

	return &pipelineMetrics{
		stageTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "priorart",
			Subsystem: "pipeline",
			Name:      "stage_total",
			Help:      "Pipeline stage executions, partitioned by stage and status.",
		}, []string{"stage", "status"}),

		strategyTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "priorart",
			Subsystem: "retrieval",
			Name:      "strategy_total",
			Help:      "Retrieval runs, partitioned by the strategy that served them.",
		}, []string{"strategy"}),

		durationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "priorart",
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "End-to-end analysis pipeline latency.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"}),
	}
}
