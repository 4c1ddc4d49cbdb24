// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PipelineRunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_completed_total",
			Help: "Total number of pipeline runs completed",
		},
		[]string{"pipeline"},
	)

	PipelineRunsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_failed_total",
			Help: "Total number of pipeline runs that aborted fatally",
		},
		[]string{"pipeline", "error_code"},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_stage_duration_seconds",
			Help: "Duration of individual pipeline stages in seconds",
		},
		[]string{"pipeline", "stage"},
	)

	RefinementCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kbqa_refinement_cycles_total",
			Help: "Number of QA queries that triggered the extra retrieval cycle",
		},
	)

	HallucinatedCitations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kbqa_hallucinated_citations_total",
			Help: "Citation tokens dropped because they referenced documents not supplied to the model",
		},
	)
)
