// internal/pipeline/kbqa/runlog.go
package kbqa

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rag-pipelines/internal/common/logger"
)

const pipelineVersion = "1.0.0"

// Tracker is the subset of the tracking client the pipeline needs.
type Tracker interface {
	StartRun(ctx context.Context, runName string) (string, error)
	LogParam(ctx context.Context, runID, key, value string) error
	LogMetric(ctx context.Context, runID, key string, value float64) error
	LogArtifact(ctx context.Context, runID, name string, payload []byte) error
	EndRun(ctx context.Context, runID, status string) error
}

// RunLogger records pipeline runs to the tracking server. All logging
// is best-effort: failures are warned about and otherwise ignored, so
// an unreachable tracking server never affects a run's outcome.
type RunLogger struct {
	tracker Tracker
	logger  logger.Logger
}

// NewRunLogger returns a logger; tracker may be nil, which disables
// tracking entirely.
func NewRunLogger(tracker Tracker, log logger.Logger) *RunLogger {
	return &RunLogger{
		tracker: tracker,
		logger: log.With(map[string]interface{}{
			"component": "runlog",
		}),
	}
}

// LogRun records the parameters, metrics, and artifacts of one
// completed question run.
func (rl *RunLogger) LogRun(ctx context.Context, result *Result) {
	if rl == nil || rl.tracker == nil {
		return
	}

	runName := fmt.Sprintf("agentic_rag_%s", time.Now().UTC().Format("20060102_150405"))
	runID, err := rl.tracker.StartRun(ctx, runName)
	if err != nil {
		rl.warn("start run", err)
		return
	}

	rl.logParam(ctx, runID, "query", result.Query)
	rl.logParam(ctx, runID, "retrieved_count", strconv.Itoa(len(result.Snippets)))
	rl.logParam(ctx, runID, "refinement_needed", strconv.FormatBool(result.RefinementNeeded))
	rl.logParam(ctx, runID, "critique_result", result.CritiqueVerdict)
	rl.logParam(ctx, runID, "pipeline_version", pipelineVersion)

	if len(result.Snippets) > 0 {
		var sum, max, min float64
		min = result.Snippets[0].Score
		for _, snippet := range result.Snippets {
			sum += snippet.Score
			if snippet.Score > max {
				max = snippet.Score
			}
			if snippet.Score < min {
				min = snippet.Score
			}
		}
		rl.logMetric(ctx, runID, "avg_retrieval_score", sum/float64(len(result.Snippets)))
		rl.logMetric(ctx, runID, "max_retrieval_score", max)
		rl.logMetric(ctx, runID, "min_retrieval_score", min)
	}

	rl.logMetric(ctx, runID, "initial_answer_length", float64(len(result.InitialAnswer)))
	rl.logMetric(ctx, runID, "initial_answer_citations", float64(strings.Count(result.InitialAnswer, "[KB")))
	if result.RefinedAnswer != "" {
		rl.logMetric(ctx, runID, "refined_answer_length", float64(len(result.RefinedAnswer)))
		rl.logMetric(ctx, runID, "refined_answer_citations", float64(strings.Count(result.RefinedAnswer, "[KB")))
	}

	if docs, err := json.MarshalIndent(result.Snippets, "", "  "); err == nil {
		rl.logArtifact(ctx, runID, "retrieved_docs.json", docs)
	}
	if prompts, err := json.MarshalIndent(result.Prompts, "", "  "); err == nil {
		rl.logArtifact(ctx, runID, "prompts.json", prompts)
	}
	rl.logArtifact(ctx, runID, "initial_answer.txt", []byte(result.InitialAnswer))
	if result.RefinedAnswer != "" {
		rl.logArtifact(ctx, runID, "refined_answer.txt", []byte(result.RefinedAnswer))
	}
	rl.logArtifact(ctx, runID, "final_answer.txt", []byte(result.FinalAnswer))

	decision := map[string]interface{}{
		"query":               result.Query,
		"retrieved_count":     len(result.Snippets),
		"used_doc_ids":        result.UsedDocIDs(),
		"critique_result":     result.CritiqueVerdict,
		"refinement_needed":   result.RefinementNeeded,
		"final_answer_length": len(result.FinalAnswer),
		"trace":               result.Trace,
		"annotations":         result.Annotations,
		"timestamp":           time.Now().UTC().Format(time.RFC3339),
	}
	if payload, err := json.MarshalIndent(decision, "", "  "); err == nil {
		rl.logArtifact(ctx, runID, "decision_summary.json", payload)
	}

	if err := rl.tracker.EndRun(ctx, runID, "FINISHED"); err != nil {
		rl.warn("end run", err)
	}
}

// ExperimentSummary aggregates a battery of runs.
type ExperimentSummary struct {
	TotalQueries      int     `json:"total_queries"`
	SuccessfulRuns    int     `json:"successful_runs"`
	RefinementRate    float64 `json:"refinement_rate"`
	AvgRetrievalScore float64 `json:"avg_retrieval_score"`
}

// LogExperimentSummary records battery-level statistics as their own
// run.
func (rl *RunLogger) LogExperimentSummary(ctx context.Context, summary ExperimentSummary) {
	if rl == nil || rl.tracker == nil {
		return
	}

	runID, err := rl.tracker.StartRun(ctx, "experiment_summary")
	if err != nil {
		rl.warn("start summary run", err)
		return
	}

	rl.logParam(ctx, runID, "experiment_type", "agentic_rag_evaluation")
	rl.logParam(ctx, runID, "total_queries", strconv.Itoa(summary.TotalQueries))
	rl.logParam(ctx, runID, "successful_runs", strconv.Itoa(summary.SuccessfulRuns))

	if summary.TotalQueries > 0 {
		rl.logMetric(ctx, runID, "success_rate", float64(summary.SuccessfulRuns)/float64(summary.TotalQueries)*100)
	}
	rl.logMetric(ctx, runID, "refinement_rate", summary.RefinementRate)
	rl.logMetric(ctx, runID, "avg_retrieval_score", summary.AvgRetrievalScore)

	payload := map[string]interface{}{
		"total_queries":       summary.TotalQueries,
		"successful_runs":     summary.SuccessfulRuns,
		"refinement_rate":     summary.RefinementRate,
		"avg_retrieval_score": summary.AvgRetrievalScore,
		"timestamp":           time.Now().UTC().Format(time.RFC3339),
	}
	if data, err := json.MarshalIndent(payload, "", "  "); err == nil {
		rl.logArtifact(ctx, runID, "experiment_summary.json", data)
	}

	if err := rl.tracker.EndRun(ctx, runID, "FINISHED"); err != nil {
		rl.warn("end summary run", err)
	}
}

func (rl *RunLogger) logParam(ctx context.Context, runID, key, value string) {
	if err := rl.tracker.LogParam(ctx, runID, key, value); err != nil {
		rl.warn("log param "+key, err)
	}
}

func (rl *RunLogger) logMetric(ctx context.Context, runID, key string, value float64) {
	if err := rl.tracker.LogMetric(ctx, runID, key, value); err != nil {
		rl.warn("log metric "+key, err)
	}
}

func (rl *RunLogger) logArtifact(ctx context.Context, runID, name string, payload []byte) {
	if err := rl.tracker.LogArtifact(ctx, runID, name, payload); err != nil {
		rl.warn("log artifact "+name, err)
	}
}

func (rl *RunLogger) warn(what string, err error) {
	rl.logger.Warn("tracking call failed", map[string]interface{}{
		"call":  what,
		"error": err.Error(),
	})
}
