// internal/pipeline/sentiment/runlog.go
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"rag-pipelines/internal/common/logger"
)

// Tracker is the subset of the tracking client this pipeline needs.
type Tracker interface {
	StartRun(ctx context.Context, runName string) (string, error)
	LogParam(ctx context.Context, runID, key, value string) error
	LogMetric(ctx context.Context, runID, key string, value float64) error
	LogArtifact(ctx context.Context, runID, name string, payload []byte) error
	EndRun(ctx context.Context, runID, status string) error
}

// RunLogger records sentiment runs best-effort; failures are warned
// about, never surfaced.
type RunLogger struct {
	tracker Tracker
	logger  logger.Logger
}

func NewRunLogger(tracker Tracker, log logger.Logger) *RunLogger {
	return &RunLogger{
		tracker: tracker,
		logger: log.With(map[string]interface{}{
			"component": "runlog",
		}),
	}
}

func (rl *RunLogger) LogRun(ctx context.Context, result *Result) {
	if rl == nil || rl.tracker == nil {
		return
	}

	runName := fmt.Sprintf("sentiment_%s_%s", result.Ticker, time.Now().UTC().Format("20060102_150405"))
	runID, err := rl.tracker.StartRun(ctx, runName)
	if err != nil {
		rl.warn("start run", err)
		return
	}

	rl.logParam(ctx, runID, "company", result.Company)
	rl.logParam(ctx, runID, "ticker", result.Ticker)
	rl.logParam(ctx, runID, "ticker_confidence", result.TickerConfidence)
	rl.logParam(ctx, runID, "sentiment", result.Report.Sentiment)
	rl.logParam(ctx, runID, "news_available", strconv.FormatBool(result.NewsAvailable))

	rl.logMetric(ctx, runID, "news_count", float64(len(result.News)))
	rl.logMetric(ctx, runID, "confidence_score", result.Report.ConfidenceScore)

	if payload, err := json.MarshalIndent(result.Report, "", "  "); err == nil {
		rl.logArtifact(ctx, runID, "sentiment_report.json", payload)
	}
	if payload, err := json.MarshalIndent(result.News, "", "  "); err == nil {
		rl.logArtifact(ctx, runID, "news_items.json", payload)
	}
	if payload, err := json.MarshalIndent(result.Prompts, "", "  "); err == nil {
		rl.logArtifact(ctx, runID, "prompts.json", payload)
	}

	if err := rl.tracker.EndRun(ctx, runID, "FINISHED"); err != nil {
		rl.warn("end run", err)
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
