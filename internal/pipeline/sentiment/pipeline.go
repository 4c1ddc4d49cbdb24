// internal/pipeline/sentiment/pipeline.go
package sentiment

import (
	"context"
	"time"

	errs "rag-pipelines/internal/common/errors"
	"rag-pipelines/internal/common/logger"
	"rag-pipelines/internal/common/metrics"
	"rag-pipelines/internal/common/observability"
	analyzesentiment "rag-pipelines/internal/stages/sentiment/analyze-sentiment"
	fetchnews "rag-pipelines/internal/stages/sentiment/fetch-news"
	resolveticker "rag-pipelines/internal/stages/sentiment/resolve-ticker"
)

const PipelineName = "sentiment"

type TickerResolver interface {
	Execute(ctx context.Context, input *resolveticker.Input) (*resolveticker.Output, error)
}

type NewsFetcher interface {
	Execute(ctx context.Context, input *fetchnews.Input) (*fetchnews.Output, error)
}

type Analyzer interface {
	Execute(ctx context.Context, input *analyzesentiment.Input) (*analyzesentiment.Output, error)
}

// Prompt is one model prompt pair issued during a run, kept so the
// run record can include the exact prompt text.
type Prompt struct {
	Stage  string `json:"stage"`
	System string `json:"system"`
	User   string `json:"user"`
}

// Result is the outcome of one company sentiment run.
type Result struct {
	Company     string                  `json:"company"`
	CompanyName string                  `json:"company_name"`
	Ticker      string                  `json:"ticker"`
	Exchange    string                  `json:"exchange,omitempty"`
	// TickerConfidence is the resolver's coarse confidence label.
	TickerConfidence string                  `json:"ticker_confidence,omitempty"`
	News             []fetchnews.NewsItem    `json:"news"`
	Report           analyzesentiment.Report `json:"report"`
	// NewsAvailable is false when the report was produced from the
	// placeholder item only.
	NewsAvailable bool `json:"news_available"`
	// Prompts lists the model prompts issued during the run, in stage
	// order.
	Prompts []Prompt `json:"prompts,omitempty"`
}

type Pipeline struct {
	resolver TickerResolver
	fetcher  NewsFetcher
	analyzer Analyzer
	runlog   *RunLogger
	obs      *observability.Observability
	logger   logger.Logger
}

func New(resolver TickerResolver, fetcher NewsFetcher, analyzer Analyzer, runlog *RunLogger, obs *observability.Observability, log logger.Logger) *Pipeline {
	return &Pipeline{
		resolver: resolver,
		fetcher:  fetcher,
		analyzer: analyzer,
		runlog:   runlog,
		obs:      obs,
		logger: log.With(map[string]interface{}{
			"pipeline": PipelineName,
		}),
	}
}

// Run executes the three stages in order. The pipeline is strictly
// linear: any stage failure fails the run.
func (p *Pipeline) Run(ctx context.Context, company string) (*Result, error) {
	resolved, err := runStage(p, ctx, resolveticker.StageName, func() (*resolveticker.Output, error) {
		return p.resolver.Execute(ctx, &resolveticker.Input{Company: company})
	})
	if err != nil {
		return nil, p.fail(err)
	}

	news, err := runStage(p, ctx, fetchnews.StageName, func() (*fetchnews.Output, error) {
		return p.fetcher.Execute(ctx, &fetchnews.Input{Ticker: resolved.Ticker})
	})
	if err != nil {
		return nil, p.fail(err)
	}

	newsAvailable := false
	articles := make([]analyzesentiment.Article, 0, len(news.Items))
	for _, item := range news.Items {
		if !item.Placeholder {
			newsAvailable = true
		}
		articles = append(articles, analyzesentiment.Article{
			Headline:  item.Headline,
			Source:    item.Source,
			Timestamp: item.Timestamp,
		})
	}

	analyzed, err := runStage(p, ctx, analyzesentiment.StageName, func() (*analyzesentiment.Output, error) {
		return p.analyzer.Execute(ctx, &analyzesentiment.Input{
			Company:  resolved.CompanyName,
			Ticker:   resolved.Ticker,
			Articles: articles,
		})
	})
	if err != nil {
		return nil, p.fail(err)
	}

	result := &Result{
		Company:          company,
		CompanyName:      resolved.CompanyName,
		Ticker:           resolved.Ticker,
		Exchange:         resolved.Exchange,
		TickerConfidence: resolved.Confidence,
		News:             news.Items,
		Report:           analyzed.Report,
		NewsAvailable:    newsAvailable,
		Prompts: []Prompt{
			{Stage: resolveticker.StageName, System: resolved.SystemPrompt, User: resolved.UserPrompt},
			{Stage: analyzesentiment.StageName, System: analyzed.SystemPrompt, User: analyzed.UserPrompt},
		},
	}

	metrics.PipelineRunsCompleted.WithLabelValues(PipelineName).Inc()
	p.runlog.LogRun(ctx, result)

	p.logger.Info("run finished", map[string]interface{}{
		"company":   company,
		"ticker":    result.Ticker,
		"sentiment": result.Report.Sentiment,
	})

	return result, nil
}

func (p *Pipeline) fail(err error) error {
	metrics.PipelineRunsFailed.WithLabelValues(PipelineName, string(errs.CodeOf(err))).Inc()
	return err
}

func runStage[T any](p *Pipeline, ctx context.Context, stage string, fn func() (T, error)) (T, error) {
	start := time.Now()
	out, err := fn()
	elapsed := time.Since(start)

	metrics.PipelineStageDuration.WithLabelValues(PipelineName, stage).Observe(elapsed.Seconds())
	if p.obs != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		p.obs.RecordStage(ctx, PipelineName, stage, status)
		p.obs.RecordStageDuration(ctx, PipelineName, stage, elapsed)
	}
	return out, err
}
