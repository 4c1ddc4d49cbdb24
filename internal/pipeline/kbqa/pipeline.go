// internal/pipeline/kbqa/pipeline.go
package kbqa

import (
	"context"
	"time"

	errs "rag-pipelines/internal/common/errors"
	"rag-pipelines/internal/common/logger"
	"rag-pipelines/internal/common/metrics"
	"rag-pipelines/internal/common/observability"
	critiqueanswer "rag-pipelines/internal/stages/kbqa/critique-answer"
	generateanswer "rag-pipelines/internal/stages/kbqa/generate-answer"
	retrievesnippets "rag-pipelines/internal/stages/kbqa/retrieve-snippets"
)

const PipelineName = "kbqa"

const (
	TraceDirect  = "direct"
	TraceRefined = "refined"
)

type Retriever interface {
	Execute(ctx context.Context, input *retrievesnippets.Input) (*retrievesnippets.Output, error)
}

type Generator interface {
	Execute(ctx context.Context, input *generateanswer.Input) (*generateanswer.Output, error)
}

type Critic interface {
	Execute(ctx context.Context, input *critiqueanswer.Input) (*critiqueanswer.Output, error)
}

type Config struct {
	InitialK int
	ExtraK   int
}

// Prompt is one model prompt pair issued during a run, kept so the
// run record can include the exact prompt text.
type Prompt struct {
	Stage  string `json:"stage"`
	System string `json:"system"`
	User   string `json:"user"`
}

// Result is the full outcome of one question run. FinalAnswer always
// holds something usable when Run returns nil error.
type Result struct {
	Query            string                     `json:"query"`
	Snippets         []retrievesnippets.Snippet `json:"snippets"`
	InitialAnswer    string                     `json:"initial_answer"`
	InitialCitations []string                   `json:"initial_citations"`
	CritiqueVerdict  string                     `json:"critique_verdict"`
	RefinementNeeded bool                       `json:"refinement_needed"`
	RefinedAnswer    string                     `json:"refined_answer,omitempty"`
	RefinedCitations []string                   `json:"refined_citations,omitempty"`
	FinalAnswer      string                     `json:"final_answer"`
	Trace            string                     `json:"trace"`
	// Prompts lists the model prompts issued during the run, in stage
	// order.
	Prompts []Prompt `json:"prompts,omitempty"`
	// Annotations record degradations on the refinement path, such as
	// falling back to the initial answer.
	Annotations []string `json:"annotations,omitempty"`
}

// UsedDocIDs lists the doc IDs of every snippet supplied to the
// generator for the final answer, in retrieval order.
func (r *Result) UsedDocIDs() []string {
	ids := make([]string, 0, len(r.Snippets))
	for _, snippet := range r.Snippets {
		ids = append(ids, snippet.DocID)
	}
	return ids
}

type Pipeline struct {
	config    *Config
	retriever Retriever
	generator Generator
	critic    Critic
	runlog    *RunLogger
	obs       *observability.Observability
	logger    logger.Logger
}

func New(config *Config, retriever Retriever, generator Generator, critic Critic, runlog *RunLogger, obs *observability.Observability, log logger.Logger) *Pipeline {
	return &Pipeline{
		config:    config,
		retriever: retriever,
		generator: generator,
		critic:    critic,
		runlog:    runlog,
		obs:       obs,
		logger: log.With(map[string]interface{}{
			"pipeline": PipelineName,
		}),
	}
}

// Run executes retrieve, answer, critique, and at most one refinement
// cycle. Errors on the mandatory path are fatal; errors on the
// refinement path degrade to the initial answer.
func (p *Pipeline) Run(ctx context.Context, query string) (*Result, error) {
	result := &Result{Query: query, Trace: TraceDirect}

	retrieved, err := runStage(p, ctx, retrievesnippets.StageName, func() (*retrievesnippets.Output, error) {
		return p.retriever.Execute(ctx, &retrievesnippets.Input{Query: query, TopK: p.config.InitialK})
	})
	if err != nil {
		return nil, p.fail(err)
	}
	if len(retrieved.Snippets) == 0 {
		return nil, p.fail(errs.NewNotFoundError("relevant snippets", query))
	}
	result.Snippets = retrieved.Snippets

	initial, err := runStage(p, ctx, generateanswer.StageName, func() (*generateanswer.Output, error) {
		return p.generator.Execute(ctx, &generateanswer.Input{
			Query:    query,
			Snippets: toGeneratorSnippets(retrieved.Snippets),
		})
	})
	if err != nil {
		return nil, p.fail(err)
	}
	result.InitialAnswer = initial.Answer
	result.InitialCitations = initial.Citations
	result.FinalAnswer = initial.Answer
	result.Prompts = append(result.Prompts, Prompt{Stage: generateanswer.StageName, System: initial.SystemPrompt, User: initial.UserPrompt})

	critique, err := runStage(p, ctx, critiqueanswer.StageName, func() (*critiqueanswer.Output, error) {
		return p.critic.Execute(ctx, &critiqueanswer.Input{Query: query, Answer: initial.Answer})
	})
	if err != nil {
		return nil, p.fail(err)
	}
	result.CritiqueVerdict = critique.Verdict
	result.RefinementNeeded = critique.RefinementNeeded
	result.Prompts = append(result.Prompts, Prompt{Stage: critiqueanswer.StageName, System: critique.SystemPrompt, User: critique.UserPrompt})

	if critique.RefinementNeeded {
		p.refine(ctx, result)
	}

	metrics.PipelineRunsCompleted.WithLabelValues(PipelineName).Inc()
	p.runlog.LogRun(ctx, result)

	p.logger.Info("run finished", map[string]interface{}{
		"query":   query,
		"trace":   result.Trace,
		"verdict": result.CritiqueVerdict,
	})

	return result, nil
}

// refine retrieves one unseen snippet and regenerates the answer. Any
// failure here keeps the initial answer and annotates the result; it
// never fails the run.
func (p *Pipeline) refine(ctx context.Context, result *Result) {
	metrics.RefinementCycles.Inc()

	exclude := result.UsedDocIDs()

	extra, err := p.retriever.Execute(ctx, &retrievesnippets.Input{
		Query:   result.Query,
		TopK:    p.config.ExtraK,
		Exclude: exclude,
	})
	if err != nil {
		p.degrade(result, "extra retrieval failed, keeping initial answer", err)
		return
	}
	if len(extra.Snippets) == 0 {
		p.degrade(result, "no unseen snippet available, keeping initial answer", nil)
		return
	}

	// One extra snippet per cycle, and exactly one cycle.
	combined := append(append([]retrievesnippets.Snippet{}, result.Snippets...), extra.Snippets[0])

	refined, err := p.generator.Execute(ctx, &generateanswer.Input{
		Query:          result.Query,
		Snippets:       toGeneratorSnippets(combined),
		Refinement:     true,
		PreviousAnswer: result.InitialAnswer,
	})
	if err != nil {
		p.degrade(result, "refined generation failed, keeping initial answer", err)
		return
	}

	result.Snippets = combined
	result.Prompts = append(result.Prompts, Prompt{Stage: generateanswer.StageName, System: refined.SystemPrompt, User: refined.UserPrompt})
	result.RefinedAnswer = refined.Answer
	result.RefinedCitations = refined.Citations
	result.FinalAnswer = refined.Answer
	result.Trace = TraceRefined
}

func (p *Pipeline) degrade(result *Result, annotation string, err error) {
	fields := map[string]interface{}{"query": result.Query}
	if err != nil {
		fields["error"] = err.Error()
	}
	p.logger.Warn(annotation, fields)
	result.Annotations = append(result.Annotations, annotation)
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

func toGeneratorSnippets(snippets []retrievesnippets.Snippet) []generateanswer.Snippet {
	out := make([]generateanswer.Snippet, 0, len(snippets))
	for _, snippet := range snippets {
		out = append(out, generateanswer.Snippet{
			DocID:         snippet.DocID,
			Question:      snippet.Question,
			AnswerSnippet: snippet.AnswerSnippet,
		})
	}
	return out
}
