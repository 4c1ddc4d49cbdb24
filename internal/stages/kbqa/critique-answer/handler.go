// internal/stages/kbqa/critique-answer/handler.go
package critiqueanswer

import (
	"context"
	"fmt"
	"strings"

	errs "rag-pipelines/internal/common/errors"
	"rag-pipelines/internal/common/logger"
)

const (
	StageName = "critique-answer"

	critiqueSystemPrompt = "You are an objective critique assistant. Evaluate answers based on completeness and accuracy."
)

// LLM produces a completion for a system/user prompt pair.
type LLM interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
}

type Handler struct {
	config *Config
	llm    LLM
	logger logger.Logger
}

func NewHandler(config *Config, llm LLM, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		llm:    llm,
		logger: log.With(map[string]interface{}{
			"stage": StageName,
		}),
	}
}

// Execute asks the model whether the answer fully addresses the query.
// A failed model call is returned as an error so the caller can abort
// the run. The verdict itself fails safe: a successful response that is
// neither COMPLETE nor REFINE is treated as needing refinement so an
// incomplete answer is never silently accepted.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, errs.NewValidationError("query must not be empty", "")
	}
	if strings.TrimSpace(input.Answer) == "" {
		return nil, errs.NewValidationError("answer must not be empty", "")
	}

	userPrompt := fmt.Sprintf(
		"Evaluate if this answer is COMPLETE or needs REFINEMENT:\n\nQuestion: %s\n\nAnswer: %s\n\nRespond with ONLY one word:\n- \"COMPLETE\" if answer fully addresses question\n- \"REFINE\" if needs additional information\n\nVerdict:",
		input.Query, input.Answer,
	)

	raw, err := h.llm.Complete(ctx, critiqueSystemPrompt, userPrompt, h.config.Temperature)
	if err != nil {
		return nil, err
	}

	verdict := parseVerdict(raw)
	if verdict == "" {
		h.logger.Warn("unparseable critique verdict, requesting refinement", map[string]interface{}{
			"raw": raw,
		})
		verdict = VerdictRefine
	}

	h.logger.Info("critique verdict", map[string]interface{}{
		"verdict": verdict,
	})

	return &Output{
		Verdict:          verdict,
		RefinementNeeded: verdict == VerdictRefine,
		SystemPrompt:     critiqueSystemPrompt,
		UserPrompt:       userPrompt,
	}, nil
}

// parseVerdict normalizes the model response. COMPLETE is checked first
// because REFINEMENT contains REFINE as a substring.
func parseVerdict(raw string) string {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case strings.Contains(normalized, VerdictComplete):
		return VerdictComplete
	case strings.Contains(normalized, VerdictRefine):
		return VerdictRefine
	default:
		return ""
	}
}
