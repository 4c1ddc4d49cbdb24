// internal/stages/kbqa/generate-answer/handler.go
package generateanswer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	errs "rag-pipelines/internal/common/errors"
	"rag-pipelines/internal/common/logger"
	"rag-pipelines/internal/common/metrics"
)

const (
	StageName = "generate-answer"

	systemPrompt = `You are a helpful assistant that answers questions using provided knowledge base snippets.
Always cite sources using [KBxxx] format where xxx is the document ID.
Provide comprehensive answers based only on the given information.`

	refinementSystemPrompt = `You are a helpful assistant that answers questions using provided knowledge base snippets.
Always cite sources using [KBxxx] format. Provide comprehensive answers based only on the given information.
This is a refined answer, so ensure it addresses the question completely.`
)

var citationPattern = regexp.MustCompile(`\[(KB\d+)\]`)

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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, errs.NewValidationError("query must not be empty", "")
	}
	if len(input.Snippets) == 0 {
		return nil, errs.NewValidationError("at least one snippet is required", "")
	}
	if input.Refinement && strings.TrimSpace(input.PreviousAnswer) == "" {
		return nil, errs.NewValidationError("previous answer is required for refinement", "")
	}

	system, user := h.buildPrompts(input)

	answer, err := h.llm.Complete(ctx, system, user, h.config.Temperature)
	if err != nil {
		return nil, err
	}

	citations := h.extractCitations(answer, input.Snippets)

	h.logger.Info("generated answer", map[string]interface{}{
		"answerLength": len(answer),
		"citations":    len(citations),
		"refinement":   input.Refinement,
	})

	return &Output{
		Answer:       answer,
		Citations:    citations,
		SystemPrompt: system,
		UserPrompt:   user,
	}, nil
}

func (h *Handler) buildPrompts(input *Input) (string, string) {
	contextParts := make([]string, 0, len(input.Snippets))
	for _, snippet := range input.Snippets {
		contextParts = append(contextParts, fmt.Sprintf("[%s] %s: %s", snippet.DocID, snippet.Question, snippet.AnswerSnippet))
	}
	context := strings.Join(contextParts, "\n\n")

	if input.Refinement {
		user := fmt.Sprintf(
			"Enhanced Knowledge Base Context:\n%s\n\nOriginal Question: %s\n\nOriginal Answer: %s\n\nPlease provide a COMPLETE and ENHANCED answer using all available information with [KBxxx] citations.",
			context, input.Query, input.PreviousAnswer,
		)
		return refinementSystemPrompt, user
	}

	user := fmt.Sprintf(
		"Knowledge Base Context:\n%s\n\nQuestion: %s\n\nPlease provide a comprehensive answer with [KBxxx] citations.",
		context, input.Query,
	)
	return systemPrompt, user
}

// extractCitations returns the cited doc IDs in order of first
// appearance. Citations that do not match a provided snippet are
// dropped rather than surfaced to callers.
func (h *Handler) extractCitations(answer string, snippets []Snippet) []string {
	known := make(map[string]bool, len(snippets))
	for _, snippet := range snippets {
		known[snippet.DocID] = true
	}

	seen := make(map[string]bool)
	var citations []string
	for _, groups := range citationPattern.FindAllStringSubmatch(answer, -1) {
		docID := groups[1]
		if seen[docID] {
			continue
		}
		seen[docID] = true

		if !known[docID] {
			metrics.HallucinatedCitations.Inc()
			h.logger.Warn("answer cites doc_id outside provided context", map[string]interface{}{
				"docId": docID,
			})
			continue
		}
		citations = append(citations, docID)
	}
	return citations
}
