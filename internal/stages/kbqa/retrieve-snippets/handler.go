// internal/stages/kbqa/retrieve-snippets/handler.go
package retrievesnippets

import (
	"context"
	"sort"
	"strings"

	errs "rag-pipelines/internal/common/errors"
	"rag-pipelines/internal/common/logger"
	"rag-pipelines/internal/common/vectorindex"
	"rag-pipelines/internal/kb"
)

const (
	StageName = "retrieve-snippets"
)

// Embedder turns query text into a vector in the corpus embedding space.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type Handler struct {
	config   *Config
	embedder Embedder
	store    vectorindex.Store
	corpus   *kb.Corpus
	logger   logger.Logger
}

func NewHandler(config *Config, embedder Embedder, store vectorindex.Store, corpus *kb.Corpus, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		embedder: embedder,
		store:    store,
		corpus:   corpus,
		logger: log.With(map[string]interface{}{
			"stage": StageName,
		}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, errs.NewValidationError("query must not be empty", "")
	}

	k := input.TopK
	if k <= 0 {
		k = h.config.TopK
	}

	vector, err := h.embedder.EmbedQuery(ctx, input.Query)
	if err != nil {
		return nil, err
	}

	// Over-fetch by the exclusion count so dropped matches do not
	// shrink the result set below k.
	matches, err := h.store.Query(ctx, vector, k+len(input.Exclude))
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool, len(input.Exclude))
	for _, id := range input.Exclude {
		excluded[id] = true
	}

	snippets := make([]Snippet, 0, k)
	for _, match := range matches {
		if excluded[match.ID] {
			continue
		}
		entry, ok := h.corpus.Get(match.ID)
		if !ok {
			// The index can lag behind the corpus file; a match the
			// corpus no longer knows about is unusable as context.
			h.logger.Warn("index returned doc_id not present in corpus", map[string]interface{}{
				"docId": match.ID,
			})
			continue
		}
		snippets = append(snippets, Snippet{
			DocID:         entry.DocID,
			Question:      entry.Question,
			AnswerSnippet: entry.AnswerSnippet,
			Source:        entry.Source,
			Score:         match.Score,
		})
	}

	sort.SliceStable(snippets, func(i, j int) bool {
		if snippets[i].Score != snippets[j].Score {
			return snippets[i].Score > snippets[j].Score
		}
		return snippets[i].DocID < snippets[j].DocID
	})

	if len(snippets) > k {
		snippets = snippets[:k]
	}

	h.logger.Info("retrieved snippets", map[string]interface{}{
		"query":     input.Query,
		"requested": k,
		"returned":  len(snippets),
	})

	return &Output{Snippets: snippets}, nil
}
