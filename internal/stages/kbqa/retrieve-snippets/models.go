// internal/stages/kbqa/retrieve-snippets/models.go
package retrievesnippets

type Input struct {
	Query string `json:"query"`
	// TopK overrides the configured fan-out when > 0.
	TopK int `json:"top_k,omitempty"`
	// Exclude lists doc IDs already shown to the model; matches with
	// these IDs are dropped before ranking.
	Exclude []string `json:"exclude,omitempty"`
}

type Snippet struct {
	DocID         string  `json:"doc_id"`
	Question      string  `json:"question"`
	AnswerSnippet string  `json:"answer_snippet"`
	Source        string  `json:"source"`
	Score         float64 `json:"score"`
}

type Output struct {
	Snippets []Snippet `json:"snippets"`
}
