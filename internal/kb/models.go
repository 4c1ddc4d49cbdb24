// internal/kb/models.go
package kb

// Entry is one knowledge base snippet as stored in the corpus file.
type Entry struct {
	DocID               string `json:"doc_id"`
	Question            string `json:"question"`
	AnswerSnippet       string `json:"answer_snippet"`
	Source              string `json:"source"`
	ConfidenceIndicator string `json:"confidence_indicator"`
	LastUpdated         string `json:"last_updated"`
}

// EmbeddingText returns the text that gets embedded for this entry. The
// question and answer are concatenated so the vector captures both the
// phrasing users search with and the content that answers it.
func (e Entry) EmbeddingText() string {
	return e.Question + " " + e.AnswerSnippet
}
