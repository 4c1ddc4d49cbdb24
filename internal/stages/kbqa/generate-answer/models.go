// internal/stages/kbqa/generate-answer/models.go
package generateanswer

type Snippet struct {
	DocID         string `json:"doc_id"`
	Question      string `json:"question"`
	AnswerSnippet string `json:"answer_snippet"`
}

type Input struct {
	Query    string    `json:"query"`
	Snippets []Snippet `json:"snippets"`
	// Refinement switches to the enhanced-context prompt; PreviousAnswer
	// must be set when it is true.
	Refinement     bool   `json:"refinement,omitempty"`
	PreviousAnswer string `json:"previous_answer,omitempty"`
}

type Output struct {
	Answer string `json:"answer"`
	// Citations are the [KBxxx] doc IDs referenced by the answer, in
	// order of first appearance, restricted to the provided snippets.
	Citations []string `json:"citations"`
	// SystemPrompt and UserPrompt echo the exact prompts sent to the
	// model so run records can include them.
	SystemPrompt string `json:"system_prompt,omitempty"`
	UserPrompt   string `json:"user_prompt,omitempty"`
}
