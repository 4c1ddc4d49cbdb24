// internal/stages/kbqa/critique-answer/models.go
package critiqueanswer

const (
	VerdictComplete = "COMPLETE"
	VerdictRefine   = "REFINE"
)

type Input struct {
	Query  string `json:"query"`
	Answer string `json:"answer"`
}

type Output struct {
	Verdict          string `json:"verdict"`
	RefinementNeeded bool   `json:"refinement_needed"`
	// SystemPrompt and UserPrompt echo the exact prompts sent to the
	// model so run records can include them.
	SystemPrompt string `json:"system_prompt,omitempty"`
	UserPrompt   string `json:"user_prompt,omitempty"`
}
