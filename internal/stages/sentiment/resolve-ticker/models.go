// internal/stages/sentiment/resolve-ticker/models.go
package resolveticker

type Input struct {
	Company string `json:"company"`
}

type Output struct {
	Ticker      string `json:"ticker"`
	CompanyName string `json:"company_name"`
	Exchange    string `json:"exchange"`
	// Confidence is a coarse label (high/medium/low), not a calibrated
	// probability.
	Confidence string `json:"confidence"`
	// SystemPrompt and UserPrompt echo the exact prompts sent to the
	// model so run records can include them.
	SystemPrompt string `json:"system_prompt,omitempty"`
	UserPrompt   string `json:"user_prompt,omitempty"`
}
