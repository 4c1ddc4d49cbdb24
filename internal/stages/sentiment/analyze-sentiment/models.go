// internal/stages/sentiment/analyze-sentiment/models.go
package analyzesentiment

const (
	SentimentPositive = "Positive"
	SentimentNeutral  = "Neutral"
	SentimentNegative = "Negative"
)

type Article struct {
	Headline  string `json:"headline"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
}

type Input struct {
	Company  string    `json:"company"`
	Ticker   string    `json:"ticker"`
	Articles []Article `json:"articles"`
}

// Report is the structured sentiment document produced by the model.
type Report struct {
	CompanyName            string   `json:"company_name"`
	StockCode              string   `json:"stock_code"`
	NewsDesc               string   `json:"newsdesc"`
	Sentiment              string   `json:"sentiment"`
	PeopleNames            []string `json:"people_names"`
	PlacesNames            []string `json:"places_names"`
	OtherCompaniesReferred []string `json:"other_companies_referred"`
	RelatedIndustries      []string `json:"related_industries"`
	MarketImplications     string   `json:"market_implications"`
	ConfidenceScore        float64  `json:"confidence_score"`
}

type Output struct {
	Report Report `json:"report"`
	// SystemPrompt and UserPrompt echo the exact prompts sent to the
	// model so run records can include them.
	SystemPrompt string `json:"system_prompt,omitempty"`
	UserPrompt   string `json:"user_prompt,omitempty"`
}
