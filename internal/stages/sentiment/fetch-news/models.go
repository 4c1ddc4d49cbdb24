// internal/stages/sentiment/fetch-news/models.go
package fetchnews

type Input struct {
	Ticker string `json:"ticker"`
	// Limit overrides the configured result cap when > 0.
	Limit int `json:"limit,omitempty"`
}

type NewsItem struct {
	Headline  string `json:"headline"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
	// Placeholder marks the synthetic item emitted when the feed has no
	// coverage for the ticker; downstream stages must not treat it as a
	// real headline.
	Placeholder bool `json:"placeholder,omitempty"`
}

type Output struct {
	Items []NewsItem `json:"items"`
}
