// internal/stages/sentiment/fetch-news/config.go
package fetchnews

import "time"

type Config struct {
	BaseURL    string
	APIKey     string
	MaxResults int
	// LookbackDays bounds how far back the feed query reaches; zero
	// disables the bound.
	LookbackDays int
	Timeout      time.Duration
}

func LoadConfig() *Config {
	return &Config{
		MaxResults:   10,
		LookbackDays: 7,
		Timeout:      15 * time.Second,
	}
}
