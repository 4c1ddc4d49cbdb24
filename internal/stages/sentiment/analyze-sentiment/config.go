// internal/stages/sentiment/analyze-sentiment/config.go
package analyzesentiment

type Config struct {
	Temperature float64
}

func LoadConfig() *Config {
	return &Config{
		Temperature: 0,
	}
}
