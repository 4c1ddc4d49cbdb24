// internal/stages/kbqa/generate-answer/config.go
package generateanswer

type Config struct {
	Temperature float64
}

func LoadConfig() *Config {
	return &Config{
		Temperature: 0,
	}
}
