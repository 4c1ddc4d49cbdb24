// internal/stages/kbqa/critique-answer/config.go
package critiqueanswer

type Config struct {
	// Temperature stays at 0 so the verdict is reproducible.
	Temperature float64
}

func LoadConfig() *Config {
	return &Config{
		Temperature: 0,
	}
}
