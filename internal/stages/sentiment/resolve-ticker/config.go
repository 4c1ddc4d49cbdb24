// internal/stages/sentiment/resolve-ticker/config.go
package resolveticker

type Config struct {
	Temperature float64
}

func LoadConfig() *Config {
	return &Config{
		Temperature: 0,
	}
}
