// internal/stages/kbqa/retrieve-snippets/config.go
package retrievesnippets

type Config struct {
	TopK int
}

func LoadConfig() *Config {
	return &Config{
		TopK: 5,
	}
}
