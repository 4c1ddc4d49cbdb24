// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like GENAI_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, ignored when absent.
	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders left in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// overrideEmptyConfig backfills secrets from the environment when the YAML
// left them empty.
func overrideEmptyConfig(cfg *Config) {
	if cfg.GenAI.APIKey == "" {
		if val := os.Getenv("GENAI_API_KEY"); val != "" {
			cfg.GenAI.APIKey = val
		}
	}
	if cfg.VectorIndex.HTTP.APIKey == "" {
		if val := os.Getenv("VECTOR_INDEX_API_KEY"); val != "" {
			cfg.VectorIndex.HTTP.APIKey = val
		}
	}
	if cfg.News.APIKey == "" {
		if val := os.Getenv("NEWS_API_KEY"); val != "" {
			cfg.News.APIKey = val
		}
	}
	if cfg.VectorIndex.Postgres.Password == "" {
		if val := os.Getenv("VECTOR_INDEX_PG_PASSWORD"); val != "" {
			cfg.VectorIndex.Postgres.Password = val
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "rag-pipelines"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.GenAI.ChatModel == "" {
		cfg.GenAI.ChatModel = "gpt-4o-mini"
	}
	if cfg.GenAI.EmbeddingModel == "" {
		cfg.GenAI.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.GenAI.EmbeddingDimension == 0 {
		cfg.GenAI.EmbeddingDimension = 1536
	}
	if cfg.GenAI.Timeout == 0 {
		cfg.GenAI.Timeout = 30000
	}
	if cfg.GenAI.MaxRetries == 0 {
		cfg.GenAI.MaxRetries = 2
	}
	if cfg.VectorIndex.Backend == "" {
		cfg.VectorIndex.Backend = "http"
	}
	if cfg.VectorIndex.HTTP.Timeout == 0 {
		cfg.VectorIndex.HTTP.Timeout = 10000
	}
	if cfg.VectorIndex.Postgres.Table == "" {
		cfg.VectorIndex.Postgres.Table = "kb_vectors"
	}
	if cfg.VectorIndex.Postgres.SSLMode == "" {
		cfg.VectorIndex.Postgres.SSLMode = "disable"
	}
	if cfg.Tracking.Timeout == 0 {
		cfg.Tracking.Timeout = 5000
	}
	if cfg.Tracking.ExperimentName == "" {
		cfg.Tracking.ExperimentName = "agentic-rag"
	}
	if cfg.News.MaxResults == 0 {
		cfg.News.MaxResults = 10
	}
	if cfg.News.Timeout == 0 {
		cfg.News.Timeout = 10000
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 3600
	}
	if cfg.KB.Path == "" {
		cfg.KB.Path = "data/kb_snippets.json"
	}
	if cfg.Pipelines.KBQA.InitialK == 0 {
		cfg.Pipelines.KBQA.InitialK = 5
	}
	if cfg.Pipelines.KBQA.ExtraK == 0 {
		cfg.Pipelines.KBQA.ExtraK = 1
	}
	if cfg.Pipelines.Sentiment.NewsLookbackDays == 0 {
		cfg.Pipelines.Sentiment.NewsLookbackDays = 7
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":9102"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.GenAI.BaseURL == "" {
		return fmt.Errorf("genai.base_url is required")
	}
	switch cfg.VectorIndex.Backend {
	case "http":
		if cfg.VectorIndex.HTTP.BaseURL == "" {
			return fmt.Errorf("vector_index.http.base_url is required for the http backend")
		}
	case "postgres":
		if cfg.VectorIndex.Postgres.Host == "" {
			return fmt.Errorf("vector_index.postgres.host is required for the postgres backend")
		}
	default:
		return fmt.Errorf("vector_index.backend must be \"http\" or \"postgres\", got %q", cfg.VectorIndex.Backend)
	}
	if cfg.Tracking.Enabled && cfg.Tracking.BaseURL == "" {
		return fmt.Errorf("tracking.base_url is required when tracking is enabled")
	}
	return nil
}
