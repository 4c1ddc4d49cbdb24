// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	GenAI       GenAIConfig       `mapstructure:"genai"`
	VectorIndex VectorIndexConfig `mapstructure:"vector_index"`
	Tracking    TrackingConfig    `mapstructure:"tracking"`
	News        NewsConfig        `mapstructure:"news"`
	Cache       CacheConfig       `mapstructure:"cache"`
	KB          KBConfig          `mapstructure:"kb"`
	Pipelines   PipelinesConfig   `mapstructure:"pipelines"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// --- Core App Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// GenAIConfig holds settings for the hosted language-model endpoint.
// Chat completions and embeddings share one endpoint and key.
type GenAIConfig struct {
	BaseURL            string  `mapstructure:"base_url"`
	APIKey             string  `mapstructure:"api_key"`
	ChatModel          string  `mapstructure:"chat_model"`
	EmbeddingModel     string  `mapstructure:"embedding_model"`
	EmbeddingDimension int     `mapstructure:"embedding_dimension"`
	Temperature        float64 `mapstructure:"temperature"`
	Timeout            int     `mapstructure:"timeout"` // milliseconds
	MaxRetries         int     `mapstructure:"max_retries"`
}

// VectorIndexConfig selects and configures the vector index backend.
type VectorIndexConfig struct {
	Backend  string              `mapstructure:"backend"` // "http" or "postgres"
	HTTP     HTTPIndexConfig     `mapstructure:"http"`
	Postgres PostgresIndexConfig `mapstructure:"postgres"`
}

type HTTPIndexConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

type PostgresIndexConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	Table    string `mapstructure:"table"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresIndexConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// TrackingConfig holds settings for the MLflow-compatible tracking server.
type TrackingConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BaseURL        string `mapstructure:"base_url"`
	ExperimentID   string `mapstructure:"experiment_id"`
	ExperimentName string `mapstructure:"experiment_name"`
	Timeout        int    `mapstructure:"timeout"` // milliseconds
}

// NewsConfig holds settings for the financial news feed.
type NewsConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	MaxResults int    `mapstructure:"max_results"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
}

// CacheConfig holds settings for the optional Redis embedding cache.
type CacheConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTL      int    `mapstructure:"ttl"` // seconds
}

// KBConfig holds settings for the knowledge-base file.
type KBConfig struct {
	Path string `mapstructure:"path"`
}

// PipelinesConfig holds per-pipeline tuning.
type PipelinesConfig struct {
	KBQA      KBQAConfig      `mapstructure:"kbqa"`
	Sentiment SentimentConfig `mapstructure:"sentiment"`
}

type KBQAConfig struct {
	InitialK int `mapstructure:"initial_k"`
	ExtraK   int `mapstructure:"extra_k"`
}

type SentimentConfig struct {
	NewsLookbackDays int `mapstructure:"news_lookback_days"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds settings for the optional /metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}
