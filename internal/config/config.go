// Package config loads and validates the application configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port string
}

// LoggingConfig holds the slog handler settings.
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// AIConfig holds everything needed to talk to the LLM provider.
type AIConfig struct {
	APIKey          string
	BaseURL         string
	DefaultModel    string
	FallbackModel   string
	Temperature     float32
	MaxOutputTokens int
	RequestTimeout  time.Duration

	// ContextWindow is the default model context window in tokens, used when
	// the model catalog has no entry for the selected model.
	ContextWindow int
	// PromptOverhead reserves tokens for the template text around the diffs.
	PromptOverhead int
	// CatalogPath optionally points at a YAML file with per-model budgets.
	CatalogPath string
}

// ReviewConfig bounds one review run.
type ReviewConfig struct {
	Timeout            time.Duration
	MaxFiles           int
	MaxConcurrentCalls int
	MaxWorkers         int
}

// CacheConfig holds the optional Redis result cache settings. An empty Addr
// disables caching.
type CacheConfig struct {
	Addr string
	TTL  time.Duration
}

// DBConfig holds the optional Postgres review history settings. An empty
// Host disables persistence.
type DBConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Config is the immutable application configuration, passed explicitly into
// the pipeline's entry points.
type Config struct {
	Server   ServerConfig
	Logging  LoggingConfig
	AI       AIConfig
	Review   ReviewConfig
	Cache    CacheConfig
	Database DBConfig

	// DefaultGitLabURL is used by the CLI when no host is given.
	DefaultGitLabURL string
}

// LoadConfig reads configuration from environment variables and a .env file,
// sets sensible defaults, and validates required fields. It uses the Viper
// library to handle configuration loading and precedence.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LOG_OUTPUT", "stdout")

	v.SetDefault("DEFAULT_AI_MODEL", "gpt-4o")
	v.SetDefault("FALLBACK_AI_MODEL", "gpt-4o-mini")
	v.SetDefault("AI_TEMPERATURE", 0.2)
	v.SetDefault("AI_MAX_OUTPUT_TOKENS", 4000)
	v.SetDefault("AI_REQUEST_TIMEOUT", "120s")
	v.SetDefault("AI_CONTEXT_WINDOW", 32000)
	v.SetDefault("AI_PROMPT_OVERHEAD", 1500)

	v.SetDefault("REVIEW_TIMEOUT", "300s")
	v.SetDefault("MAX_FILES_PER_REVIEW", 50)
	v.SetDefault("MAX_CONCURRENT_CALLS", 5)
	v.SetDefault("MAX_WORKERS", 5)

	v.SetDefault("CACHE_TTL", "168h")
	v.SetDefault("DEFAULT_GITLAB_URL", "https://gitlab.com")

	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("DB_CONN_MAX_IDLE_TIME", "5m")

	if err := v.ReadInConfig(); err != nil {
		// A missing .env is fine; a broken one is not.
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("SERVER_PORT"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
			Output: v.GetString("LOG_OUTPUT"),
		},
		AI: AIConfig{
			APIKey:          v.GetString("OPENAI_API_KEY"),
			BaseURL:         v.GetString("OPENAI_API_BASE"),
			DefaultModel:    v.GetString("DEFAULT_AI_MODEL"),
			FallbackModel:   v.GetString("FALLBACK_AI_MODEL"),
			Temperature:     float32(v.GetFloat64("AI_TEMPERATURE")),
			MaxOutputTokens: v.GetInt("AI_MAX_OUTPUT_TOKENS"),
			RequestTimeout:  v.GetDuration("AI_REQUEST_TIMEOUT"),
			ContextWindow:   v.GetInt("AI_CONTEXT_WINDOW"),
			PromptOverhead:  v.GetInt("AI_PROMPT_OVERHEAD"),
			CatalogPath:     v.GetString("MODEL_CATALOG_PATH"),
		},
		Review: ReviewConfig{
			Timeout:            v.GetDuration("REVIEW_TIMEOUT"),
			MaxFiles:           v.GetInt("MAX_FILES_PER_REVIEW"),
			MaxConcurrentCalls: v.GetInt("MAX_CONCURRENT_CALLS"),
			MaxWorkers:         v.GetInt("MAX_WORKERS"),
		},
		Cache: CacheConfig{
			Addr: v.GetString("REDIS_ADDR"),
			TTL:  v.GetDuration("CACHE_TTL"),
		},
		Database: DBConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			Username:        v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Database:        v.GetString("DB_NAME"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: v.GetDuration("DB_CONN_MAX_IDLE_TIME"),
		},
		DefaultGitLabURL: v.GetString("DEFAULT_GITLAB_URL"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and bounds.
func (c *Config) Validate() error {
	if c.AI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY must be set")
	}
	if c.AI.DefaultModel == "" {
		return fmt.Errorf("DEFAULT_AI_MODEL must not be empty")
	}
	if c.AI.ContextWindow <= c.AI.MaxOutputTokens+c.AI.PromptOverhead {
		return fmt.Errorf("AI_CONTEXT_WINDOW (%d) must exceed output tokens plus prompt overhead (%d)",
			c.AI.ContextWindow, c.AI.MaxOutputTokens+c.AI.PromptOverhead)
	}
	if c.Review.MaxConcurrentCalls <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_CALLS must be positive")
	}
	if c.Review.MaxFiles <= 0 {
		return fmt.Errorf("MAX_FILES_PER_REVIEW must be positive")
	}
	return nil
}

// CacheEnabled reports whether the Redis result cache is configured.
func (c *Config) CacheEnabled() bool {
	return c.Cache.Addr != ""
}

// DatabaseEnabled reports whether the review history store is configured.
func (c *Config) DatabaseEnabled() bool {
	return c.Database.Host != ""
}
