// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (LICIUM_ prefix, runtime override)
//  2. Config file (~/.licium/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Embedding: embedding provider records (kind, endpoint, credential, model)
//   - Storage: PostgreSQL connection (see storage.go)
//   - Scraper: web enrichment fetch limits
//
// Security: credentials are never logged. Validation uses sentinel errors so
// callers can check categories with errors.Is().
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates a provider requires a credential that was not supplied.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProviderKind indicates an unknown embedding provider kind.
	ErrInvalidProviderKind = errors.New("invalid provider kind")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidQueueSize indicates the indexing queue size is not positive.
	ErrInvalidQueueSize = errors.New("invalid queue size")
)

// Embedding provider kinds accepted in EmbeddingProvider.Kind.
const (
	// KindOpenAI is a hosted OpenAI-compatible API (api.openai.com or compatible).
	KindOpenAI = "openai"

	// KindOllama is a local Ollama daemon.
	KindOllama = "ollama"

	// KindTransformers is a self-hosted text-embeddings-inference (TEI) server.
	KindTransformers = "transformers"

	// KindCustom is an OpenAI-compatible server at a custom base URL.
	KindCustom = "custom"
)

// EmbeddingProvider names an embedding backend and its connection parameters.
// It is supplied by the application's settings layer; this subsystem only
// consumes it to select provider behavior.
type EmbeddingProvider struct {
	Kind    string `mapstructure:"kind" json:"kind"`
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	APIKey  string `mapstructure:"api_key" json:"-"`
	Model   string `mapstructure:"model" json:"model"`
}

// Validate checks the provider record for the supplied kind.
func (p *EmbeddingProvider) Validate() error {
	switch p.Kind {
	case KindOpenAI:
		if p.APIKey == "" {
			return fmt.Errorf("%w: provider kind %q requires api_key", ErrMissingAPIKey, p.Kind)
		}
	case KindOllama, KindTransformers:
		// Local servers need no credential; empty base URL falls back to defaults.
	case KindCustom:
		// Custom endpoints may or may not require a key; the server decides.
	default:
		return fmt.Errorf("%w: %q (expected openai, ollama, transformers or custom)", ErrInvalidProviderKind, p.Kind)
	}
	return nil
}

// Config stores the RAG subsystem configuration.
type Config struct {
	// Embedding is the explicitly configured embedding provider (may be nil).
	Embedding *EmbeddingProvider `mapstructure:"embedding" json:"embedding"`

	// Chat is the active chat provider's configuration, used as an
	// indexing/query-time fallback when no embedding provider is set.
	Chat *EmbeddingProvider `mapstructure:"chat" json:"chat"`

	// PostgreSQL connection settings.
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"`
	PostgresDBName   string `mapstructure:"postgres_dbname" json:"postgres_dbname"`
	PostgresSSLMode  string `mapstructure:"postgres_sslmode" json:"postgres_sslmode"`

	// Scraper controls web enrichment fetching.
	Scraper ScraperConfig `mapstructure:"scraper" json:"scraper"`

	// QueueSize is the indexing queue buffer size.
	QueueSize int `mapstructure:"queue_size" json:"queue_size"`
}

// ScraperConfig controls web page fetching during enrichment.
type ScraperConfig struct {
	TimeoutMs int    `mapstructure:"timeout_ms" json:"timeout_ms"`
	UserAgent string `mapstructure:"user_agent" json:"user_agent"`
}

// Load reads configuration from file, environment and defaults.
func Load() (*Config, error) {
	configDir, err := configDirectory()
	if err != nil {
		return nil, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	viper.SetEnvPrefix("LICIUM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Missing file is fine; env and defaults apply.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks all configured values.
func (c *Config) Validate() error {
	if c.Embedding != nil {
		if err := c.Embedding.Validate(); err != nil {
			return fmt.Errorf("embedding provider: %w", err)
		}
	}
	if c.Chat != nil {
		if err := c.Chat.Validate(); err != nil {
			return fmt.Errorf("chat provider: %w", err)
		}
	}
	if c.PostgresHost == "" {
		return ErrInvalidPostgresHost
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return ErrInvalidPostgresDBName
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidQueueSize, c.QueueSize)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "licium")
	viper.SetDefault("postgres_dbname", "licium")
	viper.SetDefault("postgres_sslmode", "disable")
	viper.SetDefault("scraper.timeout_ms", 3000)
	viper.SetDefault("scraper.user_agent", "Mozilla/5.0 (compatible; LiciumBot/1.0)")
	viper.SetDefault("queue_size", 64)
}

// configDirectory returns ~/.licium, creating it if needed.
func configDirectory() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".licium")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}
