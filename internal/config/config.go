package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/audit"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Audit     audit.Rules     `yaml:"audit" mapstructure:"audit"`
	Registry  RegistryConfig  `yaml:"registry" mapstructure:"registry"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings for the vision engine.
type AnthropicConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	Model         string `yaml:"model" mapstructure:"model"`
	PromptVersion string `yaml:"prompt_version" mapstructure:"prompt_version"`
	MaxTokens     int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PipelineConfig configures batch extraction.
type PipelineConfig struct {
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
	// Precedence breaks confidence ties between providers, best first.
	Precedence []string `yaml:"precedence" mapstructure:"precedence"`
}

// RegistryConfig points at an optional field registry file. When Path is
// empty the built-in Darwin Core enumeration is used.
type RegistryConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// IngestConfig configures image sources.
type IngestConfig struct {
	FTPAddr    string `yaml:"ftp_addr" mapstructure:"ftp_addr"`
	FTPUser    string `yaml:"ftp_user" mapstructure:"ftp_user"`
	FTPPass    string `yaml:"ftp_pass" mapstructure:"ftp_pass"`
	FTPRoot    string `yaml:"ftp_root" mapstructure:"ftp_root"`
	TimeoutSec int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ServerConfig configures the review API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HERBARIUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "herbarium.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.prompt_version", "v1")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.rate_limit", 2.0)
	v.SetDefault("pipeline.burst", 4)
	v.SetDefault("pipeline.precedence", []string{"anthropic"})
	v.SetDefault("ingest.timeout_secs", 30)

	def := audit.DefaultRules()
	v.SetDefault("audit.core_fields", def.CoreFields)
	v.SetDefault("audit.date_fields", def.DateFields)
	v.SetDefault("audit.year_min", def.YearMin)
	v.SetDefault("audit.year_max", def.YearMax)
	v.SetDefault("audit.catalog_pattern", def.CatalogPattern)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
