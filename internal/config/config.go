package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Sources   SourcesConfig   `yaml:"sources" mapstructure:"sources"`
	Collect   CollectConfig   `yaml:"collect" mapstructure:"collect"`
	Resolve   ResolveConfig   `yaml:"resolve" mapstructure:"resolve"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Titles    TitlesConfig    `yaml:"titles" mapstructure:"titles"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// CollectConfig configures orchestration timeouts.
type CollectConfig struct {
	SourceTimeoutSecs int `yaml:"source_timeout_secs" mapstructure:"source_timeout_secs"`
	JobTimeoutSecs    int `yaml:"job_timeout_secs" mapstructure:"job_timeout_secs"`
	MaxRetries        int `yaml:"max_retries" mapstructure:"max_retries"`
}

// SourceTimeout returns the per-source task timeout.
func (c CollectConfig) SourceTimeout() time.Duration {
	return time.Duration(c.SourceTimeoutSecs) * time.Second
}

// JobTimeout returns the per-job timeout covering all source tasks.
func (c CollectConfig) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutSecs) * time.Second
}

// SourcesConfig configures where candidate extraction comes from. When
// ExtractorURL is set the engine calls the external extraction service;
// otherwise CandidatesDir serves pre-extracted JSON from disk.
type SourcesConfig struct {
	ExtractorURL  string `yaml:"extractor_url" mapstructure:"extractor_url"`
	CandidatesDir string `yaml:"candidates_dir" mapstructure:"candidates_dir"`
	UserAgent     string `yaml:"user_agent" mapstructure:"user_agent"`
}

// ResolveConfig configures entity-resolution thresholds.
type ResolveConfig struct {
	NameSimilarityThreshold    float64 `yaml:"name_similarity_threshold" mapstructure:"name_similarity_threshold"`
	CompanySimilarityThreshold float64 `yaml:"company_similarity_threshold" mapstructure:"company_similarity_threshold"`
	AmbiguousConfidence        float64 `yaml:"ambiguous_confidence" mapstructure:"ambiguous_confidence"`
}

// RateLimitConfig configures the per-domain shared token buckets.
type RateLimitConfig struct {
	DefaultRPS   float64            `yaml:"default_rps" mapstructure:"default_rps"`
	DefaultBurst int                `yaml:"default_burst" mapstructure:"default_burst"`
	Domains      map[string]float64 `yaml:"domains" mapstructure:"domains"`
}

// BatchConfig configures multi-company processing.
type BatchConfig struct {
	MaxConcurrentCompanies int `yaml:"max_concurrent_companies" mapstructure:"max_concurrent_companies"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TitlesConfig points at an optional taxonomy override file; when empty
// the embedded taxonomy is used.
type TitlesConfig struct {
	TaxonomyPath string `yaml:"taxonomy_path" mapstructure:"taxonomy_path"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ORGINTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "org-intel.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.max_concurrent_companies", 5)
	v.SetDefault("collect.source_timeout_secs", 60)
	v.SetDefault("collect.job_timeout_secs", 600)
	v.SetDefault("collect.max_retries", 3)
	v.SetDefault("resolve.name_similarity_threshold", 0.85)
	v.SetDefault("resolve.company_similarity_threshold", 0.85)
	v.SetDefault("resolve.ambiguous_confidence", 0.4)
	v.SetDefault("rate_limit.default_rps", 2.0)
	v.SetDefault("rate_limit.default_burst", 4)
	v.SetDefault("sources.candidates_dir", "candidates")
	v.SetDefault("sources.user_agent", "org-intel/1.0")

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
