// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Sessions  SessionsConfig  `mapstructure:"sessions"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Publisher PublisherConfig `mapstructure:"publisher"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ScraperConfig governs task execution and retention behavior.
type ScraperConfig struct {
	UserAgent          string `mapstructure:"user_agent"`
	BaseURL            string `mapstructure:"base_url"`
	MaxPagesCap        int    `mapstructure:"max_pages_cap"`
	DefaultPages       int    `mapstructure:"default_pages"`
	PageTimeoutSeconds int    `mapstructure:"page_timeout_seconds"`
	PageRetries        int    `mapstructure:"page_retries"`
	DelayMinMs         int    `mapstructure:"delay_min_ms"`
	DelayMaxMs         int    `mapstructure:"delay_max_ms"`
	RetentionMinutes   int    `mapstructure:"retention_minutes"`
	HistoryLimit       int    `mapstructure:"history_limit"`
}

// HeadlessConfig configures the browser-driven extractor. When disabled the
// service scrapes with plain HTTP.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// SessionsConfig selects the durable session mirror.
type SessionsConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
}

// ArchiveConfig selects where finished results are stored.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PublisherConfig holds metadata for completion-event publishing.
type PublisherConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("scraper.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("scraper.base_url", "https://www.jumia.co.ke")
	v.SetDefault("scraper.max_pages_cap", 50)
	v.SetDefault("scraper.default_pages", 5)
	v.SetDefault("scraper.page_timeout_seconds", 20)
	v.SetDefault("scraper.page_retries", 1)
	v.SetDefault("scraper.delay_min_ms", 1000)
	v.SetDefault("scraper.delay_max_ms", 4000)
	v.SetDefault("scraper.retention_minutes", 60)
	v.SetDefault("scraper.history_limit", 50)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 30)
	v.SetDefault("sessions.provider", "noop")
	v.SetDefault("archive.provider", "memory")
	v.SetDefault("archive.prefix", "results")
	v.SetDefault("publisher.provider", "memory")
	v.SetDefault("publisher.topic", "scrape-events")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scraper.MaxPagesCap <= 0 {
		return fmt.Errorf("scraper.max_pages_cap must be > 0")
	}
	if c.Scraper.PageTimeoutSeconds <= 0 {
		return fmt.Errorf("scraper.page_timeout_seconds must be > 0")
	}
	if c.Scraper.DelayMinMs > c.Scraper.DelayMaxMs {
		return fmt.Errorf("scraper.delay_min_ms must be <= scraper.delay_max_ms")
	}
	if c.Scraper.RetentionMinutes <= 0 {
		return fmt.Errorf("scraper.retention_minutes must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	switch c.Sessions.Provider {
	case "noop", "memory":
	case "postgres":
		if c.Sessions.DSN == "" {
			return fmt.Errorf("sessions.dsn is required for the postgres provider")
		}
	default:
		return fmt.Errorf("unknown sessions.provider %q", c.Sessions.Provider)
	}
	switch c.Archive.Provider {
	case "memory":
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket is required for the gcs provider")
		}
	default:
		return fmt.Errorf("unknown archive.provider %q", c.Archive.Provider)
	}
	switch c.Publisher.Provider {
	case "memory":
	case "pubsub":
		if c.Publisher.ProjectID == "" || c.Publisher.Topic == "" {
			return fmt.Errorf("publisher.project_id and publisher.topic are required for the pubsub provider")
		}
	default:
		return fmt.Errorf("unknown publisher.provider %q", c.Publisher.Provider)
	}
	return nil
}

// PageTimeout returns the per-page fetch budget.
func (c Config) PageTimeout() time.Duration {
	return time.Duration(c.Scraper.PageTimeoutSeconds) * time.Second
}

// DelayMin returns the lower bound of the inter-page pause.
func (c Config) DelayMin() time.Duration {
	return time.Duration(c.Scraper.DelayMinMs) * time.Millisecond
}

// DelayMax returns the upper bound of the inter-page pause.
func (c Config) DelayMax() time.Duration {
	return time.Duration(c.Scraper.DelayMaxMs) * time.Millisecond
}

// Retention returns how long terminal tasks stay queryable.
func (c Config) Retention() time.Duration {
	return time.Duration(c.Scraper.RetentionMinutes) * time.Minute
}

// NavTimeout returns the headless navigation budget.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}
