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
	Auth      AuthConfig      `mapstructure:"auth"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Feeds     FeedsConfig     `mapstructure:"feeds"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	DB        DBConfig        `mapstructure:"db"`
	Storage   StorageConfig   `mapstructure:"storage"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Bookmark  BookmarkConfig  `mapstructure:"bookmark"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// FetchConfig governs the source fetcher.
type FetchConfig struct {
	UserAgent       string `mapstructure:"user_agent"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	ExtractTimeout  int    `mapstructure:"extract_timeout_seconds"`
	HeadlessExtract bool   `mapstructure:"headless_extract"`
}

// DiscoveryConfig governs autonomous link discovery.
type DiscoveryConfig struct {
	IntervalHours int `mapstructure:"interval_hours"`
	MaxDepth      int `mapstructure:"max_depth"`
	MaxPages      int `mapstructure:"max_pages"`
	DelaySeconds  int `mapstructure:"delay_seconds"`
}

// FeedsConfig governs feed polling.
type FeedsConfig struct {
	PollIntervalMinutes int `mapstructure:"poll_interval_minutes"`
	TimeoutSeconds      int `mapstructure:"timeout_seconds"`
}

// JobClassConfig holds per-class dispatch policy knobs.
type JobClassConfig struct {
	Concurrency    int `mapstructure:"concurrency"`
	MaxAttempts    int `mapstructure:"max_attempts"`
	BackoffBaseMs  int `mapstructure:"backoff_base_ms"`
	BackoffMaxMs   int `mapstructure:"backoff_max_ms"`
	RetainFinished int `mapstructure:"retain_finished"`
}

// JobsConfig groups dispatch policy per job class.
type JobsConfig struct {
	QueueDepth int            `mapstructure:"queue_depth"`
	Ingest     JobClassConfig `mapstructure:"ingest"`
	Discovery  JobClassConfig `mapstructure:"discovery"`
	FeedPoll   JobClassConfig `mapstructure:"feedpoll"`
	Analysis   JobClassConfig `mapstructure:"analysis"`
}

// DBConfig controls access to the relational database. An empty DSN selects
// the in-memory store.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MinConns     int    `mapstructure:"min_conns"`
}

// StorageConfig sets the raw-content archive provider.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for outcome event publication.
type PubSubConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// BookmarkConfig points at the external bookmark service.
type BookmarkConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Token          string `mapstructure:"token"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// AnalysisConfig configures the external analysis capability.
type AnalysisConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("REGINTEL")
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
	v.SetDefault("fetch.user_agent", "regintel-bot/0.1")
	v.SetDefault("fetch.timeout_seconds", 15)
	v.SetDefault("fetch.extract_timeout_seconds", 25)
	v.SetDefault("fetch.headless_extract", false)
	v.SetDefault("discovery.interval_hours", 168)
	v.SetDefault("discovery.max_depth", 2)
	v.SetDefault("discovery.max_pages", 50)
	v.SetDefault("discovery.delay_seconds", 1)
	v.SetDefault("feeds.poll_interval_minutes", 60)
	v.SetDefault("feeds.timeout_seconds", 20)
	v.SetDefault("jobs.queue_depth", 256)
	for _, class := range []string{"ingest", "discovery", "feedpoll", "analysis"} {
		v.SetDefault("jobs."+class+".concurrency", 2)
		v.SetDefault("jobs."+class+".max_attempts", 3)
		v.SetDefault("jobs."+class+".backoff_base_ms", 250)
		v.SetDefault("jobs."+class+".backoff_max_ms", 5000)
		v.SetDefault("jobs."+class+".retain_finished", 200)
	}
	v.SetDefault("jobs.ingest.concurrency", 4)
	v.SetDefault("db.max_open_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("storage.provider", "memory")
	v.SetDefault("storage.prefix", "documents")
	v.SetDefault("pubsub.provider", "memory")
	v.SetDefault("pubsub.topic", "regintel-items")
	v.SetDefault("bookmark.timeout_seconds", 10)
	v.SetDefault("analysis.model", "gemini-2.0-flash")
	v.SetDefault("analysis.timeout_seconds", 60)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Discovery.MaxDepth <= 0 || c.Discovery.MaxPages <= 0 {
		return fmt.Errorf("discovery.max_depth and discovery.max_pages must be > 0")
	}
	if c.Feeds.PollIntervalMinutes <= 0 {
		return fmt.Errorf("feeds.poll_interval_minutes must be > 0")
	}
	for name, jc := range map[string]JobClassConfig{
		"ingest":    c.Jobs.Ingest,
		"discovery": c.Jobs.Discovery,
		"feedpoll":  c.Jobs.FeedPoll,
		"analysis":  c.Jobs.Analysis,
	} {
		if jc.Concurrency <= 0 {
			return fmt.Errorf("jobs.%s.concurrency must be > 0", name)
		}
		if jc.MaxAttempts <= 0 {
			return fmt.Errorf("jobs.%s.max_attempts must be > 0", name)
		}
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Storage.Provider == "gcs" && c.Storage.GCSBucket == "" {
		return fmt.Errorf("storage.gcs_bucket must be set when storage.provider is gcs")
	}
	if c.Storage.Provider == "local" && c.Storage.LocalDir == "" {
		return fmt.Errorf("storage.local_dir must be set when storage.provider is local")
	}
	if c.PubSub.Provider == "pubsub" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.provider is pubsub")
	}
	return nil
}

// FetchTimeout returns the per-fetch deadline.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// DiscoveryInterval returns the per-domain discovery cadence.
func (c Config) DiscoveryInterval() time.Duration {
	return time.Duration(c.Discovery.IntervalHours) * time.Hour
}

// FeedPollInterval returns the feed polling cadence.
func (c Config) FeedPollInterval() time.Duration {
	return time.Duration(c.Feeds.PollIntervalMinutes) * time.Minute
}
