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
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Render    RenderConfig    `mapstructure:"render"`
	Summarize SummarizeConfig `mapstructure:"summarize"`
	Images    ImagesConfig    `mapstructure:"images"`
	Enrich    EnrichConfig    `mapstructure:"enrich"`
	DB        DBConfig        `mapstructure:"db"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Profiles  ProfilesConfig  `mapstructure:"profiles"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// FetchConfig governs the tiered fetch pipeline.
type FetchConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// RenderConfig configures the headless rendering subsystem.
type RenderConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	MaxParallel       int     `mapstructure:"max_parallel"`
	NavTimeoutSec     int     `mapstructure:"nav_timeout_seconds"`
	ContentPollSec    int     `mapstructure:"content_poll_seconds"`
	DomainQPS         float64 `mapstructure:"domain_qps"`
	MaxImagePayloadMB int     `mapstructure:"max_image_payload_mb"`
}

// SummarizeConfig points at the external LLM summarization service.
type SummarizeConfig struct {
	Endpoint       string  `mapstructure:"endpoint"`
	APIKey         string  `mapstructure:"api_key"`
	Temperature    float64 `mapstructure:"temperature"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// ImagesConfig configures image resolution collaborators.
type ImagesConfig struct {
	SearchEndpoint    string `mapstructure:"search_endpoint"`
	GenerateEndpoint  string `mapstructure:"generate_endpoint"`
	GenerateStyle     string `mapstructure:"generate_style"`
	CacheTTLMinutes   int    `mapstructure:"cache_ttl_minutes"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	PlaceholderFormat string `mapstructure:"placeholder_format"`
}

// EnrichConfig governs the background enrichment workers.
type EnrichConfig struct {
	Workers    int `mapstructure:"workers"`
	QueueDepth int `mapstructure:"queue_depth"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// SnapshotConfig sets where fetched HTML snapshots are archived.
type SnapshotConfig struct {
	Provider  string `mapstructure:"provider"` // gcs | local | memory
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for hero lifecycle notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ProfilesConfig locates the group profile definitions.
type ProfilesConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DISCOVERY")
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
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("fetch.timeout_seconds", 15)
	v.SetDefault("render.enabled", false)
	v.SetDefault("render.max_parallel", 2)
	v.SetDefault("render.nav_timeout_seconds", 15)
	v.SetDefault("render.content_poll_seconds", 3)
	v.SetDefault("render.domain_qps", 1.0)
	v.SetDefault("render.max_image_payload_mb", 2)
	v.SetDefault("summarize.temperature", 0.3)
	v.SetDefault("summarize.timeout_seconds", 30)
	v.SetDefault("images.cache_ttl_minutes", 60)
	v.SetDefault("images.timeout_seconds", 10)
	v.SetDefault("images.generate_style", "photoreal_portrait")
	v.SetDefault("images.placeholder_format", "https://placehold.co/800x450?text=%s")
	v.SetDefault("enrich.workers", 4)
	v.SetDefault("enrich.queue_depth", 64)
	v.SetDefault("snapshot.provider", "memory")
	v.SetDefault("snapshot.prefix", "snapshots")
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
	if c.Render.Enabled && c.Render.MaxParallel <= 0 {
		return fmt.Errorf("render.max_parallel must be > 0 when rendering is enabled")
	}
	if c.Enrich.Workers <= 0 {
		return fmt.Errorf("enrich.workers must be > 0")
	}
	switch c.Snapshot.Provider {
	case "gcs":
		if c.Snapshot.GCSBucket == "" {
			return fmt.Errorf("snapshot.gcs_bucket must be set for the gcs provider")
		}
	case "local":
		if c.Snapshot.LocalDir == "" {
			return fmt.Errorf("snapshot.local_dir must be set for the local provider")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown snapshot provider %q", c.Snapshot.Provider)
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	return nil
}

// FetchTimeout converts the fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// NavTimeout converts the render navigation timeout into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Render.NavTimeoutSec) * time.Second
}

// ContentPollBudget is how long the renderer polls for the content-ready
// condition after navigation settles.
func (c Config) ContentPollBudget() time.Duration {
	return time.Duration(c.Render.ContentPollSec) * time.Second
}

// ImageCacheTTL converts the image cache TTL into a duration.
func (c Config) ImageCacheTTL() time.Duration {
	return time.Duration(c.Images.CacheTTLMinutes) * time.Minute
}
