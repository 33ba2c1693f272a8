// Package config loads and validates digest configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/research-digest/internal/clock/system"
	"github.com/JakeFAU/research-digest/internal/score"
	"github.com/JakeFAU/research-digest/internal/source/rss"
)

// Config captures all configuration knobs for one digest run.
type Config struct {
	Topics           []string       `mapstructure:"topics"`
	SourcesAllowlist []string       `mapstructure:"sources_allowlist"`
	Feeds            []string       `mapstructure:"feeds"`
	Boost            BoostConfig    `mapstructure:"boost"`
	Limit            LimitConfig    `mapstructure:"limit"`
	Weights          score.Weights  `mapstructure:"weights"`
	Sources          SourcesConfig  `mapstructure:"sources"`
	Contact          ContactConfig  `mapstructure:"contact"`
	HTTP             HTTPConfig     `mapstructure:"http"`
	Pipeline         PipelineConfig `mapstructure:"pipeline"`
	Output           OutputConfig   `mapstructure:"output"`
	Storage          StorageConfig  `mapstructure:"storage"`
	PubSub           PubSubConfig   `mapstructure:"pubsub"`
	DB               DBConfig       `mapstructure:"db"`
	Metrics          MetricsConfig  `mapstructure:"metrics"`
	Logging          LoggingConfig  `mapstructure:"logging"`
	Tracing          TracingConfig  `mapstructure:"tracing"`
}

// BoostConfig holds the recency window.
type BoostConfig struct {
	RecencyDays int `mapstructure:"recency_days"`
}

// LimitConfig bounds adapter output and the final digest.
type LimitConfig struct {
	PerSource int `mapstructure:"per_source"`
	Total     int `mapstructure:"total"`
}

// SourceConfig toggles and tunes one upstream.
type SourceConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BaseURL  string        `mapstructure:"base_url"`
	MinDelay time.Duration `mapstructure:"min_delay"`
}

// PubMedConfig adds the second-phase endpoint and batch size.
type PubMedConfig struct {
	SourceConfig `mapstructure:",squash"`
	SummaryURL   string `mapstructure:"summary_url"`
	BatchSize    int    `mapstructure:"batch_size"`
}

// SourcesConfig groups the per-upstream settings.
type SourcesConfig struct {
	ArXiv    SourceConfig `mapstructure:"arxiv"`
	PubMed   PubMedConfig `mapstructure:"pubmed"`
	Crossref SourceConfig `mapstructure:"crossref"`
	RSS      SourceConfig `mapstructure:"rss"`
}

// ContactConfig identifies the operator to upstreams that ask for it.
type ContactConfig struct {
	Email  string `mapstructure:"email"`
	APIKey string `mapstructure:"api_key"`
	Tool   string `mapstructure:"tool"`
}

// HTTPConfig configures the fetch client.
type HTTPConfig struct {
	UserAgent         string        `mapstructure:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	BackoffBase       time.Duration `mapstructure:"backoff_base"`
	RetryServerErrors bool          `mapstructure:"retry_server_errors"`
	MaxRPSPerHost     float64       `mapstructure:"max_rps_per_host"`
}

// PipelineConfig controls adapter scheduling. RunDate (YYYY-MM-DD) replays a
// run as of that date instead of today.
type PipelineConfig struct {
	Concurrent bool   `mapstructure:"concurrent"`
	RunDate    string `mapstructure:"run_date"`
}

// OutputConfig sets where and how artifacts are written.
type OutputConfig struct {
	Dir           string `mapstructure:"dir"`
	Prefix        string `mapstructure:"prefix"`
	RetentionDays int    `mapstructure:"retention_days"`
	AbstractChars int    `mapstructure:"abstract_chars"`
	HTML          bool   `mapstructure:"html"`
}

// StorageConfig enables the optional GCS mirror.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for run notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// DBConfig controls the optional run history table.
type DBConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// MetricsConfig points at a Prometheus textfile collector path.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// LoggingConfig toggles zap development features and sets the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TracingConfig toggles the OpenTelemetry SDK.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load builds a Config from disk and environment. The file is required.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Config{}, fmt.Errorf("config path is required")
	}

	v := viper.New()
	v.SetEnvPrefix("DIGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindContactEnv(v); err != nil {
		return Config{}, err
	}

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
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

// bindContactEnv lets the conventional NCBI variables fill the contact block.
func bindContactEnv(v *viper.Viper) error {
	if err := v.BindEnv("contact.email", "DIGEST_CONTACT_EMAIL", "NCBI_EMAIL"); err != nil {
		return fmt.Errorf("bind contact.email: %w", err)
	}
	if err := v.BindEnv("contact.api_key", "DIGEST_CONTACT_API_KEY", "NCBI_API_KEY"); err != nil {
		return fmt.Errorf("bind contact.api_key: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	weights := score.DefaultWeights()

	v.SetDefault("topics", []string{})
	v.SetDefault("sources_allowlist", []string{})
	v.SetDefault("feeds", rss.DefaultFeeds)
	v.SetDefault("boost.recency_days", 21)
	v.SetDefault("limit.per_source", 12)
	v.SetDefault("limit.total", 30)
	v.SetDefault("weights.title_match", weights.TitleMatch)
	v.SetDefault("weights.abstract_match", weights.AbstractMatch)
	v.SetDefault("weights.allowlist", weights.Allowlist)
	v.SetDefault("weights.recency", weights.Recency)
	v.SetDefault("weights.preprint", weights.Preprint)
	v.SetDefault("weights.preprint_hosts", weights.PreprintHosts)
	v.SetDefault("sources.arxiv.enabled", true)
	v.SetDefault("sources.arxiv.min_delay", "750ms")
	v.SetDefault("sources.pubmed.enabled", true)
	v.SetDefault("sources.pubmed.min_delay", "350ms")
	v.SetDefault("sources.pubmed.batch_size", 100)
	v.SetDefault("sources.crossref.enabled", true)
	v.SetDefault("sources.crossref.min_delay", "350ms")
	v.SetDefault("sources.rss.enabled", true)
	v.SetDefault("sources.rss.min_delay", "500ms")
	v.SetDefault("contact.email", "")
	v.SetDefault("contact.api_key", "")
	v.SetDefault("contact.tool", "research-digest")
	v.SetDefault("http.user_agent", "research-digest/1.0 (+mailto:contact@example.org)")
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.max_attempts", 4)
	v.SetDefault("http.backoff_base", "2s")
	v.SetDefault("http.retry_server_errors", true)
	v.SetDefault("http.max_rps_per_host", 0)
	v.SetDefault("pipeline.concurrent", false)
	v.SetDefault("pipeline.run_date", "")
	v.SetDefault("output.dir", "data/digest")
	v.SetDefault("output.prefix", "digest")
	v.SetDefault("output.retention_days", 30)
	v.SetDefault("output.abstract_chars", 280)
	v.SetDefault("output.html", false)
	v.SetDefault("storage.prefix", "digests")
	v.SetDefault("db.table", "digest_items")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("tracing.enabled", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Boost.RecencyDays < 0 {
		return fmt.Errorf("boost.recency_days must be >= 0")
	}
	if c.Limit.PerSource < 0 {
		return fmt.Errorf("limit.per_source must be >= 0")
	}
	if c.Limit.Total < 0 {
		return fmt.Errorf("limit.total must be >= 0")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if c.HTTP.MaxAttempts <= 0 {
		return fmt.Errorf("http.max_attempts must be > 0")
	}
	if c.HTTP.BackoffBase < 0 {
		return fmt.Errorf("http.backoff_base must be >= 0")
	}
	if strings.TrimSpace(c.HTTP.UserAgent) == "" {
		return fmt.Errorf("http.user_agent is required")
	}
	if c.HTTP.MaxRPSPerHost < 0 {
		return fmt.Errorf("http.max_rps_per_host must be >= 0")
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		return fmt.Errorf("output.dir is required")
	}
	if c.Output.RetentionDays < 1 {
		return fmt.Errorf("output.retention_days must be >= 1")
	}
	if c.Pipeline.RunDate != "" {
		if _, err := system.ParseRunDate(c.Pipeline.RunDate); err != nil {
			return fmt.Errorf("pipeline.run_date: %w", err)
		}
	}
	if c.Logging.Level != "" {
		if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
			return fmt.Errorf("logging.level: %w", err)
		}
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}
