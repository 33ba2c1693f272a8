package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "digest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
topics: ["mortgage", "housing supply"]
sources_allowlist: ["reuters.com", "bls.gov"]
feeds: ["https://example.org/feed.xml"]
boost:
  recency_days: 14
limit:
  per_source: 5
  total: 2
weights:
  title_match: 5
  preprint_hosts: ["arxiv.org", "biorxiv.org"]
sources:
  arxiv:
    enabled: false
    min_delay: 1s
  pubmed:
    base_url: http://localhost:9999/esearch
    summary_url: http://localhost:9999/esummary
    batch_size: 50
contact:
  email: ops@example.com
http:
  user_agent: digest-test/1.0
  timeout: 10s
  max_attempts: 2
  backoff_base: 250ms
  retry_server_errors: false
pipeline:
  concurrent: true
  run_date: 2025-06-10
output:
  dir: /tmp/digest
  html: true
logging:
  development: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"mortgage", "housing supply"}, cfg.Topics)
	assert.Equal(t, []string{"reuters.com", "bls.gov"}, cfg.SourcesAllowlist)
	assert.Equal(t, []string{"https://example.org/feed.xml"}, cfg.Feeds)
	assert.Equal(t, 14, cfg.Boost.RecencyDays)
	assert.Equal(t, LimitConfig{PerSource: 5, Total: 2}, cfg.Limit)

	assert.Equal(t, 5, cfg.Weights.TitleMatch)
	assert.Equal(t, 2, cfg.Weights.AbstractMatch, "unset weights keep defaults")
	assert.Equal(t, []string{"arxiv.org", "biorxiv.org"}, cfg.Weights.PreprintHosts)

	assert.False(t, cfg.Sources.ArXiv.Enabled)
	assert.Equal(t, time.Second, cfg.Sources.ArXiv.MinDelay)
	assert.True(t, cfg.Sources.PubMed.Enabled)
	assert.Equal(t, "http://localhost:9999/esearch", cfg.Sources.PubMed.BaseURL)
	assert.Equal(t, "http://localhost:9999/esummary", cfg.Sources.PubMed.SummaryURL)
	assert.Equal(t, 50, cfg.Sources.PubMed.BatchSize)
	assert.Equal(t, 350*time.Millisecond, cfg.Sources.PubMed.MinDelay)

	assert.Equal(t, "ops@example.com", cfg.Contact.Email)
	assert.Equal(t, HTTPConfig{
		UserAgent:   "digest-test/1.0",
		Timeout:     10 * time.Second,
		MaxAttempts: 2,
		BackoffBase: 250 * time.Millisecond,
	}, cfg.HTTP)
	assert.True(t, cfg.Pipeline.Concurrent)
	assert.Equal(t, "2025-06-10", cfg.Pipeline.RunDate)
	assert.Equal(t, "/tmp/digest", cfg.Output.Dir)
	assert.True(t, cfg.Output.HTML)
	assert.False(t, cfg.Logging.Development)
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, "topics: [inflation]\n"))
	require.NoError(t, err)

	assert.Equal(t, 21, cfg.Boost.RecencyDays)
	assert.Equal(t, 12, cfg.Limit.PerSource)
	assert.Equal(t, 30, cfg.Limit.Total)
	assert.Len(t, cfg.Feeds, 2)
	assert.Equal(t, 4, cfg.Weights.TitleMatch)
	assert.Equal(t, 1, cfg.Weights.Preprint)
	assert.Equal(t, 750*time.Millisecond, cfg.Sources.ArXiv.MinDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.Sources.RSS.MinDelay)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 4, cfg.HTTP.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.HTTP.BackoffBase)
	assert.True(t, cfg.HTTP.RetryServerErrors)
	assert.Equal(t, "data/digest", cfg.Output.Dir)
	assert.Equal(t, "digest", cfg.Output.Prefix)
	assert.Equal(t, 30, cfg.Output.RetentionDays)
	assert.Equal(t, 280, cfg.Output.AbstractChars)
	assert.Equal(t, "digest_items", cfg.DB.Table)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Pipeline.RunDate)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoadContactFromNCBIEnv(t *testing.T) {
	t.Setenv("NCBI_EMAIL", "researcher@example.edu")
	t.Setenv("NCBI_API_KEY", "abc123")

	cfg, err := Load(writeConfig(t, "topics: [x]\n"))
	require.NoError(t, err)
	assert.Equal(t, "researcher@example.edu", cfg.Contact.Email)
	assert.Equal(t, "abc123", cfg.Contact.APIKey)
}

func TestLoadPrefixedEnvOverrides(t *testing.T) {
	t.Setenv("DIGEST_LIMIT_TOTAL", "7")

	cfg, err := Load(writeConfig(t, "limit:\n  total: 3\n"))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Limit.Total)
}

func TestLoadFailures(t *testing.T) {
	t.Parallel()

	_, err := Load("")
	require.ErrorContains(t, err, "config path is required")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")

	_, err = Load(writeConfig(t, "topics: [unterminated\n"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "limit:\n  total: -1\n"))
	require.ErrorContains(t, err, "limit.total")
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		HTTP:   HTTPConfig{UserAgent: "ua", Timeout: time.Second, MaxAttempts: 1},
		Output: OutputConfig{Dir: "out", RetentionDays: 30},
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative recency", func(c *Config) { c.Boost.RecencyDays = -1 }, "boost.recency_days"},
		{"negative per source", func(c *Config) { c.Limit.PerSource = -1 }, "limit.per_source"},
		{"zero timeout", func(c *Config) { c.HTTP.Timeout = 0 }, "http.timeout"},
		{"zero attempts", func(c *Config) { c.HTTP.MaxAttempts = 0 }, "http.max_attempts"},
		{"blank user agent", func(c *Config) { c.HTTP.UserAgent = " " }, "http.user_agent"},
		{"negative rps", func(c *Config) { c.HTTP.MaxRPSPerHost = -1 }, "http.max_rps_per_host"},
		{"no output dir", func(c *Config) { c.Output.Dir = "" }, "output.dir"},
		{"zero retention", func(c *Config) { c.Output.RetentionDays = 0 }, "output.retention_days"},
		{"topic without project", func(c *Config) { c.PubSub.TopicName = "runs" }, "pubsub.project_id"},
		{"bad run date", func(c *Config) { c.Pipeline.RunDate = "June 10" }, "pipeline.run_date"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tc.want), err.Error())
		})
	}
}
