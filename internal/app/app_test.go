package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/research-digest/internal/app"
	"github.com/JakeFAU/research-digest/internal/config"
	"github.com/JakeFAU/research-digest/internal/digest"
	"github.com/JakeFAU/research-digest/internal/score"
)

const arxivBody = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2506.01234v1</id>
    <published>2025-06-04T10:00:00Z</published>
    <title>Inflation expectations and wage growth</title>
    <summary>We study inflation expectations.</summary>
    <link href="http://arxiv.org/abs/2506.01234v1" rel="alternate"/>
  </entry>
</feed>`

const feedBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Releases</title>
  <item>
    <title>Consumer price index summary</title>
    <link>https://www.bls.gov/news.release/cpi.nr0.htm</link>
    <description>Prices rose 0.2 percent.</description>
    <pubDate>Wed, 11 Jun 2025 08:30:00 -0400</pubDate>
  </item>
</channel></rss>`

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, arxivURL, feedURL string) config.Config {
	t.Helper()
	return config.Config{
		Topics:  []string{"inflation"},
		Feeds:   []string{feedURL},
		Boost:   config.BoostConfig{RecencyDays: 21},
		Limit:   config.LimitConfig{PerSource: 5, Total: 10},
		Weights: score.DefaultWeights(),
		Sources: config.SourcesConfig{
			ArXiv: config.SourceConfig{Enabled: true, BaseURL: arxivURL},
			RSS:   config.SourceConfig{Enabled: true},
		},
		HTTP: config.HTTPConfig{
			UserAgent:   "research-digest-test/1.0",
			Timeout:     5 * time.Second,
			MaxAttempts: 1,
		},
		Output: config.OutputConfig{
			Dir:           filepath.Join(t.TempDir(), "out"),
			Prefix:        "digest",
			RetentionDays: 30,
			AbstractChars: 120,
		},
	}
}

func TestRunEndToEnd(t *testing.T) {
	arxiv := serve(t, http.StatusOK, arxivBody)
	feed := serve(t, http.StatusOK, feedBody)
	cfg := testConfig(t, arxiv.URL, feed.URL)
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "digest.prom")

	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	res, err := a.Runner().Run(context.Background())
	require.NoError(t, err)
	a.Close()

	assert.Equal(t, 0, res.Failures)
	require.Equal(t, 2, res.Digest.Count)
	assert.Equal(t, "Inflation expectations and wage growth", res.Digest.Items[0].Title, "topic match ranks first")
	assert.Equal(t, digest.SourceFeed, res.Digest.Items[1].Source)

	raw, err := os.ReadFile(res.Artifacts.RecordPath)
	require.NoError(t, err)
	var record digest.Digest
	require.NoError(t, json.Unmarshal(raw, &record))
	assert.Equal(t, res.Digest.RunID, record.RunID)
	assert.Len(t, record.Items, 2)

	brief, err := os.ReadFile(res.Artifacts.BriefPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(brief), "# Research digest for "+res.Digest.Date))

	_, err = os.Stat(cfg.Metrics.Textfile)
	assert.NoError(t, err, "metrics textfile is flushed on close")
}

func TestRunToleratesFailingSource(t *testing.T) {
	arxiv := serve(t, http.StatusNotFound, "gone")
	feed := serve(t, http.StatusOK, feedBody)
	cfg := testConfig(t, arxiv.URL, feed.URL)

	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	res, err := a.Runner().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failures)
	require.Equal(t, 1, res.Digest.Count)
	assert.Equal(t, digest.SourceFeed, res.Digest.Items[0].Source)
}

func TestNewRequiresOutputDir(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1", "http://127.0.0.1:1")
	cfg.Output.Dir = ""

	_, err := app.New(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "open output directory")
}
