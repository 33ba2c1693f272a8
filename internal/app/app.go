// Package app builds the digest run's collaborators from configuration, acting as a
// dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"

	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/research-digest/internal/clock/system"
	"github.com/JakeFAU/research-digest/internal/config"
	"github.com/JakeFAU/research-digest/internal/dedupe"
	"github.com/JakeFAU/research-digest/internal/digest"
	"github.com/JakeFAU/research-digest/internal/fetch"
	"github.com/JakeFAU/research-digest/internal/hash/sha256"
	"github.com/JakeFAU/research-digest/internal/id/uuid"
	"github.com/JakeFAU/research-digest/internal/metrics"
	"github.com/JakeFAU/research-digest/internal/pipeline"
	"github.com/JakeFAU/research-digest/internal/policy/ratelimit"
	"github.com/JakeFAU/research-digest/internal/publisher/pubsub"
	"github.com/JakeFAU/research-digest/internal/score"
	"github.com/JakeFAU/research-digest/internal/source/arxiv"
	"github.com/JakeFAU/research-digest/internal/source/crossref"
	"github.com/JakeFAU/research-digest/internal/source/pubmed"
	"github.com/JakeFAU/research-digest/internal/source/rss"
	"github.com/JakeFAU/research-digest/internal/storage/gcs"
	"github.com/JakeFAU/research-digest/internal/storage/local"
	"github.com/JakeFAU/research-digest/internal/storage/postgres"
	"github.com/JakeFAU/research-digest/internal/telemetry"
	"github.com/JakeFAU/research-digest/internal/writer"
)

// ServiceName identifies the process in traces.
const ServiceName = "research-digest"

// App holds the services a command needs for one invocation.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	runner  *pipeline.Runner
	closers []func()
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Runner returns the configured pipeline.
func (a *App) Runner() *pipeline.Runner {
	return a.runner
}

// Run executes one digest run.
func (a *App) Run(ctx context.Context) (pipeline.Result, error) {
	return a.runner.Run(ctx)
}

// Prune applies retention without fetching.
func (a *App) Prune(ctx context.Context) ([]string, error) {
	return a.runner.Prune(ctx)
}

// New wires every collaborator. Only the local artifact directory is required;
// the GCS mirror, Pub/Sub notifier, Postgres history and tracing are skipped with
// a warning when they cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}

	clock := system.New()
	if cfg.Pipeline.RunDate != "" {
		pinned, err := system.ParseRunDate(cfg.Pipeline.RunDate)
		if err != nil {
			return nil, err
		}
		clock = pinned
		logger.Info("replaying run date", zap.String("date", cfg.Pipeline.RunDate))
	}

	if cfg.Tracing.Enabled {
		tp, err := telemetry.InitTracerProvider(ctx, ServiceName)
		if err != nil {
			logger.Warn("tracing disabled", zap.Error(err))
		} else {
			a.onClose(func() {
				if err := telemetry.Shutdown(tp); err != nil {
					logger.Warn("tracing flush failed", zap.Error(err))
				}
			})
		}
	}

	store, err := local.New(local.Config{BaseDir: cfg.Output.Dir})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open output directory: %w", err)
	}

	w := writer.New(writer.WithMirror(store, a.mirror(ctx), logger.Named("mirror")), writer.Config{
		Prefix:        cfg.Output.Prefix,
		RetentionDays: cfg.Output.RetentionDays,
		AbstractChars: cfg.Output.AbstractChars,
		HTML:          cfg.Output.HTML,
	}, logger.Named("writer"))

	adapters, feed := a.sources()
	runner, err := pipeline.New(pipeline.Deps{
		Adapters:  adapters,
		Feed:      feed,
		Dedupe:    dedupe.New(sha256.New()),
		Scorer:    score.New(cfg.Weights, clock),
		Writer:    w,
		Clock:     clock,
		IDs:       uuid.New(),
		Publisher: a.publisher(ctx),
		RunStore:  a.runStore(ctx),
		Logger:    logger.Named("pipeline"),
	}, pipeline.Options{
		Criteria: score.Criteria{
			Topics:      cfg.Topics,
			Allowlist:   cfg.SourcesAllowlist,
			RecencyDays: cfg.Boost.RecencyDays,
		},
		PerSource:  cfg.Limit.PerSource,
		Total:      cfg.Limit.Total,
		Feeds:      cfg.Feeds,
		Concurrent: cfg.Pipeline.Concurrent,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	a.runner = runner
	return a, nil
}

// Close releases clients and flushes metrics. Safe to call more than once.
func (a *App) Close() {
	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			a.logger.Warn("metrics textfile write failed", zap.String("path", path), zap.Error(err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	_ = a.logger.Sync()
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// sources builds the enabled adapters in precedence order, each with its own client.
func (a *App) sources() ([]digest.Adapter, digest.FeedAdapter) {
	cfg := a.cfg
	policy := fetch.NewLinearRetryPolicy(cfg.HTTP.MaxAttempts, cfg.HTTP.BackoffBase, cfg.HTTP.RetryServerErrors)

	var limiter fetch.Limiter
	if cfg.HTTP.MaxRPSPerHost > 0 {
		limiter = ratelimit.New(ratelimit.Config{DefaultRPS: cfg.HTTP.MaxRPSPerHost, DefaultBurst: 1})
	}
	client := func(name string, sc config.SourceConfig) *fetch.Client {
		return fetch.New(fetch.Config{
			Source:    name,
			UserAgent: cfg.HTTP.UserAgent,
			MinDelay:  sc.MinDelay,
			Timeout:   cfg.HTTP.Timeout,
		}, policy, limiter, a.logger.Named("fetch"))
	}

	var adapters []digest.Adapter
	if sc := cfg.Sources.ArXiv; sc.Enabled {
		adapters = append(adapters, arxiv.New(client("arxiv", sc), sc.BaseURL))
	}
	if sc := cfg.Sources.PubMed; sc.Enabled {
		adapters = append(adapters, pubmed.New(client("pubmed", sc.SourceConfig), pubmed.Config{
			SearchURL:  sc.BaseURL,
			SummaryURL: sc.SummaryURL,
			Tool:       cfg.Contact.Tool,
			Email:      cfg.Contact.Email,
			APIKey:     cfg.Contact.APIKey,
			BatchSize:  sc.BatchSize,
		}))
	}
	if sc := cfg.Sources.Crossref; sc.Enabled {
		adapters = append(adapters, crossref.New(client("crossref", sc), sc.BaseURL, cfg.Contact.Email))
	}

	var feed digest.FeedAdapter
	if sc := cfg.Sources.RSS; sc.Enabled {
		feed = rss.New(client("rss", sc))
	}
	return adapters, feed
}

func (a *App) mirror(ctx context.Context) digest.Mirror {
	bucket := a.cfg.Storage.GCSBucket
	if bucket == "" {
		return nil
	}
	client, err := gcstorage.NewClient(ctx)
	if err != nil {
		a.logger.Warn("gcs mirror disabled", zap.Error(err))
		return nil
	}
	store, err := gcs.New(client, gcs.Config{Bucket: bucket, Prefix: a.cfg.Storage.Prefix})
	if err != nil {
		_ = client.Close()
		a.logger.Warn("gcs mirror disabled", zap.Error(err))
		return nil
	}
	a.onClose(func() {
		if err := client.Close(); err != nil {
			a.logger.Warn("error closing gcs client", zap.Error(err))
		}
	})
	a.logger.Info("mirroring artifacts to gcs", zap.String("bucket", bucket))
	return store
}

func (a *App) publisher(ctx context.Context) digest.Publisher {
	ps := a.cfg.PubSub
	if ps.TopicName == "" {
		return nil
	}
	pub, err := pubsub.Dial(ctx, ps.ProjectID, ps.TopicName)
	if err != nil {
		a.logger.Warn("pubsub notifications disabled", zap.Error(err))
		return nil
	}
	a.onClose(func() {
		if err := pub.Close(); err != nil {
			a.logger.Warn("error closing pubsub client", zap.Error(err))
		}
	})
	return pub
}

func (a *App) runStore(ctx context.Context) digest.RunStore {
	if a.cfg.DB.DSN == "" {
		return nil
	}
	store, err := postgres.NewDigestStore(ctx, postgres.DigestStoreConfig{DSN: a.cfg.DB.DSN, Table: a.cfg.DB.Table})
	if err != nil {
		a.logger.Warn("run history disabled", zap.Error(err))
		return nil
	}
	a.onClose(store.Close)
	return store
}
