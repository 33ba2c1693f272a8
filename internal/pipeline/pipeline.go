// Package pipeline runs one digest: collect, normalize, dedupe, score, rank, write and prune.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/research-digest/internal/clock/system"
	"github.com/JakeFAU/research-digest/internal/dedupe"
	"github.com/JakeFAU/research-digest/internal/digest"
	"github.com/JakeFAU/research-digest/internal/logging"
	"github.com/JakeFAU/research-digest/internal/metrics"
	"github.com/JakeFAU/research-digest/internal/normalize"
	"github.com/JakeFAU/research-digest/internal/rank"
	"github.com/JakeFAU/research-digest/internal/score"
	"github.com/JakeFAU/research-digest/internal/telemetry"
)

// EventCompleted is published after a digest has been written.
const EventCompleted = "digest.completed"

// Options are the per-run knobs.
type Options struct {
	Criteria   score.Criteria
	PerSource  int
	Total      int
	Feeds      []string
	Concurrent bool
}

// Deps are the run's collaborators. Adapters are consulted in slice order,
// which is also the deduplication precedence. Publisher and RunStore are optional.
type Deps struct {
	Adapters  []digest.Adapter
	Feed      digest.FeedAdapter
	Dedupe    *dedupe.Deduplicator
	Scorer    *score.Scorer
	Writer    digest.Writer
	Clock     digest.Clock
	IDs       digest.IDGenerator
	Publisher digest.Publisher
	RunStore  digest.RunStore
	Logger    *zap.Logger
}

// Result describes a finished run.
type Result struct {
	Digest    digest.Digest
	Artifacts digest.Artifacts
	Pruned    []string
	Failures  int
}

// Summary is the one-line report printed at the end of a run.
func (r Result) Summary() string {
	return fmt.Sprintf("wrote %s and %s (%d items)", r.Artifacts.RecordPath, r.Artifacts.BriefPath, r.Digest.Count)
}

// Completed is the payload of the run-completed event.
type Completed struct {
	RunID    string   `json:"run_id"`
	Date     string   `json:"date"`
	Count    int      `json:"count"`
	Paths    []string `json:"paths"`
	Failures int      `json:"failures"`
}

// Runner executes digest runs.
type Runner struct {
	deps Deps
	opts Options
}

// New builds a Runner.
func New(deps Deps, opts Options) (*Runner, error) {
	switch {
	case deps.Dedupe == nil:
		return nil, errors.New("deduplicator is required")
	case deps.Scorer == nil:
		return nil, errors.New("scorer is required")
	case deps.Writer == nil:
		return nil, errors.New("writer is required")
	case deps.Clock == nil:
		return nil, errors.New("clock is required")
	case deps.IDs == nil:
		return nil, errors.New("id generator is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Runner{deps: deps, opts: opts}, nil
}

// Run produces and writes today's digest. Adapter failures are logged and
// skipped; only a failure to write the artifacts is returned.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "digest.run")
	defer span.End()

	now := r.deps.Clock.Now()
	runID, err := r.deps.IDs.NewID()
	if err != nil {
		return Result{}, fmt.Errorf("generate run id: %w", err)
	}
	date := now.UTC().Format(system.DateLayout)
	logger := logging.ForRun(r.deps.Logger, runID, date)
	span.SetAttributes(attribute.String("digest.run_id", runID), attribute.String("digest.date", date))

	raw, failures := r.collect(ctx, logger)
	metrics.SetStageItems("collected", len(raw))

	cleaned := normalize.Entries(raw)
	unique, err := r.deps.Dedupe.Dedupe(cleaned)
	if err != nil {
		telemetry.Fail(span, err, "dedupe failed")
		return Result{}, fmt.Errorf("dedupe: %w", err)
	}
	metrics.SetStageItems("deduplicated", len(unique))

	scored := r.deps.Scorer.ScoreAll(unique, r.opts.Criteria)
	ranked := rank.Rank(scored, r.opts.Total)
	metrics.SetStageItems("ranked", len(ranked))

	d := digest.Digest{
		RunID:       runID,
		Date:        date,
		GeneratedAt: now.UTC(),
		Count:       len(ranked),
		Items:       ranked,
	}
	artifacts, err := r.deps.Writer.Write(ctx, d)
	if err != nil {
		telemetry.Fail(span, err, "write failed")
		return Result{Digest: d, Failures: failures}, fmt.Errorf("write digest: %w", err)
	}

	pruned, err := r.deps.Writer.Prune(ctx, now)
	if err != nil {
		logger.Warn("retention pruning failed", zap.Error(err))
	}

	res := Result{Digest: d, Artifacts: artifacts, Pruned: pruned, Failures: failures}
	r.notify(ctx, logger, res)
	metrics.MarkRun(now)
	span.SetAttributes(
		attribute.Int("digest.count", d.Count),
		attribute.Int("digest.failures", failures),
	)
	logger.Info("digest run complete",
		zap.Int("collected", len(raw)),
		zap.Int("unique", len(unique)),
		zap.Int("count", d.Count),
		zap.Int("failures", failures),
		zap.Int("pruned", len(pruned)),
	)
	return res, nil
}

// Prune applies retention without fetching anything.
func (r *Runner) Prune(ctx context.Context) ([]string, error) {
	removed, err := r.deps.Writer.Prune(ctx, r.deps.Clock.Now())
	if err != nil {
		return removed, fmt.Errorf("prune: %w", err)
	}
	r.deps.Logger.Info("retention pruning complete", zap.Int("pruned", len(removed)))
	return removed, nil
}

// notify feeds the optional sinks. Their failures never fail the run.
func (r *Runner) notify(ctx context.Context, logger *zap.Logger, res Result) {
	if r.deps.RunStore != nil {
		if err := r.deps.RunStore.StoreDigest(ctx, res.Digest); err != nil {
			logger.Warn("run history write failed", zap.Error(err))
		}
	}
	if r.deps.Publisher != nil {
		payload := Completed{
			RunID:    res.Digest.RunID,
			Date:     res.Digest.Date,
			Count:    res.Digest.Count,
			Paths:    res.Artifacts.Paths(),
			Failures: res.Failures,
		}
		if id, err := r.deps.Publisher.Publish(ctx, EventCompleted, payload); err != nil {
			logger.Warn("run notification failed", zap.Error(err))
		} else {
			logger.Debug("run notification sent", zap.String("message_id", id))
		}
	}
}

// job is one adapter/topic or feed call.
type job struct {
	source digest.Source
	label  string
	call   func(ctx context.Context) ([]digest.Entry, error)
}

// plan groups calls per upstream, in precedence order. Within a group calls run sequentially.
func (r *Runner) plan() [][]job {
	groups := make([][]job, 0, len(r.deps.Adapters)+1)
	for _, a := range r.deps.Adapters {
		jobs := make([]job, 0, len(r.opts.Criteria.Topics))
		for _, topic := range r.opts.Criteria.Topics {
			jobs = append(jobs, job{
				source: a.Source(),
				label:  topic,
				call: func(ctx context.Context) ([]digest.Entry, error) {
					return a.Search(ctx, topic, r.opts.PerSource)
				},
			})
		}
		groups = append(groups, jobs)
	}
	if r.deps.Feed != nil {
		feed := r.deps.Feed
		jobs := make([]job, 0, len(r.opts.Feeds))
		for _, u := range r.opts.Feeds {
			jobs = append(jobs, job{
				source: feed.Source(),
				label:  u,
				call: func(ctx context.Context) ([]digest.Entry, error) {
					return feed.FetchFeed(ctx, u)
				},
			})
		}
		groups = append(groups, jobs)
	}
	return groups
}

// collect runs every job and concatenates output in plan order regardless of completion order.
func (r *Runner) collect(ctx context.Context, logger *zap.Logger) ([]digest.Entry, int) {
	groups := r.plan()
	buffers := make([][]digest.Entry, len(groups))
	failures := make([]int, len(groups))

	runGroup := func(i int) {
		for _, j := range groups[i] {
			entries, err := r.runJob(ctx, logger, j)
			if err != nil {
				failures[i]++
				continue
			}
			buffers[i] = append(buffers[i], entries...)
		}
	}

	if r.opts.Concurrent {
		var g errgroup.Group
		for i := range groups {
			g.Go(func() error {
				runGroup(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range groups {
			runGroup(i)
		}
	}

	var out []digest.Entry
	total := 0
	for i := range buffers {
		out = append(out, buffers[i]...)
		total += failures[i]
	}
	return out, total
}

func (r *Runner) runJob(ctx context.Context, logger *zap.Logger, j job) ([]digest.Entry, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "digest.adapter")
	defer span.End()
	span.SetAttributes(
		attribute.String("digest.source", string(j.source)),
		attribute.String("digest.query", j.label),
	)

	start := time.Now()
	entries, err := j.call(ctx)
	metrics.ObserveAdapter(string(j.source), len(entries), err)
	if err != nil {
		telemetry.Fail(span, err, "adapter failed")
		logger.Warn("adapter call failed; continuing without it",
			zap.String("source", string(j.source)),
			zap.String("query", j.label),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}
	logger.Debug("adapter call complete",
		zap.String("source", string(j.source)),
		zap.String("query", j.label),
		zap.Int("entries", len(entries)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return entries, nil
}
