// Package writer persists digests as a JSON record plus a readable brief and
// prunes artifacts that have aged out of the retention window.
package writer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
	"go.uber.org/zap"

	"github.com/JakeFAU/research-digest/internal/clock/system"
	"github.com/JakeFAU/research-digest/internal/digest"
	"github.com/JakeFAU/research-digest/internal/metrics"
)

// Store is the artifact directory the writer owns.
type Store interface {
	PutObject(ctx context.Context, name string, contentType string, data io.Reader) (string, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) (string, error)
}

// Config controls file naming, the brief layout and retention.
type Config struct {
	Prefix        string
	RetentionDays int
	AbstractChars int
	HTML          bool
}

// FileWriter implements digest.Writer on top of a Store.
type FileWriter struct {
	store   Store
	cfg     Config
	pattern *regexp.Regexp
	md      goldmark.Markdown
	logger  *zap.Logger
}

var _ digest.Writer = (*FileWriter)(nil)

// New builds a FileWriter. Zero config values fall back to prefix "digest" and 30 days retention.
func New(store Store, cfg Config, logger *zap.Logger) *FileWriter {
	if cfg.Prefix == "" {
		cfg.Prefix = "digest"
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileWriter{
		store:   store,
		cfg:     cfg,
		pattern: regexp.MustCompile(`^` + regexp.QuoteMeta(cfg.Prefix) + `_(\d{4}-\d{2}-\d{2})\.(json|md|html)$`),
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Typographer),
			goldmark.WithRendererOptions(htmlrenderer.WithXHTML()),
		),
		logger: logger,
	}
}

// FileName returns the artifact name for a run date and extension.
func (w *FileWriter) FileName(date, ext string) string {
	return fmt.Sprintf("%s_%s.%s", w.cfg.Prefix, date, ext)
}

// Write stores the record and the brief, plus an HTML rendering when enabled.
func (w *FileWriter) Write(ctx context.Context, d digest.Digest) (digest.Artifacts, error) {
	if d.Items == nil {
		d.Items = []digest.Entry{}
	}
	d.Count = len(d.Items)

	record, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return digest.Artifacts{}, fmt.Errorf("marshal digest: %w", err)
	}
	record = append(record, '\n')

	var out digest.Artifacts
	out.RecordPath, err = w.store.PutObject(ctx, w.FileName(d.Date, "json"), "application/json", bytes.NewReader(record))
	if err != nil {
		return out, fmt.Errorf("write record: %w", err)
	}

	brief := RenderBrief(d, w.cfg.AbstractChars)
	out.BriefPath, err = w.store.PutObject(ctx, w.FileName(d.Date, "md"), "text/markdown; charset=utf-8", bytes.NewReader(brief))
	if err != nil {
		return out, fmt.Errorf("write brief: %w", err)
	}

	if w.cfg.HTML {
		var page bytes.Buffer
		if err := w.md.Convert(brief, &page); err != nil {
			return out, fmt.Errorf("render html brief: %w", err)
		}
		out.HTMLPath, err = w.store.PutObject(ctx, w.FileName(d.Date, "html"), "text/html; charset=utf-8", &page)
		if err != nil {
			return out, fmt.Errorf("write html brief: %w", err)
		}
	}

	w.logger.Info("digest written",
		zap.String("date", d.Date),
		zap.Int("count", d.Count),
		zap.Strings("paths", out.Paths()),
	)
	return out, nil
}

// Prune deletes artifacts dated more than RetentionDays before runDate and returns their paths.
// Names that do not match the artifact pattern are left alone.
func (w *FileWriter) Prune(ctx context.Context, runDate time.Time) ([]string, error) {
	names, err := w.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	runDay := time.Date(runDate.Year(), runDate.Month(), runDate.Day(), 0, 0, 0, 0, time.UTC)
	cutoff := runDay.AddDate(0, 0, -w.cfg.RetentionDays)

	var removed []string
	for _, name := range names {
		fileDate, ok := w.artifactDate(name)
		if !ok || !fileDate.Before(cutoff) {
			continue
		}
		path, err := w.store.Delete(ctx, name)
		if err != nil {
			return removed, fmt.Errorf("delete %s: %w", name, err)
		}
		w.logger.Debug("pruned artifact", zap.String("path", path))
		removed = append(removed, path)
	}
	metrics.ObservePruned(len(removed))
	return removed, nil
}

func (w *FileWriter) artifactDate(name string) (time.Time, bool) {
	m := w.pattern.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse(system.DateLayout, m[1])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
