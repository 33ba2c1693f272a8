// Package metrics exposes Prometheus collectors for the digest run.
package metrics

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registry = prometheus.NewRegistry()
	factory  = promauto.With(registry)

	fetchRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_fetch_requests_total",
			Help: "Total number of upstream fetches, labeled by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	fetchRetriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_fetch_retries_total",
			Help: "Total number of retried upstream requests, labeled by source.",
		},
		[]string{"source"},
	)

	adapterEntriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_adapter_entries_total",
			Help: "Total number of entries returned by adapters, labeled by source.",
		},
		[]string{"source"},
	)

	adapterFailuresTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_adapter_failures_total",
			Help: "Total number of failed adapter calls, labeled by source.",
		},
		[]string{"source"},
	)

	stageItems = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "digest_stage_items",
			Help: "Number of entries surviving each pipeline stage in the last run.",
		},
		[]string{"stage"},
	)

	rateLimitDelaysSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "digest_rate_limit_delays_seconds",
			Help:    "Histogram of rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)

	artifactsPrunedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "digest_artifacts_pruned_total",
			Help: "Total number of digest artifacts removed by retention.",
		},
	)

	lastRunTimestamp = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "digest_last_run_timestamp_seconds",
			Help: "Unix time of the last completed run.",
		},
	)
)

// Registry returns the registry holding every digest collector.
func Registry() *prometheus.Registry {
	return registry
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveFetch counts one finished fetch ("ok" or "error").
func ObserveFetch(source, outcome string) {
	fetchRequestsTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveRetry counts one retried request.
func ObserveRetry(source string) {
	fetchRetriesTotal.WithLabelValues(source).Inc()
}

// ObserveAdapter records the outcome of one adapter call.
func ObserveAdapter(source string, entries int, err error) {
	if err != nil {
		adapterFailuresTotal.WithLabelValues(source).Inc()
		return
	}
	adapterEntriesTotal.WithLabelValues(source).Add(float64(entries))
}

// SetStageItems records how many entries left a pipeline stage.
func SetStageItems(stage string, n int) {
	stageItems.WithLabelValues(stage).Set(float64(n))
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObservePruned counts removed artifacts.
func ObservePruned(n int) {
	artifactsPrunedTotal.Add(float64(n))
}

// MarkRun stamps the completion time of a run.
func MarkRun(at time.Time) {
	lastRunTimestamp.Set(float64(at.Unix()))
}

// WriteTextfile dumps every collector in the node-exporter textfile format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
