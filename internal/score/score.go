// Package score assigns additive relevance, credibility and recency scores.
package score

import (
	"strings"
	"time"

	"github.com/JakeFAU/research-digest/internal/digest"
	"github.com/JakeFAU/research-digest/internal/normalize"
)

// Weights are the additive score components.
type Weights struct {
	TitleMatch    int      `mapstructure:"title_match"`
	AbstractMatch int      `mapstructure:"abstract_match"`
	Allowlist     int      `mapstructure:"allowlist"`
	Recency       int      `mapstructure:"recency"`
	Preprint      int      `mapstructure:"preprint"`
	PreprintHosts []string `mapstructure:"preprint_hosts"`
}

// DefaultWeights returns the stock weighting.
func DefaultWeights() Weights {
	return Weights{
		TitleMatch:    4,
		AbstractMatch: 2,
		Allowlist:     3,
		Recency:       3,
		Preprint:      1,
		PreprintHosts: []string{"arxiv.org"},
	}
}

// Criteria are the per-run inputs the score depends on.
type Criteria struct {
	Topics      []string
	Allowlist   []string
	RecencyDays int
}

// Scorer computes Entry scores against a fixed reference time.
type Scorer struct {
	weights Weights
	clock   digest.Clock
}

// New builds a Scorer. The clock is read once per ScoreAll call.
func New(weights Weights, clock digest.Clock) *Scorer {
	return &Scorer{weights: weights, clock: clock}
}

// ScoreAll returns a copy of entries with Score populated.
func (s *Scorer) ScoreAll(entries []digest.Entry, c Criteria) []digest.Entry {
	now := s.clock.Now()
	out := make([]digest.Entry, len(entries))
	for i, e := range entries {
		e.Score = s.Score(e, c, now)
		out[i] = e
	}
	return out
}

// Score computes one Entry's score relative to now. Unparseable dates earn no recency credit.
func (s *Scorer) Score(e digest.Entry, c Criteria, now time.Time) int {
	title := strings.ToLower(e.Title)
	abstract := strings.ToLower(e.Abstract)
	url := strings.ToLower(e.URL)

	total := 0
	for _, topic := range c.Topics {
		term := strings.ToLower(strings.TrimSpace(topic))
		if term == "" {
			continue
		}
		if strings.Contains(title, term) {
			total += s.weights.TitleMatch
		}
		if strings.Contains(abstract, term) {
			total += s.weights.AbstractMatch
		}
	}
	if containsAny(url, c.Allowlist) {
		total += s.weights.Allowlist
	}
	if withinWindow(e.Date, now, c.RecencyDays) {
		total += s.weights.Recency
	}
	if containsAny(url, s.weights.PreprintHosts) {
		total += s.weights.Preprint
	}
	return total
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" && strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// withinWindow reports whether date lies no more than days before now. Future dates qualify.
func withinWindow(date string, now time.Time, days int) bool {
	if days < 0 {
		return false
	}
	t, ok := normalize.ParseDate(date)
	if !ok {
		return false
	}
	return !t.Before(now.AddDate(0, 0, -days))
}
