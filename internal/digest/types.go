// Package digest defines the core types shared across the aggregation pipeline.
package digest

import (
	"fmt"
	"time"
)

// Source identifies the upstream family an Entry came from.
type Source string

// Known upstream families, in deduplication precedence order.
const (
	SourcePreprint  Source = "preprint"
	SourceBiomed    Source = "biomed"
	SourceScholarly Source = "scholarly"
	SourceFeed      Source = "feed"
)

// DateState records how an Entry's date was obtained.
type DateState string

// Date states. DateMissing means upstream had no date; DateUnparsed means it had one we could not read.
const (
	DateExact    DateState = "exact"
	DateYearOnly DateState = "year"
	DateMissing  DateState = "missing"
	DateUnparsed DateState = "unparsed"
)

// AbstractState distinguishes an empty abstract from one the upstream never supplied.
type AbstractState string

// Abstract states.
const (
	AbstractPresent AbstractState = "present"
	AbstractMissing AbstractState = "missing"
)

// Entry is one external record as consumed downstream.
type Entry struct {
	Title         string        `json:"title"`
	Abstract      string        `json:"abstract"`
	URL           string        `json:"url"`
	Source        Source        `json:"source"`
	Date          string        `json:"date"`
	Score         int           `json:"score"`
	DateState     DateState     `json:"date_state,omitempty"`
	AbstractState AbstractState `json:"abstract_state,omitempty"`
}

// Digest is the ranked, size-bounded output of one run.
type Digest struct {
	RunID       string    `json:"run_id,omitempty"`
	Date        string    `json:"date"`
	GeneratedAt time.Time `json:"generated_at"`
	Count       int       `json:"count"`
	Items       []Entry   `json:"items"`
}

// Artifacts lists the files a Writer produced for one Digest.
type Artifacts struct {
	RecordPath string
	BriefPath  string
	HTMLPath   string
}

// Paths returns the non-empty artifact paths in write order.
func (a Artifacts) Paths() []string {
	out := make([]string, 0, 3)
	for _, p := range []string{a.RecordPath, a.BriefPath, a.HTMLPath} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseError reports a malformed upstream payload.
type ParseError struct {
	Source Source
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s payload: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewEntry builds an Entry and derives the abstract state.
func NewEntry(source Source, title, abstract, url string) Entry {
	state := AbstractPresent
	if abstract == "" {
		state = AbstractMissing
	}
	return Entry{
		Title:         title,
		Abstract:      abstract,
		URL:           url,
		Source:        source,
		DateState:     DateMissing,
		AbstractState: state,
	}
}

// WithTime sets an exact date in ISO-8601 form.
func (e Entry) WithTime(t time.Time) Entry {
	e.Date = t.UTC().Format(time.RFC3339)
	e.DateState = DateExact
	return e
}
