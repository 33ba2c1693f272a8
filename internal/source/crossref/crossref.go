// Package crossref adapts the Crossref works API into digest entries.
package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/research-digest/internal/digest"
	"github.com/JakeFAU/research-digest/internal/normalize"
)

// DefaultBaseURL is the public works endpoint.
const DefaultBaseURL = "https://api.crossref.org/works"

// dateFields lists candidate date fields in precedence order.
var dateFields = []string{"published-print", "published-online", "created", "deposited", "issued"}

// Adapter queries Crossref for recently published works.
type Adapter struct {
	fetcher digest.Fetcher
	baseURL string
	mailto  string
}

// New builds an Adapter. mailto routes requests to the polite pool.
func New(fetcher digest.Fetcher, baseURL, mailto string) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Adapter{fetcher: fetcher, baseURL: baseURL, mailto: mailto}
}

// Source implements digest.Adapter.
func (a *Adapter) Source() digest.Source {
	return digest.SourceScholarly
}

type worksResponse struct {
	Message struct {
		Items []work `json:"items"`
	} `json:"message"`
}

type work struct {
	Title    []string           `json:"title"`
	URL      string             `json:"URL"`
	Abstract string             `json:"abstract"`
	Dates    map[string]dateRef `json:"-"`
}

type dateRef struct {
	DateParts [][]*int `json:"date-parts"`
}

// UnmarshalJSON picks the date fields out alongside the fixed ones.
func (w *work) UnmarshalJSON(data []byte) error {
	type plain work
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	p.Dates = make(map[string]dateRef, len(dateFields))
	for _, field := range dateFields {
		raw, ok := all[field]
		if !ok {
			continue
		}
		var ref dateRef
		if err := json.Unmarshal(raw, &ref); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
		p.Dates[field] = ref
	}
	*w = work(p)
	return nil
}

// Search fetches one page of works matching topic, newest first.
func (a *Adapter) Search(ctx context.Context, topic string, limit int) ([]digest.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	q := url.Values{}
	q.Set("query", topic)
	q.Set("sort", "published")
	q.Set("order", "desc")
	q.Set("rows", strconv.Itoa(limit))
	if a.mailto != "" {
		q.Set("mailto", a.mailto)
	}

	body, err := a.fetcher.Fetch(ctx, digest.FetchRequest{URL: a.baseURL, Query: q})
	if err != nil {
		return nil, err
	}
	var resp worksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &digest.ParseError{Source: digest.SourceScholarly, Err: err}
	}

	out := make([]digest.Entry, 0, len(resp.Message.Items))
	for _, it := range resp.Message.Items {
		title := strings.Join(it.Title, " ")
		if strings.TrimSpace(title) == "" || it.URL == "" {
			continue
		}
		e := digest.NewEntry(digest.SourceScholarly, title, normalize.StripMarkup(it.Abstract), it.URL)
		e.Date, e.DateState = it.publishDate()
		out = append(out, e)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// publishDate takes the first populated candidate field. Missing month or day default to 1.
func (w work) publishDate() (string, digest.DateState) {
	for _, field := range dateFields {
		ref, ok := w.Dates[field]
		if !ok || len(ref.DateParts) == 0 {
			continue
		}
		parts := ref.DateParts[0]
		if len(parts) == 0 || parts[0] == nil {
			continue
		}
		year, month, day := *parts[0], 1, 1
		yearOnly := len(parts) == 1 || parts[1] == nil
		if !yearOnly {
			month = *parts[1]
			if len(parts) > 2 && parts[2] != nil {
				day = *parts[2]
			}
		}
		if month < 1 || month > 12 || day < 1 {
			return "", digest.DateUnparsed
		}
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if t.Day() != day {
			return "", digest.DateUnparsed
		}
		if yearOnly {
			return t.Format("2006-01-02T15:04:05"), digest.DateYearOnly
		}
		return t.Format(time.RFC3339), digest.DateExact
	}
	return "", digest.DateMissing
}
