// Package pubmed adapts the NCBI E-utilities search and summary endpoints.
package pubmed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/JakeFAU/research-digest/internal/digest"
	"github.com/JakeFAU/research-digest/internal/normalize"
)

// Default E-utilities endpoints and limits.
const (
	DefaultSearchURL  = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esearch.fcgi"
	DefaultSummaryURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esummary.fcgi"
	DefaultTool       = "research-digest"
	DefaultEmail      = "contact@example.org"
	MaxBatchSize      = 100
)

// Config identifies the caller to NCBI and points at the endpoints.
type Config struct {
	SearchURL  string
	SummaryURL string
	Tool       string
	Email      string
	APIKey     string
	BatchSize  int
}

// Adapter runs the two-phase search then summary protocol.
type Adapter struct {
	fetcher digest.Fetcher
	cfg     Config
}

// New builds an Adapter, filling unset fields with defaults.
func New(fetcher digest.Fetcher, cfg Config) *Adapter {
	if cfg.SearchURL == "" {
		cfg.SearchURL = DefaultSearchURL
	}
	if cfg.SummaryURL == "" {
		cfg.SummaryURL = DefaultSummaryURL
	}
	if cfg.Tool == "" {
		cfg.Tool = DefaultTool
	}
	if cfg.Email == "" {
		cfg.Email = DefaultEmail
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	return &Adapter{fetcher: fetcher, cfg: cfg}
}

// Source implements digest.Adapter.
func (a *Adapter) Source() digest.Source {
	return digest.SourceBiomed
}

type searchResponse struct {
	Result struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

type summaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

type summaryDoc struct {
	Title   string `json:"title"`
	PubDate string `json:"pubdate"`
}

// Search finds up to limit ids for topic, then fetches their summaries in batches.
func (a *Adapter) Search(ctx context.Context, topic string, limit int) ([]digest.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	ids, err := a.searchIDs(ctx, topic, limit)
	if err != nil {
		return nil, err
	}
	out := make([]digest.Entry, 0, len(ids))
	for start := 0; start < len(ids); start += a.cfg.BatchSize {
		end := min(start+a.cfg.BatchSize, len(ids))
		batch, err := a.summaries(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (a *Adapter) identify(q url.Values) url.Values {
	q.Set("db", "pubmed")
	q.Set("retmode", "json")
	q.Set("tool", a.cfg.Tool)
	q.Set("email", a.cfg.Email)
	if a.cfg.APIKey != "" {
		q.Set("api_key", a.cfg.APIKey)
	}
	return q
}

func (a *Adapter) searchIDs(ctx context.Context, topic string, limit int) ([]string, error) {
	q := a.identify(url.Values{})
	q.Set("term", topic)
	q.Set("retmax", strconv.Itoa(limit))
	q.Set("sort", "pub_date")

	body, err := a.fetcher.Fetch(ctx, digest.FetchRequest{URL: a.cfg.SearchURL, Query: q})
	if err != nil {
		return nil, err
	}
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &digest.ParseError{Source: digest.SourceBiomed, Err: fmt.Errorf("esearch: %w", err)}
	}
	ids := resp.Result.IDList
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (a *Adapter) summaries(ctx context.Context, ids []string) ([]digest.Entry, error) {
	q := a.identify(url.Values{})
	q.Set("id", strings.Join(ids, ","))

	body, err := a.fetcher.Fetch(ctx, digest.FetchRequest{URL: a.cfg.SummaryURL, Query: q})
	if err != nil {
		return nil, err
	}
	var resp summaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &digest.ParseError{Source: digest.SourceBiomed, Err: fmt.Errorf("esummary: %w", err)}
	}

	order := ids
	if raw, ok := resp.Result["uids"]; ok {
		var uids []string
		if err := json.Unmarshal(raw, &uids); err == nil && len(uids) > 0 {
			order = uids
		}
	}

	out := make([]digest.Entry, 0, len(order))
	for _, id := range order {
		raw, ok := resp.Result[id]
		if !ok {
			continue
		}
		var doc summaryDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, &digest.ParseError{Source: digest.SourceBiomed, Err: fmt.Errorf("esummary %s: %w", id, err)}
		}
		title := normalize.StripMarkup(doc.Title)
		if strings.TrimSpace(title) == "" {
			continue
		}
		e := digest.NewEntry(digest.SourceBiomed, title, "", "https://pubmed.ncbi.nlm.nih.gov/"+id+"/")
		e.Date, e.DateState = yearDate(doc.PubDate)
		out = append(out, e)
	}
	return out, nil
}

// yearDate maps a pubdate such as "2024 Mar 5" to January 1st of its year.
func yearDate(pubdate string) (string, digest.DateState) {
	fields := strings.Fields(pubdate)
	if len(fields) == 0 {
		return "", digest.DateMissing
	}
	year := fields[0]
	if len(year) != 4 {
		return "", digest.DateUnparsed
	}
	if _, err := strconv.Atoi(year); err != nil {
		return "", digest.DateUnparsed
	}
	return year + "-01-01T00:00:00", digest.DateYearOnly
}
