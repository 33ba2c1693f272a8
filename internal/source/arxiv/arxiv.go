// Package arxiv adapts the arXiv Atom query API into digest entries.
package arxiv

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed/atom"

	"github.com/JakeFAU/research-digest/internal/digest"
	"github.com/JakeFAU/research-digest/internal/normalize"
)

// DefaultBaseURL is the public arXiv query endpoint.
const DefaultBaseURL = "https://export.arxiv.org/api/query"

// Adapter searches arXiv for recent submissions.
type Adapter struct {
	fetcher digest.Fetcher
	baseURL string
}

// New builds an Adapter. An empty baseURL selects DefaultBaseURL.
func New(fetcher digest.Fetcher, baseURL string) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Adapter{fetcher: fetcher, baseURL: baseURL}
}

// Source implements digest.Adapter.
func (a *Adapter) Source() digest.Source {
	return digest.SourcePreprint
}

// Search issues one query for topic, newest submissions first.
func (a *Adapter) Search(ctx context.Context, topic string, limit int) ([]digest.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := url.Values{}
	query.Set("search_query", topic)
	query.Set("start", "0")
	query.Set("max_results", strconv.Itoa(limit))
	query.Set("sortBy", "submittedDate")
	query.Set("sortOrder", "descending")

	body, err := a.fetcher.Fetch(ctx, digest.FetchRequest{URL: a.baseURL, Query: query})
	if err != nil {
		return nil, err
	}
	return Parse(body)
}

// Parse maps an Atom listing to entries.
func Parse(body []byte) ([]digest.Entry, error) {
	feed, err := (&atom.Parser{}).Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &digest.ParseError{Source: digest.SourcePreprint, Err: err}
	}
	out := make([]digest.Entry, 0, len(feed.Entries))
	for _, item := range feed.Entries {
		if item == nil {
			continue
		}
		link := alternateLink(item)
		if link == "" || strings.TrimSpace(item.Title) == "" {
			continue
		}
		e := digest.NewEntry(digest.SourcePreprint, item.Title, normalize.StripMarkup(item.Summary), link)
		switch {
		case item.PublishedParsed != nil:
			e = e.WithTime(*item.PublishedParsed)
		case item.UpdatedParsed != nil:
			e = e.WithTime(*item.UpdatedParsed)
		case item.Published != "" || item.Updated != "":
			e.DateState = digest.DateUnparsed
		}
		out = append(out, e)
	}
	return out, nil
}

// alternateLink returns the entry's canonical abstract page, falling back to its id.
func alternateLink(item *atom.Entry) string {
	for _, l := range item.Links {
		if l != nil && l.Rel == "alternate" && l.Href != "" {
			return l.Href
		}
	}
	if strings.HasPrefix(item.ID, "http") {
		return item.ID
	}
	return ""
}

// String describes the adapter for logs.
func (a *Adapter) String() string {
	return fmt.Sprintf("arxiv(%s)", a.baseURL)
}
