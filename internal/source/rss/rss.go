// Package rss adapts RSS, Atom and JSON syndication feeds into digest entries.
package rss

import (
	"bytes"
	"cmp"
	"context"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/JakeFAU/research-digest/internal/digest"
	"github.com/JakeFAU/research-digest/internal/normalize"
)

// DefaultFeeds are polled when no feeds are configured.
var DefaultFeeds = []string{
	"https://www.federalreserve.gov/feeds/press_all.xml",
	"https://www.bls.gov/feed/bls_latest.rss",
}

// Adapter reads a fixed feed URL. It takes no topic.
type Adapter struct {
	fetcher digest.Fetcher
	parser  *gofeed.Parser
}

// New builds an Adapter.
func New(fetcher digest.Fetcher) *Adapter {
	return &Adapter{fetcher: fetcher, parser: gofeed.NewParser()}
}

// Source implements digest.FeedAdapter.
func (a *Adapter) Source() digest.Source {
	return digest.SourceFeed
}

// FetchFeed downloads and parses feedURL. Items without a date are kept undated.
func (a *Adapter) FetchFeed(ctx context.Context, feedURL string) ([]digest.Entry, error) {
	body, err := a.fetcher.Fetch(ctx, digest.FetchRequest{URL: feedURL})
	if err != nil {
		return nil, err
	}
	return a.Parse(body)
}

// Parse maps a feed document to entries.
func (a *Adapter) Parse(body []byte) ([]digest.Entry, error) {
	feed, err := a.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &digest.ParseError{Source: digest.SourceFeed, Err: err}
	}
	out := make([]digest.Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		link := strings.TrimSpace(item.Link)
		if link == "" || strings.TrimSpace(item.Title) == "" {
			continue
		}
		abstract := normalize.StripMarkup(cmp.Or(item.Description, item.Content))
		e := digest.NewEntry(digest.SourceFeed, item.Title, abstract, link)
		switch {
		case item.PublishedParsed != nil:
			e = e.WithTime(*item.PublishedParsed)
		case item.UpdatedParsed != nil:
			e = e.WithTime(*item.UpdatedParsed)
		case item.Published != "":
			// Raw value is left for the normalizer to try its wider layout list.
			e.Date = item.Published
			e.DateState = ""
		}
		out = append(out, e)
	}
	return out, nil
}
