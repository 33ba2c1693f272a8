package digest

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"
)

// FetchRequest describes one outbound call.
type FetchRequest struct {
	URL     string
	Query   url.Values
	Headers http.Header
}

// Fetcher issues a single outbound request and returns the response body.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) ([]byte, error)
}

// Adapter turns a topic query into Entries.
type Adapter interface {
	Source() Source
	Search(ctx context.Context, topic string, limit int) ([]Entry, error)
}

// FeedAdapter turns a fixed syndication feed URL into Entries.
type FeedAdapter interface {
	Source() Source
	FetchFeed(ctx context.Context, feedURL string) ([]Entry, error)
}

// Hasher fingerprints an ordered tuple of identity fields for deduplication.
// Distinct tuples must not collide through concatenation.
type Hasher interface {
	Hash(fields ...string) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Writer persists a Digest and prunes stale artifacts.
type Writer interface {
	Write(ctx context.Context, d Digest) (Artifacts, error)
	Prune(ctx context.Context, runDate time.Time) ([]string, error)
}

// Mirror copies a written artifact to secondary storage.
type Mirror interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher announces run events such as a completed digest.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) (string, error)
}

// RunStore records the items emitted by a run.
type RunStore interface {
	StoreDigest(ctx context.Context, d Digest) error
}
