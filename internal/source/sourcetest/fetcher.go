// Package sourcetest provides a scripted digest.Fetcher for adapter tests.
package sourcetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/research-digest/internal/digest"
)

// Reply is one scripted response.
type Reply struct {
	Body []byte
	Err  error
}

// Fetcher replays scripted replies in order and records every request.
type Fetcher struct {
	mu       sync.Mutex
	replies  []Reply
	requests []digest.FetchRequest
}

// NewFetcher returns a Fetcher that answers with replies in order.
func NewFetcher(replies ...Reply) *Fetcher {
	return &Fetcher{replies: replies}
}

// Body is shorthand for a successful reply.
func Body(s string) Reply {
	return Reply{Body: []byte(s)}
}

// Fetch implements digest.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, req digest.FetchRequest) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(f.replies) == 0 {
		return nil, fmt.Errorf("unexpected request to %s", req.URL)
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r.Body, r.Err
}

// Requests returns the requests seen so far.
func (f *Fetcher) Requests() []digest.FetchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]digest.FetchRequest, len(f.requests))
	copy(out, f.requests)
	return out
}
