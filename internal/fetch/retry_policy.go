package fetch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// RetryPolicy decides whether and when a failed request is attempted again.
type RetryPolicy interface {
	MaxAttempts() int
	Retryable(status int, err error) bool
	Backoff(attempt int) time.Duration
}

// LinearRetryPolicy sleeps base*(attempt+1) between attempts.
type LinearRetryPolicy struct {
	maxAttempts       int
	baseDelay         time.Duration
	retryServerErrors bool
}

// NewLinearRetryPolicy builds a policy. A maxAttempts below one is treated as one.
func NewLinearRetryPolicy(maxAttempts int, baseDelay time.Duration, retryServerErrors bool) *LinearRetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay < 0 {
		baseDelay = 0
	}
	return &LinearRetryPolicy{
		maxAttempts:       maxAttempts,
		baseDelay:         baseDelay,
		retryServerErrors: retryServerErrors,
	}
}

// DefaultRetryPolicy matches the upstream etiquette: four attempts, 2s linear backoff.
func DefaultRetryPolicy() *LinearRetryPolicy {
	return NewLinearRetryPolicy(4, 2*time.Second, true)
}

// MaxAttempts returns the total number of attempts, including the first.
func (p *LinearRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// Retryable classifies a failed attempt.
func (p *LinearRetryPolicy) Retryable(status int, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch {
	case status == http.StatusTooManyRequests:
		return true
	case status >= http.StatusInternalServerError:
		return p.retryServerErrors
	case status != 0:
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// Backoff returns the wait duration before the next attempt.
func (p *LinearRetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return p.baseDelay * time.Duration(attempt+1)
}
