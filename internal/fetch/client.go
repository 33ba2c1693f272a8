// Package fetch implements the resilient outbound HTTP client shared by source adapters.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/research-digest/internal/digest"
	"github.com/JakeFAU/research-digest/internal/metrics"
)

// Config controls one client. Each adapter owns its own client so politeness is tracked per upstream.
type Config struct {
	Source    string
	UserAgent string
	MinDelay  time.Duration
	Timeout   time.Duration
}

// Limiter throttles requests per host on top of the politeness delay.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Client implements digest.Fetcher using a Colly collector.
type Client struct {
	cfg           Config
	policy        RetryPolicy
	limiter       Limiter
	pauser        pauseController
	baseCollector *colly.Collector
	logger        *zap.Logger
}

var _ digest.Fetcher = (*Client)(nil)

type response struct {
	status int
	body   []byte
}

// New builds a Client. policy defaults to DefaultRetryPolicy and limiter may be nil.
func New(cfg Config, policy RetryPolicy, limiter Limiter, logger *zap.Logger) *Client {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	c.SetRequestTimeout(cfg.Timeout)
	c.WithTransport(newHTTPTransport())

	return &Client{
		cfg:           cfg,
		policy:        policy,
		limiter:       limiter,
		pauser:        &timerPauseController{},
		baseCollector: c,
		logger:        logger.With(zap.String("source", cfg.Source)),
	}
}

// Fetch issues a GET for req, sleeping the politeness delay before every attempt and
// retrying per the policy. Failures surface as *FetchError.
func (c *Client) Fetch(ctx context.Context, req digest.FetchRequest) ([]byte, error) {
	target, err := buildURL(req.URL, req.Query)
	if err != nil {
		metrics.ObserveFetch(c.cfg.Source, "error")
		return nil, &FetchError{Source: c.cfg.Source, URL: req.URL, Err: err}
	}

	maxAttempts := c.policy.MaxAttempts()
	var lastErr *FetchError
	for attempt := 0; attempt < maxAttempts; attempt++ {
		c.pauser.Pause(ctx, c.cfg.MinDelay)
		if err := ctx.Err(); err != nil {
			lastErr = &FetchError{Source: c.cfg.Source, URL: target, Err: err}
			break
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, target); err != nil {
				lastErr = &FetchError{Source: c.cfg.Source, URL: target, Err: err}
				break
			}
		}

		resp, err := c.do(ctx, target, req.Headers)
		if err == nil {
			metrics.ObserveFetch(c.cfg.Source, "ok")
			return resp.body, nil
		}
		lastErr = &FetchError{Source: c.cfg.Source, URL: target, StatusCode: resp.status, Err: err}

		if attempt+1 >= maxAttempts || !c.policy.Retryable(resp.status, err) {
			break
		}
		delay := c.policy.Backoff(attempt)
		c.logger.Warn("retrying upstream request",
			zap.String("url", target),
			zap.Int("status", resp.status),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		metrics.ObserveRetry(c.cfg.Source)
		c.pauser.Pause(ctx, delay)
	}

	metrics.ObserveFetch(c.cfg.Source, "error")
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, target string, headers http.Header) (response, error) {
	var (
		result   response
		fetchErr error
	)
	collector := c.baseCollector.Clone()
	collector.Context = ctx
	if c.cfg.UserAgent != "" {
		collector.UserAgent = c.cfg.UserAgent
	}

	collector.OnRequest(func(r *colly.Request) {
		for key, values := range headers {
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		result = response{
			status: r.StatusCode,
			body:   append([]byte(nil), r.Body...),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.status = r.StatusCode
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return response{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return result, fmt.Errorf("response failed: %w", fetchErr)
		}
		if err != nil {
			return result, fmt.Errorf("visit failed: %w", err)
		}
		if result.status == 0 {
			return result, errors.New("no response received")
		}
		return result, nil
	}
}

func buildURL(base string, query url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q must be absolute", base)
	}
	if len(query) > 0 {
		merged := u.Query()
		for key, values := range query {
			for _, v := range values {
				merged.Add(key, v)
			}
		}
		u.RawQuery = merged.Encode()
	}
	return u.String(), nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
