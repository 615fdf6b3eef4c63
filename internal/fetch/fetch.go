// Package fetch provides the HTTP conditional-revalidation transport used
// by sources: it replays stored ETag / Last-Modified validators and reports
// 304 Not Modified responses so callers can keep stale cached data valid
// without re-downloading.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/patternflow/patterns-mcp/internal/cache"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "patterns-mcp/1.0"
	maxBodyBytes     = 10 << 20 // 10 MiB cap on upstream payloads
)

// Result is the outcome of a conditional GET. Data is nil iff NotModified.
type Result struct {
	Data        *string
	Meta        cache.HTTPMeta
	NotModified bool
}

// Client performs conditional GETs with retry on transient failures.
type Client struct {
	http      *http.Client
	retry     RetryConfig
	userAgent string
	logger    zerolog.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithRetry overrides the retry policy.
func WithRetry(cfg RetryConfig) ClientOption {
	return func(c *Client) { c.retry = cfg }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// WithLogger attaches a logger.
func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Client with sane defaults.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:      &http.Client{Timeout: defaultTimeout},
		retry:     DefaultRetryConfig(),
		userAgent: defaultUserAgent,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConditionalGet fetches url, sending If-None-Match / If-Modified-Since
// when prev carries the corresponding validators. A 304 yields
// NotModified=true with nil Data; a 2xx yields the body and fresh
// validators; anything else is an error. Transient failures (network
// errors, 5xx, 429) are retried with exponential backoff.
func (c *Client) ConditionalGet(ctx context.Context, url string, prev *cache.HTTPMeta) (*Result, error) {
	return retryWithBackoff(ctx, c.retry, func() (*Result, error) {
		return c.get(ctx, url, prev)
	})
}

func (c *Client) get(ctx context.Context, url string, prev *cache.HTTPMeta) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, permanent(fmt.Errorf("building request for %s: %w", url, err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	if prev != nil {
		if prev.ETag != "" {
			req.Header.Set("If-None-Match", prev.ETag)
		}
		if prev.LastModified != "" {
			req.Header.Set("If-Modified-Since", prev.LastModified)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err // transient: retried
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return &Result{NotModified: true, Meta: metaFrom(resp, prev)}, nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("reading body from %s: %w", url, err)
		}
		data := string(body)
		return &Result{Data: &data, Meta: metaFrom(resp, nil)}, nil

	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)

	default:
		return nil, permanent(fmt.Errorf("fetching %s: status %d", url, resp.StatusCode))
	}
}

// metaFrom captures validators from a response, falling back to the
// previous validators on a 304 (some servers omit them).
func metaFrom(resp *http.Response, prev *cache.HTTPMeta) cache.HTTPMeta {
	meta := cache.HTTPMeta{
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}
	if prev != nil {
		if meta.ETag == "" {
			meta.ETag = prev.ETag
		}
		if meta.LastModified == "" {
			meta.LastModified = prev.LastModified
		}
	}
	return meta
}
