package engine

import (
	"context"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// Config holds the settings shared by the HTTP adapters.
type Config struct {
	APIKey string
	// BaseURL overrides the engine endpoint (scheme and host).
	BaseURL string
	// Timeout is the per-request timeout. Default: 30s.
	Timeout time.Duration
	// MaxRetries is the number of retries on 429 and 5xx. Default: 3.
	MaxRetries int
	// Backoff is the first retry delay; it doubles on each retry. Default: 1s.
	Backoff time.Duration
	// RatePerSecond paces requests. 0 means unlimited.
	RatePerSecond float64
	// Proxy is an optional HTTP proxy URL.
	Proxy  string
	Logger *slog.Logger
}

func (c Config) effectiveTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 30 * time.Second
}

func (c Config) effectiveMaxRetries() int {
	if c.MaxRetries > 0 {
		return c.MaxRetries
	}
	if c.MaxRetries < 0 {
		return 0
	}
	return 3
}

func (c Config) effectiveBackoff() time.Duration {
	if c.Backoff > 0 {
		return c.Backoff
	}
	return time.Second
}

// client wraps resty with pacing, retries and error classification.
type client struct {
	name       string
	http       *resty.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

func newClient(name string, cfg Config) *client {
	hc := resty.New().SetTimeout(cfg.effectiveTimeout())
	if cfg.Proxy != "" {
		hc.SetProxy(cfg.Proxy)
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &client{
		name:       name,
		http:       hc,
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: cfg.effectiveMaxRetries(),
		backoff:    cfg.effectiveBackoff(),
		logger:     logger.With("engine", name),
	}
}

// post sends the request built by build, retrying on 429 and 5xx with
// exponential backoff. build is called once per attempt. The returned
// body belongs to a 2xx response; any other outcome is an *Error.
func (c *client) post(ctx context.Context, url string, build func(*resty.Request) *resty.Request, detail func([]byte) string) ([]byte, error) {
	var lastErr *Error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Engine: c.name, Kind: KindTransport, Detail: err.Error(), Err: err}
		}

		c.logger.Debug("request", "url", url, "attempt", attempt+1)

		resp, err := build(c.http.R().SetContext(ctx)).Post(url)
		if err != nil {
			lastErr = &Error{Engine: c.name, Kind: KindTransport, Detail: err.Error(), Err: err}
			if ctx.Err() != nil {
				return nil, lastErr
			}
			if attempt < c.maxRetries {
				if err := c.sleep(ctx, c.delay(attempt, nil)); err != nil {
					return nil, lastErr
				}
				continue
			}
			return nil, lastErr
		}

		status := resp.StatusCode()
		body := resp.Body()
		c.logger.Debug("response", "status", status, "bytes", len(body))

		if status >= 200 && status < 300 {
			return body, nil
		}

		msg := detail(body)
		if msg == "" {
			msg = truncate(string(body), 300)
		}
		lastErr = &Error{Engine: c.name, Kind: classify(status, msg), Status: status, Detail: msg}

		if lastErr.Temporary() && attempt < c.maxRetries {
			wait := c.delay(attempt, resp.Header())
			c.logger.Warn("retrying", "status", status, "wait", wait, "attempt", attempt+1, "max", c.maxRetries)
			if err := c.sleep(ctx, wait); err != nil {
				return nil, lastErr
			}
			continue
		}
		return nil, lastErr
	}

	return nil, lastErr
}

// delay returns the wait before retry attempt+1. A Retry-After header in
// seconds takes precedence over the exponential schedule.
func (c *client) delay(attempt int, h http.Header) time.Duration {
	if h != nil {
		if s := h.Get("Retry-After"); s != "" {
			if secs, err := strconv.Atoi(s); err == nil && secs >= 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return time.Duration(math.Pow(2, float64(attempt))) * c.backoff
}

func (c *client) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
