// Package remote is the HTTP plumbing shared by the NCBI and EBI clients:
// context-bound requests, bounded retries of transient failures and
// diagnostics for unexpected statuses.
package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"curiesuite/internal/errors"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	defaultMaxRetries = 3
	defaultRetryBase  = 500 * time.Millisecond
	diagnosticBytes   = 2048
)

// Options configures a Client
type Options struct {
	Service    string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	RetryBase  time.Duration

	// RateLimit caps requests per minute, zero for no limit
	RateLimit int
}

// Client issues requests against one remote service
type Client struct {
	http    *http.Client
	opts    Options
	limiter *RateLimiter
	log     zerolog.Logger
}

// New creates a client. HTTP may be nil.
func New(httpClient *http.Client, o Options, log zerolog.Logger) *Client {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	} else if o.MaxRetries == 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	if o.UserAgent == "" {
		o.UserAgent = "curiesuite"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: o.Timeout}
	}
	return &Client{
		http:    httpClient,
		opts:    o,
		limiter: NewRateLimiter(o.RateLimit),
		log:     log.With().Str("service", o.Service).Logger(),
	}
}

// RequestFunc builds a fresh request for each attempt
type RequestFunc func(ctx context.Context) (*http.Request, error)

// Do sends the request built by build. Transport errors and 429/502/503/504
// responses are retried with exponential backoff; any other non-2xx status
// is returned as an EXTERNAL_SERVICE_ERROR carrying the start of the body.
// The caller owns the returned body.
func (c *Client) Do(ctx context.Context, build RequestFunc) (*http.Response, error) {
	var resp *http.Response
	attempt := 0

	op := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := build(ctx)
		if err != nil {
			return backoff.Permanent(errors.Wrapf(err, "%s: build request", c.opts.Service))
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)

		start := time.Now()
		r, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return errors.ExternalServiceError(c.opts.Service, err)
		}

		c.log.Debug().
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Int("status", r.StatusCode).
			Int("attempt", attempt).
			Dur("latency", time.Since(start)).
			Msg("http response")

		switch {
		case r.StatusCode >= 200 && r.StatusCode < 300:
			resp = r
			return nil
		case transient(r.StatusCode):
			_ = drainAndClose(r.Body)
			return errors.ExternalServiceError(c.opts.Service, fmt.Errorf("transient status %d", r.StatusCode))
		default:
			body, _ := io.ReadAll(io.LimitReader(r.Body, diagnosticBytes))
			_ = r.Body.Close()
			return backoff.Permanent(errors.ExternalServiceError(c.opts.Service,
				fmt.Errorf("unexpected status %d: %s", r.StatusCode, strings.TrimSpace(string(body)))))
		}
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.opts.RetryBase
	eb.MaxInterval = 30 * time.Second
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.opts.MaxRetries)), ctx)

	notify := func(err error, wait time.Duration) {
		c.log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("transient error, retrying")
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return resp, nil
}

// Text performs the request and returns the whole body as text
func (c *Client) Text(ctx context.Context, build RequestFunc) (string, error) {
	resp, err := c.Do(ctx, build)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.ExternalServiceError(c.opts.Service, fmt.Errorf("read response: %w", err))
	}
	return string(body), nil
}

// Get builds a GET request for endpoint
func Get(endpoint string) RequestFunc {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	}
}

// PostForm builds a form-encoded POST request. The body is rebuilt per
// attempt.
func PostForm(endpoint string, form url.Values) RequestFunc {
	return func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}
}

func transient(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func drainAndClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 64<<10))
	return rc.Close()
}
