// Package scrape provides the polite HTTP client used to talk to remote
// prediction tools and public chemistry services, plus the HTML helpers
// needed to pull forms and tables out of their pages.
package scrape

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/turtacn/enzbench/internal/config"
	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/prometheus"
	errs "github.com/turtacn/enzbench/pkg/errors"
)

// Cache stores response bodies. The redis Cache satisfies it; any Get error
// is treated as a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options configures a Client.
type Options struct {
	Timeout           time.Duration
	UserAgent         string
	RequestsPerSecond float64
	Burst             int
	MaxRetries        uint64
	RetryMaxElapsed   time.Duration
	// InitialInterval is the first retry delay.
	InitialInterval time.Duration
	Cache           Cache
	CacheTTL        time.Duration
	Metrics         *prometheus.PipelineMetrics
}

// OptionsFromConfig maps the http config section onto Options.
func OptionsFromConfig(cfg config.HTTPConfig) Options {
	return Options{
		Timeout:           cfg.Timeout,
		UserAgent:         cfg.UserAgent,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		MaxRetries:        cfg.MaxRetries,
		RetryMaxElapsed:   cfg.RetryMaxElapsed,
	}
}

// Client performs rate limited, retried HTTP requests. Each Client owns a
// cookie jar; Session derives a client with a fresh jar that shares the
// limiter and cache.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	opts    Options
	logger  logging.Logger
}

// NewClient builds a Client. Zero options fall back to the config defaults.
func NewClient(opts Options, log logging.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultHTTPTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = config.DefaultUserAgent
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}
	if opts.Metrics == nil {
		opts.Metrics = prometheus.NewNopPipelineMetrics()
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	c := &Client{
		limiter: rate.NewLimiter(limit, opts.Burst),
		opts:    opts,
		logger:  log,
	}
	c.http = c.newHTTPClient()
	return c
}

func (c *Client) newHTTPClient() *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{Timeout: c.opts.Timeout, Jar: jar}
}

// Session returns a client with an empty cookie jar sharing this client's
// limiter, cache and metrics.
func (c *Client) Session() *Client {
	s := &Client{limiter: c.limiter, opts: c.opts, logger: c.logger}
	s.http = s.newHTTPClient()
	return s
}

// Request describes one call.
type Request struct {
	Method string
	URL    string
	// Form is sent url-encoded in the body of POST requests and appended to
	// the query of GET requests.
	Form url.Values
	// Tool labels metrics and logs.
	Tool string
	// Cache enables the response cache for this call.
	Cache bool
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Cached     bool
}

// CacheKey identifies a request in the response cache.
func CacheKey(method, rawURL string, form url.Values) string {
	sum := sha256.Sum256([]byte(method + " " + rawURL + "?" + form.Encode()))
	return "http:" + hex.EncodeToString(sum[:])
}

// Get fetches rawURL.
func (c *Client) Get(ctx context.Context, tool, rawURL string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: rawURL, Tool: tool})
}

// PostForm posts form to rawURL.
func (c *Client) PostForm(ctx context.Context, tool, rawURL string, form url.Values) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, URL: rawURL, Form: form, Tool: tool})
}

// Do runs req. Transport errors and 5xx responses are retried with
// exponential backoff; any other status >= 400 fails immediately.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.Tool == "" {
		req.Tool = "http"
	}
	var key string
	if req.Cache && c.opts.Cache != nil {
		key = CacheKey(req.Method, req.URL, req.Form)
		if body, ok := c.lookup(ctx, key); ok {
			return &Response{StatusCode: http.StatusOK, Body: body, Cached: true}, nil
		}
	}

	start := time.Now()
	resp, err := c.retry(ctx, req)
	c.opts.Metrics.RecordRemote(req.Tool, start, err)
	if err != nil {
		return nil, err
	}
	if key != "" {
		if err := c.opts.Cache.Set(ctx, key, resp.Body, c.opts.CacheTTL); err != nil {
			c.logger.Warn("response cache write failed", logging.String("url", req.URL), logging.Err(err))
		}
	}
	return resp, nil
}

// Cached returns the value stored under key or computes it with fetch and
// stores it. Without a configured cache fetch always runs.
func (c *Client) Cached(ctx context.Context, key string, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if c.opts.Cache == nil {
		return fetch(ctx)
	}
	if body, ok := c.lookup(ctx, key); ok {
		return body, nil
	}
	body, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.opts.Cache.Set(ctx, key, body, c.opts.CacheTTL); err != nil {
		c.logger.Warn("response cache write failed", logging.String("key", key), logging.Err(err))
	}
	return body, nil
}

func (c *Client) lookup(ctx context.Context, key string) ([]byte, bool) {
	body, err := c.opts.Cache.Get(ctx, key)
	hit := err == nil
	c.opts.Metrics.RecordCache(hit)
	return body, hit
}

func (c *Client) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialInterval
	if c.opts.RetryMaxElapsed > 0 {
		b.MaxElapsedTime = c.opts.RetryMaxElapsed
	}
	var bo backoff.BackOff = b
	if c.opts.MaxRetries > 0 {
		bo = backoff.WithMaxRetries(bo, c.opts.MaxRetries)
	}
	return backoff.WithContext(bo, ctx)
}

func (c *Client) retry(ctx context.Context, req Request) (*Response, error) {
	var out *Response
	attempt := 0
	op := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.once(ctx, req)
		if err != nil {
			c.logger.Debug("remote request failed",
				logging.String("tool", req.Tool),
				logging.String("url", req.URL),
				logging.Int("attempt", attempt),
				logging.Err(err))
			if errs.IsCode(err, errs.ErrCodeToolRejected) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = resp
		return nil
	}
	if err := backoff.Retry(op, c.backOff(ctx)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return out, nil
}

func (c *Client) once(ctx context.Context, req Request) (*Response, error) {
	target := req.URL
	var body io.Reader
	if req.Form != nil {
		if req.Method == http.MethodGet {
			sep := "?"
			if strings.Contains(target, "?") {
				sep = "&"
			}
			target += sep + req.Form.Encode()
		} else {
			body = strings.NewReader(req.Form.Encode())
		}
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeToolRejected, "build request").WithDetail(target)
	}
	hreq.Header.Set("User-Agent", c.opts.UserAgent)
	if body != nil {
		hreq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(hreq)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeToolUnavailable, req.Tool+" unreachable").WithDetail(target)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeToolUnavailable, "read response body").WithDetail(target)
	}
	switch {
	case resp.StatusCode >= 500:
		return nil, errs.Newf(errs.ErrCodeExternalService, "%s returned HTTP %d", req.Tool, resp.StatusCode).WithDetail(target)
	case resp.StatusCode >= 400:
		return nil, errs.Newf(errs.ErrCodeToolRejected, "%s returned HTTP %d", req.Tool, resp.StatusCode).WithDetail(target)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}
