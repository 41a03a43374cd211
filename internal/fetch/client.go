package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/websift/websift/internal/config"
	"github.com/websift/websift/internal/model"
)

// Client fetches pages over HTTP with politeness controls.
// Every request passes the rate limiter and, unless disabled, the
// robots.txt gate before going on the wire.
//
// Design decision: We build on resty rather than bare net/http because:
//  1. Retry with backoff for transient transport errors comes built in
//  2. Header/cookie defaults apply uniformly to every request
//  3. The underlying http.Client remains accessible when needed
type Client struct {
	// rc is the underlying resty client.
	rc *resty.Client

	// limiter bounds the request rate. Nil means unlimited.
	limiter *rate.Limiter

	// robots is the robots.txt gate. Nil means checks are disabled.
	robots *RobotsGate

	// maxBodySize limits the size of response bodies to read.
	maxBodySize int64

	// logger for structured logging.
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.rc.SetTimeout(timeout)
	}
}

// WithUserAgent sets the User-Agent header for all requests.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.rc.SetHeader("User-Agent", ua)
	}
}

// WithHeaders sets additional headers sent with every request.
// Used for per-site headers from the config file.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		for k, v := range headers {
			c.rc.SetHeader(k, v)
		}
	}
}

// WithCookie sets a raw Cookie header sent with every request.
// Format: "name=value" or "name1=value1; name2=value2".
func WithCookie(cookie string) Option {
	return func(c *Client) {
		if cookie != "" {
			c.rc.SetHeader("Cookie", cookie)
		}
	}
}

// WithMaxBodySize sets the maximum response body size.
func WithMaxBodySize(size int64) Option {
	return func(c *Client) {
		if size > 0 {
			c.maxBodySize = size
		}
	}
}

// WithRetryCount sets how many times transient request failures are
// retried. Retries apply to transport errors only; HTTP status errors
// are returned to the caller immediately.
func WithRetryCount(n int) Option {
	return func(c *Client) {
		c.rc.SetRetryCount(n)
	}
}

// WithRateLimit bounds the overall request rate in requests per second.
// A rate of 0 disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithRobotsGate enables robots.txt checking through the given gate.
func WithRobotsGate(gate *RobotsGate) Option {
	return func(c *Client) {
		c.robots = gate
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client with the given options.
// Without options, the client uses the package defaults from config:
// 30s timeout, 5MB body cap, the websift User-Agent, and no robots gate.
func NewClient(opts ...Option) *Client {
	c := &Client{
		rc:          resty.New(),
		maxBodySize: config.DefaultMaxBodySize,
		logger:      slog.Default(),
	}

	c.rc.SetTimeout(config.DefaultTimeout)
	c.rc.SetHeader("User-Agent", config.DefaultUserAgent)
	c.rc.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	c.rc.SetHeader("Accept-Language", "en-US,en;q=0.5")

	// Bodies are read manually with a size cap, so resty must not
	// consume them first.
	c.rc.SetDoNotParseResponse(true)

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get performs a single blocking GET request and returns the fetched page.
//
// The error is one of three kinds (see package doc): *StatusError for
// HTTP failures, a wrapped transport error for network failures, or a
// wrapped ErrRobotsDisallowed for robots refusals.
func (c *Client) Get(ctx context.Context, pageURL string) (*model.Page, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	if c.robots != nil && !c.robots.Allowed(ctx, pageURL) {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, ErrRobotsDisallowed)
	}

	start := time.Now()
	resp, err := c.rc.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return nil, fmt.Errorf("request failed for %s: %w", pageURL, err)
	}

	raw := resp.RawBody()
	defer raw.Close() //nolint:errcheck // Nothing useful to do with a close error here

	// Read body with limit
	body, err := io.ReadAll(io.LimitReader(raw, c.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading body of %s: %w", pageURL, err)
	}

	c.logger.Debug("fetched page",
		"url", pageURL,
		"status", resp.StatusCode(),
		"bytes", len(body),
		"elapsed", time.Since(start),
	)

	if resp.StatusCode() >= 400 {
		return nil, &StatusError{
			URL:        pageURL,
			StatusCode: resp.StatusCode(),
			Status:     resp.Status(),
		}
	}

	page := &model.Page{
		URL:         pageURL,
		StatusCode:  resp.StatusCode(),
		Headers:     resp.Header(),
		ContentType: resp.Header().Get("Content-Type"),
		FetchedAt:   time.Now(),
		Raw:         body,
	}

	if page.IsHTML() {
		page.Snapshot = string(body)
	}

	page.ComputeHash()
	page.TruncateRaw()
	page.TruncateSnapshot()

	return page, nil
}
