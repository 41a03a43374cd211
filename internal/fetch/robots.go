package fetch

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/temoto/robotstxt"
)

// RobotsGate checks URLs against the robots.txt of their host.
// robots.txt is fetched once per host and the parsed form is cached for
// the lifetime of the gate, so a crawl of one site costs a single extra
// request.
//
// Design decision: The gate fails open on network errors. An unreachable
// robots.txt doesn't signal "keep out"; treating it that way would make
// transient failures look like policy. Status-code semantics (4xx allows
// all, 5xx disallows all) follow the robotstxt library's handling.
type RobotsGate struct {
	// client fetches robots.txt files. Kept separate from the page
	// client so robots requests aren't throttled by the page limiter.
	client *resty.Client

	// userAgent is the agent name matched against robots.txt groups.
	userAgent string

	// logger for structured logging.
	logger *slog.Logger

	// mu protects cache.
	mu sync.Mutex

	// cache maps "scheme://host" to parsed robots data.
	cache map[string]*robotstxt.RobotsData
}

// RobotsGateOption configures a RobotsGate.
type RobotsGateOption func(*RobotsGate)

// WithRobotsTimeout sets the timeout for robots.txt requests.
func WithRobotsTimeout(timeout time.Duration) RobotsGateOption {
	return func(g *RobotsGate) {
		g.client.SetTimeout(timeout)
	}
}

// WithRobotsLogger sets a custom logger for the gate.
func WithRobotsLogger(logger *slog.Logger) RobotsGateOption {
	return func(g *RobotsGate) {
		g.logger = logger
	}
}

// NewRobotsGate creates a RobotsGate matching the given user agent.
func NewRobotsGate(userAgent string, opts ...RobotsGateOption) *RobotsGate {
	g := &RobotsGate{
		client:    resty.New().SetTimeout(10 * time.Second).SetHeader("User-Agent", userAgent),
		userAgent: userAgent,
		logger:    slog.Default(),
		cache:     make(map[string]*robotstxt.RobotsData),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Allowed reports whether the given URL may be fetched according to the
// robots.txt of its host. Unparseable URLs are not allowed.
func (g *RobotsGate) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}

	data := g.robotsFor(ctx, u)
	if data == nil {
		// robots.txt unreachable: fail open
		return true
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	return data.TestAgent(path, g.userAgent)
}

// robotsFor returns cached robots data for the URL's host, fetching it
// on first use. Returns nil when robots.txt could not be retrieved.
func (g *RobotsGate) robotsFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	key := u.Scheme + "://" + u.Host

	g.mu.Lock()
	defer g.mu.Unlock()

	if data, ok := g.cache[key]; ok {
		return data
	}

	resp, err := g.client.R().SetContext(ctx).Get(key + "/robots.txt")
	if err != nil {
		g.logger.Debug("robots.txt fetch failed, allowing all",
			"host", u.Host,
			"error", err,
		)
		// Cache the nil so we don't re-fetch on every URL
		g.cache[key] = nil
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode(), resp.Body())
	if err != nil {
		g.logger.Debug("robots.txt parse failed, allowing all",
			"host", u.Host,
			"error", err,
		)
		g.cache[key] = nil
		return nil
	}

	g.logger.Debug("robots.txt loaded", "host", u.Host, "status", resp.StatusCode())
	g.cache[key] = data
	return data
}
