package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/websift/websift/internal/fetch"
	"github.com/websift/websift/internal/model"
	"github.com/websift/websift/internal/parse"
)

// Spider crawls a site breadth-first from a starting URL.
// It manages a queue of URLs to visit and respects depth and page caps.
type Spider struct {
	// client performs the fetches. It carries the politeness settings
	// (rate limit, robots.txt gate), so the spider doesn't re-implement
	// them.
	client *fetch.Client

	// maxDepth limits how deep to crawl from the starting URL.
	// 0 means only the starting page, 1 means one level of links, etc.
	maxDepth int

	// maxPages limits the total number of pages fetched.
	// This prevents runaway crawling on large sites.
	maxPages int

	// delay is the time to wait between requests.
	delay time.Duration

	// ignorePatterns are URL path patterns to skip during crawling.
	// Patterns use glob syntax (e.g., "/admin/*", "*.pdf").
	ignorePatterns []string

	// followPatterns are URL path patterns to follow during crawling.
	// If set, only URLs matching these patterns are crawled.
	// Empty means all URLs are allowed (subject to ignorePatterns).
	followPatterns []string

	// logger for structured logging.
	logger *slog.Logger

	// mutex protects visited, failures, and pageCount.
	mutex sync.Mutex

	// visited tracks normalized URLs already seen.
	visited map[string]bool

	// failures collects non-fatal fetch failures.
	failures []model.FetchFailure

	// pageCount tracks pages fetched.
	pageCount int
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum crawl depth.
// 0 = only the starting page, 1 = starting page plus linked pages, etc.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithMaxPages sets the maximum number of pages to fetch.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithDelay sets the delay between requests.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.delay = d
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// If set, only URLs matching at least one pattern are crawled.
// Empty slice means all URLs are allowed (default behavior).
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithSpiderLogger sets a custom logger.
func WithSpiderLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a Spider using the given fetch client.
//
// Design decision: We require an external client because:
//  1. Politeness configuration (rate limit, robots) lives in fetch
//  2. One client can be shared between spider and paginator
//  3. Tests inject clients pointed at httptest servers
func NewSpider(client *fetch.Client, opts ...SpiderOption) *Spider {
	s := &Spider{
		client:   client,
		maxDepth: 3,
		maxPages: 100,
		delay:    1 * time.Second,
		logger:   slog.Default(),
		visited:  make(map[string]bool),
		failures: make([]model.FetchFailure, 0),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Crawl fetches pages breadth-first starting at startURL and returns
// them in fetch order. Crawling stays on the start URL's host.
//
// Fetch failures for individual pages are recorded (see Failures) and
// crawling continues; only an invalid start URL or context cancellation
// abort the crawl. On cancellation the pages collected so far are
// returned along with the context error.
func (s *Spider) Crawl(ctx context.Context, startURL string) ([]*model.Page, error) {
	start, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start URL: %w", err)
	}
	if start.Scheme != "http" && start.Scheme != "https" {
		start.Scheme = "http"
	}

	pages := make([]*model.Page, 0)
	queue := []queueItem{{url: start.String(), depth: 0}}

	for len(queue) > 0 && s.pageCount < s.maxPages {
		select {
		case <-ctx.Done():
			return pages, ctx.Err()
		default:
		}

		item := queue[0]
		queue = queue[1:]

		if s.isVisited(item.url) {
			continue
		}
		s.markVisited(item.url)

		page, links, err := s.fetchPage(ctx, item.url)
		if err != nil {
			kind, status := fetch.ClassifyError(err)
			s.recordFailure(model.FetchFailure{
				URL:        item.url,
				Kind:       kind,
				StatusCode: status,
				Message:    err.Error(),
			})
			s.logger.Debug("page fetch failed, skipping",
				"url", item.url,
				"kind", kind,
				"error", err,
			)
			continue
		}

		pages = append(pages, page)
		s.incrementPageCount()

		if item.depth < s.maxDepth {
			for _, link := range links {
				if !s.isVisited(link) && s.isSameHost(start.Host, link) && s.shouldCrawl(link) {
					queue = append(queue, queueItem{url: link, depth: item.depth + 1})
				}
			}
		}

		// Politeness delay
		if s.delay > 0 && len(queue) > 0 {
			select {
			case <-ctx.Done():
				return pages, ctx.Err()
			case <-time.After(s.delay):
			}
		}
	}

	return pages, nil
}

// queueItem represents an item in the crawl queue.
type queueItem struct {
	url   string
	depth int
}

// fetchPage fetches a single page and extracts its title and internal
// links.
func (s *Spider) fetchPage(ctx context.Context, pageURL string) (*model.Page, []string, error) {
	page, err := s.client.Get(ctx, pageURL)
	if err != nil {
		return nil, nil, err
	}

	var links []string
	if page.IsHTML() {
		doc, err := parse.ParsePage(page)
		if err == nil {
			page.Title = doc.Title()
			links = doc.InternalLinks()
		}
	}

	return page, links, nil
}

// Failures returns the non-fatal fetch failures recorded so far.
func (s *Spider) Failures() []model.FetchFailure {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := make([]model.FetchFailure, len(s.failures))
	copy(out, s.failures)
	return out
}

// Reset clears the spider's state, allowing it to be reused.
func (s *Spider) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.visited = make(map[string]bool)
	s.failures = s.failures[:0]
	s.pageCount = 0
}

// Stats returns current crawl statistics.
func (s *Spider) Stats() SpiderStats {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return SpiderStats{
		PagesFetched: s.pageCount,
		URLsSeen:     len(s.visited),
		Failures:     len(s.failures),
	}
}

// SpiderStats contains crawl statistics.
type SpiderStats struct {
	// PagesFetched is the number of pages successfully fetched.
	PagesFetched int

	// URLsSeen is the number of unique URLs encountered.
	URLsSeen int

	// Failures is the number of fetch failures.
	Failures int
}

func (s *Spider) isVisited(pageURL string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.visited[normalizeURL(pageURL)]
}

func (s *Spider) markVisited(pageURL string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.visited[normalizeURL(pageURL)] = true
}

func (s *Spider) recordFailure(f model.FetchFailure) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.failures = append(s.failures, f)
}

func (s *Spider) incrementPageCount() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.pageCount++
}

// isSameHost checks if a URL stays on the crawl's host.
//
// Design decision: We only crawl the same host by default because:
//  1. Following external links turns a site scrape into an open crawl
//  2. robots.txt and rate limits are per-host concerns
func (s *Spider) isSameHost(baseHost, targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, baseHost)
}

// shouldCrawl checks if a URL passes the ignore/follow pattern filters.
//
// Logic:
//  1. If the URL's path matches any ignorePattern, skip it
//  2. If followPatterns is set and the path matches none, skip it
//  3. Otherwise, crawl it
func (s *Spider) shouldCrawl(targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(s.followPatterns) > 0 {
		for _, pattern := range s.followPatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}

	return true
}

// normalizeURL normalizes a URL for deduplication.
//
// Design decision: We normalize URLs because:
//  1. The same page can have different URL representations
//  2. Fragment (#anchor) doesn't change content
//  3. An empty path and "/" are the same page
func normalizeURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}

	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}
