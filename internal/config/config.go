package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These are chosen to be polite toward target sites while keeping
// scrape sessions reasonably fast on ordinary clearnet connections.
const (
	// DefaultTimeout is the per-request timeout. Clearnet sites normally
	// answer well within this; slow sites get a generous margin without
	// letting a hung connection stall the whole session.
	DefaultTimeout = 30 * time.Second

	// DefaultCrawlDepth limits recursion from the start URL.
	// Depth 0 means only the starting page. Most listing-plus-detail
	// sites are fully reachable within three levels.
	DefaultCrawlDepth = 3

	// DefaultMaxPages caps the number of pages fetched per session.
	// This prevents runaway crawling on large or infinitely-generating
	// sites. Users can raise it via the --max-pages flag.
	DefaultMaxPages = 100

	// DefaultBatchSize is the number of start URLs processed concurrently
	// when scraping a list. Raising it increases throughput but also the
	// load placed on target hosts.
	DefaultBatchSize = 4

	// DefaultCrawlDelay is the pause between requests to the same host.
	// One second is conservative and respectful of server resources.
	DefaultCrawlDelay = 1 * time.Second

	// DefaultRequestsPerSecond bounds the overall request rate.
	// Works together with DefaultCrawlDelay; the stricter of the two wins.
	DefaultRequestsPerSecond = 2.0

	// DefaultUserAgent identifies websift in HTTP requests.
	// A descriptive User-Agent lets site operators identify the traffic
	// in their logs and reach out if it causes problems.
	DefaultUserAgent = "websift/1.0 (+https://github.com/websift/websift)"

	// DefaultMaxBodySize limits the response body size to read.
	// 5MB covers any realistic HTML page while preventing memory
	// exhaustion from unexpectedly large responses.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultRetryCount is the number of times a failed request is retried.
	// Retries only apply to transport errors and 5xx responses.
	DefaultRetryCount = 2

	// AppName is the application name used for XDG directory paths.
	AppName = "websift"
)

// Config holds all options for a websift run.
// It is populated from CLI flags and passed through the application via
// dependency injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., FetchConfig, ExportConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant
// benefit.
type Config struct {
	// Timeout is the timeout for each HTTP request.
	Timeout time.Duration

	// CrawlDepth is the maximum recursion depth for crawling.
	// Depth 0 means only fetch the initial page.
	CrawlDepth int

	// MaxPages is the maximum number of pages fetched per session.
	MaxPages int

	// CrawlDelay is the delay between requests during crawling.
	// This is a politeness setting to avoid overwhelming servers.
	CrawlDelay time.Duration

	// MaxPageAge skips targets whose start page was stored within this
	// duration. Zero disables the freshness check and always re-fetches.
	MaxPageAge time.Duration

	// RequestsPerSecond bounds the request rate across the session.
	RequestsPerSecond float64

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Responses larger than this are truncated.
	MaxBodySize int64

	// RetryCount is the number of retries for transient request failures.
	RetryCount int

	// IgnoreRobots disables the robots.txt check.
	// Scrapes respect robots.txt by default; disabling the check is the
	// caller's responsibility.
	IgnoreRobots bool

	// BatchSize is the number of concurrent sessions when processing
	// multiple start URLs.
	BatchSize int

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .websift in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// Sites holds per-site configurations loaded from the config file.
	Sites *File

	// Targets is the list of start URLs.
	Targets []string

	// JSONOutput selects JSON export instead of CSV (the default).
	// Mutually exclusive with MarkdownOutput.
	JSONOutput bool

	// MarkdownOutput selects Markdown export instead of CSV.
	// Mutually exclusive with JSONOutput.
	MarkdownOutput bool

	// OutputFile is the export destination path.
	// When empty, records are written to stdout.
	OutputFile string

	// SnapshotFile is the destination path for the page snapshot archive.
	// When empty, no snapshots are written.
	SnapshotFile string

	// DBDir is the directory path for the SQLite database.
	// When empty, results are not persisted.
	// Defaults to the XDG data directory.
	DBDir string

	// SaveToDB indicates whether to persist session results.
	SaveToDB bool
}

// NewConfig creates a Config with default values.
// All fields are set to safe, sensible defaults that work for most use
// cases; users override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (timeout, delays, caps).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Timeout:           DefaultTimeout,
		CrawlDepth:        DefaultCrawlDepth,
		MaxPages:          DefaultMaxPages,
		CrawlDelay:        DefaultCrawlDelay,
		RequestsPerSecond: DefaultRequestsPerSecond,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		RetryCount:        DefaultRetryCount,
		BatchSize:         DefaultBatchSize,
	}
}

// XDGDataDir returns the XDG data directory for websift.
// On Linux: ~/.local/share/websift
// On macOS: ~/Library/Application Support/websift
// On Windows: %LOCALAPPDATA%\websift
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for websift.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// We return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.JSONOutput && c.MarkdownOutput {
		return ErrConflictingOutputFormats
	}

	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}

	if c.RequestsPerSecond < 0 {
		return ErrInvalidRate
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}

	if c.CrawlDepth < 0 {
		return ErrInvalidCrawlDepth
	}

	if c.MaxPageAge < 0 {
		return ErrInvalidMaxPageAge
	}

	return nil
}
