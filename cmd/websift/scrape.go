package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/websift/websift/internal/config"
	"github.com/websift/websift/internal/export"
	"github.com/websift/websift/internal/extract"
	"github.com/websift/websift/internal/fetch"
	"github.com/websift/websift/internal/log"
	"github.com/websift/websift/internal/model"
	"github.com/websift/websift/internal/pipeline"
	"github.com/websift/websift/internal/store"
)

// NewScrapeCmd creates the scrape command.
func NewScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape [url...]",
		Short: "Scrape structured records from one or more pages",
		Long: `Scrape fetches each start URL, optionally follows "next page" links,
and extracts structured records using CSS selectors.

Extraction rules come from the .websift configuration file (matched by
hostname) or from --item/--field flags for quick one-off scrapes.

Examples:
  # Scrape using rules from .websift
  websift scrape http://books.toscrape.com/

  # Quick scrape with inline rules
  websift scrape --item "article.product_pod" \
    --field "title=h3 a@title" --field "price=p.price_color" \
    http://books.toscrape.com/

  # Follow pagination and export CSV to a file
  websift scrape --next "li.next a" -o books.csv http://books.toscrape.com/

  # JSON report instead of CSV records
  websift scrape --json http://books.toscrape.com/

  # Scrape several listings concurrently
  websift scrape -b 4 http://site1.example/ http://site2.example/`,
		Args: cobra.ArbitraryArgs,
		RunE: runScrapeCmd,
	}

	addCommonFlags(cmd)

	// Inline extraction rules
	cmd.Flags().StringP("item", "i", "",
		"CSS selector for repeated items (one record per match)")
	cmd.Flags().StringArrayP("field", "F", nil,
		`Field rule "name=selector" or "name=selector@attr" (repeatable)`)
	cmd.Flags().StringP("next", "n", "",
		"CSS selector for the next-page link to follow")

	return cmd
}

// addCommonFlags registers the flags shared by scrape and crawl.
func addCommonFlags(cmd *cobra.Command) {
	// Fetch behavior flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each HTTP request")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to fetch per session")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Delay between requests to the same host")
	cmd.Flags().Float64("rate", config.DefaultRequestsPerSecond,
		"Maximum requests per second (0 disables rate limiting)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with requests")
	cmd.Flags().Bool("ignore-robots", false,
		"Skip the robots.txt check (use responsibly)")
	cmd.Flags().Duration("max-age", 0,
		"Skip targets whose start page was stored within this duration (0 always re-fetches)")

	// Batch flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of concurrent sessions when given multiple URLs")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .websift in current or home directory)")

	// Output flags
	cmd.Flags().BoolP("json", "j", false,
		"Output a JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output a Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write output to the specified file (creates directories if needed)")
	cmd.Flags().String("snapshots", "",
		"Write fetched pages as a Markdown archive to the specified file")
	cmd.Flags().Bool("no-store", false,
		"Do not persist results to the local database")
}

// runScrapeCmd executes the scrape command.
func runScrapeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	// Fold inline rules into the config defaults so they apply to every
	// target regardless of hostname
	if err := applyInlineRules(cmd, cfg); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	return runHarvest(ctx, cfg, logger, false)
}

// setupLogger creates the application logger writing to stderr.
func setupLogger(verbose bool) *slog.Logger {
	return log.NewLogger(os.Stderr, verbose)
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return ctx, cancel
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return nil, err
	}

	cfg.CrawlDelay, err = cmd.Flags().GetDuration("delay")
	if err != nil {
		return nil, err
	}

	cfg.RequestsPerSecond, err = cmd.Flags().GetFloat64("rate")
	if err != nil {
		return nil, err
	}

	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}

	cfg.IgnoreRobots, err = cmd.Flags().GetBool("ignore-robots")
	if err != nil {
		return nil, err
	}

	cfg.MaxPageAge, err = cmd.Flags().GetDuration("max-age")
	if err != nil {
		return nil, err
	}

	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load site-specific configurations from the config file.
	// If the user explicitly specified a config file path, error if not
	// found. If no path was specified, silently use an empty config.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.Sites, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		cfg.Sites = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	cfg.JSONOutput, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownOutput, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.OutputFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	cfg.SnapshotFile, err = cmd.Flags().GetString("snapshots")
	if err != nil {
		return nil, err
	}

	noStore, err := cmd.Flags().GetBool("no-store")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noStore
	cfg.DBDir = config.XDGDataDir()

	cfg.Verbose = getVerboseFlag(cmd)

	// Positional arguments are the start URLs
	cfg.Targets = args

	return cfg, nil
}

// applyInlineRules folds --item/--field/--next flags into the config
// defaults, overriding anything loaded from the config file.
func applyInlineRules(cmd *cobra.Command, cfg *config.Config) error {
	item, err := cmd.Flags().GetString("item")
	if err != nil {
		return err
	}
	if item != "" {
		cfg.Sites.Defaults.ItemSelector = item
	}

	// The crawl command has no --next flag
	if cmd.Flags().Lookup("next") != nil {
		next, err := cmd.Flags().GetString("next")
		if err != nil {
			return err
		}
		if next != "" {
			cfg.Sites.Defaults.NextSelector = next
		}
	}

	specs, err := cmd.Flags().GetStringArray("field")
	if err != nil {
		return err
	}
	if len(specs) > 0 {
		rules := make([]config.FieldRule, 0, len(specs))
		for _, spec := range specs {
			rule, err := parseFieldSpec(spec)
			if err != nil {
				return err
			}
			rules = append(rules, rule)
		}
		cfg.Sites.Defaults.Fields = rules
	}

	return nil
}

// parseFieldSpec parses a "name=selector" or "name=selector@attr" flag value.
func parseFieldSpec(spec string) (config.FieldRule, error) {
	name, rest, ok := strings.Cut(spec, "=")
	if !ok || name == "" || rest == "" {
		return config.FieldRule{}, fmt.Errorf("invalid field spec %q (want \"name=selector\")", spec)
	}

	selector, attr, _ := strings.Cut(rest, "@")
	if selector == "" {
		return config.FieldRule{}, fmt.Errorf("invalid field spec %q (empty selector)", spec)
	}

	return config.FieldRule{
		Name:     strings.TrimSpace(name),
		Selector: strings.TrimSpace(selector),
		Attr:     strings.TrimSpace(attr),
	}, nil
}

// runHarvest executes the harvest for all configured targets.
// crawl selects breadth-first crawling instead of pagination.
func runHarvest(ctx context.Context, cfg *config.Config, logger *slog.Logger, crawl bool) error {
	if len(cfg.Targets) == 0 {
		return errors.New("no targets provided (specify one or more URLs as arguments)")
	}

	logger.Info("starting harvest",
		"targets", cfg.Targets,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	// Open the database if persistence is enabled
	var db *store.HarvestDB
	if cfg.SaveToDB {
		var err error
		db, err = store.Open(cfg.DBDir, store.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	// Validate all target URLs up front
	for i, target := range cfg.Targets {
		normalized, err := normalizeTarget(target)
		if err != nil {
			return fmt.Errorf("invalid target %q: %w", target, err)
		}
		cfg.Targets[i] = normalized
	}

	// Drop targets still inside the --max-age freshness window
	if cfg.MaxPageAge > 0 {
		remaining := make([]string, 0, len(cfg.Targets))
		for _, target := range cfg.Targets {
			if !skipFreshTarget(ctx, db, cfg, target, logger) {
				remaining = append(remaining, target)
			}
		}
		cfg.Targets = remaining
		if len(cfg.Targets) == 0 {
			fmt.Fprintln(os.Stderr, "All targets were harvested recently; nothing to do.")
			return nil
		}
	}

	if len(cfg.Targets) > 1 && cfg.BatchSize > 1 {
		return runBatchHarvest(ctx, cfg, db, logger, crawl)
	}

	return runSequentialHarvest(ctx, cfg, db, logger, crawl)
}

// normalizeTarget validates a start URL and defaults the scheme to http.
func normalizeTarget(target string) (string, error) {
	if !strings.Contains(target, "://") {
		target = "http://" + target
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("missing host")
	}

	return u.String(), nil
}

// runSequentialHarvest harvests targets one at a time.
func runSequentialHarvest(ctx context.Context, cfg *config.Config, db *store.HarvestDB, logger *slog.Logger, crawl bool) error {
	for i, target := range cfg.Targets {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		siteConfig := siteConfigFor(cfg, target)
		p := createPipeline(cfg, siteConfig, db, logger, crawl)

		report := model.NewHarvestReport(uuid.NewString(), target)
		report.Site = targetHost(target)

		fmt.Fprintf(os.Stderr, "Harvesting %s...\n", target)

		if err := p.Execute(ctx, report); err != nil {
			report.Finish()
			logger.Error("harvest failed", "target", target, "error", err)
			fmt.Fprintf(os.Stderr, "Harvest error for %s: %v\n", target, err)
			continue
		}
		report.Finish()

		if err := writeSessionSummary(os.Stderr, cfg, report); err != nil {
			logger.Warn("summary output failed", "target", target, "error", err)
		}

		if err := outputReport(cfg, report, i); err != nil {
			logger.Error("output failed", "target", target, "error", err)
		}
	}

	return nil
}

// skipFreshTarget reports whether the target's start page was stored
// within the --max-age window and should not be re-fetched. A database
// error falls through to fetching; staleness is never worth failing a
// session over.
func skipFreshTarget(ctx context.Context, db *store.HarvestDB, cfg *config.Config, target string, logger *slog.Logger) bool {
	if db == nil || cfg.MaxPageAge <= 0 {
		return false
	}

	fresh, err := db.HasRecentPage(ctx, target, cfg.MaxPageAge)
	if err != nil {
		logger.Warn("freshness check failed", "target", target, "error", err)
		return false
	}
	if !fresh {
		return false
	}

	if row, err := db.GetPage(ctx, target, targetHost(target)); err == nil && row != nil {
		fmt.Fprintf(os.Stderr, "Skipping %s (stored %s, within --max-age %s)\n",
			target, row.Timestamp.Format(time.RFC3339), cfg.MaxPageAge)
	} else {
		fmt.Fprintf(os.Stderr, "Skipping %s (stored within --max-age %s)\n", target, cfg.MaxPageAge)
	}
	return true
}

// writeSessionSummary writes the human-readable session report.
// Verbose mode includes the extracted records.
func writeSessionSummary(w io.Writer, cfg *config.Config, report *model.HarvestReport) error {
	_, err := export.NewSimpleWriter(w, export.WithVerbose(cfg.Verbose)).Write(report)
	return err
}

// runBatchHarvest harvests multiple targets concurrently using BatchProcessor.
func runBatchHarvest(ctx context.Context, cfg *config.Config, db *store.HarvestDB, logger *slog.Logger, crawl bool) error {
	fmt.Fprintf(os.Stderr, "Starting batch harvest of %d targets (concurrency: %d)...\n\n",
		len(cfg.Targets), cfg.BatchSize)

	startTime := time.Now()

	// Batch mode uses the config defaults for every target; per-site
	// sections would require per-target pipeline creation
	if len(cfg.Sites.Sites) > 0 {
		logger.Warn("batch processing uses default site config only",
			"siteCount", len(cfg.Sites.Sites))
		fmt.Fprintf(os.Stderr, "Warning: Site-specific configurations are ignored in batch mode. Use sequential mode (--batch 1) to apply per-site settings.\n\n")
	}

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return createPipeline(cfg, cfg.Sites.Defaults, db, logger, crawl)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	var mu sync.Mutex
	err := bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(report *model.HarvestReport, index int) {
		mu.Lock()
		defer mu.Unlock()

		report.Site = targetHost(report.StartURL)

		fmt.Fprintf(os.Stderr, "[%d/%d] Harvest completed: %s\n",
			index+1, len(cfg.Targets), report.StartURL)

		if err := writeSessionSummary(os.Stderr, cfg, report); err != nil {
			logger.Warn("summary output failed", "target", report.StartURL, "error", err)
		}

		if err := outputReport(cfg, report, index); err != nil {
			logger.Error("output failed", "target", report.StartURL, "error", err)
		}
	})

	elapsed := time.Since(startTime)
	fmt.Fprintf(os.Stderr, "\nBatch harvest completed in %s\n", elapsed.Round(time.Millisecond))

	return err
}

// targetHost returns the hostname of a target URL, or the target itself
// when it cannot be parsed.
func targetHost(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return target
	}
	return u.Hostname()
}

// siteConfigFor returns the merged site configuration for a target URL.
func siteConfigFor(cfg *config.Config, target string) config.SiteConfig {
	if cfg.Sites == nil {
		return config.SiteConfig{}
	}
	return cfg.Sites.GetSiteConfig(targetHost(target))
}

// buildClient creates a fetch client for the given site configuration.
func buildClient(cfg *config.Config, siteConfig config.SiteConfig, logger *slog.Logger) *fetch.Client {
	opts := []fetch.Option{
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithRetryCount(cfg.RetryCount),
		fetch.WithRateLimit(cfg.RequestsPerSecond),
		fetch.WithLogger(logger),
	}

	if !cfg.IgnoreRobots {
		opts = append(opts, fetch.WithRobotsGate(
			fetch.NewRobotsGate(cfg.UserAgent, fetch.WithRobotsLogger(logger)),
		))
	}

	if siteConfig.Cookie != "" {
		opts = append(opts, fetch.WithCookie(siteConfig.Cookie))
	}
	if len(siteConfig.Headers) > 0 {
		opts = append(opts, fetch.WithHeaders(siteConfig.Headers))
	}

	return fetch.NewClient(opts...)
}

// createPipeline assembles the harvest pipeline for one target.
// The collection step is pagination (or a single fetch) for scrapes,
// and breadth-first crawling for crawls.
func createPipeline(cfg *config.Config, siteConfig config.SiteConfig, db *store.HarvestDB, logger *slog.Logger, crawl bool) *pipeline.Pipeline {
	client := buildClient(cfg, siteConfig, logger)

	// Site-specific overrides win over global flags
	delay := cfg.CrawlDelay
	if siteConfig.Delay > 0 {
		delay = siteConfig.Delay
	}
	maxPages := cfg.MaxPages
	if siteConfig.MaxPages > 0 {
		maxPages = siteConfig.MaxPages
	}

	p := pipeline.New(
		pipeline.WithLogger(logger),
		pipeline.WithContinueOnError(true),
	)

	switch {
	case crawl:
		depth := cfg.CrawlDepth
		if siteConfig.Depth > 0 {
			depth = siteConfig.Depth
		}
		crawlOpts := []pipeline.CrawlStepOption{
			pipeline.WithCrawlMaxDepth(depth),
			pipeline.WithCrawlMaxPages(maxPages),
			pipeline.WithCrawlDelay(delay),
			pipeline.WithCrawlLogger(logger),
		}
		if len(siteConfig.IgnorePatterns) > 0 {
			crawlOpts = append(crawlOpts, pipeline.WithCrawlIgnorePatterns(siteConfig.IgnorePatterns))
		}
		if len(siteConfig.FollowPatterns) > 0 {
			crawlOpts = append(crawlOpts, pipeline.WithCrawlFollowPatterns(siteConfig.FollowPatterns))
		}
		p.AddStep(pipeline.NewCrawlStep(client, crawlOpts...))
	case siteConfig.NextSelector != "":
		p.AddStep(pipeline.NewPaginateStep(client, siteConfig.NextSelector,
			pipeline.WithPaginateMaxPages(maxPages),
			pipeline.WithPaginateDelay(delay),
			pipeline.WithPaginateLogger(logger),
		))
	default:
		p.AddStep(pipeline.NewFetchStep(client, pipeline.WithFetchLogger(logger)))
	}

	p.AddStep(pipeline.NewExtractStep(
		extract.FromSiteConfig(siteConfig),
		pipeline.WithExtractLogger(logger),
	))

	if db != nil {
		p.AddStep(pipeline.NewStoreStep(db, pipeline.WithStoreLogger(logger)))
	}

	return p
}

// outputReport writes the harvest result in the requested format.
// Default is CSV records; --json and --markdown select full reports.
// The format writer and the optional snapshot writer run as one
// MultiWriter pass over the report.
func outputReport(cfg *config.Config, report *model.HarvestReport, index int) error {
	outputPath := numberedPath(cfg.OutputFile, index, len(cfg.Targets))
	output, closeOutput, err := openOutput(outputPath)
	if err != nil {
		return err
	}
	defer closeOutput()

	var writer export.Writer
	switch {
	case cfg.JSONOutput:
		writer = export.NewFullJSONWriter(output, getVersion(), export.WithPrettyPrint())
	case cfg.MarkdownOutput:
		writer = export.NewMarkdownWriter(output)
	default:
		writer = export.NewCSVWriter(output, export.WithSourceColumn())
	}

	writers := []export.Writer{writer}
	if cfg.SnapshotFile != "" {
		snapshotPath := numberedPath(cfg.SnapshotFile, index, len(cfg.Targets))
		snapshots, closeSnapshots, err := openOutput(snapshotPath)
		if err != nil {
			return err
		}
		defer closeSnapshots()
		writers = append(writers, export.NewSnapshotWriter(snapshots))
	}

	if _, err := export.NewMultiWriter(writers...).Write(report); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// numberedPath derives a per-target file path when a session has
// multiple targets, so "out.csv" becomes "out-1.csv", "out-2.csv", ...
// and one target's export doesn't truncate another's. Single-target
// sessions and stdout keep the path as given.
func numberedPath(path string, index, total int) string {
	if path == "" || total <= 1 {
		return path
	}

	ext := filepath.Ext(path)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(path, ext), index+1, ext)
}

// openOutput opens the output destination, creating parent directories
// as needed. An empty path means stdout.
func openOutput(path string) (*os.File, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
