package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/websift/websift/internal/config"
	"github.com/websift/websift/internal/crawler"
	"github.com/websift/websift/internal/export"
	"github.com/websift/websift/internal/extract"
	"github.com/websift/websift/internal/fetch"
	"github.com/websift/websift/internal/model"
	"github.com/websift/websift/internal/parse"
	"github.com/websift/websift/internal/store"
)

// FetchStep fetches the report's start URL as a single page.
// This is the page collection step for one-shot scrapes that don't
// paginate or crawl.
type FetchStep struct {
	// client is the configured fetch client.
	client *fetch.Client

	// logger for structured logging.
	logger *slog.Logger
}

// FetchStepOption configures a FetchStep.
type FetchStepOption func(*FetchStep)

// WithFetchLogger sets a custom logger for the fetch step.
func WithFetchLogger(logger *slog.Logger) FetchStepOption {
	return func(s *FetchStep) {
		s.logger = logger
	}
}

// NewFetchStep creates a single-page fetch step.
func NewFetchStep(client *fetch.Client, opts ...FetchStepOption) *FetchStep {
	s := &FetchStep{
		client: client,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *FetchStep) Name() string {
	return "fetch"
}

// Do executes the fetch step.
// A failed fetch of the start URL is fatal: nothing downstream can run
// without at least one page.
func (s *FetchStep) Do(ctx context.Context, report *model.HarvestReport) error {
	page, err := s.client.Get(ctx, report.StartURL)
	if err != nil {
		kind, status := fetch.ClassifyError(err)
		report.AddFailure(model.FetchFailure{
			URL:        report.StartURL,
			Kind:       kind,
			StatusCode: status,
			Message:    err.Error(),
		})
		return fmt.Errorf("failed to fetch start page: %w", err)
	}

	if doc, perr := parse.ParsePage(page); perr == nil {
		page.Title = doc.Title()
	}

	report.AddPage(page)
	return nil
}

// PaginateStep collects pages by following "next" links from the start URL.
//
// Design decision: Pagination is a separate step from crawling because:
// 1. It follows a single chain instead of a breadth-first frontier
// 2. Page order matters for extraction (listing order is preserved)
// 3. It needs only one selector, not link discovery
type PaginateStep struct {
	// client is the configured fetch client.
	client *fetch.Client

	// nextSelector locates the next-page link on each page.
	nextSelector string

	// maxPages bounds the walk.
	maxPages int

	// delay between page fetches for politeness.
	delay time.Duration

	// logger for structured logging.
	logger *slog.Logger
}

// PaginateStepOption configures a PaginateStep.
type PaginateStepOption func(*PaginateStep)

// WithPaginateMaxPages sets the maximum pages to collect.
func WithPaginateMaxPages(n int) PaginateStepOption {
	return func(s *PaginateStep) {
		s.maxPages = n
	}
}

// WithPaginateDelay sets the delay between page fetches.
func WithPaginateDelay(d time.Duration) PaginateStepOption {
	return func(s *PaginateStep) {
		s.delay = d
	}
}

// WithPaginateLogger sets a custom logger for the paginate step.
func WithPaginateLogger(logger *slog.Logger) PaginateStepOption {
	return func(s *PaginateStep) {
		s.logger = logger
	}
}

// NewPaginateStep creates a pagination step using the given next-link selector.
func NewPaginateStep(client *fetch.Client, nextSelector string, opts ...PaginateStepOption) *PaginateStep {
	s := &PaginateStep{
		client:       client,
		nextSelector: nextSelector,
		maxPages:     config.DefaultMaxPages,
		delay:        config.DefaultCrawlDelay,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *PaginateStep) Name() string {
	return "paginate"
}

// Do executes the pagination step.
// A mid-walk fetch failure is recorded and the pages collected so far
// are kept; the step only fails when no pages could be collected at all.
func (s *PaginateStep) Do(ctx context.Context, report *model.HarvestReport) error {
	paginator := crawler.NewPaginator(s.client, s.nextSelector,
		crawler.WithPageLimit(s.maxPages),
		crawler.WithPageDelay(s.delay),
		crawler.WithPaginatorLogger(s.logger),
	)

	pages, err := paginator.Walk(ctx, report.StartURL)
	for _, page := range pages {
		report.AddPage(page)
	}

	if err != nil {
		if len(pages) == 0 {
			return fmt.Errorf("pagination collected no pages: %w", err)
		}
		// Partial results: record the failure and keep going
		kind, status := fetch.ClassifyError(err)
		report.AddFailure(model.FetchFailure{
			URL:        report.StartURL,
			Kind:       kind,
			StatusCode: status,
			Message:    err.Error(),
		})
		s.logger.Warn("pagination completed with error",
			"pages", len(pages),
			"error", err,
		)
	}

	return nil
}

// CrawlStep collects pages by breadth-first crawling from the start URL.
//
// Design decision: Crawling is separate from pagination because:
// 1. It has different configuration (depth, patterns)
// 2. It discovers links instead of following a configured selector
// 3. Either can be used without the other
type CrawlStep struct {
	// client is the configured fetch client.
	client *fetch.Client

	// maxDepth limits crawl recursion.
	maxDepth int

	// maxPages limits total pages to crawl.
	maxPages int

	// delay between requests for politeness.
	delay time.Duration

	// ignorePatterns are URL path patterns to skip during crawling.
	ignorePatterns []string

	// followPatterns are URL path patterns to follow during crawling.
	followPatterns []string

	// logger for structured logging.
	logger *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlMaxDepth sets the maximum crawl depth.
func WithCrawlMaxDepth(depth int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.maxDepth = depth
	}
}

// WithCrawlMaxPages sets the maximum pages to crawl.
func WithCrawlMaxPages(maxPages int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.maxPages = maxPages
	}
}

// WithCrawlDelay sets the delay between requests.
func WithCrawlDelay(d time.Duration) CrawlStepOption {
	return func(s *CrawlStep) {
		s.delay = d
	}
}

// WithCrawlIgnorePatterns sets URL path patterns to skip during crawling.
func WithCrawlIgnorePatterns(patterns []string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.ignorePatterns = patterns
	}
}

// WithCrawlFollowPatterns sets URL path patterns to follow during crawling.
func WithCrawlFollowPatterns(patterns []string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.followPatterns = patterns
	}
}

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawling step.
//
// Default politeness settings are conservative to be respectful of the
// sites being harvested:
//   - delay: 1 second between requests (config.DefaultCrawlDelay)
//   - depth: 3 levels from the start URL (config.DefaultCrawlDepth)
//   - pages: 100 per session (config.DefaultMaxPages)
func NewCrawlStep(client *fetch.Client, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		client:   client,
		maxDepth: config.DefaultCrawlDepth,
		maxPages: config.DefaultMaxPages,
		delay:    config.DefaultCrawlDelay,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl step.
func (s *CrawlStep) Do(ctx context.Context, report *model.HarvestReport) error {
	spiderOpts := []crawler.SpiderOption{
		crawler.WithMaxDepth(s.maxDepth),
		crawler.WithMaxPages(s.maxPages),
		crawler.WithDelay(s.delay),
		crawler.WithSpiderLogger(s.logger),
	}
	if len(s.ignorePatterns) > 0 {
		spiderOpts = append(spiderOpts, crawler.WithIgnorePatterns(s.ignorePatterns))
	}
	if len(s.followPatterns) > 0 {
		spiderOpts = append(spiderOpts, crawler.WithFollowPatterns(s.followPatterns))
	}

	spider := crawler.NewSpider(s.client, spiderOpts...)

	pages, err := spider.Crawl(ctx, report.StartURL)
	for _, page := range pages {
		report.AddPage(page)
	}
	for _, failure := range spider.Failures() {
		report.AddFailure(failure)
	}

	if err != nil {
		// Non-fatal: we may have partial results
		s.logger.Warn("crawl completed with error", "error", err)
	}

	stats := spider.Stats()
	s.logger.Info("crawl completed",
		"pages_fetched", stats.PagesFetched,
		"urls_seen", stats.URLsSeen,
		"failures", stats.Failures,
	)

	return nil
}

// ExtractStep turns the report's collected pages into structured records.
//
// Design decision: Extraction operates on accumulated pages rather than
// extracting during collection because:
// 1. Collection strategies (fetch, paginate, crawl) stay extraction-free
// 2. The same pages can be re-extracted with different rules
// 3. Extraction errors never interrupt page collection
type ExtractStep struct {
	// rules describe what to extract from each page.
	rules extract.RuleSet

	// logger for structured logging.
	logger *slog.Logger
}

// ExtractStepOption configures an ExtractStep.
type ExtractStepOption func(*ExtractStep)

// WithExtractLogger sets a custom logger for the extract step.
func WithExtractLogger(logger *slog.Logger) ExtractStepOption {
	return func(s *ExtractStep) {
		s.logger = logger
	}
}

// NewExtractStep creates an extraction step with the given rules.
func NewExtractStep(rules extract.RuleSet, opts ...ExtractStepOption) *ExtractStep {
	s := &ExtractStep{
		rules:  rules,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return "extract"
}

// Do executes the extraction step.
// Pages that fail to parse are skipped with a warning; the step itself
// never fails so that collected pages always reach storage and export.
func (s *ExtractStep) Do(_ context.Context, report *model.HarvestReport) error {
	if len(s.rules.Fields) == 0 {
		s.logger.Debug("skipping extraction, no field rules configured")
		return nil
	}

	for _, page := range report.Pages {
		if !page.IsHTML() {
			continue
		}

		doc, err := parse.ParsePage(page)
		if err != nil {
			s.logger.Warn("failed to parse page",
				"url", page.URL,
				"error", err,
			)
			continue
		}

		for _, rec := range extract.Extract(doc, s.rules, page.URL) {
			report.AddRecord(rec)
		}
	}

	s.logger.Info("extraction completed",
		"pages", len(report.Pages),
		"records", len(report.Records),
	)

	return nil
}

// StoreStep persists the report, its pages, and its records to the database.
type StoreStep struct {
	// db is the opened harvest database.
	db *store.HarvestDB

	// logger for structured logging.
	logger *slog.Logger
}

// StoreStepOption configures a StoreStep.
type StoreStepOption func(*StoreStep)

// WithStoreLogger sets a custom logger for the store step.
func WithStoreLogger(logger *slog.Logger) StoreStepOption {
	return func(s *StoreStep) {
		s.logger = logger
	}
}

// NewStoreStep creates a storage step writing to the given database.
func NewStoreStep(db *store.HarvestDB, opts ...StoreStepOption) *StoreStep {
	s := &StoreStep{
		db:     db,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *StoreStep) Name() string {
	return "store"
}

// Do executes the store step.
func (s *StoreStep) Do(ctx context.Context, report *model.HarvestReport) error {
	if err := s.db.SaveReport(ctx, report); err != nil {
		return fmt.Errorf("failed to store harvest: %w", err)
	}

	s.logger.Info("harvest stored",
		"db", s.db.Path(),
		"pages", len(report.Pages),
		"records", len(report.Records),
	)

	return nil
}

// ExportStep writes the report through the configured export writer.
// Use export.NewMultiWriter to fan out to several formats at once.
type ExportStep struct {
	// writer receives the report.
	writer export.Writer

	// logger for structured logging.
	logger *slog.Logger
}

// ExportStepOption configures an ExportStep.
type ExportStepOption func(*ExportStep)

// WithExportLogger sets a custom logger for the export step.
func WithExportLogger(logger *slog.Logger) ExportStepOption {
	return func(s *ExportStep) {
		s.logger = logger
	}
}

// NewExportStep creates an export step writing through the given writer.
func NewExportStep(writer export.Writer, opts ...ExportStepOption) *ExportStep {
	s := &ExportStep{
		writer: writer,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ExportStep) Name() string {
	return "export"
}

// Do executes the export step.
func (s *ExportStep) Do(_ context.Context, report *model.HarvestReport) error {
	n, err := s.writer.Write(report)
	if err != nil {
		return fmt.Errorf("failed to export harvest: %w", err)
	}

	s.logger.Debug("export completed", "bytes", n)
	return nil
}
