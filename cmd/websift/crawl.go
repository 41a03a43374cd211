package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Crawl a site breadth-first and extract records from every page",
		Long: `Crawl discovers pages by following same-host links breadth-first from
each start URL, up to the configured depth and page cap. Extraction
rules from the .websift configuration (or --field flags) are applied to
every fetched page.

Fetch failures on individual pages are recorded in the report and do
not stop the crawl.

Examples:
  # Crawl two levels deep, skipping admin pages
  websift crawl --depth 2 --ignore "/admin/*" http://books.toscrape.com/

  # Only follow catalogue URLs
  websift crawl --follow "/catalogue/*" http://books.toscrape.com/`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	addCommonFlags(cmd)

	cmd.Flags().IntP("depth", "d", 0,
		"Maximum link depth from the start URL (0 uses the configured default)")
	cmd.Flags().StringArray("ignore", nil,
		"URL path glob to skip during crawling (repeatable)")
	cmd.Flags().StringArray("follow", nil,
		"URL path glob; when set, only matching URLs are crawled (repeatable)")

	cmd.Flags().StringP("item", "i", "",
		"CSS selector for repeated items (one record per match)")
	cmd.Flags().StringArrayP("field", "F", nil,
		`Field rule "name=selector" or "name=selector@attr" (repeatable)`)

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := applyInlineRules(cmd, cfg); err != nil {
		return err
	}

	depth, err := cmd.Flags().GetInt("depth")
	if err != nil {
		return err
	}
	if depth > 0 {
		cfg.CrawlDepth = depth
	}

	ignore, err := cmd.Flags().GetStringArray("ignore")
	if err != nil {
		return err
	}
	if len(ignore) > 0 {
		cfg.Sites.Defaults.IgnorePatterns = ignore
	}

	follow, err := cmd.Flags().GetStringArray("follow")
	if err != nil {
		return err
	}
	if len(follow) > 0 {
		cfg.Sites.Defaults.FollowPatterns = follow
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	return runHarvest(ctx, cfg, logger, true)
}
