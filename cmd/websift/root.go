// Package main provides the entry point for the websift CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for websift.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "websift",
		Short: "Polite web scraping toolkit",
		Long: `websift fetches pages, follows pagination, extracts structured records
with CSS selectors, and exports the results as CSV, JSON, or Markdown.

Scrapes respect robots.txt and rate-limit requests by default. Extraction
rules live in a .websift configuration file keyed by hostname, or can be
given on the command line for quick one-off scrapes.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewScrapeCmd())
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
