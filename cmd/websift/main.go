// Package main provides the entry point for the websift CLI.
//
// websift is a polite web-scraping toolkit. It fetches pages, follows
// pagination, extracts structured records with CSS selectors, and exports
// the results as CSV, JSON, or Markdown.
//
// Usage:
//
//	websift scrape <url>
//	websift crawl <url>
//	websift history --list-sites
//
// See --help for all available options.
package main

// main is the entry point for websift.
func main() {
	Execute()
}
