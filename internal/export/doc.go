// Package export writes harvest results in various output formats.
//
// This package provides:
//   - CSV output for extracted records (spreadsheet-friendly)
//   - JSON output for tool integration
//   - Markdown output for documentation and sharing
//   - Plain text summaries for terminal display
//   - Page snapshot archives converted from HTML to Markdown
//
// All writers implement the Writer interface, and MultiWriter fans a
// single report out to several destinations at once (e.g., terminal
// summary plus a CSV file).
package export
