// Package model defines the core data structures shared across websift.
//
// The package contains only data types and methods that operate on them.
// It has no dependencies on other internal packages, which keeps the
// dependency graph acyclic: every other package may import model, but
// model imports nothing from websift.
//
// # Core Types
//
//   - Page: a fetched web page with response metadata and content
//   - Record: a structured row of values extracted from a page
//   - HarvestReport: the accumulated result of a scrape or crawl session
package model
