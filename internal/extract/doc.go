// Package extract turns parsed documents into structured records using
// selector rules from the site configuration.
//
// A RuleSet names the fields of a record and, for each, the CSS selector
// that locates its value. With an item selector, each matching element
// (a product card, a search result row) yields one record and field
// selectors run relative to it; without one the whole page yields a
// single record.
//
// Extraction never fails on missing data: a selector that matches
// nothing produces an empty field, and records with no values at all are
// dropped. Scraping real sites means tolerating markup that changes
// under you.
package extract
