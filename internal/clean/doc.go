// Package clean normalizes text values extracted from web pages.
//
// Scraped text arrives messy: padded with whitespace, sprinkled with
// entities and leftover tags, numbers wrapped in currency symbols and
// thousands separators. The functions here are small, pure, and
// composable; Apply runs a named sequence of them so site configs can
// declare cleaning declaratively per field.
package clean
