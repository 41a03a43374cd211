// Package crawler provides page traversal for websift: breadth-first
// crawling of a site and linear pagination along "next" links.
//
// # Components
//
//   - Spider: BFS crawler with a visited set, depth and page caps, and
//     glob-based path filtering
//   - Paginator: follows a "next page" selector until it stops matching
//
// Design decision: We implement our own traversal rather than adopting a
// crawling framework because:
//  1. Every fetch must pass the fetch.Client's politeness machinery
//     (rate limit, robots.txt); a framework brings its own HTTP stack
//  2. Pagination needs precise bounding and cycle-detection semantics
//  3. The extraction pipeline wants plain pages, not callback-driven
//     traversal
//
// # Guarantees
//
// Both traversals are bounded: a page cap always applies, URLs are
// deduplicated on a normalized form (fragment dropped, case-folded
// scheme and host, "" path treated as "/"), and a cyclic or
// self-referencing next link ends pagination instead of looping. A fetch
// failure mid-traversal is recorded and skipped; pages collected so far
// are always returned.
package crawler
