// Package parse converts raw markup bytes into a navigable document tree
// and provides the lookup mechanisms the rest of websift builds on.
//
// # Lookup Mechanisms
//
// A parsed Document supports three ways of locating nodes:
//
//   - First(tag, attrs): the first descendant matching a tag name and
//     attribute predicate
//   - All(tag, attrs): every such descendant, in document order
//   - Select / SelectFirst: CSS selector lookup
//
// Design decision: We build the tree once with golang.org/x/net/html and
// share it with goquery via NewDocumentFromNode rather than parsing twice.
// x/net/html handles the malformed markup common on real sites without
// erroring, and goquery's cascadia engine gives us CSS selectors over the
// same nodes.
//
// # Character Sets
//
// Input bytes are decoded to UTF-8 before parsing using
// golang.org/x/net/html/charset, which honors the Content-Type hint, BOMs,
// and <meta charset> declarations. Pages served as ISO-8859-1 or GBK come
// out as proper UTF-8 text.
package parse
