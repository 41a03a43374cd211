package parse

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/websift/websift/internal/model"
)

// Document is a parsed HTML page supporting predicate and CSS selector
// lookups. All lookups operate on the same underlying tree.
type Document struct {
	// root is the document root node.
	root *html.Node

	// gq wraps the same tree for CSS selector queries.
	gq *goquery.Document

	// baseURL resolves relative links found in the document.
	baseURL *url.URL
}

// Parse reads markup from r and builds a Document.
// The contentType hint (may be empty) guides charset detection; bytes are
// decoded to UTF-8 before the tree is built. Malformed HTML does not
// error: the parser recovers the way browsers do. Only read failures and
// an unparseable base URL produce errors.
func Parse(r io.Reader, baseURL, contentType string) (*Document, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	decoded, err := charset.NewReader(r, contentType)
	if err != nil {
		return nil, fmt.Errorf("charset detection: %w", err)
	}

	root, err := html.Parse(decoded)
	if err != nil {
		return nil, fmt.Errorf("parsing markup: %w", err)
	}

	return &Document{
		root:    root,
		gq:      goquery.NewDocumentFromNode(root),
		baseURL: base,
	}, nil
}

// ParsePage parses a fetched page, using its URL as the link base and its
// Content-Type header as the charset hint.
func ParsePage(p *model.Page) (*Document, error) {
	return Parse(bytes.NewReader(p.Raw), p.URL, p.ContentType)
}

// First returns the first descendant element with the given tag name
// whose attributes contain every key/value pair in attrs. A nil attrs
// matches on tag name alone. Returns nil when nothing matches.
func (d *Document) First(tag string, attrs map[string]string) *Node {
	var found *Node
	walk(d.root, func(n *html.Node) bool {
		if matchesPredicate(n, tag, attrs) {
			found = &Node{n: n, doc: d}
			return false
		}
		return true
	})
	return found
}

// All returns every descendant element matching the tag name and
// attribute predicate, in document order. Returns an empty slice, never
// nil, when nothing matches.
func (d *Document) All(tag string, attrs map[string]string) []*Node {
	nodes := make([]*Node, 0)
	walk(d.root, func(n *html.Node) bool {
		if matchesPredicate(n, tag, attrs) {
			nodes = append(nodes, &Node{n: n, doc: d})
		}
		return true
	})
	return nodes
}

// Select returns every node matching the CSS selector, in document order.
// Returns an empty slice, never nil, when nothing matches.
func (d *Document) Select(selector string) []*Node {
	sel := d.gq.Find(selector)
	nodes := make([]*Node, 0, len(sel.Nodes))
	for _, n := range sel.Nodes {
		nodes = append(nodes, &Node{n: n, doc: d})
	}
	return nodes
}

// SelectFirst returns the first node matching the CSS selector, or nil.
func (d *Document) SelectFirst(selector string) *Node {
	sel := d.gq.Find(selector).First()
	if len(sel.Nodes) == 0 {
		return nil
	}
	return &Node{n: sel.Nodes[0], doc: d}
}

// Title returns the text of the document's <title> tag, trimmed.
// Empty when the document has no title.
func (d *Document) Title() string {
	if n := d.First("title", nil); n != nil {
		return strings.TrimSpace(n.Text())
	}
	return ""
}

// MetaTags returns the document's meta tag name/content pairs.
// OpenGraph tags (which use "property" instead of "name") are included.
func (d *Document) MetaTags() map[string]string {
	tags := make(map[string]string)
	for _, n := range d.All("meta", nil) {
		name := n.Attr("name")
		if name == "" {
			name = n.Attr("property")
		}
		content := n.Attr("content")
		if name != "" && content != "" {
			tags[name] = content
		}
	}
	return tags
}

// Resolve resolves an href against the document's base URL.
// Returns empty string for junk schemes (javascript:, mailto:, tel:,
// data:) and bare fragments, which are never worth following.
func (d *Document) Resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:") ||
		href == "#" {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	return d.baseURL.ResolveReference(u).String()
}

// walk traverses the tree in document order, calling fn on each element
// node. Traversal stops when fn returns false.
func walk(root *html.Node, fn func(*html.Node) bool) {
	var visit func(*html.Node) bool
	visit = func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			if !fn(n) {
				return false
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !visit(c) {
				return false
			}
		}
		return true
	}
	visit(root)
}

// matchesPredicate reports whether an element node has the given tag name
// and contains all the attribute key/value pairs in attrs.
func matchesPredicate(n *html.Node, tag string, attrs map[string]string) bool {
	if n.Type != html.ElementNode || !strings.EqualFold(n.Data, tag) {
		return false
	}

	for key, want := range attrs {
		if getAttr(n, key) != want {
			return false
		}
	}
	return true
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if strings.EqualFold(attr.Key, key) {
			return attr.Val
		}
	}
	return ""
}
