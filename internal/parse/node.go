package parse

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Node is a single element in a parsed document.
// It keeps a reference to its Document so link resolution works from any
// node.
type Node struct {
	n   *html.Node
	doc *Document
}

// Tag returns the node's element name (lowercase).
func (nd *Node) Tag() string {
	return nd.n.Data
}

// Text returns the concatenated text of the node and its descendants.
func (nd *Node) Text() string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(nd.n)
	return sb.String()
}

// Attr returns the value of the named attribute, or empty string.
func (nd *Node) Attr(key string) string {
	return getAttr(nd.n, key)
}

// Href returns the node's href attribute resolved against the document's
// base URL. Empty when the node has no href or the href is junk
// (javascript:, mailto:, bare fragment).
func (nd *Node) Href() string {
	return nd.doc.Resolve(nd.Attr("href"))
}

// Src returns the node's src attribute resolved against the document's
// base URL.
func (nd *Node) Src() string {
	return nd.doc.Resolve(nd.Attr("src"))
}

// Select returns descendants of this node matching the CSS selector.
// Used for extracting fields relative to a repeated item node.
func (nd *Node) Select(selector string) []*Node {
	sub := subDocument(nd)
	sel := sub.Find(selector)
	nodes := make([]*Node, 0, len(sel.Nodes))
	for _, n := range sel.Nodes {
		nodes = append(nodes, &Node{n: n, doc: nd.doc})
	}
	return nodes
}

// SelectFirst returns the first descendant matching the CSS selector,
// or nil.
func (nd *Node) SelectFirst(selector string) *Node {
	nodes := nd.Select(selector)
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// subDocument wraps a node so CSS selectors can run scoped to its
// subtree. goquery accepts any node as a document root.
func subDocument(nd *Node) *goquery.Document {
	return goquery.NewDocumentFromNode(nd.n)
}
