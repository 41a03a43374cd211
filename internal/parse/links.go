package parse

import (
	"net/url"
	"strings"
)

// Link is a hyperlink discovered in a document, resolved to an absolute
// URL and classified relative to the document's host.
type Link struct {
	// URL is the absolute link target.
	URL string

	// Text is the anchor's trimmed inner text.
	Text string

	// Internal is true when the link stays on the document's host.
	Internal bool
}

// Links returns every anchor link in the document, resolved against the
// base URL. Junk schemes and bare fragments are dropped. Order follows
// document order; duplicates are kept (callers dedup if they need to).
func (d *Document) Links() []Link {
	links := make([]Link, 0)
	for _, a := range d.All("a", nil) {
		target := a.Href()
		if target == "" {
			continue
		}
		links = append(links, Link{
			URL:      target,
			Text:     strings.TrimSpace(a.Text()),
			Internal: d.isInternal(target),
		})
	}
	return links
}

// InternalLinks returns the URLs of links on the document's own host.
// This is what a crawler follows.
func (d *Document) InternalLinks() []string {
	urls := make([]string, 0)
	for _, l := range d.Links() {
		if l.Internal {
			urls = append(urls, l.URL)
		}
	}
	return urls
}

// isInternal reports whether a resolved URL points at the same host as
// the document. Comparison includes the port, so example.com:8080 and
// example.com count as different hosts.
func (d *Document) isInternal(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, d.baseURL.Host)
}
