package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/websift/websift/internal/fetch"
	"github.com/websift/websift/internal/model"
	"github.com/websift/websift/internal/parse"
)

// Paginator follows a "next page" link from page to page until the link
// stops appearing. This is the classic listing traversal: page 1 links
// to page 2 links to page 3, until the last page carries no next link.
//
// Unlike the naive loop, pagination here is always bounded: a page cap
// applies, every visited URL is remembered, and a next link pointing at
// a page already seen (a cycle, or a last page linking to itself) ends
// the traversal cleanly instead of looping forever.
type Paginator struct {
	// client performs the fetches.
	client *fetch.Client

	// nextSelector is the CSS selector for the next-page anchor.
	// The anchor's href, resolved against the current page, is followed.
	nextSelector string

	// maxPages caps the number of pages fetched.
	maxPages int

	// delay is the politeness pause between page fetches.
	delay time.Duration

	// logger for structured logging.
	logger *slog.Logger
}

// PaginatorOption configures a Paginator.
type PaginatorOption func(*Paginator)

// WithPageLimit caps the number of pages a Walk fetches.
func WithPageLimit(n int) PaginatorOption {
	return func(p *Paginator) {
		if n > 0 {
			p.maxPages = n
		}
	}
}

// WithPageDelay sets the pause between page fetches.
func WithPageDelay(d time.Duration) PaginatorOption {
	return func(p *Paginator) {
		p.delay = d
	}
}

// WithPaginatorLogger sets a custom logger.
func WithPaginatorLogger(logger *slog.Logger) PaginatorOption {
	return func(p *Paginator) {
		p.logger = logger
	}
}

// NewPaginator creates a Paginator that follows links matched by
// nextSelector.
func NewPaginator(client *fetch.Client, nextSelector string, opts ...PaginatorOption) *Paginator {
	p := &Paginator{
		client:       client,
		nextSelector: nextSelector,
		maxPages:     100,
		delay:        1 * time.Second,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Walk fetches startURL and follows the next link until it is absent, a
// cycle is detected, or the page cap is reached. Pages are returned in
// traversal order.
//
// A fetch failure mid-walk stops the traversal: the pages collected so
// far are returned together with the error, so callers keep partial
// results. The first page failing is different — then there is nothing
// to return.
func (p *Paginator) Walk(ctx context.Context, startURL string) ([]*model.Page, error) {
	pages := make([]*model.Page, 0)
	visited := make(map[string]bool)

	current := startURL
	for current != "" && len(pages) < p.maxPages {
		select {
		case <-ctx.Done():
			return pages, ctx.Err()
		default:
		}

		norm := normalizeURL(current)
		if visited[norm] {
			p.logger.Debug("next link cycles back, stopping pagination",
				"url", current,
			)
			break
		}
		visited[norm] = true

		page, err := p.client.Get(ctx, current)
		if err != nil {
			return pages, fmt.Errorf("pagination stopped at %s: %w", current, err)
		}

		pages = append(pages, page)

		next := ""
		if page.IsHTML() {
			doc, err := parse.ParsePage(page)
			if err == nil {
				page.Title = doc.Title()
				if a := doc.SelectFirst(p.nextSelector); a != nil {
					next = a.Href()
				}
			}
		}
		current = next

		if p.delay > 0 && current != "" {
			select {
			case <-ctx.Done():
				return pages, ctx.Err()
			case <-time.After(p.delay):
			}
		}
	}

	return pages, nil
}
