package export

import (
	"fmt"
	"io"
	"net/url"

	htmltomd "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/websift/websift/internal/model"
)

// SnapshotWriter converts fetched page snapshots from HTML to Markdown
// and writes them as a readable archive, one section per page.
//
// Design decision: We convert HTML to Markdown rather than storing raw
// HTML because:
// 1. Markdown archives diff cleanly and read well in any editor
// 2. Boilerplate markup (scripts, styles) is stripped in conversion
// 3. The output pairs naturally with the Markdown report format
type SnapshotWriter struct {
	baseWriter
}

// NewSnapshotWriter creates a SnapshotWriter that outputs to the given writer.
func NewSnapshotWriter(output io.Writer) *SnapshotWriter {
	return &SnapshotWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write converts every HTML page snapshot in the report to Markdown.
// Pages without a snapshot (non-HTML or empty responses) are skipped.
func (w *SnapshotWriter) Write(report *model.HarvestReport) (int, error) {
	counter := &countingWriter{w: w.output}

	for _, page := range report.Pages {
		if page.Snapshot == "" {
			continue
		}

		converter := htmltomd.NewConverter(pageDomain(page.URL), true, nil)
		body, err := converter.ConvertString(page.Snapshot)
		if err != nil {
			return counter.n, fmt.Errorf("failed to convert %s: %w", page.URL, err)
		}

		if _, err := fmt.Fprintf(counter, "<!-- %s -->\n\n", page.URL); err != nil {
			return counter.n, err
		}
		if _, err := fmt.Fprintf(counter, "%s\n\n---\n\n", body); err != nil {
			return counter.n, err
		}
	}

	return counter.n, nil
}

// WriteRecords is a no-op for snapshot output; records carry no HTML.
func (w *SnapshotWriter) WriteRecords(_ []*model.Record) (int, error) {
	return 0, nil
}

// pageDomain extracts the domain used to resolve relative links during
// conversion. Returns empty string for unparseable URLs, which leaves
// relative links as-is.
func pageDomain(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
