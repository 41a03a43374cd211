package export

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/websift/websift/internal/model"
)

// MarkdownWriter outputs harvest results in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.HarvestReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeRecords(md, report.Records)
	w.writeFailures(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteRecords outputs only the records table in Markdown format.
func (w *MarkdownWriter) WriteRecords(records []*model.Record) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeRecords(md, records)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with session information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.HarvestReport) {
	md.H1("Websift Harvest Report")
	md.PlainText("")

	site := report.Site
	if site == "" {
		site = "-"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Start URL", "`" + report.StartURL + "`"},
			{"Site", site},
			{"Session", report.SessionID},
			{"Harvest Date", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Pages Fetched", strconv.Itoa(len(report.Pages))},
			{"Records Extracted", strconv.Itoa(len(report.Records))},
			{"Status", w.getStatusText(report)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.HarvestReport) string {
	if report.Cancelled {
		return "⚠️ Cancelled (partial results)"
	}
	if report.Error != nil {
		return "❌ Error - " + report.Error.Error()
	}
	if report.ErrorMessage != "" {
		return "❌ Error - " + report.ErrorMessage
	}
	return "✅ Complete"
}

// writeRecords writes the extracted records as a table.
func (w *MarkdownWriter) writeRecords(md *markdown.Markdown, records []*model.Record) {
	md.H2("Extracted Records")
	md.PlainText("")

	if len(records) == 0 {
		md.PlainText("No records extracted.")
		md.PlainText("")
		return
	}

	headers := records[0].Fields
	rows := make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(headers))
		for j := range headers {
			if j < len(rec.Values) {
				row[j] = truncateString(rec.Values[j], 60)
			}
		}
		rows[i] = row
	}

	md.Table(markdown.TableSet{
		Header: headers,
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFailures writes the fetch failures section.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, report *model.HarvestReport) {
	if len(report.Failures) == 0 {
		return
	}

	md.H2("Fetch Failures")
	md.PlainText("")

	rows := make([][]string, len(report.Failures))
	for i, f := range report.Failures {
		status := "-"
		if f.StatusCode != 0 {
			status = strconv.Itoa(f.StatusCode)
		}
		rows[i] = []string{
			truncateString(f.URL, 60),
			f.Kind,
			status,
			truncateString(f.Message, 60),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Kind", "Status", "Message"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writeFailureChart(md, report)

	md.Warningf(
		"%d page(s) could not be fetched. Results may be incomplete.",
		len(report.Failures),
	)
	md.PlainText("")
}

// writeFailureChart writes a mermaid pie chart for failure distribution.
func (w *MarkdownWriter) writeFailureChart(md *markdown.Markdown, report *model.HarvestReport) {
	counts := report.FailureCountByKind()
	if len(counts) < 2 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Failure Distribution"),
		piechart.WithShowData(true),
	)

	for _, kind := range []string{"http", "network", "robots"} {
		if counts[kind] > 0 {
			chart.LabelAndIntValue(kind, uint64(counts[kind]))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [websift](https://github.com/websift/websift)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
