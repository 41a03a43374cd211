package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/websift/websift/internal/model"
)

// SimpleWriter outputs human-readable text summaries.
// This format is designed for terminal display with clear section
// formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no content are shown.
	showEmpty bool

	// verbose enables per-record output in addition to the summary.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with per-record details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the full report in human-readable format.
func (w *SimpleWriter) Write(report *model.HarvestReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeFailures(&sb, report)
	if w.verbose {
		w.writeRecordList(&sb, report.Records)
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteRecords outputs only the records as aligned text.
func (w *SimpleWriter) WriteRecords(records []*model.Record) (int, error) {
	var sb strings.Builder
	w.writeRecordList(&sb, records)
	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with session information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.HarvestReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         WEBSIFT HARVEST REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Start URL:    %s\n", report.StartURL))
	if report.Site != "" {
		sb.WriteString(fmt.Sprintf("Site:         %s\n", report.Site))
	}
	sb.WriteString(fmt.Sprintf("Session:      %s\n", report.SessionID))
	sb.WriteString(fmt.Sprintf("Harvest Date: %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST")))

	switch {
	case report.Cancelled:
		sb.WriteString("Status:       CANCELLED (partial results)\n")
	case report.Error != nil:
		sb.WriteString(fmt.Sprintf("Status:       ERROR - %s\n", report.Error))
	case report.ErrorMessage != "":
		sb.WriteString(fmt.Sprintf("Status:       ERROR - %s\n", report.ErrorMessage))
	default:
		sb.WriteString("Status:       Complete\n")
	}

	sb.WriteString("\n")
}

// writeSummary writes the harvest summary section.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.HarvestReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("  Pages fetched:     %d\n", len(report.Pages)))
	sb.WriteString(fmt.Sprintf("  Records extracted: %d\n", len(report.Records)))
	sb.WriteString(fmt.Sprintf("  Fetch failures:    %d\n", len(report.Failures)))
	if d := report.Duration(); d > 0 {
		sb.WriteString(fmt.Sprintf("  Duration:          %s\n", d.Round(0)))
	}
	sb.WriteString("\n")
}

// writeFailures writes the fetch failures section.
func (w *SimpleWriter) writeFailures(sb *strings.Builder, report *model.HarvestReport) {
	if len(report.Failures) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("FETCH FAILURES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(report.Failures) == 0 {
		sb.WriteString("  No failures\n")
	} else {
		for _, f := range report.Failures {
			if f.StatusCode != 0 {
				sb.WriteString(fmt.Sprintf("  [%s %d] %s\n", f.Kind, f.StatusCode, f.URL))
			} else {
				sb.WriteString(fmt.Sprintf("  [%s] %s\n", f.Kind, f.URL))
			}
		}
	}
	sb.WriteString("\n")
}

// writeRecordList writes every record as a block of field: value lines.
func (w *SimpleWriter) writeRecordList(sb *strings.Builder, records []*model.Record) {
	if len(records) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("RECORDS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(records) == 0 {
		sb.WriteString("  No records\n\n")
		return
	}

	for i, rec := range records {
		sb.WriteString(fmt.Sprintf("  [%d] %s\n", i+1, rec.SourceURL))
		for j, field := range rec.Fields {
			if j < len(rec.Values) {
				sb.WriteString(fmt.Sprintf("      %s: %s\n", field, rec.Values[j]))
			}
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by websift\n")
	sb.WriteString("https://github.com/websift/websift\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
