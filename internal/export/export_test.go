package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/websift/websift/internal/model"
)

// sampleReport returns a report with two records and one failure.
func sampleReport() *model.HarvestReport {
	report := model.NewHarvestReport("session-x", "http://books.example.com/")
	report.Site = "books"

	report.AddPage(&model.Page{
		URL:        "http://books.example.com/",
		StatusCode: 200,
		Title:      "All products",
		Snapshot:   "<html><body><h1>All products</h1><p>hello <strong>world</strong></p></body></html>",
	})

	rec1 := model.NewRecord("http://books.example.com/", []string{"name", "price"})
	rec1.Set("name", "A Light in the Attic")
	rec1.Set("price", "51.77")
	report.AddRecord(rec1)

	rec2 := model.NewRecord("http://books.example.com/", []string{"name", "price"})
	rec2.Set("name", `Say, "hello"`)
	rec2.Set("price", "53.74")
	report.AddRecord(rec2)

	report.AddFailure(model.FetchFailure{
		URL:        "http://books.example.com/missing",
		Kind:       "http",
		StatusCode: 404,
		Message:    "404 Not Found",
	})

	report.Finish()
	return report
}

// TestCSVWriter tests CSV record output.
func TestCSVWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and rows", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewCSVWriter(&buf)

		n, err := w.Write(sampleReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("reported %d bytes, wrote %d", n, buf.Len())
		}

		rows, err := csv.NewReader(&buf).ReadAll()
		if err != nil {
			t.Fatalf("output is not valid CSV: %v", err)
		}
		if len(rows) != 3 {
			t.Fatalf("expected header + 2 rows, got %d rows", len(rows))
		}
		if rows[0][0] != "name" || rows[0][1] != "price" {
			t.Errorf("unexpected header: %v", rows[0])
		}
		if rows[1][1] != "51.77" {
			t.Errorf("unexpected first row: %v", rows[1])
		}
		// Embedded quotes must round-trip
		if rows[2][0] != `Say, "hello"` {
			t.Errorf("quoting broken: %q", rows[2][0])
		}
	})

	t.Run("source column option", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewCSVWriter(&buf, WithSourceColumn())

		if _, err := w.Write(sampleReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		rows, err := csv.NewReader(&buf).ReadAll()
		if err != nil {
			t.Fatalf("output is not valid CSV: %v", err)
		}
		if rows[0][0] != "source_url" {
			t.Errorf("expected source_url column first, got %v", rows[0])
		}
		if rows[1][0] != "http://books.example.com/" {
			t.Errorf("unexpected source value: %v", rows[1])
		}
	})

	t.Run("tab delimiter option", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewCSVWriter(&buf, WithComma('\t'))

		if _, err := w.Write(sampleReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "name\tprice") {
			t.Errorf("expected tab-separated header, got %q", buf.String())
		}
	})

	t.Run("no records writes nothing", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewCSVWriter(&buf)

		n, err := w.WriteRecords(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 0 || buf.Len() != 0 {
			t.Errorf("expected empty output, got %q", buf.String())
		}
	})
}

// TestJSONWriter tests JSON output.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("report round-trips", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)

		if _, err := w.Write(sampleReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got model.HarvestReport
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if got.SessionID != "session-x" {
			t.Errorf("session id = %q, want %q", got.SessionID, "session-x")
		}
		if len(got.Records) != 2 || len(got.Failures) != 1 {
			t.Errorf("contents not round-tripped: %d records, %d failures", len(got.Records), len(got.Failures))
		}
	})

	t.Run("pretty print indents", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf, WithPrettyPrint())

		if _, err := w.Write(sampleReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  ") {
			t.Error("expected indented output")
		}
	})

	t.Run("full writer wraps with version", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewFullJSONWriter(&buf, "1.2.3")

		if _, err := w.Write(sampleReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var wrapped JSONReport
		if err := json.Unmarshal(buf.Bytes(), &wrapped); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if wrapped.Version != "1.2.3" {
			t.Errorf("version = %q, want %q", wrapped.Version, "1.2.3")
		}
		if wrapped.FailuresByKind["http"] != 1 {
			t.Errorf("unexpected failure summary: %+v", wrapped.FailuresByKind)
		}
	})

	t.Run("records only", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)

		if _, err := w.WriteRecords(sampleReport().Records); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got []*model.Record
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 records, got %d", len(got))
		}
	})
}

// TestMarkdownWriter tests Markdown output.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("full report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		if _, err := w.Write(sampleReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()

		for _, want := range []string{
			"# Websift Harvest Report",
			"## Extracted Records",
			"A Light in the Attic",
			"## Fetch Failures",
			"404",
			"books.example.com",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q", want)
			}
		}
	})

	t.Run("cancelled report shows partial status", func(t *testing.T) {
		t.Parallel()

		report := sampleReport()
		report.Cancelled = true

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		if _, err := w.Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "partial results") {
			t.Error("expected partial results status")
		}
	})

	t.Run("no records", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		if _, err := w.WriteRecords(nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No records extracted.") {
			t.Errorf("expected empty-records message, got %q", buf.String())
		}
	})
}

// TestSimpleWriter tests plain-text output.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(sampleReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()

		for _, want := range []string{
			"WEBSIFT HARVEST REPORT",
			"Pages fetched:     1",
			"Records extracted: 2",
			"FETCH FAILURES",
			"[http 404]",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q", want)
			}
		}
		// Records only appear in verbose mode
		if strings.Contains(out, "A Light in the Attic") {
			t.Error("records should not appear without verbose")
		}
	})

	t.Run("verbose includes records", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf, WithVerbose(true))

		if _, err := w.Write(sampleReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "name: A Light in the Attic") {
			t.Error("expected record details in verbose output")
		}
	})
}

// TestSnapshotWriter tests HTML to Markdown conversion.
func TestSnapshotWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewSnapshotWriter(&buf)

	if _, err := w.Write(sampleReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "<!-- http://books.example.com/ -->") {
		t.Error("expected page URL marker")
	}
	if !strings.Contains(out, "All products") {
		t.Error("expected converted heading text")
	}
	if !strings.Contains(out, "**world**") {
		t.Errorf("expected bold markdown, got %q", out)
	}
}

// TestMultiWriter tests fan-out to several writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var csvBuf, jsonBuf bytes.Buffer
	mw := NewMultiWriter(
		NewCSVWriter(&csvBuf),
		NewJSONWriter(&jsonBuf),
	)

	n, err := mw.Write(sampleReport())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != csvBuf.Len()+jsonBuf.Len() {
		t.Errorf("total bytes %d, want %d", n, csvBuf.Len()+jsonBuf.Len())
	}
	if csvBuf.Len() == 0 || jsonBuf.Len() == 0 {
		t.Error("expected output in both writers")
	}
}
