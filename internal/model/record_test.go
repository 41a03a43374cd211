package model

import "testing"

// TestRecord tests field access on records.
func TestRecord(t *testing.T) {
	t.Parallel()

	t.Run("set and get values", func(t *testing.T) {
		t.Parallel()

		rec := NewRecord("http://example.com/item", []string{"title", "price"})
		rec.Set("title", "Widget")
		rec.Set("price", "9.99")

		if got := rec.Get("title"); got != "Widget" {
			t.Errorf("expected title Widget, got %q", got)
		}
		if got := rec.Get("price"); got != "9.99" {
			t.Errorf("expected price 9.99, got %q", got)
		}
	})

	t.Run("unknown field is ignored", func(t *testing.T) {
		t.Parallel()

		rec := NewRecord("http://example.com", []string{"title"})
		rec.Set("nonexistent", "value")

		if got := rec.Get("nonexistent"); got != "" {
			t.Errorf("expected empty value for unknown field, got %q", got)
		}
		if got := rec.Get("title"); got != "" {
			t.Errorf("expected title untouched, got %q", got)
		}
	})

	t.Run("values align with fields", func(t *testing.T) {
		t.Parallel()

		rec := NewRecord("http://example.com", []string{"a", "b", "c"})
		if len(rec.Values) != len(rec.Fields) {
			t.Errorf("expected %d values, got %d", len(rec.Fields), len(rec.Values))
		}
	})

	t.Run("empty detection", func(t *testing.T) {
		t.Parallel()

		rec := NewRecord("http://example.com", []string{"a", "b"})
		if !rec.IsEmpty() {
			t.Error("expected new record to be empty")
		}

		rec.Set("b", "value")
		if rec.IsEmpty() {
			t.Error("expected record with a value to be non-empty")
		}
	})
}

// TestHarvestReport tests report accumulation.
func TestHarvestReport(t *testing.T) {
	t.Parallel()

	t.Run("accumulates pages and records", func(t *testing.T) {
		t.Parallel()

		report := NewHarvestReport("session-1", "http://example.com")
		report.AddPage(&Page{URL: "http://example.com"})
		report.AddPage(&Page{URL: "http://example.com/2"})

		rec := NewRecord("http://example.com", []string{"title"})
		report.AddRecord(rec)

		if len(report.Pages) != 2 {
			t.Errorf("expected 2 pages, got %d", len(report.Pages))
		}
		if len(report.Records) != 1 {
			t.Errorf("expected 1 record, got %d", len(report.Records))
		}
		if rec.SessionID != "session-1" {
			t.Errorf("expected record stamped with session ID, got %q", rec.SessionID)
		}
	})

	t.Run("groups failures by kind", func(t *testing.T) {
		t.Parallel()

		report := NewHarvestReport("session-2", "http://example.com")
		report.AddFailure(FetchFailure{URL: "http://example.com/a", Kind: "http", StatusCode: 404})
		report.AddFailure(FetchFailure{URL: "http://example.com/b", Kind: "http", StatusCode: 500})
		report.AddFailure(FetchFailure{URL: "http://example.com/c", Kind: "network"})

		counts := report.FailureCountByKind()
		if counts["http"] != 2 {
			t.Errorf("expected 2 http failures, got %d", counts["http"])
		}
		if counts["network"] != 1 {
			t.Errorf("expected 1 network failure, got %d", counts["network"])
		}
	})

	t.Run("duration requires finish", func(t *testing.T) {
		t.Parallel()

		report := NewHarvestReport("session-3", "http://example.com")
		if report.Duration() != 0 {
			t.Error("expected zero duration before finish")
		}

		report.Finish()
		if report.FinishedAt.IsZero() {
			t.Error("expected finish timestamp to be set")
		}
	})

	t.Run("field names come from first record", func(t *testing.T) {
		t.Parallel()

		report := NewHarvestReport("session-4", "http://example.com")
		if report.FieldNames() != nil {
			t.Error("expected nil field names with no records")
		}

		report.AddRecord(NewRecord("http://example.com", []string{"title", "price"}))
		fields := report.FieldNames()
		if len(fields) != 2 || fields[0] != "title" {
			t.Errorf("unexpected field names: %v", fields)
		}
	})
}
