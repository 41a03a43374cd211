package main

import (
	"context"
	"testing"

	"github.com/websift/websift/internal/model"
	"github.com/websift/websift/internal/store"
)

// TestNewHistoryCmd tests the history command creation.
func TestNewHistoryCmd(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "history [site]" {
			t.Errorf("expected use 'history [site]', got %q", cmd.Use)
		}
	})

	t.Run("has short description", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" {
			t.Error("expected non-empty short description")
		}
	})

	t.Run("has list flags", func(t *testing.T) {
		t.Parallel()
		if cmd.Flags().Lookup("list") == nil {
			t.Error("expected list flag")
		}
		if cmd.Flags().Lookup("list-sites") == nil {
			t.Error("expected list-sites flag")
		}
	})

	t.Run("has selection flags", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("id")
		if flag == nil {
			t.Fatal("expected id flag")
		}
		if flag.Shorthand != "i" {
			t.Errorf("expected shorthand 'i', got %q", flag.Shorthand)
		}
		if cmd.Flags().Lookup("diff") == nil {
			t.Error("expected diff flag")
		}
	})

	t.Run("has output format flags", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{"json", "markdown", "output"} {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("expected %s flag", name)
			}
		}
	})
}

// TestFormatSessionSummary tests summary formatting.
func TestFormatSessionSummary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		summary map[string]int
		want    string
	}{
		{
			name:    "nil summary",
			summary: nil,
			want:    "N/A",
		},
		{
			name:    "empty summary",
			summary: map[string]int{},
			want:    "empty",
		},
		{
			name:    "full summary",
			summary: map[string]int{"pages": 3, "records": 40, "failures": 1},
			want:    "pages:3 records:40 failures:1",
		},
		{
			name:    "records only",
			summary: map[string]int{"records": 20},
			want:    "records:20",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := formatSessionSummary(tt.summary); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestFormatDelta tests delta formatting.
func TestFormatDelta(t *testing.T) {
	t.Parallel()

	if got := formatDelta(3); got != "+3" {
		t.Errorf("expected '+3', got %q", got)
	}
	if got := formatDelta(-2); got != "-2" {
		t.Errorf("expected '-2', got %q", got)
	}
	if got := formatDelta(0); got != "0" {
		t.Errorf("expected '0', got %q", got)
	}
}

// newDiffRecord builds a record for diff tests.
func newDiffRecord(sourceURL, title, price string) *model.Record {
	r := model.NewRecord(sourceURL, []string{"title", "price"})
	r.Set("title", title)
	r.Set("price", price)
	return r
}

// TestDiffSessions tests record-level session comparison.
func TestDiffSessions(t *testing.T) {
	t.Parallel()

	previous := sessionRecords{
		meta: store.SessionMetadata{ID: 1, SessionID: "session-old"},
		records: []*model.Record{
			newDiffRecord("http://example.com/", "Book A", "10.00"),
			newDiffRecord("http://example.com/", "Book B", "20.00"),
		},
	}
	current := sessionRecords{
		meta: store.SessionMetadata{ID: 2, SessionID: "session-new"},
		records: []*model.Record{
			newDiffRecord("http://example.com/", "Book A", "10.00"),
			newDiffRecord("http://example.com/", "Book B", "25.00"),
			newDiffRecord("http://example.com/", "Book C", "30.00"),
		},
	}

	diff := diffSessions("example.com", previous, current)

	if diff.Site != "example.com" {
		t.Errorf("expected site 'example.com', got %q", diff.Site)
	}
	if diff.PreviousSession.RecordCount != 2 {
		t.Errorf("expected 2 previous records, got %d", diff.PreviousSession.RecordCount)
	}
	if diff.CurrentSession.RecordCount != 3 {
		t.Errorf("expected 3 current records, got %d", diff.CurrentSession.RecordCount)
	}

	// Book A is unchanged; Book B changed price so it appears as both
	// new and removed; Book C is new
	if diff.UnchangedCount != 1 {
		t.Errorf("expected 1 unchanged record, got %d", diff.UnchangedCount)
	}
	if len(diff.NewRecords) != 2 {
		t.Errorf("expected 2 new records, got %d", len(diff.NewRecords))
	}
	if len(diff.RemovedRecords) != 1 {
		t.Errorf("expected 1 removed record, got %d", len(diff.RemovedRecords))
	}
	if diff.RemovedRecords[0].Get("title") != "Book B" {
		t.Errorf("expected removed record 'Book B', got %q", diff.RemovedRecords[0].Get("title"))
	}
}

// TestSummarizeRecord tests one-line record rendering.
func TestSummarizeRecord(t *testing.T) {
	t.Parallel()

	t.Run("renders field pairs", func(t *testing.T) {
		t.Parallel()
		r := newDiffRecord("http://example.com/", "Book A", "10.00")
		want := "title=Book A price=10.00"
		if got := summarizeRecord(r); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	})

	t.Run("skips empty values", func(t *testing.T) {
		t.Parallel()
		r := newDiffRecord("http://example.com/", "Book A", "")
		want := "title=Book A"
		if got := summarizeRecord(r); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	})

	t.Run("falls back to source URL", func(t *testing.T) {
		t.Parallel()
		r := model.NewRecord("http://example.com/page", []string{"title"})
		if got := summarizeRecord(r); got != "http://example.com/page" {
			t.Errorf("expected source URL fallback, got %q", got)
		}
	})
}

// TestLoadSessionRecords tests loading session records from the database.
func TestLoadSessionRecords(t *testing.T) {
	t.Parallel()

	db, err := store.Open(t.TempDir(), store.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()

	report := model.NewHarvestReport("session-load", "http://example.com/")
	report.Site = "example.com"
	report.AddRecord(newDiffRecord("http://example.com/", "Book A", "10.00"))
	report.AddRecord(newDiffRecord("http://example.com/", "Book B", "20.00"))
	report.Finish()

	if err := db.SaveReport(ctx, report); err != nil {
		t.Fatalf("failed to save report: %v", err)
	}

	sessions, err := db.GetSessionHistory(ctx, "example.com")
	if err != nil {
		t.Fatalf("failed to get history: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}

	loaded, err := loadSessionRecords(ctx, db, sessions[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(loaded.records) != 2 {
		t.Errorf("expected 2 records, got %d", len(loaded.records))
	}
	if loaded.meta.SessionID != "session-load" {
		t.Errorf("expected session-load, got %q", loaded.meta.SessionID)
	}
}
