package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/websift/websift/internal/config"
	"github.com/websift/websift/internal/export"
	"github.com/websift/websift/internal/model"
	"github.com/websift/websift/internal/store"
)

// NewHistoryCmd creates the history command.
// This command inspects harvest sessions stored in the local database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history [site]",
		Aliases: []string{"export"},
		Short:   "Inspect and export stored harvest sessions",
		Long: `History lists and exports harvest sessions saved in the local database.

Without flags, it shows the latest session for the given site. Use
--list to see all sessions, --id to export a specific session's
records, and --diff to compare the latest two sessions record by
record.

Examples:
  # List all sites with stored sessions
  websift history --list-sites

  # List harvest sessions for a site
  websift history --list books.toscrape.com

  # Export records from a specific session as CSV
  websift history --id 5 books.toscrape.com

  # Show what changed between the latest two harvests
  websift history --diff books.toscrape.com

  # Latest session as a JSON report
  websift history --json books.toscrape.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	// Listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List harvest sessions for the specified site")
	cmd.Flags().BoolP("list-sites", "L", false,
		"List all sites with stored sessions")

	// Selection flags
	cmd.Flags().Int64P("id", "i", 0,
		"Export the session with this ID (use --list to see available IDs)")
	cmd.Flags().Bool("diff", false,
		"Compare the latest two sessions for the site")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output in Markdown format")
	cmd.Flags().StringP("output", "o", "",
		"Write output to the specified file")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	listSites, err := cmd.Flags().GetBool("list-sites")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database so validation
	// failures don't take the writer lock
	var site string
	if !listSites {
		if len(args) == 0 {
			return errors.New("site is required (use --list-sites to see available sites)")
		}
		site = targetHost(args[0])
	}

	db, err := store.Open(config.XDGDataDir(), store.Options{EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	if listSites {
		return listStoredSites(ctx, db)
	}

	list, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	if list {
		return listSessionHistory(ctx, db, site)
	}

	diff, err := cmd.Flags().GetBool("diff")
	if err != nil {
		return err
	}
	if diff {
		jsonOutput, err := cmd.Flags().GetBool("json")
		if err != nil {
			return err
		}
		return runSessionDiff(ctx, db, site, jsonOutput)
	}

	return exportStoredSession(ctx, cmd, db, site)
}

// listStoredSites lists all sites that have harvest sessions in the database.
func listStoredSites(ctx context.Context, db *store.HarvestDB) error {
	sites, err := db.ListSites(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}

	if len(sites) == 0 {
		fmt.Println("No harvest sessions found in the database.")
		fmt.Println("\nUse 'websift scrape <url>' to harvest a site.")
		return nil
	}

	fmt.Printf("Harvested sites (%d):\n\n", len(sites))
	for _, site := range sites {
		fmt.Printf("  • %s\n", site)
	}
	fmt.Println("\nUse 'websift history --list <site>' to see sessions for a site.")

	return nil
}

// listSessionHistory lists all harvest sessions for a site.
func listSessionHistory(ctx context.Context, db *store.HarvestDB, site string) error {
	sessions, err := db.GetSessionHistory(ctx, site)
	if err != nil {
		return fmt.Errorf("failed to get session history: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Printf("No harvest sessions found for %s\n", site)
		fmt.Println("\nUse 'websift scrape' to harvest this site.")
		return nil
	}

	fmt.Printf("Harvest sessions for %s (%d sessions):\n\n", site, len(sessions))
	fmt.Printf("  %-6s  %-20s  %s\n", "ID", "Date", "Summary")
	fmt.Println("  " + strings.Repeat("-", 60))

	for _, meta := range sessions {
		fmt.Printf("  %-6d  %-20s  %s\n",
			meta.ID,
			meta.Timestamp.Format("2006-01-02 15:04:05"),
			formatSessionSummary(meta.Summary),
		)
	}

	fmt.Println("\nUse 'websift history --id <id> <site>' to export a session's records.")
	fmt.Println("Use 'websift history --diff <site>' to compare the latest two sessions.")

	return nil
}

// formatSessionSummary formats the summary counts into a short string.
func formatSessionSummary(summary map[string]int) string {
	if summary == nil {
		return "N/A"
	}

	var parts []string
	if v := summary["pages"]; v > 0 {
		parts = append(parts, fmt.Sprintf("pages:%d", v))
	}
	if v := summary["records"]; v > 0 {
		parts = append(parts, fmt.Sprintf("records:%d", v))
	}
	if v := summary["failures"]; v > 0 {
		parts = append(parts, fmt.Sprintf("failures:%d", v))
	}

	if len(parts) == 0 {
		return "empty"
	}
	return strings.Join(parts, " ")
}

// exportStoredSession writes a stored session in the requested format.
// Without --id, the latest session for the site is exported.
func exportStoredSession(ctx context.Context, cmd *cobra.Command, db *store.HarvestDB, site string) error {
	id, err := cmd.Flags().GetInt64("id")
	if err != nil {
		return err
	}

	var report *model.HarvestReport
	if id > 0 {
		report, err = db.GetReportByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get session %d: %w", id, err)
		}
		if report == nil {
			return fmt.Errorf("session with ID %d not found", id)
		}
		if report.Site != site {
			return fmt.Errorf("session ID %d belongs to %s, not %s", id, report.Site, site)
		}
	} else {
		report, err = db.GetLatestReport(ctx, site)
		if err != nil {
			return fmt.Errorf("failed to get latest session: %w", err)
		}
		if report == nil {
			return fmt.Errorf("no harvest sessions found for %s", site)
		}
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	outputFile, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	output, closeOutput, err := openOutput(outputFile)
	if err != nil {
		return err
	}
	defer closeOutput()

	var writer export.Writer
	switch {
	case jsonOutput:
		writer = export.NewFullJSONWriter(output, getVersion(), export.WithPrettyPrint())
	case markdownOutput:
		writer = export.NewMarkdownWriter(output)
	default:
		writer = export.NewCSVWriter(output, export.WithSourceColumn())
	}

	if _, err := writer.Write(report); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	return nil
}

// SessionDiff holds the result of comparing two harvest sessions.
type SessionDiff struct {
	// Site is the compared site's hostname.
	Site string `json:"site"`

	// PreviousSession and CurrentSession identify the compared sessions.
	PreviousSession SessionInfo `json:"previous_session"`
	CurrentSession  SessionInfo `json:"current_session"`

	// NewRecords are records present only in the current session.
	NewRecords []*model.Record `json:"new_records,omitempty"`

	// RemovedRecords are records present only in the previous session.
	RemovedRecords []*model.Record `json:"removed_records,omitempty"`

	// UnchangedCount is the number of records present in both sessions.
	UnchangedCount int `json:"unchanged_count"`
}

// SessionInfo identifies one side of a session diff.
type SessionInfo struct {
	// ID is the database row ID of the session.
	ID int64 `json:"id"`

	// SessionID is the session UUID.
	SessionID string `json:"session_id"`

	// RecordCount is the number of records in the session.
	RecordCount int `json:"record_count"`
}

// runSessionDiff compares the latest two sessions for a site.
func runSessionDiff(ctx context.Context, db *store.HarvestDB, site string, jsonOutput bool) error {
	sessions, err := db.GetSessionHistory(ctx, site)
	if err != nil {
		return fmt.Errorf("failed to get session history: %w", err)
	}
	if len(sessions) < 2 {
		return fmt.Errorf("at least 2 sessions are required for a diff (found %d)", len(sessions))
	}

	// Sessions are sorted newest first
	current, err := loadSessionRecords(ctx, db, sessions[0])
	if err != nil {
		return err
	}
	previous, err := loadSessionRecords(ctx, db, sessions[1])
	if err != nil {
		return err
	}

	diff := diffSessions(site, previous, current)

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(diff)
	}
	return outputDiffText(diff)
}

// sessionRecords pairs session metadata with its loaded records.
type sessionRecords struct {
	meta    store.SessionMetadata
	records []*model.Record
}

func loadSessionRecords(ctx context.Context, db *store.HarvestDB, meta store.SessionMetadata) (sessionRecords, error) {
	records, err := db.QueryRecords(ctx, meta.SessionID, "")
	if err != nil {
		return sessionRecords{}, fmt.Errorf("failed to load records for session %d: %w", meta.ID, err)
	}
	return sessionRecords{meta: meta, records: records}, nil
}

// diffSessions compares the records of two sessions.
// Records are keyed by source URL plus all field values, so a change to
// any field shows up as one removed and one new record.
func diffSessions(site string, previous, current sessionRecords) *SessionDiff {
	diff := &SessionDiff{
		Site: site,
		PreviousSession: SessionInfo{
			ID:          previous.meta.ID,
			SessionID:   previous.meta.SessionID,
			RecordCount: len(previous.records),
		},
		CurrentSession: SessionInfo{
			ID:          current.meta.ID,
			SessionID:   current.meta.SessionID,
			RecordCount: len(current.records),
		},
	}

	previousKeys := make(map[string]*model.Record, len(previous.records))
	for _, r := range previous.records {
		previousKeys[recordKey(r)] = r
	}
	currentKeys := make(map[string]*model.Record, len(current.records))
	for _, r := range current.records {
		currentKeys[recordKey(r)] = r
	}

	for _, r := range current.records {
		if _, exists := previousKeys[recordKey(r)]; !exists {
			diff.NewRecords = append(diff.NewRecords, r)
		} else {
			diff.UnchangedCount++
		}
	}
	for _, r := range previous.records {
		if _, exists := currentKeys[recordKey(r)]; !exists {
			diff.RemovedRecords = append(diff.RemovedRecords, r)
		}
	}

	return diff
}

// recordKey generates a comparison key for a record.
func recordKey(r *model.Record) string {
	return r.SourceURL + "|" + strings.Join(r.Values, "|")
}

// outputDiffText prints a session diff in human-readable form.
func outputDiffText(diff *SessionDiff) error {
	fmt.Printf("Harvest Diff: %s\n", diff.Site)
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\nPrevious session: #%d (%d records)\n",
		diff.PreviousSession.ID, diff.PreviousSession.RecordCount)
	fmt.Printf("Current session:  #%d (%d records)\n",
		diff.CurrentSession.ID, diff.CurrentSession.RecordCount)

	delta := diff.CurrentSession.RecordCount - diff.PreviousSession.RecordCount
	fmt.Printf("Record change:    %s\n", formatDelta(delta))

	if len(diff.NewRecords) > 0 {
		fmt.Printf("\nNew records (%d):\n", len(diff.NewRecords))
		for _, r := range diff.NewRecords {
			fmt.Printf("  [+] %s\n", summarizeRecord(r))
		}
	}

	if len(diff.RemovedRecords) > 0 {
		fmt.Printf("\nRemoved records (%d):\n", len(diff.RemovedRecords))
		for _, r := range diff.RemovedRecords {
			fmt.Printf("  [-] %s\n", summarizeRecord(r))
		}
	}

	if diff.UnchangedCount > 0 {
		fmt.Printf("\nUnchanged: %d records\n", diff.UnchangedCount)
	}

	return nil
}

// summarizeRecord renders a record as "field=value" pairs on one line.
func summarizeRecord(r *model.Record) string {
	parts := make([]string, 0, len(r.Fields))
	for i, f := range r.Fields {
		if i < len(r.Values) && r.Values[i] != "" {
			parts = append(parts, f+"="+r.Values[i])
		}
	}
	if len(parts) == 0 {
		return r.SourceURL
	}
	return strings.Join(parts, " ")
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	} else if delta < 0 {
		return strconv.Itoa(delta)
	}
	return "0"
}
