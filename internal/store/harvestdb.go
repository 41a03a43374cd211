package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/websift/websift/internal/model"
)

// HarvestDB provides SQLite-based storage for fetched pages, extracted
// records, and session reports. It manages connection pooling and provides
// methods for CRUD operations.
//
// Design decision: We use a single database file for all sites rather than
// one file per site. This keeps cross-site queries (dedup, history) simple
// and makes backup/restore a single-file operation.
type HarvestDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HarvestDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HarvestDB at the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HarvestDB, error) {
	dbPath := filepath.Join(dbDir, "websift.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite uses mode=rw to prevent creating new files and
	// mode=rwc to allow creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HarvestDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (hdb *HarvestDB) Close() error {
	return hdb.db.Close()
}

// Path returns the path to the database file.
func (hdb *HarvestDB) Path() string {
	return hdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HarvestDB) createTables() error {
	schema := `
	-- Pages store individual page fetches
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		site TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		status_code INTEGER,
		content_type TEXT,
		title TEXT,
		snapshot TEXT,
		raw_hash TEXT,
		headers TEXT,
		UNIQUE(url, site)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	CREATE INDEX IF NOT EXISTS idx_pages_site ON pages(site);
	CREATE INDEX IF NOT EXISTS idx_pages_timestamp ON pages(timestamp);

	-- Records store extracted rows as ordered field/value pairs
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		source_url TEXT NOT NULL,
		fields TEXT NOT NULL,
		field_values TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_records_session ON records(session_id);
	CREATE INDEX IF NOT EXISTS idx_records_url ON records(source_url);

	-- Session reports store complete harvest results as JSON
	CREATE TABLE IF NOT EXISTS session_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		site TEXT NOT NULL,
		start_url TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		report_json TEXT NOT NULL,
		summary TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_reports_session ON session_reports(session_id);
	CREATE INDEX IF NOT EXISTS idx_reports_site ON session_reports(site);
	CREATE INDEX IF NOT EXISTS idx_reports_timestamp ON session_reports(timestamp);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// PageRow represents a stored page fetch.
type PageRow struct {
	ID          int64
	URL         string
	Site        string
	Timestamp   time.Time
	StatusCode  int
	ContentType string
	Title       string
	Snapshot    string
	RawHash     string
	Headers     map[string][]string
}

// SavePage inserts or updates a fetched page for the given site.
// Uses UPSERT so re-harvesting the same URL refreshes the stored copy.
func (hdb *HarvestDB) SavePage(ctx context.Context, site string, page *model.Page) (int64, error) {
	headersJSON, err := json.Marshal(page.Headers)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize headers: %w", err)
	}

	query := `
	INSERT INTO pages (url, site, status_code, content_type, title, snapshot, raw_hash, headers)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url, site) DO UPDATE SET
		status_code = excluded.status_code,
		content_type = excluded.content_type,
		title = excluded.title,
		snapshot = excluded.snapshot,
		raw_hash = excluded.raw_hash,
		headers = excluded.headers,
		timestamp = CURRENT_TIMESTAMP
	`

	result, err := hdb.db.ExecContext(ctx, query,
		page.URL,
		site,
		page.StatusCode,
		page.ContentType,
		page.Title,
		page.Snapshot,
		page.Hash,
		string(headersJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save page: %w", err)
	}

	return result.LastInsertId()
}

// GetPage retrieves a stored page by URL and site.
// Returns nil when no matching page exists.
func (hdb *HarvestDB) GetPage(ctx context.Context, url, site string) (*PageRow, error) {
	query := `
	SELECT id, url, site, timestamp, status_code, content_type, title, snapshot, raw_hash, headers
	FROM pages
	WHERE url = ? AND site = ?
	`

	var row PageRow
	var headersJSON string
	var timestamp string

	err := hdb.db.QueryRowContext(ctx, query, url, site).Scan(
		&row.ID,
		&row.URL,
		&row.Site,
		&timestamp,
		&row.StatusCode,
		&row.ContentType,
		&row.Title,
		&row.Snapshot,
		&row.RawHash,
		&headersJSON,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}

	// SQLite may return timestamps in different formats
	row.Timestamp = parseTimestamp(timestamp)

	if headersJSON != "" {
		if err := json.Unmarshal([]byte(headersJSON), &row.Headers); err != nil {
			return nil, fmt.Errorf("failed to parse headers: %w", err)
		}
	}

	return &row, nil
}

// HasRecentPage checks if a URL was fetched within the specified duration.
// Used to skip re-fetching pages that were harvested recently.
func (hdb *HarvestDB) HasRecentPage(ctx context.Context, url string, duration time.Duration) (bool, error) {
	query := `
	SELECT COUNT(*) FROM pages
	WHERE url = ? AND timestamp > datetime('now', ?)
	`

	// SQLite datetime modifier format
	modifier := fmt.Sprintf("-%d seconds", int(duration.Seconds()))

	var count int
	err := hdb.db.QueryRowContext(ctx, query, url, modifier).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check recent page: %w", err)
	}

	return count > 0, nil
}

// SaveRecord inserts an extracted record.
func (hdb *HarvestDB) SaveRecord(ctx context.Context, rec *model.Record) error {
	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("failed to serialize fields: %w", err)
	}
	valuesJSON, err := json.Marshal(rec.Values)
	if err != nil {
		return fmt.Errorf("failed to serialize values: %w", err)
	}

	query := `
	INSERT INTO records (session_id, source_url, fields, field_values)
	VALUES (?, ?, ?, ?)
	`

	_, err = hdb.db.ExecContext(ctx, query,
		rec.SessionID,
		rec.SourceURL,
		string(fieldsJSON),
		string(valuesJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}

	return nil
}

// SaveRecords inserts a batch of records inside a single transaction.
func (hdb *HarvestDB) SaveRecords(ctx context.Context, recs []*model.Record) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO records (session_id, source_url, fields, field_values)
	VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		fieldsJSON, err := json.Marshal(rec.Fields)
		if err != nil {
			return fmt.Errorf("failed to serialize fields: %w", err)
		}
		valuesJSON, err := json.Marshal(rec.Values)
		if err != nil {
			return fmt.Errorf("failed to serialize values: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, rec.SessionID, rec.SourceURL, string(fieldsJSON), string(valuesJSON)); err != nil {
			return fmt.Errorf("failed to save record: %w", err)
		}
	}

	return tx.Commit()
}

// QueryRecords retrieves records with optional filters.
// Empty sessionID or sourceURL skips that filter.
func (hdb *HarvestDB) QueryRecords(ctx context.Context, sessionID, sourceURL string) ([]*model.Record, error) {
	query := `
	SELECT session_id, source_url, fields, field_values
	FROM records
	WHERE 1=1
	`
	args := make([]interface{}, 0)

	if sessionID != "" {
		query += " AND session_id = ?"
		args = append(args, sessionID)
	}
	if sourceURL != "" {
		query += " AND source_url = ?"
		args = append(args, sourceURL)
	}

	query += " ORDER BY id"

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var results []*model.Record
	for rows.Next() {
		var rec model.Record
		var fieldsJSON, valuesJSON string

		if err := rows.Scan(&rec.SessionID, &rec.SourceURL, &fieldsJSON, &valuesJSON); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(fieldsJSON), &rec.Fields); err != nil {
			return nil, fmt.Errorf("failed to parse fields: %w", err)
		}
		if err := json.Unmarshal([]byte(valuesJSON), &rec.Values); err != nil {
			return nil, fmt.Errorf("failed to parse values: %w", err)
		}
		results = append(results, &rec)
	}

	return results, rows.Err()
}

// SaveReport saves a complete harvest report as JSON, along with the
// session's pages and records.
func (hdb *HarvestDB) SaveReport(ctx context.Context, report *model.HarvestReport) error {
	if report.Site == "" {
		// Reports built without a config match are still findable by host
		if u, err := url.Parse(report.StartURL); err == nil && u.Host != "" {
			report.Site = u.Hostname()
		} else {
			report.Site = report.StartURL
		}
	}
	site := report.Site

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	summary := map[string]int{
		"pages":    len(report.Pages),
		"records":  len(report.Records),
		"failures": len(report.Failures),
	}
	summaryJSON, _ := json.Marshal(summary) //nolint:errcheck,errchkjson // summary is a simple map; Marshal won't fail

	query := `
	INSERT INTO session_reports (session_id, site, start_url, report_json, summary)
	VALUES (?, ?, ?, ?, ?)
	`

	_, err = hdb.db.ExecContext(ctx, query,
		report.SessionID,
		site,
		report.StartURL,
		string(reportJSON),
		string(summaryJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	for _, page := range report.Pages {
		if _, err := hdb.SavePage(ctx, site, page); err != nil {
			return err
		}
	}

	return hdb.SaveRecords(ctx, report.Records)
}

// GetLatestReport retrieves the most recent harvest report for a site.
// Returns nil when the site was never harvested.
func (hdb *HarvestDB) GetLatestReport(ctx context.Context, site string) (*model.HarvestReport, error) {
	query := `
	SELECT report_json FROM session_reports
	WHERE site = ?
	ORDER BY timestamp DESC
	LIMIT 1
	`

	var reportJSON string
	err := hdb.db.QueryRowContext(ctx, query, site).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report model.HarvestReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// ListSites returns a list of all harvested sites.
func (hdb *HarvestDB) ListSites(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT site FROM session_reports
	ORDER BY site
	`

	rows, err := hdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var sites []string
	for rows.Next() {
		var site string
		if err := rows.Scan(&site); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}

	return sites, rows.Err()
}

// SessionMetadata contains summary information about a harvest session.
// This is used for displaying session history without loading full reports.
type SessionMetadata struct {
	// ID is the unique identifier of the session report in the database.
	ID int64

	// SessionID is the UUID of the harvest session.
	SessionID string

	// Site is the site key the session harvested.
	Site string

	// StartURL is the URL the session started from.
	StartURL string

	// Timestamp is when the report was stored.
	Timestamp time.Time

	// Summary contains counts of pages, records, and failures.
	Summary map[string]int
}

// GetSessionHistory retrieves session metadata for a site, newest first.
// This is more efficient than loading full reports when only metadata is needed.
func (hdb *HarvestDB) GetSessionHistory(ctx context.Context, site string) ([]SessionMetadata, error) {
	query := `
	SELECT id, session_id, site, start_url, timestamp, summary
	FROM session_reports
	WHERE site = ?
	ORDER BY timestamp DESC
	`

	rows, err := hdb.db.QueryContext(ctx, query, site)
	if err != nil {
		return nil, fmt.Errorf("failed to get session history: %w", err)
	}
	defer rows.Close()

	var results []SessionMetadata
	for rows.Next() {
		var meta SessionMetadata
		var timestamp string
		var summaryJSON sql.NullString

		if err := rows.Scan(&meta.ID, &meta.SessionID, &meta.Site, &meta.StartURL, &timestamp, &summaryJSON); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.Timestamp = parseTimestamp(timestamp)

		if summaryJSON.Valid && summaryJSON.String != "" {
			if err := json.Unmarshal([]byte(summaryJSON.String), &meta.Summary); err != nil {
				meta.Summary = make(map[string]int)
			}
		} else {
			meta.Summary = make(map[string]int)
		}

		results = append(results, meta)
	}

	return results, rows.Err()
}

// GetReportByID retrieves a harvest report by its database ID.
// Returns nil when no such report exists.
func (hdb *HarvestDB) GetReportByID(ctx context.Context, id int64) (*model.HarvestReport, error) {
	query := `
	SELECT report_json FROM session_reports
	WHERE id = ?
	`

	var reportJSON string
	err := hdb.db.QueryRowContext(ctx, query, id).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report model.HarvestReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
