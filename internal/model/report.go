package model

import (
	"time"
)

// HarvestReport is the accumulated result of a scrape or crawl session.
// Pipeline steps add pages, records, and failures to it as they run.
//
// Design decision: We use a single struct that flows through the pipeline
// rather than returning partial results from each step because:
// 1. Steps can build on earlier steps' output (extract needs fetched pages)
// 2. Serialization and database storage stay simple
// 3. Partial results survive mid-session failures
type HarvestReport struct {
	// SessionID is the UUID identifying this harvest session.
	SessionID string `json:"session_id"`

	// StartURL is the URL the session started from.
	StartURL string `json:"start_url"`

	// Site is the site key from the config file, when one matched.
	Site string `json:"site,omitempty"`

	// StartedAt is when the session began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the session completed or was cancelled.
	FinishedAt time.Time `json:"finished_at"`

	// Pages contains every page fetched during the session.
	Pages []*Page `json:"pages,omitempty"`

	// Records contains every record extracted during the session.
	Records []*Record `json:"records,omitempty"`

	// Failures contains per-URL fetch failures that did not abort the session.
	Failures []FetchFailure `json:"failures,omitempty"`

	// PerformedSteps lists the names of pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Cancelled is true when the session was interrupted before completion.
	// Pages and Records still hold everything collected up to that point.
	Cancelled bool `json:"cancelled,omitempty"`

	// Error holds the fatal error that stopped the session, if any.
	// Not serialized; ErrorMessage carries the text.
	Error error `json:"-"`

	// ErrorMessage is the string form of Error for serialization.
	ErrorMessage string `json:"error,omitempty"`
}

// FetchFailure records a URL that could not be fetched and why.
type FetchFailure struct {
	// URL is the address that failed.
	URL string `json:"url"`

	// Kind classifies the failure ("http" for status errors, "network"
	// for transport errors, "robots" for robots.txt refusals).
	Kind string `json:"kind"`

	// StatusCode is the HTTP status for "http" failures, zero otherwise.
	StatusCode int `json:"status_code,omitempty"`

	// Message is the error text.
	Message string `json:"message"`
}

// NewHarvestReport creates a report for a session starting at startURL.
func NewHarvestReport(sessionID, startURL string) *HarvestReport {
	return &HarvestReport{
		SessionID: sessionID,
		StartURL:  startURL,
		StartedAt: time.Now(),
		Pages:     make([]*Page, 0),
		Records:   make([]*Record, 0),
		Failures:  make([]FetchFailure, 0),
	}
}

// AddPage appends a fetched page to the report.
func (r *HarvestReport) AddPage(p *Page) {
	r.Pages = append(r.Pages, p)
}

// AddRecord appends an extracted record to the report.
func (r *HarvestReport) AddRecord(rec *Record) {
	rec.SessionID = r.SessionID
	r.Records = append(r.Records, rec)
}

// AddFailure appends a non-fatal fetch failure to the report.
func (r *HarvestReport) AddFailure(f FetchFailure) {
	r.Failures = append(r.Failures, f)
}

// Finish stamps the completion time.
func (r *HarvestReport) Finish() {
	r.FinishedAt = time.Now()
}

// Duration returns how long the session ran.
// Returns zero if the session hasn't finished.
func (r *HarvestReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailureCountByKind returns failure counts grouped by kind.
func (r *HarvestReport) FailureCountByKind() map[string]int {
	counts := make(map[string]int)
	for _, f := range r.Failures {
		counts[f.Kind]++
	}
	return counts
}

// FieldNames returns the field names of the session's records.
// All records in a session share the same field set; we take them from
// the first record. Returns nil when the session produced no records.
func (r *HarvestReport) FieldNames() []string {
	if len(r.Records) == 0 {
		return nil
	}
	return r.Records[0].Fields
}
