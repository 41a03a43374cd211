package model

// Record is a structured row of values extracted from a single page or
// from one repeated item on a page (e.g., one product card in a listing).
//
// Design decision: We keep field names on every record rather than only on
// the session because:
// 1. Records stay self-describing when handled individually
// 2. Export code doesn't need to thread a schema alongside the data
// 3. Sessions with evolving site configs still export correctly
type Record struct {
	// SourceURL is the URL of the page the record was extracted from.
	SourceURL string `json:"source_url"`

	// SessionID is the UUID of the harvest session that produced the record.
	SessionID string `json:"session_id,omitempty"`

	// Fields holds the field names in extraction order.
	// The order determines the CSV column order.
	Fields []string `json:"fields"`

	// Values holds one value per field, aligned by index with Fields.
	Values []string `json:"values"`
}

// NewRecord creates a Record with the given field names and empty values.
func NewRecord(sourceURL string, fields []string) *Record {
	return &Record{
		SourceURL: sourceURL,
		Fields:    append([]string(nil), fields...),
		Values:    make([]string, len(fields)),
	}
}

// Set assigns a value to the named field.
// Unknown field names are ignored.
func (r *Record) Set(field, value string) {
	for i, f := range r.Fields {
		if f == field {
			r.Values[i] = value
			return
		}
	}
}

// Get returns the value of the named field.
// Returns empty string for unknown fields.
func (r *Record) Get(field string) string {
	for i, f := range r.Fields {
		if f == field {
			return r.Values[i]
		}
	}
	return ""
}

// IsEmpty reports whether every value in the record is empty.
// Extraction drops empty records so selector misses on boilerplate
// markup don't produce blank rows.
func (r *Record) IsEmpty() bool {
	for _, v := range r.Values {
		if v != "" {
			return false
		}
	}
	return true
}
