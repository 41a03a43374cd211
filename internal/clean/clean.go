package clean

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/kennygrant/sanitize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Operation names accepted by Apply. These are the values allowed in a
// field rule's clean list in the config file.
const (
	OpTrim      = "trim"
	OpCollapse  = "collapse"
	OpStripHTML = "strip_html"
	OpAccents   = "accents"
	OpNumber    = "number"
	OpTitle     = "title"
)

// Apply runs the named cleaning operations on value, in order.
// Unknown operation names are skipped; a config typo degrades to a
// missing cleanup rather than a failed session.
func Apply(value string, ops []string) string {
	for _, op := range ops {
		switch op {
		case OpTrim:
			value = strings.TrimSpace(value)
		case OpCollapse:
			value = Collapse(value)
		case OpStripHTML:
			value = StripHTML(value)
		case OpAccents:
			value = Accents(value)
		case OpNumber:
			value = Number(value)
		case OpTitle:
			value = Title(value)
		}
	}
	return value
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Collapse trims the value and squeezes internal whitespace runs
// (including newlines and tabs) into single spaces. Control characters
// are dropped.
func Collapse(value string) string {
	var sb strings.Builder
	for _, r := range value {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sb.WriteRune(r)
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(sb.String(), " "))
}

// StripHTML removes markup tags from the value and decodes HTML
// entities, leaving plain text.
func StripHTML(value string) string {
	return sanitize.HTML(value)
}

// Accents replaces accented characters with their ASCII equivalents
// ("café" becomes "cafe"). Useful for keys and filenames built from
// scraped titles.
func Accents(value string) string {
	return sanitize.Accents(value)
}

// Title converts the value to English title case.
// A cases.Caser wraps a stateful transformer that is not safe for
// concurrent use, so one is constructed per call; batch sessions clean
// values from several goroutines at once.
func Title(value string) string {
	return cases.Title(language.English).String(value)
}

var numberPattern = regexp.MustCompile(`-?[0-9][0-9.,]*`)

// Number extracts the first numeric value from a string, dropping
// currency symbols and thousands separators: "£1,234.56" becomes
// "1234.56". A trailing comma-decimal ("12,50") is normalized to a dot.
// Returns empty string when the value contains no digits.
func Number(value string) string {
	match := numberPattern.FindString(value)
	if match == "" {
		return ""
	}

	// Trim stray trailing separators ("12." from "12. Chapter")
	match = strings.TrimRight(match, ".,")

	hasComma := strings.Contains(match, ",")
	hasDot := strings.Contains(match, ".")

	switch {
	case hasComma && hasDot:
		// Both present: commas are thousands separators
		match = strings.ReplaceAll(match, ",", "")
	case hasComma:
		// Only commas: decimal comma when exactly two digits follow the
		// last one, thousands separators otherwise
		idx := strings.LastIndex(match, ",")
		if len(match)-idx-1 == 2 {
			match = strings.ReplaceAll(match[:idx], ",", "") + "." + match[idx+1:]
		} else {
			match = strings.ReplaceAll(match, ",", "")
		}
	}

	return match
}
