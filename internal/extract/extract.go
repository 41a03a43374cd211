package extract

import (
	"strings"

	"github.com/websift/websift/internal/clean"
	"github.com/websift/websift/internal/config"
	"github.com/websift/websift/internal/model"
	"github.com/websift/websift/internal/parse"
)

// RuleSet describes how records are extracted from a page.
// It is the extraction-relevant subset of a site configuration.
type RuleSet struct {
	// ItemSelector locates repeated items on the page.
	// Empty means the page itself is the single item.
	ItemSelector string

	// Fields are the per-field extraction rules, in column order.
	Fields []config.FieldRule
}

// FromSiteConfig builds a RuleSet from a site configuration.
func FromSiteConfig(sc config.SiteConfig) RuleSet {
	return RuleSet{
		ItemSelector: sc.ItemSelector,
		Fields:       sc.Fields,
	}
}

// FieldNames returns the rule set's field names in column order.
func (rs RuleSet) FieldNames() []string {
	names := make([]string, 0, len(rs.Fields))
	for _, f := range rs.Fields {
		names = append(names, f.Name)
	}
	return names
}

// Extract applies the rule set to a parsed document and returns the
// extracted records. With an item selector, one record per matching
// item; without, a single record for the page. Records where every
// field came up empty are dropped.
func Extract(doc *parse.Document, rules RuleSet, sourceURL string) []*model.Record {
	fields := rules.FieldNames()
	records := make([]*model.Record, 0)

	if rules.ItemSelector == "" {
		rec := model.NewRecord(sourceURL, fields)
		for _, rule := range rules.Fields {
			rec.Set(rule.Name, fieldValue(doc.SelectFirst(rule.Selector), rule))
		}
		if !rec.IsEmpty() {
			records = append(records, rec)
		}
		return records
	}

	for _, item := range doc.Select(rules.ItemSelector) {
		rec := model.NewRecord(sourceURL, fields)
		for _, rule := range rules.Fields {
			rec.Set(rule.Name, fieldValue(item.SelectFirst(rule.Selector), rule))
		}
		if !rec.IsEmpty() {
			records = append(records, rec)
		}
	}
	return records
}

// fieldValue reads a field's raw value from a node and applies the
// rule's cleaning operations. A nil node (selector miss) yields empty.
func fieldValue(n *parse.Node, rule config.FieldRule) string {
	if n == nil {
		return ""
	}

	var value string
	switch rule.Attr {
	case "":
		value = strings.TrimSpace(n.Text())
	case "href":
		// Resolved against the page URL so exported links are absolute
		value = n.Href()
	case "src":
		value = n.Src()
	default:
		value = n.Attr(rule.Attr)
	}

	return clean.Apply(value, rule.Clean)
}
