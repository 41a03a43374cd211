package config

import "time"

// FieldRule describes how to extract one field of a record.
//
// Design decision: Fields are a list rather than a map because the order
// of rules determines the CSV column order, and YAML maps don't preserve
// ordering.
type FieldRule struct {
	// Name is the field name, used as the CSV column header.
	Name string `yaml:"name"`

	// Selector is the CSS selector locating the field's node, evaluated
	// relative to the item node (or the document root when the site has
	// no item selector).
	Selector string `yaml:"selector"`

	// Attr names the attribute to read the value from.
	// Empty means the node's text content.
	Attr string `yaml:"attr,omitempty"`

	// Clean lists cleaning operations applied to the raw value, in order.
	// Supported: "trim", "collapse", "strip_html", "accents", "number",
	// "title".
	Clean []string `yaml:"clean,omitempty"`
}

// SiteConfig holds per-site scraping configuration.
// A site is keyed by hostname in the config file; the matching section
// applies to every URL on that host.
type SiteConfig struct {
	// ItemSelector is the CSS selector for repeated items on a page
	// (e.g., product cards on a listing). One record is extracted per
	// match. When empty, the whole page yields a single record.
	ItemSelector string `yaml:"itemSelector,omitempty"`

	// Fields are the extraction rules, in output column order.
	Fields []FieldRule `yaml:"fields,omitempty"`

	// NextSelector is the CSS selector for the "next page" link used for
	// pagination. The link's href attribute is followed until the
	// selector stops matching.
	NextSelector string `yaml:"nextSelector,omitempty"`

	// Cookie is an HTTP cookie to send with requests to this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers for requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Delay overrides the global crawl delay for this site.
	Delay time.Duration `yaml:"delay,omitempty"`

	// Depth overrides the global crawl depth for this site.
	// If zero, the global CrawlDepth is used.
	Depth int `yaml:"depth,omitempty"`

	// MaxPages overrides the global page cap for this site.
	MaxPages int `yaml:"maxPages,omitempty"`

	// IgnorePatterns are URL path patterns to skip during crawling.
	// Patterns are matched against the URL path using glob syntax.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL path patterns to follow during crawling.
	// If specified, only URLs matching these patterns are crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// FieldNames returns the configured field names in rule order.
func (sc SiteConfig) FieldNames() []string {
	names := make([]string, 0, len(sc.Fields))
	for _, f := range sc.Fields {
		names = append(names, f.Name)
	}
	return names
}

// File represents the structure of the .websift configuration file.
type File struct {
	// Sites maps hostnames to their site-specific configurations.
	// Keys are bare hostnames without scheme (e.g., "books.toscrape.com").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains default site configuration applied to all sites
	// unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a hostname.
// It merges the site-specific configuration with defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	// Start with defaults
	result := cf.Defaults

	// Override with site-specific configuration if present
	if siteConfig, ok := cf.Sites[host]; ok {
		if siteConfig.ItemSelector != "" {
			result.ItemSelector = siteConfig.ItemSelector
		}
		if len(siteConfig.Fields) > 0 {
			result.Fields = siteConfig.Fields
		}
		if siteConfig.NextSelector != "" {
			result.NextSelector = siteConfig.NextSelector
		}
		if siteConfig.Cookie != "" {
			result.Cookie = siteConfig.Cookie
		}
		if siteConfig.Delay != 0 {
			result.Delay = siteConfig.Delay
		}
		if siteConfig.Depth != 0 {
			result.Depth = siteConfig.Depth
		}
		if siteConfig.MaxPages != 0 {
			result.MaxPages = siteConfig.MaxPages
		}
		if len(siteConfig.Headers) > 0 {
			if result.Headers == nil {
				result.Headers = make(map[string]string)
			}
			for k, v := range siteConfig.Headers {
				result.Headers[k] = v
			}
		}
		if len(siteConfig.IgnorePatterns) > 0 {
			result.IgnorePatterns = siteConfig.IgnorePatterns
		}
		if len(siteConfig.FollowPatterns) > 0 {
			result.FollowPatterns = siteConfig.FollowPatterns
		}
	}

	return result
}
