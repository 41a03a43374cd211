// Package config provides configuration structures and utilities for
// websift. It defines the main options for fetching, crawling, extraction,
// and export, plus the YAML config file format with per-site sections.
package config
