// Package log provides logging with automatic masking of scraping
// credentials, built on top of the standard slog package.
//
// Site configurations may carry session cookies and authentication headers
// so that scrapes can reach pages behind a login. Those values must never
// end up in log output, even in verbose mode where request details are
// logged. The MaskingHandler intercepts every log record and replaces
// sensitive attribute values before they reach the underlying handler.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, true) // verbose=true
//
//	logger.Info("request sent",
//	    "cookie", "session=abc123",  // masked
//	    "url", "http://example.com",
//	)
//
//	slog.SetDefault(logger)
package log
