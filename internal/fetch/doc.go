// Package fetch provides the HTTP layer for websift.
//
// # Architecture
//
// The Client wraps a resty HTTP client and adds the politeness machinery
// every request must pass through: a token-bucket rate limiter and a
// robots.txt gate. Components that need pages (the crawler, pipeline
// steps) depend on the Client and never touch net/http directly, so the
// politeness rules cannot be bypassed.
//
// # Error Taxonomy
//
// A failed Get falls into one of three kinds, distinguishable by the
// caller:
//
//   - HTTP-kind: the server answered with status >= 400. The error is a
//     *StatusError carrying the status code; test with errors.As.
//   - Network-kind: the request never completed (DNS failure, connection
//     refused, timeout). The underlying transport error is wrapped.
//   - Robots: the URL is disallowed by the host's robots.txt. The error
//     wraps ErrRobotsDisallowed; test with errors.Is.
//
// # Politeness
//
// robots.txt is fetched once per host and cached for the lifetime of the
// gate. When robots.txt itself cannot be retrieved due to a network
// error, the gate fails open: the tutorial-era convention is that an
// unreachable robots.txt does not forbid crawling, while a 5xx answer
// temporarily does (FromStatusAndBytes handles the status semantics).
package fetch
