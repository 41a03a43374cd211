package fetch

import (
	"errors"
	"fmt"
)

// ErrRobotsDisallowed is returned when a URL is blocked by the target
// host's robots.txt. Callers decide whether to skip the URL or abort.
var ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

// StatusError is an HTTP-kind fetch failure: the server responded, but
// with an error status. It is distinct from network-kind failures where
// no response arrived at all.
type StatusError struct {
	// URL is the address that was requested.
	URL string

	// StatusCode is the HTTP response status code (>= 400).
	StatusCode int

	// Status is the full status line text (e.g., "404 Not Found").
	Status string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("http error fetching %s: %s", e.URL, e.Status)
}

// Failure kinds used when classifying fetch errors.
const (
	// KindHTTP marks a failure where the server answered with an error status.
	KindHTTP = "http"

	// KindNetwork marks a failure where no response arrived.
	KindNetwork = "network"

	// KindRobots marks a refusal by the robots.txt gate.
	KindRobots = "robots"
)

// ClassifyError maps a fetch error to a failure kind and, for HTTP-kind
// failures, the status code. It exists so that callers recording failures
// don't each reimplement the errors.As/errors.Is dance.
func ClassifyError(err error) (kind string, statusCode int) {
	var statusErr *StatusError
	switch {
	case errors.Is(err, ErrRobotsDisallowed):
		return KindRobots, 0
	case errors.As(err, &statusErr):
		return KindHTTP, statusErr.StatusCode
	default:
		return KindNetwork, 0
	}
}
