package client

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError reports a non-2xx HTTP response. It is distinct from transport
// failures so callers can decide which failures are worth retrying: the
// scheduler retries timeouts silently but must not hammer an endpoint that
// answered 401.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("job service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("job service returned status %d: %s", e.StatusCode, e.Body)
}

// IsAuthError reports whether err is an authorization failure (401/403).
// Retrying these without new credentials cannot succeed.
func IsAuthError(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden
}

// IsStatusError reports whether err carries an HTTP status, as opposed to a
// transport-level failure that never produced a response.
func IsStatusError(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr)
}
