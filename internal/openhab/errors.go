package openhab

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for openHAB REST operations.
var (
	// ErrRequestFailed indicates openHAB answered with an unexpected status.
	ErrRequestFailed = errors.New("openhab: request failed")

	// ErrInvalidURL indicates the configured base URL cannot be used.
	ErrInvalidURL = errors.New("openhab: invalid url")

	// ErrNotReady indicates the REST API did not answer within the ready timeout.
	ErrNotReady = errors.New("openhab: not ready")
)

// RequestError describes a non-2xx response. It matches ErrRequestFailed
// under errors.Is.
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("%s: %s %s: status %d", ErrRequestFailed, e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Is reports whether target is ErrRequestFailed.
func (e *RequestError) Is(target error) bool {
	return target == ErrRequestFailed
}

// Unauthorized reports whether openHAB rejected the credentials.
func (e *RequestError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}
