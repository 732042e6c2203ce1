package wiki

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHost is returned when the host is not an absolute http(s) URL.
	ErrInvalidHost = errors.New("invalid wiki host: expected http(s)://host")

	// ErrMissingToken is returned when the client is built without a token.
	ErrMissingToken = errors.New("missing wiki API token")

	// ErrBodyTooLarge is returned when a response body exceeds the
	// configured maximum size.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")
)

// StatusError is returned when the wiki answers with a non-2xx status.
type StatusError struct {
	// StatusCode is the HTTP status code received.
	StatusCode int

	// URL is the request URL.
	URL string
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
