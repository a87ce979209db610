package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingToken is returned by Login when the response carries none of
// the known token fields.
var ErrMissingToken = errors.New("login response did not include an access token")

// Error is the single error type surfaced by the client. Status is zero
// when the request never produced an HTTP response.
type Error struct {
	Message string
	Status  int
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
	}
	return "api error: " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// IsClientError reports whether the backend rejected the request itself (4xx).
func (e *Error) IsClientError() bool {
	return e.Status >= 400 && e.Status < 500
}

// StatusCode returns the HTTP status carried by err, or zero.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}
