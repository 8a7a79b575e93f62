// internal/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when the API responds with HTTP 401 or 403.
var ErrUnauthorized = errors.New("unauthorized")

// ErrTooManyRequests is returned when the API responds with HTTP 429.
// For build submission it means the owner already has a build in flight.
var ErrTooManyRequests = errors.New("too many concurrent requests")

// ErrBuildInFlight is returned when a new build is submitted while another
// one is still being tracked by the same client.
var ErrBuildInFlight = errors.New("a build is already in progress")

// ErrInvalidRequest is returned before any network call when required input is missing.
var ErrInvalidRequest = errors.New("invalid request")

// APIError carries the status code and the server-provided message of a failed call.
// Message is the server's text verbatim.
type APIError struct {
	StatusCode int
	Message    string
	err        error
}

// NewAPIError creates an APIError. sentinel may be nil; when set, errors.Is
// matches it through the returned error.
func NewAPIError(statusCode int, message string, sentinel error) *APIError {
	return &APIError{StatusCode: statusCode, Message: message, err: sentinel}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("agent API error %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.err
}

// UserMessage returns the text to show the user for err: the server message
// when there is one, otherwise fallback.
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if err != nil && fallback == "" {
		return err.Error()
	}
	return fallback
}
