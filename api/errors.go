package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuthRequired is returned when no token is available or the server rejected it
	ErrAuthRequired = errors.New("authentication required")
	// ErrForbidden is returned when the user is authenticated but not allowed to act.
	// It matches ErrAuthRequired as well.
	ErrForbidden = fmt.Errorf("access denied: %w", ErrAuthRequired)
	// ErrNotFound is returned when the requested resource does not exist
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned for input rejected locally or by the server
	ErrValidation = errors.New("validation error")
	// ErrNetwork is returned when the server could not be reached
	ErrNetwork = errors.New("network error")
	// ErrServer is returned for any other non-2xx response
	ErrServer = errors.New("server error")
)

// Error is a non-2xx response from the API. It unwraps to one of the sentinel errors
// above so callers can match it with errors.Is.
type Error struct {
	StatusCode int
	Message    string
	kind       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v (%d): %s", e.kind, e.StatusCode, e.Message)
}

// Unwrap returns the error kind
func (e *Error) Unwrap() error {
	return e.kind
}

func kindForStatus(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return ErrAuthRequired
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrValidation
	default:
		return ErrServer
	}
}

// Validationf builds a local validation error
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Notice turns an error into the message shown to the user
func Notice(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	switch {
	case errors.Is(err, ErrForbidden):
		return "Access denied. You do not have permission to do that."
	case errors.Is(err, ErrAuthRequired):
		return "Authentication failed. Please log in again."
	case errors.Is(err, ErrNotFound):
		return "Not found. It may have been removed."
	case errors.Is(err, ErrValidation):
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return apiErr.Message
		}
		return "Please check your input and try again."
	case errors.Is(err, ErrNetwork):
		return "Network error. Please check your internet connection and server status."
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Message
	default:
		return "Server error. Please try again later."
	}
}
