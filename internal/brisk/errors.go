package brisk

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport wraps DNS, connect, and read failures
	ErrTransport = errors.New("transport failure")

	// ErrDecode is returned when a response body is not a valid envelope
	ErrDecode = errors.New("invalid response body")
)

// HTTPStatusError is returned for any non-2xx response
type HTTPStatusError struct {
	Code int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d", e.Code)
}

// APIError is a failure reported by the vendor on a state query
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("vendor error %s", e.Code)
	}
	return fmt.Sprintf("vendor error %s: %s", e.Code, e.Message)
}

// RejectedError is returned when the vendor refuses a valve command
type RejectedError struct {
	Code    string
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("valve command rejected (resCode %s): %s", e.Code, e.Message)
}
