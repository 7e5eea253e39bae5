package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass labels a failed attempt for logs and metrics. Every class is
// retried; the class never changes control flow.
type ErrorClass string

const (
	// ErrorClassNetwork represents transport failures and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassStatus represents non-2xx responses.
	ErrorClassStatus ErrorClass = "status"

	// ErrorClassDecode represents bodies that are not valid JSON.
	ErrorClassDecode ErrorClass = "decode"
)

// APIError is returned for a response with a non-2xx status.
type APIError struct {
	StatusCode int
	Status     string
	URL        string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("GOV.UK API error (status %d): %s", e.StatusCode, e.URL)
}

// DecodeError is returned when a response body is not valid JSON.
type DecodeError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode response from %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("decode response from %s: invalid JSON", e.URL)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// classifyError maps an attempt failure to its ErrorClass.
func classifyError(err error) ErrorClass {
	var apiErr *APIError
	var decodeErr *DecodeError
	switch {
	case errors.As(err, &apiErr):
		return ErrorClassStatus
	case errors.As(err, &decodeErr):
		return ErrorClassDecode
	default:
		return ErrorClassNetwork
	}
}
