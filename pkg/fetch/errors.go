package fetch

import (
	"errors"
	"fmt"
)

// Common errors returned by the fetch layer.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled while
	// waiting between attempts.
	ErrContextCancelled = errors.New("context cancelled")
)

// APIError represents a classified failure of a single fetch attempt.
type APIError struct {
	StatusCode int
	Kind       FailureKind
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s error (status %d): %s: %v",
			e.Kind, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("fetch %s error (status %d): %s",
		e.Kind, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}
