// Package errors provides error classification for the client SDK.
// Category drives the retry policy; Kind drives user-facing guidance.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory determines how errors should be handled by retry logic.
type ErrorCategory int

const (
	// Recoverable errors should be retried with exponential backoff.
	// Examples: 500 Internal Server Error, network timeouts, connection failures.
	Recoverable ErrorCategory = iota

	// Irrecoverable errors should fail immediately without retry.
	// Examples: 401 Unauthorized, 403 Forbidden, 400 Bad Request.
	Irrecoverable
)

// String returns a human-readable representation of the error category.
func (c ErrorCategory) String() string {
	switch c {
	case Recoverable:
		return "Recoverable"
	case Irrecoverable:
		return "Irrecoverable"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// Kind is the taxonomy callers branch on when presenting an error.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindUnauthenticated Kind = "unauthenticated"
	KindUnauthorized    Kind = "unauthorized"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindServer          Kind = "server"
	KindNetwork         Kind = "network"
)

// FieldError is one field-level validation message returned by the backend.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ClassifiedError wraps an error with categorization metadata.
type ClassifiedError struct {
	Category    ErrorCategory
	Kind        Kind
	StatusCode  int          // HTTP status code (0 for non-HTTP errors)
	Message     string       // server supplied message, if any
	FieldErrors []FieldError // populated for validation failures
	Body        string       // raw response body for debugging
	Underlying  error
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	msg := e.Message
	if msg == "" && e.Underlying != nil {
		msg = e.Underlying.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("[%s] HTTP %d: %s", e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, msg)
}

// Unwrap returns the underlying error for error chain compatibility.
func (e *ClassifiedError) Unwrap() error {
	return e.Underlying
}

// As extracts a *ClassifiedError from anywhere in err's chain.
func As(err error) (*ClassifiedError, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsIrrecoverable returns true if the error should not be retried.
func IsIrrecoverable(err error) bool {
	if ce, ok := As(err); ok {
		return ce.Category == Irrecoverable
	}
	return false
}

// IsKind reports whether err is a classified error of kind k.
func IsKind(err error, k Kind) bool {
	if ce, ok := As(err); ok {
		return ce.Kind == k
	}
	return false
}
