package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ClassifyHTTPError builds a classified error from a non-success response.
// 4xx client errors (except 408 and 429) are irrecoverable, 5xx are
// recoverable. The body is parsed as {message, errors[]} when possible.
func ClassifyHTTPError(statusCode int, body string, underlyingErr error) *ClassifiedError {
	ce := &ClassifiedError{
		Category:   getHTTPErrorCategory(statusCode),
		Kind:       getHTTPErrorKind(statusCode),
		StatusCode: statusCode,
		Body:       body,
		Underlying: underlyingErr,
	}

	var parsed struct {
		Message string       `json:"message"`
		Errors  []FieldError `json:"errors"`
	}
	if body != "" && json.Unmarshal([]byte(body), &parsed) == nil {
		ce.Message = parsed.Message
		ce.FieldErrors = parsed.Errors
	}
	if len(ce.FieldErrors) > 0 && statusCode >= 400 && statusCode < 500 {
		ce.Kind = KindValidation
	}
	return ce
}

// getHTTPErrorCategory maps HTTP status codes to error categories.
func getHTTPErrorCategory(statusCode int) ErrorCategory {
	switch {
	case statusCode >= 400 && statusCode < 500:
		switch statusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests:
			return Recoverable
		default:
			return Irrecoverable
		}
	case statusCode >= 500 && statusCode < 600:
		return Recoverable
	default:
		// Unexpected status codes - be conservative and retry
		return Recoverable
	}
}

func getHTTPErrorKind(statusCode int) Kind {
	switch statusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusUnauthorized:
		return KindUnauthenticated
	case http.StatusForbidden:
		return KindUnauthorized
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	default:
		return KindServer
	}
}

// NewHTTPError creates a classified error for HTTP failures.
func NewHTTPError(statusCode int, body string, operation string) *ClassifiedError {
	underlyingErr := fmt.Errorf("%s failed: HTTP %d", operation, statusCode)
	return ClassifyHTTPError(statusCode, body, underlyingErr)
}

// NewNetworkError creates a classified error for network-level failures.
// Network errors are always recoverable as they may be transient.
func NewNetworkError(operation string, err error) *ClassifiedError {
	return &ClassifiedError{
		Category:   Recoverable,
		Kind:       KindNetwork,
		Underlying: fmt.Errorf("%s network error: %w", operation, err),
	}
}
