package client

import (
	"errors"

	clienterrors "github.com/mycelian/mycelian-desk/client/internal/errors"
	"github.com/mycelian/mycelian-desk/client/internal/shardqueue"
	"github.com/mycelian/mycelian-desk/client/internal/types"
)

// APIError is the classified error returned for failed HTTP calls.
type APIError = clienterrors.ClassifiedError

// ErrorKind is the taxonomy of an APIError.
type ErrorKind = clienterrors.Kind

const (
	KindValidation      = clienterrors.KindValidation
	KindUnauthenticated = clienterrors.KindUnauthenticated
	KindUnauthorized    = clienterrors.KindUnauthorized
	KindNotFound        = clienterrors.KindNotFound
	KindConflict        = clienterrors.KindConflict
	KindServer          = clienterrors.KindServer
	KindNetwork         = clienterrors.KindNetwork
)

// Local validation errors, returned before any network call.
var (
	ErrMissingID       = types.ErrMissingID
	ErrContentRequired = types.ErrContentRequired
	ErrInvalidDuration = types.ErrInvalidDuration
)

// ErrBackPressure is matched by errors returned when a mutation lane is full.
var ErrBackPressure = shardqueue.ErrQueueFull

// IsBackPressure reports whether err is a back-pressure error.
func IsBackPressure(err error) bool { return errors.Is(err, ErrBackPressure) }

// AsAPIError extracts the classified error from err's chain.
func AsAPIError(err error) (*APIError, bool) { return clienterrors.As(err) }

// IsUnauthenticated reports a 401: the session expired and the user must log in again.
func IsUnauthenticated(err error) bool { return clienterrors.IsKind(err, KindUnauthenticated) }

// IsUnauthorized reports a 403: the user lacks permission.
func IsUnauthorized(err error) bool { return clienterrors.IsKind(err, KindUnauthorized) }

// IsNotFound reports a 404.
func IsNotFound(err error) bool { return clienterrors.IsKind(err, KindNotFound) }

// IsValidation reports a server-side validation failure.
func IsValidation(err error) bool { return clienterrors.IsKind(err, KindValidation) }

// FieldErrors returns the field-level messages carried by err, if any.
func FieldErrors(err error) []FieldError {
	if ce, ok := clienterrors.As(err); ok {
		return ce.FieldErrors
	}
	return nil
}

// NewAPIError classifies an HTTP failure the same way the client does.
// Useful for fakes that stand in for the client.
func NewAPIError(statusCode int, body, op string) *APIError {
	return clienterrors.NewHTTPError(statusCode, body, op)
}
