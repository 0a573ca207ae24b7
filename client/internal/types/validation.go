package types

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mycelian/mycelian-desk/client/internal/shardqueue"
)

// ------------------------------
// Shared Interfaces
// ------------------------------

// Executor serializes jobs per key (used by the task mutation lane).
type Executor interface {
	SubmitWait(context.Context, string, shardqueue.Job) error
	Barrier(context.Context, string) error
}

// HTTPClient interface for dependency injection
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ------------------------------
// Shared Errors
// ------------------------------

var (
	// ErrMissingID is returned before any network call when an identifier is empty.
	ErrMissingID = errors.New("missing identifier")
	// ErrContentRequired is returned when a memo has no content.
	ErrContentRequired = errors.New("memo content is required")
	// ErrInvalidDuration is returned for a non-positive snooze duration.
	ErrInvalidDuration = errors.New("snooze duration must be positive")
)

// ValidateIDPresent returns ErrMissingID wrapped with the field name when id is blank.
func ValidateIDPresent(id, field string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%s: %w", field, ErrMissingID)
	}
	return nil
}
