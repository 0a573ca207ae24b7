package store

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mycelian/mycelian-desk/client"
)

// Level is the severity of a Notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

// Notification is a user-visible message emitted by a store operation.
type Notification struct {
	Level   Level
	Op      string
	Field   string // set for field-level validation messages
	Message string
}

func (n Notification) String() string {
	if n.Field != "" {
		return fmt.Sprintf("%s: %s", n.Field, n.Message)
	}
	return n.Message
}

// Notifier receives notifications. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// LogNotifier writes notifications to a zerolog logger.
type LogNotifier struct{ Log zerolog.Logger }

func (l LogNotifier) Notify(n Notification) {
	ev := l.Log.Info()
	if n.Level == LevelError {
		ev = l.Log.Warn()
	}
	ev = ev.Str("op", n.Op).Str("level", string(n.Level))
	if n.Field != "" {
		ev = ev.Str("field", n.Field)
	}
	ev.Msg(n.Message)
}

var (
	sessionExpiredMessage = "Your session has expired, please log in again"
	permissionMessage     = "You do not have permission to %s"
)

// notifyError turns err into one or more error notifications. Validation
// failures yield one notification per field error.
func notifyError(n Notifier, op string, err error) {
	if err == nil {
		return
	}
	switch {
	case client.IsUnauthenticated(err):
		n.Notify(Notification{Level: LevelError, Op: op, Message: sessionExpiredMessage})
	case client.IsUnauthorized(err):
		n.Notify(Notification{Level: LevelError, Op: op, Message: fmt.Sprintf(permissionMessage, op)})
	case client.IsValidation(err) && len(client.FieldErrors(err)) > 0:
		for _, fe := range client.FieldErrors(err) {
			n.Notify(Notification{Level: LevelError, Op: op, Field: fe.Field, Message: fe.Message})
		}
	default:
		n.Notify(Notification{Level: LevelError, Op: op, Message: errorMessage(op, err)})
	}
}

func errorMessage(op string, err error) string {
	if errors.Is(err, client.ErrMissingID) || errors.Is(err, client.ErrContentRequired) ||
		errors.Is(err, client.ErrInvalidDuration) || errors.Is(err, ErrInFlight) || errors.Is(err, ErrSessionClosed) {
		return err.Error()
	}
	if ae, ok := client.AsAPIError(err); ok && ae.Message != "" {
		return fmt.Sprintf("Failed to %s: %s", op, ae.Message)
	}
	return fmt.Sprintf("Failed to %s", op)
}

func notifySuccess(n Notifier, op, msg string) {
	n.Notify(Notification{Level: LevelSuccess, Op: op, Message: msg})
}

type discardNotifier struct{}

func (discardNotifier) Notify(Notification) {}
