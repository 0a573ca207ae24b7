// Package logger provides configured zerolog loggers.
package logger

import (
	"io"
	"os"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	zpkgerrors "github.com/rs/zerolog/pkgerrors"
)

type stackTracer interface{ StackTrace() pkgerrors.StackTrace }

// New returns a JSON logger on stdout tagged with serviceName.
// Call sites should use .Stack() on error events to include stacks.
func New(serviceName string) zerolog.Logger {
	return NewWithWriter(serviceName, os.Stdout)
}

// NewWithWriter is New writing to w.
func NewWithWriter(serviceName string, w io.Writer) zerolog.Logger {
	installStackMarshalers()
	return zerolog.New(w).With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}

// NewConsole returns a human-readable logger on stderr for interactive
// commands. stdout stays free for command output.
func NewConsole(serviceName string, level zerolog.Level) zerolog.Logger {
	installStackMarshalers()
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(out).Level(level).With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}

// installStackMarshalers makes .Stack() work for plain errors by attaching a
// pkg/errors stack when one is missing.
func installStackMarshalers() {
	zerolog.ErrorStackMarshaler = func(err error) interface{} {
		if _, ok := err.(stackTracer); !ok {
			err = pkgerrors.WithStack(err)
		}
		return zpkgerrors.MarshalStack(err)
	}
	zerolog.ErrorMarshalFunc = func(err error) interface{} {
		if _, ok := err.(stackTracer); ok {
			return err
		}
		return pkgerrors.WithStack(err)
	}
}
