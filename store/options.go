package store

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type options struct {
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

// Option configures a store or session.
type Option func(*options)

// WithNotifier routes user-visible notifications to n.
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock overrides time.Now for display-state evaluation.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{notifier: discardNotifier{}, logger: log.Logger, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
