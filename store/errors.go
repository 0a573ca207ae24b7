package store

import "errors"

var (
	// ErrInFlight is returned when a delete is requested while another
	// mutation of the same task is still running.
	ErrInFlight = errors.New("another change to this task is still in progress")

	// ErrSessionClosed is returned by mutations after Logout.
	ErrSessionClosed = errors.New("session closed")
)
