package shardqueue

import (
	"context"
	"errors"
)

// ErrNilJob is returned when a nil job or nil JobFunc is run.
var ErrNilJob = errors.New("nil job")

// Job is a unit of work executed by a ShardExecutor.
type Job interface {
	Run(ctx context.Context) error
}

// JobFunc is a helper to adapt a function to a Job.
type JobFunc func(ctx context.Context) error

// Run implements Job for JobFunc.
func (f JobFunc) Run(ctx context.Context) error {
	if f == nil {
		return ErrNilJob
	}
	return f(ctx)
}
