package client

import (
	"context"

	"github.com/mycelian/mycelian-desk/client/internal/shardqueue"
	"github.com/mycelian/mycelian-desk/client/internal/types"
)

// executor abstracts the mutation lanes.
type executor interface {
	SubmitWait(context.Context, string, shardqueue.Job) error
	Barrier(context.Context, string) error
	Stop()
}

// WithLaneStart returns a context whose UpdateTask or DeleteTask call runs fn
// once, when the job reaches the front of the task's mutation lane. Callers
// use it to order their own bookkeeping the way the server sees the writes.
func WithLaneStart(ctx context.Context, fn func()) context.Context {
	return types.WithLaneStart(ctx, fn)
}

// LaneStarted runs ctx's lane-start hook, if any. TaskAPI implementations
// without mutation lanes call it right before sending the write.
func LaneStarted(ctx context.Context) {
	types.LaneStartOnce(ctx)()
}
