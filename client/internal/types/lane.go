package types

import (
	"context"
	"sync"
)

type laneStartKey struct{}

// WithLaneStart returns a context carrying fn. A lane job built from that
// context calls fn once, on its first attempt, before the request is sent.
func WithLaneStart(ctx context.Context, fn func()) context.Context {
	if fn == nil {
		return ctx
	}
	return context.WithValue(ctx, laneStartKey{}, fn)
}

// LaneStartOnce returns a func that runs ctx's lane-start hook at most once.
// It is a no-op when ctx carries no hook.
func LaneStartOnce(ctx context.Context) func() {
	fn, _ := ctx.Value(laneStartKey{}).(func())
	if fn == nil {
		return func() {}
	}
	var once sync.Once
	return func() { once.Do(fn) }
}
