package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/mycelian/mycelian-desk/client/internal/shardqueue"
)

// errRT is an http.RoundTripper that always returns an error (simulates network failure).
type errRT struct{}

func (e *errRT) RoundTrip(*http.Request) (*http.Response, error) { return nil, fmt.Errorf("boom") }

// mockExec records submitted keys and runs jobs inline.
type mockExec struct {
	mu       sync.Mutex
	calls    []string
	barriers []string
}

func (m *mockExec) SubmitWait(ctx context.Context, key string, job shardqueue.Job) error {
	m.mu.Lock()
	m.calls = append(m.calls, key)
	m.mu.Unlock()
	return job.Run(ctx)
}

func (m *mockExec) Barrier(ctx context.Context, key string) error {
	m.mu.Lock()
	m.barriers = append(m.barriers, key)
	m.mu.Unlock()
	return nil
}

// retryExec runs a job inline up to attempts times until it succeeds.
type retryExec struct{ attempts int }

func (r *retryExec) SubmitWait(ctx context.Context, _ string, job shardqueue.Job) error {
	var err error
	for i := 0; i < r.attempts; i++ {
		if err = job.Run(ctx); err == nil {
			return nil
		}
	}
	return err
}

func (r *retryExec) Barrier(context.Context, string) error { return nil }

// failingExec always fails submission.
type failingExec struct{}

func (f *failingExec) SubmitWait(context.Context, string, shardqueue.Job) error {
	return fmt.Errorf("submit failed")
}

func (f *failingExec) Barrier(context.Context, string) error { return fmt.Errorf("barrier failed") }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
