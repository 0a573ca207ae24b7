package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mycelian/mycelian-desk/client/internal/shardqueue"
	"github.com/mycelian/mycelian-desk/devmode"
	"golang.org/x/oauth2"
)

type stubExec struct{ stops int }

func (s *stubExec) SubmitWait(ctx context.Context, _ string, job shardqueue.Job) error {
	return job.Run(ctx)
}
func (s *stubExec) Barrier(context.Context, string) error { return nil }
func (s *stubExec) Stop()                                 { s.stops++ }

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	if _, err := New("", "tok"); err == nil {
		t.Fatal("expected error for empty baseURL")
	}
	if _, err := New("http://example.com", ""); err == nil {
		t.Fatal("expected error for missing token")
	}
	c, err := New("http://example.com/", "tok")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = c.Close() }()
	if c.BaseURL() != "http://example.com" {
		t.Fatalf("trailing slash not trimmed: %s", c.BaseURL())
	}
}

func TestCloseIdempotent(t *testing.T) {
	t.Parallel()
	s := &stubExec{}
	c := &Client{exec: s}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if s.stops != 1 {
		t.Fatalf("executor stop called %d times", s.stops)
	}
}

func TestBearerHeaderOnEveryRequest(t *testing.T) {
	t.Parallel()
	var (
		mu      sync.Mutex
		headers []string
		reqIDs  []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		headers = append(headers, r.Header.Get("Authorization"))
		reqIDs = append(reqIDs, r.Header.Get("X-Request-ID"))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodPatch:
			_ = json.NewEncoder(w).Encode(Task{ID: "t1", Status: StatusBlocked})
		default:
			_, _ = w.Write([]byte("[]"))
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL, "secret-token")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = c.Close() }()

	ctx := context.Background()
	if _, err := c.ListTasks(ctx, TaskFilter{}); err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if _, err := c.ListMemos(ctx); err != nil {
		t.Fatalf("ListMemos: %v", err)
	}
	st := StatusBlocked
	if _, err := c.UpdateTask(ctx, "t1", UpdateTaskRequest{Status: &st}); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(headers) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(headers))
	}
	for i, h := range headers {
		if h != "Bearer secret-token" {
			t.Fatalf("request %d: unexpected Authorization %q", i, h)
		}
		if reqIDs[i] == "" {
			t.Fatalf("request %d: missing X-Request-ID", i)
		}
	}
}

type countingSource struct{ n int32 }

func (s *countingSource) Token() (*oauth2.Token, error) {
	atomic.AddInt32(&s.n, 1)
	return &oauth2.Token{AccessToken: "rotating", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}, nil
}

func TestWithTokenSource(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer rotating" {
			t.Errorf("unexpected Authorization %q", got)
		}
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	src := &countingSource{}
	c, err := New(srv.URL, "", WithTokenSource(src))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = c.Close() }()

	for i := 0; i < 3; i++ {
		if _, err := c.ListUsers(context.Background()); err != nil {
			t.Fatalf("ListUsers: %v", err)
		}
	}
	if n := atomic.LoadInt32(&src.n); n != 1 {
		t.Fatalf("expected token to be reused, source called %d times", n)
	}
}

func TestNewWithDevMode(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer "+devmode.Token {
			t.Errorf("unexpected Authorization %q", got)
		}
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c, err := NewWithDevMode(srv.URL)
	if err != nil {
		t.Fatalf("NewWithDevMode: %v", err)
	}
	defer func() { _ = c.Close() }()
	if _, err := c.ListUsers(context.Background()); err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
}

func TestErrorPredicates(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tasks/expired":
			w.WriteHeader(http.StatusUnauthorized)
		case "/tasks/locked":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"Validation failed","errors":[{"field":"title","message":"too long"}]}`))
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL, "tok", WithExecutorConfig(shardqueue.Config{MaxAttempts: 1}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = c.Close() }()

	ctx := context.Background()
	_, err = c.UpdateTask(ctx, "expired", UpdateTaskRequest{})
	if !IsUnauthenticated(err) || IsUnauthorized(err) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	_, err = c.UpdateTask(ctx, "locked", UpdateTaskRequest{})
	if !IsUnauthorized(err) || IsUnauthenticated(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	_, err = c.UpdateTask(ctx, "other", UpdateTaskRequest{})
	if !IsValidation(err) {
		t.Fatalf("expected validation, got %v", err)
	}
	if fe := FieldErrors(err); len(fe) != 1 || fe[0].Field != "title" {
		t.Fatalf("unexpected field errors %+v", fe)
	}
	if _, ok := AsAPIError(err); !ok {
		t.Fatal("expected *APIError in chain")
	}
	if _, err := c.UpdateTask(ctx, "", UpdateTaskRequest{}); !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
}

func TestUpdateTask_RetriesServerErrors(t *testing.T) {
	t.Parallel()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(Task{ID: "t1", Priority: PriorityHigh})
	}))
	defer srv.Close()

	c, err := New(srv.URL, "tok", WithExecutorConfig(shardqueue.Config{MaxAttempts: 3, BaseBackoff: time.Millisecond}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = c.Close() }()

	p := PriorityHigh
	got, err := c.UpdateTask(context.Background(), "t1", UpdateTaskRequest{Priority: &p})
	if err != nil || got.Priority != PriorityHigh {
		t.Fatalf("UpdateTask unexpected: got=%+v err=%v", got, err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected one retry, got %d calls", calls)
	}
}

func TestIsBackPressure(t *testing.T) {
	t.Parallel()
	if !IsBackPressure(&shardqueue.QueueFullError{Shard: 1}) {
		t.Fatal("expected back pressure")
	}
	if IsBackPressure(errors.New("other")) {
		t.Fatal("unexpected back pressure detection")
	}
}
