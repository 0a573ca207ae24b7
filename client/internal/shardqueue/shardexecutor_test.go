package shardqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	clienterrors "github.com/mycelian/mycelian-desk/client/internal/errors"
)

type noopJob struct{}

func (n noopJob) Run(ctx context.Context) error { return nil }

func TestShardExecutor_SubmitAndStop(t *testing.T) {
	t.Parallel()
	exec := NewShardExecutor(Config{})
	defer exec.Stop()

	if err := exec.Submit(context.Background(), "k1", noopJob{}); err != nil {
		t.Fatalf("submit error: %v", err)
	}
}

func TestShardExecutor_QueueFull(t *testing.T) {
	t.Parallel()
	exec := NewShardExecutor(Config{QueueSize: 1, Shards: 1, EnqueueTimeout: 10 * time.Millisecond})
	defer exec.Stop()

	blockCtx, cancel := context.WithCancel(context.Background())
	var started int32
	_ = exec.Submit(context.Background(), "same", JobFunc(func(ctx context.Context) error {
		atomic.StoreInt32(&started, 1)
		<-blockCtx.Done()
		return nil
	}))
	for atomic.LoadInt32(&started) == 0 {
		time.Sleep(time.Millisecond)
	}

	_ = exec.Submit(context.Background(), "same", noopJob{})
	err := exec.Submit(context.Background(), "same", noopJob{})
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected queue full error, got %v", err)
	}
	cancel()
}

// FIFO ordering for a single key.
func TestShardExecutor_FIFOOrdering(t *testing.T) {
	p := NewShardExecutor(Config{Shards: 4, QueueSize: 10})
	defer p.Stop()

	var (
		mu    sync.Mutex
		order []int
	)
	for i := 0; i < 5; i++ {
		v := i
		if err := p.Submit(context.Background(), "task-1", JobFunc(func(ctx context.Context) error {
			mu.Lock()
			order = append(order, v)
			mu.Unlock()
			return nil
		})); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}
	if err := p.Barrier(context.Background(), "task-1"); err != nil {
		t.Fatalf("barrier: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 5 {
		t.Fatalf("expected 5 jobs, got %v", order)
	}
	for i, v := range order {
		if i != v {
			t.Fatalf("expected FIFO order, got %v", order)
		}
	}
}

// Jobs for different keys run in parallel (no head-of-line blocking).
func TestShardExecutor_ParallelDifferentKeys(t *testing.T) {
	p := NewShardExecutor(Config{Shards: 4, QueueSize: 10})
	defer p.Stop()

	// Find two keys that hash to different shards.
	a, b := "A", "B"
	for i := 0; p.shardFor(a) == p.shardFor(b); i++ {
		b = string(rune('C' + i))
	}

	start := make(chan struct{})
	done := make(chan struct{})
	_ = p.Submit(context.Background(), a, JobFunc(func(context.Context) error {
		<-start
		close(done)
		return nil
	}))
	_ = p.Submit(context.Background(), b, JobFunc(func(context.Context) error {
		close(start)
		return nil
	}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("jobs blocked each other; expected parallelism")
	}
}

func TestShardExecutor_SerialExecutionSameKey(t *testing.T) {
	const N = 100
	p := NewShardExecutor(Config{Shards: 4, QueueSize: N})
	defer p.Stop()

	var inFlight, overlap int32
	for i := 0; i < N; i++ {
		_ = p.Submit(context.Background(), "X", JobFunc(func(context.Context) error {
			if atomic.AddInt32(&inFlight, 1) > 1 {
				atomic.StoreInt32(&overlap, 1)
			}
			time.Sleep(50 * time.Microsecond)
			atomic.AddInt32(&inFlight, -1)
			return nil
		}))
	}
	if err := p.Barrier(context.Background(), "X"); err != nil {
		t.Fatalf("barrier: %v", err)
	}
	if atomic.LoadInt32(&overlap) == 1 {
		t.Fatal("detected overlapping execution for same key")
	}
}

func TestShardExecutor_SubmitAfterStop(t *testing.T) {
	p := NewShardExecutor(Config{Shards: 2, QueueSize: 2})
	p.Stop()
	p.Stop()

	if err := p.Submit(context.Background(), "Z", noopJob{}); !errors.Is(err, ErrExecutorClosed) {
		t.Fatalf("expected ErrExecutorClosed, got %v", err)
	}
	if err := p.SubmitWait(context.Background(), "Z", noopJob{}); !errors.Is(err, ErrExecutorClosed) {
		t.Fatalf("expected ErrExecutorClosed from SubmitWait, got %v", err)
	}
}

func TestShardExecutor_StopSubmit_RaceFree(t *testing.T) {
	p := NewShardExecutor(Config{Shards: 4, QueueSize: 32})

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Submit(context.Background(), "k", noopJob{})
		}()
	}
	go p.Stop()
	wg.Wait()
}

func TestSubmitWait_StopRaceNeverStrandsWaiter(t *testing.T) {
	for round := 0; round < 20; round++ {
		p := NewShardExecutor(Config{Shards: 2, QueueSize: 64})

		var ran, accepted int32
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := p.SubmitWait(context.Background(), "task-1", JobFunc(func(context.Context) error {
					atomic.AddInt32(&ran, 1)
					return nil
				}))
				if err == nil {
					atomic.AddInt32(&accepted, 1)
				}
			}()
		}
		go p.Stop()

		finished := make(chan struct{})
		go func() { wg.Wait(); close(finished) }()
		select {
		case <-finished:
		case <-time.After(5 * time.Second):
			t.Fatalf("round %d: SubmitWait still blocked after Stop", round)
		}
		p.Stop()
		if got, want := atomic.LoadInt32(&ran), atomic.LoadInt32(&accepted); got != want {
			t.Fatalf("round %d: %d jobs ran but %d waiters saw success", round, got, want)
		}
	}
}

func TestSubmitWait_ReturnsJobError(t *testing.T) {
	p := NewShardExecutor(Config{Shards: 1, MaxAttempts: 1})
	defer p.Stop()

	sentinel := errors.New("boom")
	err := p.SubmitWait(context.Background(), "k", JobFunc(func(context.Context) error { return sentinel }))
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
}

func TestSubmitWait_RetriesRecoverable(t *testing.T) {
	p := NewShardExecutor(Config{Shards: 1, MaxAttempts: 3, BaseBackoff: 5 * time.Millisecond})
	defer p.Stop()

	var attempts int32
	err := p.SubmitWait(context.Background(), "k", JobFunc(func(ctx context.Context) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return clienterrors.NewHTTPError(503, "", "update task")
		}
		return nil
	}))
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestSubmitWait_IrrecoverableFailsFast(t *testing.T) {
	p := NewShardExecutor(Config{Shards: 1, MaxAttempts: 5, BaseBackoff: 5 * time.Millisecond})
	defer p.Stop()

	var attempts int32
	err := p.SubmitWait(context.Background(), "k", JobFunc(func(ctx context.Context) error {
		atomic.AddInt32(&attempts, 1)
		return clienterrors.NewHTTPError(403, "", "update task")
	}))
	if !clienterrors.IsKind(err, clienterrors.KindUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestSubmitWait_PanicBecomesError(t *testing.T) {
	p := NewShardExecutor(Config{Shards: 1, MaxAttempts: 1})
	defer p.Stop()

	err := p.SubmitWait(context.Background(), "k", JobFunc(func(context.Context) error { panic("kaboom") }))
	if err == nil {
		t.Fatal("expected error from panicking job")
	}
	// worker must survive the panic
	if err := p.Barrier(context.Background(), "k"); err != nil {
		t.Fatalf("worker did not survive panic: %v", err)
	}
}

func TestCanceledJobSkipsRun(t *testing.T) {
	p := NewShardExecutor(Config{Shards: 1})
	defer p.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var ran int32
	_ = p.Submit(context.Background(), "k", JobFunc(func(context.Context) error { return nil }))
	qj := queuedJob{ctx: ctx, job: JobFunc(func(context.Context) error {
		atomic.StoreInt32(&ran, 1)
		return nil
	}), done: make(chan error, 1)}
	p.execute("0", qj)
	if err := <-qj.done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if atomic.LoadInt32(&ran) != 0 {
		t.Fatal("cancelled job must not run")
	}
}

func TestErrorHandler_CalledOnceWithFinalError(t *testing.T) {
	var calls int32
	cfg := Config{Shards: 1, MaxAttempts: 2, BaseBackoff: time.Millisecond}
	cfg.ErrorHandler = func(err error) { atomic.AddInt32(&calls, 1) }
	p := NewShardExecutor(cfg)
	defer p.Stop()

	_ = p.SubmitWait(context.Background(), "k", JobFunc(func(context.Context) error {
		return errors.New("still failing")
	}))
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected handler called once, got %d", got)
	}
}

func TestQueueFullError_ErrorAndIs(t *testing.T) {
	e := &QueueFullError{Shard: 3, Length: 10, Capacity: 16}
	if e.Error() == "" {
		t.Fatal("empty error string")
	}
	if !errors.Is(e, ErrQueueFull) || errors.Is(e, ErrExecutorClosed) {
		t.Fatal("unexpected errors.Is behaviour")
	}
}

func TestJobFunc_NilGuard(t *testing.T) {
	var jf JobFunc
	if err := jf.Run(context.Background()); !errors.Is(err, ErrNilJob) {
		t.Fatalf("expected ErrNilJob, got %v", err)
	}
}
