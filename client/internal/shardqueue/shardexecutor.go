// Package shardqueue provides a sharded work-queue that guarantees FIFO order
// *per key* while allowing parallelism across shards. The client uses it as
// the task mutation lane: writes for one task id run one after another in the
// order they were submitted.
//
// Ordering between two goroutines that call Submit for the same key at the
// same instant is whichever enqueues first; FIFO holds from that point on.
package shardqueue

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/mycelian/mycelian-desk/client/internal/errors"
)

type queuedJob struct {
	ctx  context.Context
	job  Job
	done chan error // nil for fire-and-forget submissions
}

// ShardExecutor executes Jobs on worker goroutines partitioned by a stable hash
// of the key (e.g. a task id). FIFO ordering is preserved within a shard; jobs
// with different keys may run in parallel.
type ShardExecutor struct {
	cfg    Config
	queues []chan queuedJob

	done   chan struct{} // closed in Stop()
	closed uint32        // 0 → running, 1 → closed

	// mu is held shared across an enqueue and exclusively while Stop closes
	// done, so no job lands in a queue after its worker has drained.
	mu sync.RWMutex
	wg sync.WaitGroup
}

// NewShardExecutor constructs the executor and starts its shard workers.
func NewShardExecutor(cfg Config) *ShardExecutor {
	if cfg.Shards <= 0 {
		cfg.Shards = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 128
	}
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = 100 * time.Millisecond
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 100 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 5 * time.Second
	}

	p := &ShardExecutor{
		cfg:    cfg,
		queues: make([]chan queuedJob, cfg.Shards),
		done:   make(chan struct{}),
	}
	for i := 0; i < cfg.Shards; i++ {
		ch := make(chan queuedJob, cfg.QueueSize)
		p.queues[i] = ch
		p.wg.Add(1)
		go p.runWorker(i, ch)
	}
	return p
}

// Submit enqueues job for the shard derived from key without waiting for it.
//
//   - Returns nil on success.
//   - Returns ErrExecutorClosed if the executor is stopped.
//   - Returns ErrQueueFull (wrapped in *QueueFullError) if the shard is full
//     after EnqueueTimeout elapses.
//   - Returns ctx.Err() if the caller-provided context is cancelled first.
func (p *ShardExecutor) Submit(ctx context.Context, key string, job Job) error {
	return p.enqueue(ctx, key, queuedJob{ctx: ctx, job: job})
}

// SubmitWait enqueues job and blocks until it has run to completion
// (including retries), returning the job's final error.
func (p *ShardExecutor) SubmitWait(ctx context.Context, key string, job Job) error {
	done := make(chan error, 1)
	if err := p.enqueue(ctx, key, queuedJob{ctx: ctx, job: job, done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Barrier enqueues a no-op job on the shard for key and waits until it runs,
// ensuring all previously submitted jobs for that key have completed.
func (p *ShardExecutor) Barrier(ctx context.Context, key string) error {
	return p.SubmitWait(ctx, key, JobFunc(func(context.Context) error { return nil }))
}

func (p *ShardExecutor) enqueue(ctx context.Context, key string, qj queuedJob) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if atomic.LoadUint32(&p.closed) == 1 {
		return ErrExecutorClosed
	}
	select {
	case <-p.done:
		return ErrExecutorClosed
	default:
	}

	shard := p.shardFor(key)
	ch := p.queues[shard]

	timer := time.NewTimer(p.cfg.EnqueueTimeout)
	defer timer.Stop()

	select {
	case ch <- qj:
		submissionsTotal.WithLabelValues(labelFor(shard)).Inc()
		return nil

	case <-p.done:
		return ErrExecutorClosed

	case <-ctx.Done():
		return ctx.Err()

	case <-timer.C:
		queueFullTotal.WithLabelValues(labelFor(shard)).Inc()
		return &QueueFullError{
			Shard:    shard,
			Length:   len(ch),
			Capacity: cap(ch),
		}
	}
}

// Stop signals every worker to finish draining its current queue, waits for
// them to terminate, and then returns. It is idempotent and safe for
// concurrent use.
func (p *ShardExecutor) Stop() {
	if !atomic.CompareAndSwapUint32(&p.closed, 0, 1) {
		return
	}
	log.Debug().Int("shards", p.cfg.Shards).Msg("mutation lanes stopping")
	p.mu.Lock()
	close(p.done)
	p.mu.Unlock()
	p.wg.Wait()
	log.Debug().Msg("mutation lanes drained")
}

// Close lets ShardExecutor satisfy io.Closer.
func (p *ShardExecutor) Close() error {
	p.Stop()
	return nil
}

// ------------------------- internals -------------------------

func (p *ShardExecutor) runWorker(idx int, ch <-chan queuedJob) {
	defer p.wg.Done()
	label := labelFor(idx)

	for {
		select {
		case qj := <-ch:
			p.execute(label, qj)
			queueDepth.WithLabelValues(label).Set(float64(len(ch)))

		case <-p.done:
			// Drain remaining jobs once, preserving FIFO, then exit.
			drained := 0
			for {
				select {
				case qj := <-ch:
					finish(qj, p.runOnce(qj))
					drained++
				default:
					if drained > 0 {
						log.Debug().Int("lane", idx).Int("drained", drained).Msg("mutation lane drained on stop")
					}
					queueDepth.WithLabelValues(label).Set(0)
					return
				}
			}
		}
	}
}

// execute runs one job with retry for recoverable errors and reports the
// final outcome to the waiter, if any.
func (p *ShardExecutor) execute(label string, qj queuedJob) {
	if qj.job == nil {
		finish(qj, ErrNilJob)
		return
	}
	// Honour caller context so a cancelled job doesn't stall the shard.
	if err := qj.ctx.Err(); err != nil {
		p.safeHandleError(err)
		finish(qj, err)
		return
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.cfg.BaseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = p.cfg.MaxInterval
	exp.Reset()

	var err error
	for attempt := 1; ; attempt++ {
		start := time.Now()
		err = p.runOnce(qj)
		runDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())

		if err == nil || errors.IsIrrecoverable(err) || attempt >= p.cfg.MaxAttempts {
			break
		}

		retriesTotal.WithLabelValues(label).Inc()
		wait := exp.NextBackOff()
		log.Debug().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("retrying mutation")
		select {
		case <-time.After(wait):
			continue
		case <-p.done:
		case <-qj.ctx.Done():
			err = qj.ctx.Err()
		}
		break
	}
	if err != nil {
		p.safeHandleError(err)
	}
	finish(qj, err)
}

// runOnce protects the worker from a panicking job.
func (p *ShardExecutor) runOnce(qj queuedJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("mutation job panic")
			err = &panicError{value: r}
		}
	}()
	if qj.job == nil {
		return ErrNilJob
	}
	return qj.job.Run(qj.ctx)
}

func finish(qj queuedJob, err error) {
	if qj.done != nil {
		qj.done <- err
	}
}

func (p *ShardExecutor) safeHandleError(err error) {
	if err == nil || p.cfg.ErrorHandler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("mutation lane error handler panic")
		}
	}()
	p.cfg.ErrorHandler(err)
}

func (p *ShardExecutor) shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(p.cfg.Shards))
}
