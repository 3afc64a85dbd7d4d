package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/factura-labs/invoice-pipeline/internal/state"
)

// processFunc runs one job to completion or failure.
type processFunc func(ctx context.Context, st state.PipelineState)

// Queue dispatches submitted jobs onto a bounded worker pool. Submission
// never blocks the HTTP request path unless the queue is full, in which
// case backpressure applies.
type Queue struct {
	process processFunc
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan state.PipelineState
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

func WithWorkers(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan state.PipelineState, n)
		}
	}
}

func WithJobTimeout(d time.Duration) QueueOption {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func newQueue(process processFunc, logger *slog.Logger, opts ...QueueOption) *Queue {
	q := &Queue{
		process: process,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan state.PipelineState, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for st := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					q.process(ctx, st)
					cancel()
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue schedules a job for background processing. The read lock lets
// producers block on a full queue concurrently: one stalled submission
// must not serialize the others.
func (q *Queue) Enqueue(st state.PipelineState) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "job_id", st.JobID)
		return
	}
	select {
	case q.ch <- st:
		q.logger.Info("queued job", "job_id", st.JobID, "filename", st.DocumentInfo.Filename)
	default:
		q.logger.Warn("queue full, applying backpressure", "job_id", st.JobID)
		q.ch <- st
	}
}

// Shutdown stops intake and waits for in-flight jobs, bounded by ctx.
// The write lock waits out any producer still blocked in Enqueue, so the
// channel is never closed under a pending send.
func (q *Queue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
