package jobs

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/factura-labs/invoice-pipeline/internal/state"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnqueueBackpressureAllowsConcurrentProducers(t *testing.T) {
	var processed atomic.Int32
	gate := make(chan struct{})
	q := newQueue(func(_ context.Context, _ state.PipelineState) {
		<-gate
		processed.Add(1)
	}, discardLogger(), WithWorkers(1), WithQueueSize(1))

	// With the worker gated and a one-slot buffer, most of these producers
	// block in the backpressure send. They must all be able to wait at the
	// same time and all complete once the worker drains.
	const jobCount = 5
	var wg sync.WaitGroup
	for i := 0; i < jobCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue(state.New(uuid.New(), "/tmp/f.pdf", "f.pdf", 0))
		}()
	}

	close(gate)
	wg.Wait()
	require.Eventually(t, func() bool {
		return processed.Load() == jobCount
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q.Shutdown(ctx)
}

func TestEnqueueAfterShutdownIsNoop(t *testing.T) {
	q := newQueue(func(_ context.Context, _ state.PipelineState) {}, discardLogger(), WithWorkers(1))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q.Shutdown(ctx)

	// Must neither panic (send on closed channel) nor block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		q.Enqueue(state.New(uuid.New(), "/tmp/f.pdf", "f.pdf", 0))
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue after shutdown blocked")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	q := newQueue(func(_ context.Context, _ state.PipelineState) {}, discardLogger())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q.Shutdown(ctx)
	q.Shutdown(ctx)
}
