package sink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"trade_sim/internal/domain"
	"trade_sim/internal/infra"
)

// AsyncSink decouples a slow ResultSink from the computation worker.
// Publish enqueues into a bounded buffer and waits at most timeout for room;
// a single goroutine (Run) forwards estimates to next in order.
type AsyncSink struct {
	next    domain.ResultSink
	queue   chan domain.CostEstimate
	timeout time.Duration
	metrics *infra.Metrics

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsyncSink creates an async sink in front of next.
func NewAsyncSink(next domain.ResultSink, buffer int, timeout time.Duration, metrics *infra.Metrics) *AsyncSink {
	if buffer < 1 {
		buffer = 1
	}
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	return &AsyncSink{
		next:    next,
		queue:   make(chan domain.CostEstimate, buffer),
		timeout: timeout,
		metrics: metrics,
		done:    make(chan struct{}),
	}
}

// Publish never blocks longer than the configured timeout.
func (a *AsyncSink) Publish(ctx context.Context, est domain.CostEstimate) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrSinkClosed
	}

	select {
	case a.queue <- est:
		return nil
	default:
	}

	timer := time.NewTimer(a.timeout)
	defer timer.Stop()

	select {
	case a.queue <- est:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: dropped seq %d", ErrSinkFull, est.Seq)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run forwards queued estimates until Close is called and the buffer has
// drained, or ctx is cancelled. This MUST be run in a single goroutine.
func (a *AsyncSink) Run(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case est, ok := <-a.queue:
			if !ok {
				return
			}
			if err := a.next.Publish(ctx, est); err != nil {
				a.metrics.RecordSinkError()
				slog.Warn("Downstream sink failed", slog.Uint64("seq", est.Seq), slog.Any("error", err))
			}
		}
	}
}

// Close stops accepting estimates and waits for Run to drain the buffer.
// Run must have been started.
func (a *AsyncSink) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()
	<-a.done
}
