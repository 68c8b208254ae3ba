package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"trade_sim/internal/domain"
	"trade_sim/internal/infra"
)

// Processor runs the cost pipeline for one tick.
// It is called from the dispatcher's single worker goroutine only.
type Processor interface {
	Process(ctx context.Context, tick domain.Tick, dequeuedAt time.Time)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, tick domain.Tick, dequeuedAt time.Time)

func (f ProcessorFunc) Process(ctx context.Context, tick domain.Tick, dequeuedAt time.Time) {
	f(ctx, tick, dequeuedAt)
}

// Dispatcher decouples the network read path from the cost pipeline.
// Ticks are queued FIFO in a bounded buffer; when the buffer is full the
// oldest tick is dropped so the newest market state always gets in.
// A single worker drains the queue, so ticks are processed one at a time
// in arrival order.
type Dispatcher struct {
	queue     chan domain.Tick
	processor Processor
	metrics   *infra.Metrics

	mu      sync.Mutex // Serializes producers and guards stopped
	stopped bool

	lastSeq uint64 // Owned by the Run goroutine
	started bool
}

// NewDispatcher creates a dispatcher with the given queue capacity (minimum 1).
func NewDispatcher(capacity int, processor Processor, metrics *infra.Metrics) *Dispatcher {
	if capacity < 1 {
		capacity = 1
	}
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	return &Dispatcher{
		queue:     make(chan domain.Tick, capacity),
		processor: processor,
		metrics:   metrics,
	}
}

// Capacity returns the queue bound.
func (d *Dispatcher) Capacity() int { return cap(d.queue) }

// Len returns the number of queued ticks.
func (d *Dispatcher) Len() int { return len(d.queue) }

// Enqueue hands a tick to the worker without blocking.
// When the queue is full the oldest queued tick is discarded and an error
// wrapping ErrQueueOverflow is returned; the new tick is still accepted.
// After the worker has stopped it returns ErrDispatcherStopped.
func (d *Dispatcher) Enqueue(tick domain.Tick) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return domain.ErrDispatcherStopped
	}

	var dropped []uint64
	for {
		select {
		case d.queue <- tick:
			d.metrics.SetQueueDepth(len(d.queue))
			if len(dropped) > 0 {
				return fmt.Errorf("%w: dropped seq %v", domain.ErrQueueOverflow, dropped)
			}
			return nil
		default:
		}

		// 큐가 가득 참: 가장 오래된 틱을 버린다
		select {
		case old := <-d.queue:
			dropped = append(dropped, old.Seq)
			d.metrics.RecordDrop()
			slog.Warn("⚠️ Dispatch queue full, dropping oldest tick",
				slog.Uint64("dropped_seq", old.Seq),
				slog.Uint64("incoming_seq", tick.Seq),
				slog.Int("capacity", cap(d.queue)))
		default:
			// Worker took one in between; retry the send.
		}
	}
}

// Run starts the worker loop. This MUST be run in a single goroutine.
// It returns when ctx is cancelled; ticks still queued are discarded and
// counted as dropped.
func (d *Dispatcher) Run(ctx context.Context) {
	slog.Info("Dispatcher started", slog.Int("capacity", cap(d.queue)))

	for {
		select {
		case <-ctx.Done():
			d.shutdown(0)
			return
		case tick := <-d.queue:
			if ctx.Err() != nil {
				d.shutdown(1)
				return
			}
			d.metrics.SetQueueDepth(len(d.queue))
			d.dispatch(ctx, tick)
		}
	}
}

// shutdown rejects further enqueues and drains the queue. pending counts
// ticks the worker already dequeued but did not process.
func (d *Dispatcher) shutdown(pending int) {
	d.mu.Lock()
	d.stopped = true
	discarded := pending
	for drained := false; !drained; {
		select {
		case <-d.queue:
			discarded++
		default:
			drained = true
		}
	}
	d.mu.Unlock()

	for i := 0; i < discarded; i++ {
		d.metrics.RecordDrop()
	}
	d.metrics.SetQueueDepth(0)
	slog.Info("Dispatcher stopping...", slog.Int("discarded", discarded))
}

func (d *Dispatcher) dispatch(ctx context.Context, tick domain.Tick) {
	// 1. Sequence Check: order is preserved end to end, so a regression means a bug upstream
	if d.started && tick.Seq <= d.lastSeq {
		slog.Error("SEQUENCE_REGRESSION_DETECTED",
			slog.Uint64("last_seq", d.lastSeq),
			slog.Uint64("seq", tick.Seq))
		return
	}
	d.started = true
	d.lastSeq = tick.Seq

	// 2. Processing: one bad tick must not kill the worker
	defer func() {
		if r := recover(); r != nil {
			d.metrics.RecordPipelineError()
			slog.Error("CRITICAL_PANIC_DETECTED",
				slog.Uint64("seq", tick.Seq),
				slog.String("symbol", tick.Symbol),
				slog.Any("panic", r))
		}
	}()

	d.processor.Process(ctx, tick, time.Now())
}
