package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trade_sim/internal/domain"
	"trade_sim/internal/infra"
)

type collector struct {
	mu   sync.Mutex
	seqs []uint64
	done chan struct{}
	want int
}

func newCollector(want int) *collector {
	return &collector{done: make(chan struct{}), want: want}
}

func (c *collector) Process(_ context.Context, tick domain.Tick, _ time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seqs = append(c.seqs, tick.Seq)
	if len(c.seqs) == c.want {
		close(c.done)
	}
}

func (c *collector) got() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint64(nil), c.seqs...)
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for worker")
	}
}

func TestDispatcher_PreservesOrder(t *testing.T) {
	c := newCollector(3)
	d := NewDispatcher(8, c, &infra.Metrics{})

	for seq := uint64(1); seq <= 3; seq++ {
		if err := d.Enqueue(domain.Tick{Seq: seq}); err != nil {
			t.Fatalf("Enqueue(%d) failed: %v", seq, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	waitFor(t, c.done)
	got := c.got()
	for i, seq := range []uint64{1, 2, 3} {
		if got[i] != seq {
			t.Fatalf("processed %v, want [1 2 3]", got)
		}
	}
}

func TestDispatcher_DropsOldestWhenFull(t *testing.T) {
	m := &infra.Metrics{}
	c := newCollector(1)
	d := NewDispatcher(1, c, m)

	if err := d.Enqueue(domain.Tick{Seq: 1}); err != nil {
		t.Fatalf("first Enqueue failed: %v", err)
	}
	err := d.Enqueue(domain.Tick{Seq: 2})
	if !errors.Is(err, domain.ErrQueueOverflow) {
		t.Fatalf("second Enqueue error = %v, want ErrQueueOverflow", err)
	}
	if d.Len() != 1 {
		t.Fatalf("queue length = %d, want 1", d.Len())
	}
	if m.Snapshot().TicksDropped != 1 {
		t.Error("drop not recorded")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	waitFor(t, c.done)
	if got := c.got(); got[0] != 2 {
		t.Errorf("processed seq %d, want the latest (2)", got[0])
	}
}

func TestDispatcher_StopsOnCancel(t *testing.T) {
	d := NewDispatcher(4, newCollector(-1), &infra.Metrics{})

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(finished)
	}()

	cancel()
	waitFor(t, finished)

	if err := d.Enqueue(domain.Tick{Seq: 1}); !errors.Is(err, domain.ErrDispatcherStopped) {
		t.Errorf("Enqueue after stop = %v, want ErrDispatcherStopped", err)
	}
}

func TestDispatcher_CountsTicksDiscardedOnShutdown(t *testing.T) {
	m := &infra.Metrics{}
	c := newCollector(-1)
	d := NewDispatcher(8, c, m)

	for seq := uint64(1); seq <= 3; seq++ {
		if err := d.Enqueue(domain.Tick{Seq: seq}); err != nil {
			t.Fatalf("Enqueue(%d) failed: %v", seq, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)

	if got := c.got(); len(got) != 0 {
		t.Errorf("processed %v after cancel, want none", got)
	}
	snap := m.Snapshot()
	if snap.TicksDropped != 3 {
		t.Errorf("dropped = %d, want 3", snap.TicksDropped)
	}
	if snap.QueueDepth != 0 || d.Len() != 0 {
		t.Errorf("queue depth = %d (len %d), want 0", snap.QueueDepth, d.Len())
	}
}

func TestDispatcher_SkipsSequenceRegression(t *testing.T) {
	c := newCollector(2)
	d := NewDispatcher(8, c, &infra.Metrics{})

	for _, seq := range []uint64{5, 4, 5, 6} {
		_ = d.Enqueue(domain.Tick{Seq: seq})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	waitFor(t, c.done)
	got := c.got()
	if got[0] != 5 || got[1] != 6 {
		t.Errorf("processed %v, want [5 6]", got)
	}
}

func TestDispatcher_RecoversFromPanic(t *testing.T) {
	m := &infra.Metrics{}
	done := make(chan struct{})
	p := ProcessorFunc(func(_ context.Context, tick domain.Tick, _ time.Time) {
		if tick.Seq == 1 {
			panic("boom")
		}
		close(done)
	})
	d := NewDispatcher(4, p, m)

	_ = d.Enqueue(domain.Tick{Seq: 1})
	_ = d.Enqueue(domain.Tick{Seq: 2})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	waitFor(t, done)
	if m.Snapshot().PipelineErrors != 1 {
		t.Error("panic not counted as pipeline error")
	}
}

func TestDispatcher_ConcurrentProducersNeverBlock(t *testing.T) {
	d := NewDispatcher(2, newCollector(-1), &infra.Metrics{})

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(base uint64) {
			defer wg.Done()
			for i := uint64(0); i < 100; i++ {
				_ = d.Enqueue(domain.Tick{Seq: base + i})
			}
		}(uint64(p) * 1000)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	waitFor(t, finished)

	if d.Len() > d.Capacity() {
		t.Errorf("queue length %d exceeds capacity %d", d.Len(), d.Capacity())
	}
}
