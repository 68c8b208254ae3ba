package app

import (
	"context"
	"errors"
	"log/slog"

	"trade_sim/internal/domain"
	"trade_sim/internal/engine"
	"trade_sim/internal/sink"
)

// Runtime is one running estimator: a tick source feeding the dispatcher,
// whose worker publishes through an async sink.
type Runtime struct {
	Source     domain.TickSource
	Dispatcher *engine.Dispatcher
	Sink       *sink.AsyncSink
}

// Run blocks until ctx is done or the source fails permanently.
// Shutdown order: source, then dispatcher worker, then sink drain.
func (r *Runtime) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The sink outlives ctx so it can drain what the worker already produced.
	if r.Sink != nil {
		go r.Sink.Run(context.WithoutCancel(ctx))
	}

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		r.Dispatcher.Run(ctx)
	}()
	slog.InfoContext(ctx, "✅ Dispatcher (Hotpath) started")

	err := r.Source.Run(ctx, r.onTick)

	cancel()
	<-workerDone
	if r.Sink != nil {
		r.Sink.Close()
	}
	return err
}

func (r *Runtime) onTick(tick domain.Tick) {
	err := r.Dispatcher.Enqueue(tick)
	switch {
	case err == nil, errors.Is(err, domain.ErrQueueOverflow):
		// Overflow is logged and counted by the dispatcher.
	case errors.Is(err, domain.ErrDispatcherStopped):
		slog.Debug("Tick arrived after shutdown", slog.Uint64("seq", tick.Seq))
	default:
		slog.Warn("Failed to enqueue tick", slog.Uint64("seq", tick.Seq), slog.Any("error", err))
	}
}
