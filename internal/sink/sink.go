// Package sink provides ResultSink implementations: structured logging,
// SQLite recording, fan-out and an async queue that keeps slow consumers
// off the computation worker.
package sink

import (
	"context"
	"errors"

	"trade_sim/internal/domain"
)

// ErrSinkFull is returned by AsyncSink when its buffer stays full for the
// whole publish timeout.
var ErrSinkFull = errors.New("sink buffer full")

// ErrSinkClosed is returned after Close.
var ErrSinkClosed = errors.New("sink closed")

// Func adapts a function to domain.ResultSink.
type Func func(ctx context.Context, est domain.CostEstimate) error

func (f Func) Publish(ctx context.Context, est domain.CostEstimate) error {
	return f(ctx, est)
}

// Multi publishes to every sink in order. A failing sink does not stop the
// rest; all errors are joined.
type Multi []domain.ResultSink

func (m Multi) Publish(ctx context.Context, est domain.CostEstimate) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, est); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
