package domain

import "context"

// TickSource is a stream of decoded ticks. Run blocks until ctx is done or an
// unrecoverable error occurs.
type TickSource interface {
	Run(ctx context.Context, onTick func(Tick)) error
	IsConnected() bool
}

// ResultSink receives estimates one at a time, in arrival order.
// Publish must return within a bounded time.
type ResultSink interface {
	Publish(ctx context.Context, est CostEstimate) error
}

// ParameterStore provides the fitted model coefficients.
// A missing set is reported as nil, not as an error.
type ParameterStore interface {
	LoadSlippage(ctx context.Context) (*SlippageParams, error)
	LoadMakerTaker(ctx context.Context) (*MakerTakerParams, error)
}
