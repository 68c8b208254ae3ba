package sink

import (
	"context"

	"trade_sim/internal/domain"
)

// EstimateRecorder persists estimates (storage.Storage).
type EstimateRecorder interface {
	RecordEstimate(ctx context.Context, est domain.CostEstimate) error
}

// Recorder is a ResultSink backed by an EstimateRecorder. Database writes
// are slow relative to the pipeline; put it behind an AsyncSink.
type Recorder struct {
	store EstimateRecorder
}

// NewRecorder wraps store.
func NewRecorder(store EstimateRecorder) *Recorder {
	return &Recorder{store: store}
}

func (r *Recorder) Publish(ctx context.Context, est domain.CostEstimate) error {
	return r.store.RecordEstimate(ctx, est)
}
