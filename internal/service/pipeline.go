package service

import (
	"context"
	"log/slog"
	"time"

	"trade_sim/internal/domain"
	"trade_sim/internal/infra"
)

// Pipeline is the computation side of the dispatch boundary: it estimates one
// tick, hands the result to the sink and contains every per-tick failure.
type Pipeline struct {
	estimator *CostEstimator
	intent    domain.TradeIntent
	sink      domain.ResultSink
	metrics   *infra.Metrics
}

// NewPipeline creates the pipeline for one session.
func NewPipeline(estimator *CostEstimator, intent domain.TradeIntent, sink domain.ResultSink, metrics *infra.Metrics) *Pipeline {
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	return &Pipeline{
		estimator: estimator,
		intent:    intent,
		sink:      sink,
		metrics:   metrics,
	}
}

// Process runs one tick to completion. Errors are logged and counted; the
// caller moves on to the next tick.
func (p *Pipeline) Process(ctx context.Context, tick domain.Tick, dequeuedAt time.Time) {
	est, err := p.estimator.Estimate(tick, p.intent, dequeuedAt)
	if err != nil {
		p.metrics.RecordPipelineError()
		slog.Warn("Skipping estimate",
			slog.Uint64("seq", tick.Seq),
			slog.String("symbol", tick.Symbol),
			slog.Any("error", err))
		return
	}
	p.metrics.RecordEstimate(est.InternalLatency)

	if p.sink == nil {
		return
	}
	if err := p.sink.Publish(ctx, est); err != nil {
		p.metrics.RecordSinkError()
		slog.Warn("Result sink rejected estimate", slog.Uint64("seq", est.Seq), slog.Any("error", err))
	}
}
