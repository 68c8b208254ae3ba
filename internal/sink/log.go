package sink

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"trade_sim/internal/domain"
)

// LogSink writes each estimate as a structured log line and, when Out is
// set, the human-readable summary block.
type LogSink struct {
	Out io.Writer
}

// NewLogSink creates a log sink. A nil out disables the summary block.
func NewLogSink(out io.Writer) *LogSink {
	return &LogSink{Out: out}
}

func (s *LogSink) Publish(ctx context.Context, est domain.CostEstimate) error {
	slog.InfoContext(ctx, "📊 Cost estimate",
		slog.Uint64("seq", est.Seq),
		slog.String("exchange", est.Exchange),
		slog.String("symbol", est.Symbol),
		slog.String("mid_price", est.MidPrice.String()),
		slog.String("fee_usd", est.FeeUSD.String()),
		slog.String("impact_usd", est.ImpactUSD.String()),
		slog.String("slippage_usd", est.SlippageUSD.String()),
		slog.String("net_cost_usd", est.NetCostUSD.String()),
		slog.String("maker_probability", est.MakerProbability.String()),
		slog.Duration("internal_latency", est.InternalLatency))

	if s.Out == nil {
		return nil
	}
	_, err := fmt.Fprintln(s.Out, est.Summary())
	return err
}
