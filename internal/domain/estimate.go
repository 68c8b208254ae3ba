package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CostEstimate is the result of one pass of a Tick through the pipeline.
// All USD amounts are notional-denominated; QuantityUnits is informational.
type CostEstimate struct {
	Seq              uint64          `json:"seq"`
	Exchange         string          `json:"exchange"`
	Symbol           string          `json:"symbol"`
	OrderType        OrderType       `json:"order_type"`
	QuantityUSD      decimal.Decimal `json:"quantity_usd"`
	QuantityUnits    decimal.Decimal `json:"quantity_units"`
	MidPrice         decimal.Decimal `json:"mid_price"`
	FeeUSD           decimal.Decimal `json:"fee_usd"`
	ImpactUSD        decimal.Decimal `json:"impact_usd"`
	SlippageUSD      decimal.Decimal `json:"slippage_usd"`
	NetCostUSD       decimal.Decimal `json:"net_cost_usd"`
	MakerProbability decimal.Decimal `json:"maker_probability"`
	TakerProbability decimal.Decimal `json:"taker_probability"`
	InternalLatency  time.Duration   `json:"internal_latency"`
	TickTimestamp    time.Time       `json:"tick_timestamp"`
}

// Summary renders the estimate as a human-readable block.
func (e CostEstimate) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Symbol: %s\n", e.Symbol)
	fmt.Fprintf(&b, "Exchange: %s\n", e.Exchange)
	fmt.Fprintf(&b, "Order Type: %s\n", e.OrderType)
	fmt.Fprintf(&b, "Quantity (USD): %s\n", e.QuantityUSD.String())
	fmt.Fprintf(&b, "Mid Price: %s\n", e.MidPrice.String())
	fmt.Fprintf(&b, "Expected Slippage: $%s\n", e.SlippageUSD.StringFixed(2))
	fmt.Fprintf(&b, "Expected Fees: $%s\n", e.FeeUSD.StringFixed(2))
	fmt.Fprintf(&b, "Expected Market Impact: $%s\n", e.ImpactUSD.StringFixed(2))
	fmt.Fprintf(&b, "Net Cost: $%s\n", e.NetCostUSD.StringFixed(2))
	fmt.Fprintf(&b, "Maker/Taker Proportion: Maker: %s%%, Taker: %s%%\n",
		e.MakerProbability.Shift(2).StringFixed(1), e.TakerProbability.Shift(2).StringFixed(1))
	fmt.Fprintf(&b, "Internal Latency (ms): %.3f\n", float64(e.InternalLatency)/float64(time.Millisecond))
	fmt.Fprintf(&b, "Tick Timestamp: %s\n", e.TickTimestamp.UTC().Format(time.RFC3339Nano))
	return b.String()
}
