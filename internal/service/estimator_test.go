package service

import (
	"testing"
	"time"

	"trade_sim/internal/domain"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func defaultParams() domain.ModelParameters {
	return domain.ModelParameters{
		FeeRate: d("0.001"),
		Impact:  domain.ImpactParams{Gamma: d("0.1"), Eta: d("0.01")},
		Market:  domain.MarketConditions{DailyVolumeUSD: d("1000000000"), Volatility: d("0.02")},
	}
}

func defaultIntent() domain.TradeIntent {
	return domain.TradeIntent{QuantityUSD: d("100"), OrderType: domain.OrderTypeMarket, FeeTier: d("0.001")}
}

func book(bid, ask string) domain.Tick {
	return domain.Tick{
		Seq:       7,
		Exchange:  "OKX",
		Symbol:    "BTC-USDT-SWAP",
		Bids:      []domain.OrderBookLevel{{Price: d(bid), Size: d("2")}},
		Asks:      []domain.OrderBookLevel{{Price: d(ask), Size: d("3")}},
		Timestamp: time.UnixMilli(1000),
	}
}

func TestCostEstimator_ReferenceTick(t *testing.T) {
	est, err := NewCostEstimator(defaultParams()).Estimate(book("100", "101"), defaultIntent(), time.Now())
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}

	if !est.MidPrice.Equal(d("100.5")) {
		t.Errorf("mid = %s, want 100.5", est.MidPrice)
	}
	if !est.FeeUSD.Equal(d("0.1")) {
		t.Errorf("fee = %s, want 0.1", est.FeeUSD)
	}
	if est.ImpactUSD.GreaterThan(d("0.000001")) {
		t.Errorf("impact = %s, want negligible", est.ImpactUSD)
	}
	if !est.SlippageUSD.Equal(d("0.1")) {
		t.Errorf("slippage = %s, want 0.1", est.SlippageUSD)
	}
	if est.NetCostUSD.Sub(d("0.2")).Abs().GreaterThan(d("0.000001")) {
		t.Errorf("net = %s, want ~0.2", est.NetCostUSD)
	}
	if !est.NetCostUSD.Equal(est.FeeUSD.Add(est.ImpactUSD).Add(est.SlippageUSD)) {
		t.Error("net cost must equal fee + impact + slippage")
	}
	if !est.MakerProbability.Equal(d("0.5")) || !est.TakerProbability.Equal(d("0.5")) {
		t.Errorf("maker/taker = %s/%s, want 0.5/0.5", est.MakerProbability, est.TakerProbability)
	}
	if est.Seq != 7 || !est.TickTimestamp.Equal(time.UnixMilli(1000)) {
		t.Errorf("tick identity not carried: seq=%d ts=%v", est.Seq, est.TickTimestamp)
	}
	if est.InternalLatency < 0 {
		t.Errorf("latency = %s, want non-negative", est.InternalLatency)
	}
}

func TestCostEstimator_MidPriceExact(t *testing.T) {
	e := NewCostEstimator(defaultParams())
	tests := []struct{ bid, ask, mid string }{
		{"100", "101", "100.5"},
		{"95445.4", "95445.5", "95445.45"},
		{"0.00000001", "0.00000003", "0.00000002"},
		{"1", "1", "1"},
	}
	for _, tt := range tests {
		est, err := e.Estimate(book(tt.bid, tt.ask), defaultIntent(), time.Now())
		if err != nil {
			t.Fatalf("Estimate(%s, %s) failed: %v", tt.bid, tt.ask, err)
		}
		if !est.MidPrice.Equal(d(tt.mid)) {
			t.Errorf("mid(%s, %s) = %s, want %s", tt.bid, tt.ask, est.MidPrice, tt.mid)
		}
	}
}

func TestCostEstimator_QuantityUnits(t *testing.T) {
	intent := defaultIntent()
	intent.QuantityUSD = d("1000")

	est, err := NewCostEstimator(defaultParams()).Estimate(book("199", "201"), intent, time.Now())
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if !est.QuantityUnits.Equal(d("5")) {
		t.Errorf("units = %s, want 5", est.QuantityUnits)
	}
	// Fee and slippage stay on USD notional.
	if !est.FeeUSD.Equal(d("1")) || !est.SlippageUSD.Equal(d("1")) {
		t.Errorf("fee/slippage = %s/%s, want 1/1", est.FeeUSD, est.SlippageUSD)
	}
}

func TestCostEstimator_FittedModels(t *testing.T) {
	params := defaultParams()
	params.Slippage = &domain.SlippageParams{Weight: d("0.002"), Bias: d("0.05")}
	params.MakerTaker = &domain.MakerTakerParams{Intercept: 2}

	est, err := NewCostEstimator(params).Estimate(book("100", "101"), defaultIntent(), time.Now())
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if !est.SlippageUSD.Equal(d("0.25")) {
		t.Errorf("slippage = %s, want 0.25", est.SlippageUSD)
	}
	if !est.MakerProbability.GreaterThan(d("0.85")) {
		t.Errorf("maker = %s, want > 0.85", est.MakerProbability)
	}
}

func TestCostEstimator_Errors(t *testing.T) {
	t.Run("empty asks", func(t *testing.T) {
		tick := book("100", "101")
		tick.Asks = nil
		_, err := NewCostEstimator(defaultParams()).Estimate(tick, defaultIntent(), time.Now())
		if !domain.IsPipelineKind(err, domain.InsufficientDepth) {
			t.Errorf("error = %v, want InsufficientDepth", err)
		}
	})

	t.Run("impact model failure", func(t *testing.T) {
		params := defaultParams()
		params.Market.DailyVolumeUSD = d("-1")
		_, err := NewCostEstimator(params).Estimate(book("100", "101"), defaultIntent(), time.Now())
		if !domain.IsPipelineKind(err, domain.ModelFailure) {
			t.Errorf("error = %v, want ModelFailure", err)
		}
	})
}

func TestEstimate_Stateless(t *testing.T) {
	est, err := Estimate(book("100", "101"), defaultIntent(), defaultParams())
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if !est.MidPrice.Equal(d("100.5")) {
		t.Errorf("mid = %s, want 100.5", est.MidPrice)
	}
}
