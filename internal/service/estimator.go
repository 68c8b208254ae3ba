package service

import (
	"fmt"
	"time"

	"trade_sim/internal/domain"
	"trade_sim/internal/model"

	"github.com/shopspring/decimal"
)

var half = decimal.New(5, -1)

// CostEstimator turns a tick into a CostEstimate. Its models are built once
// from immutable ModelParameters, so Estimate has no hidden state and may be
// called from any goroutine.
type CostEstimator struct {
	params     domain.ModelParameters
	fee        model.FeeModel
	impact     model.ImpactModel
	slippage   model.SlippageModel
	makerTaker model.MakerTakerModel
}

// NewCostEstimator builds the four cost models from params.
func NewCostEstimator(params domain.ModelParameters) *CostEstimator {
	return &CostEstimator{
		params:     params,
		impact:     model.NewImpactModel(params.Impact),
		slippage:   model.NewSlippageModel(params.Slippage),
		makerTaker: model.NewMakerTakerModel(params.MakerTaker),
	}
}

// Estimate computes fees, impact, slippage and the maker/taker split for one
// tick. startedAt is the dequeue instant; InternalLatency covers only the
// time spent in here.
func (e *CostEstimator) Estimate(tick domain.Tick, intent domain.TradeIntent, startedAt time.Time) (domain.CostEstimate, error) {
	bid, okBid := tick.BestBid()
	ask, okAsk := tick.BestAsk()
	if !okBid || !okAsk {
		return domain.CostEstimate{}, &domain.PipelineError{
			Kind: domain.InsufficientDepth,
			Err:  fmt.Errorf("%w: bids=%d asks=%d", domain.ErrEmptyBook, len(tick.Bids), len(tick.Asks)),
		}
	}

	mid := bid.Price.Add(ask.Price).Mul(half)
	if !mid.IsPositive() {
		return domain.CostEstimate{}, &domain.PipelineError{
			Kind:  domain.ModelFailure,
			Model: "mid_price",
			Err:   fmt.Errorf("non-positive mid price %s", mid),
		}
	}

	notional := intent.QuantityUSD
	market := e.params.Market

	fee := e.fee.Estimate(notional, intent.FeeTier)

	impact, err := e.impact.Estimate(notional, market.DailyVolumeUSD, market.Volatility)
	if err != nil {
		return domain.CostEstimate{}, &domain.PipelineError{Kind: domain.ModelFailure, Model: "impact", Err: err}
	}

	slippage := e.slippage.Estimate(notional)

	maker, taker, err := e.makerTaker.Predict(market.Volatility, notional)
	if err != nil {
		return domain.CostEstimate{}, &domain.PipelineError{Kind: domain.ModelFailure, Model: "maker_taker", Err: err}
	}

	return domain.CostEstimate{
		Seq:              tick.Seq,
		Exchange:         tick.Exchange,
		Symbol:           tick.Symbol,
		OrderType:        intent.OrderType,
		QuantityUSD:      notional,
		QuantityUnits:    notional.Div(mid),
		MidPrice:         mid,
		FeeUSD:           fee,
		ImpactUSD:        impact,
		SlippageUSD:      slippage,
		NetCostUSD:       fee.Add(impact).Add(slippage),
		MakerProbability: maker,
		TakerProbability: taker,
		TickTimestamp:    tick.Timestamp,
		InternalLatency:  time.Since(startedAt),
	}, nil
}

// Estimate is the stateless form: it builds the models from params for a
// single call.
func Estimate(tick domain.Tick, intent domain.TradeIntent, params domain.ModelParameters) (domain.CostEstimate, error) {
	return NewCostEstimator(params).Estimate(tick, intent, time.Now())
}
