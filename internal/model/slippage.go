package model

import (
	"trade_sim/internal/domain"

	"github.com/shopspring/decimal"
)

// DefaultSlippageWeight is used until a fitted model is persisted.
var DefaultSlippageWeight = decimal.RequireFromString("0.001")

// SlippageModel is the linear predictor slippage(Q) = w*Q + b.
type SlippageModel struct {
	weight decimal.Decimal
	bias   decimal.Decimal
	fitted bool
}

// NewSlippageModel builds the predictor from fitted params, or from the
// default (w=0.001, b=0) when params is nil.
func NewSlippageModel(params *domain.SlippageParams) SlippageModel {
	if params == nil {
		return SlippageModel{weight: DefaultSlippageWeight, bias: decimal.Zero}
	}
	return SlippageModel{weight: params.Weight, bias: params.Bias, fitted: true}
}

// Unit returns the quantity unit the model consumes.
func (SlippageModel) Unit() Unit { return UnitUSD }

// Fitted reports whether the model uses persisted coefficients.
func (m SlippageModel) Fitted() bool { return m.fitted }

// Estimate returns the expected slippage in USD.
func (m SlippageModel) Estimate(quantityUSD decimal.Decimal) decimal.Decimal {
	return m.weight.Mul(quantityUSD).Add(m.bias)
}
