package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderType is the execution style of the simulated order.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
)

// TradeIntent describes the order whose cost is being estimated.
// It is constant for a pipeline run.
type TradeIntent struct {
	QuantityUSD decimal.Decimal `json:"quantity_usd"`
	OrderType   OrderType       `json:"order_type"`
	FeeTier     decimal.Decimal `json:"fee_tier"` // Fee rate as a fraction, e.g. 0.001 for 0.1%
}

// Validate checks the intent invariants: positive quantity, fee tier in [0,1)
// and a supported order type.
func (i TradeIntent) Validate() error {
	if !i.QuantityUSD.IsPositive() {
		return &ConfigError{Field: "intent.quantity_usd", Err: fmt.Errorf("must be positive, got %s", i.QuantityUSD)}
	}
	if i.FeeTier.IsNegative() || i.FeeTier.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return &ConfigError{Field: "intent.fee_tier", Err: fmt.Errorf("must be in [0,1), got %s", i.FeeTier)}
	}
	if i.OrderType != OrderTypeMarket {
		return &ConfigError{Field: "intent.order_type", Err: errors.New("only market orders are supported")}
	}
	return nil
}
