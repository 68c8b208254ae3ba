package model

import "github.com/shopspring/decimal"

// FeeModel is the rule-based exchange fee: fee = Q * tier.
type FeeModel struct{}

// Unit returns the quantity unit the model consumes.
func (FeeModel) Unit() Unit { return UnitUSD }

// Estimate returns the fee in USD for a notional of quantityUSD.
func (FeeModel) Estimate(quantityUSD, feeTier decimal.Decimal) decimal.Decimal {
	return Fee(quantityUSD, feeTier)
}

// Fee returns quantityUSD * feeTier.
func Fee(quantityUSD, feeTier decimal.Decimal) decimal.Decimal {
	return quantityUSD.Mul(feeTier)
}
