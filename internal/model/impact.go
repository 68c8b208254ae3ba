package model

import (
	"fmt"

	"trade_sim/internal/domain"

	"github.com/shopspring/decimal"
)

// ImpactModel is a single-period simplification of Almgren-Chriss.
//
//	permanent = gamma * sigma * (X/V)
//	temporary = eta * (X/(V*T))^2
//	impact    = (permanent + temporary) * X
//
// T is the execution horizon in days and defaults to 1.
type ImpactModel struct {
	gamma   decimal.Decimal
	eta     decimal.Decimal
	horizon decimal.Decimal
}

// NewImpactModel builds the model from its coefficients.
func NewImpactModel(p domain.ImpactParams) ImpactModel {
	horizon := p.HorizonDays
	if !horizon.IsPositive() {
		horizon = one
	}
	return ImpactModel{gamma: p.Gamma, eta: p.Eta, horizon: horizon}
}

// Unit returns the quantity unit the model consumes.
func (ImpactModel) Unit() Unit { return UnitUSD }

// Estimate returns the expected impact cost in USD of executing orderUSD
// against dailyVolumeUSD at the given daily volatility.
// A zero daily volume yields zero impact.
func (m ImpactModel) Estimate(orderUSD, dailyVolumeUSD, volatility decimal.Decimal) (decimal.Decimal, error) {
	if dailyVolumeUSD.IsZero() {
		return decimal.Zero, nil
	}
	if dailyVolumeUSD.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative daily volume %s", dailyVolumeUSD)
	}
	if volatility.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative volatility %s", volatility)
	}

	participation := orderUSD.Div(dailyVolumeUSD)
	rate := participation.Div(m.horizon)

	permanent := m.gamma.Mul(volatility).Mul(participation)
	temporary := m.eta.Mul(rate).Mul(rate)

	return permanent.Add(temporary).Mul(orderUSD), nil
}
