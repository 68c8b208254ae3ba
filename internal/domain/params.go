package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ImpactParams are the Almgren-Chriss coefficients.
type ImpactParams struct {
	Gamma       decimal.Decimal `json:"gamma"`        // Permanent impact coefficient
	Eta         decimal.Decimal `json:"eta"`          // Temporary impact coefficient
	HorizonDays decimal.Decimal `json:"horizon_days"` // Execution horizon; zero means one day
}

// MarketConditions are the market inputs of the impact and maker/taker models.
type MarketConditions struct {
	DailyVolumeUSD decimal.Decimal `json:"daily_volume_usd"`
	Volatility     decimal.Decimal `json:"volatility"` // Daily, as a fraction
}

// SlippageParams are the fitted coefficients of slippage(Q) = Weight*Q + Bias.
type SlippageParams struct {
	Weight      decimal.Decimal `json:"weight"`
	Bias        decimal.Decimal `json:"bias"`
	SampleCount int             `json:"sample_count"`
}

// MakerTakerParams are the coefficients of the logistic maker classifier:
// P(maker) = sigmoid(Intercept + VolatilityCoef*volatility + QuantityCoef*quantityUSD).
type MakerTakerParams struct {
	Intercept      float64 `json:"intercept"`
	VolatilityCoef float64 `json:"volatility_coef"`
	QuantityCoef   float64 `json:"quantity_coef"`
	SampleCount    int     `json:"sample_count"`
}

// ModelParameters is loaded once at startup and shared read-only by every
// estimate. A nil Slippage or MakerTaker selects the model's fallback.
type ModelParameters struct {
	FeeRate    decimal.Decimal   `json:"fee_rate"`
	Impact     ImpactParams      `json:"impact"`
	Market     MarketConditions  `json:"market"`
	Slippage   *SlippageParams   `json:"slippage,omitempty"`
	MakerTaker *MakerTakerParams `json:"maker_taker,omitempty"`
}

// Validate rejects parameter sets the models cannot evaluate.
func (p ModelParameters) Validate() error {
	if p.FeeRate.IsNegative() || p.FeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return &ConfigError{Field: "fee_rate", Err: fmt.Errorf("must be in [0,1), got %s", p.FeeRate)}
	}
	if p.Impact.Gamma.IsNegative() {
		return &ConfigError{Field: "impact.gamma", Err: fmt.Errorf("must not be negative, got %s", p.Impact.Gamma)}
	}
	if p.Impact.Eta.IsNegative() {
		return &ConfigError{Field: "impact.eta", Err: fmt.Errorf("must not be negative, got %s", p.Impact.Eta)}
	}
	if p.Impact.HorizonDays.IsNegative() {
		return &ConfigError{Field: "impact.horizon_days", Err: fmt.Errorf("must not be negative, got %s", p.Impact.HorizonDays)}
	}
	if p.Market.DailyVolumeUSD.IsNegative() {
		return &ConfigError{Field: "market.daily_volume_usd", Err: fmt.Errorf("must not be negative, got %s", p.Market.DailyVolumeUSD)}
	}
	if p.Market.Volatility.IsNegative() {
		return &ConfigError{Field: "market.volatility", Err: fmt.Errorf("must not be negative, got %s", p.Market.Volatility)}
	}
	return nil
}
