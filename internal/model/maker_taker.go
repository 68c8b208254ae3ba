package model

import (
	"fmt"
	"math"

	"trade_sim/internal/domain"

	"github.com/shopspring/decimal"
)

const probabilityPlaces = 6

// MakerTakerModel is a logistic classifier for the probability that the
// order fills passively.
type MakerTakerModel struct {
	params domain.MakerTakerParams
	fitted bool
}

// NewMakerTakerModel builds the classifier. A nil params yields the
// uninformed 50/50 split.
func NewMakerTakerModel(params *domain.MakerTakerParams) MakerTakerModel {
	if params == nil {
		return MakerTakerModel{}
	}
	return MakerTakerModel{params: *params, fitted: true}
}

// Unit returns the quantity unit the model consumes.
func (MakerTakerModel) Unit() Unit { return UnitUSD }

// Fitted reports whether the model uses persisted coefficients.
func (m MakerTakerModel) Fitted() bool { return m.fitted }

// Predict returns (maker, taker) probabilities. They always sum to exactly 1.
func (m MakerTakerModel) Predict(volatility, quantityUSD decimal.Decimal) (maker, taker decimal.Decimal, err error) {
	if !m.fitted {
		return half, half, nil
	}

	z := m.params.Intercept +
		m.params.VolatilityCoef*volatility.InexactFloat64() +
		m.params.QuantityCoef*quantityUSD.InexactFloat64()
	p := sigmoid(z)
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("non-finite maker probability for z=%v", z)
	}

	maker = decimal.NewFromFloat(p).Round(probabilityPlaces)
	return maker, one.Sub(maker), nil
}

func sigmoid(z float64) float64 {
	// Split on sign so exp never overflows.
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
