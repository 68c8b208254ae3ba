package model

import (
	"errors"
	"fmt"
	"math"

	"trade_sim/internal/domain"

	"github.com/shopspring/decimal"
)

// ErrInsufficientSamples is returned when a fit has too little data.
var ErrInsufficientSamples = errors.New("insufficient samples")

// SlippageSample is one historical observation for the slippage fit.
type SlippageSample struct {
	QuantityUSD float64
	SlippageUSD float64
}

// FillSample is one historical fill for the maker/taker fit.
type FillSample struct {
	Volatility  float64
	QuantityUSD float64
	Maker       bool
}

// FitLinear fits slippage = w*Q + b by ordinary least squares.
func FitLinear(samples []SlippageSample) (domain.SlippageParams, error) {
	n := float64(len(samples))
	if len(samples) < 2 {
		return domain.SlippageParams{}, fmt.Errorf("%w: need at least 2, got %d", ErrInsufficientSamples, len(samples))
	}

	var meanX, meanY float64
	for _, s := range samples {
		meanX += s.QuantityUSD
		meanY += s.SlippageUSD
	}
	meanX /= n
	meanY /= n

	var sxx, sxy float64
	for _, s := range samples {
		dx := s.QuantityUSD - meanX
		sxx += dx * dx
		sxy += dx * (s.SlippageUSD - meanY)
	}
	if sxx == 0 {
		return domain.SlippageParams{}, errors.New("quantities have zero variance")
	}

	w := sxy / sxx
	b := meanY - w*meanX
	return domain.SlippageParams{
		Weight:      decimal.NewFromFloat(w),
		Bias:        decimal.NewFromFloat(b),
		SampleCount: len(samples),
	}, nil
}

// LogisticOptions tunes the maker/taker gradient descent.
type LogisticOptions struct {
	LearningRate float64
	Iterations   int
	L2           float64
}

// DefaultLogisticOptions returns settings that converge on typical fill logs.
func DefaultLogisticOptions() LogisticOptions {
	return LogisticOptions{
		LearningRate: 0.5,
		Iterations:   2000,
		L2:           1e-4,
	}
}

// FitLogistic fits the maker classifier by batch gradient descent on
// standardized features, then maps the coefficients back to raw units.
func FitLogistic(samples []FillSample, opts LogisticOptions) (domain.MakerTakerParams, error) {
	if len(samples) < 2 {
		return domain.MakerTakerParams{}, fmt.Errorf("%w: need at least 2, got %d", ErrInsufficientSamples, len(samples))
	}
	if opts.Iterations <= 0 || opts.LearningRate <= 0 {
		opts = DefaultLogisticOptions()
	}

	n := float64(len(samples))
	meanV, sdV := moments(samples, func(s FillSample) float64 { return s.Volatility })
	meanQ, sdQ := moments(samples, func(s FillSample) float64 { return s.QuantityUSD })

	var b0, bv, bq float64
	for it := 0; it < opts.Iterations; it++ {
		var g0, gv, gq float64
		for _, s := range samples {
			v := (s.Volatility - meanV) / sdV
			q := (s.QuantityUSD - meanQ) / sdQ
			y := 0.0
			if s.Maker {
				y = 1
			}
			diff := sigmoid(b0+bv*v+bq*q) - y
			g0 += diff
			gv += diff * v
			gq += diff * q
		}
		b0 -= opts.LearningRate * g0 / n
		bv -= opts.LearningRate * (gv/n + opts.L2*bv)
		bq -= opts.LearningRate * (gq/n + opts.L2*bq)
	}

	params := domain.MakerTakerParams{
		Intercept:      b0 - bv*meanV/sdV - bq*meanQ/sdQ,
		VolatilityCoef: bv / sdV,
		QuantityCoef:   bq / sdQ,
		SampleCount:    len(samples),
	}
	for _, c := range []float64{params.Intercept, params.VolatilityCoef, params.QuantityCoef} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return domain.MakerTakerParams{}, errors.New("logistic fit diverged")
		}
	}
	return params, nil
}

// moments returns mean and standard deviation; a zero deviation is reported
// as 1 so the feature drops out instead of dividing by zero.
func moments(samples []FillSample, get func(FillSample) float64) (mean, sd float64) {
	n := float64(len(samples))
	for _, s := range samples {
		mean += get(s)
	}
	mean /= n
	var ss float64
	for _, s := range samples {
		d := get(s) - mean
		ss += d * d
	}
	sd = math.Sqrt(ss / n)
	if sd == 0 {
		sd = 1
	}
	return mean, sd
}
