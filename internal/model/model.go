// Package model holds the cost models evaluated for every tick.
//
// Every model consumes USD notional. The impact model works on the
// dimensionless participation X/V, so X and V must share a unit; the
// pipeline feeds both in USD.
package model

import "github.com/shopspring/decimal"

// Unit is the denomination a model expects for its quantity input.
type Unit int

const (
	UnitUSD Unit = iota + 1 // Quote notional
)

// String returns the string representation of Unit
func (u Unit) String() string {
	switch u {
	case UnitUSD:
		return "USD"
	default:
		return "UNKNOWN"
	}
}

var (
	one  = decimal.NewFromInt(1)
	half = decimal.New(5, -1)
)
