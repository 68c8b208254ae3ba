package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderBookLevel is a single price level of one side of the book.
type OrderBookLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// Tick is one decoded L2 order-book snapshot.
// Bids and Asks are ordered best-to-worst. A Tick is never mutated after
// decoding; it is handed across the dispatch boundary by value.
type Tick struct {
	Seq        uint64           `json:"seq"` // Arrival order within a session, assigned by the reader
	Exchange   string           `json:"exchange"`
	Symbol     string           `json:"symbol"`
	Bids       []OrderBookLevel `json:"bids"`
	Asks       []OrderBookLevel `json:"asks"`
	Timestamp  time.Time        `json:"timestamp"`   // Venue timestamp
	ReceivedAt time.Time        `json:"received_at"` // Local receive instant
}

// BestBid returns the top bid level.
func (t Tick) BestBid() (OrderBookLevel, bool) {
	if len(t.Bids) == 0 {
		return OrderBookLevel{}, false
	}
	return t.Bids[0], true
}

// BestAsk returns the top ask level.
func (t Tick) BestAsk() (OrderBookLevel, bool) {
	if len(t.Asks) == 0 {
		return OrderBookLevel{}, false
	}
	return t.Asks[0], true
}

// Usable reports whether both sides carry at least one level.
func (t Tick) Usable() bool {
	return len(t.Bids) > 0 && len(t.Asks) > 0
}
