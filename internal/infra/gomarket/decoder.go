package gomarket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"trade_sim/internal/domain"

	"github.com/shopspring/decimal"
)

// Decoder turns raw stream messages into validated ticks for one subscription.
type Decoder struct {
	exchange string
	symbol   string
}

// NewDecoder creates a decoder expecting (exchange, symbol).
// The exchange comparison is case-insensitive, the symbol is exact.
func NewDecoder(exchange, symbol string) *Decoder {
	return &Decoder{exchange: exchange, symbol: symbol}
}

// Decode parses raw into a Tick. Errors are *domain.DecodeError.
// Seq and ReceivedAt are left for the session to fill in.
func (d *Decoder) Decode(raw []byte) (domain.Tick, error) {
	var msg bookMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.Tick{}, malformed("invalid json", err)
	}

	exchange, err := requireString("exchange", msg.Exchange)
	if err != nil {
		return domain.Tick{}, err
	}
	symbol, err := requireString("symbol", msg.Symbol)
	if err != nil {
		return domain.Tick{}, err
	}
	if exchange != d.exchange || symbol != d.symbol {
		return domain.Tick{}, &domain.DecodeError{
			Kind:   domain.SubscriptionMismatch,
			Reason: fmt.Sprintf("got %s/%s, subscribed to %s/%s", exchange, symbol, d.exchange, d.symbol),
		}
	}

	ts, err := parseTimestamp(msg.Timestamp)
	if err != nil {
		return domain.Tick{}, err
	}
	bids, err := parseLevels("bids", msg.Bids)
	if err != nil {
		return domain.Tick{}, err
	}
	asks, err := parseLevels("asks", msg.Asks)
	if err != nil {
		return domain.Tick{}, err
	}

	return domain.Tick{
		Exchange:  exchange,
		Symbol:    symbol,
		Bids:      bids,
		Asks:      asks,
		Timestamp: ts,
	}, nil
}

func malformed(reason string, err error) *domain.DecodeError {
	return &domain.DecodeError{Kind: domain.MalformedPayload, Reason: reason, Err: err}
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func requireString(field string, raw json.RawMessage) (string, error) {
	if isAbsent(raw) {
		return "", malformed("missing "+field, nil)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", malformed(field+" is not a string", err)
	}
	if s == "" {
		return "", malformed("empty "+field, nil)
	}
	return s, nil
}

// parseTimestamp accepts RFC 3339 strings or integer unix milliseconds.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if isAbsent(raw) {
		return time.Time{}, malformed("missing timestamp", nil)
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, malformed("timestamp is not a string", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, malformed("timestamp is not RFC 3339", err)
		}
		return ts, nil
	}

	var ms int64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return time.Time{}, malformed("timestamp is not an integer", err)
	}
	return time.UnixMilli(ms), nil
}

// parseLevels decodes [[price, size], ...]. Prices must be positive and sizes
// non-negative; values may be JSON strings or numbers.
func parseLevels(side string, raw json.RawMessage) ([]domain.OrderBookLevel, error) {
	if isAbsent(raw) {
		return nil, malformed("missing "+side, nil)
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, malformed(side+" is not a list of levels", err)
	}

	levels := make([]domain.OrderBookLevel, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, malformed(fmt.Sprintf("%s[%d] has %d fields", side, i, len(row)), nil)
		}
		price, err := parseDecimal(row[0])
		if err != nil {
			return nil, malformed(fmt.Sprintf("%s[%d] price", side, i), err)
		}
		size, err := parseDecimal(row[1])
		if err != nil {
			return nil, malformed(fmt.Sprintf("%s[%d] size", side, i), err)
		}
		if err := checkMagnitude(price); err != nil {
			return nil, malformed(fmt.Sprintf("%s[%d] price", side, i), err)
		}
		if err := checkMagnitude(size); err != nil {
			return nil, malformed(fmt.Sprintf("%s[%d] size", side, i), err)
		}
		if !price.IsPositive() {
			return nil, malformed(fmt.Sprintf("%s[%d] price %s not positive", side, i, price), nil)
		}
		if size.IsNegative() {
			return nil, malformed(fmt.Sprintf("%s[%d] size %s negative", side, i, size), nil)
		}
		levels = append(levels, domain.OrderBookLevel{Price: price, Size: size})
	}
	return levels, nil
}

// Bounds on decoded values. Arithmetic on decimals rescales to the smaller
// exponent, so an extreme exponent turns one add into a huge bigint.
const (
	minExponent = -18
	maxExponent = 18
	maxDigits   = 38
)

func checkMagnitude(v decimal.Decimal) error {
	if exp := v.Exponent(); exp < minExponent || exp > maxExponent {
		return fmt.Errorf("exponent %d outside [%d, %d]", exp, minExponent, maxExponent)
	}
	if n := v.NumDigits(); n > maxDigits {
		return fmt.Errorf("%d digits exceeds %d", n, maxDigits)
	}
	return nil
}

// parseDecimal parses a JSON string or number exactly, without a float64 detour.
func parseDecimal(raw json.RawMessage) (decimal.Decimal, error) {
	if isAbsent(raw) {
		return decimal.Decimal{}, fmt.Errorf("null value")
	}

	text := string(raw)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Decimal{}, err
		}
		text = s
	}
	return decimal.NewFromString(strings.TrimSpace(text))
}
