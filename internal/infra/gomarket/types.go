package gomarket

import (
	"encoding/json"
	"time"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultReadTimeout      = 60 * time.Second
	defaultPingInterval     = 20 * time.Second
	defaultReadLimit        = 1 << 20
	writeTimeout            = 5 * time.Second
)

// bookMessage is the wire shape of one L2 snapshot:
//
//	{"timestamp":"2025-05-04T10:39:13Z","exchange":"OKX","symbol":"BTC-USDT-SWAP",
//	 "asks":[["95445.5","9.06"],...],"bids":[["95445.4","1104.23"],...]}
//
// Fields stay raw so that missing, null and mistyped values are told apart.
type bookMessage struct {
	Exchange  json.RawMessage `json:"exchange"`
	Symbol    json.RawMessage `json:"symbol"`
	Timestamp json.RawMessage `json:"timestamp"`
	Bids      json.RawMessage `json:"bids"`
	Asks      json.RawMessage `json:"asks"`
}
