// Package types provides shared domain type definitions for the signal
// pipeline and decision orchestrator.
package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Timeframe represents a candle/bar timeframe.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// SignalDirection is the directional bias carried by a signal or recommendation.
type SignalDirection string

const (
	DirectionLong  SignalDirection = "long"
	DirectionShort SignalDirection = "short"
)

// Opposite returns the other direction.
func (d SignalDirection) Opposite() SignalDirection {
	if d == DirectionLong {
		return DirectionShort
	}
	return DirectionLong
}

// EngineVariant identifies one of the two pluggable decision engines.
type EngineVariant string

const (
	EngineA EngineVariant = "A"
	EngineB EngineVariant = "B"
)

// Other returns the variant not named by e.
func (e EngineVariant) Other() EngineVariant {
	if e == EngineA {
		return EngineB
	}
	return EngineA
}

// OHLCV is a single candlestick, used when fetching market data.
type OHLCV struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// Quote is a current bid/ask/last snapshot for a symbol.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	Last      decimal.Decimal `json:"last"`
	Volume    decimal.Decimal `json:"volume"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewID generates a fresh random identifier for a new domain record.
func NewID() uuid.UUID {
	return uuid.New()
}
