package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MarketIntel carries optional gamma-exposure context attached to a
// MarketContext snapshot.
type MarketIntel struct {
	GammaRegime    string          `json:"gammaRegime"`
	ZeroGammaLevel decimal.Decimal `json:"zeroGammaLevel"`
	DistanceATRs   decimal.Decimal `json:"distanceAtrs"`
}

// MarketContext is an immutable snapshot of market state taken at signal
// enrichment time, used for replay and audit. ContextHash is a SHA-256 over
// a canonical serialization of its signal ID, timestamp, symbol and
// price/volume/indicator fields.
type MarketContext struct {
	ID            uuid.UUID
	SignalID      uuid.UUID
	Timestamp     time.Time
	Symbol        string
	CurrentPrice  decimal.Decimal
	Bid           decimal.Decimal
	Ask           decimal.Decimal
	Volume        decimal.Decimal
	Indicators    map[string]decimal.Decimal
	MarketIntel   *MarketIntel
	ContextHash   string
	CreatedAt     time.Time
}
