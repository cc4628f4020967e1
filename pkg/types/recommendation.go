package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeRecommendation is one engine's proposed trade for an experiment.
// IsShadow is false only when the policy names this engine as executed.
type TradeRecommendation struct {
	ID           uuid.UUID
	SignalID     uuid.UUID
	ExperimentID uuid.UUID
	Engine       EngineVariant
	Symbol       string
	Direction    SignalDirection
	Strike       decimal.Decimal
	Expiration   time.Time
	Quantity     int
	EntryPrice   decimal.Decimal
	StopLoss     *decimal.Decimal
	TakeProfit   *decimal.Decimal
	IsShadow     bool
	CreatedAt    time.Time
}
