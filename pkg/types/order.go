package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OptionType is call or put.
type OptionType string

const (
	OptionCall OptionType = "call"
	OptionPut  OptionType = "put"
)

// OrderStatus is the lifecycle status of a paper Order.
type OrderStatus string

const (
	OrderPendingExecution OrderStatus = "pending_execution"
	OrderFilled           OrderStatus = "filled"
	OrderFailed           OrderStatus = "failed"
	OrderCancelled        OrderStatus = "cancelled"
)

// Order is a paper order derived from a non-shadow TradeRecommendation.
type Order struct {
	ID               uuid.UUID
	SignalID         uuid.UUID
	RecommendationID uuid.UUID
	OptionSymbol     string
	Strike           decimal.Decimal
	Expiration       time.Time
	Type             OptionType
	Quantity         int
	OrderType        string
	Status           OrderStatus
	Engine           EngineVariant
	FailureReason    string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Trade is a single fill against an Order.
type Trade struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	FillPrice  decimal.Decimal
	Quantity   int
	ExecutedAt time.Time
}

// PositionStatus is the lifecycle status of a Position.
type PositionStatus string

const (
	PositionOpen    PositionStatus = "open"
	PositionClosing PositionStatus = "closing"
	PositionClosed  PositionStatus = "closed"
)

// Position tracks an open or closed trade resulting from a Trade fill.
type Position struct {
	ID             uuid.UUID
	TradeID        uuid.UUID
	SignalID       uuid.UUID
	Symbol         string
	Direction      SignalDirection
	Strategy       string
	Quantity       int
	EntryPrice     decimal.Decimal
	CurrentPrice   decimal.Decimal
	UnrealizedPnL  decimal.Decimal
	RealizedPnL    decimal.Decimal
	StopLoss       decimal.Decimal
	TakeProfit     decimal.Decimal
	Status         PositionStatus
	EntryState     *UnifiedBiasState
	TradeAligned   bool
	EntryAt        time.Time
	ExitAt         *time.Time
}
