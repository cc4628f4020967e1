package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// signalRow mirrors types.Signal for persistence.
type signalRow struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	Symbol             string    `gorm:"index;not null"`
	Direction          string    `gorm:"not null"`
	Timeframe          string    `gorm:"not null"`
	SourceTimestamp    time.Time `gorm:"not null"`
	RawPayload         []byte    `gorm:"type:jsonb"`
	SignalHash         string    `gorm:"not null"`
	Status             string    `gorm:"index;not null"`
	Processed          bool      `gorm:"not null;default:false"`
	ProcessingLock     bool      `gorm:"not null;default:false"`
	ProcessingAttempts int       `gorm:"not null;default:0"`
	NextRetryAt        *time.Time
	ExperimentID       *uuid.UUID
	RejectionReason    *string
	IsTest             bool      `gorm:"not null;default:false"`
	CreatedAt          time.Time `gorm:"index;not null"`
	UpdatedAt          time.Time `gorm:"not null"`
}

func (signalRow) TableName() string { return "signals" }

func fromSignal(s *types.Signal) *signalRow {
	raw, _ := json.Marshal(s.RawPayload)
	return &signalRow{
		ID:                 s.ID,
		Symbol:             s.Symbol,
		Direction:          string(s.Direction),
		Timeframe:          s.Timeframe,
		SourceTimestamp:    s.SourceTimestamp,
		RawPayload:         raw,
		SignalHash:         s.SignalHash,
		Status:             string(s.Status),
		Processed:          s.Processed,
		ProcessingLock:     s.ProcessingLock,
		ProcessingAttempts: s.ProcessingAttempts,
		NextRetryAt:        s.NextRetryAt,
		ExperimentID:       s.ExperimentID,
		RejectionReason:    s.RejectionReason,
		IsTest:             s.IsTest,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

func (r *signalRow) toDomain() *types.Signal {
	var raw map[string]any
	_ = json.Unmarshal(r.RawPayload, &raw)
	return &types.Signal{
		ID:                 r.ID,
		Symbol:             r.Symbol,
		Direction:          types.SignalDirection(r.Direction),
		Timeframe:          r.Timeframe,
		SourceTimestamp:    r.SourceTimestamp,
		RawPayload:         raw,
		SignalHash:         r.SignalHash,
		Status:             types.SignalStatus(r.Status),
		Processed:          r.Processed,
		ProcessingLock:     r.ProcessingLock,
		ProcessingAttempts: r.ProcessingAttempts,
		NextRetryAt:        r.NextRetryAt,
		ExperimentID:       r.ExperimentID,
		RejectionReason:    r.RejectionReason,
		IsTest:             r.IsTest,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

// webhookEventRow mirrors types.WebhookEvent.
type webhookEventRow struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	SignalID         *uuid.UUID
	Status           string `gorm:"index;not null"`
	RequestID        string
	ProcessingTimeMs int64
	ErrorMessage     string
	RawPayload       []byte    `gorm:"type:jsonb"`
	CreatedAt        time.Time `gorm:"index;not null"`
}

func (webhookEventRow) TableName() string { return "webhook_events" }

func fromWebhookEvent(e *types.WebhookEvent) *webhookEventRow {
	return &webhookEventRow{
		ID:               e.ID,
		SignalID:         e.SignalID,
		Status:           string(e.Status),
		RequestID:        e.RequestID,
		ProcessingTimeMs: e.ProcessingTimeMs,
		ErrorMessage:     e.ErrorMessage,
		RawPayload:       e.RawPayload,
		CreatedAt:        e.CreatedAt,
	}
}

// marketContextRow mirrors types.MarketContext.
type marketContextRow struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	SignalID     uuid.UUID `gorm:"index;not null"`
	Timestamp    time.Time `gorm:"not null"`
	Symbol       string    `gorm:"not null"`
	CurrentPrice string    `gorm:"not null"`
	Bid          string    `gorm:"not null"`
	Ask          string    `gorm:"not null"`
	Volume       string    `gorm:"not null"`
	Indicators   []byte    `gorm:"type:jsonb"`
	MarketIntel  []byte    `gorm:"type:jsonb"`
	ContextHash  string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (marketContextRow) TableName() string { return "market_contexts" }

func fromMarketContext(c *types.MarketContext) *marketContextRow {
	indicators, _ := json.Marshal(c.Indicators)
	var intel []byte
	if c.MarketIntel != nil {
		intel, _ = json.Marshal(c.MarketIntel)
	}
	return &marketContextRow{
		ID:           c.ID,
		SignalID:     c.SignalID,
		Timestamp:    c.Timestamp,
		Symbol:       c.Symbol,
		CurrentPrice: c.CurrentPrice.String(),
		Bid:          c.Bid.String(),
		Ask:          c.Ask.String(),
		Volume:       c.Volume.String(),
		Indicators:   indicators,
		MarketIntel:  intel,
		ContextHash:  c.ContextHash,
		CreatedAt:    c.CreatedAt,
	}
}

// experimentRow mirrors types.Experiment.
type experimentRow struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	SignalID        uuid.UUID `gorm:"index;not null"`
	Variant         string    `gorm:"not null"`
	AssignmentHash  string    `gorm:"not null"`
	SplitPercentage string    `gorm:"not null"`
	PolicyVersion   string    `gorm:"not null"`
	CreatedAt       time.Time `gorm:"not null"`
}

func (experimentRow) TableName() string { return "experiments" }

func fromExperiment(e *types.Experiment) *experimentRow {
	return &experimentRow{
		ID:              e.ID,
		SignalID:        e.SignalID,
		Variant:         string(e.Variant),
		AssignmentHash:  e.AssignmentHash,
		SplitPercentage: e.SplitPercentage.String(),
		PolicyVersion:   e.PolicyVersion,
		CreatedAt:       e.CreatedAt,
	}
}

// executionPolicyRow mirrors types.ExecutionPolicy.
type executionPolicyRow struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ExperimentID   uuid.UUID `gorm:"index;not null"`
	ExecutionMode  string    `gorm:"not null"`
	ExecutedEngine *string
	ShadowEngine   *string
	Reason         string
	CreatedAt      time.Time `gorm:"not null"`
}

func (executionPolicyRow) TableName() string { return "execution_policies" }

func fromExecutionPolicy(p *types.ExecutionPolicy) *executionPolicyRow {
	var executed, shadow *string
	if p.ExecutedEngine != nil {
		s := string(*p.ExecutedEngine)
		executed = &s
	}
	if p.ShadowEngine != nil {
		s := string(*p.ShadowEngine)
		shadow = &s
	}
	return &executionPolicyRow{
		ID:             p.ID,
		ExperimentID:   p.ExperimentID,
		ExecutionMode:  string(p.ExecutionMode),
		ExecutedEngine: executed,
		ShadowEngine:   shadow,
		Reason:         p.Reason,
		CreatedAt:      p.CreatedAt,
	}
}

// recommendationRow mirrors types.TradeRecommendation.
type recommendationRow struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	ExperimentID uuid.UUID `gorm:"index;not null"`
	Engine       string    `gorm:"not null"`
	Symbol       string    `gorm:"not null"`
	Direction    string    `gorm:"not null"`
	Strike       string    `gorm:"not null"`
	Expiration   time.Time `gorm:"not null"`
	Quantity     int       `gorm:"not null"`
	EntryPrice   string    `gorm:"not null"`
	StopLoss     *string
	TakeProfit   *string
	IsShadow     bool      `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (recommendationRow) TableName() string { return "decision_recommendations" }

func fromRecommendation(r *types.TradeRecommendation) *recommendationRow {
	var sl, tp *string
	if r.StopLoss != nil {
		s := r.StopLoss.String()
		sl = &s
	}
	if r.TakeProfit != nil {
		s := r.TakeProfit.String()
		tp = &s
	}
	return &recommendationRow{
		ID:           r.ID,
		ExperimentID: r.ExperimentID,
		Engine:       string(r.Engine),
		Symbol:       r.Symbol,
		Direction:    string(r.Direction),
		Strike:       r.Strike.String(),
		Expiration:   r.Expiration,
		Quantity:     r.Quantity,
		EntryPrice:   r.EntryPrice.String(),
		StopLoss:     sl,
		TakeProfit:   tp,
		IsShadow:     r.IsShadow,
		CreatedAt:    r.CreatedAt,
	}
}

func (r *recommendationRow) toDomain() *types.TradeRecommendation {
	rec := &types.TradeRecommendation{
		ID:           r.ID,
		ExperimentID: r.ExperimentID,
		Engine:       types.EngineVariant(r.Engine),
		Symbol:       r.Symbol,
		Direction:    types.SignalDirection(r.Direction),
		Strike:       mustDecimal(r.Strike),
		Expiration:   r.Expiration,
		Quantity:     r.Quantity,
		EntryPrice:   mustDecimal(r.EntryPrice),
		IsShadow:     r.IsShadow,
		CreatedAt:    r.CreatedAt,
	}
	if r.StopLoss != nil {
		d := mustDecimal(*r.StopLoss)
		rec.StopLoss = &d
	}
	if r.TakeProfit != nil {
		d := mustDecimal(*r.TakeProfit)
		rec.TakeProfit = &d
	}
	return rec
}

// orderRow mirrors types.Order.
type orderRow struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	SignalID         uuid.UUID `gorm:"index;not null"`
	RecommendationID uuid.UUID `gorm:"index;not null"`
	OptionSymbol     string    `gorm:"not null"`
	Strike           string    `gorm:"not null"`
	Expiration       time.Time `gorm:"not null"`
	Type             string    `gorm:"not null"`
	Quantity         int       `gorm:"not null"`
	OrderType        string    `gorm:"not null"`
	Status           string    `gorm:"index;not null"`
	Engine           string    `gorm:"not null"`
	FailureReason    string
	CreatedAt        time.Time `gorm:"index;not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

func (orderRow) TableName() string { return "orders" }

func fromOrder(o *types.Order) *orderRow {
	return &orderRow{
		ID:               o.ID,
		SignalID:         o.SignalID,
		RecommendationID: o.RecommendationID,
		OptionSymbol:     o.OptionSymbol,
		Strike:           o.Strike.String(),
		Expiration:       o.Expiration,
		Type:             string(o.Type),
		Quantity:         o.Quantity,
		OrderType:        o.OrderType,
		Status:           string(o.Status),
		Engine:           string(o.Engine),
		FailureReason:    o.FailureReason,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

func (r *orderRow) toDomain() *types.Order {
	return &types.Order{
		ID:               r.ID,
		SignalID:         r.SignalID,
		RecommendationID: r.RecommendationID,
		OptionSymbol:     r.OptionSymbol,
		Strike:           mustDecimal(r.Strike),
		Expiration:       r.Expiration,
		Type:             types.OptionType(r.Type),
		Quantity:         r.Quantity,
		OrderType:        r.OrderType,
		Status:           types.OrderStatus(r.Status),
		Engine:           types.EngineVariant(r.Engine),
		FailureReason:    r.FailureReason,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

// tradeRow mirrors types.Trade.
type tradeRow struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID    uuid.UUID `gorm:"index;not null"`
	FillPrice  string    `gorm:"not null"`
	Quantity   int       `gorm:"not null"`
	ExecutedAt time.Time `gorm:"not null"`
}

func (tradeRow) TableName() string { return "trades" }

func fromTrade(t *types.Trade) *tradeRow {
	return &tradeRow{
		ID:         t.ID,
		OrderID:    t.OrderID,
		FillPrice:  t.FillPrice.String(),
		Quantity:   t.Quantity,
		ExecutedAt: t.ExecutedAt,
	}
}

// positionRow mirrors types.Position. Table name is "refactored_positions",
// matching the upstream enrichment pipeline's naming for this table.
type positionRow struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	TradeID       uuid.UUID `gorm:"index;not null"`
	SignalID      uuid.UUID `gorm:"index;not null"`
	Symbol        string    `gorm:"not null"`
	Direction     string    `gorm:"not null"`
	Strategy      string
	Quantity      int    `gorm:"not null"`
	EntryPrice    string `gorm:"not null"`
	CurrentPrice  string `gorm:"not null"`
	UnrealizedPnL string `gorm:"not null"`
	RealizedPnL   string `gorm:"not null"`
	StopLoss      string
	TakeProfit    string
	Status        string `gorm:"index;not null"`
	EntryState    []byte `gorm:"type:jsonb"`
	TradeAligned  bool
	EntryAt       time.Time `gorm:"not null"`
	ExitAt        *time.Time
}

func (positionRow) TableName() string { return "refactored_positions" }

func fromPosition(p *types.Position) *positionRow {
	var entryState []byte
	if p.EntryState != nil {
		entryState, _ = json.Marshal(p.EntryState)
	}
	return &positionRow{
		ID:            p.ID,
		TradeID:       p.TradeID,
		SignalID:      p.SignalID,
		Symbol:        p.Symbol,
		Direction:     string(p.Direction),
		Strategy:      p.Strategy,
		Quantity:      p.Quantity,
		EntryPrice:    p.EntryPrice.String(),
		CurrentPrice:  p.CurrentPrice.String(),
		UnrealizedPnL: p.UnrealizedPnL.String(),
		RealizedPnL:   p.RealizedPnL.String(),
		StopLoss:      p.StopLoss.String(),
		TakeProfit:    p.TakeProfit.String(),
		Status:        string(p.Status),
		EntryState:    entryState,
		TradeAligned:  p.TradeAligned,
		EntryAt:       p.EntryAt,
		ExitAt:        p.ExitAt,
	}
}

func (r *positionRow) toDomain() *types.Position {
	p := &types.Position{
		ID:            r.ID,
		TradeID:       r.TradeID,
		SignalID:      r.SignalID,
		Symbol:        r.Symbol,
		Direction:     types.SignalDirection(r.Direction),
		Strategy:      r.Strategy,
		Quantity:      r.Quantity,
		EntryPrice:    mustDecimal(r.EntryPrice),
		CurrentPrice:  mustDecimal(r.CurrentPrice),
		UnrealizedPnL: mustDecimal(r.UnrealizedPnL),
		RealizedPnL:   mustDecimal(r.RealizedPnL),
		StopLoss:      mustDecimal(r.StopLoss),
		TakeProfit:    mustDecimal(r.TakeProfit),
		Status:        types.PositionStatus(r.Status),
		TradeAligned:  r.TradeAligned,
		EntryAt:       r.EntryAt,
		ExitAt:        r.ExitAt,
	}
	if len(r.EntryState) > 0 {
		var state types.UnifiedBiasState
		if json.Unmarshal(r.EntryState, &state) == nil {
			p.EntryState = &state
		}
	}
	return p
}

// biasConfigRow mirrors types.BiasConfig.
type biasConfigRow struct {
	ConfigKey string `gorm:"primaryKey"`
	Document  []byte `gorm:"type:jsonb"`
	Version   int
	UpdatedAt time.Time
}

func (biasConfigRow) TableName() string { return "bias_config" }

// biasAdaptiveHistoryRow records one applied (or dry-run) adaptive change.
type biasAdaptiveHistoryRow struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	RunDate       string    `gorm:"index;not null"`
	Parameter     string    `gorm:"not null"`
	PreviousValue string    `gorm:"not null"`
	NewValue      string    `gorm:"not null"`
	Rationale     string
	DryRun        bool
	CreatedAt     time.Time `gorm:"not null"`
}

func (biasAdaptiveHistoryRow) TableName() string { return "bias_adaptive_config_history" }

// featureFlagRow is one named boolean flag.
type featureFlagRow struct {
	Name      string `gorm:"primaryKey"`
	Enabled   bool
	UpdatedAt time.Time
}

func (featureFlagRow) TableName() string { return "feature_flags" }

// eventLogRow is a generic append-only audit row for background-worker
// errors that have no natural home in a domain table.
type eventLogRow struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Source    string    `gorm:"index;not null"`
	Kind      string    `gorm:"not null"`
	Message   string
	CreatedAt time.Time `gorm:"index;not null"`
}

func (eventLogRow) TableName() string { return "event_logs" }

func mustDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
