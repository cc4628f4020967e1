package engines

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// EngineA is a rule-based decision engine: it trades a signal only when
// the bias state's Bias does not oppose the signal's direction (a long
// needs a non-bearish bias, a short a non-bullish one; a nil state counts
// as agreement) and, when a state is present, its trigger has fired. The
// strike is one step out-of-the-money, the step being 2% of the current
// price rounded to whole dollars (at least 1), with a 30-day expiration.
type EngineA struct {
	logger *zap.Logger
}

// NewEngineA creates EngineA.
func NewEngineA(logger *zap.Logger) *EngineA {
	return &EngineA{logger: logger.Named("engines.a")}
}

// Variant implements Invoker.
func (e *EngineA) Variant() types.EngineVariant { return types.EngineA }

// Invoke implements Invoker.
func (e *EngineA) Invoke(ctx context.Context, in Input) (*types.TradeRecommendation, error) {
	if !agrees(in.Signal.Direction, in.State) {
		return nil, nil
	}
	if in.State != nil && !in.State.Trigger.Triggered {
		return nil, nil
	}

	strike := otmStrike(in.Context.CurrentPrice, in.Signal.Direction)
	rec := &types.TradeRecommendation{
		ID:         types.NewID(),
		SignalID:   in.Signal.ID,
		Engine:     types.EngineA,
		Symbol:     in.Signal.Symbol,
		Direction:  in.Signal.Direction,
		Strike:     strike,
		Expiration: in.Signal.SourceTimestamp.Add(30 * 24 * time.Hour),
		Quantity:   sizedQuantity(in),
		EntryPrice: in.Context.CurrentPrice,
		CreatedAt:  time.Now(),
	}
	return rec, nil
}

func agrees(dir types.SignalDirection, state *types.UnifiedBiasState) bool {
	if state == nil {
		return true
	}
	switch dir {
	case types.DirectionLong:
		return state.Bias != types.BiasBearish
	case types.DirectionShort:
		return state.Bias != types.BiasBullish
	default:
		return false
	}
}

func otmStrike(current decimal.Decimal, dir types.SignalDirection) decimal.Decimal {
	step := current.Mul(decimal.NewFromFloat(0.02)).Round(0)
	if step.IsZero() {
		step = decimal.NewFromInt(1)
	}
	if dir == types.DirectionLong {
		return current.Add(step).Round(0)
	}
	return current.Sub(step).Round(0)
}
