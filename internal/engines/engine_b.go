package engines

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// voter is one of EngineB's independent perspectives on a candidate
// trade; each contributes a vote and a confidence weight.
type voter func(in Input) (vote bool, weight float64)

// EngineB shapes itself as a lightweight multi-agent panel: several
// independent voters each read a different facet of the bias state, and
// the engine trades only when their weighted vote clears a threshold.
// The voters themselves are intentionally simple; the point is the
// fan-out/aggregate shape, not sophisticated per-voter logic.
type EngineB struct {
	logger    *zap.Logger
	voters    []voter
	threshold float64
}

// NewEngineB creates EngineB with its default voter panel.
func NewEngineB(logger *zap.Logger) *EngineB {
	return &EngineB{
		logger:    logger.Named("engines.b"),
		threshold: 0.6,
		voters: []voter{
			trendVoter,
			momentumVoter,
			liquidityVoter,
		},
	}
}

// Variant implements Invoker.
func (e *EngineB) Variant() types.EngineVariant { return types.EngineB }

// Invoke implements Invoker.
func (e *EngineB) Invoke(ctx context.Context, in Input) (*types.TradeRecommendation, error) {
	var weightedYes, totalWeight float64
	for _, v := range e.voters {
		vote, weight := v(in)
		totalWeight += weight
		if vote {
			weightedYes += weight
		}
	}
	if totalWeight == 0 || weightedYes/totalWeight < e.threshold {
		return nil, nil
	}

	strike := otmStrike(in.Context.CurrentPrice, in.Signal.Direction)
	rec := &types.TradeRecommendation{
		ID:         types.NewID(),
		SignalID:   in.Signal.ID,
		Engine:     types.EngineB,
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

func trendVoter(in Input) (bool, float64) {
	if in.State == nil {
		return true, 0.3
	}
	aligned := agrees(in.Signal.Direction, in.State) && in.State.RegimeType == types.RegimeTrend
	return aligned, 0.4
}

func momentumVoter(in Input) (bool, float64) {
	if in.State == nil || in.State.Acceleration == nil {
		return false, 0.3
	}
	delta, _ := in.State.Acceleration.StateStrengthDelta.Float64()
	if in.Signal.Direction == types.DirectionLong {
		return delta > 0, 0.3
	}
	return delta < 0, 0.3
}

func liquidityVoter(in Input) (bool, float64) {
	if in.State == nil {
		return true, 0.3
	}
	if in.Signal.Direction == types.DirectionLong {
		return !(in.State.Liquidity.SweepHigh && !in.State.Liquidity.Reclaim), 0.3
	}
	return !(in.State.Liquidity.SweepLow && !in.State.Liquidity.Reclaim), 0.3
}
