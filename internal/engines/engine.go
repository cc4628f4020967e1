// Package engines defines the pluggable decision-engine contract: given a
// Signal, its MarketContext, and the symbol's UnifiedBiasState, produce at
// most one TradeRecommendation. The orchestrator submits byte-identical
// inputs to both registered engines and is agnostic to which one
// completes first.
package engines

import (
	"context"
	"math"

	"github.com/atlas-desktop/trading-backend/internal/risk"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// Input is the structurally-equal payload both engines receive for a
// single signal.
type Input struct {
	Signal   *types.Signal
	Context  *types.MarketContext
	State    *types.UnifiedBiasState
	Document risk.Document
}

// Invoker is the contract every decision engine implements. A nil
// recommendation with a nil error means the engine declined to trade.
type Invoker interface {
	Variant() types.EngineVariant
	Invoke(ctx context.Context, in Input) (*types.TradeRecommendation, error)
}

// baseContractCount is the contract count a risk multiplier of 1.0 scales
// from; sizedQuantity never returns less than one contract.
const baseContractCount = 4

// baseRiskPct is the engines' shared base risk percentage fed into the
// risk model ahead of its bias-state modifiers.
const baseRiskPct = 1.0

// strategyTypeOf maps the bias state's intent onto the strategy-type
// vocabulary the risk model, portfolio guard, and setup validator share.
func strategyTypeOf(state *types.UnifiedBiasState) string {
	if state == nil {
		return ""
	}
	return risk.StrategyTypeFromIntent(state.IntentType)
}

// effectiveMultiplier reads the aggregator's own effective risk
// multiplier off the bias state, defaulting to neutral when absent or
// unset.
func effectiveMultiplier(state *types.UnifiedBiasState) float64 {
	if state == nil {
		return 1.0
	}
	m, _ := state.Effective.RiskMultiplier.Float64()
	if m == 0 {
		return 1.0
	}
	return m
}

// sizedQuantity runs the risk model against in and converts the resulting
// multiplier into a contract count.
func sizedQuantity(in Input) int {
	mult, _, err := risk.Multiplier(risk.Input{
		BaseRiskPct:          baseRiskPct,
		Direction:            in.Signal.Direction,
		StrategyType:         strategyTypeOf(in.State),
		State:                in.State,
		AggregatorMultiplier: effectiveMultiplier(in.State),
		Document:             in.Document,
	})
	if err != nil {
		mult = baseRiskPct
	}
	q := int(math.Round(mult * baseContractCount))
	if q < 1 {
		return 1
	}
	return q
}
