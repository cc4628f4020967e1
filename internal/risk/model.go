// Package risk computes position-size multipliers, portfolio-level
// trade admission, entry setup validation, and bias-aware exit
// adjustments, all driven by the bias aggregator's UnifiedBiasState.
package risk

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// ErrModelStateMissing is returned when marketState is required by policy
// but absent.
var ErrModelStateMissing = errors.New("risk: model state missing")

const (
	minMultiplier = 0.25
	maxMultiplier = 1.5
)

// ModifierBreakdown audits each contributing modifier of the final
// multiplier.
type ModifierBreakdown struct {
	Macro        float64
	Regime       float64
	Acceleration float64
	LatePhase    float64
	Staleness    float64
	Final        float64
}

// Input bundles the Multiplier function's parameters.
type Input struct {
	AccountSize   decimal.Decimal
	BaseRiskPct   float64
	Direction     types.SignalDirection
	StrategyType  string
	State         *types.UnifiedBiasState
	RequireState  bool
	// AggregatorMultiplier is the aggregator's own effective risk
	// multiplier, folded in alongside the rule-based modifiers below.
	AggregatorMultiplier float64
	// Document carries the BiasConfig "risk" document's tunable
	// parameters. A zero-valued Document resolves to DefaultDocument.
	Document Document
}

// Multiplier computes the position-size multiplier for Input, clamped to
// [0.25, 1.5], along with an audit breakdown of each rule's contribution.
func Multiplier(in Input) (float64, ModifierBreakdown, error) {
	if in.State == nil {
		if in.RequireState {
			return 0, ModifierBreakdown{}, ErrModelStateMissing
		}
		base := clamp(in.BaseRiskPct, minMultiplier, maxMultiplier)
		return base, ModifierBreakdown{Final: base}, nil
	}

	aggMult := in.AggregatorMultiplier
	if aggMult == 0 {
		aggMult = 1.0
	}
	doc := in.Document.orDefaults()

	bd := ModifierBreakdown{
		Macro:        macroModifier(in.State.MacroClass, in.Direction),
		Regime:       regimeModifier(in.State.RegimeType, in.StrategyType, in.State.AlignmentScore, doc.RangeBreakoutMultiplier),
		Acceleration: accelerationModifier(in.State.Acceleration, doc.StateStrengthUpMultiplier),
		LatePhase:    latePhaseModifier(in.State.TrendPhase, in.State.Acceleration, doc.LatePhaseNegativeMultiplier),
		Staleness:    stalenessModifier(in.State.IsStale),
	}

	final := in.BaseRiskPct * aggMult * bd.Macro * bd.Regime * bd.Acceleration * bd.LatePhase * bd.Staleness
	final = clamp(final, minMultiplier, maxMultiplier)
	bd.Final = final
	return final, bd, nil
}

func macroModifier(macro types.MacroClass, dir types.SignalDirection) float64 {
	long := dir == types.DirectionLong
	switch macro {
	case types.MacroBreakdownConfirmed:
		if long {
			return 0.5
		}
		return 1.15
	case types.MacroBreakoutConfirmed:
		if long {
			return 1.15
		}
		return 0.5
	case types.MacroTrendUp:
		if long {
			return 1.15
		}
		return 0.7
	case types.MacroTrendDown:
		if long {
			return 0.7
		}
		return 1.15
	default:
		return 1.0
	}
}

func regimeModifier(regime types.RegimeType, strategyType string, alignmentScore decimal.Decimal, rangeBreakoutMultiplier float64) float64 {
	if regime == types.RegimeRange && strategyType == "BREAKOUT" {
		return rangeBreakoutMultiplier
	}
	if regime == types.RegimeTrend {
		score, _ := alignmentScore.Float64()
		if score > 75 {
			return 1.1
		}
	}
	return 1.0
}

func accelerationModifier(accel *types.Acceleration, stateStrengthUpMultiplier float64) float64 {
	if accel == nil {
		return 1.0
	}
	delta, _ := accel.StateStrengthDelta.Float64()
	switch {
	case delta > 15:
		return stateStrengthUpMultiplier
	case delta < -20:
		return 0.8
	default:
		// linear interpolation: 0.8 at delta=-20, stateStrengthUpMultiplier at delta=15
		return 0.8 + (delta+20)/35*(stateStrengthUpMultiplier-0.8)
	}
}

func latePhaseModifier(phase types.TrendPhase, accel *types.Acceleration, latePhaseNegativeMultiplier float64) float64 {
	if phase != types.PhaseLate || accel == nil {
		return 1.0
	}
	delta, _ := accel.StateStrengthDelta.Float64()
	if delta < 0 {
		return latePhaseNegativeMultiplier
	}
	return 1.0
}

func stalenessModifier(isStale bool) float64 {
	if isStale {
		return 0.7
	}
	return 1.0
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
