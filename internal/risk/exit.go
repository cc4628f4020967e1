package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// Exit action tags, in the priority order a decision may apply.
const (
	TagMacroDriftExitPressure    = "MACRO_DRIFT_EXIT_PRESSURE"
	TagAccelerationDecay         = "ACCELERATION_DECAY"
	TagRegimeFlipInvalidation    = "REGIME_FLIP_INVALIDATION"
	TagVolatilityExpansionProtectRun = "VOLATILITY_EXPANSION_PROTECT_RUN"
	TagLiquidityTrapExit         = "LIQUIDITY_TRAP_EXIT"
)

// Action is the final exit instruction: full exit dominates partial exit,
// which dominates any stop adjustment.
type Action string

const (
	ActionNone        Action = "NONE"
	ActionWidenStop   Action = "WIDEN_STOP"
	ActionTightenStop Action = "TIGHTEN_STOP"
	ActionTrailStop   Action = "TRAIL_STOP"
	ActionPartialExit Action = "PARTIAL_EXIT"
	ActionFullExit    Action = "FULL_EXIT"
)

// Modifier records one applied rule's numeric contribution for audit.
type Modifier struct {
	Tag   string
	Value decimal.Decimal
}

// ExitInput bundles everything exit-adjustment evaluation needs for one
// open position.
type ExitInput struct {
	Position            *types.Position
	State                *types.UnifiedBiasState
	EntryState           *types.UnifiedBiasState
	UnrealizedPnL        decimal.Decimal
	UnrealizedPnLPercent decimal.Decimal
	TimeInTrade          time.Duration
	StrategyType         string
	ATRExpanding         bool
	TradeAlignedWithMacro bool
	MinRMultipleForPartial decimal.Decimal
}

// ExitResult is the audit trail plus final action of one exit-intelligence
// evaluation.
type ExitResult struct {
	Action          Action
	StopMultiplier  decimal.Decimal // applied against current stop distance; 1.0 means unchanged
	PartialExitPct  decimal.Decimal
	Modifiers       []Modifier
}

// Evaluate runs the ordered exit-intelligence rules against in, returning
// the single highest-priority action along with the full audit trail of
// every rule that matched. Full exit dominates partial exit; partial exit
// dominates stop widening. Safety constraints: never tighten beyond entry
// while unrealized is negative; never widen on a losing trade; partial
// exits require at least MinRMultipleForPartial.
func Evaluate(in ExitInput) ExitResult {
	result := ExitResult{Action: ActionNone, StopMultiplier: decimal.NewFromInt(1)}

	state := in.State
	if state == nil {
		return result
	}

	isLosing := in.UnrealizedPnL.IsNegative()
	minR := in.MinRMultipleForPartial
	if minR.IsZero() {
		minR = decimal.NewFromInt(1)
	}
	eligibleForPartial := !isLosing && rMultiple(in).GreaterThanOrEqual(minR)

	var fullExit, partialExit bool
	var partialPct decimal.Decimal
	stopMult := decimal.NewFromInt(1)

	// 1. Macro drift
	driftScore := decimal.Zero
	if state.Acceleration != nil {
		driftScore = state.Acceleration.MacroDriftScore
	}
	if state.Transitions.MacroFlip || driftScore.GreaterThan(decimal.NewFromFloat(0.18)) {
		result.Modifiers = append(result.Modifiers, Modifier{Tag: TagMacroDriftExitPressure, Value: driftScore})
		if driftScore.GreaterThan(decimal.NewFromFloat(0.25)) {
			fullExit = true
		} else {
			if !isLosing {
				stopMult = minDecimal(stopMult, decimal.NewFromFloat(0.75))
			}
			if eligibleForPartial {
				partialExit = true
				partialPct = decimal.NewFromFloat(0.30)
			}
		}
	}

	// 2. Acceleration decay
	if in.EntryState != nil && state.TrendPhase == types.PhaseLate && state.Acceleration != nil {
		entryPositive := false
		if in.EntryState.Acceleration != nil {
			entryPositive = in.EntryState.Acceleration.StateStrengthDelta.IsPositive()
		}
		if entryPositive && state.Acceleration.StateStrengthDelta.IsNegative() {
			result.Modifiers = append(result.Modifiers, Modifier{Tag: TagAccelerationDecay, Value: state.Acceleration.StateStrengthDelta})
			if !isLosing {
				stopMult = minDecimal(stopMult, decimal.NewFromFloat(0.8))
				result.Action = ActionTrailStop
			}
		}
	}

	// 3. Regime flip against a breakout trade
	if in.StrategyType == "BREAKOUT" && state.Transitions.RegimeFlip {
		result.Modifiers = append(result.Modifiers, Modifier{Tag: TagRegimeFlipInvalidation, Value: decimal.NewFromInt(1)})
		fullExit = true
	}

	// 4. Volatility expansion, aligned and profitable
	if in.ATRExpanding && in.TradeAlignedWithMacro && in.UnrealizedPnL.IsPositive() {
		result.Modifiers = append(result.Modifiers, Modifier{Tag: TagVolatilityExpansionProtectRun, Value: decimal.NewFromFloat(1.15)})
		if !isLosing {
			stopMult = maxDecimal(stopMult, decimal.NewFromFloat(1.15))
		}
	}

	// 5. Liquidity trap against the trade's direction, unreclaimed
	if tradeDirLiquidityTrap(in.Position.Direction, state.Liquidity) {
		result.Modifiers = append(result.Modifiers, Modifier{Tag: TagLiquidityTrapExit, Value: decimal.NewFromInt(1)})
		fullExit = true
	}

	switch {
	case fullExit:
		result.Action = ActionFullExit
		result.StopMultiplier = decimal.NewFromInt(1)
	case partialExit:
		result.Action = ActionPartialExit
		result.PartialExitPct = partialPct
		result.StopMultiplier = stopMult
	case result.Action == ActionTrailStop:
		result.StopMultiplier = stopMult
	case !stopMult.Equal(decimal.NewFromInt(1)):
		result.StopMultiplier = stopMult
		if stopMult.LessThan(decimal.NewFromInt(1)) {
			result.Action = ActionTightenStop
		} else {
			result.Action = ActionWidenStop
		}
	}

	return result
}

func tradeDirLiquidityTrap(dir types.SignalDirection, liq types.Liquidity) bool {
	if dir == types.DirectionLong {
		return liq.SweepLow && !liq.Reclaim
	}
	return liq.SweepHigh && !liq.Reclaim
}

func rMultiple(in ExitInput) decimal.Decimal {
	risk := in.Position.EntryPrice.Sub(in.Position.StopLoss).Abs()
	if risk.IsZero() {
		return decimal.Zero
	}
	moved := in.Position.CurrentPrice.Sub(in.Position.EntryPrice).Abs()
	return moved.Div(risk)
}

func minDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

func maxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}
