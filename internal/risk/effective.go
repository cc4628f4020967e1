package risk

import (
	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// EvaluateEffective computes the bias aggregator's own risk-adjusted
// summary of state: whether the current read would suppress a trade
// outright, its bias score and confidence scaled by the resulting
// multiplier, the multiplier itself, and the reasons behind any
// suppression. The aggregator calls this once per blend so every
// consumer of UnifiedBiasState.Effective sees a self-contained verdict
// without re-deriving it from the raw state.
func EvaluateEffective(state *types.UnifiedBiasState, doc Document) types.Effective {
	if state == nil {
		return types.Effective{RiskMultiplier: decimal.NewFromFloat(1.0)}
	}

	direction := directionFromBias(state.Bias)
	strategyType := StrategyTypeFromIntent(state.IntentType)

	var notes []string
	suppressed := false

	if direction != "" {
		candidate := CandidateTrade{Direction: direction, StrategyType: strategyType, State: state}
		if guard := EvaluateGuard(candidate, nil, doc.MacroDriftThreshold); guard.Verdict == VerdictBlock {
			suppressed = true
			notes = append(notes, guard.Reasons...)
		}

		setup := ValidateSetup(SetupInput{Direction: direction, StrategyType: strategyType, State: state})
		if !setup.Valid {
			suppressed = true
			notes = append(notes, setup.RejectReasons...)
		}
	}

	mult, _, err := Multiplier(Input{
		BaseRiskPct:  1.0,
		Direction:    direction,
		StrategyType: strategyType,
		State:        state,
		Document:     doc,
	})
	if err != nil {
		mult = 1.0
	}
	if suppressed {
		mult = 0
	}

	multDec := decimal.NewFromFloat(mult)
	return types.Effective{
		TradeSuppressed:     suppressed,
		EffectiveBiasScore:  state.BiasScore.Mul(multDec),
		EffectiveConfidence: state.Confidence.Mul(multDec),
		RiskMultiplier:      multDec,
		Notes:               notes,
	}
}

func directionFromBias(bias types.Bias) types.SignalDirection {
	switch bias {
	case types.BiasBullish:
		return types.DirectionLong
	case types.BiasBearish:
		return types.DirectionShort
	default:
		return ""
	}
}
