package risk

import "github.com/atlas-desktop/trading-backend/pkg/types"

// GuardVerdict is ALLOW or BLOCK.
type GuardVerdict string

const (
	VerdictAllow GuardVerdict = "ALLOW"
	VerdictBlock GuardVerdict = "BLOCK"
)

// Reason codes for the portfolio guard.
const (
	ReasonMacroDriftGuard     = "MACRO_DRIFT_GUARD"
	ReasonRangeBreakoutBlocked = "RANGE_BREAKOUT_BLOCKED"
	ReasonMacroBiasCluster    = "MACRO_BIAS_CLUSTER"
)

// GuardResult is the portfolio guard's verdict plus every matched reason.
type GuardResult struct {
	Verdict         GuardVerdict
	Reasons         []string
	DefinedRiskOnly bool
}

// CandidateTrade bundles the fields the portfolio guard evaluates.
type CandidateTrade struct {
	Direction    types.SignalDirection
	StrategyType string
	State        *types.UnifiedBiasState
}

// OpenPositionView is the minimal open-position shape the guard needs to
// detect a macro bias cluster.
type OpenPositionView struct {
	Direction  types.SignalDirection
	MacroClass types.MacroClass
}

// MacroDriftThreshold is the default threshold for ReasonMacroDriftGuard.
const MacroDriftThreshold = 0.18

// EvaluateGuard runs the portfolio guard's ordered rules against candidate
// given the account's open positions, returning every matched BLOCK
// reason (the first match still determines DefinedRiskOnly from its own
// rule).
func EvaluateGuard(candidate CandidateTrade, openPositions []OpenPositionView, macroDriftThreshold float64) GuardResult {
	var reasons []string
	definedRiskOnly := false

	state := candidate.State
	if state != nil {
		driftScore := 0.0
		if state.Acceleration != nil {
			driftScore, _ = state.Acceleration.MacroDriftScore.Float64()
		}
		if state.Transitions.MacroFlip || driftScore > macroDriftThreshold {
			reasons = append(reasons, ReasonMacroDriftGuard)
			definedRiskOnly = true
		}

		chopScore, _ := state.ChopScore.Float64()
		if state.RegimeType == types.RegimeRange && chopScore > 70 && candidate.StrategyType == "BREAKOUT" {
			reasons = append(reasons, ReasonRangeBreakoutBlocked)
		}

		if isBearishConfirmed(state.MacroClass) {
			correlated := 0
			for _, p := range openPositions {
				if p.Direction == types.DirectionLong && isBearishConfirmed(p.MacroClass) {
					correlated++
				}
			}
			if correlated >= 3 {
				reasons = append(reasons, ReasonMacroBiasCluster)
			}
		}
	}

	if len(reasons) == 0 {
		return GuardResult{Verdict: VerdictAllow}
	}
	return GuardResult{Verdict: VerdictBlock, Reasons: reasons, DefinedRiskOnly: definedRiskOnly}
}

func isBearishConfirmed(macro types.MacroClass) bool {
	return macro == types.MacroBreakdownConfirmed
}
