package risk

import "github.com/atlas-desktop/trading-backend/pkg/types"

// Reject reasons for the setup validator.
const (
	ReasonBreakoutWithoutSpace        = "BREAKOUT_WITHOUT_SPACE"
	ReasonNoTriggerConfirmation       = "NO_TRIGGER_CONFIRMATION"
	ReasonLiquidityTrapContinuation   = "LIQUIDITY_TRAP_CONTINUATION"
	ReasonRangeSuppressionNonMeanRevert = "RANGE_SUPPRESSION_NON_MEAN_REVERT"
)

// SetupResult is the setup validator's verdict.
type SetupResult struct {
	Valid         bool
	RejectReasons []string
}

// SetupInput bundles the fields ValidateSetup needs.
type SetupInput struct {
	Direction              types.SignalDirection
	StrategyType           string
	AllowAnticipatoryEntry bool
	State                  *types.UnifiedBiasState
}

// ValidateSetup accepts or rejects an entry setup independent of its risk
// size, collecting every matched reject reason.
func ValidateSetup(in SetupInput) SetupResult {
	state := in.State
	if state == nil {
		return SetupResult{Valid: true}
	}

	var reasons []string
	long := in.Direction == types.DirectionLong

	if state.RiskContext.EntryModeHint == types.EntryModeBreakout {
		if long && state.Space.RoomToResistance == types.RoomLow {
			reasons = append(reasons, ReasonBreakoutWithoutSpace)
		}
		if !long && state.Space.RoomToSupport == types.RoomLow {
			reasons = append(reasons, ReasonBreakoutWithoutSpace)
		}
	}

	if !state.Trigger.Triggered && !in.AllowAnticipatoryEntry {
		reasons = append(reasons, ReasonNoTriggerConfirmation)
	}

	if long && state.Liquidity.SweepHigh && !state.Liquidity.Reclaim {
		reasons = append(reasons, ReasonLiquidityTrapContinuation)
	}
	if !long && state.Liquidity.SweepLow && !state.Liquidity.Reclaim {
		reasons = append(reasons, ReasonLiquidityTrapContinuation)
	}

	if state.RegimeType == types.RegimeRange && in.StrategyType != "MEAN_REVERT" {
		reasons = append(reasons, ReasonRangeSuppressionNonMeanRevert)
	}

	if len(reasons) == 0 {
		return SetupResult{Valid: true}
	}
	return SetupResult{Valid: false, RejectReasons: reasons}
}
