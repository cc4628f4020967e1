package risk_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atlas-desktop/trading-backend/internal/risk"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func TestValidateSetup_NilStateIsValid(t *testing.T) {
	result := risk.ValidateSetup(risk.SetupInput{Direction: types.DirectionLong})
	assert.True(t, result.Valid)
}

func TestValidateSetup_BreakoutWithoutSpaceRejectsLong(t *testing.T) {
	result := risk.ValidateSetup(risk.SetupInput{
		Direction:              types.DirectionLong,
		AllowAnticipatoryEntry: true,
		State: &types.UnifiedBiasState{
			RiskContext: types.RiskContext{EntryModeHint: types.EntryModeBreakout},
			Space:       types.Space{RoomToResistance: types.RoomLow},
			Trigger:     types.Trigger{Triggered: true},
		},
	})
	assert.False(t, result.Valid)
	assert.Contains(t, result.RejectReasons, risk.ReasonBreakoutWithoutSpace)
}

func TestValidateSetup_NoTriggerConfirmationRejectsUnlessAnticipatory(t *testing.T) {
	state := &types.UnifiedBiasState{Trigger: types.Trigger{Triggered: false}}

	result := risk.ValidateSetup(risk.SetupInput{Direction: types.DirectionLong, State: state})
	assert.False(t, result.Valid)
	assert.Contains(t, result.RejectReasons, risk.ReasonNoTriggerConfirmation)

	result = risk.ValidateSetup(risk.SetupInput{Direction: types.DirectionLong, State: state, AllowAnticipatoryEntry: true})
	assert.NotContains(t, result.RejectReasons, risk.ReasonNoTriggerConfirmation)
}

func TestValidateSetup_LiquidityTrapContinuationSymmetricByDirection(t *testing.T) {
	longTrap := risk.ValidateSetup(risk.SetupInput{
		Direction:              types.DirectionLong,
		AllowAnticipatoryEntry: true,
		State: &types.UnifiedBiasState{
			Trigger:   types.Trigger{Triggered: true},
			Liquidity: types.Liquidity{SweepHigh: true, Reclaim: false},
		},
	})
	assert.Contains(t, longTrap.RejectReasons, risk.ReasonLiquidityTrapContinuation)

	shortTrap := risk.ValidateSetup(risk.SetupInput{
		Direction:              types.DirectionShort,
		AllowAnticipatoryEntry: true,
		State: &types.UnifiedBiasState{
			Trigger:   types.Trigger{Triggered: true},
			Liquidity: types.Liquidity{SweepLow: true, Reclaim: false},
		},
	})
	assert.Contains(t, shortTrap.RejectReasons, risk.ReasonLiquidityTrapContinuation)
}

func TestValidateSetup_RangeSuppressionRejectsNonMeanRevertStrategies(t *testing.T) {
	state := &types.UnifiedBiasState{RegimeType: types.RegimeRange, Trigger: types.Trigger{Triggered: true}}

	result := risk.ValidateSetup(risk.SetupInput{Direction: types.DirectionLong, StrategyType: "BREAKOUT", State: state})
	assert.Contains(t, result.RejectReasons, risk.ReasonRangeSuppressionNonMeanRevert)

	result = risk.ValidateSetup(risk.SetupInput{Direction: types.DirectionLong, StrategyType: "MEAN_REVERT", State: state})
	assert.NotContains(t, result.RejectReasons, risk.ReasonRangeSuppressionNonMeanRevert)
}

func TestValidateSetup_AllClearIsValid(t *testing.T) {
	result := risk.ValidateSetup(risk.SetupInput{
		Direction: types.DirectionLong,
		State: &types.UnifiedBiasState{
			RegimeType: types.RegimeTrend,
			Trigger:    types.Trigger{Triggered: true},
		},
	})
	assert.True(t, result.Valid)
	assert.Empty(t, result.RejectReasons)
}
