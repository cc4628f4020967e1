package risk_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/atlas-desktop/trading-backend/internal/risk"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func TestEvaluateGuard_NilStateAllows(t *testing.T) {
	result := risk.EvaluateGuard(risk.CandidateTrade{Direction: types.DirectionLong}, nil, risk.MacroDriftThreshold)
	assert.Equal(t, risk.VerdictAllow, result.Verdict)
}

func TestEvaluateGuard_MacroDriftBlocksWithDefinedRiskOnly(t *testing.T) {
	candidate := risk.CandidateTrade{
		Direction: types.DirectionLong,
		State: &types.UnifiedBiasState{
			Transitions:  types.Transitions{MacroFlip: true},
			Acceleration: &types.Acceleration{MacroDriftScore: decimal.NewFromFloat(0.22)},
		},
	}
	result := risk.EvaluateGuard(candidate, nil, 0.18)
	assert.Equal(t, risk.VerdictBlock, result.Verdict)
	assert.Contains(t, result.Reasons, risk.ReasonMacroDriftGuard)
	assert.True(t, result.DefinedRiskOnly)
}

func TestEvaluateGuard_RangeBreakoutBlocked(t *testing.T) {
	candidate := risk.CandidateTrade{
		Direction:    types.DirectionLong,
		StrategyType: "BREAKOUT",
		State: &types.UnifiedBiasState{
			RegimeType: types.RegimeRange,
			ChopScore:  decimal.NewFromInt(75),
		},
	}
	result := risk.EvaluateGuard(candidate, nil, risk.MacroDriftThreshold)
	assert.Equal(t, risk.VerdictBlock, result.Verdict)
	assert.Contains(t, result.Reasons, risk.ReasonRangeBreakoutBlocked)
}

func TestEvaluateGuard_MacroBiasClusterRequiresThreeCorrelatedLongs(t *testing.T) {
	candidate := risk.CandidateTrade{
		Direction: types.DirectionLong,
		State:     &types.UnifiedBiasState{MacroClass: types.MacroBreakdownConfirmed},
	}
	open := []risk.OpenPositionView{
		{Direction: types.DirectionLong, MacroClass: types.MacroBreakdownConfirmed},
		{Direction: types.DirectionLong, MacroClass: types.MacroBreakdownConfirmed},
	}
	result := risk.EvaluateGuard(candidate, open, risk.MacroDriftThreshold)
	assert.Equal(t, risk.VerdictAllow, result.Verdict, "only 2 correlated longs open, below the 3-position threshold")

	open = append(open, risk.OpenPositionView{Direction: types.DirectionLong, MacroClass: types.MacroBreakdownConfirmed})
	result = risk.EvaluateGuard(candidate, open, risk.MacroDriftThreshold)
	assert.Equal(t, risk.VerdictBlock, result.Verdict)
	assert.Contains(t, result.Reasons, risk.ReasonMacroBiasCluster)
}

func TestEvaluateGuard_AllClearAllows(t *testing.T) {
	candidate := risk.CandidateTrade{
		Direction: types.DirectionLong,
		State:     &types.UnifiedBiasState{RegimeType: types.RegimeTrend},
	}
	result := risk.EvaluateGuard(candidate, nil, risk.MacroDriftThreshold)
	assert.Equal(t, risk.VerdictAllow, result.Verdict)
	assert.Empty(t, result.Reasons)
}
