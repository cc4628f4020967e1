package risk_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-desktop/trading-backend/internal/risk"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func TestMultiplier_NilStateRequiredFails(t *testing.T) {
	_, _, err := risk.Multiplier(risk.Input{BaseRiskPct: 1.0, RequireState: true})
	assert.ErrorIs(t, err, risk.ErrModelStateMissing)
}

func TestMultiplier_NilStateNotRequiredReturnsClampedBase(t *testing.T) {
	mult, bd, err := risk.Multiplier(risk.Input{BaseRiskPct: 2.0})
	require.NoError(t, err)
	assert.Equal(t, 1.5, mult, "base risk pct above the ceiling clamps to 1.5")
	assert.Equal(t, mult, bd.Final)
}

func TestMultiplier_BoundsHoldAcrossModifierCombinations(t *testing.T) {
	macroClasses := []types.MacroClass{
		types.MacroBreakdownConfirmed, types.MacroBreakoutConfirmed,
		types.MacroTrendUp, types.MacroTrendDown, types.MacroNeutral,
	}
	regimes := []types.RegimeType{types.RegimeTrend, types.RegimeRange, types.RegimeTransition}
	directions := []types.SignalDirection{types.DirectionLong, types.DirectionShort}
	deltas := []float64{-30, -20, -5, 0, 15, 30}
	phases := []types.TrendPhase{types.PhaseEarly, types.PhaseMid, types.PhaseLate}
	strategies := []string{"BREAKOUT", "MEAN_REVERT", "PULLBACK"}

	for _, macro := range macroClasses {
		for _, regime := range regimes {
			for _, dir := range directions {
				for _, delta := range deltas {
					for _, phase := range phases {
						for _, strategy := range strategies {
							for _, stale := range []bool{true, false} {
								state := &types.UnifiedBiasState{
									MacroClass:     macro,
									RegimeType:     regime,
									AlignmentScore: decimal.NewFromInt(80),
									TrendPhase:     phase,
									Acceleration:   &types.Acceleration{StateStrengthDelta: decimal.NewFromFloat(delta)},
									IsStale:        stale,
								}
								mult, bd, err := risk.Multiplier(risk.Input{
									BaseRiskPct:          1.0,
									Direction:            dir,
									StrategyType:         strategy,
									State:                state,
									AggregatorMultiplier: 1.0,
								})
								require.NoError(t, err)
								require.GreaterOrEqual(t, mult, 0.25)
								require.LessOrEqual(t, mult, 1.5)
								require.Equal(t, mult, bd.Final)
							}
						}
					}
				}
			}
		}
	}
}

func TestMultiplier_RangeBreakoutDampensSize(t *testing.T) {
	_, bd, err := risk.Multiplier(risk.Input{
		BaseRiskPct:          1.0,
		StrategyType:         "BREAKOUT",
		AggregatorMultiplier: 1.0,
		State:                &types.UnifiedBiasState{RegimeType: types.RegimeRange},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.7, bd.Regime)
}

func TestMultiplier_HighAlignmentTrendBoostsSize(t *testing.T) {
	_, bd, err := risk.Multiplier(risk.Input{
		BaseRiskPct:          1.0,
		AggregatorMultiplier: 1.0,
		State: &types.UnifiedBiasState{
			RegimeType:     types.RegimeTrend,
			AlignmentScore: decimal.NewFromInt(80),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1.1, bd.Regime)
}

func TestMultiplier_StaleStateDampensSize(t *testing.T) {
	_, bd, err := risk.Multiplier(risk.Input{
		BaseRiskPct:          1.0,
		AggregatorMultiplier: 1.0,
		State:                &types.UnifiedBiasState{IsStale: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.7, bd.Staleness)
}
