package bias

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func TestDetectTransitions_NilPrevOnlyLiquidityEventPossible(t *testing.T) {
	curr := &types.UnifiedBiasState{
		Bias:       types.BiasBullish,
		RegimeType: types.RegimeTrend,
		Liquidity:  types.Liquidity{SweepHigh: true},
	}
	transitions := DetectTransitions(nil, curr)
	assert.True(t, transitions.LiquidityEvent)
	assert.False(t, transitions.BiasFlip)
	assert.False(t, transitions.RegimeFlip)
}

func TestDetectTransitions_NilCurrReturnsZeroValue(t *testing.T) {
	prev := &types.UnifiedBiasState{Bias: types.BiasBullish}
	assert.Equal(t, types.Transitions{}, DetectTransitions(prev, nil))
}

func TestDetectTransitions_FlagsEveryFieldThatChanged(t *testing.T) {
	prev := &types.UnifiedBiasState{
		Bias:       types.BiasBullish,
		RegimeType: types.RegimeTrend,
		MacroClass: types.MacroTrendUp,
		IntentType: types.IntentBreakout,
	}
	curr := &types.UnifiedBiasState{
		Bias:       types.BiasBearish,
		RegimeType: types.RegimeRange,
		MacroClass: types.MacroBreakdownConfirmed,
		IntentType: types.IntentMeanRevert,
	}
	transitions := DetectTransitions(prev, curr)
	assert.True(t, transitions.BiasFlip)
	assert.True(t, transitions.RegimeFlip)
	assert.True(t, transitions.MacroFlip)
	assert.True(t, transitions.IntentChange)
}

func TestDetectTransitions_LiquidityEventOnlyOnFalseToTrue(t *testing.T) {
	prev := &types.UnifiedBiasState{Liquidity: types.Liquidity{SweepHigh: true}}
	curr := &types.UnifiedBiasState{Liquidity: types.Liquidity{SweepHigh: true}}
	assert.False(t, DetectTransitions(prev, curr).LiquidityEvent, "already-true flag carrying over is not a new event")

	curr2 := &types.UnifiedBiasState{Liquidity: types.Liquidity{SweepHigh: true, SweepLow: true}}
	assert.True(t, DetectTransitions(prev, curr2).LiquidityEvent)
}

func TestDetectTransitions_ExpansionAndCompressionEdges(t *testing.T) {
	prev := &types.UnifiedBiasState{ATRState15m: types.ATRStable}
	expanding := &types.UnifiedBiasState{ATRState15m: types.ATRExpanding}
	contracting := &types.UnifiedBiasState{ATRState15m: types.ATRContracting}

	assert.True(t, DetectTransitions(prev, expanding).ExpansionEvent)
	assert.False(t, DetectTransitions(prev, expanding).CompressionEvent)
	assert.True(t, DetectTransitions(prev, contracting).CompressionEvent)
	assert.False(t, DetectTransitions(prev, contracting).ExpansionEvent)
}
