package engines_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/engines"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func baseInput(dir types.SignalDirection) engines.Input {
	return engines.Input{
		Signal: &types.Signal{
			ID:              types.NewID(),
			Symbol:          "SPY",
			Direction:       dir,
			SourceTimestamp: time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC),
		},
		Context: &types.MarketContext{
			CurrentPrice: decimal.NewFromInt(500),
		},
	}
}

func TestEngineA_DeclinesWithoutTrigger(t *testing.T) {
	e := engines.NewEngineA(zap.NewNop())
	in := baseInput(types.DirectionLong)
	in.State = &types.UnifiedBiasState{Bias: types.BiasBullish, Trigger: types.Trigger{Triggered: false}}

	rec, err := e.Invoke(context.Background(), in)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestEngineA_DeclinesOnBiasDisagreement(t *testing.T) {
	e := engines.NewEngineA(zap.NewNop())
	in := baseInput(types.DirectionLong)
	in.State = &types.UnifiedBiasState{Bias: types.BiasBearish, Trigger: types.Trigger{Triggered: true}}

	rec, err := e.Invoke(context.Background(), in)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestEngineA_RecommendsOnAgreementAndTrigger(t *testing.T) {
	e := engines.NewEngineA(zap.NewNop())
	in := baseInput(types.DirectionLong)
	in.State = &types.UnifiedBiasState{Bias: types.BiasBullish, Trigger: types.Trigger{Triggered: true}}

	rec, err := e.Invoke(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, types.EngineA, rec.Engine)
	assert.True(t, rec.Strike.GreaterThan(in.Context.CurrentPrice), "long recommendation strikes above current price")
}

func TestEngineB_DeclinesBelowThreshold(t *testing.T) {
	e := engines.NewEngineB(zap.NewNop())
	in := baseInput(types.DirectionShort)
	in.State = &types.UnifiedBiasState{
		Bias:       types.BiasBullish, // disagrees with short -> trend voter votes no
		RegimeType: types.RegimeRange,
		Liquidity:  types.Liquidity{SweepHigh: true, Reclaim: false}, // liquidity voter reads only SweepLow for a short, so it votes yes; 0.3 yes-weight stays below threshold
	}

	rec, err := e.Invoke(context.Background(), in)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestEngineB_RecommendsWhenWeightedVoteClearsThreshold(t *testing.T) {
	e := engines.NewEngineB(zap.NewNop())
	in := baseInput(types.DirectionLong)
	in.State = &types.UnifiedBiasState{
		Bias:       types.BiasBullish,
		RegimeType: types.RegimeTrend,
		Acceleration: &types.Acceleration{
			StateStrengthDelta: decimal.NewFromInt(5),
		},
		Liquidity: types.Liquidity{SweepLow: false},
	}

	rec, err := e.Invoke(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, types.EngineB, rec.Engine)
}

func TestEngines_ReceiveStructurallyEqualInput(t *testing.T) {
	// The orchestrator constructs one engines.Input value and passes it by
	// value to both invokers; confirm neither engine mutates its copy in a
	// way that would break that equality guarantee for the other.
	in := baseInput(types.DirectionLong)
	in.State = &types.UnifiedBiasState{Bias: types.BiasBullish, Trigger: types.Trigger{Triggered: true}, RegimeType: types.RegimeTrend}

	before := in
	a := engines.NewEngineA(zap.NewNop())
	b := engines.NewEngineB(zap.NewNop())

	_, _ = a.Invoke(context.Background(), in)
	_, _ = b.Invoke(context.Background(), in)

	assert.Equal(t, before.Signal, in.Signal)
	assert.Equal(t, before.Context, in.Context)
	assert.Equal(t, before.State, in.State)
}
