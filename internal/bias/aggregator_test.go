package bias

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func TestResolve_NilSourceReturnsOtherUnchanged(t *testing.T) {
	mtf := &types.UnifiedBiasState{Symbol: "SPY", BiasScore: decimal.NewFromFloat(0.5)}
	assert.Same(t, mtf, Resolve(mtf, nil, DefaultSourceWeights()))

	gamma := &types.UnifiedBiasState{Symbol: "SPY", BiasScore: decimal.NewFromFloat(-0.3)}
	assert.Same(t, gamma, Resolve(nil, gamma, DefaultSourceWeights()))
}

func TestResolve_WeightedBlendFavorsHeavierSource(t *testing.T) {
	mtf := &types.UnifiedBiasState{Symbol: "SPY", BiasScore: decimal.NewFromFloat(1.0)}
	gamma := &types.UnifiedBiasState{Symbol: "SPY", BiasScore: decimal.NewFromFloat(-1.0)}

	merged := Resolve(mtf, gamma, SourceWeights{MTF: 0.7, Gamma: 0.3})
	score, _ := merged.BiasScore.Float64()
	assert.InDelta(t, 0.4, score, 0.0001) // 0.7*1 + 0.3*-1
	assert.Equal(t, types.BiasBullish, merged.Bias)
}

func TestResolve_NeutralBandAroundZero(t *testing.T) {
	mtf := &types.UnifiedBiasState{Symbol: "SPY", BiasScore: decimal.NewFromFloat(0.05)}
	gamma := &types.UnifiedBiasState{Symbol: "SPY", BiasScore: decimal.NewFromFloat(-0.05)}
	merged := Resolve(mtf, gamma, SourceWeights{MTF: 0.5, Gamma: 0.5})
	assert.Equal(t, types.BiasNeutral, merged.Bias)
}

func TestAggregator_LatestNilBeforeAnyIngest(t *testing.T) {
	agg := New(zap.NewNop(), DefaultSourceWeights())
	assert.Nil(t, agg.Latest("SPY"))
}

func TestAggregator_IngestMTF_RejectsNonV3Payload(t *testing.T) {
	agg := New(zap.NewNop(), DefaultSourceWeights())
	_, err := agg.IngestMTF(map[string]any{"foo": "bar"})
	assert.Error(t, err)
}

func TestAggregator_BlendLocked_SingleSourcePassesThroughUnblended(t *testing.T) {
	agg := New(zap.NewNop(), DefaultSourceWeights())
	agg.sources["SPY"] = &sourceState{mtf: &types.UnifiedBiasState{Symbol: "SPY", BiasScore: decimal.NewFromFloat(0.8)}}
	merged := agg.blendLocked("SPY")
	assert.Equal(t, decimal.NewFromFloat(0.8), merged.BiasScore)
}

func TestAggregator_BlendLocked_UnknownSymbolReturnsNil(t *testing.T) {
	agg := New(zap.NewNop(), DefaultSourceWeights())
	assert.Nil(t, agg.blendLocked("UNKNOWN"))
}
