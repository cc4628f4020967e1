// Package bias maintains the latest UnifiedBiasState per symbol, merging
// payloads from upstream bias-publishing sources (a multi-timeframe engine,
// a gamma-exposure engine) into a single state consumed by the risk model,
// portfolio guard, setup validator, and exit intelligence.
package bias

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/atlas-desktop/trading-backend/internal/risk"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// SourceWeights configures the conflict resolver's weighted blend.
type SourceWeights struct {
	MTF   float64
	Gamma float64
}

// DefaultSourceWeights matches the aggregator's documented defaults.
func DefaultSourceWeights() SourceWeights {
	return SourceWeights{MTF: 0.7, Gamma: 0.3}
}

// sourceState is one upstream source's most recent contribution for a
// symbol, kept so the conflict resolver can re-blend whenever either
// source updates.
type sourceState struct {
	mtf   *types.UnifiedBiasState
	gamma *types.UnifiedBiasState
}

// Aggregator holds the latest UnifiedBiasState per symbol in process
// memory and merges new payloads into it.
type Aggregator struct {
	logger  *zap.Logger
	weights SourceWeights

	mu      sync.RWMutex
	current map[string]*types.UnifiedBiasState
	sources map[string]*sourceState
}

// New creates an Aggregator using weights for its conflict resolver.
func New(logger *zap.Logger, weights SourceWeights) *Aggregator {
	return &Aggregator{
		logger:  logger.Named("bias.aggregator"),
		weights: weights,
		current: make(map[string]*types.UnifiedBiasState),
		sources: make(map[string]*sourceState),
	}
}

// Latest returns the current UnifiedBiasState for symbol, or nil if none
// has been observed yet.
func (a *Aggregator) Latest(symbol string) *types.UnifiedBiasState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current[symbol]
}

// IngestMTF validates and normalizes a V3 MTF payload, computes its
// transitions against the prior state, stores it as the symbol's MTF
// source contribution, and re-blends the symbol's published state.
func (a *Aggregator) IngestMTF(payload map[string]any) (*types.UnifiedBiasState, error) {
	if !IsV3Payload(payload) {
		return nil, fmt.Errorf("bias: payload is not a recognized V3 shape")
	}
	state, err := Normalize(payload)
	if err != nil {
		return nil, fmt.Errorf("bias: normalize: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	prev := a.current[state.Symbol]
	state.Transitions = DetectTransitions(prev, state)

	src := a.sources[state.Symbol]
	if src == nil {
		src = &sourceState{}
		a.sources[state.Symbol] = src
	}
	src.mtf = state

	merged := a.withEffective(a.blendLocked(state.Symbol))
	a.current[state.Symbol] = merged
	return merged, nil
}

// IngestGammaOverlay overlays a gamma-context document onto the symbol's
// tracked gamma source contribution and re-blends.
func (a *Aggregator) IngestGammaOverlay(symbol string, gammaDoc map[string]any) (*types.UnifiedBiasState, error) {
	overlay, err := ParseGammaOverlay(gammaDoc)
	if err != nil {
		return nil, fmt.Errorf("bias: parse gamma overlay: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	base := a.current[symbol]
	if base == nil {
		base = a.sources[symbol].safeMTF()
	}
	if base == nil {
		return nil, fmt.Errorf("bias: no base state for symbol %s to overlay gamma onto", symbol)
	}

	merged := MergeGamma(base, overlay)

	src := a.sources[symbol]
	if src == nil {
		src = &sourceState{}
		a.sources[symbol] = src
	}
	src.gamma = merged

	result := a.withEffective(a.blendLocked(symbol))
	a.current[symbol] = result
	return result, nil
}

// safeMTF returns the MTF contribution, or nil if s is nil.
func (s *sourceState) safeMTF() *types.UnifiedBiasState {
	if s == nil {
		return nil
	}
	return s.mtf
}

// withEffective returns a copy of state with its Effective block populated
// from the risk model's current read, so a Latest caller gets a
// self-contained suppression verdict without re-deriving it. Returns a
// copy rather than mutating state in place, since a single-source blend
// shares its pointer with the tracked source contribution.
func (a *Aggregator) withEffective(state *types.UnifiedBiasState) *types.UnifiedBiasState {
	if state == nil {
		return nil
	}
	out := *state
	out.Effective = risk.EvaluateEffective(&out, risk.DefaultDocument())
	return &out
}

// blendLocked resolves the conflict between a symbol's tracked source
// contributions. Caller must hold a.mu.
func (a *Aggregator) blendLocked(symbol string) *types.UnifiedBiasState {
	src := a.sources[symbol]
	if src == nil {
		return nil
	}
	if src.mtf != nil && src.gamma == nil {
		return src.mtf
	}
	if src.gamma != nil && src.mtf == nil {
		return src.gamma
	}
	return Resolve(src.mtf, src.gamma, a.weights)
}

// Resolve blends two sources' biasScore (and derivatively bias) by a
// weighted combination, returning the MTF state's structure with the
// blended score. When only one source is present it is returned
// unchanged.
func Resolve(mtf, gamma *types.UnifiedBiasState, weights SourceWeights) *types.UnifiedBiasState {
	if mtf == nil {
		return gamma
	}
	if gamma == nil {
		return mtf
	}

	mtfScore, _ := mtf.BiasScore.Float64()
	gammaScore, _ := gamma.BiasScore.Float64()

	blended := stat.Mean([]float64{mtfScore, gammaScore}, []float64{weights.MTF, weights.Gamma})

	merged := *mtf
	merged.BiasScore = decimal.NewFromFloat(blended)
	merged.Bias = biasFromScore(blended)
	merged.Gamma = gamma.Gamma
	return &merged
}

func biasFromScore(score float64) types.Bias {
	switch {
	case score > 0.1:
		return types.BiasBullish
	case score < -0.1:
		return types.BiasBearish
	default:
		return types.BiasNeutral
	}
}
