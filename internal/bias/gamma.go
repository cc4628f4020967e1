package bias

import (
	"fmt"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// ParseGammaOverlay decodes a gamma-context document into a GammaOverlay.
func ParseGammaOverlay(doc map[string]any) (*types.GammaOverlay, error) {
	if doc == nil {
		return nil, fmt.Errorf("bias: nil gamma document")
	}
	return &types.GammaOverlay{
		Regime:         stringField(doc, "regime", ""),
		ZeroGammaLevel: decimalField(doc, "zeroGammaLevel"),
		DistanceATRs:   decimalField(doc, "distanceAtrs"),
	}, nil
}

// MergeGamma overlays a GammaOverlay onto a copy of base, preserving every
// other field untouched.
func MergeGamma(base *types.UnifiedBiasState, overlay *types.GammaOverlay) *types.UnifiedBiasState {
	merged := *base
	merged.Gamma = overlay
	return &merged
}
