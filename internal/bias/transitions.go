package bias

import "github.com/atlas-desktop/trading-backend/pkg/types"

// DetectTransitions computes what changed between prev and curr. If prev
// is nil, only LiquidityEvent may be true, since every boolean flag is
// considered to have transitioned false→true on first observation.
func DetectTransitions(prev, curr *types.UnifiedBiasState) types.Transitions {
	if curr == nil {
		return types.Transitions{}
	}
	if prev == nil {
		return types.Transitions{
			LiquidityEvent: anyLiquidityFlagSet(curr.Liquidity),
		}
	}

	t := types.Transitions{
		BiasFlip:     curr.Bias != prev.Bias,
		RegimeFlip:   curr.RegimeType != prev.RegimeType,
		MacroFlip:    curr.MacroClass != prev.MacroClass,
		IntentChange: curr.IntentType != prev.IntentType,
	}

	t.LiquidityEvent = falseToTrue(prev.Liquidity.SweepHigh, curr.Liquidity.SweepHigh) ||
		falseToTrue(prev.Liquidity.SweepLow, curr.Liquidity.SweepLow) ||
		falseToTrue(prev.Liquidity.Reclaim, curr.Liquidity.Reclaim) ||
		falseToTrue(prev.Liquidity.EqualHighCluster, curr.Liquidity.EqualHighCluster) ||
		falseToTrue(prev.Liquidity.EqualLowCluster, curr.Liquidity.EqualLowCluster)

	t.ExpansionEvent = prev.ATRState15m != types.ATRExpanding && curr.ATRState15m == types.ATRExpanding
	t.CompressionEvent = prev.ATRState15m != types.ATRContracting && curr.ATRState15m == types.ATRContracting

	return t
}

func falseToTrue(prev, curr bool) bool {
	return !prev && curr
}

func anyLiquidityFlagSet(l types.Liquidity) bool {
	return l.SweepHigh || l.SweepLow || l.Reclaim || l.EqualHighCluster || l.EqualLowCluster
}
