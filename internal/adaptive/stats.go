package adaptive

import (
	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// Stats is the rolling-performance summary the tuner's rules read from.
type Stats struct {
	TradeCount int

	BreakoutInRangeWinRate float64
	HighAccelAvgR          float64
	MacroDriftExitCount    int
	MacroDriftExitAvgR     float64
	LatePhaseAvgR          float64
}

// ComputeStats derives Stats from a window of closed positions.
func ComputeStats(positions []*types.Position) Stats {
	s := Stats{TradeCount: len(positions)}

	var breakoutInRangeWins, breakoutInRangeTotal int
	var highAccelRs []float64
	var macroDriftRs []float64
	var lateRs []float64

	for _, p := range positions {
		r := rMultiple(p)

		if p.Strategy == "BREAKOUT" && p.EntryState != nil && p.EntryState.RegimeType == types.RegimeRange {
			breakoutInRangeTotal++
			if p.RealizedPnL.IsPositive() {
				breakoutInRangeWins++
			}
		}

		if p.EntryState != nil && p.EntryState.Acceleration != nil {
			delta, _ := p.EntryState.Acceleration.StateStrengthDelta.Float64()
			if abs(delta) > 15 {
				highAccelRs = append(highAccelRs, r)
			}
		}

		if p.EntryState != nil && p.EntryState.Transitions.MacroFlip {
			macroDriftRs = append(macroDriftRs, r)
		}

		if p.EntryState != nil && p.EntryState.TrendPhase == types.PhaseLate {
			lateRs = append(lateRs, r)
		}
	}

	if breakoutInRangeTotal > 0 {
		s.BreakoutInRangeWinRate = float64(breakoutInRangeWins) / float64(breakoutInRangeTotal)
	}
	s.HighAccelAvgR = mean(highAccelRs)
	s.MacroDriftExitCount = len(macroDriftRs)
	s.MacroDriftExitAvgR = mean(macroDriftRs)
	s.LatePhaseAvgR = mean(lateRs)

	return s
}

// rMultiple approximates a closed position's realized R-multiple as
// realized P&L divided by the dollar risk implied by entry vs stop.
func rMultiple(p *types.Position) float64 {
	risk := p.EntryPrice.Sub(p.StopLoss).Abs()
	if risk.IsZero() || p.Quantity == 0 {
		return 0
	}
	perShareRisk := risk.Mul(decimal.NewFromInt(int64(p.Quantity)))
	r, _ := p.RealizedPnL.Div(perShareRisk).Float64()
	return r
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
