package marketdata

import (
	"gonum.org/v1/gonum/stat"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// IndicatorEngine derives named indicators from a candle series in
// process, avoiding a dedicated provider call per indicator.
type IndicatorEngine struct{}

// NewIndicatorEngine creates an IndicatorEngine.
func NewIndicatorEngine() *IndicatorEngine {
	return &IndicatorEngine{}
}

// Derive computes a fixed set of indicators from candles, ordered oldest
// to newest. Returns an empty map only when candles is empty; a shorter
// history still yields every key, computed over the candles available (a
// single candle gives stddev20 and atr14 of 0 and rsi14 of 50).
func (e *IndicatorEngine) Derive(candles []types.OHLCV) map[string]float64 {
	out := map[string]float64{}
	if len(candles) == 0 {
		return out
	}

	closes := closesOf(candles)
	out["sma20"] = sma(closes, 20)
	out["sma50"] = sma(closes, 50)
	out["stddev20"] = stddev(closes, 20)
	out["rsi14"] = rsi(closes, 14)
	out["atr14"] = atr(candles, 14)
	return out
}

func closesOf(candles []types.OHLCV) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i], _ = c.Close.Float64()
	}
	return closes
}

func sma(closes []float64, period int) float64 {
	window := lastN(closes, period)
	if len(window) == 0 {
		return 0
	}
	return stat.Mean(window, nil)
}

func stddev(closes []float64, period int) float64 {
	window := lastN(closes, period)
	if len(window) < 2 {
		return 0
	}
	return stat.StdDev(window, nil)
}

// rsi computes the classic Wilder relative-strength index over period
// closes using a simple (not smoothed) average of gains and losses.
func rsi(closes []float64, period int) float64 {
	window := lastN(closes, period+1)
	if len(window) < 2 {
		return 50
	}
	var gains, losses []float64
	for i := 1; i < len(window); i++ {
		delta := window[i] - window[i-1]
		if delta >= 0 {
			gains = append(gains, delta)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -delta)
		}
	}
	avgGain := stat.Mean(gains, nil)
	avgLoss := stat.Mean(losses, nil)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// atr computes the average true range over period candles.
func atr(candles []types.OHLCV, period int) float64 {
	window := lastNCandles(candles, period+1)
	if len(window) < 2 {
		return 0
	}
	trueRanges := make([]float64, 0, len(window)-1)
	for i := 1; i < len(window); i++ {
		high, _ := window[i].High.Float64()
		low, _ := window[i].Low.Float64()
		prevClose, _ := window[i-1].Close.Float64()
		tr := max3(high-low, abs(high-prevClose), abs(low-prevClose))
		trueRanges = append(trueRanges, tr)
	}
	return stat.Mean(trueRanges, nil)
}

func lastN(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

func lastNCandles(candles []types.OHLCV, n int) []types.OHLCV {
	if len(candles) <= n {
		return candles
	}
	return candles[len(candles)-n:]
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
