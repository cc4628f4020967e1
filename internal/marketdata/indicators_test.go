package marketdata

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func candle(closePrice float64) types.OHLCV {
	c := decimal.NewFromFloat(closePrice)
	return types.OHLCV{
		Open:  c,
		High:  c.Add(decimal.NewFromFloat(0.5)),
		Low:   c.Sub(decimal.NewFromFloat(0.5)),
		Close: c,
	}
}

func TestIndicatorEngine_Derive_Empty(t *testing.T) {
	e := NewIndicatorEngine()
	out := e.Derive(nil)
	assert.Empty(t, out)
}

func TestIndicatorEngine_Derive_RisingSeries(t *testing.T) {
	e := NewIndicatorEngine()
	candles := make([]types.OHLCV, 0, 25)
	for i := 0; i < 25; i++ {
		candles = append(candles, candle(100+float64(i)))
	}

	out := e.Derive(candles)
	require.Contains(t, out, "sma20")
	require.Contains(t, out, "rsi14")
	require.Contains(t, out, "atr14")

	// A monotonically rising series has no losing bars, so RSI saturates.
	assert.InDelta(t, 100, out["rsi14"], 0.001)
	// sma20 is the mean of the last 20 closes: 105..124 -> mean 114.5
	assert.InDelta(t, 114.5, out["sma20"], 0.001)
}

func TestIndicatorEngine_Derive_FlatSeriesHasZeroStdDevAndSaturatedRSI(t *testing.T) {
	e := NewIndicatorEngine()
	candles := make([]types.OHLCV, 0, 25)
	for i := 0; i < 25; i++ {
		candles = append(candles, candle(100))
	}

	out := e.Derive(candles)
	assert.InDelta(t, 0, out["stddev20"], 0.0001)
	// no gains or losses at all -> avgLoss is 0 -> RSI defined as 100
	assert.InDelta(t, 100, out["rsi14"], 0.0001)
}
