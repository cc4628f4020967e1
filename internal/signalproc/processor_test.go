package signalproc

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func testContext(signalID uuid.UUID, ts time.Time) *types.MarketContext {
	return &types.MarketContext{
		ID:           types.NewID(),
		SignalID:     signalID,
		Timestamp:    ts,
		Symbol:       "SPY",
		CurrentPrice: decimal.NewFromInt(500),
		Bid:          decimal.NewFromFloat(499.95),
		Ask:          decimal.NewFromFloat(500.05),
		Volume:       decimal.NewFromInt(1000000),
		Indicators:   map[string]decimal.Decimal{},
	}
}

func TestContextHash_StableAcrossIndicatorKeyOrder(t *testing.T) {
	signalID := uuid.New()
	ts := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)

	mc1 := testContext(signalID, ts)
	mc1.Indicators = map[string]decimal.Decimal{
		"rsi": decimal.NewFromInt(55),
		"sma": decimal.NewFromInt(100),
	}
	mc2 := testContext(signalID, ts)
	mc2.Indicators = map[string]decimal.Decimal{
		"sma": decimal.NewFromInt(100),
		"rsi": decimal.NewFromInt(55),
	}

	assert.Equal(t, ContextHash(mc1), ContextHash(mc2))
}

func TestContextHash_DiffersOnTimestamp(t *testing.T) {
	signalID := uuid.New()
	mc1 := testContext(signalID, time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC))
	mc2 := testContext(signalID, time.Date(2026, 7, 30, 10, 0, 1, 0, time.UTC))

	assert.NotEqual(t, ContextHash(mc1), ContextHash(mc2))
}

func TestContextHash_DiffersOnIndicatorValue(t *testing.T) {
	signalID := uuid.New()
	ts := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	mc1 := testContext(signalID, ts)
	mc1.Indicators = map[string]decimal.Decimal{"rsi": decimal.NewFromInt(55)}
	mc2 := testContext(signalID, ts)
	mc2.Indicators = map[string]decimal.Decimal{"rsi": decimal.NewFromInt(60)}

	assert.NotEqual(t, ContextHash(mc1), ContextHash(mc2))
}

func TestDecimalIndicators_ConvertsEveryEntry(t *testing.T) {
	raw := map[string]float64{"rsi": 55.5, "sma20": 101.2}
	out := decimalIndicators(raw)
	assert.Len(t, out, 2)
	assert.True(t, out["rsi"].Equal(decimal.NewFromFloat(55.5)))
}
