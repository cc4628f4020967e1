package orders

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func TestOCCSymbol_CallFormat(t *testing.T) {
	expiration := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	sym := OCCSymbol("SPY", expiration, decimal.NewFromInt(500), types.OptionCall)
	assert.Equal(t, "SPY   260821C00500000", sym)
}

func TestOCCSymbol_PutFormat(t *testing.T) {
	expiration := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	sym := OCCSymbol("SPY", expiration, decimal.NewFromInt(500), types.OptionPut)
	assert.Equal(t, "SPY   260821P00500000", sym)
}

func TestOCCSymbol_FractionalStrikeInThousandths(t *testing.T) {
	expiration := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	sym := OCCSymbol("AAPL", expiration, decimal.NewFromFloat(123.5), types.OptionCall)
	assert.Contains(t, sym, "C00123500")
}

func TestOptionType_LongIsCallShortIsPut(t *testing.T) {
	assert.Equal(t, types.OptionCall, optionType(types.DirectionLong))
	assert.Equal(t, types.OptionPut, optionType(types.DirectionShort))
}
