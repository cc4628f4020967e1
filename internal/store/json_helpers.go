package store

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func unmarshalJSON(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func unmarshalIndicators(raw []byte, mc *types.MarketContext) error {
	if len(raw) == 0 {
		return nil
	}
	var indicators map[string]decimal.Decimal
	if err := json.Unmarshal(raw, &indicators); err != nil {
		return err
	}
	mc.Indicators = indicators
	return nil
}
