package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// ContextRepository persists the immutable market-context snapshot taken
// at signal enrichment time.
type ContextRepository struct {
	db *gorm.DB
}

// Insert persists a MarketContext snapshot.
func (r *ContextRepository) Insert(ctx context.Context, mc *types.MarketContext) error {
	if err := r.db.WithContext(ctx).Create(fromMarketContext(mc)).Error; err != nil {
		return fmt.Errorf("store: insert market context: %w", err)
	}
	return nil
}

// BySignal fetches the market context recorded for a given signal.
func (r *ContextRepository) BySignal(ctx context.Context, signalID uuid.UUID) (*types.MarketContext, error) {
	var row marketContextRow
	if err := r.db.WithContext(ctx).First(&row, "signal_id = ?", signalID).Error; err != nil {
		return nil, fmt.Errorf("store: market context by signal: %w", err)
	}
	return toMarketContext(&row)
}

func toMarketContext(r *marketContextRow) (*types.MarketContext, error) {
	mc := &types.MarketContext{
		ID:           r.ID,
		SignalID:     r.SignalID,
		Timestamp:    r.Timestamp,
		Symbol:       r.Symbol,
		CurrentPrice: mustDecimal(r.CurrentPrice),
		Bid:          mustDecimal(r.Bid),
		Ask:          mustDecimal(r.Ask),
		Volume:       mustDecimal(r.Volume),
		ContextHash:  r.ContextHash,
		CreatedAt:    r.CreatedAt,
	}
	if err := unmarshalIndicators(r.Indicators, mc); err != nil {
		return nil, err
	}
	if len(r.MarketIntel) > 0 {
		var intel types.MarketIntel
		if err := unmarshalJSON(r.MarketIntel, &intel); err != nil {
			return nil, err
		}
		mc.MarketIntel = &intel
	}
	return mc, nil
}
