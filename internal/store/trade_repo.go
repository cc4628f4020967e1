package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// TradeRepository persists fills and the open/closed positions derived
// from them.
type TradeRepository struct {
	db *gorm.DB
}

// InsertTrade persists a fill against an order.
func (r *TradeRepository) InsertTrade(ctx context.Context, t *types.Trade) error {
	if err := r.db.WithContext(ctx).Create(fromTrade(t)).Error; err != nil {
		return fmt.Errorf("store: insert trade: %w", err)
	}
	return nil
}

// InsertPosition persists a new open Position.
func (r *TradeRepository) InsertPosition(ctx context.Context, p *types.Position) error {
	if err := r.db.WithContext(ctx).Create(fromPosition(p)).Error; err != nil {
		return fmt.Errorf("store: insert position: %w", err)
	}
	return nil
}

// UpdatePosition persists the latest mark-to-market state of an open
// position (current price, unrealized PnL) without altering its status.
func (r *TradeRepository) UpdatePosition(ctx context.Context, id uuid.UUID, currentPrice, unrealizedPnL decimal.Decimal) error {
	updates := map[string]any{
		"current_price":  currentPrice.String(),
		"unrealized_pnl": unrealizedPnL.String(),
	}
	if err := r.db.WithContext(ctx).Model(&positionRow{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("store: update position: %w", err)
	}
	return nil
}

// ClosePosition marks a position closed, recording realized PnL and exit
// time.
func (r *TradeRepository) ClosePosition(ctx context.Context, id uuid.UUID, realizedPnL decimal.Decimal, exitAt time.Time) error {
	updates := map[string]any{
		"status":       string(types.PositionClosed),
		"realized_pnl": realizedPnL.String(),
		"exit_at":      exitAt,
	}
	if err := r.db.WithContext(ctx).Model(&positionRow{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("store: close position: %w", err)
	}
	return nil
}

// OpenPositions returns every position currently open, for the exit
// monitor worker's sweep.
func (r *TradeRepository) OpenPositions(ctx context.Context) ([]*types.Position, error) {
	var rows []positionRow
	if err := r.db.WithContext(ctx).Where("status = ?", string(types.PositionOpen)).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: open positions: %w", err)
	}
	out := make([]*types.Position, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

// ClosedSince returns every position closed at or after since, for the
// adaptive tuner's rolling performance statistics.
func (r *TradeRepository) ClosedSince(ctx context.Context, since time.Time) ([]*types.Position, error) {
	var rows []positionRow
	err := r.db.WithContext(ctx).
		Where("status = ?", string(types.PositionClosed)).
		Where("exit_at >= ?", since).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: closed positions since: %w", err)
	}
	out := make([]*types.Position, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

// Get fetches a single position by ID.
func (r *TradeRepository) Get(ctx context.Context, id uuid.UUID) (*types.Position, error) {
	var row positionRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("store: get position: %w", err)
	}
	return row.toDomain(), nil
}
