package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// OrderRepository persists paper orders derived from non-shadow trade
// recommendations.
type OrderRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewOrderRepository wires an OrderRepository against an existing GORM
// connection, without running migrations. Used by Open and by tests that
// drive the connection through sqlmock.
func NewOrderRepository(gdb *gorm.DB, logger *zap.Logger) *OrderRepository {
	return &OrderRepository{db: gdb, logger: logger}
}

// Insert persists a new Order.
func (r *OrderRepository) Insert(ctx context.Context, o *types.Order) error {
	if err := r.db.WithContext(ctx).Create(fromOrder(o)).Error; err != nil {
		return fmt.Errorf("store: insert order: %w", err)
	}
	return nil
}

// UpdateStatus transitions an order's status, recording a failure reason
// when status is OrderFailed.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status types.OrderStatus, failureReason string) error {
	updates := map[string]any{
		"status":     string(status),
		"updated_at": gorm.Expr("NOW()"),
	}
	if failureReason != "" {
		updates["failure_reason"] = failureReason
	}
	if err := r.db.WithContext(ctx).Model(&orderRow{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		r.logger.Error("order status update failed", zap.String("order_id", id.String()), zap.Error(err))
		return fmt.Errorf("store: update order status: %w", err)
	}
	return nil
}

// Get fetches a single order by ID.
func (r *OrderRepository) Get(ctx context.Context, id uuid.UUID) (*types.Order, error) {
	var row orderRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("store: get order: %w", err)
	}
	return row.toDomain(), nil
}

// PendingExecution returns orders awaiting paper execution, oldest first.
func (r *OrderRepository) PendingExecution(ctx context.Context, limit int) ([]*types.Order, error) {
	var rows []orderRow
	err := r.db.WithContext(ctx).
		Where("status = ?", string(types.OrderPendingExecution)).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: pending execution orders: %w", err)
	}
	out := make([]*types.Order, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

// Recent returns the most recently created orders, newest first, for the
// monitoring read API.
func (r *OrderRepository) Recent(ctx context.Context, limit int) ([]*types.Order, error) {
	var rows []orderRow
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: recent orders: %w", err)
	}
	out := make([]*types.Order, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}
