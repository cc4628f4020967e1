package orders

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/apperr"
	"github.com/atlas-desktop/trading-backend/internal/marketdata"
	"github.com/atlas-desktop/trading-backend/internal/store"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// ExecutorConfig controls the paper executor's poll cadence, batch size,
// and retry policy for missing option pricing.
type ExecutorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int
}

// DefaultExecutorConfig returns sensible defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{BatchSize: 10, PollInterval: 2 * time.Second, MaxAttempts: 5}
}

// PaperExecutor polls pending_execution orders, fetches a current option
// price, and fills each as a Trade + open Position.
type PaperExecutor struct {
	logger     *zap.Logger
	cfg        ExecutorConfig
	orders     *store.OrderRepository
	trades     *store.TradeRepository
	marketdata *marketdata.Multiplex
	tracker    *apperr.Tracker
	attempts   map[string]int
}

// NewPaperExecutor creates a PaperExecutor.
func NewPaperExecutor(logger *zap.Logger, cfg ExecutorConfig, orders *store.OrderRepository, trades *store.TradeRepository, md *marketdata.Multiplex, tracker *apperr.Tracker) *PaperExecutor {
	return &PaperExecutor{
		logger:     logger.Named("orders.executor"),
		cfg:        cfg,
		orders:     orders,
		trades:     trades,
		marketdata: md,
		tracker:    tracker,
		attempts:   make(map[string]int),
	}
}

// Run polls until ctx is cancelled.
func (e *PaperExecutor) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.runOnce(ctx); err != nil {
				e.logger.Error("execution pass failed", zap.Error(err))
			}
		}
	}
}

func (e *PaperExecutor) runOnce(ctx context.Context) error {
	pending, err := e.orders.PendingExecution(ctx, e.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("orders: fetch pending execution: %w", err)
	}
	for _, order := range pending {
		e.fill(ctx, order)
	}
	return nil
}

func (e *PaperExecutor) fill(ctx context.Context, order *types.Order) {
	price, err := e.marketdata.OptionPrice(ctx, order.OptionSymbol)
	if err != nil {
		e.handleFailure(ctx, order, err)
		return
	}

	now := time.Now()
	trade := &types.Trade{
		ID:         types.NewID(),
		OrderID:    order.ID,
		FillPrice:  price.Value,
		Quantity:   order.Quantity,
		ExecutedAt: now,
	}
	if err := e.trades.InsertTrade(ctx, trade); err != nil {
		e.logger.Error("insert trade failed", zap.Error(err))
		return
	}

	position := &types.Position{
		ID:           types.NewID(),
		TradeID:      trade.ID,
		SignalID:     order.SignalID,
		Symbol:       order.OptionSymbol,
		Quantity:     order.Quantity,
		EntryPrice:   price.Value,
		CurrentPrice: price.Value,
		Status:       types.PositionOpen,
		EntryAt:      now,
	}
	if err := e.trades.InsertPosition(ctx, position); err != nil {
		e.logger.Error("insert position failed", zap.Error(err))
		return
	}

	if err := e.orders.UpdateStatus(ctx, order.ID, types.OrderFilled, ""); err != nil {
		e.logger.Error("update order status failed", zap.Error(err))
	}
	delete(e.attempts, order.ID.String())
}

func (e *PaperExecutor) handleFailure(ctx context.Context, order *types.Order, cause error) {
	if e.tracker != nil {
		e.tracker.Record(apperr.Wrap(apperr.KindOrderPricingMiss, "orders.execute", cause))
	}
	key := order.ID.String()
	e.attempts[key]++
	if e.attempts[key] < e.cfg.MaxAttempts {
		e.logger.Warn("option price fetch failed, will retry",
			zap.String("order_id", key), zap.Int("attempt", e.attempts[key]), zap.Error(cause))
		return
	}
	delete(e.attempts, key)
	if err := e.orders.UpdateStatus(ctx, order.ID, types.OrderFailed, cause.Error()); err != nil {
		e.logger.Error("mark order failed update failed", zap.Error(err))
	}
}
