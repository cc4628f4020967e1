// Package positions refreshes open positions against live prices and
// applies exit-intelligence decisions, owning Position mutation
// exclusively.
package positions

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/bias"
	"github.com/atlas-desktop/trading-backend/internal/marketdata"
	"github.com/atlas-desktop/trading-backend/internal/risk"
	"github.com/atlas-desktop/trading-backend/internal/store"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// Config controls the monitor's poll cadence.
type Config struct {
	PollInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{PollInterval: 5 * time.Second}
}

// Monitor refreshes every open position's current price and unrealized
// P&L, then applies exit-intelligence to decide whether to close, trim,
// or adjust the stop.
type Monitor struct {
	logger     *zap.Logger
	cfg        Config
	trades     *store.TradeRepository
	marketdata *marketdata.Multiplex
	biasAgg    *bias.Aggregator
}

// New creates a Monitor.
func New(logger *zap.Logger, cfg Config, trades *store.TradeRepository, md *marketdata.Multiplex, biasAgg *bias.Aggregator) *Monitor {
	return &Monitor{
		logger:     logger.Named("positions.monitor"),
		cfg:        cfg,
		trades:     trades,
		marketdata: md,
		biasAgg:    biasAgg,
	}
}

// Run polls until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.runOnce(ctx); err != nil {
				m.logger.Error("position refresh pass failed", zap.Error(err))
			}
		}
	}
}

func (m *Monitor) runOnce(ctx context.Context) error {
	open, err := m.trades.OpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("positions: list open: %w", err)
	}
	for _, pos := range open {
		m.refresh(ctx, pos)
	}
	return nil
}

func (m *Monitor) refresh(ctx context.Context, pos *types.Position) {
	quote, err := m.marketdata.Price(ctx, pos.Symbol)
	if err != nil {
		m.logger.Warn("price refresh failed", zap.String("position_id", pos.ID.String()), zap.Error(err))
		return
	}

	unrealized := unrealizedPnL(pos, quote.Value.Last)
	if err := m.trades.UpdatePosition(ctx, pos.ID, quote.Value.Last, unrealized); err != nil {
		m.logger.Error("update position failed", zap.Error(err))
		return
	}
	pos.CurrentPrice = quote.Value.Last
	pos.UnrealizedPnL = unrealized

	state := m.biasAgg.Latest(pos.Symbol)
	result := risk.Evaluate(risk.ExitInput{
		Position:              pos,
		State:                 state,
		EntryState:            pos.EntryState,
		UnrealizedPnL:         unrealized,
		TimeInTrade:           time.Since(pos.EntryAt),
		StrategyType:          pos.Strategy,
		TradeAlignedWithMacro: pos.TradeAligned,
	})

	switch result.Action {
	case risk.ActionFullExit:
		m.close(ctx, pos, unrealized)
	case risk.ActionPartialExit:
		m.logger.Info("partial exit signalled",
			zap.String("position_id", pos.ID.String()),
			zap.String("pct", result.PartialExitPct.String()))
	case risk.ActionTightenStop, risk.ActionWidenStop, risk.ActionTrailStop:
		m.logger.Info("stop adjustment signalled",
			zap.String("position_id", pos.ID.String()),
			zap.String("action", string(result.Action)),
			zap.String("stop_multiplier", result.StopMultiplier.String()))
	}
}

func (m *Monitor) close(ctx context.Context, pos *types.Position, realized decimal.Decimal) {
	if err := m.trades.ClosePosition(ctx, pos.ID, realized, time.Now()); err != nil {
		m.logger.Error("close position failed", zap.String("position_id", pos.ID.String()), zap.Error(err))
	}
}

func unrealizedPnL(pos *types.Position, currentPrice decimal.Decimal) decimal.Decimal {
	delta := currentPrice.Sub(pos.EntryPrice)
	if pos.Direction == types.DirectionShort {
		delta = delta.Neg()
	}
	return delta.Mul(decimal.NewFromInt(int64(pos.Quantity)))
}
