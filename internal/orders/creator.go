// Package orders turns approved, non-shadow TradeRecommendations into
// paper Orders and fills them against the market-data multiplex.
package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/apperr"
	"github.com/atlas-desktop/trading-backend/internal/store"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// CreatorConfig controls the order creator's poll cadence and batch size.
type CreatorConfig struct {
	BatchSize    int
	PollInterval time.Duration
}

// DefaultCreatorConfig returns sensible defaults.
func DefaultCreatorConfig() CreatorConfig {
	return CreatorConfig{BatchSize: 10, PollInterval: 2 * time.Second}
}

// Creator polls for executed TradeRecommendations without an Order yet and
// creates one pending_execution Order per recommendation.
type Creator struct {
	logger      *zap.Logger
	cfg         CreatorConfig
	experiments *store.ExperimentRepository
	orders      *store.OrderRepository
	tracker     *apperr.Tracker
}

// NewCreator creates a Creator.
func NewCreator(logger *zap.Logger, cfg CreatorConfig, experiments *store.ExperimentRepository, orders *store.OrderRepository, tracker *apperr.Tracker) *Creator {
	return &Creator{
		logger:      logger.Named("orders.creator"),
		cfg:         cfg,
		experiments: experiments,
		orders:      orders,
		tracker:     tracker,
	}
}

// Run polls until ctx is cancelled.
func (c *Creator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.runOnce(ctx); err != nil {
				c.logger.Error("order creation pass failed", zap.Error(err))
			}
		}
	}
}

func (c *Creator) runOnce(ctx context.Context) error {
	recs, err := c.experiments.PendingOrderCreation(ctx, c.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("orders: fetch pending recommendations: %w", err)
	}
	for _, rec := range recs {
		if err := c.create(ctx, rec); err != nil {
			c.logger.Error("create order failed", zap.String("recommendation_id", rec.ID.String()), zap.Error(err))
			if c.tracker != nil {
				c.tracker.Record(apperr.Wrap(apperr.KindOrderPricingMiss, "orders.create", err))
			}
		}
	}
	return nil
}

func (c *Creator) create(ctx context.Context, rec *types.TradeRecommendation) error {
	order := &types.Order{
		ID:               types.NewID(),
		SignalID:         rec.SignalID,
		RecommendationID: rec.ID,
		OptionSymbol:     OCCSymbol(rec.Symbol, rec.Expiration, rec.Strike, optionType(rec.Direction)),
		Strike:           rec.Strike,
		Expiration:       rec.Expiration,
		Type:             optionType(rec.Direction),
		Quantity:         rec.Quantity,
		OrderType:        "market",
		Status:           types.OrderPendingExecution,
		Engine:           rec.Engine,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	return c.orders.Insert(ctx, order)
}

func optionType(dir types.SignalDirection) types.OptionType {
	if dir == types.DirectionLong {
		return types.OptionCall
	}
	return types.OptionPut
}

// OCCSymbol builds an OCC-style option symbol: ROOT + YYMMDD + C/P + strike
// in thousandths of a dollar, zero-padded to 8 digits.
func OCCSymbol(underlying string, expiration time.Time, strike decimal.Decimal, t types.OptionType) string {
	cp := "C"
	if t == types.OptionPut {
		cp = "P"
	}
	strikeThousandths := strike.Mul(decimal.NewFromInt(1000)).Round(0).IntPart()
	return fmt.Sprintf("%-6s%s%s%08d", underlying, expiration.Format("060102"), cp, strikeThousandths)
}
