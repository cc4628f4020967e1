// Package signalproc advances claimed signals through market-data
// enrichment and hands each to the orchestrator, owning the
// processing_lock/processed/status/experiment_id fields of the Signal row.
package signalproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/apperr"
	"github.com/atlas-desktop/trading-backend/internal/marketdata"
	"github.com/atlas-desktop/trading-backend/internal/orchestrator"
	"github.com/atlas-desktop/trading-backend/internal/store"
	"github.com/atlas-desktop/trading-backend/internal/workers"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// Config controls claim batch size, retry policy, and per-signal timeout.
type Config struct {
	BatchSize      int
	MaxAttempts    int
	BaseBackoff    time.Duration
	SignalTimeout  time.Duration
	PollInterval   time.Duration
}

// DefaultConfig returns the processor's baseline tuning values.
func DefaultConfig() Config {
	return Config{
		BatchSize:     10,
		MaxAttempts:   5,
		BaseBackoff:   5 * time.Second,
		SignalTimeout: 30 * time.Second,
		PollInterval:  2 * time.Second,
	}
}

// Processor claims pending signals, enriches them with market context, and
// hands each to the orchestrator.
type Processor struct {
	logger       *zap.Logger
	cfg          Config
	signals      *store.SignalRepository
	marketdata   *marketdata.Multiplex
	orchestrator *orchestrator.Orchestrator
	tracker      *apperr.Tracker
	pool         *workers.Pool
}

// New creates a Processor and its backing worker pool.
func New(logger *zap.Logger, cfg Config, signals *store.SignalRepository, md *marketdata.Multiplex, orch *orchestrator.Orchestrator, tracker *apperr.Tracker, poolCfg *workers.PoolConfig) *Processor {
	pool := workers.NewPool(logger, poolCfg)
	return &Processor{
		logger:       logger.Named("signalproc"),
		cfg:          cfg,
		signals:      signals,
		marketdata:   md,
		orchestrator: orch,
		tracker:      tracker,
		pool:         pool,
	}
}

// Run polls for claimable signals until ctx is cancelled, submitting each
// claimed batch to the worker pool for concurrent enrichment.
func (p *Processor) Run(ctx context.Context) error {
	p.pool.Start()
	defer p.pool.Stop()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.runBatch(ctx); err != nil {
				p.logger.Error("claim batch failed", zap.Error(err))
			}
		}
	}
}

func (p *Processor) runBatch(ctx context.Context) error {
	claimed, err := p.signals.ClaimBatch(ctx, p.cfg.BatchSize, time.Now())
	if err != nil {
		return fmt.Errorf("signalproc: claim batch: %w", err)
	}
	for _, signal := range claimed {
		signal := signal
		if err := p.pool.Submit(workers.TaskFunc(func() error {
			p.processOne(ctx, signal)
			return nil
		})); err != nil {
			p.logger.Warn("pool submit failed, processing inline", zap.Error(err))
			p.processOne(ctx, signal)
		}
	}
	return nil
}

func (p *Processor) processOne(parent context.Context, signal *types.Signal) {
	ctx, cancel := context.WithTimeout(parent, p.cfg.SignalTimeout)
	defer cancel()

	mc, err := p.enrich(ctx, signal)
	if err != nil {
		p.fail(ctx, signal, apperr.Wrap(apperr.KindEnrichmentFailed, "signalproc.enrich", err))
		return
	}

	result, err := p.orchestrator.Process(ctx, signal, mc)
	if err != nil {
		p.fail(ctx, signal, apperr.Wrap(apperr.KindFatal, "signalproc.orchestrate", err))
		return
	}

	status := types.SignalStatusRejected
	var rejectionReason *string
	if result.Approved {
		status = types.SignalStatusApproved
	} else {
		reason := result.RejectionReason
		rejectionReason = &reason
	}
	experimentID := result.ExperimentID
	if err := p.signals.MarkProcessed(ctx, signal.ID, status, &experimentID, rejectionReason); err != nil {
		p.logger.Error("mark processed failed", zap.String("signal_id", signal.ID.String()), zap.Error(err))
	}
}

// enrich fetches candles/indicators/price for the signal's symbol and
// timeframe and builds its MarketContext, including the deterministic
// context hash.
func (p *Processor) enrich(ctx context.Context, signal *types.Signal) (*types.MarketContext, error) {
	tf := types.Timeframe(signal.Timeframe)

	quote, err := p.marketdata.Price(ctx, signal.Symbol)
	if err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}
	indicators, err := p.marketdata.Indicators(ctx, signal.Symbol, tf)
	if err != nil {
		return nil, fmt.Errorf("indicators: %w", err)
	}

	mc := &types.MarketContext{
		ID:           types.NewID(),
		SignalID:     signal.ID,
		Timestamp:    time.Now(),
		Symbol:       signal.Symbol,
		CurrentPrice: quote.Value.Last,
		Bid:          quote.Value.Bid,
		Ask:          quote.Value.Ask,
		Volume:       quote.Value.Volume,
		Indicators:   decimalIndicators(indicators.Value),
		CreatedAt:    time.Now(),
	}
	mc.ContextHash = ContextHash(mc)
	return mc, nil
}

func (p *Processor) fail(ctx context.Context, signal *types.Signal, appErr *apperr.Error) {
	if p.tracker != nil {
		p.tracker.Record(appErr)
	}
	p.logger.Warn("signal processing failed",
		zap.String("signal_id", signal.ID.String()),
		zap.String("kind", string(appErr.Kind)),
		zap.Error(appErr))

	attempts := signal.ProcessingAttempts + 1
	if attempts >= p.cfg.MaxAttempts {
		reason := "exhausted_retries"
		if err := p.signals.MarkProcessed(ctx, signal.ID, types.SignalStatusRejected, nil, &reason); err != nil {
			p.logger.Error("mark exhausted failed", zap.Error(err))
		}
		return
	}

	backoff := p.cfg.BaseBackoff * time.Duration(1<<uint(attempts-1))
	if err := p.signals.ReleaseForRetry(ctx, signal.ID, time.Now().Add(backoff)); err != nil {
		p.logger.Error("release for retry failed", zap.Error(err))
	}
}

func decimalIndicators(raw map[string]float64) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(raw))
	for k, v := range raw {
		out[k] = decimal.NewFromFloat(v)
	}
	return out
}

// ContextHash computes the deterministic hash over a MarketContext's signal
// ID, timestamp, symbol and price/volume/indicator fields (indicator keys
// sorted), used to detect whether two enrichments of
// the same signal against the same provider data agree.
func ContextHash(mc *types.MarketContext) string {
	keys := make([]string, 0, len(mc.Indicators))
	for k := range mc.Indicators {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s|%s|%s|%s|%s", mc.SignalID, mc.Timestamp.UnixNano(), mc.Symbol, mc.CurrentPrice.String(), mc.Bid.String(), mc.Ask.String(), mc.Volume.String())
	for _, k := range keys {
		fmt.Fprintf(h, "|%s=%s", k, mc.Indicators[k].String())
	}
	return hex.EncodeToString(h.Sum(nil))
}
