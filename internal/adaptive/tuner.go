// Package adaptive nudges bounded risk-model parameters once per day from
// rolling trade performance, owning the "risk" BiasConfig document
// exclusively.
package adaptive

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/store"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

const (
	minTradeCount = 10

	rangeBreakoutMultiplierTarget = 0.6
	rangeBreakoutMultiplierMin    = 0.5
	rangeBreakoutMultiplierMax    = 0.9

	stateStrengthUpMultiplierMax = 1.2

	macroDriftThresholdTarget = 0.25
	macroDriftThresholdMin    = 0.15
	macroDriftThresholdMax    = 0.25

	latePhaseNegativeMultiplierMin = 0.7

	maxNudgeFraction = 0.10
)

// Config controls the tuner's schedule and dry-run behavior.
type Config struct {
	Enabled      bool
	DryRun       bool
	LookbackDays int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Enabled: true, DryRun: false, LookbackDays: 30}
}

// Tuner applies bounded daily nudges to the risk model's tunable
// parameters based on rolling performance statistics.
type Tuner struct {
	logger *zap.Logger
	cfg    Config
	trades *store.TradeRepository
	config *store.ConfigRepository
}

// New creates a Tuner.
func New(logger *zap.Logger, cfg Config, trades *store.TradeRepository, config *store.ConfigRepository) *Tuner {
	return &Tuner{logger: logger.Named("adaptive"), cfg: cfg, trades: trades, config: config}
}

// RunIfDue runs the tuner for runDate (format "2006-01-02") unless it has
// already run today and forceRun is false.
func (t *Tuner) RunIfDue(ctx context.Context, runDate string, forceRun bool) error {
	if !forceRun {
		ran, err := t.config.HasRunToday(ctx, runDate)
		if err != nil {
			return fmt.Errorf("adaptive: check has run today: %w", err)
		}
		if ran {
			t.logger.Debug("adaptive tuner already ran today, skipping", zap.String("run_date", runDate))
			return nil
		}
	}

	since := time.Now().AddDate(0, 0, -t.cfg.LookbackDays)
	positions, err := t.trades.ClosedSince(ctx, since)
	if err != nil {
		return fmt.Errorf("adaptive: load closed positions: %w", err)
	}

	stats := ComputeStats(positions)
	if stats.TradeCount < minTradeCount {
		t.logger.Info("adaptive tuner skipped: insufficient trade count",
			zap.Int("trade_count", stats.TradeCount), zap.Int("minimum", minTradeCount))
		return nil
	}

	risk, err := t.loadOrDefault(ctx, "risk", defaultRiskDocument())
	if err != nil {
		return err
	}

	dryRun := t.cfg.DryRun || !t.cfg.Enabled
	changes := t.applyRules(risk, stats)
	for _, c := range changes {
		if err := t.config.RecordAdaptiveChange(ctx, runDate, c.Parameter, c.Previous, c.New, c.Rationale, dryRun); err != nil {
			return fmt.Errorf("adaptive: record change %s: %w", c.Parameter, err)
		}
	}

	if dryRun {
		t.logger.Info("adaptive tuner dry-run complete", zap.Int("changes", len(changes)))
		return nil
	}

	risk.Version++
	risk.UpdatedAt = time.Now()
	if err := t.config.Upsert(ctx, risk); err != nil {
		return fmt.Errorf("adaptive: upsert risk config: %w", err)
	}
	t.logger.Info("adaptive tuner applied changes", zap.Int("changes", len(changes)))
	return nil
}

type paramChange struct {
	Parameter string
	Previous  string
	New       string
	Rationale string
}

// applyRules evaluates the four bounded rules against stats and mutates
// risk.Document in place, returning the audit trail of applied changes.
func (t *Tuner) applyRules(risk *types.BiasConfig, stats Stats) []paramChange {
	var changes []paramChange

	if stats.BreakoutInRangeWinRate > 0 && stats.BreakoutInRangeWinRate < 0.35 {
		if c, ok := nudgeToward(risk.Document, "rangeBreakoutMultiplier", rangeBreakoutMultiplierTarget, rangeBreakoutMultiplierMin, rangeBreakoutMultiplierMax,
			fmt.Sprintf("breakout-in-range win rate %.2f below 0.35", stats.BreakoutInRangeWinRate)); ok {
			changes = append(changes, c)
		}
	}

	if stats.HighAccelAvgR > 1.5 {
		if c, ok := nudgeUp(risk.Document, "stateStrengthUpMultiplier", stateStrengthUpMultiplierMax,
			fmt.Sprintf("high-acceleration avg R %.2f above 1.5", stats.HighAccelAvgR)); ok {
			changes = append(changes, c)
		}
	}

	if stats.MacroDriftExitCount >= 3 && stats.MacroDriftExitAvgR < 0.3 {
		if c, ok := nudgeToward(risk.Document, "macroDriftThreshold", macroDriftThresholdTarget, macroDriftThresholdMin, macroDriftThresholdMax,
			fmt.Sprintf("%d macro-drift exits averaging R %.2f", stats.MacroDriftExitCount, stats.MacroDriftExitAvgR)); ok {
			changes = append(changes, c)
		}
	}

	if stats.LatePhaseAvgR > 1.0 {
		if c, ok := nudgeToward(risk.Document, "latePhaseNegativeMultiplier", 1.0, latePhaseNegativeMultiplierMin, 1.0,
			fmt.Sprintf("late-phase avg R %.2f above 1.0", stats.LatePhaseAvgR)); ok {
			changes = append(changes, c)
		}
	}

	return changes
}

// nudgeToward moves document[key] at most maxNudgeFraction of its current
// value toward target, clamped to [min, max].
func nudgeToward(doc map[string]any, key string, target, min, max float64, rationale string) (paramChange, bool) {
	current := floatOr(doc[key], (min+max)/2)
	maxStep := current * maxNudgeFraction
	next := current
	if target > current {
		next = current + minFloat(target-current, maxStep)
	} else if target < current {
		next = current - minFloat(current-target, maxStep)
	}
	next = clampFloat(next, min, max)
	if next == current {
		return paramChange{}, false
	}
	doc[key] = next
	return paramChange{
		Parameter: key,
		Previous:  fmt.Sprintf("%.6f", current),
		New:       fmt.Sprintf("%.6f", next),
		Rationale: rationale,
	}, true
}

// nudgeUp increases document[key] by at most maxNudgeFraction, capped at max.
func nudgeUp(doc map[string]any, key string, max float64, rationale string) (paramChange, bool) {
	current := floatOr(doc[key], max*0.8)
	maxStep := current * maxNudgeFraction
	next := clampFloat(current+maxStep, 0, max)
	if next == current {
		return paramChange{}, false
	}
	doc[key] = next
	return paramChange{
		Parameter: key,
		Previous:  fmt.Sprintf("%.6f", current),
		New:       fmt.Sprintf("%.6f", next),
		Rationale: rationale,
	}, true
}

func (t *Tuner) loadOrDefault(ctx context.Context, key string, fallback *types.BiasConfig) (*types.BiasConfig, error) {
	cfg, err := t.config.Get(ctx, key)
	if err == nil {
		return cfg, nil
	}
	return fallback, nil
}

func defaultRiskDocument() *types.BiasConfig {
	return &types.BiasConfig{
		ConfigKey: "risk",
		Document: map[string]any{
			"rangeBreakoutMultiplier":     0.7,
			"stateStrengthUpMultiplier":   1.0,
			"macroDriftThreshold":         0.18,
			"latePhaseNegativeMultiplier": 0.75,
		},
		Version:   0,
		UpdatedAt: time.Now(),
	}
}

func floatOr(v any, fallback float64) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return fallback
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
