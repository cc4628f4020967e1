package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// ConfigRepository persists named bias-model configuration documents and
// the adaptive tuner's audit history of changes to them.
type ConfigRepository struct {
	db *gorm.DB
}

// Get fetches the current document for a config key.
func (r *ConfigRepository) Get(ctx context.Context, key string) (*types.BiasConfig, error) {
	var row biasConfigRow
	if err := r.db.WithContext(ctx).First(&row, "config_key = ?", key).Error; err != nil {
		return nil, fmt.Errorf("store: get bias config %s: %w", key, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(row.Document, &doc); err != nil {
		return nil, fmt.Errorf("store: decode bias config %s: %w", key, err)
	}
	return &types.BiasConfig{
		ConfigKey: row.ConfigKey,
		Document:  doc,
		Version:   row.Version,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// Upsert replaces the document for a config key, storing the Version the
// caller set on cfg.
func (r *ConfigRepository) Upsert(ctx context.Context, cfg *types.BiasConfig) error {
	doc, err := json.Marshal(cfg.Document)
	if err != nil {
		return fmt.Errorf("store: encode bias config %s: %w", cfg.ConfigKey, err)
	}
	row := &biasConfigRow{
		ConfigKey: cfg.ConfigKey,
		Document:  doc,
		Version:   cfg.Version,
		UpdatedAt: cfg.UpdatedAt,
	}
	err = r.db.WithContext(ctx).Save(row).Error
	if err != nil {
		return fmt.Errorf("store: upsert bias config %s: %w", cfg.ConfigKey, err)
	}
	return nil
}

// RecordAdaptiveChange appends one entry to the adaptive tuner's audit
// history, whether the nudge was applied live or only logged in dry-run.
func (r *ConfigRepository) RecordAdaptiveChange(ctx context.Context, runDate, parameter, previousValue, newValue, rationale string, dryRun bool) error {
	row := &biasAdaptiveHistoryRow{
		ID:            types.NewID(),
		RunDate:       runDate,
		Parameter:     parameter,
		PreviousValue: previousValue,
		NewValue:      newValue,
		Rationale:     rationale,
		DryRun:        dryRun,
		CreatedAt:     time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("store: record adaptive change: %w", err)
	}
	return nil
}

// HasRunToday reports whether the adaptive tuner already ran for runDate,
// so a process restart never double-applies the same day's nudges.
func (r *ConfigRepository) HasRunToday(ctx context.Context, runDate string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&biasAdaptiveHistoryRow{}).Where("run_date = ?", runDate).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("store: has run today: %w", err)
	}
	return count > 0, nil
}
