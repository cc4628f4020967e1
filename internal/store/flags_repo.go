package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// FlagRepository persists named feature flags and a generic background
// event log, and implements config.FlagSource.
type FlagRepository struct {
	db *gorm.DB
}

// LoadFlags implements config.FlagSource.
func (r *FlagRepository) LoadFlags(ctx context.Context) (map[string]bool, error) {
	var rows []featureFlagRow
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: load flags: %w", err)
	}
	flags := make(map[string]bool, len(rows))
	for _, row := range rows {
		flags[row.Name] = row.Enabled
	}
	return flags, nil
}

// Set upserts a single named flag.
func (r *FlagRepository) Set(ctx context.Context, name string, enabled bool) error {
	row := &featureFlagRow{Name: name, Enabled: enabled, UpdatedAt: time.Now()}
	if err := r.db.WithContext(ctx).Save(row).Error; err != nil {
		return fmt.Errorf("store: set flag %s: %w", name, err)
	}
	return nil
}

// LogEvent appends a row to the generic background-worker event log, used
// for errors with no natural home in a domain table.
func (r *FlagRepository) LogEvent(ctx context.Context, source, kind, message string) error {
	row := &eventLogRow{
		ID:        types.NewID(),
		Source:    source,
		Kind:      kind,
		Message:   message,
		CreatedAt: time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("store: log event: %w", err)
	}
	return nil
}
