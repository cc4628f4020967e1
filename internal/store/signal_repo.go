package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// ErrDuplicateSignal is returned when a signal hash already exists.
var ErrDuplicateSignal = errors.New("store: duplicate signal hash")

// SignalRepository persists signals and their webhook audit trail, and
// implements the claim/lease protocol the signal processor workers use to
// coordinate over a shared row set.
type SignalRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSignalRepository wires a SignalRepository against an existing GORM
// connection, without running migrations. Used by Open and by tests that
// drive the connection through sqlmock.
func NewSignalRepository(gdb *gorm.DB, logger *zap.Logger) *SignalRepository {
	return &SignalRepository{db: gdb, logger: logger}
}

// ExistsByHash reports whether a signal with hash already exists within
// window of now, for webhook-layer dedup before persistence is attempted.
func (r *SignalRepository) ExistsByHash(ctx context.Context, hash string, window time.Duration, now time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&signalRow{}).
		Where("signal_hash = ? AND created_at >= ?", hash, now.Add(-window)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("store: signal exists by hash: %w", err)
	}
	return count > 0, nil
}

// InsertWithEvent persists a new Signal and its originating WebhookEvent in
// a single transaction. It returns ErrDuplicateSignal if a unique constraint
// rejects the insert; ordinary within-window duplicates are caught earlier
// by ExistsByHash, since the signal_hash index itself is not unique.
func (r *SignalRepository) InsertWithEvent(ctx context.Context, signal *types.Signal, event *types.WebhookEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sigRow := fromSignal(signal)
		if err := tx.Create(sigRow).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateSignal
			}
			return fmt.Errorf("store: insert signal: %w", err)
		}

		eventRow := fromWebhookEvent(event)
		if err := tx.Create(eventRow).Error; err != nil {
			return fmt.Errorf("store: insert webhook event: %w", err)
		}
		return nil
	})
}

// RecordEvent persists a standalone webhook audit row (used for rejected
// deliveries that never produce a Signal).
func (r *SignalRepository) RecordEvent(ctx context.Context, event *types.WebhookEvent) error {
	if err := r.db.WithContext(ctx).Create(fromWebhookEvent(event)).Error; err != nil {
		return fmt.Errorf("store: record webhook event: %w", err)
	}
	return nil
}

// ClaimBatch leases up to limit unprocessed, unlocked signals that are due
// for processing (no NextRetryAt, or NextRetryAt in the past), marking them
// locked within the same transaction so concurrent workers never double
// claim a row. Uses SELECT ... FOR UPDATE SKIP LOCKED so a worker holding a
// lock on a row never stalls another worker's batch.
func (r *SignalRepository) ClaimBatch(ctx context.Context, limit int, now time.Time) ([]*types.Signal, error) {
	var claimed []*types.Signal

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []signalRow
		err := tx.Raw(`SELECT * FROM signals
				WHERE processed = false AND processing_lock = false
				  AND status = ?
				  AND (next_retry_at IS NULL OR next_retry_at <= ?)
				ORDER BY source_timestamp ASC
				LIMIT ?
				FOR UPDATE SKIP LOCKED`,
				string(types.SignalStatusPending), now, limit).
			Scan(&rows).Error
		if err != nil {
			return fmt.Errorf("claim select: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(rows))
		for i, row := range rows {
			ids[i] = row.ID
		}
		if err := tx.Model(&signalRow{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"processing_lock":     true,
				"processing_attempts": gorm.Expr("processing_attempts + 1"),
				"updated_at":          now,
			}).Error; err != nil {
			return fmt.Errorf("claim lock: %w", err)
		}

		claimed = make([]*types.Signal, len(rows))
		for i := range rows {
			row := rows[i]
			row.ProcessingLock = true
			row.ProcessingAttempts++
			claimed[i] = row.toDomain()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// MarkProcessed finalizes a claimed signal as processed and releases its
// lock, recording the resulting status, experiment linkage, and (if
// rejected) rejection reason.
func (r *SignalRepository) MarkProcessed(ctx context.Context, id uuid.UUID, status types.SignalStatus, experimentID *uuid.UUID, rejectionReason *string) error {
	updates := map[string]any{
		"processed":        true,
		"processing_lock":  false,
		"status":           string(status),
		"experiment_id":    experimentID,
		"rejection_reason": rejectionReason,
		"updated_at":       time.Now(),
	}
	if err := r.db.WithContext(ctx).Model(&signalRow{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("store: mark signal processed: %w", err)
	}
	return nil
}

// ReleaseForRetry unlocks a claimed signal without marking it processed,
// scheduling its next attempt at nextRetryAt. Once attempts reaches
// MaxAttempts the signal processor calls MarkProcessed with a rejected
// status instead.
func (r *SignalRepository) ReleaseForRetry(ctx context.Context, id uuid.UUID, nextRetryAt time.Time) error {
	updates := map[string]any{
		"processing_lock": false,
		"next_retry_at":   nextRetryAt,
		"updated_at":      time.Now(),
	}
	if err := r.db.WithContext(ctx).Model(&signalRow{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("store: release signal for retry: %w", err)
	}
	return nil
}

// Get fetches a single signal by ID.
func (r *SignalRepository) Get(ctx context.Context, id uuid.UUID) (*types.Signal, error) {
	var row signalRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("store: get signal: %w", err)
	}
	return row.toDomain(), nil
}

// Recent returns the most recently created signals, newest first, for the
// monitoring read API.
func (r *SignalRepository) Recent(ctx context.Context, limit int) ([]*types.Signal, error) {
	var rows []signalRow
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: recent signals: %w", err)
	}
	out := make([]*types.Signal, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	// Postgres unique_violation is SQLSTATE 23505; pgx/gorm surface it
	// through an error whose message contains the constraint name, so a
	// simple substring match is good enough. signal_hash itself no longer
	// carries a unique constraint, but the signals primary key still does.
	return err != nil && (contains(err.Error(), "23505") || contains(err.Error(), "duplicate key"))
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
