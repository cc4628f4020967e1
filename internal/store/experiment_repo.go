package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// ExperimentRepository persists A/B experiment assignments, their chosen
// execution policy, and the trade recommendations produced by each engine.
type ExperimentRepository struct {
	db *gorm.DB
}

// Insert persists a new Experiment.
func (r *ExperimentRepository) Insert(ctx context.Context, e *types.Experiment) error {
	if err := r.db.WithContext(ctx).Create(fromExperiment(e)).Error; err != nil {
		return fmt.Errorf("store: insert experiment: %w", err)
	}
	return nil
}

// InsertPolicy persists the ExecutionPolicy chosen for an experiment.
func (r *ExperimentRepository) InsertPolicy(ctx context.Context, p *types.ExecutionPolicy) error {
	if err := r.db.WithContext(ctx).Create(fromExecutionPolicy(p)).Error; err != nil {
		return fmt.Errorf("store: insert execution policy: %w", err)
	}
	return nil
}

// InsertRecommendation persists one engine's TradeRecommendation.
func (r *ExperimentRepository) InsertRecommendation(ctx context.Context, rec *types.TradeRecommendation) error {
	if err := r.db.WithContext(ctx).Create(fromRecommendation(rec)).Error; err != nil {
		return fmt.Errorf("store: insert recommendation: %w", err)
	}
	return nil
}

// RecommendationsByExperiment returns every recommendation recorded for an
// experiment, across both engines, shadow and live.
func (r *ExperimentRepository) RecommendationsByExperiment(ctx context.Context, experimentID uuid.UUID) ([]*types.TradeRecommendation, error) {
	var rows []recommendationRow
	if err := r.db.WithContext(ctx).Where("experiment_id = ?", experimentID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: recommendations by experiment: %w", err)
	}
	out := make([]*types.TradeRecommendation, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

// recommendationWithSignal joins a decision_recommendations row with the
// originating signal_id off its parent experiment, so PendingOrderCreation
// can hand the order creator a TradeRecommendation that links back to its
// signal without the recommendation table carrying a redundant column.
type recommendationWithSignal struct {
	recommendationRow
	SignalID uuid.UUID
}

// PendingOrderCreation returns non-shadow recommendations that do not yet
// have an Order row, oldest first, each carrying the SignalID of the
// signal that produced its experiment.
func (r *ExperimentRepository) PendingOrderCreation(ctx context.Context, limit int) ([]*types.TradeRecommendation, error) {
	var rows []recommendationWithSignal
	err := r.db.WithContext(ctx).
		Table("decision_recommendations").
		Select("decision_recommendations.*, experiments.signal_id AS signal_id").
		Joins("JOIN experiments ON experiments.id = decision_recommendations.experiment_id").
		Where("decision_recommendations.is_shadow = ?", false).
		Where("decision_recommendations.id NOT IN (?)", r.db.Model(&orderRow{}).Select("recommendation_id")).
		Order("decision_recommendations.created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: pending order creation: %w", err)
	}
	out := make([]*types.TradeRecommendation, len(rows))
	for i := range rows {
		rec := rows[i].recommendationRow.toDomain()
		rec.SignalID = rows[i].SignalID
		out[i] = rec
	}
	return out, nil
}

// Get fetches a single experiment by ID.
func (r *ExperimentRepository) Get(ctx context.Context, id uuid.UUID) (*types.Experiment, error) {
	var row experimentRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("store: get experiment: %w", err)
	}
	return &types.Experiment{
		ID:              row.ID,
		SignalID:        row.SignalID,
		Variant:         types.EngineVariant(row.Variant),
		AssignmentHash:  row.AssignmentHash,
		SplitPercentage: mustDecimal(row.SplitPercentage),
		PolicyVersion:   row.PolicyVersion,
		CreatedAt:       row.CreatedAt,
	}, nil
}
