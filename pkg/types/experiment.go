package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Experiment is the A/B assignment record linking a signal to a variant.
type Experiment struct {
	ID              uuid.UUID
	SignalID        uuid.UUID
	Variant         EngineVariant
	AssignmentHash  string
	SplitPercentage decimal.Decimal
	PolicyVersion   string
	CreatedAt       time.Time
}

// ExecutionMode selects which engine(s) trade live versus shadow for an
// experiment.
type ExecutionMode string

const (
	ModeShadowOnly       ExecutionMode = "SHADOW_ONLY"
	ModeEngineAPrimary   ExecutionMode = "ENGINE_A_PRIMARY"
	ModeEngineBPrimary   ExecutionMode = "ENGINE_B_PRIMARY"
	ModeSplitCapital     ExecutionMode = "SPLIT_CAPITAL"
)

// ExecutionPolicy is the declarative record of which engine runs live vs
// shadow for one experiment.
type ExecutionPolicy struct {
	ID             uuid.UUID
	ExperimentID   uuid.UUID
	ExecutionMode  ExecutionMode
	ExecutedEngine *EngineVariant
	ShadowEngine   *EngineVariant
	Reason         string
	CreatedAt      time.Time
}

// IsExecuted reports whether engine is the policy's live (non-shadow) engine.
func (p *ExecutionPolicy) IsExecuted(engine EngineVariant) bool {
	return p.ExecutedEngine != nil && *p.ExecutedEngine == engine
}
