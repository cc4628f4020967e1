// Package orchestrator assigns each enriched signal to an A/B experiment,
// selects the execution policy, fans the signal out to both decision
// engines with structurally identical inputs, and persists the resulting
// experiment, policy, and recommendations.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/apperr"
	"github.com/atlas-desktop/trading-backend/internal/bias"
	"github.com/atlas-desktop/trading-backend/internal/engines"
	"github.com/atlas-desktop/trading-backend/internal/risk"
	"github.com/atlas-desktop/trading-backend/internal/store"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// Config configures experiment assignment and execution policy selection.
// The macro-drift threshold itself is not here: it lives in the "risk"
// BiasConfig document so the adaptive tuner can nudge it without a restart.
type Config struct {
	SplitPercentage        float64
	PolicyVersion          string
	ExecutionMode          types.ExecutionMode
	AllowAnticipatoryEntry bool
}

// Orchestrator is the only component permitted to create Experiment,
// ExecutionPolicy, and TradeRecommendation rows.
type Orchestrator struct {
	logger  *zap.Logger
	cfg     Config
	db      *store.DB
	biasAgg *bias.Aggregator
	engineA engines.Invoker
	engineB engines.Invoker
	tracker *apperr.Tracker
}

// New creates an Orchestrator.
func New(logger *zap.Logger, cfg Config, db *store.DB, biasAgg *bias.Aggregator, engineA, engineB engines.Invoker, tracker *apperr.Tracker) *Orchestrator {
	return &Orchestrator{
		logger:  logger.Named("orchestrator"),
		cfg:     cfg,
		db:      db,
		biasAgg: biasAgg,
		engineA: engineA,
		engineB: engineB,
		tracker: tracker,
	}
}

// Result is the outcome of orchestrating one signal.
type Result struct {
	Approved        bool
	ExperimentID    uuid.UUID
	RejectionReason string
}

// Process assigns an experiment to signal, fans it out to both engines
// with context and the symbol's current bias state, and persists every
// resulting row. Signal-row status mutation is the caller's (signal
// processor's) responsibility.
func (o *Orchestrator) Process(ctx context.Context, signal *types.Signal, mc *types.MarketContext) (Result, error) {
	if err := o.db.Contexts.Insert(ctx, mc); err != nil {
		return Result{}, fmt.Errorf("orchestrator: insert market context: %w", err)
	}

	variant := AssignVariant(signal.SignalHash, o.cfg.PolicyVersion, o.cfg.SplitPercentage)
	policy := SelectPolicy(variant, o.cfg.ExecutionMode)

	experiment := &types.Experiment{
		ID:              types.NewID(),
		SignalID:        signal.ID,
		Variant:         variant,
		AssignmentHash:  signal.SignalHash,
		SplitPercentage: decimal.NewFromFloat(o.cfg.SplitPercentage),
		PolicyVersion:   o.cfg.PolicyVersion,
		CreatedAt:       mc.Timestamp,
	}
	execPolicy := &types.ExecutionPolicy{
		ID:             types.NewID(),
		ExperimentID:   experiment.ID,
		ExecutionMode:  o.cfg.ExecutionMode,
		ExecutedEngine: policy.ExecutedEngine,
		ShadowEngine:   policy.ShadowEngine,
		Reason:         policy.Reason,
		CreatedAt:      mc.Timestamp,
	}

	state := o.biasAgg.Latest(signal.Symbol)
	doc := o.loadRiskDocument(ctx)
	in := engines.Input{Signal: signal, Context: mc, State: state, Document: doc}

	if reason, blocked := o.checkPolicyGates(ctx, signal, state, doc); blocked {
		if err := o.persist(ctx, experiment, execPolicy, nil); err != nil {
			return Result{}, err
		}
		return Result{Approved: false, ExperimentID: experiment.ID, RejectionReason: reason}, nil
	}

	recA, errA := invoke(ctx, o.engineA, in)
	recB, errB := invoke(ctx, o.engineB, in)
	if errA != nil {
		o.track(apperr.Wrap(apperr.KindEngineFailed, "orchestrator.engine_a", errA))
	}
	if errB != nil {
		o.track(apperr.Wrap(apperr.KindEngineFailed, "orchestrator.engine_b", errB))
	}
	if errA != nil && errB != nil {
		if err := o.persist(ctx, experiment, execPolicy, nil); err != nil {
			return Result{}, err
		}
		return Result{Approved: false, ExperimentID: experiment.ID, RejectionReason: "engines_failed"}, nil
	}

	recByVariant := map[types.EngineVariant]*types.TradeRecommendation{}
	if recA != nil {
		recA.ExperimentID = experiment.ID
		recA.IsShadow = !execPolicy.IsExecuted(types.EngineA)
		recByVariant[types.EngineA] = recA
	}
	if recB != nil {
		recB.ExperimentID = experiment.ID
		recB.IsShadow = !execPolicy.IsExecuted(types.EngineB)
		recByVariant[types.EngineB] = recB
	}

	recs := make([]*types.TradeRecommendation, 0, len(recByVariant))
	for _, rec := range recByVariant {
		recs = append(recs, rec)
	}
	if err := o.persist(ctx, experiment, execPolicy, recs); err != nil {
		return Result{}, err
	}

	if execPolicy.ExecutedEngine == nil {
		return Result{Approved: false, ExperimentID: experiment.ID, RejectionReason: "shadow_only_no_live_engine"}, nil
	}
	if _, ok := recByVariant[*execPolicy.ExecutedEngine]; !ok {
		return Result{Approved: false, ExperimentID: experiment.ID, RejectionReason: "executed_engine_declined"}, nil
	}

	return Result{Approved: true, ExperimentID: experiment.ID}, nil
}

// loadRiskDocument reads the adaptive tuner's persisted "risk" document and
// falls back to the package defaults when it hasn't been seeded yet.
func (o *Orchestrator) loadRiskDocument(ctx context.Context) risk.Document {
	cfg, err := o.db.Config.Get(ctx, "risk")
	if err != nil {
		return risk.DefaultDocument()
	}
	return risk.DocumentFromConfig(cfg)
}

// checkPolicyGates runs the portfolio guard and setup validator against the
// incoming signal ahead of engine invocation. Either one rejecting the
// candidate is a POLICY_VIOLATION: the signal never reaches the engines. A
// symbol the bias aggregator has already marked suppressed short-circuits
// before either gate runs.
func (o *Orchestrator) checkPolicyGates(ctx context.Context, signal *types.Signal, state *types.UnifiedBiasState, doc risk.Document) (string, bool) {
	if state != nil && state.Effective.TradeSuppressed {
		o.track(apperr.New(apperr.KindRiskSuppressed, "orchestrator.effective_block", fmt.Errorf("symbol %s suppressed: %v", signal.Symbol, state.Effective.Notes)))
		return "RISK_SUPPRESSED", true
	}

	strategyType := strategyTypeOf(state)
	candidate := risk.CandidateTrade{Direction: signal.Direction, StrategyType: strategyType, State: state}

	open, err := o.db.Trades.OpenPositions(ctx)
	if err != nil {
		o.track(apperr.Wrap(apperr.KindTransient, "orchestrator.open_positions", err))
		open = nil
	}
	views := make([]risk.OpenPositionView, 0, len(open))
	for _, p := range open {
		var macro types.MacroClass
		if p.EntryState != nil {
			macro = p.EntryState.MacroClass
		}
		views = append(views, risk.OpenPositionView{Direction: p.Direction, MacroClass: macro})
	}

	guard := risk.EvaluateGuard(candidate, views, doc.MacroDriftThreshold)
	if guard.Verdict == risk.VerdictBlock {
		return guard.Reasons[0], true
	}

	setup := risk.ValidateSetup(risk.SetupInput{
		Direction:              signal.Direction,
		StrategyType:           strategyType,
		AllowAnticipatoryEntry: o.cfg.AllowAnticipatoryEntry,
		State:                  state,
	})
	if !setup.Valid {
		return setup.RejectReasons[0], true
	}

	return "", false
}

// strategyTypeOf maps the aggregator's intent read onto the strategy-type
// vocabulary the risk model, portfolio guard, and setup validator share.
func strategyTypeOf(state *types.UnifiedBiasState) string {
	if state == nil {
		return ""
	}
	return risk.StrategyTypeFromIntent(state.IntentType)
}

func (o *Orchestrator) persist(ctx context.Context, experiment *types.Experiment, policy *types.ExecutionPolicy, recs []*types.TradeRecommendation) error {
	if err := o.db.Experiments.Insert(ctx, experiment); err != nil {
		return fmt.Errorf("orchestrator: insert experiment: %w", err)
	}
	if err := o.db.Experiments.InsertPolicy(ctx, policy); err != nil {
		return fmt.Errorf("orchestrator: insert policy: %w", err)
	}
	for _, rec := range recs {
		if err := o.db.Experiments.InsertRecommendation(ctx, rec); err != nil {
			return fmt.Errorf("orchestrator: insert recommendation: %w", err)
		}
	}
	return nil
}

func (o *Orchestrator) track(err *apperr.Error) {
	if o.tracker != nil {
		o.tracker.Record(err)
	}
}

func invoke(ctx context.Context, engine engines.Invoker, in engines.Input) (*types.TradeRecommendation, error) {
	if engine == nil {
		return nil, nil
	}
	return engine.Invoke(ctx, in)
}

// AssignVariant deterministically maps (signalHash, policyVersion) to an
// engine variant using the first 8 bytes of SHA-256 divided by the largest
// uint64, a value in [0,1]. Independent of wall time and processing order: the same signal
// replayed against the same policy version always lands on the same side.
func AssignVariant(signalHash, policyVersion string, splitPercentage float64) types.EngineVariant {
	h := sha256.Sum256([]byte(signalHash + "|" + policyVersion))
	if uniformFromHash(h[:8]) < splitPercentage {
		return types.EngineA
	}
	return types.EngineB
}

func uniformFromHash(b []byte) float64 {
	n := binary.BigEndian.Uint64(b)
	num := new(big.Float).SetInt(new(big.Int).SetUint64(n))
	den := new(big.Float).SetInt(new(big.Int).SetUint64(^uint64(0)))
	ratio, _ := new(big.Float).Quo(num, den).Float64()
	return ratio
}

// policyResult is SelectPolicy's output, shaped to drop straight into an
// ExecutionPolicy row.
type policyResult struct {
	ExecutedEngine *types.EngineVariant
	ShadowEngine   *types.EngineVariant
	Reason         string
}

// SelectPolicy derives the execution policy from the assigned variant and
// the configured execution mode.
func SelectPolicy(variant types.EngineVariant, mode types.ExecutionMode) policyResult {
	other := variant.Other()
	switch mode {
	case types.ModeShadowOnly:
		return policyResult{ExecutedEngine: nil, ShadowEngine: ptr(variant), Reason: "shadow_only: no engine trades live"}
	case types.ModeEngineAPrimary:
		return primaryPolicy(types.EngineA)
	case types.ModeEngineBPrimary:
		return primaryPolicy(types.EngineB)
	case types.ModeSplitCapital:
		return policyResult{ExecutedEngine: ptr(variant), ShadowEngine: ptr(other), Reason: "split_capital: assigned variant trades live, other shadows"}
	default:
		return policyResult{ExecutedEngine: nil, ShadowEngine: ptr(variant), Reason: "unrecognized execution mode: defaulting to shadow"}
	}
}

func primaryPolicy(primary types.EngineVariant) policyResult {
	return policyResult{
		ExecutedEngine: ptr(primary),
		ShadowEngine:   ptr(primary.Other()),
		Reason:         fmt.Sprintf("%s_primary: %s trades live regardless of assignment", primary, primary),
	}
}

func ptr(v types.EngineVariant) *types.EngineVariant { return &v }
