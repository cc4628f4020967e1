package orchestrator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atlas-desktop/trading-backend/internal/orchestrator"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func TestAssignVariant_Deterministic(t *testing.T) {
	a1 := orchestrator.AssignVariant("hash-123", "v1.0", 0.5)
	a2 := orchestrator.AssignVariant("hash-123", "v1.0", 0.5)
	assert.Equal(t, a1, a2, "same signal hash + policy version must always land on the same variant")
}

func TestAssignVariant_DifferentPolicyVersionCanReassign(t *testing.T) {
	// Not guaranteed to differ for any single hash, so look across several:
	// the policy version is part of the assignment input, so at least one
	// of them lands on a different variant under v2.0.
	reassigned := false
	for i := 0; i < 50; i++ {
		hash := "signal-" + string(rune('a'+i))
		if orchestrator.AssignVariant(hash, "v1.0", 0.5) != orchestrator.AssignVariant(hash, "v2.0", 0.5) {
			reassigned = true
		}
	}
	assert.True(t, reassigned, "changing the policy version must reassign at least one of 50 hashes")
}

func TestAssignVariant_SplitPercentageBoundaries(t *testing.T) {
	for i := 0; i < 50; i++ {
		hash := "signal-" + string(rune('a'+i))
		assert.Equal(t, types.EngineB, orchestrator.AssignVariant(hash, "v1.0", 0), "split=0 must never assign A")
		assert.Equal(t, types.EngineA, orchestrator.AssignVariant(hash, "v1.0", 1.0000001), "split>1 must always assign A")
	}
}

func TestSelectPolicy_ShadowOnly(t *testing.T) {
	result := orchestrator.SelectPolicy(types.EngineA, types.ModeShadowOnly)
	assert.Nil(t, result.ExecutedEngine)
	assert.NotNil(t, result.ShadowEngine)
	assert.Equal(t, types.EngineA, *result.ShadowEngine)
}

func TestSelectPolicy_EngineAPrimary_AlwaysExecutesA(t *testing.T) {
	for _, variant := range []types.EngineVariant{types.EngineA, types.EngineB} {
		result := orchestrator.SelectPolicy(variant, types.ModeEngineAPrimary)
		assert.Equal(t, types.EngineA, *result.ExecutedEngine)
		assert.Equal(t, types.EngineB, *result.ShadowEngine)
	}
}

func TestSelectPolicy_EngineBPrimary_AlwaysExecutesB(t *testing.T) {
	for _, variant := range []types.EngineVariant{types.EngineA, types.EngineB} {
		result := orchestrator.SelectPolicy(variant, types.ModeEngineBPrimary)
		assert.Equal(t, types.EngineB, *result.ExecutedEngine)
		assert.Equal(t, types.EngineA, *result.ShadowEngine)
	}
}

func TestSelectPolicy_SplitCapital_ExecutesAssignedVariant(t *testing.T) {
	result := orchestrator.SelectPolicy(types.EngineA, types.ModeSplitCapital)
	assert.Equal(t, types.EngineA, *result.ExecutedEngine)
	assert.Equal(t, types.EngineB, *result.ShadowEngine)

	result = orchestrator.SelectPolicy(types.EngineB, types.ModeSplitCapital)
	assert.Equal(t, types.EngineB, *result.ExecutedEngine)
	assert.Equal(t, types.EngineA, *result.ShadowEngine)
}
