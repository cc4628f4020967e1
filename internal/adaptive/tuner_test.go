package adaptive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNudgeToward_ClampsToMax(t *testing.T) {
	doc := map[string]any{"macroDriftThreshold": 0.24}
	c, ok := nudgeToward(doc, "macroDriftThreshold", macroDriftThresholdTarget, macroDriftThresholdMin, macroDriftThresholdMax, "test")
	assert.True(t, ok)
	assert.LessOrEqual(t, doc["macroDriftThreshold"].(float64), macroDriftThresholdMax)
	assert.NotEmpty(t, c.Rationale)
}

func TestNudgeToward_StepNeverExceedsTenPercent(t *testing.T) {
	doc := map[string]any{"rangeBreakoutMultiplier": 0.9}
	_, ok := nudgeToward(doc, "rangeBreakoutMultiplier", rangeBreakoutMultiplierTarget, rangeBreakoutMultiplierMin, rangeBreakoutMultiplierMax, "test")
	assert.True(t, ok)
	next := doc["rangeBreakoutMultiplier"].(float64)
	assert.GreaterOrEqual(t, next, 0.9*(1-maxNudgeFraction)-1e-9)
}

func TestNudgeToward_NoOpWhenAlreadyAtTarget(t *testing.T) {
	doc := map[string]any{"macroDriftThreshold": macroDriftThresholdTarget}
	_, ok := nudgeToward(doc, "macroDriftThreshold", macroDriftThresholdTarget, macroDriftThresholdMin, macroDriftThresholdMax, "test")
	assert.False(t, ok)
}

func TestNudgeUp_NeverExceedsMax(t *testing.T) {
	doc := map[string]any{"stateStrengthUpMultiplier": 1.19}
	_, ok := nudgeUp(doc, "stateStrengthUpMultiplier", stateStrengthUpMultiplierMax, "test")
	assert.True(t, ok)
	assert.LessOrEqual(t, doc["stateStrengthUpMultiplier"].(float64), stateStrengthUpMultiplierMax)
}

func TestNudgeUp_NoOpAtMax(t *testing.T) {
	doc := map[string]any{"stateStrengthUpMultiplier": stateStrengthUpMultiplierMax}
	_, ok := nudgeUp(doc, "stateStrengthUpMultiplier", stateStrengthUpMultiplierMax, "test")
	assert.False(t, ok)
}

func TestApplyRules_NoChangesWhenNoRuleTriggers(t *testing.T) {
	tr := &Tuner{}
	risk := defaultRiskDocument()
	stats := Stats{
		BreakoutInRangeWinRate: 0.5, // above 0.35 threshold, rule 1 doesn't fire
		HighAccelAvgR:          1.0, // below 1.5, rule 2 doesn't fire
		MacroDriftExitCount:    1,   // below 3, rule 3 doesn't fire
		LatePhaseAvgR:          0.5, // below 1.0, rule 4 doesn't fire
	}
	changes := tr.applyRules(risk, stats)
	assert.Empty(t, changes)
}

func TestApplyRules_LowWinRateNudgesRangeBreakoutMultiplierDown(t *testing.T) {
	tr := &Tuner{}
	risk := defaultRiskDocument()
	before := risk.Document["rangeBreakoutMultiplier"].(float64)
	stats := Stats{BreakoutInRangeWinRate: 0.2}

	changes := tr.applyRules(risk, stats)
	assert.Len(t, changes, 1)
	after := risk.Document["rangeBreakoutMultiplier"].(float64)
	assert.Less(t, after, before)
	assert.GreaterOrEqual(t, after, rangeBreakoutMultiplierMin)
}
