package bias

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func v3Payload() map[string]any {
	return map[string]any{
		"source":     "mtf-engine-v3",
		"symbol":     "SPY",
		"bias":       "BULLISH",
		"biasScore":  0.6,
		"regimeType": "TREND",
		"macro":      map[string]any{"class": "MACRO_TREND_UP", "confidence": 0.8},
		"intent":     map[string]any{"type": "BREAKOUT"},
		"liquidity":  map[string]any{"sweepHigh": true, "reclaim": false},
		"space":      map[string]any{"roomToResistance": "LOW"},
		"trigger":    map[string]any{"triggered": true, "pattern": "ORB"},
	}
}

func TestIsV3Payload_BySourceTag(t *testing.T) {
	assert.True(t, IsV3Payload(map[string]any{"source": "mtf-engine-v3"}))
}

func TestIsV3Payload_ByStructuralKeys(t *testing.T) {
	assert.True(t, IsV3Payload(v3Payload()))
}

func TestIsV3Payload_RejectsIncompletePayload(t *testing.T) {
	assert.False(t, IsV3Payload(map[string]any{"macro": map[string]any{}}))
}

func TestNormalize_PopulatesNestedBlocks(t *testing.T) {
	state, err := Normalize(v3Payload())
	require.NoError(t, err)
	assert.Equal(t, "SPY", state.Symbol)
	assert.Equal(t, types.MacroTrendUp, state.MacroClass)
	assert.Equal(t, types.IntentBreakout, state.IntentType)
	assert.True(t, state.Liquidity.SweepHigh)
	assert.Equal(t, types.RoomLow, state.Space.RoomToResistance)
	assert.True(t, state.Trigger.Triggered)
}

func TestNormalize_RejectsMismatchedSource(t *testing.T) {
	payload := v3Payload()
	payload["source"] = "some-other-engine"
	_, err := Normalize(payload)
	assert.Error(t, err)
}

func TestNormalize_RejectsMissingMacro(t *testing.T) {
	payload := v3Payload()
	delete(payload, "macro")
	_, err := Normalize(payload)
	assert.Error(t, err)
}
