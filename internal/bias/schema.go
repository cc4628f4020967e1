package bias

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// expectedSource is the source tag published by the V3 multi-timeframe
// engine.
const expectedSource = "mtf-engine-v3"

// IsV3Payload classifies a raw payload as a recognized V3 bias event:
// either its source tag matches the V3 engine directly, or its structural
// keys (macro, intent, liquidity, space, trigger) are all present.
func IsV3Payload(payload map[string]any) bool {
	if s, ok := payload["source"].(string); ok && s == expectedSource {
		return true
	}
	required := []string{"macro", "intent", "liquidity", "space", "trigger"}
	for _, key := range required {
		if _, ok := payload[key]; !ok {
			return false
		}
	}
	return true
}

// Normalize converts a validated V3 payload into a UnifiedBiasState. It
// returns an error if macro is missing or the source tag, when present,
// does not match the V3 engine.
func Normalize(payload map[string]any) (*types.UnifiedBiasState, error) {
	if s, ok := payload["source"].(string); ok && s != "" && s != expectedSource {
		return nil, fmt.Errorf("bias: unrecognized source %q", s)
	}
	macro, ok := payload["macro"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("bias: payload missing macro block")
	}

	symbol, _ := payload["symbol"].(string)
	intent, _ := payload["intent"].(map[string]any)
	liquidity, _ := payload["liquidity"].(map[string]any)
	space, _ := payload["space"].(map[string]any)
	trigger, _ := payload["trigger"].(map[string]any)
	levels, _ := payload["levels"].(map[string]any)
	riskContext, _ := payload["riskContext"].(map[string]any)

	state := &types.UnifiedBiasState{
		Symbol:          symbol,
		Bias:            types.Bias(stringField(payload, "bias", string(types.BiasNeutral))),
		BiasScore:       decimalField(payload, "biasScore"),
		Confidence:      decimalField(payload, "confidence"),
		AlignmentScore:  decimalField(payload, "alignmentScore"),
		ConflictScore:   decimalField(payload, "conflictScore"),
		RegimeType:      types.RegimeType(stringField(payload, "regimeType", string(types.RegimeRange))),
		ChopScore:       decimalField(payload, "chopScore"),
		MacroClass:      types.MacroClass(stringField(macro, "class", string(types.MacroNeutral))),
		MacroConfidence: decimalField(macro, "confidence"),
		IntentType:      types.IntentType(stringField(intent, "type", string(types.IntentNeutral))),
		TrendPhase:      types.TrendPhase(stringField(payload, "trendPhase", string(types.PhaseMid))),
		ATRState15m:     types.ATRState(stringField(payload, "atrState15m", string(types.ATRStable))),
		IsStale:         boolField(payload, "isStale"),
		UpdatedAtMs:     int64Field(payload, "updatedAtMs"),
		Source:          expectedSource,
	}

	state.Levels = types.Levels{
		VWAP:      decimalField(levels, "vwap"),
		ORBHigh:   decimalField(levels, "orbHigh"),
		ORBLow:    decimalField(levels, "orbLow"),
		SwingHigh: decimalField(levels, "swingHigh"),
		SwingLow:  decimalField(levels, "swingLow"),
	}
	state.Trigger = types.Trigger{
		Pattern:   stringField(trigger, "pattern", ""),
		Triggered: boolField(trigger, "triggered"),
	}
	state.Liquidity = types.Liquidity{
		SweepHigh:        boolField(liquidity, "sweepHigh"),
		SweepLow:         boolField(liquidity, "sweepLow"),
		Reclaim:          boolField(liquidity, "reclaim"),
		EqualHighCluster: boolField(liquidity, "equalHighCluster"),
		EqualLowCluster:  boolField(liquidity, "equalLowCluster"),
	}
	state.Space = types.Space{
		RoomToResistance: types.RoomLevel(stringField(space, "roomToResistance", string(types.RoomMedium))),
		RoomToSupport:    types.RoomLevel(stringField(space, "roomToSupport", string(types.RoomMedium))),
	}
	state.RiskContext = types.RiskContext{
		InvalidationLevel:  decimalField(riskContext, "invalidationLevel"),
		InvalidationMethod: stringField(riskContext, "invalidationMethod", ""),
		EntryModeHint:      types.EntryModeHint(stringField(riskContext, "entryModeHint", string(types.EntryModeBreakout))),
	}

	if accel, ok := payload["acceleration"].(map[string]any); ok {
		state.Acceleration = &types.Acceleration{
			StateStrengthDelta:  decimalField(accel, "stateStrengthDelta"),
			IntentMomentumDelta: decimalField(accel, "intentMomentumDelta"),
			MacroDriftScore:     decimalField(accel, "macroDriftScore"),
		}
	}

	return state, nil
}

func stringField(m map[string]any, key, def string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return def
}

func boolField(m map[string]any, key string) bool {
	v, _ := m[key].(bool)
	return v
}

func int64Field(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

func decimalField(m map[string]any, key string) decimal.Decimal {
	switch v := m[key].(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case string:
		d, err := decimal.NewFromString(v)
		if err == nil {
			return d
		}
	}
	return decimal.Zero
}
