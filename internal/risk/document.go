package risk

import "github.com/atlas-desktop/trading-backend/pkg/types"

// Document is the risk model's tunable parameter set, sourced from the
// BiasConfig "risk" document the adaptive tuner owns. Multiplier is pure
// with respect to its Input plus Document: every value it reads beyond
// the bias state itself comes from here.
type Document struct {
	RangeBreakoutMultiplier     float64
	StateStrengthUpMultiplier   float64
	MacroDriftThreshold         float64
	LatePhaseNegativeMultiplier float64
}

// DefaultDocument returns the risk model's seed values, matching
// adaptive.defaultRiskDocument so an unconfigured system behaves
// identically to a freshly-seeded one.
func DefaultDocument() Document {
	return Document{
		RangeBreakoutMultiplier:     0.7,
		StateStrengthUpMultiplier:   1.0,
		MacroDriftThreshold:         MacroDriftThreshold,
		LatePhaseNegativeMultiplier: 0.75,
	}
}

// DocumentFromConfig reads a Document out of a persisted BiasConfig's
// Document map, falling back to DefaultDocument for any key that is
// absent or not a float64 (e.g. a document that predates a newly added
// key).
func DocumentFromConfig(cfg *types.BiasConfig) Document {
	def := DefaultDocument()
	if cfg == nil {
		return def
	}
	return Document{
		RangeBreakoutMultiplier:     floatFromDoc(cfg.Document, "rangeBreakoutMultiplier", def.RangeBreakoutMultiplier),
		StateStrengthUpMultiplier:   floatFromDoc(cfg.Document, "stateStrengthUpMultiplier", def.StateStrengthUpMultiplier),
		MacroDriftThreshold:         floatFromDoc(cfg.Document, "macroDriftThreshold", def.MacroDriftThreshold),
		LatePhaseNegativeMultiplier: floatFromDoc(cfg.Document, "latePhaseNegativeMultiplier", def.LatePhaseNegativeMultiplier),
	}
}

// orDefaults fills any zero-valued field of d from DefaultDocument, so
// callers that construct an Input without a Document (existing tests
// included) get the documented seed behavior rather than a multiplier
// that always collapses to zero.
func (d Document) orDefaults() Document {
	def := DefaultDocument()
	if d.RangeBreakoutMultiplier == 0 {
		d.RangeBreakoutMultiplier = def.RangeBreakoutMultiplier
	}
	if d.StateStrengthUpMultiplier == 0 {
		d.StateStrengthUpMultiplier = def.StateStrengthUpMultiplier
	}
	if d.MacroDriftThreshold == 0 {
		d.MacroDriftThreshold = def.MacroDriftThreshold
	}
	if d.LatePhaseNegativeMultiplier == 0 {
		d.LatePhaseNegativeMultiplier = def.LatePhaseNegativeMultiplier
	}
	return d
}

func floatFromDoc(doc map[string]any, key string, fallback float64) float64 {
	if doc == nil {
		return fallback
	}
	if f, ok := doc[key].(float64); ok {
		return f
	}
	return fallback
}
