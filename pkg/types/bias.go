package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bias is the directional read of a UnifiedBiasState.
type Bias string

const (
	BiasBullish Bias = "BULLISH"
	BiasBearish Bias = "BEARISH"
	BiasNeutral Bias = "NEUTRAL"
)

// RegimeType classifies the prevailing market structure.
type RegimeType string

const (
	RegimeTrend      RegimeType = "TREND"
	RegimeRange      RegimeType = "RANGE"
	RegimeTransition RegimeType = "TRANSITION"
)

// IntentType is the aggregator's read of what the market is trying to do.
type IntentType string

const (
	IntentBreakout   IntentType = "BREAKOUT"
	IntentPullback   IntentType = "PULLBACK"
	IntentMeanRevert IntentType = "MEAN_REVERT"
	IntentNeutral    IntentType = "NEUTRAL"
	IntentNoTrade    IntentType = "NO_TRADE"
)

// TrendPhase locates where in a trend's lifecycle price currently sits.
type TrendPhase string

const (
	PhaseEarly TrendPhase = "EARLY"
	PhaseMid   TrendPhase = "MID"
	PhaseLate  TrendPhase = "LATE"
)

// RoomLevel classifies available room to the next structural level.
type RoomLevel string

const (
	RoomLow    RoomLevel = "LOW"
	RoomMedium RoomLevel = "MEDIUM"
	RoomHigh   RoomLevel = "HIGH"
)

// MacroClass is the higher-timeframe macro read feeding the risk model.
type MacroClass string

const (
	MacroBreakdownConfirmed MacroClass = "MACRO_BREAKDOWN_CONFIRMED"
	MacroBreakoutConfirmed  MacroClass = "MACRO_BREAKOUT_CONFIRMED"
	MacroTrendUp            MacroClass = "MACRO_TREND_UP"
	MacroTrendDown          MacroClass = "MACRO_TREND_DOWN"
	MacroNeutral            MacroClass = "MACRO_NEUTRAL"
)

// EntryModeHint tells the setup validator what kind of entry is implied.
type EntryModeHint string

const (
	EntryModeBreakout   EntryModeHint = "BREAKOUT"
	EntryModePullback   EntryModeHint = "PULLBACK"
	EntryModeMeanRevert EntryModeHint = "MEAN_REVERT"
)

// ATRState describes whether realized-range is expanding or contracting.
type ATRState string

const (
	ATRExpanding    ATRState = "EXPANDING"
	ATRContracting  ATRState = "CONTRACTING"
	ATRStable       ATRState = "STABLE"
)

// Levels carries the reference levels the aggregator tracks per symbol.
type Levels struct {
	VWAP        decimal.Decimal `json:"vwap"`
	ORBHigh     decimal.Decimal `json:"orbHigh"`
	ORBLow      decimal.Decimal `json:"orbLow"`
	SwingHigh   decimal.Decimal `json:"swingHigh"`
	SwingLow    decimal.Decimal `json:"swingLow"`
}

// Trigger carries the bar-pattern read and whether it has fired.
type Trigger struct {
	Pattern   string `json:"pattern"`
	Triggered bool   `json:"triggered"`
}

// Liquidity carries liquidity-sweep and cluster state.
type Liquidity struct {
	SweepHigh        bool `json:"sweepHigh"`
	SweepLow         bool `json:"sweepLow"`
	Reclaim          bool `json:"reclaim"`
	EqualHighCluster bool `json:"equalHighCluster"`
	EqualLowCluster  bool `json:"equalLowCluster"`
}

// Space carries room-to-structure reads in both directions.
type Space struct {
	RoomToResistance RoomLevel `json:"roomToResistance"`
	RoomToSupport    RoomLevel `json:"roomToSupport"`
}

// RiskContext carries the invalidation level implied by the current read.
type RiskContext struct {
	InvalidationLevel decimal.Decimal `json:"invalidationLevel"`
	InvalidationMethod string         `json:"invalidationMethod"`
	EntryModeHint     EntryModeHint   `json:"entryModeHint"`
}

// GammaOverlay carries options-dealer-positioning context merged on top of
// a UnifiedBiasState by the gamma merge step.
type GammaOverlay struct {
	Regime         string          `json:"regime"`
	ZeroGammaLevel decimal.Decimal `json:"zeroGammaLevel"`
	DistanceATRs   decimal.Decimal `json:"distanceAtrs"`
}

// Transitions records what changed between the previous and current state
// for a symbol, computed by the transition detector.
type Transitions struct {
	BiasFlip         bool `json:"biasFlip"`
	RegimeFlip       bool `json:"regimeFlip"`
	MacroFlip        bool `json:"macroFlip"`
	IntentChange     bool `json:"intentChange"`
	LiquidityEvent   bool `json:"liquidityEvent"`
	ExpansionEvent   bool `json:"expansionEvent"`
	CompressionEvent bool `json:"compressionEvent"`
}

// Acceleration carries rate-of-change reads used by the risk model and exit
// intelligence.
type Acceleration struct {
	StateStrengthDelta  decimal.Decimal `json:"stateStrengthDelta"`
	IntentMomentumDelta decimal.Decimal `json:"intentMomentumDelta"`
	MacroDriftScore     decimal.Decimal `json:"macroDriftScore"`
}

// Effective is the aggregator's final, risk-adjusted output block.
type Effective struct {
	TradeSuppressed    bool            `json:"tradeSuppressed"`
	EffectiveBiasScore decimal.Decimal `json:"effectiveBiasScore"`
	EffectiveConfidence decimal.Decimal `json:"effectiveConfidence"`
	RiskMultiplier     decimal.Decimal `json:"riskMultiplier"`
	Notes              []string        `json:"notes"`
}

// UnifiedBiasState is the aggregated view of market regime for a symbol at a
// moment, merged from one or more upstream bias-publishing sources.
type UnifiedBiasState struct {
	Symbol     string          `json:"symbol"`
	Bias       Bias            `json:"bias"`
	BiasScore  decimal.Decimal `json:"biasScore"`
	Confidence decimal.Decimal `json:"confidence"`

	AlignmentScore decimal.Decimal `json:"alignmentScore"`
	ConflictScore  decimal.Decimal `json:"conflictScore"`

	RegimeType RegimeType      `json:"regimeType"`
	ChopScore  decimal.Decimal `json:"chopScore"`

	MacroClass      MacroClass      `json:"macroClass"`
	MacroConfidence decimal.Decimal `json:"macroConfidence"`

	IntentType IntentType `json:"intentType"`
	TrendPhase TrendPhase `json:"trendPhase"`

	Levels  Levels  `json:"levels"`
	Trigger Trigger `json:"trigger"`

	Liquidity Liquidity `json:"liquidity"`
	Space     Space     `json:"space"`

	RiskContext RiskContext `json:"riskContext"`

	Gamma *GammaOverlay `json:"gamma,omitempty"`

	ATRState15m ATRState `json:"atrState15m"`

	Transitions  Transitions   `json:"transitions"`
	Acceleration *Acceleration `json:"acceleration,omitempty"`

	IsStale     bool      `json:"isStale"`
	UpdatedAtMs int64     `json:"updatedAtMs"`
	Source      string    `json:"source"`

	Effective Effective `json:"effective"`
}

// ObservedAt converts UpdatedAtMs into a time.Time.
func (s *UnifiedBiasState) ObservedAt() time.Time {
	return time.UnixMilli(s.UpdatedAtMs)
}
