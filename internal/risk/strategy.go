package risk

import "github.com/atlas-desktop/trading-backend/pkg/types"

// StrategyTypeFromIntent maps the aggregator's intent read onto the
// strategy-type vocabulary the risk model, portfolio guard, and setup
// validator share.
func StrategyTypeFromIntent(intent types.IntentType) string {
	switch intent {
	case types.IntentBreakout:
		return "BREAKOUT"
	case types.IntentMeanRevert:
		return "MEAN_REVERT"
	case types.IntentPullback:
		return "PULLBACK"
	default:
		return ""
	}
}
