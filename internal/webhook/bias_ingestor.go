package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/apperr"
	"github.com/atlas-desktop/trading-backend/internal/bias"
)

// BiasOutcome is the terminal result of one bias-state ingestion attempt.
type BiasOutcome string

const (
	BiasOutcomeAccepted         BiasOutcome = "ACCEPTED"
	BiasOutcomeInvalidSignature BiasOutcome = "INVALID_SIGNATURE"
	BiasOutcomeInvalidPayload   BiasOutcome = "INVALID_PAYLOAD"
)

// BiasResult is returned from IngestMTF and IngestGamma and carries
// everything the HTTP layer needs to shape its response envelope.
type BiasResult struct {
	Outcome BiasOutcome
	Symbol  string
	Errors  []string
}

// BiasIngestor verifies and parses inbound MTF and gamma-overlay bias
// payloads and feeds them into the aggregator. It mirrors Ingestor's HMAC
// verification so both webhook surfaces share the same signing contract.
type BiasIngestor struct {
	logger      *zap.Logger
	aggregator  *bias.Aggregator
	tracker     *apperr.Tracker
	hmacSecret  []byte
	hmacEnabled bool
}

// NewBiasIngestor creates a BiasIngestor. hmacSecret may be empty when
// hmacEnabled is false.
func NewBiasIngestor(logger *zap.Logger, aggregator *bias.Aggregator, tracker *apperr.Tracker, hmacSecret string, hmacEnabled bool) *BiasIngestor {
	return &BiasIngestor{
		logger:      logger.Named("webhook.bias_ingestor"),
		aggregator:  aggregator,
		tracker:     tracker,
		hmacSecret:  []byte(hmacSecret),
		hmacEnabled: hmacEnabled,
	}
}

// IngestMTF verifies body's signature, parses it as a V3 MTF payload, and
// feeds it into the aggregator.
func (ig *BiasIngestor) IngestMTF(ctx context.Context, body []byte, signatureHeader string) BiasResult {
	if ig.hmacEnabled && !ig.verifySignature(body, signatureHeader) {
		return BiasResult{Outcome: BiasOutcomeInvalidSignature}
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return BiasResult{Outcome: BiasOutcomeInvalidPayload, Errors: []string{"body is not valid JSON"}}
	}

	state, err := ig.aggregator.IngestMTF(payload)
	if err != nil {
		ig.trackError(apperr.Wrap(apperr.KindInvalidPayload, "webhook.bias_mtf", err))
		return BiasResult{Outcome: BiasOutcomeInvalidPayload, Errors: []string{err.Error()}}
	}

	ig.logger.Info("mtf bias state ingested", zap.String("symbol", state.Symbol))
	return BiasResult{Outcome: BiasOutcomeAccepted, Symbol: state.Symbol}
}

// IngestGamma verifies body's signature, parses it as a gamma overlay
// document, and merges it onto symbol's tracked state.
func (ig *BiasIngestor) IngestGamma(ctx context.Context, symbol string, body []byte, signatureHeader string) BiasResult {
	if ig.hmacEnabled && !ig.verifySignature(body, signatureHeader) {
		return BiasResult{Outcome: BiasOutcomeInvalidSignature}
	}
	if symbol == "" {
		return BiasResult{Outcome: BiasOutcomeInvalidPayload, Errors: []string{"symbol is required"}}
	}

	var gammaDoc map[string]any
	if err := json.Unmarshal(body, &gammaDoc); err != nil {
		return BiasResult{Outcome: BiasOutcomeInvalidPayload, Errors: []string{"body is not valid JSON"}}
	}

	state, err := ig.aggregator.IngestGammaOverlay(symbol, gammaDoc)
	if err != nil {
		ig.trackError(apperr.Wrap(apperr.KindInvalidPayload, "webhook.bias_gamma", err))
		return BiasResult{Outcome: BiasOutcomeInvalidPayload, Errors: []string{err.Error()}}
	}

	ig.logger.Info("gamma overlay ingested", zap.String("symbol", state.Symbol))
	return BiasResult{Outcome: BiasOutcomeAccepted, Symbol: state.Symbol}
}

func (ig *BiasIngestor) verifySignature(body []byte, signatureHeader string) bool {
	if signatureHeader == "" {
		return false
	}
	mac := hmac.New(sha256.New, ig.hmacSecret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signatureHeader)) == 1
}

func (ig *BiasIngestor) trackError(err *apperr.Error) {
	if ig.tracker != nil {
		ig.tracker.Record(err)
	}
}
