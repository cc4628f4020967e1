// Package webhook validates, deduplicates, and persists inbound trading
// signal deliveries. It is the only component permitted to create Signal
// and WebhookEvent rows.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/apperr"
	"github.com/atlas-desktop/trading-backend/internal/store"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// Outcome is the terminal result of one ingestion attempt.
type Outcome string

const (
	OutcomeAccepted         Outcome = "ACCEPTED"
	OutcomeDuplicate        Outcome = "DUPLICATE"
	OutcomeInvalidSignature Outcome = "INVALID_SIGNATURE"
	OutcomeInvalidPayload   Outcome = "INVALID_PAYLOAD"
	OutcomeError            Outcome = "ERROR"
)

// Result is returned from Ingest and carries everything the HTTP layer
// needs to shape its response envelope.
type Result struct {
	Outcome          Outcome
	SignalID         *string
	Errors           []string
	ProcessingTimeMs int64
}

// Ingestor validates, deduplicates, and persists one inbound signal
// delivery per call to Ingest, inserting Signal and WebhookEvent in a
// single transaction.
type Ingestor struct {
	logger      *zap.Logger
	signals     *store.SignalRepository
	tracker     *apperr.Tracker
	hmacSecret  []byte
	hmacEnabled bool
	dedupWindow time.Duration
	now         func() time.Time
}

// New creates an Ingestor. hmacSecret may be empty when hmacEnabled is
// false.
func New(logger *zap.Logger, signals *store.SignalRepository, tracker *apperr.Tracker, hmacSecret string, hmacEnabled bool, dedupWindow time.Duration) *Ingestor {
	return &Ingestor{
		logger:      logger.Named("webhook.ingestor"),
		signals:     signals,
		tracker:     tracker,
		hmacSecret:  []byte(hmacSecret),
		hmacEnabled: hmacEnabled,
		dedupWindow: dedupWindow,
		now:         time.Now,
	}
}

// inboundPayload is the minimal required shape of an inbound webhook body;
// additional fields are preserved verbatim in RawPayload.
type inboundPayload struct {
	Symbol    string `json:"symbol"`
	Direction string `json:"direction"`
	Timeframe string `json:"timeframe"`
	Timestamp string `json:"timestamp"`
}

// Ingest runs the full validate/dedup/persist pipeline for one webhook
// delivery. body is the exact raw request bytes (signature is computed
// over it); signatureHeader is the value of x-webhook-signature, or empty
// if absent.
func (ig *Ingestor) Ingest(ctx context.Context, body []byte, signatureHeader, requestID string) Result {
	start := ig.now()

	if ig.hmacEnabled {
		if !ig.verifySignature(body, signatureHeader) {
			ig.audit(ctx, nil, types.WebhookInvalidSignature, requestID, start, body, "")
			return Result{Outcome: OutcomeInvalidSignature, ProcessingTimeMs: elapsedMs(start, ig.now())}
		}
	}

	var in inboundPayload
	var raw map[string]any
	if err := json.Unmarshal(body, &in); err != nil {
		ig.audit(ctx, nil, types.WebhookInvalidPayload, requestID, start, body, err.Error())
		return Result{Outcome: OutcomeInvalidPayload, Errors: []string{"body is not valid JSON"}, ProcessingTimeMs: elapsedMs(start, ig.now())}
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		raw = map[string]any{}
	}

	if errs := validatePayload(in); len(errs) > 0 {
		ig.audit(ctx, nil, types.WebhookInvalidPayload, requestID, start, body, "")
		return Result{Outcome: OutcomeInvalidPayload, Errors: errs, ProcessingTimeMs: elapsedMs(start, ig.now())}
	}

	sourceTimestamp, err := time.Parse(time.RFC3339, in.Timestamp)
	if err != nil {
		ig.audit(ctx, nil, types.WebhookInvalidPayload, requestID, start, body, "")
		return Result{Outcome: OutcomeInvalidPayload, Errors: []string{"timestamp is not ISO8601"}, ProcessingTimeMs: elapsedMs(start, ig.now())}
	}

	hash := SignalHash(in.Symbol, in.Direction, in.Timeframe, in.Timestamp, raw)

	dup, err := ig.signals.ExistsByHash(ctx, hash, ig.dedupWindow, start)
	if err != nil {
		ig.trackError(apperr.Wrap(apperr.KindTransient, "webhook.dedup_check", err))
		ig.audit(ctx, nil, types.WebhookError, requestID, start, body, err.Error())
		return Result{Outcome: OutcomeError, ProcessingTimeMs: elapsedMs(start, ig.now())}
	}
	if dup {
		ig.audit(ctx, nil, types.WebhookDuplicate, requestID, start, body, "")
		return Result{Outcome: OutcomeDuplicate, ProcessingTimeMs: elapsedMs(start, ig.now())}
	}

	signal := &types.Signal{
		ID:              types.NewID(),
		Symbol:          in.Symbol,
		Direction:       types.SignalDirection(in.Direction),
		Timeframe:       in.Timeframe,
		SourceTimestamp: sourceTimestamp,
		RawPayload:      raw,
		SignalHash:      hash,
		Status:          types.SignalStatusPending,
		CreatedAt:       start,
		UpdatedAt:       start,
	}
	event := &types.WebhookEvent{
		ID:         types.NewID(),
		SignalID:   &signal.ID,
		Status:     types.WebhookAccepted,
		RequestID:  requestID,
		RawPayload: body,
		CreatedAt:  start,
	}

	if err := ig.signals.InsertWithEvent(ctx, signal, event); err != nil {
		if err == store.ErrDuplicateSignal {
			ig.audit(ctx, nil, types.WebhookDuplicate, requestID, start, body, "")
			return Result{Outcome: OutcomeDuplicate, ProcessingTimeMs: elapsedMs(start, ig.now())}
		}
		ig.trackError(apperr.Wrap(apperr.KindTransient, "webhook.persist", err))
		ig.audit(ctx, nil, types.WebhookError, requestID, start, body, err.Error())
		return Result{Outcome: OutcomeError, ProcessingTimeMs: elapsedMs(start, ig.now())}
	}

	id := signal.ID.String()
	processingMs := elapsedMs(start, ig.now())
	ig.logger.Info("signal accepted",
		zap.String("signal_id", id),
		zap.String("symbol", signal.Symbol),
		zap.Int64("processing_time_ms", processingMs))

	event.ProcessingTimeMs = processingMs
	return Result{Outcome: OutcomeAccepted, SignalID: &id, ProcessingTimeMs: processingMs}
}

func (ig *Ingestor) verifySignature(body []byte, signatureHeader string) bool {
	if signatureHeader == "" {
		return false
	}
	mac := hmac.New(sha256.New, ig.hmacSecret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signatureHeader)) == 1
}

// audit records a WebhookEvent for outcomes that never produce a Signal.
// Persistence failures here are tracked but not surfaced: the caller
// already has the terminal outcome it needs.
func (ig *Ingestor) audit(ctx context.Context, signalID *string, status types.WebhookStatus, requestID string, start time.Time, body []byte, errMsg string) {
	if status == types.WebhookAccepted {
		return
	}
	event := &types.WebhookEvent{
		ID:               types.NewID(),
		Status:           status,
		RequestID:        requestID,
		ProcessingTimeMs: elapsedMs(start, ig.now()),
		ErrorMessage:     errMsg,
		RawPayload:       body,
		CreatedAt:        start,
	}
	if err := ig.signals.RecordEvent(ctx, event); err != nil {
		ig.logger.Warn("failed to record webhook audit event", zap.Error(err))
	}
}

func (ig *Ingestor) trackError(err *apperr.Error) {
	if ig.tracker != nil {
		ig.tracker.Record(err)
	}
}

func validatePayload(in inboundPayload) []string {
	var errs []string
	if in.Symbol == "" {
		errs = append(errs, "symbol is required")
	} else if len(in.Symbol) > 20 {
		errs = append(errs, "symbol must be at most 20 characters")
	}
	if in.Direction != string(types.DirectionLong) && in.Direction != string(types.DirectionShort) {
		errs = append(errs, "direction must be long or short")
	}
	if in.Timeframe == "" {
		errs = append(errs, "timeframe is required")
	} else if len(in.Timeframe) > 10 {
		errs = append(errs, "timeframe must be at most 10 characters")
	}
	if in.Timestamp == "" {
		errs = append(errs, "timestamp is required")
	}
	return errs
}

// SignalHash computes the canonical SHA-256 dedup hash of a signal's
// identity fields plus its normalized payload body. Field order in the
// serialized payload is sorted so the hash is stable regardless of JSON
// key order on the wire.
func SignalHash(symbol, direction, timeframe, timestamp string, payload map[string]any) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	normalized := make(map[string]any, len(payload))
	for _, k := range keys {
		normalized[k] = payload[k]
	}
	body, _ := json.Marshal(normalized)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|", symbol, direction, timeframe, timestamp)
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func elapsedMs(start, end time.Time) int64 {
	return end.Sub(start).Milliseconds()
}
