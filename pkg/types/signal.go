package types

import (
	"time"

	"github.com/google/uuid"
)

// SignalStatus is the lifecycle status of a Signal.
type SignalStatus string

const (
	SignalStatusPending  SignalStatus = "pending"
	SignalStatusApproved SignalStatus = "approved"
	SignalStatusRejected SignalStatus = "rejected"
)

// Signal is a normalized trading-opportunity record ingested from a webhook,
// subject to deduplication and enrichment before it reaches the orchestrator.
type Signal struct {
	ID                 uuid.UUID
	Symbol             string
	Direction          SignalDirection
	Timeframe          string
	SourceTimestamp    time.Time
	RawPayload         map[string]any
	SignalHash         string
	Status             SignalStatus
	Processed          bool
	ProcessingLock     bool
	ProcessingAttempts int
	NextRetryAt        *time.Time
	ExperimentID       *uuid.UUID
	RejectionReason    *string
	IsTest             bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// WebhookStatus is the outcome recorded for one inbound webhook delivery.
type WebhookStatus string

const (
	WebhookAccepted         WebhookStatus = "accepted"
	WebhookDuplicate        WebhookStatus = "duplicate"
	WebhookInvalidSignature WebhookStatus = "invalid_signature"
	WebhookInvalidPayload   WebhookStatus = "invalid_payload"
	WebhookError            WebhookStatus = "error"
)

// WebhookEvent audits one inbound webhook delivery. Terminal statuses never
// carry a SignalID; WebhookAccepted always does.
type WebhookEvent struct {
	ID               uuid.UUID
	SignalID         *uuid.UUID
	Status           WebhookStatus
	RequestID        string
	ProcessingTimeMs int64
	ErrorMessage     string
	RawPayload       []byte
	CreatedAt        time.Time
}
