package domain

import (
	"context"
	"errors"
)

// IngestResult reports what the reconciler did with a delivery.
type IngestResult struct {
	EventType string
	// Ignored is true when the event type is unrecognized or no tenant row
	// matched; the delivery is acknowledged without any state change.
	Ignored bool
}

// Service is the subscription webhook reconciler. IngestWebhook validates
// the delivery's authenticity, parses the event envelope and applies exactly
// one state transition to the addressed tenant's subscription record.
type Service interface {
	IngestWebhook(ctx context.Context, payload []byte, signatureHeader string) (IngestResult, error)
	ListEventLogs(ctx context.Context, tenantID string) ([]SubscriptionEventLog, error)
}

// Authentication failures (secret, signature, payload shape) carry no side
// effects; processing failures happen after verification and signal the
// processor to redeliver.
var (
	ErrSecretNotConfigured   = errors.New("webhook_secret_not_configured")
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
	ErrInvalidTenant         = errors.New("invalid_tenant")
)
