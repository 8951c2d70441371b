// Package domain contains the billing reconciler contract: webhook event
// records, the append-only subscription event log, and the service errors
// the HTTP layer maps to response statuses.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// WebhookEvent is the idempotency ledger for inbound processor deliveries.
// One row per external event id; processed_at is stamped only after the
// handler succeeds, so failed deliveries stay retryable.
type WebhookEvent struct {
	ID              snowflake.ID   `gorm:"primaryKey"`
	Provider        string         `gorm:"type:text;not null;uniqueIndex:ux_webhook_events_provider_event,priority:1"`
	ProviderEventID string         `gorm:"type:text;not null;uniqueIndex:ux_webhook_events_provider_event,priority:2"`
	EventType       string         `gorm:"type:text;not null"`
	Payload         datatypes.JSON `gorm:"type:jsonb;not null"`
	ReceivedAt      time.Time      `gorm:"not null"`
	ProcessedAt     *time.Time     `gorm:""`
}

// TableName sets the database table name.
func (WebhookEvent) TableName() string { return "webhook_events" }

// SubscriptionEventLog is the append-only audit trail of subscription state
// transitions. Rows are never updated or deleted, and the log is not
// deduplicated: distinct deliveries of semantically identical events each
// append a row.
type SubscriptionEventLog struct {
	ID                     snowflake.ID      `gorm:"primaryKey"`
	TenantID               snowflake.ID      `gorm:"not null;index"`
	EventType              string            `gorm:"type:text;not null"`
	ProviderEventID        *string           `gorm:"type:text"`
	ProviderSubscriptionID *string           `gorm:"type:text"`
	PreviousStatus         *string           `gorm:"type:text"`
	NewStatus              *string           `gorm:"type:text"`
	PreviousPlan           *string           `gorm:"type:text"`
	NewPlan                *string           `gorm:"type:text"`
	Metadata               datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt              time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (SubscriptionEventLog) TableName() string { return "subscription_event_logs" }
