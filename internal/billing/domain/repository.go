package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertWebhookEvent stores a new delivery. It reports false, with no
	// error, when a row for the same provider event id already exists.
	InsertWebhookEvent(ctx context.Context, db *gorm.DB, event *WebhookEvent) (bool, error)
	FindWebhookEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*WebhookEvent, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error

	AppendEventLog(ctx context.Context, db *gorm.DB, entry *SubscriptionEventLog) error
	ListEventLogsByTenant(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]SubscriptionEventLog, error)
}
