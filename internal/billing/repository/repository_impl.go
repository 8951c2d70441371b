package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/nutridesk/nutridesk/internal/billing/domain"
	"github.com/nutridesk/nutridesk/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() billingdomain.Repository {
	return &repo{}
}

func (r *repo) InsertWebhookEvent(ctx context.Context, conn *gorm.DB, event *billingdomain.WebhookEvent) (bool, error) {
	err := conn.WithContext(ctx).Exec(
		`INSERT INTO webhook_events (id, provider, provider_event_id, event_type, payload, received_at, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Provider,
		event.ProviderEventID,
		event.EventType,
		event.Payload,
		event.ReceivedAt,
		event.ProcessedAt,
	).Error
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repo) FindWebhookEvent(ctx context.Context, conn *gorm.DB, provider, providerEventID string) (*billingdomain.WebhookEvent, error) {
	var event billingdomain.WebhookEvent
	err := conn.WithContext(ctx).
		Table("webhook_events").
		Where(`provider = ? AND provider_event_id = ?`, provider, providerEventID).
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *repo) MarkProcessed(ctx context.Context, conn *gorm.DB, id snowflake.ID, processedAt time.Time) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE webhook_events SET processed_at = ? WHERE id = ?`,
		processedAt,
		id,
	).Error
}

func (r *repo) AppendEventLog(ctx context.Context, conn *gorm.DB, entry *billingdomain.SubscriptionEventLog) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO subscription_event_logs (
			id, tenant_id, event_type, provider_event_id, provider_subscription_id,
			previous_status, new_status, previous_plan, new_plan, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.TenantID,
		entry.EventType,
		entry.ProviderEventID,
		entry.ProviderSubscriptionID,
		entry.PreviousStatus,
		entry.NewStatus,
		entry.PreviousPlan,
		entry.NewPlan,
		entry.Metadata,
		entry.CreatedAt,
	).Error
}

func (r *repo) ListEventLogsByTenant(ctx context.Context, conn *gorm.DB, tenantID snowflake.ID) ([]billingdomain.SubscriptionEventLog, error) {
	var entries []billingdomain.SubscriptionEventLog
	err := conn.WithContext(ctx).
		Table("subscription_event_logs").
		Where(`tenant_id = ?`, tenantID).
		Order("created_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
