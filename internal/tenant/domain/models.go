// Package domain contains persistence models for tenants (practice accounts).
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SubscriptionStatus represents lifecycle states for a tenant subscription.
// Values match the payment processor's wire statuses so processor-reported
// states can be stored as-is.
type SubscriptionStatus string

const (
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Tenant is a dietitian practice account, the unit of subscription billing.
// Subscription fields are embedded in the row and are mutated exclusively by
// the webhook reconciler. A tenant is never deleted, only transitioned to
// canceled.
type Tenant struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	Name             string       `gorm:"type:text;not null"`
	Email            string       `gorm:"type:text;not null"`
	StripeCustomerID *string      `gorm:"type:text;index"`

	SubscriptionID               *string            `gorm:"type:text;index"`
	SubscriptionStatus           SubscriptionStatus `gorm:"type:text;not null;default:trialing"`
	SubscriptionPlan             *string            `gorm:"type:text"`
	SubscriptionCurrentPeriodEnd *time.Time         `gorm:""`
	TrialEndsAt                  *time.Time         `gorm:""`
	SubscriptionStartedAt        *time.Time         `gorm:""`
	SubscriptionEndsAt           *time.Time         `gorm:""`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Tenant) TableName() string { return "tenants" }

// TrialExpired reports whether the tenant's trial window has passed at the
// given instant. A tenant without a trial timestamp has no active trial.
func (t *Tenant) TrialExpired(now time.Time) bool {
	if t.TrialEndsAt == nil {
		return false
	}
	return now.After(*t.TrialEndsAt)
}

// SubscriptionState is the mutable subset of tenant columns owned by the
// reconciler. Updates are last-write-wins; there is no version column
// guarding concurrent webhook deliveries for the same tenant.
type SubscriptionState struct {
	SubscriptionID               *string
	SubscriptionStatus           SubscriptionStatus
	SubscriptionPlan             *string
	SubscriptionCurrentPeriodEnd *time.Time
	TrialEndsAt                  *time.Time
	SubscriptionStartedAt        *time.Time
	SubscriptionEndsAt           *time.Time
	StripeCustomerID             *string
}
