package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	tenantdomain "github.com/nutridesk/nutridesk/internal/tenant/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() tenantdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tenant *tenantdomain.Tenant) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tenants (
			id, name, email, stripe_customer_id, subscription_id, subscription_status,
			subscription_plan, subscription_current_period_end, trial_ends_at,
			subscription_started_at, subscription_ends_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tenant.ID,
		tenant.Name,
		tenant.Email,
		tenant.StripeCustomerID,
		tenant.SubscriptionID,
		tenant.SubscriptionStatus,
		tenant.SubscriptionPlan,
		tenant.SubscriptionCurrentPeriodEnd,
		tenant.TrialEndsAt,
		tenant.SubscriptionStartedAt,
		tenant.SubscriptionEndsAt,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*tenantdomain.Tenant, error) {
	return r.findOne(ctx, db, `id = ?`, id)
}

func (r *repo) FindBySubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string) (*tenantdomain.Tenant, error) {
	return r.findOne(ctx, db, `subscription_id = ?`, subscriptionID)
}

func (r *repo) FindByStripeCustomerID(ctx context.Context, db *gorm.DB, customerID string) (*tenantdomain.Tenant, error) {
	return r.findOne(ctx, db, `stripe_customer_id = ?`, customerID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, cond string, args ...any) (*tenantdomain.Tenant, error) {
	var tenant tenantdomain.Tenant
	err := db.WithContext(ctx).
		Table("tenants").
		Where(cond, args...).
		First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tenant, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]tenantdomain.Tenant, error) {
	var tenants []tenantdomain.Tenant
	err := db.WithContext(ctx).
		Table("tenants").
		Order("created_at DESC").
		Find(&tenants).Error
	if err != nil {
		return nil, err
	}
	return tenants, nil
}

func (r *repo) UpdateSubscriptionState(ctx context.Context, db *gorm.DB, id snowflake.ID, state tenantdomain.SubscriptionState) error {
	return db.WithContext(ctx).Exec(
		`UPDATE tenants
		 SET stripe_customer_id = ?,
		     subscription_id = ?,
		     subscription_status = ?,
		     subscription_plan = ?,
		     subscription_current_period_end = ?,
		     trial_ends_at = ?,
		     subscription_started_at = ?,
		     subscription_ends_at = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		state.StripeCustomerID,
		state.SubscriptionID,
		state.SubscriptionStatus,
		state.SubscriptionPlan,
		state.SubscriptionCurrentPeriodEnd,
		state.TrialEndsAt,
		state.SubscriptionStartedAt,
		state.SubscriptionEndsAt,
		id,
	).Error
}
