package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tenant *Tenant) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Tenant, error)
	FindBySubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string) (*Tenant, error)
	FindByStripeCustomerID(ctx context.Context, db *gorm.DB, customerID string) (*Tenant, error)
	List(ctx context.Context, db *gorm.DB) ([]Tenant, error)
	UpdateSubscriptionState(ctx context.Context, db *gorm.DB, id snowflake.ID, state SubscriptionState) error
}
