// Package domain contains the plan catalog: the mapping from payment
// processor price identifiers to human plan names.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// CatalogEntry maps an external price identifier to a plan name. Read-only
// from the reconciler's perspective.
type CatalogEntry struct {
	ID              snowflake.ID `gorm:"primaryKey"`
	PriceID         string       `gorm:"type:text;not null;uniqueIndex:ux_plan_catalog_price_id"`
	Name            string       `gorm:"type:text;not null"`
	BillingInterval *string      `gorm:"type:text"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CatalogEntry) TableName() string { return "plan_catalog" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *CatalogEntry) error
	FindByPriceID(ctx context.Context, db *gorm.DB, priceID string) (*CatalogEntry, error)
	List(ctx context.Context, db *gorm.DB) ([]CatalogEntry, error)
}

type CreatePlanRequest struct {
	PriceID         string  `json:"price_id"`
	Name            string  `json:"name"`
	BillingInterval *string `json:"billing_interval,omitempty"`
}

type Service interface {
	Create(ctx context.Context, req CreatePlanRequest) (*CatalogEntry, error)
	List(ctx context.Context) ([]CatalogEntry, error)
	// ResolvePlanName maps a price id to a plan name. The boolean reports
	// whether the catalog contained the price; callers fall back to the
	// tenant's existing plan on a miss.
	ResolvePlanName(ctx context.Context, priceID string) (string, bool, error)
}

var (
	ErrInvalidPlan   = errors.New("invalid_plan")
	ErrDuplicatePlan = errors.New("duplicate_plan")
)
