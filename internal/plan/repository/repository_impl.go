package repository

import (
	"context"
	"errors"

	plandomain "github.com/nutridesk/nutridesk/internal/plan/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() plandomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *plandomain.CatalogEntry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO plan_catalog (id, price_id, name, billing_interval, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.ID,
		entry.PriceID,
		entry.Name,
		entry.BillingInterval,
		entry.CreatedAt,
	).Error
}

func (r *repo) FindByPriceID(ctx context.Context, db *gorm.DB, priceID string) (*plandomain.CatalogEntry, error) {
	var entry plandomain.CatalogEntry
	err := db.WithContext(ctx).
		Table("plan_catalog").
		Where(`price_id = ?`, priceID).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]plandomain.CatalogEntry, error) {
	var entries []plandomain.CatalogEntry
	err := db.WithContext(ctx).
		Table("plan_catalog").
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
