// Package seed bootstraps the plan catalog on startup so a fresh install can
// resolve processor price ids without a manual admin call.
package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/nutridesk/nutridesk/internal/plan/domain"
	"gorm.io/gorm"
)

// EnsurePlanCatalog inserts the plan entries described by list, a
// comma-separated sequence of "price_id:name" or "price_id:name:interval"
// triples. Existing price ids are left untouched.
func EnsurePlanCatalog(db *gorm.DB, list string) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	entries, err := parsePlanList(list)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, entry := range entries {
			var count int64
			err := tx.WithContext(ctx).
				Table("plan_catalog").
				Where(`price_id = ?`, entry.PriceID).
				Count(&count).Error
			if err != nil {
				return err
			}
			if count > 0 {
				continue
			}

			entry.ID = node.Generate()
			entry.CreatedAt = time.Now().UTC()
			err = tx.WithContext(ctx).Exec(
				`INSERT INTO plan_catalog (id, price_id, name, billing_interval, created_at)
				 VALUES (?, ?, ?, ?, ?)`,
				entry.ID,
				entry.PriceID,
				entry.Name,
				entry.BillingInterval,
				entry.CreatedAt,
			).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func parsePlanList(list string) ([]plandomain.CatalogEntry, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil, nil
	}

	var entries []plandomain.CatalogEntry
	for _, piece := range strings.Split(list, ",") {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}

		parts := strings.SplitN(piece, ":", 3)
		if len(parts) < 2 {
			return nil, errors.New("plan seed entries need price_id:name")
		}

		priceID := strings.TrimSpace(parts[0])
		name := strings.TrimSpace(parts[1])
		if priceID == "" || name == "" {
			return nil, errors.New("plan seed entries need price_id:name")
		}

		entry := plandomain.CatalogEntry{PriceID: priceID, Name: name}
		if len(parts) == 3 {
			if interval := strings.TrimSpace(parts[2]); interval != "" {
				entry.BillingInterval = &interval
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
