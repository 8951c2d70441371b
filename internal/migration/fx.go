package migration

import (
	billingdomain "github.com/nutridesk/nutridesk/internal/billing/domain"
	"github.com/nutridesk/nutridesk/internal/config"
	plandomain "github.com/nutridesk/nutridesk/internal/plan/domain"
	"github.com/nutridesk/nutridesk/internal/seed"
	tenantdomain "github.com/nutridesk/nutridesk/internal/tenant/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// sqlite and mysql get the schema from the models directly; the
			// versioned SQL files are postgres-only.
			err := conn.AutoMigrate(
				&tenantdomain.Tenant{},
				&plandomain.CatalogEntry{},
				&billingdomain.WebhookEvent{},
				&billingdomain.SubscriptionEventLog{},
			)
			if err != nil {
				return err
			}
		}

		return seed.EnsurePlanCatalog(conn, cfg.Billing.SeedPlans)
	}),
)
