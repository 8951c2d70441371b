package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/nutridesk/nutridesk/internal/billing"
	"github.com/nutridesk/nutridesk/internal/clock"
	"github.com/nutridesk/nutridesk/internal/config"
	"github.com/nutridesk/nutridesk/internal/migration"
	"github.com/nutridesk/nutridesk/internal/observability"
	"github.com/nutridesk/nutridesk/internal/plan"
	"github.com/nutridesk/nutridesk/internal/server"
	"github.com/nutridesk/nutridesk/internal/tenant"
	"github.com/nutridesk/nutridesk/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		tenant.Module,
		plan.Module,
		billing.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
