package billing

import (
	"github.com/nutridesk/nutridesk/internal/billing/repository"
	"github.com/nutridesk/nutridesk/internal/billing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billing.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
