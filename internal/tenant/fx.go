package tenant

import (
	"github.com/nutridesk/nutridesk/internal/tenant/repository"
	"github.com/nutridesk/nutridesk/internal/tenant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tenant.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
