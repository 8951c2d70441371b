package plan

import (
	"github.com/nutridesk/nutridesk/internal/plan/repository"
	"github.com/nutridesk/nutridesk/internal/plan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("plan.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
