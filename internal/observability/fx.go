package observability

import (
	"github.com/nutridesk/nutridesk/internal/observability/logger"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(logger.New),
)
