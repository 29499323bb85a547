package gorm

import (
	"go.uber.org/fx"

	"github.com/tigerroll/hourglass/pkg/batch/adapter/database"
	coreAdapter "github.com/tigerroll/hourglass/pkg/batch/core/adapter"
)

// Module exports the components of the gorm adapter package for dependency
// injection, excluding the concrete per-dialect DB providers.
var Module = fx.Options(
	fx.Provide(NewGormTransactionManagerFactory),
	fx.Provide(fx.Annotate(
		NewGormDBConnectionResolver,
		fx.As(new(database.DBConnectionResolver)),
		fx.As(new(coreAdapter.ResourceConnectionResolver)),
	)),
)
