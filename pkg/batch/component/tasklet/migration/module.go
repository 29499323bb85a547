// Package migration handles database schema migrations for the batch
// framework's metadata tables.
package migration

import (
	"go.uber.org/fx"

	"github.com/tigerroll/hourglass/pkg/batch/component/tasklet/migration/drivers"
	"github.com/tigerroll/hourglass/pkg/batch/component/tasklet/migration/filesystem"
)

// Module provides the MigratorProvider along with the embedded framework
// migration scripts and the golang-migrate database drivers.
var Module = fx.Options(
	fx.Provide(NewMigratorProvider),
	filesystem.Module,
	drivers.Module,
)
