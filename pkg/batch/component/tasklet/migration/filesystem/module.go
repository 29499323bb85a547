package filesystem

import (
	"go.uber.org/fx"
)

// FrameworkMigrationsFSTag is the Fx tag for the embedded framework migrations filesystem.
const FrameworkMigrationsFSTag = `name:"frameworkMigrationsFS"`

// AllMigrationFSTag is the Fx tag for the map of all registered migration filesystems.
const AllMigrationFSTag = `name:"allMigrationFS"`

// Module provides the embedded framework migration scripts and the named
// filesystem map the bootstrap hook resolves them from.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		ProvideFrameworkMigrationsFS,
		fx.ResultTags(FrameworkMigrationsFSTag),
	)),
	fx.Provide(fx.Annotate(
		NewAllMigrationFS,
		fx.ParamTags(FrameworkMigrationsFSTag),
		fx.ResultTags(AllMigrationFSTag),
	)),
)
