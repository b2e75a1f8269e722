package filesystem

import (
	"go.uber.org/fx"
)

// FrameworkMigrationsFSTag is the Fx tag for the embedded framework migrations filesystem.
const FrameworkMigrationsFSTag = `name:"frameworkMigrationsFS"`

// Module provides the framework migrations filesystem.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		FrameworkMigrationsFS,
		fx.ResultTags(FrameworkMigrationsFSTag),
	)),
)
