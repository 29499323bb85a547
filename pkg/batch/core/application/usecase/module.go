package usecase

import (
	"go.uber.org/fx"
)

// Module is the Fx module for JobLauncher.
var Module = fx.Options(
	// Provide JobLauncher (uses constructor defined in simple_joblauncher.go)
	fx.Provide(NewSimpleJobLauncher),
	fx.Provide(fx.Annotate(
		func(launcher *SimpleJobLauncher) JobLauncher { return launcher },
		fx.As(new(JobLauncher)),
	)),
)
