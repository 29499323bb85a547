package factory

import (
	"go.uber.org/fx"
)

// Module provides StepFactory related components to Fx.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewDefaultStepFactory,
		fx.As(new(StepFactory)),
	)),
)
