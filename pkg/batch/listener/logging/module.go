package logging

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/hourglass/pkg/batch/core/application/port"
	config "github.com/tigerroll/hourglass/pkg/batch/core/config"
	plan "github.com/tigerroll/hourglass/pkg/batch/core/config/plan"
	support "github.com/tigerroll/hourglass/pkg/batch/core/config/support"
	logger "github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// NewLoggingJobListenerBuilder creates a builder for LoggingJobListener.
func NewLoggingJobListenerBuilder() plan.JobExecutionListenerBuilder {
	return func(
		_ *config.Config,
		properties map[string]string,
	) (port.JobExecutionListener, error) {
		return NewLoggingJobListener(properties), nil
	}
}

// NewLoggingStepListenerBuilder creates a builder for LoggingStepListener.
func NewLoggingStepListenerBuilder() plan.StepExecutionListenerBuilder {
	return func(
		_ *config.Config,
		properties map[string]string,
	) (port.StepExecutionListener, error) {
		return NewLoggingStepListener(properties), nil
	}
}

// AllLoggingListenerBuilders is a struct to receive all logging listener builders from Fx.
type AllLoggingListenerBuilders struct {
	fx.In
	JobListenerBuilder  plan.JobExecutionListenerBuilder  `name:"loggingJobListener"`
	StepListenerBuilder plan.StepExecutionListenerBuilder `name:"loggingStepListener"`
}

// RegisterAllLoggingListeners registers all logging listener builders with the JobFactory.
func RegisterAllLoggingListeners(jf *support.JobFactory, builders AllLoggingListenerBuilders) {
	jf.RegisterJobListenerBuilder("loggingJobListener", builders.JobListenerBuilder)
	jf.RegisterStepExecutionListenerBuilder("loggingStepListener", builders.StepListenerBuilder)
	logger.Debugf("All logging listeners registered with JobFactory.")
}

// Module aggregates all listener components provided by this package.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewLoggingJobListenerBuilder, fx.ResultTags(`name:"loggingJobListener"`))),
	fx.Provide(fx.Annotate(NewLoggingStepListenerBuilder, fx.ResultTags(`name:"loggingStepListener"`))),
	fx.Invoke(RegisterAllLoggingListeners),
)
