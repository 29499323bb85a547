package tracing

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/hourglass/pkg/batch/core/application/port"
	config "github.com/tigerroll/hourglass/pkg/batch/core/config"
	plan "github.com/tigerroll/hourglass/pkg/batch/core/config/plan"
	support "github.com/tigerroll/hourglass/pkg/batch/core/config/support"
	"github.com/tigerroll/hourglass/pkg/batch/core/metrics"
	"github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// NewTracingJobListenerBuilder creates a builder for TracingJobListener.
func NewTracingJobListenerBuilder(tracer metrics.Tracer) plan.JobExecutionListenerBuilder {
	return func(
		_ *config.Config,
		_ map[string]string,
	) (port.JobExecutionListener, error) {
		return NewTracingJobListener(tracer), nil
	}
}

// NewTracingStepListenerBuilder creates a builder for TracingStepListener.
func NewTracingStepListenerBuilder(tracer metrics.Tracer) plan.StepExecutionListenerBuilder {
	return func(
		_ *config.Config,
		_ map[string]string,
	) (port.StepExecutionListener, error) {
		return NewTracingStepListener(tracer), nil
	}
}

// AllTracingListenerBuilders is a struct to receive all tracing listener builders from Fx.
type AllTracingListenerBuilders struct {
	fx.In
	JobListenerBuilder  plan.JobExecutionListenerBuilder  `name:"tracingJobListener"`
	StepListenerBuilder plan.StepExecutionListenerBuilder `name:"tracingStepListener"`
}

// RegisterAllTracingListeners registers all tracing listener builders with the JobFactory.
func RegisterAllTracingListeners(jf *support.JobFactory, builders AllTracingListenerBuilders) {
	jf.RegisterJobListenerBuilder("tracingJobListener", builders.JobListenerBuilder)
	jf.RegisterStepExecutionListenerBuilder("tracingStepListener", builders.StepListenerBuilder)
	logger.Debugf("All tracing listeners registered with JobFactory.")
}

// Module aggregates all listener components provided by this package.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewTracingJobListenerBuilder, fx.ResultTags(`name:"tracingJobListener"`))),
	fx.Provide(fx.Annotate(NewTracingStepListenerBuilder, fx.ResultTags(`name:"tracingStepListener"`))),
	fx.Invoke(RegisterAllTracingListeners),
)
