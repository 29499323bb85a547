package metrics

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/hourglass/pkg/batch/core/application/port"
	config "github.com/tigerroll/hourglass/pkg/batch/core/config"
	plan "github.com/tigerroll/hourglass/pkg/batch/core/config/plan"
	support "github.com/tigerroll/hourglass/pkg/batch/core/config/support"
	"github.com/tigerroll/hourglass/pkg/batch/core/metrics"
	"github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// NewMetricsJobListenerBuilder creates a builder for MetricsJobListener.
func NewMetricsJobListenerBuilder(recorder metrics.MetricRecorder) plan.JobExecutionListenerBuilder {
	return func(
		_ *config.Config,
		_ map[string]string,
	) (port.JobExecutionListener, error) {
		return NewMetricsJobListener(recorder), nil
	}
}

// NewMetricsStepListenerBuilder creates a builder for MetricsStepListener.
func NewMetricsStepListenerBuilder(recorder metrics.MetricRecorder) plan.StepExecutionListenerBuilder {
	return func(
		_ *config.Config,
		_ map[string]string,
	) (port.StepExecutionListener, error) {
		return NewMetricsStepListener(recorder), nil
	}
}

// AllMetricsListenerBuilders is a struct to receive all metrics listener builders from Fx.
type AllMetricsListenerBuilders struct {
	fx.In
	JobListenerBuilder  plan.JobExecutionListenerBuilder  `name:"metricsJobListener"`
	StepListenerBuilder plan.StepExecutionListenerBuilder `name:"metricsStepListener"`
}

// RegisterAllMetricsListeners registers all metrics listener builders with the JobFactory.
func RegisterAllMetricsListeners(jf *support.JobFactory, builders AllMetricsListenerBuilders) {
	jf.RegisterJobListenerBuilder("metricsJobListener", builders.JobListenerBuilder)
	jf.RegisterStepExecutionListenerBuilder("metricsStepListener", builders.StepListenerBuilder)
	logger.Debugf("All metrics listeners registered with JobFactory.")
}

// Module aggregates all listener components provided by this package.
var Module = fx.Options(
	// The synchronous recorder comes from infrastructure/metrics; decorate it
	// so recording never blocks stage execution.
	fx.Decorate(NewAsyncMetricRecorderWrapper),

	fx.Provide(fx.Annotate(NewMetricsJobListenerBuilder, fx.ResultTags(`name:"metricsJobListener"`))),
	fx.Provide(fx.Annotate(NewMetricsStepListenerBuilder, fx.ResultTags(`name:"metricsStepListener"`))),

	fx.Invoke(RegisterAllMetricsListeners),
)
