// Package job registers the tempo alignment job with the job factory.
package job

import (
	"go.uber.org/fx"

	"github.com/tigerroll/hourglass/internal/pipeline"
	port "github.com/tigerroll/hourglass/pkg/batch/core/application/port"
	config "github.com/tigerroll/hourglass/pkg/batch/core/config"
	support "github.com/tigerroll/hourglass/pkg/batch/core/config/support"
	model "github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/hourglass/pkg/batch/core/domain/repository"
	runner "github.com/tigerroll/hourglass/pkg/batch/core/job/runner"
	metrics "github.com/tigerroll/hourglass/pkg/batch/core/metrics"
	logger "github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// Name is the job name the plan definition and launcher refer to.
const Name = "tempoAlignment"

// NewTempoAlignmentJobBuilder returns the builder for the tempo alignment
// job. Parameter validation resolves the full pipeline configuration so a
// bad launch fails before the first stage runs.
func NewTempoAlignmentJobBuilder() support.JobBuilder {
	return func(
		jobRepository repository.JobRepository,
		cfg *config.Config,
		listeners []port.JobExecutionListener,
		planDef *model.PlanDefinition,
		metricRecorder metrics.MetricRecorder,
		tracer metrics.Tracer,
	) (port.Job, error) {
		validator := func(params model.JobParameters) error {
			_, err := pipeline.ResolveConfig(cfg, params)
			return err
		}
		return runner.NewPipelineJob(Name, Name, planDef, jobRepository, listeners, metricRecorder, tracer, validator), nil
	}
}

// RegisterTempoAlignmentJob registers the job builder with the factory.
func RegisterTempoAlignmentJob(jf *support.JobFactory) {
	jf.RegisterJobBuilder(Name, NewTempoAlignmentJobBuilder())
	logger.Debugf("Registered job builder '%s'.", Name)
}

// Module registers the tempo alignment job.
var Module = fx.Options(
	fx.Invoke(RegisterTempoAlignmentJob),
)
