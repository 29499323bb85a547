package runner

import (
	port "github.com/tigerroll/hourglass/pkg/batch/core/application/port"
	repository "github.com/tigerroll/hourglass/pkg/batch/core/domain/repository"
	"go.uber.org/fx"
)

// SimpleJobRunnerParams defines dependencies for SimpleJobRunner.
type SimpleJobRunnerParams struct {
	fx.In
	JobRepository repository.JobRepository
}

// NewJobRunner provides the concrete JobRunner implementation (SimpleJobRunner).
func NewJobRunner(p SimpleJobRunnerParams) port.JobRunner {
	return NewSimpleJobRunner(p.JobRepository)
}

// Module provides the JobRunner implementation.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewJobRunner,
		fx.As(new(port.JobRunner)),
	)),
)
