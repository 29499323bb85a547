package factory

import (
	port "github.com/tigerroll/hourglass/pkg/batch/core/application/port"
	repository "github.com/tigerroll/hourglass/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/hourglass/pkg/batch/core/metrics"
	taskletstep "github.com/tigerroll/hourglass/pkg/batch/engine/step/tasklet"
	logger "github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
	"go.uber.org/fx"
)

// StepFactory is an interface for creating `port.Step` instances.
//
// This factory is responsible for converting stage definitions from plan files
// into concrete, executable Step objects. It abstracts the instantiation of
// steps and the injection of their required dependencies.
type StepFactory interface {
	// CreateTaskletStep constructs a tasklet-oriented Step.
	//
	// Parameters:
	//   name: The unique identifier name of the step.
	//   tasklet: An implementation of the `port.Tasklet` interface to be executed.
	//   stepExecutionListeners: A list of `port.StepExecutionListener` to apply to this step.
	//
	// Returns:
	//   `port.Step`: The constructed tasklet-oriented step.
	//   error: An error if step creation fails.
	CreateTaskletStep(
		name string,
		tasklet port.Tasklet,
		stepExecutionListeners []port.StepExecutionListener,
	) (port.Step, error)
}

// DefaultStepFactory is the default implementation of the `StepFactory` interface.
// It manages the dependencies required for constructing `port.Step` instances.
type DefaultStepFactory struct {
	jobRepository  repository.JobRepository
	metricRecorder metrics.MetricRecorder
	tracer         metrics.Tracer
}

// DefaultStepFactoryParams defines the parameters that the `NewDefaultStepFactory` function
// receives via dependency injection (Fx).
type DefaultStepFactoryParams struct {
	fx.In
	JobRepository  repository.JobRepository
	MetricRecorder metrics.MetricRecorder
	Tracer         metrics.Tracer
}

// NewDefaultStepFactory creates a new instance of `DefaultStepFactory`.
//
// Parameters:
//
//	p: The `DefaultStepFactoryParams` struct containing injected dependencies.
//
// Returns: A pointer to the initialized `DefaultStepFactory`.
func NewDefaultStepFactory(
	p DefaultStepFactoryParams,
) *DefaultStepFactory {
	return &DefaultStepFactory{
		jobRepository:  p.JobRepository,
		metricRecorder: p.MetricRecorder,
		tracer:         p.Tracer,
	}
}

// CreateTaskletStep constructs a new `TaskletStep` instance.
// This method is part of the `StepFactory` interface implementation.
//
// name: The unique identifier name of the step.
// tasklet: An implementation of the Tasklet interface to be executed.
// stepExecutionListeners: A list of StepExecutionListeners to apply to this step.
//
// Returns:
//
//	`port.Step`: The constructed tasklet-oriented step.
//	error: An error if step creation fails.
func (f *DefaultStepFactory) CreateTaskletStep(
	name string,
	tasklet port.Tasklet,
	stepExecutionListeners []port.StepExecutionListener,
) (port.Step, error) {
	step := taskletstep.NewTaskletStep(
		name,
		tasklet,
		f.jobRepository,
		stepExecutionListeners,
		f.metricRecorder,
		f.tracer,
	)
	logger.Debugf("Tasklet Step '%s' built.", name)
	return step, nil
}

// Verify that DefaultStepFactory implements the StepFactory interface.
var _ StepFactory = (*DefaultStepFactory)(nil)
