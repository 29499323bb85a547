// Package port defines the core interfaces (ports) for the batch application.
// These interfaces abstract the application's capabilities and dependencies,
// allowing for flexible implementation and testing.
package port

import (
	"context"

	model "github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/hourglass/pkg/batch/core/metrics"
)

// JobRunner is the interface responsible for executing the entire plan of a Job.
type JobRunner interface {
	// Run starts the execution according to the job's plan definition. This
	// method is expected to run asynchronously.
	//
	// Parameters:
	//   ctx: The context for the operation.
	//   job: The job to run.
	//   jobExecution: The current JobExecution instance.
	//   planDef: The plan definition of the job.
	Run(ctx context.Context, job Job, jobExecution *model.JobExecution, planDef *model.PlanDefinition)
}

// Job is the interface for an executable batch job.
// It is executed by a JobRunner and defines the ordered stage plan.
type Job interface {
	// Run executes the entire job plan.
	//
	// Parameters:
	//   ctx: The context for the operation.
	//   jobExecution: The current JobExecution instance.
	//   jobParameters: The job parameters for the execution.
	//
	// Returns:
	//   error: An error if the job execution fails.
	Run(ctx context.Context, jobExecution *model.JobExecution, jobParameters model.JobParameters) error
	// JobName returns the logical name of the job.
	JobName() string
	// ID returns the unique ID of the job definition.
	ID() string
	// GetPlan returns the job's plan definition structure.
	GetPlan() *model.PlanDefinition
	// ValidateParameters validates job parameters before job execution.
	//
	// Parameters:
	//   params: The job parameters to validate.
	//
	// Returns:
	//   error: An error if validation fails.
	ValidateParameters(params model.JobParameters) error
}

// Step is the interface for a single stage executed within a job.
type Step interface {
	// Execute executes the business logic of the stage.
	//
	// Parameters:
	//   ctx: The context for the operation.
	//   jobExecution: The current JobExecution instance.
	//   stepExecution: The current StepExecution instance.
	//
	// Returns:
	//   error: An error if the stage execution encounters a fatal issue.
	Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) error
	// StepName returns the logical name of the stage.
	StepName() string
	// ID returns the unique ID of the stage definition.
	ID() string

	// SetMetricRecorder sets the MetricRecorder.
	SetMetricRecorder(recorder metrics.MetricRecorder)
	// SetTracer sets the Tracer.
	SetTracer(tracer metrics.Tracer)
}

// Tasklet is the interface for a stage that performs a single operation over
// whole datasets, as opposed to item-by-item processing.
type Tasklet interface {
	// Execute executes the business logic of the Tasklet.
	// stepExecution: The current StepExecution.
	// Returns: An ExitStatus such as ExitStatus.COMPLETED upon success.
	Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error)
	// Close releases resources.
	Close(ctx context.Context) error
	// SetExecutionContext sets the ExecutionContext.
	SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error
	// GetExecutionContext retrieves the ExecutionContext.
	GetExecutionContext(ctx context.Context) (model.ExecutionContext, error)
}

// StepExecutionListener is an interface for handling stage execution events.
type StepExecutionListener interface {
	// BeforeStep is called just before a stage execution starts.
	BeforeStep(ctx context.Context, stepExecution *model.StepExecution)
	// AfterStep is called after a stage execution completes (regardless of success or failure).
	AfterStep(ctx context.Context, stepExecution *model.StepExecution)
}

// JobExecutionListener is an interface for handling job execution events.
type JobExecutionListener interface {
	// BeforeJob is called just before a job execution starts.
	BeforeJob(ctx context.Context, jobExecution *model.JobExecution)
	// AfterJob is called after a job execution completes (regardless of success or failure).
	AfterJob(ctx context.Context, jobExecution *model.JobExecution)
}

// Context key for StepExecution propagation into stage internals.
type contextKey string

const StepExecutionKey contextKey = "stepExecution"

// GetContextWithStepExecution stores a StepExecution in the Context.
func GetContextWithStepExecution(ctx context.Context, se *model.StepExecution) context.Context {
	return context.WithValue(ctx, StepExecutionKey, se)
}

// GetStepExecutionFromContext retrieves a StepExecution from the Context. Returns nil if not found.
func GetStepExecutionFromContext(ctx context.Context) *model.StepExecution {
	if se, ok := ctx.Value(StepExecutionKey).(*model.StepExecution); ok {
		return se
	}
	return nil
}
