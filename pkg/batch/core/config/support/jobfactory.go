// Package support provides supporting structures and factories for the batch framework,
// including the central JobFactory for constructing batch components and jobs.
package support

import (
	"fmt"

	coreAdapter "github.com/tigerroll/hourglass/pkg/batch/core/adapter"
	port "github.com/tigerroll/hourglass/pkg/batch/core/application/port"
	config "github.com/tigerroll/hourglass/pkg/batch/core/config"
	plan "github.com/tigerroll/hourglass/pkg/batch/core/config/plan"
	model "github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/hourglass/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/hourglass/pkg/batch/core/metrics"
	step_factory "github.com/tigerroll/hourglass/pkg/batch/engine/step/factory"
	exception "github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
	"go.uber.org/fx"
)

// JobBuilder is a function type for creating a specific Job.
// It takes necessary dependencies and returns a port.Job interface and an error.
//
// Parameters:
//
//	jobRepository: The job repository for persisting job metadata.
//	cfg: The application configuration.
//	listeners: A slice of JobExecutionListener instances.
//	planDef: The ordered stage pipeline of the job.
//	metricRecorder: The metric recorder for the job.
//	tracer: The tracer for distributed tracing.
//
// Returns:
//
//	The constructed port.Job interface and an error.
type JobBuilder func(
	jobRepository repository.JobRepository,
	cfg *config.Config,
	listeners []port.JobExecutionListener,
	planDef *model.PlanDefinition,
	metricRecorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) (port.Job, error)

// JobFactory is a central factory for constructing key elements of the batch framework,
// such as jobs, stages, components, and listeners, based on plan definitions.
// This factory manages registered builder functions and resolves dependencies to generate executable batch objects.
type JobFactory struct {
	config               *config.Config
	dbConnectionResolver coreAdapter.ResourceConnectionResolver
	componentBuilders    map[string]plan.ComponentBuilder
	jobBuilders          map[string]JobBuilder
	jobListenerBuilders  map[string]plan.JobExecutionListenerBuilder
	stepListenerBuilders map[string]plan.StepExecutionListenerBuilder
	stepFactory          step_factory.StepFactory
	metricRecorder       metrics.MetricRecorder
	tracer               metrics.Tracer
	jobRepository        repository.JobRepository
}

// JobFactoryParams defines the parameters that the NewJobFactory function
// receives via dependency injection (Fx).
// Each field represents a dependency required for the JobFactory to fulfill its responsibilities.
type JobFactoryParams struct {
	fx.In
	Repo           repository.JobRepository               // JobRepository used for persisting job metadata.
	Cfg            *config.Config                         // Global configuration for the framework.
	MetricRecorder metrics.MetricRecorder                 // MetricRecorder for recording metrics.
	Tracer         metrics.Tracer                         // Tracer for distributed tracing.
	DBResolver     coreAdapter.ResourceConnectionResolver // Resolver for database connection names used by component builders.
	StepFactory    step_factory.StepFactory               // StepFactory for building stages.
}

// NewJobFactory creates a new instance of JobFactory.
//
// Parameters:
//
//	p: The JobFactoryParams struct containing injected dependencies.
//
// Returns:
//
//	A pointer to the initialized JobFactory.
func NewJobFactory(p JobFactoryParams) *JobFactory {
	return &JobFactory{
		jobRepository:        p.Repo,
		dbConnectionResolver: p.DBResolver,
		metricRecorder:       p.MetricRecorder,
		tracer:               p.Tracer,
		componentBuilders:    make(map[string]plan.ComponentBuilder),
		jobBuilders:          make(map[string]JobBuilder),
		jobListenerBuilders:  make(map[string]plan.JobExecutionListenerBuilder),
		stepListenerBuilders: make(map[string]plan.StepExecutionListenerBuilder),
		stepFactory:          p.StepFactory,
		config:               p.Cfg,
	}
}

// GetConfig returns a reference to the Config held by the JobFactory.
//
// Returns:
//
//	A pointer to the Config instance.
func (f *JobFactory) GetConfig() *config.Config {
	return f.config
}

// RegisterComponentBuilder registers a component builder function with the given name.
//
// Parameters:
//
//	name: The reference name of the component.
//	builder: The function to build the component.
func (f *JobFactory) RegisterComponentBuilder(name string, builder plan.ComponentBuilder) {
	f.componentBuilders[name] = builder
}

// RegisterJobBuilder registers a job builder function with the given name.
//
// Parameters:
//
//	name: The reference name of the job.
//	builder: The function to build the job.
func (f *JobFactory) RegisterJobBuilder(name string, builder JobBuilder) {
	f.jobBuilders[name] = builder
}

// RegisterJobListenerBuilder registers a JobExecutionListener builder function with the given name.
//
// Parameters:
//
//	name: The reference name of the listener.
//	builder: The function to build the JobExecutionListener.
func (f *JobFactory) RegisterJobListenerBuilder(name string, builder plan.JobExecutionListenerBuilder) {
	f.jobListenerBuilders[name] = builder
}

// RegisterStepExecutionListenerBuilder registers a StepExecutionListener builder function with the given name.
//
// Parameters:
//
//	name: The reference name of the listener.
//	builder: The function to build the StepExecutionListener.
func (f *JobFactory) RegisterStepExecutionListenerBuilder(name string, builder plan.StepExecutionListenerBuilder) {
	f.stepListenerBuilders[name] = builder
}

// CreateJob constructs a core.Job object corresponding to the specified job name.
// It reads the plan definition and instantiates the job's stage pipeline, components,
// and listeners using registered builders.
//
// Parameters:
//
//	jobName: The name of the job to construct.
//
// Returns:
//
//	The constructed port.Job interface and an error.
//	Returns an error if the plan definition is not found, the builder is not registered,
//	or component construction fails.
func (f *JobFactory) CreateJob(jobName string) (port.Job, error) {
	planJob, ok := plan.GetJobDefinition(jobName)
	if !ok {
		return nil, exception.NewBatchErrorf("job_factory", "Plan definition for Job '%s' not found", jobName)
	}

	jobBuilder, found := f.jobBuilders[jobName]
	if !found {
		return nil, exception.NewBatchErrorf("job_factory", "Builder for Job '%s' not registered", jobName)
	}

	planDef, err := plan.ConvertPlanToPipeline(
		planJob,
		f.componentBuilders,
		f.config,
		f.stepFactory,
		f.dbConnectionResolver,
		f.stepListenerBuilders,
	)
	if err != nil {
		return nil, exception.NewBatchError("job_factory", fmt.Sprintf("Failed to convert plan stages for job '%s'", jobName), err)
	}

	var jobListeners []port.JobExecutionListener

	if loggingBuilder, found := f.jobListenerBuilders["loggingJobListener"]; found {
		listenerInstance, err := loggingBuilder(f.config, map[string]string{})
		if err != nil {
			return nil, exception.NewBatchError("job_factory", "Failed to build default loggingJobListener", err)
		}
		jobListeners = append(jobListeners, listenerInstance)
	}

	for _, listenerRef := range planJob.Listeners {
		builder, found := f.jobListenerBuilders[listenerRef.Ref]
		if !found {
			return nil, exception.NewBatchErrorf("job_factory", "JobExecutionListener builder '%s' not registered", listenerRef.Ref)
		}

		listenerInstance, err := builder(f.config, listenerRef.Properties)
		if err != nil {
			return nil, exception.NewBatchError("job_factory", fmt.Sprintf("Failed to build JobExecutionListener '%s'", listenerRef.Ref), err)
		}
		jobListeners = append(jobListeners, listenerInstance)
	}

	jobInstance, err := jobBuilder(
		f.jobRepository,
		f.config,
		jobListeners,
		planDef,
		f.metricRecorder,
		f.tracer,
	)
	if err != nil {
		return nil, exception.NewBatchError("job_factory", fmt.Sprintf("Failed to instantiate job '%s'", jobName), err)
	}

	return jobInstance, nil
}
