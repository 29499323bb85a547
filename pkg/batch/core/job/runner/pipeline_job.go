package runner

import (
	"context"
	"errors"

	port "github.com/tigerroll/hourglass/pkg/batch/core/application/port"
	model "github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/hourglass/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/hourglass/pkg/batch/core/metrics"
	exception "github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
	"time"
)

// ParametersValidator validates job parameters before any stage runs.
// Implementations typically resolve the full pipeline configuration from the
// parameters and report every invalid value at once.
type ParametersValidator func(params model.JobParameters) error

// PipelineJob is an implementation of core.Job that executes the ordered
// stages of a plan definition sequentially. A stage failure ends the job;
// there is no branching between stages.
type PipelineJob struct {
	id              string
	name            string
	plan            *model.PlanDefinition
	jobRepository   repository.JobRepository
	jobListeners    []port.JobExecutionListener
	metricRecorder  metrics.MetricRecorder
	tracer          metrics.Tracer
	paramsValidator ParametersValidator
}

// Verify that PipelineJob implements the core.Job interface.
var _ port.Job = (*PipelineJob)(nil)

// NewPipelineJob creates a new instance of PipelineJob.
// paramsValidator may be nil when the job has no parameter constraints.
func NewPipelineJob(
	id string,
	name string,
	plan *model.PlanDefinition,
	jobRepository repository.JobRepository,
	jobListeners []port.JobExecutionListener,
	metricRecorder metrics.MetricRecorder,
	tracer metrics.Tracer,
	paramsValidator ParametersValidator,
) *PipelineJob {
	return &PipelineJob{
		id:              id,
		name:            name,
		plan:            plan,
		jobRepository:   jobRepository,
		jobListeners:    jobListeners,
		metricRecorder:  metricRecorder,
		tracer:          tracer,
		paramsValidator: paramsValidator,
	}
}

// ID returns the job ID.
func (j *PipelineJob) ID() string {
	return j.id
}

// JobName returns the job name.
func (j *PipelineJob) JobName() string {
	return j.name
}

// GetPlan returns the job's plan definition.
func (j *PipelineJob) GetPlan() *model.PlanDefinition {
	return j.plan
}

// ValidateParameters validates job parameters.
// Configuration errors are fatal and must surface before the first stage runs.
func (j *PipelineJob) ValidateParameters(params model.JobParameters) error {
	logger.Debugf("Job '%s': Executing JobParameters validation. Parameters: %s", j.name, params.String())
	if j.paramsValidator == nil {
		return nil
	}
	return j.paramsValidator(params)
}

// notifyBeforeJob calls the BeforeJob method of registered JobExecutionListeners.
func (j *PipelineJob) notifyBeforeJob(ctx context.Context, jobExecution *model.JobExecution) {
	for _, l := range j.jobListeners {
		l.BeforeJob(ctx, jobExecution)
	}
}

// notifyAfterJob calls the AfterJob method of registered JobExecutionListeners.
func (j *PipelineJob) notifyAfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	for _, l := range j.jobListeners {
		l.AfterJob(ctx, jobExecution)
	}
}

// Run defines the job execution logic.
// It executes the plan's stages strictly in declaration order.
func (j *PipelineJob) Run(ctx context.Context, jobExecution *model.JobExecution, jobParameters model.JobParameters) error {
	logger.Infof("Starting Job '%s' (Execution ID: %s).", j.name, jobExecution.ID)

	// Start tracing
	ctx, finishSpan := j.tracer.StartJobSpan(ctx, jobExecution)
	defer finishSpan()

	// Record job start metric
	j.metricRecorder.RecordJobStart(ctx, jobExecution)

	// Notify before job execution
	j.notifyBeforeJob(ctx, jobExecution)

	// Post-job execution processing (guaranteed execution via defer)
	defer func() {
		// Set job end time (if not already set by MarkAsFailed/Completed/Stopped)
		if jobExecution.EndTime == nil {
			now := time.Now()
			jobExecution.EndTime = &now
		}

		j.notifyAfterJob(ctx, jobExecution)

		// Record job end metric
		j.metricRecorder.RecordJobEnd(ctx, jobExecution)

		logger.Infof("Job '%s' (Execution ID: %s) finished. Final Status: %s, Exit Status: %s",
			j.name, jobExecution.ID, jobExecution.Status, jobExecution.ExitStatus)

		if warnings := jobExecution.TotalWarnings(); warnings > 0 {
			logger.Warnf("Job '%s' (Execution ID: %s) recorded %d join warnings across all stages.", j.name, jobExecution.ID, warnings)
		}

		// Log StepExecution details without sensitive EC data
		for _, se := range jobExecution.StepExecutions {
			logger.Debugf("  StepExecution Details (Step: %s): %s", se.StepName, se.DebugString())
		}
	}()

	for _, stageName := range j.plan.StageOrder {
		select {
		case <-ctx.Done():
			logger.Warnf("Context cancelled, interrupting execution of Job '%s': %v", j.name, ctx.Err())
			jobExecution.AddFailureException(ctx.Err())
			jobExecution.MarkAsStopped()
			j.tracer.RecordError(ctx, "job_runner", ctx.Err())
			return ctx.Err()
		default:
		}

		elementInterface, ok := j.plan.Stage(stageName)
		if !ok {
			err := exception.NewBatchErrorf(j.name, "Plan stage '%s' not found", stageName)
			logger.Errorf("Job '%s': %v", j.name, err)
			jobExecution.AddFailureException(err)
			jobExecution.MarkAsFailed(err)
			j.tracer.RecordError(ctx, "job_runner", err)
			return err
		}

		step, isStep := elementInterface.(port.Step)
		if !isStep {
			err := exception.NewBatchErrorf(j.name, "Plan stage '%s' is not a valid Step type: %T", stageName, elementInterface)
			jobExecution.AddFailureException(err)
			jobExecution.MarkAsFailed(err)
			j.tracer.RecordError(ctx, "job_runner", err)
			return err
		}

		stepName := step.StepName()
		jobExecution.CurrentStepName = stepName
		logger.Debugf("Job '%s': Executing stage '%s'.", j.name, stepName)

		stepExecution := model.NewStepExecution(model.NewID(), jobExecution, stepName)
		jobExecution.AddStepExecution(stepExecution)
		if err := j.jobRepository.SaveStepExecution(ctx, stepExecution); err != nil {
			logger.Errorf("Job '%s': Failed to save StepExecution (ID: %s): %v", j.name, stepExecution.ID, err)
			jobExecution.AddFailureException(err)
			jobExecution.MarkAsFailed(err)
			j.tracer.RecordError(ctx, "job_runner", err)
			return exception.NewBatchError(j.name, "Error saving new StepExecution", err)
		}

		stepErr := step.Execute(ctx, jobExecution, stepExecution)
		if stepErr != nil {
			logger.Errorf("Job '%s': Error occurred during execution of stage '%s': %v", j.name, stepName, stepErr)
			jobExecution.AddFailureException(stepErr)
			j.tracer.RecordError(ctx, "job_runner", stepErr)
			if errors.Is(stepErr, context.Canceled) {
				jobExecution.MarkAsStopped()
			} else {
				jobExecution.MarkAsFailed(stepErr)
			}
			return stepErr
		}
		logger.Infof("Job '%s': Stage '%s' completed successfully. ExitStatus: %s", j.name, stepName, stepExecution.ExitStatus)
	}

	jobExecution.MarkAsCompleted()
	logger.Infof("Execution of Job '%s' (Execution ID: %s) completed.", j.JobName(), jobExecution.ID)
	return nil
}
