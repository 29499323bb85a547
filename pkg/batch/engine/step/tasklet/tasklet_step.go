package tasklet

import (
	"context"
	"time"

	port "github.com/tigerroll/hourglass/pkg/batch/core/application/port"
	model "github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/hourglass/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/hourglass/pkg/batch/core/metrics"
	exception "github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// TaskletStep is an implementation of core.Step for Tasklet-oriented processing.
// Each pipeline stage wraps one Tasklet that transforms whole datasets in a
// single Execute call.
type TaskletStep struct {
	id                     string
	tasklet                port.Tasklet
	jobRepository          repository.JobRepository
	stepExecutionListeners []port.StepExecutionListener

	metricRecorder metrics.MetricRecorder
	tracer         metrics.Tracer
}

// NewTaskletStep creates a new TaskletStep instance.
func NewTaskletStep(
	id string,
	tasklet port.Tasklet,
	jobRepository repository.JobRepository,
	stepExecutionListeners []port.StepExecutionListener,
	metricRecorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) port.Step {
	return &TaskletStep{
		id:                     id,
		tasklet:                tasklet,
		jobRepository:          jobRepository,
		stepExecutionListeners: stepExecutionListeners,
		metricRecorder:         metricRecorder,
		tracer:                 tracer,
	}
}

// SetMetricRecorder implements port.Step.
func (s *TaskletStep) SetMetricRecorder(recorder metrics.MetricRecorder) {
	s.metricRecorder = recorder
}

// SetTracer implements port.Step.
func (s *TaskletStep) SetTracer(tracer metrics.Tracer) {
	s.tracer = tracer
}

// ID returns the step ID.
func (s *TaskletStep) ID() string {
	return s.id
}

// StepName returns the step name.
func (s *TaskletStep) StepName() string {
	return s.id
}

// notifyBeforeStep calls the BeforeStep method of registered StepExecutionListeners.
func (s *TaskletStep) notifyBeforeStep(ctx context.Context, stepExecution *model.StepExecution) {
	for _, l := range s.stepExecutionListeners {
		l.BeforeStep(ctx, stepExecution)
	}
}

// notifyAfterStep calls the AfterStep method of registered StepExecutionListeners.
func (s *TaskletStep) notifyAfterStep(ctx context.Context, stepExecution *model.StepExecution) {
	for _, l := range s.stepExecutionListeners {
		l.AfterStep(ctx, stepExecution)
	}
}

// Execute runs the Tasklet logic and persists the resulting StepExecution state.
func (s *TaskletStep) Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) (err error) {
	logger.Infof("TaskletStep '%s' executing.", s.id)

	// 1. Update StepExecution status to STARTED
	stepExecution.MarkAsStarted()
	if err := s.jobRepository.UpdateStepExecution(ctx, stepExecution); err != nil {
		return exception.NewBatchError(s.id, "Failed to update StepExecution status to STARTED", err)
	}

	// 2. Set Tasklet Execution Context
	if err := s.tasklet.SetExecutionContext(ctx, stepExecution.ExecutionContext); err != nil {
		stepExecution.MarkAsFailed(err)
		s.jobRepository.UpdateStepExecution(ctx, stepExecution)
		return exception.NewBatchError(s.id, "Failed to set Tasklet ExecutionContext", err)
	}

	// 3. Listener notification (BeforeStep)
	s.notifyBeforeStep(ctx, stepExecution)

	// 4. Execute Tasklet business logic
	var exitStatus model.ExitStatus
	exitStatus, err = s.tasklet.Execute(port.GetContextWithStepExecution(ctx, stepExecution), stepExecution)

	// 5. Retrieve Tasklet Execution Context and reflect it in StepExecution
	if taskletEC, getErr := s.tasklet.GetExecutionContext(ctx); getErr == nil {
		stepExecution.ExecutionContext = taskletEC
	} else {
		logger.Warnf("TaskletStep '%s': Failed to retrieve ExecutionContext from Tasklet: %v", s.id, getErr)
	}

	// 6. Close Tasklet
	if closeErr := s.tasklet.Close(ctx); closeErr != nil {
		logger.Errorf("TaskletStep '%s': Failed to close Tasklet: %v", s.id, closeErr)
		if err == nil {
			err = closeErr // If Tasklet execution succeeds but Close fails, treat it as an error
		}
	}

	// 7. Record row counters accumulated by the Tasklet
	if s.metricRecorder != nil {
		if stepExecution.InputRows > 0 {
			s.metricRecorder.RecordInputRows(ctx, s.id, stepExecution.InputRows)
		}
		if stepExecution.OutputRows > 0 {
			s.metricRecorder.RecordOutputRows(ctx, s.id, stepExecution.OutputRows)
		}
	}

	// 8. Update StepExecution status
	if err != nil {
		s.tracer.RecordError(ctx, s.id, err)
		stepExecution.MarkAsFailed(err)
	} else {
		stepExecution.Status = model.BatchStatusCompleted
		stepExecution.ExitStatus = exitStatus
		now := time.Now()
		stepExecution.EndTime = &now
		stepExecution.LastUpdated = now
	}

	// 9. Listener notification (AfterStep)
	s.notifyAfterStep(ctx, stepExecution)

	// 10. Persist the final StepExecution state
	if updateErr := s.jobRepository.UpdateStepExecution(ctx, stepExecution); updateErr != nil {
		logger.Errorf("TaskletStep '%s': Failed to update final StepExecution state: %v", s.id, updateErr)
		if err == nil {
			err = updateErr // If Tasklet execution succeeds but persistence fails, treat it as an error
		}
	}

	logger.Infof("TaskletStep '%s' finished. ExitStatus: %s", s.id, stepExecution.ExitStatus)
	return err
}

// Verify that TaskletStep implements the core.Step interface.
var _ port.Step = (*TaskletStep)(nil)
