package runner

import (
	"context"
	"time"

	port "github.com/tigerroll/hourglass/pkg/batch/core/application/port"
	model "github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/hourglass/pkg/batch/core/domain/repository"
	logger "github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// SimpleJobRunner is an implementation of port.JobRunner that executes the
// pipeline by calling the Job's Run method.
type SimpleJobRunner struct {
	jobRepository repository.JobRepository
}

// NewSimpleJobRunner creates an instance of SimpleJobRunner.
func NewSimpleJobRunner(
	repo repository.JobRepository,
) port.JobRunner {
	return &SimpleJobRunner{
		jobRepository: repo,
	}
}

// Run executes the Job's stage pipeline.
func (r *SimpleJobRunner) Run(ctx context.Context, jobInstance port.Job, jobExecution *model.JobExecution, planDef *model.PlanDefinition) { // planDef is currently unused but kept for future extensibility.
	// Update JobExecution status to STARTED
	if jobExecution.Status == model.BatchStatusStarting {
		jobExecution.MarkAsStarted()
		if err := r.jobRepository.UpdateJobExecution(ctx, jobExecution); err != nil {
			logger.Errorf("JobRunner: Failed to update JobExecution (ID: %s) status to STARTED: %v", jobExecution.ID, err)
			// Continue processing as a fatal error
		}
	}

	// Execute the Job's Run method
	err := jobInstance.Run(ctx, jobExecution, jobExecution.Parameters)

	// Post-execution processing
	if err != nil {
		// MarkAsFailed/Stopped should have already been called inside JobExecution.Run, but check just in case
		if jobExecution.Status.IsFinished() {
			logger.Warnf("JobRunner: Job execution finished with error, but status already set to %s.", jobExecution.Status)
		} else {
			// Mark as FAILED for unexpected errors
			jobExecution.MarkAsFailed(err)
		}
	} else if !jobExecution.Status.IsFinished() {
		// If Run finishes without error but status is not completed (should not happen normally)
		jobExecution.MarkAsCompleted()
	}

	// Final persistence of JobExecution
	if updateErr := r.jobRepository.UpdateJobExecution(ctx, jobExecution); updateErr != nil {
		logger.Errorf("JobRunner: Failed to update final JobExecution (ID: %s) state: %v", jobExecution.ID, updateErr)
		// Do not add persistence errors to JobExecution Failures (as it's a metadata DB issue)
	}

	// If JobExecution EndTime is not set, set it
	if jobExecution.EndTime == nil {
		now := time.Now()
		jobExecution.EndTime = &now
	}
}

var _ port.JobRunner = (*SimpleJobRunner)(nil)
