package listener

import (
	"context"

	port "github.com/tigerroll/hourglass/pkg/batch/core/application/port"
	model "github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
	"github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// JobCompletionSignaler is a JobExecutionListener that closes a channel
// when a job completes, signaling its completion to external components.
type JobCompletionSignaler struct {
	// JobDoneChan is the channel that will be closed upon job completion.
	JobDoneChan chan struct{}
}

// NewJobCompletionSignaler creates a new instance of JobCompletionSignaler.
//
// Parameters:
//
//	jobDoneChan: The channel to be closed when the job completes.
//
// Returns:
//
//	A pointer to a new `JobCompletionSignaler` instance.
func NewJobCompletionSignaler(jobDoneChan chan struct{}) *JobCompletionSignaler {
	return &JobCompletionSignaler{
		JobDoneChan: jobDoneChan,
	}
}

// BeforeJob is part of the JobExecutionListener interface but does nothing in this implementation.
func (l *JobCompletionSignaler) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {
	// No-op
}

// AfterJob closes the JobDoneChan when the job completes.
// It ensures the channel is not already closed before attempting to close it.
func (l *JobCompletionSignaler) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	logger.Infof("JobCompletionSignaler: Job '%s' (ID: %s) completed. Closing JobDoneChan.", jobExecution.JobName, jobExecution.ID)
	select {
	case <-l.JobDoneChan:
		// Already closed; nothing to signal.
	default:
		close(l.JobDoneChan)
	}
}

// Verify that JobCompletionSignaler implements the port.JobExecutionListener interface.
var _ port.JobExecutionListener = (*JobCompletionSignaler)(nil)
