package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	port "github.com/tigerroll/hourglass/pkg/batch/core/application/port"
	support "github.com/tigerroll/hourglass/pkg/batch/core/config/support"
	model "github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/hourglass/pkg/batch/core/domain/repository"
	exception "github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// JobLauncher is an interface for launching a Job with JobParameters.
type JobLauncher interface {
	// Launch starts the specified Job with JobParameters.
	// It returns the launched JobExecution instance.
	// The error returned here indicates an error in the launch process itself, not an error in the job's execution.
	Launch(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error)
}

// SimpleJobLauncher implements JobLauncher for local execution.
//
// Job identity follows the parameters hash: launching the same job name with
// the same parameters reuses the existing JobInstance, and is rejected while
// a previous execution of that instance is still running.
type SimpleJobLauncher struct {
	jobRepository repository.JobRepository
	jobFactory    *support.JobFactory
	jobRunner     port.JobRunner
	// activeJobCancellations holds the cancel functions for running jobs.
	activeJobCancellations map[string]context.CancelFunc
	mu                     sync.Mutex
}

// NewSimpleJobLauncher creates a new SimpleJobLauncher.
func NewSimpleJobLauncher(
	repo repository.JobRepository,
	factory *support.JobFactory,
	runner port.JobRunner,
) *SimpleJobLauncher {
	return &SimpleJobLauncher{
		jobRepository:          repo,
		jobFactory:             factory,
		jobRunner:              runner,
		activeJobCancellations: make(map[string]context.CancelFunc),
	}
}

// RegisterCancelFunc registers the cancel function for a running job execution.
func (l *SimpleJobLauncher) RegisterCancelFunc(executionID string, cancelFunc context.CancelFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.activeJobCancellations[executionID] = cancelFunc
	logger.Debugf("Registered CancelFunc for JobExecution (ID: %s).", executionID)
}

// UnregisterCancelFunc unregisters the cancel function for a running job execution.
func (l *SimpleJobLauncher) UnregisterCancelFunc(executionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.activeJobCancellations[executionID]; ok {
		delete(l.activeJobCancellations, executionID)
		logger.Debugf("Unregistered CancelFunc for JobExecution (ID: %s).", executionID)
	}
}

// GetCancelFunc retrieves the cancel function for the specified JobExecution ID.
func (l *SimpleJobLauncher) GetCancelFunc(executionID string) (context.CancelFunc, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cancelFunc, ok := l.activeJobCancellations[executionID]
	return cancelFunc, ok
}

// Launch launches a job execution.
func (l *SimpleJobLauncher) Launch(ctx context.Context, jobName string, jobParameters model.JobParameters) (*model.JobExecution, error) {
	const op = "SimpleJobLauncher.Launch"
	logger.Infof("Launching Job '%s' using JobLauncher. Parameters: %s", jobName, jobParameters.String())

	var jobExecution *model.JobExecution
	var jobInstance *model.JobInstance

	// 1. Retrieve Job Definition
	jobInstanceDef, err := l.jobFactory.CreateJob(jobName)
	if err != nil {
		return nil, exception.NewBatchError(op, fmt.Sprintf("Failed to create job definition for '%s'", jobName), err)
	}

	// 2. Validate JobParameters.
	// Configuration errors are fatal and reported before any stage runs.
	if err := jobInstanceDef.ValidateParameters(jobParameters); err != nil {
		logger.Errorf("Job '%s': JobParameters validation failed: %v", jobName, err)
		return nil, exception.NewBatchError("job_launcher", "JobParameters validation error", err)
	}

	// 3. Find/Create JobInstance by the parameters hash
	existingInstance, err := l.jobRepository.FindJobInstanceByJobNameAndParameters(ctx, jobName, jobParameters)
	if err != nil && !errors.Is(err, repository.ErrJobInstanceNotFound) {
		return nil, exception.NewBatchError(op, "Failed to search for existing JobInstance", err)
	}

	if existingInstance != nil {
		latestExecution, findErr := l.jobRepository.FindLatestJobExecution(ctx, existingInstance.ID)
		if findErr != nil && !errors.Is(findErr, repository.ErrJobExecutionNotFound) {
			logger.Errorf("Failed to search for latest JobExecution for JobInstance (ID: %s): %v", existingInstance.ID, findErr)
			return nil, exception.NewBatchError("job_launcher", "Launch processing error: Failed to search for latest JobExecution", findErr)
		}

		if latestExecution != nil && !latestExecution.Status.IsFinished() {
			// A running JobExecution exists for the same parameters.
			err := exception.NewBatchErrorf("job_launcher", "A running JobExecution (ID: %s, Status: %s) already exists for JobInstance (ID: %s). Concurrent execution with identical parameters is not allowed.", latestExecution.ID, latestExecution.Status, existingInstance.ID)
			logger.Errorf("%v", err)
			return nil, err
		}

		// Re-execution of a finished instance with identical parameters.
		jobExecution = model.NewJobExecution(existingInstance.ID, jobName, existingInstance.Parameters)
		jobInstance = existingInstance
		logger.Infof("Creating new JobExecution for existing JobInstance (ID: %s).", existingInstance.ID)
	} else {
		// New execution path: create a new JobInstance.
		jobInstance = model.NewJobInstance(jobName, jobParameters)
		if err := l.jobRepository.SaveJobInstance(ctx, jobInstance); err != nil {
			return nil, exception.NewBatchError(op, fmt.Sprintf("Failed to save new JobInstance for '%s'", jobName), err)
		}
		logger.Infof("Created and saved new JobInstance (ID: %s, JobName: %s).", jobInstance.ID, jobName)

		jobExecution = model.NewJobExecution(jobInstance.ID, jobName, jobInstance.Parameters)
	}

	// 4. Initial persistence of JobExecution and start of asynchronous execution

	// Create Context with CancelFunc and set it in JobExecution
	jobCtx, cancel := context.WithCancel(ctx)
	jobExecution.CancelFunc = cancel
	l.RegisterCancelFunc(jobExecution.ID, cancel)

	logger.Infof("Starting launch process for Job '%s' (Execution ID: %s, Job Instance ID: %s).", jobName, jobExecution.ID, jobInstance.ID)

	// Save JobExecution to JobRepository (Initial Save)
	err = l.jobRepository.SaveJobExecution(jobCtx, jobExecution)
	if err != nil {
		l.UnregisterCancelFunc(jobExecution.ID)
		logger.Errorf("Failed to persist JobExecution (ID: %s) initially: %v", jobExecution.ID, err)
		return jobExecution, exception.NewBatchError("job_launcher", "Launch processing error: Failed to save JobExecution initially", err)
	}
	logger.Debugf("Initially saved JobExecution (ID: %s) to JobRepository (Status: %s).", jobExecution.ID, jobExecution.Status)

	// 5. Start JobRunner asynchronously
	go func() {
		defer l.UnregisterCancelFunc(jobExecution.ID)
		// The JobRunner updates the JobExecution status to STARTED and begins execution.
		l.jobRunner.Run(jobCtx, jobInstanceDef, jobExecution, jobInstanceDef.GetPlan())
	}()

	// Launch returns the JobExecution and exits.
	return jobExecution, nil
}
