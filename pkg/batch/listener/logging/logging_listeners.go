package logging

import (
	"context"

	port "github.com/tigerroll/hourglass/pkg/batch/core/application/port"
	model "github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// --- Job Execution Listener ---

type LoggingJobListener struct {
	properties map[string]string
}

func NewLoggingJobListener(properties map[string]string) port.JobExecutionListener {
	return &LoggingJobListener{properties: properties}
}

func (l *LoggingJobListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {
	logger.Infof("JobExecutionListener: BeforeJob - JobName: %s, ID: %s, Params: %+v", jobExecution.JobName, jobExecution.ID, jobExecution.Parameters)
}

func (l *LoggingJobListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	logger.Infof("JobExecutionListener: AfterJob - JobName: %s, Status: %s, ExitStatus: %s", jobExecution.JobName, jobExecution.Status, jobExecution.ExitStatus)
}

var _ port.JobExecutionListener = (*LoggingJobListener)(nil)

// --- Step Execution Listener ---

type LoggingStepListener struct {
	properties map[string]string
}

func NewLoggingStepListener(properties map[string]string) port.StepExecutionListener {
	return &LoggingStepListener{properties: properties}
}

func (l *LoggingStepListener) BeforeStep(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Infof("StepExecutionListener: BeforeStep - StepName: %s, ID: %s", stepExecution.StepName, stepExecution.ID)
}

func (l *LoggingStepListener) AfterStep(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Infof("StepExecutionListener: AfterStep - StepName: %s, Status: %s, ExitStatus: %s, In: %d, Out: %d, Warnings: %d",
		stepExecution.StepName, stepExecution.Status, stepExecution.ExitStatus,
		stepExecution.InputRows, stepExecution.OutputRows, stepExecution.WarningCount)
}

var _ port.StepExecutionListener = (*LoggingStepListener)(nil)
