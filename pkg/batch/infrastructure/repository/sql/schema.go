package sql

import (
	"time"

	model "github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
)

// JobInstanceEntity is a schema model used for persistence.
type JobInstanceEntity struct {
	ID             string
	JobName        string
	Parameters     model.JobParameters
	ParametersHash string
	CreateTime     time.Time
	Version        int
}

func (JobInstanceEntity) TableName() string {
	return "batch_job_instance"
}

// JobExecutionEntity is a schema model used for persistence.
type JobExecutionEntity struct {
	ID               string
	JobInstanceID    string
	JobName          string
	Parameters       model.JobParameters
	StartTime        time.Time
	EndTime          *time.Time
	Status           model.JobStatus
	ExitStatus       model.ExitStatus
	ExitCode         int
	Failures         model.FailureList
	CreateTime       time.Time
	LastUpdated      time.Time
	ExecutionContext model.ExecutionContext
	CurrentStepName  string
	Version          int
	// StepExecutions are loaded separately to keep GORM out of relation parsing.
}

func (JobExecutionEntity) TableName() string {
	return "batch_job_execution"
}

// StepExecutionEntity is a schema model used for persistence.
type StepExecutionEntity struct {
	ID               string
	JobExecutionID   string
	StepName         string
	StartTime        time.Time
	EndTime          *time.Time
	Status           model.JobStatus
	ExitStatus       model.ExitStatus
	Failures         model.FailureList
	InputRows        int64
	OutputRows       int64
	WarningCount     int64
	ExecutionContext model.ExecutionContext
	LastUpdated      time.Time
	Version          int
}

func (StepExecutionEntity) TableName() string {
	return "batch_step_execution"
}
