package repository

// JobRepository is the interface for persisting and managing batch execution
// metadata. It embeds multiple smaller repository interfaces to separate
// concerns.
type JobRepository interface {
	JobInstance   // Embeds the JobInstance interface (definition in job_instance.go)
	JobExecution  // Embeds the JobExecution interface (definition in job_execution.go)
	StepExecution // Embeds the StepExecution interface (definition in step_execution.go)

	// Close releases resources (such as database connections) used by the repository.
	Close() error
}
