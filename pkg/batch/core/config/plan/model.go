// Package plan defines the YAML model for pipeline plan definitions.
// A plan names a job and the ordered stages it runs; each stage references
// a registered tasklet component by name. Stages always run sequentially,
// and a stage failure ends the job.
package plan

import (
	coreAdapter "github.com/tigerroll/hourglass/pkg/batch/core/adapter"
	core "github.com/tigerroll/hourglass/pkg/batch/core/application/port"
	config "github.com/tigerroll/hourglass/pkg/batch/core/config"
)

// PlanDefinitionBytes holds the raw content of an embedded plan definition file.
type PlanDefinitionBytes []byte

// Job represents the top-level structure of a plan job definition.
type Job struct {
	ID          string         `yaml:"id"`                    // Unique identifier for the job.
	Name        string         `yaml:"name"`                  // Human-readable name of the job.
	Description string         `yaml:"description,omitempty"` // Optional description of the job.
	Stages      []Stage        `yaml:"stages"`                // Ordered list of stages the job executes.
	Listeners   []ComponentRef `yaml:"listeners,omitempty"`   // Job-level execution listeners.
}

// Stage represents one sequential stage of a job.
type Stage struct {
	ID          string         `yaml:"id"`                    // Unique identifier for the stage within the job.
	Description string         `yaml:"description,omitempty"` // Optional description of the stage.
	Tasklet     ComponentRef   `yaml:"tasklet"`               // Reference to the tasklet component executing this stage.
	Listeners   []ComponentRef `yaml:"listeners,omitempty"`   // Stage-level execution listeners.
}

// ComponentRef references a registered component by name, with optional
// static configuration properties passed to its builder.
type ComponentRef struct {
	Ref        string            `yaml:"ref"`                  // Name of the registered component.
	Properties map[string]string `yaml:"properties,omitempty"` // Static properties for the component builder.
}

// ComponentBuilder is a function type for building tasklet component instances.
// It receives the application configuration, the resource connection resolver,
// and the static properties declared on the stage's ComponentRef.
type ComponentBuilder func(
	cfg *config.Config,
	dbResolver coreAdapter.ResourceConnectionResolver,
	properties map[string]string,
) (interface{}, error)

// JobExecutionListenerBuilder is a function type for building JobExecutionListener instances.
type JobExecutionListenerBuilder func(cfg *config.Config, properties map[string]string) (core.JobExecutionListener, error)

// StepExecutionListenerBuilder is a function type for building StepExecutionListener instances.
type StepExecutionListenerBuilder func(cfg *config.Config, properties map[string]string) (core.StepExecutionListener, error)
