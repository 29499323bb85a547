package plan

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// LoadedJobDefinitions holds all loaded plan job definitions.
// This map is used by the JobFactory to retrieve job definitions by their ID.
var LoadedJobDefinitions = make(map[string]Job)

// LoadPlanDefinitionFromBytes loads a job definition from a single plan YAML file byte slice.
// This function is typically used by the application to load a single embedded plan file.
func LoadPlanDefinitionFromBytes(data []byte) error {
	logger.Infof("Starting plan definition loading.")

	var jobDef Job
	if err := yaml.Unmarshal(data, &jobDef); err != nil {
		return exception.NewBatchError("plan_loader", "Failed to parse plan file", err)
	}

	if jobDef.ID == "" {
		return exception.NewBatchError("plan_loader", "'id' is not defined in plan file", nil)
	}
	if jobDef.Name == "" {
		return exception.NewBatchError("plan_loader", fmt.Sprintf("Plan job '%s' does not have 'name' defined", jobDef.ID), nil)
	}
	if len(jobDef.Stages) == 0 {
		return exception.NewBatchError("plan_loader", fmt.Sprintf("Plan job '%s' does not have 'stages' defined", jobDef.ID), nil)
	}

	seen := make(map[string]struct{}, len(jobDef.Stages))
	for i, stage := range jobDef.Stages {
		if stage.ID == "" {
			return exception.NewBatchError("plan_loader", fmt.Sprintf("Stage at index %d of plan job '%s' does not have 'id' defined", i, jobDef.ID), nil)
		}
		if _, dup := seen[stage.ID]; dup {
			return exception.NewBatchError("plan_loader", fmt.Sprintf("Stage ID '%s' is duplicated in plan job '%s'", stage.ID, jobDef.ID), nil)
		}
		seen[stage.ID] = struct{}{}
		if stage.Tasklet.Ref == "" {
			return exception.NewBatchError("plan_loader", fmt.Sprintf("Stage '%s' of plan job '%s' does not have 'tasklet.ref' defined", stage.ID, jobDef.ID), nil)
		}
	}

	if _, exists := LoadedJobDefinitions[jobDef.ID]; exists {
		return exception.NewBatchError("plan_loader", fmt.Sprintf("Plan job ID '%s' is duplicated", jobDef.ID), nil)
	}

	LoadedJobDefinitions[jobDef.ID] = jobDef
	logger.Infof("Loaded plan job '%s' with %d stages.", jobDef.ID, len(jobDef.Stages))
	logger.Infof("Plan definition loading completed. Number of jobs loaded: %d", len(LoadedJobDefinitions))
	return nil
}

// GetJobDefinition retrieves a plan Job definition by its ID.
func GetJobDefinition(jobID string) (Job, bool) {
	job, ok := LoadedJobDefinitions[jobID]
	return job, ok
}

// GetLoadedJobCount returns the number of loaded plan job definitions.
func GetLoadedJobCount() int {
	return len(LoadedJobDefinitions)
}
