package plan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	plan "github.com/tigerroll/hourglass/pkg/batch/core/config/plan"
)

// resetDefinitions clears the global definition map around each test.
func resetDefinitions(t *testing.T) {
	t.Helper()
	plan.LoadedJobDefinitions = make(map[string]plan.Job)
	t.Cleanup(func() {
		plan.LoadedJobDefinitions = make(map[string]plan.Job)
	})
}

const validPlan = `
id: tempoAlignment
name: tempoAlignment
listeners:
  - ref: metricsJobListener
stages:
  - id: resolveEndUses
    tasklet:
      ref: resolveEndUsesTasklet
  - id: exportDataset
    tasklet:
      ref: exportDatasetTasklet
      properties:
        compression_type: GZIP
    listeners:
      - ref: metricsStepListener
`

func TestLoadPlanDefinition(t *testing.T) {
	resetDefinitions(t)

	require.NoError(t, plan.LoadPlanDefinitionFromBytes([]byte(validPlan)))

	job, ok := plan.GetJobDefinition("tempoAlignment")
	require.True(t, ok)
	assert.Equal(t, "tempoAlignment", job.Name)
	require.Len(t, job.Stages, 2)
	assert.Equal(t, "resolveEndUsesTasklet", job.Stages[0].Tasklet.Ref)
	assert.Equal(t, "GZIP", job.Stages[1].Tasklet.Properties["compression_type"])
	require.Len(t, job.Listeners, 1)
	assert.Equal(t, 1, plan.GetLoadedJobCount())
}

func TestLoadPlanDefinitionValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing id", "name: x\nstages:\n  - id: a\n    tasklet:\n      ref: t\n"},
		{"missing name", "id: x\nstages:\n  - id: a\n    tasklet:\n      ref: t\n"},
		{"no stages", "id: x\nname: x\n"},
		{"stage without id", "id: x\nname: x\nstages:\n  - tasklet:\n      ref: t\n"},
		{"stage without tasklet ref", "id: x\nname: x\nstages:\n  - id: a\n    tasklet: {}\n"},
		{"duplicate stage ids", "id: x\nname: x\nstages:\n  - id: a\n    tasklet:\n      ref: t\n  - id: a\n    tasklet:\n      ref: u\n"},
		{"not yaml", "stages: [unclosed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetDefinitions(t)
			assert.Error(t, plan.LoadPlanDefinitionFromBytes([]byte(tt.yaml)))
		})
	}
}

func TestLoadPlanDefinitionRejectsDuplicateJobID(t *testing.T) {
	resetDefinitions(t)

	require.NoError(t, plan.LoadPlanDefinitionFromBytes([]byte(validPlan)))
	assert.Error(t, plan.LoadPlanDefinitionFromBytes([]byte(validPlan)))
}
