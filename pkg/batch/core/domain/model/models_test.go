package model_test

import (
	"errors"
	"testing"

	"github.com/tigerroll/hourglass/pkg/batch/core/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobExecutionLifecycle(t *testing.T) {
	params := model.NewJobParameters()
	params.Put("weather_year", 2012)
	instance := model.NewJobInstance("time_alignment", params)
	je := model.NewJobExecution(instance.ID, "time_alignment", params)

	assert.Equal(t, model.BatchStatusStarting, je.Status)
	assert.False(t, je.Status.IsFinished())

	je.MarkAsStarted()
	assert.Equal(t, model.BatchStatusStarted, je.Status)

	je.MarkAsCompleted()
	assert.Equal(t, model.BatchStatusCompleted, je.Status)
	assert.Equal(t, model.ExitStatusCompleted, je.ExitStatus)
	assert.True(t, je.Status.IsFinished())
	require.NotNil(t, je.EndTime)

	// Terminal states refuse further transitions.
	err := je.TransitionTo(model.BatchStatusStarted)
	assert.Error(t, err)
}

func TestJobExecutionMarkAsFailedRecordsFailure(t *testing.T) {
	params := model.NewJobParameters()
	je := model.NewJobExecution("instance-1", "time_alignment", params)
	je.MarkAsStarted()

	cause := errors.New("stage expand_calendar failed")
	je.MarkAsFailed(cause)

	assert.Equal(t, model.BatchStatusFailed, je.Status)
	assert.Equal(t, model.ExitStatusFailed, je.ExitStatus)
	require.Len(t, je.Failures, 1)
	assert.Contains(t, je.Failures[0], "expand_calendar")

	// Duplicate failure messages are only recorded once.
	je.AddFailureException(cause)
	assert.Len(t, je.Failures, 1)
}

func TestStepExecutionCounters(t *testing.T) {
	params := model.NewJobParameters()
	je := model.NewJobExecution("instance-1", "time_alignment", params)
	se := model.NewStepExecution(model.NewID(), je, "join_aggregate")
	je.AddStepExecution(se)

	se.MarkAsStarted()
	se.InputRows = 8784
	se.OutputRows = 8784
	se.AddWarnings(3)
	se.AddWarnings(0)
	se.AddWarnings(-1)
	se.MarkAsCompleted()

	assert.Equal(t, int64(3), se.WarningCount)
	assert.Equal(t, int64(3), je.TotalWarnings())
	assert.Contains(t, se.DebugString(), "InputRows:8784")
	assert.Contains(t, se.DebugString(), "WarningCount:3")
}

func TestPlanDefinitionOrdering(t *testing.T) {
	pd := model.NewPlanDefinition()
	require.NoError(t, pd.AddStage("resolve_enduses", "a"))
	require.NoError(t, pd.AddStage("consolidate_load", "b"))
	require.NoError(t, pd.AddStage("expand_calendar", "c"))

	assert.Equal(t, []string{"resolve_enduses", "consolidate_load", "expand_calendar"}, pd.StageOrder)

	el, ok := pd.Stage("consolidate_load")
	assert.True(t, ok)
	assert.Equal(t, "b", el)

	_, ok = pd.Stage("missing")
	assert.False(t, ok)

	// Duplicate names are rejected, order unchanged.
	err := pd.AddStage("expand_calendar", "d")
	assert.Error(t, err)
	assert.Len(t, pd.StageOrder, 3)
}

func TestJobParametersHashIsOrderIndependent(t *testing.T) {
	p1 := model.NewJobParameters()
	p1.Put("weather_year", 2012)
	p1.Put("dataset_id", "comstock")

	p2 := model.NewJobParameters()
	p2.Put("dataset_id", "comstock")
	p2.Put("weather_year", 2012)

	h1, err := p1.Hash()
	require.NoError(t, err)
	h2, err := p2.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	p3 := model.NewJobParameters()
	p3.Put("weather_year", 2018)
	p3.Put("dataset_id", "comstock")
	h3, err := p3.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestExecutionContextRoundTrip(t *testing.T) {
	ec := model.NewExecutionContext()
	ec.Put("consolidated_rows", 42)
	ec.Put("output_location", "out/processed")

	val, err := ec.Value()
	require.NoError(t, err)

	var restored model.ExecutionContext
	require.NoError(t, restored.Scan(val))

	rows, ok := restored.GetInt("consolidated_rows")
	assert.True(t, ok)
	assert.Equal(t, 42, rows)

	loc, ok := restored.GetString("output_location")
	assert.True(t, ok)
	assert.Equal(t, "out/processed", loc)

	// Scanning nil or empty yields an empty usable context.
	var empty model.ExecutionContext
	require.NoError(t, empty.Scan(nil))
	assert.Empty(t, empty)
}
