package inmemory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/hourglass/pkg/batch/core/domain/repository"
	"github.com/tigerroll/hourglass/pkg/batch/infrastructure/repository/inmemory"
)

func TestFindJobInstanceByJobNameAndParameters(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	ctx := context.Background()

	params := model.NewJobParameters()
	params.Put("weather_year", "2012")
	instance := model.NewJobInstance("tempoAlignment", params)
	require.NoError(t, repo.SaveJobInstance(ctx, instance))

	found, err := repo.FindJobInstanceByJobNameAndParameters(ctx, "tempoAlignment", params)
	require.NoError(t, err)
	assert.Equal(t, instance.ID, found.ID)

	otherParams := model.NewJobParameters()
	otherParams.Put("weather_year", "2018")
	_, err = repo.FindJobInstanceByJobNameAndParameters(ctx, "tempoAlignment", otherParams)
	assert.ErrorIs(t, err, repository.ErrJobInstanceNotFound)

	_, err = repo.FindJobInstanceByJobNameAndParameters(ctx, "otherJob", params)
	assert.ErrorIs(t, err, repository.ErrJobInstanceNotFound)
}

func TestJobExecutionLifecycle(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	ctx := context.Background()

	instance := model.NewJobInstance("tempoAlignment", model.NewJobParameters())
	require.NoError(t, repo.SaveJobInstance(ctx, instance))

	execution := model.NewJobExecution(instance.ID, "tempoAlignment", instance.Parameters)
	require.NoError(t, repo.SaveJobExecution(ctx, execution))

	execution.MarkAsStarted()
	require.NoError(t, repo.UpdateJobExecution(ctx, execution))

	step := model.NewStepExecution("step-1", execution, "resolveEndUses")
	step.MarkAsStarted()
	step.InputRows = 3
	step.OutputRows = 1
	require.NoError(t, repo.SaveStepExecution(ctx, step))
	step.MarkAsCompleted()
	require.NoError(t, repo.UpdateStepExecution(ctx, step))

	execution.MarkAsCompleted()
	require.NoError(t, repo.UpdateJobExecution(ctx, execution))

	found, err := repo.FindJobExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, found.Status)
	require.Len(t, found.StepExecutions, 1)
	assert.Equal(t, "resolveEndUses", found.StepExecutions[0].StepName)
	assert.Equal(t, int64(3), found.StepExecutions[0].InputRows)
	assert.Equal(t, int64(1), found.StepExecutions[0].OutputRows)
}

func TestFindLatestJobExecution(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	ctx := context.Background()

	instance := model.NewJobInstance("tempoAlignment", model.NewJobParameters())
	require.NoError(t, repo.SaveJobInstance(ctx, instance))

	_, err := repo.FindLatestJobExecution(ctx, instance.ID)
	assert.ErrorIs(t, err, repository.ErrJobExecutionNotFound)

	first := model.NewJobExecution(instance.ID, "tempoAlignment", instance.Parameters)
	require.NoError(t, repo.SaveJobExecution(ctx, first))

	second := model.NewJobExecution(instance.ID, "tempoAlignment", instance.Parameters)
	second.CreateTime = first.CreateTime.Add(1)
	require.NoError(t, repo.SaveJobExecution(ctx, second))

	latest, err := repo.FindLatestJobExecution(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
}

func TestFindJobExecutionByIDReturnsClone(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	ctx := context.Background()

	instance := model.NewJobInstance("tempoAlignment", model.NewJobParameters())
	require.NoError(t, repo.SaveJobInstance(ctx, instance))
	execution := model.NewJobExecution(instance.ID, "tempoAlignment", instance.Parameters)
	require.NoError(t, repo.SaveJobExecution(ctx, execution))

	found, err := repo.FindJobExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	found.Status = model.BatchStatusFailed

	again, err := repo.FindJobExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.NotEqual(t, model.BatchStatusFailed, again.Status)
}
