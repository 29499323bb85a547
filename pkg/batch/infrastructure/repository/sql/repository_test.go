package sql_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	testify_mock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	dbadapter "github.com/tigerroll/hourglass/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/hourglass/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/hourglass/pkg/batch/adapter/database/gorm"
	coreAdapter "github.com/tigerroll/hourglass/pkg/batch/core/adapter"
	model "github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/hourglass/pkg/batch/core/domain/repository"
	tx "github.com/tigerroll/hourglass/pkg/batch/core/tx"
	sqlrepo "github.com/tigerroll/hourglass/pkg/batch/infrastructure/repository/sql"
	"github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
)

// mockTx implements tx.Tx for write-path expectations.
type mockTx struct {
	testify_mock.Mock
}

func (m *mockTx) ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (int64, error) {
	args := m.Called(ctx, model, operation, tableName, query)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockTx) ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (int64, error) {
	args := m.Called(ctx, model, tableName, conflictColumns, updateColumns)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockTx) Savepoint(name string) error           { return nil }
func (m *mockTx) RollbackToSavepoint(name string) error { return nil }

// mockTxManager hands out a single mockTx and records commits/rollbacks.
type mockTxManager struct {
	tx        *mockTx
	commits   int
	rollbacks int
}

func (m *mockTxManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	return m.tx, nil
}
func (m *mockTxManager) Commit(t tx.Tx) error   { m.commits++; return nil }
func (m *mockTxManager) Rollback(t tx.Tx) error { m.rollbacks++; return nil }

type mockTxFactory struct {
	manager *mockTxManager
}

func (f *mockTxFactory) NewTransactionManager(conn dbadapter.DBConnection) tx.TransactionManager {
	return f.manager
}

// singleConnResolver always resolves to the one connection under test.
type singleConnResolver struct {
	conn dbadapter.DBConnection
}

func (r *singleConnResolver) ResolveConnection(ctx context.Context, name string) (coreAdapter.ResourceConnection, error) {
	return r.conn, nil
}

func (r *singleConnResolver) ResolveConnectionName(ctx context.Context, jobExecution interface{}, stepExecution interface{}, defaultName string) (string, error) {
	return defaultName, nil
}

func setupRepo(t *testing.T) (sqlmock.Sqlmock, *mockTx, *mockTxManager, repository.JobRepository) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	dbConn, err := gormadapter.NewGormDBAdapter(gormDB, dbconfig.DatabaseConfig{Type: "mysql"}, "metadata")
	require.NoError(t, err)

	mtx := new(mockTx)
	manager := &mockTxManager{tx: mtx}
	repo := sqlrepo.NewSQLJobRepository(
		&singleConnResolver{conn: dbConn},
		&mockTxFactory{manager: manager},
		"metadata",
	)
	return mock, mtx, manager, repo
}

func TestSQLJobRepository_SaveJobInstance(t *testing.T) {
	_, mtx, manager, repo := setupRepo(t)

	instance := model.NewJobInstance("alignmentJob", model.NewJobParameters())
	mtx.On("ExecuteUpdate", testify_mock.Anything, testify_mock.Anything, "CREATE", "batch_job_instance", testify_mock.Anything).
		Return(int64(1), nil)

	err := repo.SaveJobInstance(context.Background(), instance)
	assert.NoError(t, err)
	assert.Equal(t, 1, manager.commits)
	assert.Zero(t, manager.rollbacks)
	mtx.AssertExpectations(t)
}

func TestSQLJobRepository_UpdateJobInstance_IncrementsVersion(t *testing.T) {
	_, mtx, manager, repo := setupRepo(t)

	instance := model.NewJobInstance("alignmentJob", model.NewJobParameters())
	instance.Version = 0

	mtx.On("ExecuteUpdate", testify_mock.Anything, testify_mock.Anything, "UPDATE", "batch_job_instance", map[string]interface{}{"version": 0}).
		Return(int64(1), nil)

	err := repo.UpdateJobInstance(context.Background(), instance)
	assert.NoError(t, err)
	assert.Equal(t, 1, instance.Version)
	assert.Equal(t, 1, manager.commits)
	mtx.AssertExpectations(t)
}

func TestSQLJobRepository_UpdateJobInstance_OptimisticLocking(t *testing.T) {
	_, mtx, _, repo := setupRepo(t)

	instance := model.NewJobInstance("alignmentJob", model.NewJobParameters())
	instance.Version = 3

	mtx.On("ExecuteUpdate", testify_mock.Anything, testify_mock.Anything, "UPDATE", "batch_job_instance", map[string]interface{}{"version": 3}).
		Return(int64(0), nil)

	err := repo.UpdateJobInstance(context.Background(), instance)
	assert.Error(t, err)
	assert.True(t, exception.IsOptimisticLockingFailure(err))
	// Version is restored when no row matched.
	assert.Equal(t, 3, instance.Version)
	mtx.AssertExpectations(t)
}

func TestSQLJobRepository_FindJobInstanceByID(t *testing.T) {
	mock, _, _, repo := setupRepo(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "job_name", "parameters", "parameters_hash", "create_time", "version"}).
		AddRow("ji-1", "alignmentJob", `{}`, "abc", now, 0)
	mock.ExpectQuery("SELECT (.+) FROM `batch_job_instance`").WillReturnRows(rows)

	instance, err := repo.FindJobInstanceByID(context.Background(), "ji-1")
	require.NoError(t, err)
	assert.Equal(t, "ji-1", instance.ID)
	assert.Equal(t, "alignmentJob", instance.JobName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLJobRepository_FindJobInstanceByID_NotFound(t *testing.T) {
	mock, _, _, repo := setupRepo(t)

	rows := sqlmock.NewRows([]string{"id", "job_name", "parameters", "parameters_hash", "create_time", "version"})
	mock.ExpectQuery("SELECT (.+) FROM `batch_job_instance`").WillReturnRows(rows)

	_, err := repo.FindJobInstanceByID(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrJobInstanceNotFound)
}

func TestSQLJobRepository_FindLatestJobExecution_LoadsStepExecutions(t *testing.T) {
	mock, _, _, repo := setupRepo(t)

	now := time.Now()
	execRows := sqlmock.NewRows([]string{
		"id", "job_instance_id", "job_name", "parameters", "start_time", "end_time",
		"status", "exit_status", "exit_code", "failures", "create_time", "last_updated",
		"execution_context", "current_step_name", "version",
	}).AddRow("je-1", "ji-1", "alignmentJob", `{}`, now, nil,
		"FAILED", "FAILED", 1, `[]`, now, now, `{}`, "consolidate_load", 2)
	mock.ExpectQuery("SELECT (.+) FROM `batch_job_execution`").WillReturnRows(execRows)

	stepRows := sqlmock.NewRows([]string{
		"id", "job_execution_id", "step_name", "start_time", "end_time",
		"status", "exit_status", "failures", "input_rows", "output_rows",
		"warning_count", "execution_context", "last_updated", "version",
	}).AddRow("se-1", "je-1", "resolve_enduses", now, nil,
		"COMPLETED", "COMPLETED", `[]`, 120, 40, 0, `{}`, now, 1)
	mock.ExpectQuery("SELECT (.+) FROM `batch_step_execution`").WillReturnRows(stepRows)

	execution, err := repo.FindLatestJobExecution(context.Background(), "ji-1")
	require.NoError(t, err)
	assert.Equal(t, "je-1", execution.ID)
	require.Len(t, execution.StepExecutions, 1)
	assert.Equal(t, "resolve_enduses", execution.StepExecutions[0].StepName)
	assert.Equal(t, int64(120), execution.StepExecutions[0].InputRows)
	assert.Equal(t, int64(40), execution.StepExecutions[0].OutputRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLJobRepository_FindStepExecutionByID_NotFound(t *testing.T) {
	mock, _, _, repo := setupRepo(t)

	rows := sqlmock.NewRows([]string{
		"id", "job_execution_id", "step_name", "start_time", "end_time",
		"status", "exit_status", "failures", "input_rows", "output_rows",
		"warning_count", "execution_context", "last_updated", "version",
	})
	mock.ExpectQuery("SELECT (.+) FROM `batch_step_execution`").WillReturnRows(rows)

	_, err := repo.FindStepExecutionByID(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrStepExecutionNotFound)
}
