// Package sql provides a JobRepository implementation backed by a relational
// database through the database adapter layer.
package sql

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"

	"github.com/tigerroll/hourglass/pkg/batch/adapter/database"
	coreAdapter "github.com/tigerroll/hourglass/pkg/batch/core/adapter"
	"github.com/tigerroll/hourglass/pkg/batch/core/config"
	model "github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/hourglass/pkg/batch/core/domain/repository"
	tx "github.com/tigerroll/hourglass/pkg/batch/core/tx"
	"github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
	"github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// SQLJobRepository implements the repository.JobRepository interface.
// Writes run inside a transaction obtained from the TransactionManagerFactory;
// reads go straight through the resolved connection.
type SQLJobRepository struct {
	dbResolver coreAdapter.ResourceConnectionResolver
	txFactory  tx.TransactionManagerFactory
	// dbName is the name of the database connection used by this JobRepository (e.g., "metadata").
	dbName string

	mu        sync.Mutex
	txManager tx.TransactionManager
}

// NewSQLJobRepository creates a new instance of SQLJobRepository.
func NewSQLJobRepository(
	dbResolver coreAdapter.ResourceConnectionResolver,
	txFactory tx.TransactionManagerFactory,
	dbName string,
) repository.JobRepository {
	return &SQLJobRepository{
		dbResolver: dbResolver,
		txFactory:  txFactory,
		dbName:     dbName,
	}
}

// getDBConnection resolves the DBConnection used by this repository.
func (r *SQLJobRepository) getDBConnection(ctx context.Context) (database.DBConnection, error) {
	connAsResource, err := r.dbResolver.ResolveConnection(ctx, r.dbName)
	if err != nil {
		return nil, exception.NewBatchError("SQLJobRepository", fmt.Sprintf("failed to resolve DB connection '%s'", r.dbName), err)
	}
	conn, ok := connAsResource.(database.DBConnection)
	if !ok {
		return nil, exception.NewBatchErrorf("SQLJobRepository", "resolved connection '%s' is not a database.DBConnection", r.dbName)
	}
	return conn, nil
}

// getTxManager lazily creates the transaction manager for the repository's
// connection. Creation is deferred so the repository can be constructed
// before migrations have run.
func (r *SQLJobRepository) getTxManager(ctx context.Context) (tx.TransactionManager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.txManager != nil {
		return r.txManager, nil
	}

	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}
	r.txManager = r.txFactory.NewTransactionManager(conn)
	return r.txManager, nil
}

// withTx executes fn inside a transaction, committing on success and rolling
// back on failure.
func (r *SQLJobRepository) withTx(ctx context.Context, fn func(executor tx.TxExecutor) error) error {
	manager, err := r.getTxManager(ctx)
	if err != nil {
		return err
	}

	transaction, err := manager.Begin(ctx)
	if err != nil {
		return exception.NewBatchError("SQLJobRepository", "failed to begin transaction", err)
	}

	if err := fn(transaction); err != nil {
		if rbErr := manager.Rollback(transaction); rbErr != nil {
			logger.Errorf("SQLJobRepository: failed to roll back transaction: %v", rbErr)
		}
		return err
	}

	if err := manager.Commit(transaction); err != nil {
		return exception.NewBatchError("SQLJobRepository", "failed to commit transaction", err)
	}
	return nil
}

// isTableNotExist reports whether err stems from the metadata tables not yet
// existing (i.e. the repository was touched before migrations ran).
func (r *SQLJobRepository) isTableNotExist(ctx context.Context, err error) bool {
	conn, connErr := r.getDBConnection(ctx)
	if connErr != nil {
		return false
	}
	return conn.IsTableNotExistError(err)
}

// --- JobInstance implementation ---

func (r *SQLJobRepository) SaveJobInstance(ctx context.Context, instance *model.JobInstance) error {
	const op = "SQLJobRepository.SaveJobInstance"
	entity := fromDomainJobInstance(instance)

	err := r.withTx(ctx, func(executor tx.TxExecutor) error {
		_, err := executor.ExecuteUpdate(ctx, entity, "CREATE", entity.TableName(), nil)
		return err
	})
	if err != nil {
		if r.isTableNotExist(ctx, err) {
			// Migrations have not run yet; the instance is persisted on the next save.
			return nil
		}
		return exception.NewBatchError(op, fmt.Sprintf("failed to save JobInstance (ID: %s)", instance.ID), err)
	}
	return nil
}

func (r *SQLJobRepository) UpdateJobInstance(ctx context.Context, instance *model.JobInstance) error {
	const op = "SQLJobRepository.UpdateJobInstance"

	originalVersion := instance.Version
	instance.Version++
	entity := fromDomainJobInstance(instance)

	var rowsAffected int64
	err := r.withTx(ctx, func(executor tx.TxExecutor) error {
		var err error
		rowsAffected, err = executor.ExecuteUpdate(
			ctx,
			entity,
			"UPDATE",
			entity.TableName(),
			map[string]interface{}{"version": originalVersion},
		)
		return err
	})
	if err != nil {
		instance.Version = originalVersion
		if r.isTableNotExist(ctx, err) {
			return nil
		}
		return exception.NewBatchError(op, fmt.Sprintf("failed to update JobInstance (ID: %s)", instance.ID), err)
	}
	if rowsAffected == 0 {
		instance.Version = originalVersion
		return exception.NewOptimisticLockingFailureException("repository", fmt.Sprintf("JobInstance (ID: %s) with version %d not found for update", instance.ID, originalVersion), nil)
	}
	return nil
}

func (r *SQLJobRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	const op = "SQLJobRepository.FindJobInstanceByJobNameAndParameters"
	hash, err := params.Hash()
	if err != nil {
		return nil, exception.NewBatchError(op, "failed to calculate JobParameters hash", err)
	}

	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	var entities []JobInstanceEntity
	err = conn.ExecuteQuery(ctx, &entities, map[string]interface{}{"job_name": jobName, "parameters_hash": hash})
	if err != nil {
		if conn.IsTableNotExistError(err) {
			return nil, repository.ErrJobInstanceNotFound
		}
		return nil, exception.NewBatchError(op, "failed to find JobInstance", err)
	}

	// The hash narrows the candidates; compare full parameters to rule out
	// hash collisions.
	for i := range entities {
		domainInstance := toDomainJobInstance(&entities[i])
		if domainInstance.Parameters.Equal(params) {
			return domainInstance, nil
		}
		logger.Warnf("%s: JobInstance (ID: %s) hash matched but parameters mismatched. Possible hash collision.", op, domainInstance.ID)
	}

	return nil, repository.ErrJobInstanceNotFound
}

func (r *SQLJobRepository) FindJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error) {
	const op = "SQLJobRepository.FindJobInstanceByID"

	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	var entity JobInstanceEntity
	err = conn.ExecuteQueryAdvanced(ctx, &entity, map[string]interface{}{"id": id}, "", 1)
	if err != nil {
		if conn.IsTableNotExistError(err) {
			return nil, repository.ErrJobInstanceNotFound
		}
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to find JobInstance by ID: %s", id), err)
	}
	if entity.ID == "" {
		return nil, repository.ErrJobInstanceNotFound
	}

	return toDomainJobInstance(&entity), nil
}

func (r *SQLJobRepository) GetJobInstanceCount(ctx context.Context, jobName string) (int, error) {
	const op = "SQLJobRepository.GetJobInstanceCount"

	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return 0, err
	}
	count, err := conn.Count(ctx, &JobInstanceEntity{}, map[string]interface{}{"job_name": jobName})
	if err != nil {
		if conn.IsTableNotExistError(err) {
			return 0, nil
		}
		return 0, exception.NewBatchError(op, "failed to count JobInstances", err)
	}
	return int(count), nil
}

func (r *SQLJobRepository) GetJobNames(ctx context.Context) ([]string, error) {
	const op = "SQLJobRepository.GetJobNames"

	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	var jobNames []string
	err = conn.Pluck(ctx, &JobInstanceEntity{}, "job_name", &jobNames, nil)
	if err != nil {
		if conn.IsTableNotExistError(err) {
			return []string{}, nil
		}
		return nil, exception.NewBatchError(op, "failed to pluck job names", err)
	}
	return jobNames, nil
}

// --- JobExecution implementation ---

func (r *SQLJobRepository) SaveJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	const op = "SQLJobRepository.SaveJobExecution"
	entity := fromDomainJobExecution(jobExecution)

	err := r.withTx(ctx, func(executor tx.TxExecutor) error {
		_, err := executor.ExecuteUpdate(ctx, entity, "CREATE", entity.TableName(), nil)
		return err
	})
	if err != nil {
		if r.isTableNotExist(ctx, err) {
			return nil
		}
		return exception.NewBatchError(op, fmt.Sprintf("failed to save JobExecution (ID: %s)", jobExecution.ID), err)
	}
	return nil
}

func (r *SQLJobRepository) UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	const op = "SQLJobRepository.UpdateJobExecution"

	originalVersion := jobExecution.Version
	jobExecution.Version++
	jobExecution.LastUpdated = time.Now()
	entity := fromDomainJobExecution(jobExecution)

	var rowsAffected int64
	err := r.withTx(ctx, func(executor tx.TxExecutor) error {
		var err error
		rowsAffected, err = executor.ExecuteUpdate(
			ctx,
			entity,
			"UPDATE",
			entity.TableName(),
			map[string]interface{}{"version": originalVersion},
		)
		return err
	})
	if err != nil {
		jobExecution.Version = originalVersion
		if r.isTableNotExist(ctx, err) {
			return nil
		}
		return exception.NewBatchError(op, fmt.Sprintf("failed to update JobExecution (ID: %s)", jobExecution.ID), err)
	}
	if rowsAffected == 0 {
		jobExecution.Version = originalVersion
		return exception.NewOptimisticLockingFailureException("repository", fmt.Sprintf("JobExecution (ID: %s) with version %d not found for update", jobExecution.ID, originalVersion), nil)
	}
	return nil
}

func (r *SQLJobRepository) FindJobExecutionByID(ctx context.Context, executionID string) (*model.JobExecution, error) {
	const op = "SQLJobRepository.FindJobExecutionByID"

	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	var entity JobExecutionEntity
	err = conn.ExecuteQueryAdvanced(ctx, &entity, map[string]interface{}{"id": executionID}, "", 1)
	if err != nil {
		if conn.IsTableNotExistError(err) {
			return nil, repository.ErrJobExecutionNotFound
		}
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to find JobExecution by ID: %s", executionID), err)
	}
	if entity.ID == "" {
		return nil, repository.ErrJobExecutionNotFound
	}

	domainExecution := toDomainJobExecution(&entity)

	stepExecutions, err := r.FindStepExecutionsByJobExecutionID(ctx, executionID)
	if err != nil {
		logger.Errorf("%s: failed to load StepExecutions for JobExecution (ID: %s): %v", op, executionID, err)
	} else {
		domainExecution.StepExecutions = stepExecutions
	}

	return domainExecution, nil
}

// FindStepExecutionsByJobExecutionID retrieves all StepExecutions associated
// with a JobExecution, ordered by start time.
func (r *SQLJobRepository) FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*model.StepExecution, error) {
	const op = "SQLJobRepository.FindStepExecutionsByJobExecutionID"

	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	var entities []StepExecutionEntity
	err = conn.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"job_execution_id": jobExecutionID}, "start_time asc", 0)
	if err != nil {
		if conn.IsTableNotExistError(err) {
			return []*model.StepExecution{}, nil
		}
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to find StepExecutions by JobExecution ID: %s", jobExecutionID), err)
	}

	domainExecutions := make([]*model.StepExecution, len(entities))
	for i := range entities {
		domainExecutions[i] = toDomainStepExecution(&entities[i])
	}
	return domainExecutions, nil
}

func (r *SQLJobRepository) FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*model.JobExecution, error) {
	const op = "SQLJobRepository.FindLatestJobExecution"

	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	var entity JobExecutionEntity
	err = conn.ExecuteQueryAdvanced(ctx, &entity, map[string]interface{}{"job_instance_id": jobInstanceID}, "create_time desc", 1)
	if err != nil {
		if conn.IsTableNotExistError(err) {
			return nil, repository.ErrJobExecutionNotFound
		}
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to find latest JobExecution for JobInstance ID: %s", jobInstanceID), err)
	}
	if entity.ID == "" {
		return nil, repository.ErrJobExecutionNotFound
	}

	domainExecution := toDomainJobExecution(&entity)

	stepExecutions, err := r.FindStepExecutionsByJobExecutionID(ctx, domainExecution.ID)
	if err != nil {
		logger.Errorf("%s: failed to load StepExecutions for JobExecution (ID: %s): %v", op, domainExecution.ID, err)
	} else {
		domainExecution.StepExecutions = stepExecutions
	}

	return domainExecution, nil
}

func (r *SQLJobRepository) FindJobExecutionsByJobInstance(ctx context.Context, jobInstance *model.JobInstance) ([]*model.JobExecution, error) {
	const op = "SQLJobRepository.FindJobExecutionsByJobInstance"

	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	var entities []JobExecutionEntity
	err = conn.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"job_instance_id": jobInstance.ID}, "create_time desc", 0)
	if err != nil {
		if conn.IsTableNotExistError(err) {
			return []*model.JobExecution{}, nil
		}
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to find JobExecutions for JobInstance ID: %s", jobInstance.ID), err)
	}

	domainExecutions := make([]*model.JobExecution, len(entities))
	for i := range entities {
		domainExecutions[i] = toDomainJobExecution(&entities[i])
	}

	// StepExecutions are not loaded here to avoid N+1 queries.
	// Use FindJobExecutionByID when StepExecution details are required.
	return domainExecutions, nil
}

// --- StepExecution implementation ---

func (r *SQLJobRepository) SaveStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	const op = "SQLJobRepository.SaveStepExecution"
	entity := fromDomainStepExecution(stepExecution)

	err := r.withTx(ctx, func(executor tx.TxExecutor) error {
		_, err := executor.ExecuteUpdate(ctx, entity, "CREATE", entity.TableName(), nil)
		return err
	})
	if err != nil {
		if r.isTableNotExist(ctx, err) {
			return nil
		}
		return exception.NewBatchError(op, fmt.Sprintf("failed to save StepExecution (ID: %s)", stepExecution.ID), err)
	}
	return nil
}

func (r *SQLJobRepository) UpdateStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	const op = "SQLJobRepository.UpdateStepExecution"

	originalVersion := stepExecution.Version
	stepExecution.Version++
	stepExecution.LastUpdated = time.Now()
	entity := fromDomainStepExecution(stepExecution)

	var rowsAffected int64
	err := r.withTx(ctx, func(executor tx.TxExecutor) error {
		var err error
		rowsAffected, err = executor.ExecuteUpdate(
			ctx,
			entity,
			"UPDATE",
			entity.TableName(),
			map[string]interface{}{"version": originalVersion},
		)
		return err
	})
	if err != nil {
		stepExecution.Version = originalVersion
		if r.isTableNotExist(ctx, err) {
			return nil
		}
		return exception.NewBatchError(op, fmt.Sprintf("failed to update StepExecution (ID: %s)", stepExecution.ID), err)
	}
	if rowsAffected == 0 {
		stepExecution.Version = originalVersion
		return exception.NewOptimisticLockingFailureException("repository", fmt.Sprintf("StepExecution (ID: %s) with version %d not found for update", stepExecution.ID, originalVersion), nil)
	}
	return nil
}

func (r *SQLJobRepository) FindStepExecutionByID(ctx context.Context, executionID string) (*model.StepExecution, error) {
	const op = "SQLJobRepository.FindStepExecutionByID"

	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	var entity StepExecutionEntity
	err = conn.ExecuteQueryAdvanced(ctx, &entity, map[string]interface{}{"id": executionID}, "", 1)
	if err != nil {
		if conn.IsTableNotExistError(err) {
			return nil, repository.ErrStepExecutionNotFound
		}
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to find StepExecution by ID: %s", executionID), err)
	}
	if entity.ID == "" {
		return nil, repository.ErrStepExecutionNotFound
	}

	return toDomainStepExecution(&entity), nil
}

// Close implements repository.JobRepository. The underlying DBConnection is
// managed by the DBProvider, so there is nothing to close here.
func (r *SQLJobRepository) Close() error {
	return nil
}

// Verify that SQLJobRepository implements repository.JobRepository.
var _ repository.JobRepository = (*SQLJobRepository)(nil)

// JobRepositoryParams defines the dependencies required to create a JobRepository.
type JobRepositoryParams struct {
	fx.In
	DBResolver coreAdapter.ResourceConnectionResolver
	TxFactory  tx.TransactionManagerFactory
	Cfg        *config.Config
}

// NewJobRepository creates a JobRepository bound to the connection named by
// Infrastructure.JobRepositoryDBRef, defaulting to "metadata".
func NewJobRepository(p JobRepositoryParams) repository.JobRepository {
	dbName := p.Cfg.Hourglass.Infrastructure.JobRepositoryDBRef
	if dbName == "" {
		dbName = "metadata"
	}
	return NewSQLJobRepository(p.DBResolver, p.TxFactory, dbName)
}

// Module provides the SQL-backed JobRepository.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewJobRepository,
		fx.As(new(repository.JobRepository)),
	)),
)
