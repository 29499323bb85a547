// Package tx provides an abstraction for transaction management, enabling
// unified transaction control across different database backends.
package tx

import (
	"context"
	"database/sql"

	"github.com/tigerroll/hourglass/pkg/batch/adapter/database"
)

// TxExecutor defines the write operations executable within a transaction.
// It is embedded in Tx so data operations look the same with or without a
// surrounding transaction.
type TxExecutor interface {
	// ExecuteUpdate performs write operations (INSERT, UPDATE, DELETE) within
	// the current transaction. The query map supplies AND-combined conditions
	// for UPDATE and DELETE operations.
	ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (rowsAffected int64, err error)

	// ExecuteUpsert performs an UPSERT (INSERT ... ON CONFLICT) within the
	// current transaction. An empty updateColumns list means DO NOTHING on
	// conflict.
	ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error)
}

// Tx represents an ongoing database transaction.
type Tx interface {
	TxExecutor

	// Savepoint creates a new savepoint within the current transaction.
	Savepoint(name string) error

	// RollbackToSavepoint rolls back the transaction to the named savepoint,
	// preserving changes made before it.
	RollbackToSavepoint(name string) error
}

// TransactionManager manages the lifecycle of database transactions.
type TransactionManager interface {
	// Begin starts a new database transaction.
	Begin(ctx context.Context, opts ...*sql.TxOptions) (Tx, error)
	// Commit commits the given transaction.
	Commit(tx Tx) error
	// Rollback rolls back the given transaction.
	Rollback(tx Tx) error
}

// TransactionManagerFactory creates TransactionManager instances from a
// DBConnection, independent of the concrete database type.
type TransactionManagerFactory interface {
	NewTransactionManager(conn database.DBConnection) TransactionManager
}
