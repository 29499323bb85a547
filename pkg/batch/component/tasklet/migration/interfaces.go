package migration

import (
	"context"
	"io/fs"

	"github.com/tigerroll/hourglass/pkg/batch/adapter/database"
)

// Fixed table names for migration tracking.
const FixedFrameworkMigrationsTable = "batch_framework_migrations"
const FixedAppMigrationsTable = "batch_app_migrations"

// Migrator handles database schema migrations.
type Migrator interface {
	// Up applies all pending migrations found under path in migrationFS.
	// tableName is the table used to track migration history.
	Up(ctx context.Context, migrationFS fs.FS, path string, tableName string) error
	// Down rolls back applied migrations.
	Down(ctx context.Context, migrationFS fs.FS, path string, tableName string) error
	// Close releases resources used by the migrator.
	Close() error
}

// MigratorProvider is a factory for creating Migrator instances bound to a
// database connection.
type MigratorProvider interface {
	NewMigrator(dbConn database.DBConnection) Migrator
}
