package migration

import (
	"github.com/tigerroll/hourglass/pkg/batch/adapter/database"
)

// migratorProviderImpl implements MigratorProvider.
type migratorProviderImpl struct{}

// NewMigratorProvider creates a new MigratorProvider.
func NewMigratorProvider() MigratorProvider {
	return &migratorProviderImpl{}
}

// NewMigrator creates a migration.Migrator bound to the given connection.
func (p *migratorProviderImpl) NewMigrator(dbConn database.DBConnection) Migrator {
	return NewMigrator(dbConn)
}
