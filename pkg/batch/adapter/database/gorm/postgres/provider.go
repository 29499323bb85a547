// Package postgres provides a GORM DBProvider implementation for PostgreSQL and Redshift databases.
package postgres

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tigerroll/hourglass/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/hourglass/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/hourglass/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/hourglass/pkg/batch/core/config"
)

// init registers the PostgreSQL dialector factory with the GORM adapter.
// Redshift connections reuse the same dialector.
func init() {
	gormadapter.RegisterDialector("postgres", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		p := &PostgresDBProvider{BaseProvider: &gormadapter.BaseProvider{}}
		return postgres.Open(p.ConnectionString(cfg)), nil
	})
}

// PostgresDBProvider implements database.DBProvider for PostgreSQL and Redshift connections.
type PostgresDBProvider struct {
	*gormadapter.BaseProvider
}

// ConnectionString generates the DSN for PostgreSQL connections.
func (p *PostgresDBProvider) ConnectionString(c dbconfig.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.Sslmode)
}

// NewProvider creates a new database.DBProvider for PostgreSQL.
func NewProvider(cfg *config.Config) database.DBProvider {
	return &PostgresDBProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, "postgres")}
}
