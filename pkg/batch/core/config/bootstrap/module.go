package bootstrap

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/fx"

	"github.com/tigerroll/hourglass/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/hourglass/pkg/batch/adapter/database/config"
	"github.com/tigerroll/hourglass/pkg/batch/component/tasklet/migration"
	"github.com/tigerroll/hourglass/pkg/batch/core/config"
	"github.com/tigerroll/hourglass/pkg/batch/engine/step/factory"
	"github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// Module provides bootstrap-related components to Fx.
var Module = fx.Options(
	fx.Provide(NewBatchInitializer),    // Provides the BatchInitializer.
	fx.Invoke(LoadPlanDefinitionsHook), // Registers a lifecycle hook to load plan definitions.
	fx.Invoke(ApplyLoggingConfigHook),  // Registers a lifecycle hook to apply logging configuration.

	// Engine Components: Provides the Step Factory.
	factory.Module,

	// Registers a lifecycle hook to run framework migrations at application startup.
	fx.Invoke(runFrameworkMigrationsHook),
)

// RunFrameworkMigrationsHookParams defines the dependencies required for the
// runFrameworkMigrationsHook function, injected by Fx.
type RunFrameworkMigrationsHookParams struct {
	fx.In
	Lifecycle        fx.Lifecycle                   // The Fx lifecycle to append hooks.
	Cfg              *config.Config                 // The application configuration.
	MigratorProvider migration.MigratorProvider     // Provider for database migrators.
	AllMigrationFS   map[string]fs.FS               `name:"allMigrationFS"` // A map of file systems containing migration scripts, including "frameworkMigrationsFS".
	AllDBProviders   map[string]database.DBProvider // All registered DB providers, mapped by their database type.
}

// runFrameworkMigrationsHook registers an Fx lifecycle hook to execute necessary
// framework migrations at application startup.
//
// Migrations are skipped when JobRepositoryDBRef is empty, which selects the
// in-memory job repository.
func runFrameworkMigrationsHook(
	p RunFrameworkMigrationsHookParams,
) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if p.Cfg.Hourglass.Infrastructure.JobRepositoryDBRef == "" {
				logger.Infof("JobRepositoryDBRef is not configured. Framework migrations will be skipped.")
				return nil
			}

			logger.Infof("Running framework migrations for JobRepository database: %s", p.Cfg.Hourglass.Infrastructure.JobRepositoryDBRef)

			// Get DB Configuration to determine DB Type
			var dbConfig dbconfig.DatabaseConfig
			adapterConfig, ok := p.Cfg.Hourglass.AdapterConfigs["database"]
			if !ok {
				return fmt.Errorf("no 'database' adapter configuration found in Hourglass.AdapterConfigs")
			}
			dbConfigsMap, ok := adapterConfig.(map[string]interface{})
			if !ok {
				return fmt.Errorf("invalid 'database' adapter configuration format: expected map[string]interface{}")
			}
			rawConfig, ok := dbConfigsMap[p.Cfg.Hourglass.Infrastructure.JobRepositoryDBRef]
			if !ok {
				return fmt.Errorf("database configuration '%s' not found under 'adapters.database' configs for JobRepositoryDBRef", p.Cfg.Hourglass.Infrastructure.JobRepositoryDBRef)
			}
			if err := mapstructure.Decode(rawConfig, &dbConfig); err != nil {
				return fmt.Errorf("failed to decode database config for '%s': %w", p.Cfg.Hourglass.Infrastructure.JobRepositoryDBRef, err)
			}

			dbProvider, ok := p.AllDBProviders[dbConfig.Type]
			if !ok {
				return fmt.Errorf("no DBProvider found for database type '%s'", dbConfig.Type)
			}
			dbConn, err := dbProvider.GetConnection(p.Cfg.Hourglass.Infrastructure.JobRepositoryDBRef)
			if err != nil {
				return fmt.Errorf("failed to get DB connection for framework migrations: %w", err)
			}

			frameworkFS, ok := p.AllMigrationFS["frameworkMigrationsFS"]
			if !ok {
				return fmt.Errorf("frameworkMigrationsFS not found in allMigrationFS map")
			}

			migrator := p.MigratorProvider.NewMigrator(dbConn)
			// Use DB type as the migration directory name (e.g., "mysql", "postgres", "sqlite").
			migrationDir := dbConn.Type()

			migrationErr := migrator.Up(ctx, frameworkFS, migrationDir, "batch_framework_migrations")
			if migrationErr != nil {
				// Handle "no change" error specially as it's not an actual error.
				if migrationErr.Error() == "no change" {
					logger.Infof("Framework migrations for %s: No new migrations to apply.", dbConn.Name())
					return nil
				}
				return fmt.Errorf("failed to execute framework migrations for %s: %w", dbConn.Name(), migrationErr)
			}
			logger.Infof("Framework migrations for %s completed successfully.", dbConn.Name())
			return nil
		},
	})
}
