// Package app assembles the hourglass application from the batch framework
// modules and the pipeline components, and drives a single job execution
// from launch to completion.
package app

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/tigerroll/hourglass/internal/job"
	"github.com/tigerroll/hourglass/internal/pipeline"
	"github.com/tigerroll/hourglass/internal/registry"
	"github.com/tigerroll/hourglass/internal/stage"
	"github.com/tigerroll/hourglass/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/hourglass/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/hourglass/pkg/batch/adapter/database/gorm/mysql"
	"github.com/tigerroll/hourglass/pkg/batch/adapter/database/gorm/postgres"
	"github.com/tigerroll/hourglass/pkg/batch/adapter/database/gorm/sqlite"
	storageAdapter "github.com/tigerroll/hourglass/pkg/batch/adapter/storage"
	"github.com/tigerroll/hourglass/pkg/batch/adapter/storage/gcs"
	"github.com/tigerroll/hourglass/pkg/batch/adapter/storage/local"
	migrationTasklet "github.com/tigerroll/hourglass/pkg/batch/component/tasklet/migration"
	usecase "github.com/tigerroll/hourglass/pkg/batch/core/application/usecase"
	config "github.com/tigerroll/hourglass/pkg/batch/core/config"
	"github.com/tigerroll/hourglass/pkg/batch/core/config/bootstrap"
	plan "github.com/tigerroll/hourglass/pkg/batch/core/config/plan"
	supportConfig "github.com/tigerroll/hourglass/pkg/batch/core/config/support"
	model "github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
	jobRepo "github.com/tigerroll/hourglass/pkg/batch/core/domain/repository"
	jobRunner "github.com/tigerroll/hourglass/pkg/batch/core/job/runner"
	infraMetrics "github.com/tigerroll/hourglass/pkg/batch/infrastructure/metrics"
	"github.com/tigerroll/hourglass/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/hourglass/pkg/batch/infrastructure/repository/sql"
	batchlistener "github.com/tigerroll/hourglass/pkg/batch/listener"
	"github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// DBProviderModules maps database adapter names to their Fx modules so
// main.go can select providers dynamically.
var DBProviderModules = map[string]fx.Option{
	"postgres": postgres.Module,
	"redshift": postgres.Module, // Redshift also uses the postgres provider.
	"mysql":    mysql.Module,
	"sqlite":   sqlite.Module,
}

// RunApplication sets up and runs the batch application using uber-fx.
// It blocks until the launched job finishes or the context is cancelled.
func RunApplication(
	appCtx context.Context,
	envFilePath string,
	embeddedConfig config.EmbeddedConfig,
	embeddedPlan plan.PlanDefinitionBytes,
	dbProviderOptions []fx.Option,
	jobParams model.JobParameters,
) {
	cfg, err := config.LoadConfig(envFilePath, embeddedConfig)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logger.SetLogLevel(cfg.Hourglass.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Hourglass.System.Logging.Level)

	jobDoneChan := make(chan struct{})

	app := fx.New(
		fx.Supply(
			embeddedConfig,
			embeddedPlan,
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
			cfg,
			jobParams,
			fx.Annotate(
				appCtx,
				fx.As(new(context.Context)),
				fx.ResultTags(`name:"appCtx"`),
			),
		),
		fx.Provide(func() chan struct{} { return jobDoneChan }),

		fx.Options(dbProviderOptions...),
		logger.Module,
		config.Module,

		bootstrap.Module,

		supportConfig.Module,
		usecase.Module,

		database.Module,
		gormadapter.Module,
		migrationTasklet.Module,

		local.Module,
		gcs.Module,
		storageAdapter.Module,

		newJobRepositoryModule(cfg),

		infraMetrics.Module,
		batchlistener.Module,
		jobRunner.Module,

		registry.Module,
		pipeline.Module,
		stage.Module,
		job.Module,
		Module,

		fx.Invoke(fx.Annotate(startJobExecution, fx.ParamTags(
			"",              // lc fx.Lifecycle
			"",              // shutdowner fx.Shutdowner
			"",              // jobLauncher *usecase.SimpleJobLauncher (concrete type)
			"",              // jobRepository jobRepo.JobRepository
			"",              // cfg *config.Config
			"",              // jobParams model.JobParameters
			`name:"appCtx"`, // appCtx context.Context
		))),
	)

	app.Run()

	if app.Err() != nil {
		logger.Fatalf("Application run failed: %v", app.Err())
	}
}

// newJobRepositoryModule selects the run history store: the in-memory
// repository when no repository database is configured, otherwise the
// SQL-backed one over the connection named by JobRepositoryDBRef.
func newJobRepositoryModule(cfg *config.Config) fx.Option {
	if cfg.Hourglass.Infrastructure.JobRepositoryDBRef == "" {
		logger.Infof("JobRepositoryDBRef is not configured. Using the in-memory job repository.")
		return inmemory.Module
	}
	return sql.Module
}

// startJobExecution is invoked by Fx to begin the batch job execution.
func startJobExecution(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	jobLauncher *usecase.SimpleJobLauncher, // Concrete type used
	jobRepository jobRepo.JobRepository,
	cfg *config.Config,
	jobParams model.JobParameters,
	appCtx context.Context,
) {
	lc.Append(fx.Hook{
		OnStart: onStartJobExecution(jobLauncher, jobRepository, cfg, jobParams, shutdowner, appCtx),
		OnStop:  onStopApplication(),
	})
}

// onStartJobExecution is an Fx Hook helper function that starts job execution upon application startup.
func onStartJobExecution(
	jobLauncher *usecase.SimpleJobLauncher,
	jobRepository jobRepo.JobRepository,
	cfg *config.Config,
	jobParams model.JobParameters,
	shutdowner fx.Shutdowner,
	appCtx context.Context,
) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		go func() {
			exitCode := 0
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("Panic recovered in job execution: %v", r)
					exitCode = 1
				}
				logger.Infof("Requesting application shutdown after job completion.")
				if err := shutdowner.Shutdown(fx.ExitCode(exitCode)); err != nil {
					logger.Errorf("Failed to shutdown application: %v", err)
				}
			}()

			jobName := cfg.Hourglass.Batch.JobName
			if jobName == "" {
				jobName = job.Name
			}
			logger.Infof("Starting job execution for job '%s'...", jobName)

			jobExecution, err := jobLauncher.Launch(appCtx, jobName, jobParams)
			if err != nil {
				logger.Errorf("Failed to launch job '%s': %v", jobName, err)
				exitCode = 1
				return
			}
			logger.Infof("Job '%s' launched successfully. Execution ID: %s", jobName, jobExecution.ID)

			pollingInterval := time.Duration(cfg.Hourglass.Batch.PollingIntervalSeconds) * time.Second
			if pollingInterval == 0 {
				pollingInterval = 5 * time.Second
			}
			logger.Infof("Monitoring job '%s' (Execution ID: %s) with polling interval %v...", jobName, jobExecution.ID, pollingInterval)

			for {
				select {
				case <-ctx.Done():
					logger.Warnf("Application context cancelled. Stopping monitoring for job '%s' (Execution ID: %s).", jobName, jobExecution.ID)

					// When the context is cancelled while the job is still running,
					// request a graceful stop through its cancel function.
					latestExecution, fetchErr := jobRepository.FindJobExecutionByID(context.Background(), jobExecution.ID)
					if fetchErr == nil && !latestExecution.Status.IsFinished() {
						logger.Warnf("Job '%s' (Execution ID: %s) was running. Attempting graceful stop.", jobName, jobExecution.ID)
						if cancelFunc, ok := jobLauncher.GetCancelFunc(jobExecution.ID); ok {
							cancelFunc()
						}
					}
					exitCode = 1
					return
				case <-time.After(pollingInterval):
					latestExecution, fetchErr := jobRepository.FindJobExecutionByID(ctx, jobExecution.ID)
					if fetchErr != nil {
						logger.Errorf("Failed to fetch latest status for JobExecution (ID: %s): %v", jobExecution.ID, fetchErr)
						continue
					}

					if latestExecution.Status.IsFinished() {
						logger.Infof("Job '%s' (Execution ID: %s) finished with status: %s, ExitStatus: %s",
							jobName, latestExecution.ID, latestExecution.Status, latestExecution.ExitStatus)
						if latestExecution.Status != model.BatchStatusCompleted {
							exitCode = 1
						}
						return
					}
					logger.Debugf("Job '%s' (Execution ID: %s) is still running. Current status: %s", jobName, latestExecution.ID, latestExecution.Status)
				}
			}
		}()
		return nil
	}
}

// onStopApplication is an Fx Hook helper function that logs application shutdown.
func onStopApplication() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		logger.Infof("Application is shutting down.")
		return nil
	}
}
