package bootstrap

import (
	"context"

	"github.com/tigerroll/hourglass/pkg/batch/core/config"
	plan "github.com/tigerroll/hourglass/pkg/batch/core/config/plan"
	"github.com/tigerroll/hourglass/pkg/batch/support/util/logger"

	"go.uber.org/fx"
)

// BatchInitializer is responsible for initializing batch components, such as loading plan definitions.
type BatchInitializer struct {
	planBytes plan.PlanDefinitionBytes
}

// NewBatchInitializer creates a new instance of BatchInitializer.
func NewBatchInitializer(planBytes plan.PlanDefinitionBytes) *BatchInitializer {
	return &BatchInitializer{
		planBytes: planBytes,
	}
}

// GetPlanDefinitionBytes returns the loaded plan definition byte slice.
func (i *BatchInitializer) GetPlanDefinitionBytes() plan.PlanDefinitionBytes {
	return i.planBytes
}

// ApplyLoggingConfigHook applies the logging level based on the configuration.
func ApplyLoggingConfigHook(cfg *config.Config) {
	if cfg.Hourglass.System.Logging.Level != "" {
		logger.SetLogLevel(cfg.Hourglass.System.Logging.Level)
		logger.Infof("Log level set to: %s", cfg.Hourglass.System.Logging.Level)
	}
}

// LoadPlanDefinitionsHook registers an Fx lifecycle hook to load plan definitions.
// Defined as a named function for use with fx.Invoke.
func LoadPlanDefinitionsHook(lc fx.Lifecycle, initializer *BatchInitializer) {
	lc.Append(fx.Hook{
		OnStart: onStartLoadPlanDefinitions(initializer),
	})
}

// onStartLoadPlanDefinitions is a helper function for the OnStart hook that begins loading plan definitions.
func onStartLoadPlanDefinitions(initializer *BatchInitializer) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		logger.Infof("Loading plan definitions.")
		return plan.LoadPlanDefinitionFromBytes(initializer.GetPlanDefinitionBytes())
	}
}
