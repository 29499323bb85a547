package stage

import (
	"go.uber.org/fx"

	"github.com/tigerroll/hourglass/internal/pipeline"
	"github.com/tigerroll/hourglass/internal/registry"
	storage "github.com/tigerroll/hourglass/pkg/batch/adapter/storage"
	coreAdapter "github.com/tigerroll/hourglass/pkg/batch/core/adapter"
	config "github.com/tigerroll/hourglass/pkg/batch/core/config"
	support "github.com/tigerroll/hourglass/pkg/batch/core/config/support"
	metrics "github.com/tigerroll/hourglass/pkg/batch/core/metrics"
	logger "github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// Component refs the plan definition uses to name the stage tasklets.
const (
	RefResolveEndUses  = "resolveEndUsesTasklet"
	RefConsolidateLoad = "consolidateLoadTasklet"
	RefExpandCalendar  = "expandCalendarTasklet"
	RefJoinAggregate   = "joinAggregateTasklet"
	RefExportDataset   = "exportDatasetTasklet"
)

// RegisterParams bundles the dependencies the stage builders close over.
type RegisterParams struct {
	fx.In

	JobFactory      *support.JobFactory
	Catalog         *pipeline.DatasetCatalog
	Datasets        registry.DatasetProvider
	Mappings        registry.MappingProvider
	StorageResolver storage.StorageConnectionResolver
	Recorder        metrics.MetricRecorder
}

// RegisterStageComponents registers the five pipeline tasklets with the
// JobFactory under their plan refs.
func RegisterStageComponents(p RegisterParams) {
	p.JobFactory.RegisterComponentBuilder(RefResolveEndUses, func(
		cfg *config.Config, _ coreAdapter.ResourceConnectionResolver, _ map[string]string,
	) (interface{}, error) {
		return NewResolveEndUsesTasklet(cfg, p.Catalog, p.Datasets, p.Mappings, p.StorageResolver, p.Recorder), nil
	})
	p.JobFactory.RegisterComponentBuilder(RefConsolidateLoad, func(
		_ *config.Config, _ coreAdapter.ResourceConnectionResolver, _ map[string]string,
	) (interface{}, error) {
		return NewConsolidateLoadTasklet(p.Catalog), nil
	})
	p.JobFactory.RegisterComponentBuilder(RefExpandCalendar, func(
		_ *config.Config, _ coreAdapter.ResourceConnectionResolver, _ map[string]string,
	) (interface{}, error) {
		return NewExpandCalendarTasklet(p.Catalog), nil
	})
	p.JobFactory.RegisterComponentBuilder(RefJoinAggregate, func(
		_ *config.Config, _ coreAdapter.ResourceConnectionResolver, _ map[string]string,
	) (interface{}, error) {
		return NewJoinAggregateTasklet(p.Catalog, p.Recorder), nil
	})
	p.JobFactory.RegisterComponentBuilder(RefExportDataset, func(
		cfg *config.Config, _ coreAdapter.ResourceConnectionResolver, properties map[string]string,
	) (interface{}, error) {
		return NewExportDatasetTasklet(cfg, p.Catalog, p.StorageResolver, p.Recorder, properties)
	})
	logger.Debugf("Registered pipeline stage component builders.")
}

// Module registers the stage tasklet builders.
var Module = fx.Options(
	fx.Invoke(RegisterStageComponents),
)
