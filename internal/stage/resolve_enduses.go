package stage

import (
	"context"

	"github.com/tigerroll/hourglass/internal/dataset"
	"github.com/tigerroll/hourglass/internal/pipeline"
	"github.com/tigerroll/hourglass/internal/registry"
	storage "github.com/tigerroll/hourglass/pkg/batch/adapter/storage"
	port "github.com/tigerroll/hourglass/pkg/batch/core/application/port"
	config "github.com/tigerroll/hourglass/pkg/batch/core/config"
	model "github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/hourglass/pkg/batch/core/metrics"
	exception "github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// ResolveEndUsesTasklet is the first pipeline stage. It resolves and
// validates the run configuration (job parameters over application config),
// preflights the output location, loads every registry artifact into the
// catalog, and resolves the end-use column filter from the end-use mapping.
//
// All configuration errors surface here, before any computation.
type ResolveEndUsesTasklet struct {
	cfg             *config.Config
	catalog         *pipeline.DatasetCatalog
	datasets        registry.DatasetProvider
	mappings        registry.MappingProvider
	storageResolver storage.StorageConnectionResolver
	recorder        metrics.MetricRecorder

	stepExecutionContext model.ExecutionContext
}

// NewResolveEndUsesTasklet creates the end-use filter resolution tasklet.
func NewResolveEndUsesTasklet(
	cfg *config.Config,
	catalog *pipeline.DatasetCatalog,
	datasets registry.DatasetProvider,
	mappings registry.MappingProvider,
	storageResolver storage.StorageConnectionResolver,
	recorder metrics.MetricRecorder,
) port.Tasklet {
	return &ResolveEndUsesTasklet{
		cfg:                  cfg,
		catalog:              catalog,
		datasets:             datasets,
		mappings:             mappings,
		storageResolver:      storageResolver,
		recorder:             recorder,
		stepExecutionContext: model.NewExecutionContext(),
	}
}

func (t *ResolveEndUsesTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	// A fresh run never sees frames from a previous execution.
	t.catalog.Reset()

	var params model.JobParameters
	if stepExecution.JobExecution != nil {
		params = stepExecution.JobExecution.Parameters
	} else {
		params = model.NewJobParameters()
	}

	pcfg, err := pipeline.ResolveConfig(t.cfg, params)
	if err != nil {
		return model.ExitStatusFailed, err
	}
	if err := pcfg.PreflightOutput(ctx, t.storageResolver, t.cfg); err != nil {
		return model.ExitStatusFailed, err
	}
	t.catalog.PutValue(pipeline.ValuePipelineConfig, pcfg)

	loadTable, err := t.datasets.LoadTable(ctx, pcfg.DatasetID)
	if err != nil {
		return model.ExitStatusFailed, err
	}
	lookupTable, err := t.datasets.LookupTable(ctx, pcfg.DatasetID)
	if err != nil {
		return model.ExitStatusFailed, err
	}
	geographyZones, err := t.datasets.GeographyTimeZones(ctx, pcfg.DatasetID)
	if err != nil {
		return model.ExitStatusFailed, err
	}
	endUseMapping, err := t.mappings.Mapping(ctx, pcfg.EndUseMappingID)
	if err != nil {
		return model.ExitStatusFailed, err
	}
	geographyMapping, err := t.mappings.Mapping(ctx, pcfg.GeographyMappingID)
	if err != nil {
		return model.ExitStatusFailed, err
	}

	t.catalog.PutFrame(pipeline.FrameLoadTable, loadTable)
	t.catalog.PutFrame(pipeline.FrameLookupTable, lookupTable)
	t.catalog.PutFrame(pipeline.FrameGeographyZones, geographyZones)
	t.catalog.PutFrame(pipeline.FrameGeographyMapping, geographyMapping)

	resolved, err := resolveEndUseColumns(loadTable, endUseMapping)
	if err != nil {
		return model.ExitStatusFailed, err
	}
	t.catalog.PutValue(pipeline.ValueEndUseColumns, resolved)

	if len(resolved) == 0 {
		recordWarning(ctx, t.recorder, stepExecution, WarnEmptyEndUseFilter, 1)
	}

	stepExecution.InputRows = int64(endUseMapping.NumRows())
	stepExecution.OutputRows = int64(len(resolved))
	t.stepExecutionContext.Put("dataset_id", pcfg.DatasetID)
	t.stepExecutionContext.Put("load_rows", loadTable.NumRows())
	t.stepExecutionContext.Put("resolved_enduse_columns", len(resolved))

	logger.Infof("Stage '%s': resolved %d end-use columns for dataset '%s'.",
		stepExecution.StepName, len(resolved), pcfg.DatasetID)
	return model.ExitStatusCompleted, nil
}

// resolveEndUseColumns returns the load-table columns whose name appears as
// a mapping from_id with a non-null to_id, in load-table column order.
func resolveEndUseColumns(loadTable, endUseMapping *dataset.Frame) ([]string, error) {
	fromID, ok := endUseMapping.Column(registry.ColumnFromID)
	if !ok {
		return nil, exception.NewConfigErrorf("stage", "end-use mapping has no %q column", registry.ColumnFromID)
	}
	toID, ok := endUseMapping.Column(registry.ColumnToID)
	if !ok {
		return nil, exception.NewConfigErrorf("stage", "end-use mapping has no %q column", registry.ColumnToID)
	}

	mapped := make(map[string]struct{}, endUseMapping.NumRows())
	for i := 0; i < endUseMapping.NumRows(); i++ {
		if toID.IsNull(i) {
			continue
		}
		if name, valid := fromID.StringAt(i); valid {
			mapped[name] = struct{}{}
		}
	}

	resolved := make([]string, 0, len(mapped))
	for _, name := range loadTable.ColumnNames() {
		if _, ok := mapped[name]; ok {
			resolved = append(resolved, name)
		}
	}
	return resolved, nil
}

func (t *ResolveEndUsesTasklet) Close(ctx context.Context) error {
	return nil
}

func (t *ResolveEndUsesTasklet) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	t.stepExecutionContext = ec
	return nil
}

func (t *ResolveEndUsesTasklet) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return t.stepExecutionContext, nil
}

var _ port.Tasklet = (*ResolveEndUsesTasklet)(nil)
