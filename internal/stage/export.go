package stage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go/parquet"

	"github.com/tigerroll/hourglass/internal/chrono"
	"github.com/tigerroll/hourglass/internal/dataset"
	"github.com/tigerroll/hourglass/internal/pipeline"
	"github.com/tigerroll/hourglass/internal/registry"
	storage "github.com/tigerroll/hourglass/pkg/batch/adapter/storage"
	port "github.com/tigerroll/hourglass/pkg/batch/core/application/port"
	config "github.com/tigerroll/hourglass/pkg/batch/core/config"
	model "github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/hourglass/pkg/batch/core/metrics"
	configbinder "github.com/tigerroll/hourglass/pkg/batch/support/util/configbinder"
	exception "github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// targetGeography is the post-remap geography column before it takes over
// the geography name.
const targetGeography = "target_geography"

// successMarker signals a completely written output directory. A path
// without it is an invalid partial and is never reused.
const successMarker = "_SUCCESS"

// ExportTaskletConfig holds the static plan properties of the export stage.
type ExportTaskletConfig struct {
	// CompressionType selects the Parquet codec: SNAPPY (default), GZIP or
	// UNCOMPRESSED.
	CompressionType string `yaml:"compression_type"`
}

// ExportDatasetTasklet is the final stage: it remaps the fine geography to
// the coarse target geography (dropping unmapped rows), re-aggregates,
// sorts deterministically, and persists the result as Hive-style
// partitioned Parquet with a _SUCCESS marker. It refuses to touch an output
// location that already exists in any form.
type ExportDatasetTasklet struct {
	cfg             *config.Config
	taskletCfg      ExportTaskletConfig
	catalog         *pipeline.DatasetCatalog
	storageResolver storage.StorageConnectionResolver
	recorder        metrics.MetricRecorder

	stepExecutionContext model.ExecutionContext
}

// NewExportDatasetTasklet creates the export tasklet from plan properties.
func NewExportDatasetTasklet(
	cfg *config.Config,
	catalog *pipeline.DatasetCatalog,
	storageResolver storage.StorageConnectionResolver,
	recorder metrics.MetricRecorder,
	properties map[string]string,
) (port.Tasklet, error) {
	taskletCfg := ExportTaskletConfig{CompressionType: "SNAPPY"}
	if err := configbinder.BindProperties(properties, &taskletCfg); err != nil {
		return nil, exception.NewConfigError("stage", "failed to bind export stage properties", err)
	}
	if _, err := compressionCodec(taskletCfg.CompressionType); err != nil {
		return nil, err
	}
	return &ExportDatasetTasklet{
		cfg:                  cfg,
		taskletCfg:           taskletCfg,
		catalog:              catalog,
		storageResolver:      storageResolver,
		recorder:             recorder,
		stepExecutionContext: model.NewExecutionContext(),
	}, nil
}

func compressionCodec(name string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(name) {
	case "", "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "UNCOMPRESSED":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return parquet.CompressionCodec_SNAPPY, exception.NewConfigErrorf("stage", "unsupported parquet compression type %q", name)
	}
}

func (t *ExportDatasetTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	aligned, err := t.catalog.Frame(pipeline.FrameAlignedLoad)
	if err != nil {
		return model.ExitStatusFailed, err
	}
	geographyMapping, err := t.catalog.Frame(pipeline.FrameGeographyMapping)
	if err != nil {
		return model.ExitStatusFailed, err
	}
	pcfg, err := t.catalog.PipelineConfig()
	if err != nil {
		return model.ExitStatusFailed, err
	}

	final, unmapped, err := remapGeography(aligned, geographyMapping)
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError("stage", "geographic remapping failed", err)
	}
	recordWarning(ctx, t.recorder, stepExecution, WarnUnmappedGeography, unmapped)

	codec, err := compressionCodec(t.taskletCfg.CompressionType)
	if err != nil {
		return model.ExitStatusFailed, err
	}
	partitions, err := t.write(ctx, pcfg, final, codec)
	if err != nil {
		return model.ExitStatusFailed, err
	}

	stepExecution.InputRows = int64(aligned.NumRows())
	stepExecution.OutputRows = int64(final.NumRows())
	t.stepExecutionContext.Put("output_path", pcfg.OutputPath)
	t.stepExecutionContext.Put("output_rows", final.NumRows())
	t.stepExecutionContext.Put("partitions", partitions)

	logger.Infof("Stage '%s': wrote %d rows across %d partitions to '%s'.",
		stepExecution.StepName, final.NumRows(), partitions, pcfg.OutputPath)
	return model.ExitStatusCompleted, nil
}

// remapGeography joins the per-fine-geography rows to the fine→coarse
// mapping, drops rows without a coarse target, and re-aggregates under the
// target geography. The mapping's from_fraction, if present, is not applied
// here: the remap sums unweighted.
func remapGeography(aligned, mapping *dataset.Frame) (*dataset.Frame, int64, error) {
	prepared, err := mapping.Select(registry.ColumnFromID, registry.ColumnToID)
	if err != nil {
		return nil, 0, err
	}
	prepared, err = prepared.Rename(registry.ColumnFromID, ColGeography)
	if err != nil {
		return nil, 0, err
	}
	prepared, err = prepared.Rename(registry.ColumnToID, targetGeography)
	if err != nil {
		return nil, 0, err
	}

	joined, err := aligned.Join(prepared, []string{ColGeography}, dataset.LeftJoin)
	if err != nil {
		return nil, 0, err
	}
	target, ok := joined.Column(targetGeography)
	if !ok {
		return nil, 0, fmt.Errorf("column %q not found after remap join", targetGeography)
	}
	unmapped := countNulls(joined, targetGeography)
	joined = joined.Filter(func(row int) bool { return !target.IsNull(row) })

	joined, err = joined.Drop(ColGeography)
	if err != nil {
		return nil, 0, err
	}
	joined, err = joined.Rename(targetGeography, ColGeography)
	if err != nil {
		return nil, 0, err
	}

	final, err := joined.GroupBySum(
		[]string{ColSector, ColScenario, ColGeography, ColModelYear, chrono.ColTimestamp},
		[]string{ColElectricity},
	)
	if err != nil {
		return nil, 0, err
	}
	// Sector last as a total-determinism tiebreak; it is not part of the
	// contract sort order.
	final, err = final.SortBy(ColScenario, ColModelYear, ColGeography, chrono.ColTimestamp, ColSector)
	if err != nil {
		return nil, 0, err
	}
	return final, unmapped, nil
}

// write persists the sorted frame as one Parquet part file per
// (scenario, model_year) partition, then the success marker. On any failure
// every object written by this run is removed best-effort.
func (t *ExportDatasetTasklet) write(ctx context.Context, pcfg *pipeline.Config, final *dataset.Frame, codec parquet.CompressionCodec) (int, error) {
	conn, err := t.storageResolver.ResolveStorageConnection(ctx, pcfg.StorageRef)
	if err != nil {
		return 0, exception.NewConfigError("stage", "failed to resolve output storage connection "+pcfg.StorageRef, err)
	}
	bucket, err := pcfg.OutputBucket(t.cfg)
	if err != nil {
		return 0, err
	}

	// Re-checked here in case anything appeared since preflight.
	exists, err := conn.Exists(ctx, bucket, pcfg.OutputPath)
	if err != nil {
		return 0, exception.NewBatchError("stage", "output path check failed for "+pcfg.OutputPath, err)
	}
	if exists {
		return 0, exception.NewOutputExistsError("stage", pcfg.OutputPath)
	}

	written := make([]string, 0)
	cleanup := func(cause error) error {
		result := multierror.Append(nil, cause)
		for _, object := range written {
			if delErr := conn.DeleteObject(ctx, bucket, object); delErr != nil {
				result = multierror.Append(result, fmt.Errorf("cleanup of %s failed: %w", object, delErr))
			}
		}
		return exception.NewBatchError("stage", "dataset export failed", result)
	}

	partitions := 0
	for _, p := range partitionRanges(final) {
		part := final.Filter(func(row int) bool { return row >= p.start && row < p.end })
		content, err := dataset.WriteParquet(part, codec)
		if err != nil {
			return partitions, cleanup(err)
		}
		object := path.Join(pcfg.OutputPath,
			"scenario="+p.scenario, "model_year="+p.modelYear, "part-00000.parquet")
		if err := conn.Upload(ctx, bucket, object, bytes.NewReader(content), "application/octet-stream"); err != nil {
			return partitions, cleanup(err)
		}
		written = append(written, object)
		partitions++
		logger.Debugf("Export: wrote partition %s (%d rows).", object, part.NumRows())
	}

	marker := path.Join(pcfg.OutputPath, successMarker)
	if err := conn.Upload(ctx, bucket, marker, bytes.NewReader(nil), "text/plain"); err != nil {
		return partitions, cleanup(err)
	}
	return partitions, nil
}

// partitionRange is one contiguous run of rows sharing a partition key in
// the sorted frame.
type partitionRange struct {
	scenario  string
	modelYear string
	start     int
	end       int
}

// partitionRanges scans the frame, already sorted with scenario and
// model_year as the leading keys, into contiguous partition row ranges.
func partitionRanges(f *dataset.Frame) []partitionRange {
	scenario, _ := f.Column(ColScenario)
	modelYear, _ := f.Column(ColModelYear)
	if scenario == nil || modelYear == nil {
		return nil
	}

	var ranges []partitionRange
	for i := 0; i < f.NumRows(); i++ {
		s, _ := scenario.StringAt(i)
		y, _ := modelYear.StringAt(i)
		if n := len(ranges); n > 0 && ranges[n-1].scenario == s && ranges[n-1].modelYear == y {
			ranges[n-1].end = i + 1
			continue
		}
		ranges = append(ranges, partitionRange{scenario: s, modelYear: y, start: i, end: i + 1})
	}
	return ranges
}

func (t *ExportDatasetTasklet) Close(ctx context.Context) error {
	return nil
}

func (t *ExportDatasetTasklet) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	t.stepExecutionContext = ec
	return nil
}

func (t *ExportDatasetTasklet) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return t.stepExecutionContext, nil
}

var _ port.Tasklet = (*ExportDatasetTasklet)(nil)
