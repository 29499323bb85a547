package stage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/hourglass/internal/chrono"
	"github.com/tigerroll/hourglass/internal/dataset"
	"github.com/tigerroll/hourglass/internal/pipeline"
	"github.com/tigerroll/hourglass/internal/stage"
	storage "github.com/tigerroll/hourglass/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/hourglass/pkg/batch/adapter/storage/config"
	local "github.com/tigerroll/hourglass/pkg/batch/adapter/storage/local"
	coreAdapter "github.com/tigerroll/hourglass/pkg/batch/core/adapter"
	config "github.com/tigerroll/hourglass/pkg/batch/core/config"
	model "github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/hourglass/pkg/batch/core/metrics"
	"github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
)

// captureRecorder counts join warnings by kind on top of the no-op recorder.
type captureRecorder struct {
	metrics.MetricRecorder
	kinds map[string]int64
}

func newCaptureRecorder() *captureRecorder {
	return &captureRecorder{MetricRecorder: metrics.NewNoOpMetricRecorder(), kinds: map[string]int64{}}
}

func (c *captureRecorder) RecordJoinWarning(ctx context.Context, stepName, kind string, count int64) {
	c.kinds[kind] += count
}

type stubStorageResolver struct {
	conn storage.StorageConnection
}

func (r *stubStorageResolver) ResolveConnection(ctx context.Context, name string) (coreAdapter.ResourceConnection, error) {
	return r.conn, nil
}

func (r *stubStorageResolver) ResolveConnectionName(ctx context.Context, jobExecution interface{}, stepExecution interface{}, defaultName string) (string, error) {
	return defaultName, nil
}

func (r *stubStorageResolver) ResolveStorageConnection(ctx context.Context, name string) (storage.StorageConnection, error) {
	return r.conn, nil
}

func (r *stubStorageResolver) ResolveStorageConnectionName(ctx context.Context, jobExecution interface{}, stepExecution interface{}, defaultName string) (string, error) {
	return defaultName, nil
}

func newStepExecution(t *testing.T, stepName string) *model.StepExecution {
	t.Helper()
	je := model.NewJobExecution("instance-1", "tempoAlignment", model.NewJobParameters())
	return model.NewStepExecution("step-1", je, stepName)
}

func mustFrame(t *testing.T, cols ...*dataset.Column) *dataset.Frame {
	t.Helper()
	f, err := dataset.NewFrame(cols...)
	require.NoError(t, err)
	return f
}

// workedExampleCatalog seeds the catalog with the single-row fixtures:
// load id=X hour "5" month "1" dow "2" electricity 10, lookup fraction 0.5
// on geography G1, timezone map G1→EPT with from_fraction 1, and a one-row
// calendar for EPT at 2012-01-01T06:00:00.
func workedExampleCatalog(t *testing.T) *pipeline.DatasetCatalog {
	t.Helper()
	catalog := pipeline.NewDatasetCatalog()

	ept, ok := chrono.CanonicalLabel("EPT")
	require.True(t, ok)

	catalog.PutFrame(pipeline.FrameLookupTable, mustFrame(t,
		dataset.NewStringColumn("id", []string{"X"}, nil),
		dataset.NewStringColumn("sector", []string{"com"}, nil),
		dataset.NewStringColumn("scenario", []string{"reference"}, nil),
		dataset.NewStringColumn("model_year", []string{"2030"}, nil),
		dataset.NewStringColumn("geography", []string{"G1"}, nil),
		dataset.NewFloatColumn("fraction", []float64{0.5}, nil),
	))
	catalog.PutFrame(pipeline.FrameGeographyZones, mustFrame(t,
		dataset.NewStringColumn("from_id", []string{"G1"}, nil),
		dataset.NewStringColumn("to_id", []string{"EPT"}, nil),
		dataset.NewFloatColumn("from_fraction", []float64{1}, nil),
	))
	catalog.PutFrame(pipeline.FrameConsolidatedLoad, mustFrame(t,
		dataset.NewStringColumn("id", []string{"X"}, nil),
		dataset.NewStringColumn("day_of_week", []string{"2"}, nil),
		dataset.NewStringColumn("month", []string{"1"}, nil),
		dataset.NewStringColumn("hour", []string{"5"}, nil),
		dataset.NewFloatColumn("electricity", []float64{10}, nil),
	))
	catalog.PutFrame(pipeline.FrameCalendar, mustFrame(t,
		dataset.NewStringColumn("timezone", []string{ept}, nil),
		dataset.NewStringColumn("day_of_week", []string{"2"}, nil),
		dataset.NewStringColumn("month", []string{"1"}, nil),
		dataset.NewStringColumn("hour", []string{"5"}, nil),
		dataset.NewTimeColumn("timestamp", []time.Time{time.Date(2012, 1, 1, 6, 0, 0, 0, time.UTC)}, nil),
	))
	return catalog
}

func TestJoinAggregate_WorkedExample(t *testing.T) {
	catalog := workedExampleCatalog(t)
	recorder := newCaptureRecorder()
	tasklet := stage.NewJoinAggregateTasklet(catalog, recorder)
	se := newStepExecution(t, "joinAggregate")

	exit, err := tasklet.Execute(context.Background(), se)
	require.NoError(t, err)
	assert.Equal(t, model.ExitStatusCompleted, exit)

	aligned, err := catalog.Frame(pipeline.FrameAlignedLoad)
	require.NoError(t, err)
	require.Equal(t, 1, aligned.NumRows())

	elec, ok := aligned.Column("electricity")
	require.True(t, ok)
	v, valid := elec.FloatAt(0)
	require.True(t, valid)
	assert.Equal(t, 5.0, v, "0.5 fraction * 1 from_fraction * 10 electricity")

	ts, ok := aligned.Column("timestamp")
	require.True(t, ok)
	got, valid := ts.TimeAt(0)
	require.True(t, valid)
	assert.Equal(t, time.Date(2012, 1, 1, 6, 0, 0, 0, time.UTC), got)

	assert.False(t, aligned.HasColumn("timezone"), "categorical keys are dropped")
	assert.False(t, aligned.HasColumn("hour"))
	assert.Zero(t, se.WarningCount)
	assert.Empty(t, recorder.kinds)
}

func TestJoinAggregate_MissingFromFractionDefaultsToOne(t *testing.T) {
	catalog := workedExampleCatalog(t)
	// Same map without the optional from_fraction column.
	catalog.PutFrame(pipeline.FrameGeographyZones, mustFrame(t,
		dataset.NewStringColumn("from_id", []string{"G1"}, nil),
		dataset.NewStringColumn("to_id", []string{"EPT"}, nil),
	))
	tasklet := stage.NewJoinAggregateTasklet(catalog, newCaptureRecorder())

	_, err := tasklet.Execute(context.Background(), newStepExecution(t, "joinAggregate"))
	require.NoError(t, err)

	aligned, err := catalog.Frame(pipeline.FrameAlignedLoad)
	require.NoError(t, err)
	elec, _ := aligned.Column("electricity")
	v, valid := elec.FloatAt(0)
	require.True(t, valid)
	assert.Equal(t, 5.0, v, "absent from_fraction defaults to 1 before the multiply")
}

func TestJoinAggregate_CountsAnomalies(t *testing.T) {
	catalog := pipeline.NewDatasetCatalog()
	ept, _ := chrono.CanonicalLabel("EPT")

	// Two lookup rows: G1 is mapped, G2 is not; Y has no load rows.
	catalog.PutFrame(pipeline.FrameLookupTable, mustFrame(t,
		dataset.NewStringColumn("id", []string{"X", "Y"}, nil),
		dataset.NewStringColumn("sector", []string{"com", "com"}, nil),
		dataset.NewStringColumn("scenario", []string{"reference", "reference"}, nil),
		dataset.NewStringColumn("model_year", []string{"2030", "2030"}, nil),
		dataset.NewStringColumn("geography", []string{"G1", "G2"}, nil),
		dataset.NewFloatColumn("fraction", []float64{0.5, 1}, nil),
	))
	catalog.PutFrame(pipeline.FrameGeographyZones, mustFrame(t,
		dataset.NewStringColumn("from_id", []string{"G1"}, nil),
		dataset.NewStringColumn("to_id", []string{"EPT"}, nil),
	))
	catalog.PutFrame(pipeline.FrameConsolidatedLoad, mustFrame(t,
		dataset.NewStringColumn("id", []string{"X"}, nil),
		dataset.NewStringColumn("day_of_week", []string{"2"}, nil),
		dataset.NewStringColumn("month", []string{"1"}, nil),
		dataset.NewStringColumn("hour", []string{"5"}, nil),
		dataset.NewFloatColumn("electricity", []float64{10}, nil),
	))
	// Two calendar rows; only the first has matching load.
	catalog.PutFrame(pipeline.FrameCalendar, mustFrame(t,
		dataset.NewStringColumn("timezone", []string{ept, ept}, nil),
		dataset.NewStringColumn("day_of_week", []string{"2", "3"}, nil),
		dataset.NewStringColumn("month", []string{"1", "1"}, nil),
		dataset.NewStringColumn("hour", []string{"5", "5"}, nil),
		dataset.NewTimeColumn("timestamp", []time.Time{
			time.Date(2012, 1, 1, 6, 0, 0, 0, time.UTC),
			time.Date(2012, 1, 2, 6, 0, 0, 0, time.UTC),
		}, nil),
	))

	recorder := newCaptureRecorder()
	se := newStepExecution(t, "joinAggregate")
	_, err := stage.NewJoinAggregateTasklet(catalog, recorder).Execute(context.Background(), se)
	require.NoError(t, err)

	assert.Equal(t, int64(1), recorder.kinds[stage.WarnUnmappedTimezone], "G2 has no timezone")
	assert.Equal(t, int64(1), recorder.kinds[stage.WarnUnmeasuredID], "Y has no load")
	assert.Equal(t, int64(1), recorder.kinds[stage.WarnUnmatchedCalendar], "second calendar row has no aggregate")
	assert.Equal(t, int64(3), se.WarningCount)

	// The calendar is authoritative: both rows appear, the unmatched one with
	// zero electricity.
	aligned, err := catalog.Frame(pipeline.FrameAlignedLoad)
	require.NoError(t, err)
	require.Equal(t, 2, aligned.NumRows())
	elec, _ := aligned.Column("electricity")
	v0, _ := elec.FloatAt(0)
	v1, _ := elec.FloatAt(1)
	assert.Equal(t, 5.0, v0)
	assert.Equal(t, 0.0, v1)
}

func TestConsolidateLoad_SumsResolvedColumns(t *testing.T) {
	catalog := pipeline.NewDatasetCatalog()
	catalog.PutFrame(pipeline.FrameLoadTable, mustFrame(t,
		dataset.NewStringColumn("id", []string{"X", "X"}, nil),
		dataset.NewStringColumn("day_of_week", []string{"2", "3"}, nil),
		dataset.NewStringColumn("month", []string{"1", "1"}, nil),
		dataset.NewStringColumn("hour", []string{"5", "5"}, nil),
		dataset.NewFloatColumn("cooling", []float64{3, 1}, nil),
		dataset.NewFloatColumn("fans", []float64{7, 0}, []bool{true, false}),
		dataset.NewFloatColumn("gas_heating", []float64{100, 100}, nil),
	))
	catalog.PutValue(pipeline.ValueEndUseColumns, []string{"cooling", "fans", "not_present"})

	se := newStepExecution(t, "consolidateLoad")
	_, err := stage.NewConsolidateLoadTasklet(catalog).Execute(context.Background(), se)
	require.NoError(t, err)

	consolidated, err := catalog.Frame(pipeline.FrameConsolidatedLoad)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "day_of_week", "month", "hour", "electricity"}, consolidated.ColumnNames())

	elec, _ := consolidated.Column("electricity")
	v0, _ := elec.FloatAt(0)
	v1, _ := elec.FloatAt(1)
	assert.Equal(t, 10.0, v0, "cooling+fans; excluded gas_heating does not contribute")
	assert.Equal(t, 1.0, v1, "null fans cell contributes zero")
	assert.Equal(t, int64(2), se.OutputRows)
}

func TestConsolidateLoad_EmptyFilterYieldsZeroColumn(t *testing.T) {
	catalog := pipeline.NewDatasetCatalog()
	catalog.PutFrame(pipeline.FrameLoadTable, mustFrame(t,
		dataset.NewStringColumn("id", []string{"X"}, nil),
		dataset.NewStringColumn("day_of_week", []string{"2"}, nil),
		dataset.NewStringColumn("month", []string{"1"}, nil),
		dataset.NewStringColumn("hour", []string{"5"}, nil),
		dataset.NewFloatColumn("cooling", []float64{3}, nil),
	))
	catalog.PutValue(pipeline.ValueEndUseColumns, []string{})

	_, err := stage.NewConsolidateLoadTasklet(catalog).Execute(context.Background(), newStepExecution(t, "consolidateLoad"))
	require.NoError(t, err)

	consolidated, err := catalog.Frame(pipeline.FrameConsolidatedLoad)
	require.NoError(t, err)
	elec, _ := consolidated.Column("electricity")
	v, valid := elec.FloatAt(0)
	require.True(t, valid)
	assert.Equal(t, 0.0, v)
}

func TestExpandCalendar_PublishesCalendar(t *testing.T) {
	catalog := pipeline.NewDatasetCatalog()
	catalog.PutValue(pipeline.ValuePipelineConfig, &pipeline.Config{
		WeatherYear:     2012,
		SystemTimeZone:  "EasternStandard",
		SourceTimeZones: []string{"EasternPrevailing"},
	})

	se := newStepExecution(t, "expandCalendar")
	_, err := stage.NewExpandCalendarTasklet(catalog).Execute(context.Background(), se)
	require.NoError(t, err)

	calendar, err := catalog.Frame(pipeline.FrameCalendar)
	require.NoError(t, err)
	assert.Equal(t, 8784, calendar.NumRows(), "2012 is a leap year")
	assert.Equal(t, int64(8784), se.OutputRows)
}

// exportFixture wires an export tasklet over a temp-dir local storage
// backend, with the aligned frame and geography mapping in the catalog.
func exportFixture(t *testing.T, aligned, mapping *dataset.Frame) (*pipeline.DatasetCatalog, *config.Config, *stubStorageResolver, string) {
	t.Helper()
	baseDir := t.TempDir()
	conn, err := local.NewLocalAdapter(storageConfig.StorageConfig{Type: "local", BaseDir: baseDir, BucketName: "datasets"}, "files")
	require.NoError(t, err)

	cfg := config.NewConfig()
	cfg.Hourglass.AdapterConfigs["storage"] = map[string]interface{}{
		"files": map[string]interface{}{
			"type":        "local",
			"base_dir":    baseDir,
			"bucket_name": "datasets",
		},
	}

	catalog := pipeline.NewDatasetCatalog()
	catalog.PutValue(pipeline.ValuePipelineConfig, &pipeline.Config{
		StorageRef: "files",
		OutputPath: "out/aligned",
	})
	catalog.PutFrame(pipeline.FrameAlignedLoad, aligned)
	catalog.PutFrame(pipeline.FrameGeographyMapping, mapping)

	return catalog, cfg, &stubStorageResolver{conn: conn}, filepath.Join(baseDir, "datasets", "out", "aligned")
}

func alignedFixture(t *testing.T) *dataset.Frame {
	return mustFrame(t,
		dataset.NewStringColumn("sector", []string{"com", "com"}, nil),
		dataset.NewStringColumn("scenario", []string{"reference", "reference"}, nil),
		dataset.NewStringColumn("geography", []string{"G1", "G2"}, nil),
		dataset.NewStringColumn("model_year", []string{"2030", "2030"}, nil),
		dataset.NewFloatColumn("electricity", []float64{5, 2}, nil),
		dataset.NewTimeColumn("timestamp", []time.Time{
			time.Date(2012, 1, 1, 6, 0, 0, 0, time.UTC),
			time.Date(2012, 1, 1, 6, 0, 0, 0, time.UTC),
		}, nil),
	)
}

func TestExport_RemapsAndWritesPartitionedParquet(t *testing.T) {
	// G1 and G2 both remap to the coarse geography C1 and collapse into one row.
	mapping := mustFrame(t,
		dataset.NewStringColumn("from_id", []string{"G1", "G2"}, nil),
		dataset.NewStringColumn("to_id", []string{"C1", "C1"}, nil),
	)
	catalog, cfg, resolver, outDir := exportFixture(t, alignedFixture(t), mapping)

	tasklet, err := stage.NewExportDatasetTasklet(cfg, catalog, resolver, metrics.NewNoOpMetricRecorder(), nil)
	require.NoError(t, err)
	se := newStepExecution(t, "exportDataset")
	exit, err := tasklet.Execute(context.Background(), se)
	require.NoError(t, err)
	assert.Equal(t, model.ExitStatusCompleted, exit)

	partFile := filepath.Join(outDir, "scenario=reference", "model_year=2030", "part-00000.parquet")
	content, err := os.ReadFile(partFile)
	require.NoError(t, err)

	frame, err := dataset.ReadParquet(content)
	require.NoError(t, err)
	require.Equal(t, 1, frame.NumRows(), "both fine geographies collapse into C1")

	geo, _ := frame.Column("geography")
	g, _ := geo.StringAt(0)
	assert.Equal(t, "C1", g)
	elec, _ := frame.Column("electricity")
	v, _ := elec.FloatAt(0)
	assert.Equal(t, 7.0, v)

	_, err = os.Stat(filepath.Join(outDir, "_SUCCESS"))
	assert.NoError(t, err, "success marker written after all parts")
	assert.Equal(t, int64(1), se.OutputRows)
}

func TestExport_UnmappedGeographyContributesNoRows(t *testing.T) {
	mapping := mustFrame(t,
		dataset.NewStringColumn("from_id", []string{"G1"}, nil),
		dataset.NewStringColumn("to_id", []string{"C1"}, nil),
	)
	catalog, cfg, resolver, outDir := exportFixture(t, alignedFixture(t), mapping)

	recorder := newCaptureRecorder()
	tasklet, err := stage.NewExportDatasetTasklet(cfg, catalog, resolver, recorder, nil)
	require.NoError(t, err)
	se := newStepExecution(t, "exportDataset")
	_, err = tasklet.Execute(context.Background(), se)
	require.NoError(t, err)

	assert.Equal(t, int64(1), recorder.kinds[stage.WarnUnmappedGeography])

	partFile := filepath.Join(outDir, "scenario=reference", "model_year=2030", "part-00000.parquet")
	content, err := os.ReadFile(partFile)
	require.NoError(t, err)
	frame, err := dataset.ReadParquet(content)
	require.NoError(t, err)
	require.Equal(t, 1, frame.NumRows(), "G2 is excluded, not emitted with a null geography")
	geo, _ := frame.Column("geography")
	g, _ := geo.StringAt(0)
	assert.Equal(t, "C1", g)
}

func TestExport_RefusesExistingOutputPath(t *testing.T) {
	mapping := mustFrame(t,
		dataset.NewStringColumn("from_id", []string{"G1", "G2"}, nil),
		dataset.NewStringColumn("to_id", []string{"C1", "C1"}, nil),
	)
	catalog, cfg, resolver, _ := exportFixture(t, alignedFixture(t), mapping)

	tasklet, err := stage.NewExportDatasetTasklet(cfg, catalog, resolver, metrics.NewNoOpMetricRecorder(), nil)
	require.NoError(t, err)
	_, err = tasklet.Execute(context.Background(), newStepExecution(t, "exportDataset"))
	require.NoError(t, err)

	// Second run against the same location must fail without touching it.
	exit, err := tasklet.Execute(context.Background(), newStepExecution(t, "exportDataset"))
	require.Error(t, err)
	assert.Equal(t, model.ExitStatusFailed, exit)
	assert.True(t, exception.IsOutputExists(err))
}

func TestExport_DeterministicBytes(t *testing.T) {
	mapping := mustFrame(t,
		dataset.NewStringColumn("from_id", []string{"G1", "G2"}, nil),
		dataset.NewStringColumn("to_id", []string{"C1", "C2"}, nil),
	)

	readPart := func(t *testing.T) []byte {
		catalog, cfg, resolver, outDir := exportFixture(t, alignedFixture(t), mapping)
		tasklet, err := stage.NewExportDatasetTasklet(cfg, catalog, resolver, metrics.NewNoOpMetricRecorder(), nil)
		require.NoError(t, err)
		_, err = tasklet.Execute(context.Background(), newStepExecution(t, "exportDataset"))
		require.NoError(t, err)
		content, err := os.ReadFile(filepath.Join(outDir, "scenario=reference", "model_year=2030", "part-00000.parquet"))
		require.NoError(t, err)
		return content
	}

	assert.Equal(t, readPart(t), readPart(t), "identical inputs produce identical partition bytes")
}

func TestExport_RejectsUnknownCompression(t *testing.T) {
	catalog := pipeline.NewDatasetCatalog()
	_, err := stage.NewExportDatasetTasklet(config.NewConfig(), catalog, &stubStorageResolver{}, metrics.NewNoOpMetricRecorder(),
		map[string]string{"compression_type": "LZMA"})
	require.Error(t, err)
	assert.True(t, exception.IsConfigError(err))
}
