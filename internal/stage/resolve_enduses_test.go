package stage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/hourglass/internal/dataset"
	"github.com/tigerroll/hourglass/internal/pipeline"
	"github.com/tigerroll/hourglass/internal/stage"
	storageConfig "github.com/tigerroll/hourglass/pkg/batch/adapter/storage/config"
	local "github.com/tigerroll/hourglass/pkg/batch/adapter/storage/local"
	config "github.com/tigerroll/hourglass/pkg/batch/core/config"
	model "github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
	"github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
)

// stubDatasets serves fixed frames for one dataset id.
type stubDatasets struct {
	load   *dataset.Frame
	lookup *dataset.Frame
	zones  *dataset.Frame
}

func (s *stubDatasets) LoadTable(ctx context.Context, datasetID string) (*dataset.Frame, error) {
	return s.load, nil
}

func (s *stubDatasets) LookupTable(ctx context.Context, datasetID string) (*dataset.Frame, error) {
	return s.lookup, nil
}

func (s *stubDatasets) GeographyTimeZones(ctx context.Context, datasetID string) (*dataset.Frame, error) {
	return s.zones, nil
}

// stubMappings serves fixed mapping frames by id.
type stubMappings struct {
	mappings map[string]*dataset.Frame
}

func (s *stubMappings) Mapping(ctx context.Context, mappingID string) (*dataset.Frame, error) {
	m, ok := s.mappings[mappingID]
	if !ok {
		return nil, exception.NewConfigErrorf("registry", "mapping %q not found", mappingID)
	}
	return m, nil
}

func resolveFixture(t *testing.T, endUseMapping *dataset.Frame) (*pipeline.DatasetCatalog, *stage.ResolveEndUsesTasklet, *config.Config, *captureRecorder) {
	t.Helper()
	baseDir := t.TempDir()
	conn, err := local.NewLocalAdapter(storageConfig.StorageConfig{Type: "local", BaseDir: baseDir, BucketName: "datasets"}, "files")
	require.NoError(t, err)

	cfg := config.NewConfig()
	cfg.Hourglass.Pipeline = config.PipelineConfig{
		DatasetID:          "ds1",
		RegistryPath:       "reg",
		StorageRef:         "files",
		OutputPath:         "out/aligned",
		WeatherYear:        2012,
		SystemTimeZone:     "EST",
		SourceTimeZones:    []string{"EPT"},
		EndUseMappingID:    "enduses",
		GeographyMappingID: "counties",
	}
	cfg.Hourglass.AdapterConfigs["storage"] = map[string]interface{}{
		"files": map[string]interface{}{
			"type":        "local",
			"base_dir":    baseDir,
			"bucket_name": "datasets",
		},
	}

	datasets := &stubDatasets{
		load: mustFrame(t,
			dataset.NewStringColumn("id", []string{"X"}, nil),
			dataset.NewStringColumn("day_of_week", []string{"2"}, nil),
			dataset.NewStringColumn("month", []string{"1"}, nil),
			dataset.NewStringColumn("hour", []string{"5"}, nil),
			dataset.NewFloatColumn("cooling", []float64{3}, nil),
			dataset.NewFloatColumn("fans", []float64{7}, nil),
		),
		lookup: mustFrame(t,
			dataset.NewStringColumn("id", []string{"X"}, nil),
			dataset.NewStringColumn("geography", []string{"G1"}, nil),
			dataset.NewFloatColumn("fraction", []float64{0.5}, nil),
		),
		zones: mustFrame(t,
			dataset.NewStringColumn("from_id", []string{"G1"}, nil),
			dataset.NewStringColumn("to_id", []string{"EPT"}, nil),
		),
	}
	mappings := &stubMappings{mappings: map[string]*dataset.Frame{
		"enduses": endUseMapping,
		"counties": mustFrame(t,
			dataset.NewStringColumn("from_id", []string{"G1"}, nil),
			dataset.NewStringColumn("to_id", []string{"C1"}, nil),
		),
	}}

	catalog := pipeline.NewDatasetCatalog()
	recorder := newCaptureRecorder()
	tasklet := stage.NewResolveEndUsesTasklet(cfg, catalog, datasets, mappings, &stubStorageResolver{conn: conn}, recorder).(*stage.ResolveEndUsesTasklet)
	return catalog, tasklet, cfg, recorder
}

func TestResolveEndUses_ResolvesMappedLoadColumns(t *testing.T) {
	// fans maps to a null to_id and is excluded; heating is not a load column.
	endUses := mustFrame(t,
		dataset.NewStringColumn("from_id", []string{"cooling", "fans", "heating"}, nil),
		dataset.NewStringColumn("to_id", []string{"electricity_cooling", "", "electricity_heating"}, []bool{true, false, true}),
	)
	catalog, tasklet, _, recorder := resolveFixture(t, endUses)

	se := newStepExecution(t, "resolveEndUses")
	exit, err := tasklet.Execute(context.Background(), se)
	require.NoError(t, err)
	assert.Equal(t, model.ExitStatusCompleted, exit)

	resolved, err := catalog.EndUseColumns()
	require.NoError(t, err)
	assert.Equal(t, []string{"cooling"}, resolved)

	pcfg, err := catalog.PipelineConfig()
	require.NoError(t, err)
	assert.Equal(t, "EasternStandard", pcfg.SystemTimeZone)

	for _, name := range []string{
		pipeline.FrameLoadTable, pipeline.FrameLookupTable,
		pipeline.FrameGeographyZones, pipeline.FrameGeographyMapping,
	} {
		_, err := catalog.Frame(name)
		assert.NoError(t, err, name)
	}
	assert.Empty(t, recorder.kinds)
}

func TestResolveEndUses_EmptyFilterWarnsNotFails(t *testing.T) {
	endUses := mustFrame(t,
		dataset.NewStringColumn("from_id", []string{"heating"}, nil),
		dataset.NewStringColumn("to_id", []string{"electricity_heating"}, nil),
	)
	catalog, tasklet, _, recorder := resolveFixture(t, endUses)

	se := newStepExecution(t, "resolveEndUses")
	exit, err := tasklet.Execute(context.Background(), se)
	require.NoError(t, err)
	assert.Equal(t, model.ExitStatusCompleted, exit)

	resolved, err := catalog.EndUseColumns()
	require.NoError(t, err)
	assert.Empty(t, resolved)
	assert.Equal(t, int64(1), recorder.kinds[stage.WarnEmptyEndUseFilter])
	assert.Equal(t, int64(1), se.WarningCount)
}

func TestResolveEndUses_InvalidConfigurationFailsBeforeLoading(t *testing.T) {
	endUses := mustFrame(t,
		dataset.NewStringColumn("from_id", []string{"cooling"}, nil),
		dataset.NewStringColumn("to_id", []string{"electricity_cooling"}, nil),
	)
	_, tasklet, cfg, _ := resolveFixture(t, endUses)
	cfg.Hourglass.Pipeline.SystemTimeZone = "Atlantis"

	exit, err := tasklet.Execute(context.Background(), newStepExecution(t, "resolveEndUses"))
	require.Error(t, err)
	assert.Equal(t, model.ExitStatusFailed, exit)
	assert.True(t, exception.IsConfigError(err))
}

func TestResolveEndUses_ParameterOverridesConfig(t *testing.T) {
	endUses := mustFrame(t,
		dataset.NewStringColumn("from_id", []string{"cooling"}, nil),
		dataset.NewStringColumn("to_id", []string{"electricity_cooling"}, nil),
	)
	catalog, tasklet, _, _ := resolveFixture(t, endUses)

	je := model.NewJobExecution("instance-1", "tempoAlignment", model.NewJobParameters())
	je.Parameters.Put("weather_year", "2018")
	se := model.NewStepExecution("step-1", je, "resolveEndUses")

	_, err := tasklet.Execute(context.Background(), se)
	require.NoError(t, err)

	pcfg, err := catalog.PipelineConfig()
	require.NoError(t, err)
	assert.Equal(t, 2018, pcfg.WeatherYear)
}
