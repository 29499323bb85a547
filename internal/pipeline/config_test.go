package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/hourglass/internal/chrono"
	"github.com/tigerroll/hourglass/internal/pipeline"
	storage "github.com/tigerroll/hourglass/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/hourglass/pkg/batch/adapter/storage/config"
	local "github.com/tigerroll/hourglass/pkg/batch/adapter/storage/local"
	coreAdapter "github.com/tigerroll/hourglass/pkg/batch/core/adapter"
	config "github.com/tigerroll/hourglass/pkg/batch/core/config"
	model "github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
	"github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
)

func validAppConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Hourglass.Pipeline = config.PipelineConfig{
		DatasetID:          "ds1",
		RegistryPath:       "reg",
		StorageRef:         "files",
		OutputPath:         "out/aligned",
		WeatherYear:        2012,
		SystemTimeZone:     "EST",
		SourceTimeZones:    []string{"EPT", "CentralPrevailing"},
		EndUseMappingID:    "enduses",
		GeographyMappingID: "counties",
	}
	return cfg
}

func TestResolveConfig_DefaultsFromApplicationConfig(t *testing.T) {
	c, err := pipeline.ResolveConfig(validAppConfig(), model.NewJobParameters())
	require.NoError(t, err)

	assert.Equal(t, "ds1", c.DatasetID)
	assert.Equal(t, 2012, c.WeatherYear)
	assert.Equal(t, "EasternStandard", c.SystemTimeZone, "short code resolves to canonical label")
	assert.Equal(t, []string{"EasternPrevailing", "CentralPrevailing"}, c.SourceTimeZones)
	assert.Equal(t, chrono.LeapDayNone, c.LeapDayAdjustment)
}

func TestResolveConfig_JobParameterOverrides(t *testing.T) {
	params := model.NewJobParameters()
	params.Put(pipeline.ParamWeatherYear, "2018")
	params.Put(pipeline.ParamSourceTimeZones, "PST, MST")
	params.Put(pipeline.ParamOutputPath, "out/rerun")
	params.Put(pipeline.ParamLeapDayAdjustment, "drop_dec31")

	c, err := pipeline.ResolveConfig(validAppConfig(), params)
	require.NoError(t, err)

	assert.Equal(t, 2018, c.WeatherYear)
	assert.Equal(t, []string{"PacificStandard", "MountainStandard"}, c.SourceTimeZones)
	assert.Equal(t, "out/rerun", c.OutputPath)
	assert.Equal(t, chrono.LeapDayDropDec31, c.LeapDayAdjustment)
}

func TestResolveConfig_CollectsAllViolations(t *testing.T) {
	cfg := validAppConfig()
	cfg.Hourglass.Pipeline.DatasetID = ""
	cfg.Hourglass.Pipeline.WeatherYear = 0
	cfg.Hourglass.Pipeline.SystemTimeZone = "Atlantis"
	cfg.Hourglass.Pipeline.SourceTimeZones = []string{"EPT", "Narnia"}
	cfg.Hourglass.Pipeline.LeapDayAdjustment = "drop_everything"

	_, err := pipeline.ResolveConfig(cfg, model.NewJobParameters())
	require.Error(t, err)
	assert.True(t, exception.IsConfigError(err))

	msg := err.Error()
	assert.Contains(t, msg, "dataset_id")
	assert.Contains(t, msg, "weather_year")
	assert.Contains(t, msg, "Atlantis")
	assert.Contains(t, msg, "Narnia")
	assert.Contains(t, msg, "drop_everything")
}

func TestResolveConfig_RejectsLocalZone(t *testing.T) {
	cfg := validAppConfig()
	cfg.Hourglass.Pipeline.SystemTimeZone = "LOCAL"

	_, err := pipeline.ResolveConfig(cfg, model.NewJobParameters())
	require.Error(t, err)
	assert.True(t, exception.IsConfigError(err))
	assert.Contains(t, err.Error(), "LOCAL")
}

func TestResolveConfig_BadYearParameter(t *testing.T) {
	params := model.NewJobParameters()
	params.Put(pipeline.ParamWeatherYear, "twenty twelve")

	_, err := pipeline.ResolveConfig(validAppConfig(), params)
	require.Error(t, err)
	assert.True(t, exception.IsConfigError(err))
}

type preflightResolver struct {
	conn storage.StorageConnection
}

func (r *preflightResolver) ResolveConnection(ctx context.Context, name string) (coreAdapter.ResourceConnection, error) {
	return r.conn, nil
}

func (r *preflightResolver) ResolveConnectionName(ctx context.Context, jobExecution interface{}, stepExecution interface{}, defaultName string) (string, error) {
	return defaultName, nil
}

func (r *preflightResolver) ResolveStorageConnection(ctx context.Context, name string) (storage.StorageConnection, error) {
	return r.conn, nil
}

func (r *preflightResolver) ResolveStorageConnectionName(ctx context.Context, jobExecution interface{}, stepExecution interface{}, defaultName string) (string, error) {
	return defaultName, nil
}

func TestPreflightOutput_FailsWhenPathExists(t *testing.T) {
	baseDir := t.TempDir()
	storageCfg := storageConfig.StorageConfig{Type: "local", BaseDir: baseDir, BucketName: "datasets"}
	conn, err := local.NewLocalAdapter(storageCfg, "files")
	require.NoError(t, err)
	resolver := &preflightResolver{conn: conn}

	cfg := validAppConfig()
	cfg.Hourglass.AdapterConfigs["storage"] = map[string]interface{}{
		"files": map[string]interface{}{
			"type":        "local",
			"base_dir":    baseDir,
			"bucket_name": "datasets",
		},
	}

	c, err := pipeline.ResolveConfig(cfg, model.NewJobParameters())
	require.NoError(t, err)

	require.NoError(t, c.PreflightOutput(context.Background(), resolver, cfg))

	marker := filepath.Join(baseDir, "datasets", "out", "aligned", "part-00000.parquet")
	require.NoError(t, os.MkdirAll(filepath.Dir(marker), 0o755))
	require.NoError(t, os.WriteFile(marker, []byte("x"), 0o644))

	err = c.PreflightOutput(context.Background(), resolver, cfg)
	require.Error(t, err)
	assert.True(t, exception.IsOutputExists(err))
}
