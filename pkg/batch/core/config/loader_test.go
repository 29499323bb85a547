package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/tigerroll/hourglass/pkg/batch/core/config"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := config.LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Hourglass.Batch.PollingIntervalSeconds)
	assert.Equal(t, "INFO", cfg.Hourglass.System.Logging.Level)
	assert.Equal(t, "metadata", cfg.Hourglass.Infrastructure.JobRepositoryDBRef)
	assert.Equal(t, "EasternStandard", cfg.Hourglass.Pipeline.SystemTimeZone)
}

func TestLoadConfigMergesYAMLOverDefaults(t *testing.T) {
	yamlCfg := []byte(`
hourglass:
  batch:
    job_name: tempoAlignment
    polling_interval_seconds: 3
  system:
    logging:
      level: DEBUG
  pipeline:
    dataset_id: ds1
    weather_year: 2018
  adapters:
    storage:
      datasets:
        type: local
        base_dir: /tmp/data
        bucket_name: datasets
`)

	cfg, err := config.LoadConfig("", yamlCfg)
	require.NoError(t, err)

	assert.Equal(t, "tempoAlignment", cfg.Hourglass.Batch.JobName)
	assert.Equal(t, 3, cfg.Hourglass.Batch.PollingIntervalSeconds)
	assert.Equal(t, "DEBUG", cfg.Hourglass.System.Logging.Level)
	assert.Equal(t, "ds1", cfg.Hourglass.Pipeline.DatasetID)
	assert.Equal(t, 2018, cfg.Hourglass.Pipeline.WeatherYear)
	// Defaults survive where the YAML is silent.
	assert.Equal(t, "metadata", cfg.Hourglass.Infrastructure.JobRepositoryDBRef)
	assert.Contains(t, cfg.Hourglass.AdapterConfigs, "storage")
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	yamlCfg := []byte(`
hourglass:
  batch:
    job_name: fromYaml
  pipeline:
    weather_year: 2012
`)
	t.Setenv("HOURGLASS_BATCH_JOB_NAME", "fromEnv")
	t.Setenv("HOURGLASS_PIPELINE_WEATHER_YEAR", "2020")

	cfg, err := config.LoadConfig("", yamlCfg)
	require.NoError(t, err)

	assert.Equal(t, "fromEnv", cfg.Hourglass.Batch.JobName)
	assert.Equal(t, 2020, cfg.Hourglass.Pipeline.WeatherYear)
}

func TestLoadConfigExpandsPlaceholders(t *testing.T) {
	yamlCfg := []byte(`
hourglass:
  pipeline:
    dataset_id: ${TEST_DATASET_ID}
    output_path: ${TEST_OUTPUT_PATH}
`)
	t.Setenv("TEST_DATASET_ID", "comstock_v1")

	cfg, err := config.LoadConfig("", yamlCfg)
	require.NoError(t, err)

	assert.Equal(t, "comstock_v1", cfg.Hourglass.Pipeline.DatasetID)
	// Unset placeholders expand to empty and fall back to defaults/validation.
	assert.Equal(t, "", cfg.Hourglass.Pipeline.OutputPath)
}
