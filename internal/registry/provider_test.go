package registry_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go/parquet"

	"github.com/tigerroll/hourglass/internal/dataset"
	"github.com/tigerroll/hourglass/internal/registry"
	storage "github.com/tigerroll/hourglass/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/hourglass/pkg/batch/adapter/storage/config"
	local "github.com/tigerroll/hourglass/pkg/batch/adapter/storage/local"
	coreAdapter "github.com/tigerroll/hourglass/pkg/batch/core/adapter"
	config "github.com/tigerroll/hourglass/pkg/batch/core/config"
	"github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
)

// stubResolver hands back one fixed local storage connection.
type stubResolver struct {
	conn storage.StorageConnection
}

func (r *stubResolver) ResolveConnection(ctx context.Context, name string) (coreAdapter.ResourceConnection, error) {
	return r.conn, nil
}

func (r *stubResolver) ResolveConnectionName(ctx context.Context, jobExecution interface{}, stepExecution interface{}, defaultName string) (string, error) {
	return defaultName, nil
}

func (r *stubResolver) ResolveStorageConnection(ctx context.Context, name string) (storage.StorageConnection, error) {
	return r.conn, nil
}

func (r *stubResolver) ResolveStorageConnectionName(ctx context.Context, jobExecution interface{}, stepExecution interface{}, defaultName string) (string, error) {
	return defaultName, nil
}

func setupRegistry(t *testing.T) (string, registry.DatasetProvider, registry.MappingProvider) {
	t.Helper()

	baseDir := t.TempDir()
	storageCfg := storageConfig.StorageConfig{Type: "local", BaseDir: baseDir, BucketName: "registry"}
	conn, err := local.NewLocalAdapter(storageCfg, "files")
	require.NoError(t, err)
	resolver := &stubResolver{conn: conn}

	cfg := config.NewConfig()
	cfg.Hourglass.Pipeline.StorageRef = "files"
	cfg.Hourglass.Pipeline.RegistryPath = "reg"
	cfg.Hourglass.AdapterConfigs["storage"] = map[string]interface{}{
		"files": map[string]interface{}{
			"type":        "local",
			"base_dir":    baseDir,
			"bucket_name": "registry",
		},
	}

	root := filepath.Join(baseDir, "registry", "reg")
	return root, registry.NewDatasetProvider(resolver, cfg), registry.NewMappingProvider(resolver, cfg)
}

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

func TestMapping_ReadsCSVWithFractions(t *testing.T) {
	root, _, mappings := setupRegistry(t)

	writeFile(t, filepath.Join(root, "mappings", "enduses.csv"), []byte(
		"from_id,to_id,from_fraction\n"+
			"cooling,electricity_cooling,1\n"+
			"fans,,\n"+
			"heating,electricity_heating,0.5\n"))

	frame, err := mappings.Mapping(context.Background(), "enduses")
	require.NoError(t, err)
	assert.Equal(t, 3, frame.NumRows())

	toID, ok := frame.Column(registry.ColumnToID)
	require.True(t, ok)
	assert.True(t, toID.IsNull(1), "empty to_id cell should be null")

	fraction, ok := frame.Column(registry.ColumnFromFraction)
	require.True(t, ok)
	v, valid := fraction.FloatAt(2)
	assert.True(t, valid)
	assert.Equal(t, 0.5, v)
}

func TestMapping_MissingIDIsConfigError(t *testing.T) {
	_, _, mappings := setupRegistry(t)

	_, err := mappings.Mapping(context.Background(), "no_such_mapping")
	require.Error(t, err)
	assert.True(t, exception.IsConfigError(err))
}

func TestMapping_MissingColumnsRejected(t *testing.T) {
	root, _, mappings := setupRegistry(t)

	writeFile(t, filepath.Join(root, "mappings", "broken.csv"), []byte("left,right\na,b\n"))

	_, err := mappings.Mapping(context.Background(), "broken")
	require.Error(t, err)
	assert.True(t, exception.IsConfigError(err))
}

func TestDataset_LoadAndLookupRoundTrip(t *testing.T) {
	root, datasets, _ := setupRegistry(t)

	load, err := dataset.NewFrame(
		dataset.NewStringColumn("id", []string{"X"}, nil),
		dataset.NewStringColumn("hour", []string{"5"}, nil),
		dataset.NewFloatColumn("cooling", []float64{10}, nil),
	)
	require.NoError(t, err)
	content, err := dataset.WriteParquet(load, parquet.CompressionCodec_SNAPPY)
	require.NoError(t, err)
	writeFile(t, filepath.Join(root, "datasets", "ds1", "load_data.parquet"), content)

	lookup, err := dataset.NewFrame(
		dataset.NewStringColumn("id", []string{"X"}, nil),
		dataset.NewStringColumn("geography", []string{"G1"}, nil),
		dataset.NewFloatColumn("fraction", []float64{0.5}, nil),
	)
	require.NoError(t, err)
	content, err = dataset.WriteParquet(lookup, parquet.CompressionCodec_SNAPPY)
	require.NoError(t, err)
	writeFile(t, filepath.Join(root, "datasets", "ds1", "load_data_lookup.parquet"), content)

	loadFrame, err := datasets.LoadTable(context.Background(), "ds1")
	require.NoError(t, err)
	assert.Equal(t, 1, loadFrame.NumRows())
	assert.True(t, loadFrame.HasColumn("cooling"))

	lookupFrame, err := datasets.LookupTable(context.Background(), "ds1")
	require.NoError(t, err)
	fraction, ok := lookupFrame.Column("fraction")
	require.True(t, ok)
	v, valid := fraction.FloatAt(0)
	assert.True(t, valid)
	assert.Equal(t, 0.5, v)
}

func TestDataset_GeographyTimeZones(t *testing.T) {
	root, datasets, _ := setupRegistry(t)

	writeFile(t, filepath.Join(root, "datasets", "ds1", "geography_timezone.csv"), []byte(
		"from_id,to_id,from_fraction\nG1,EasternPrevailing,1\n"))

	frame, err := datasets.GeographyTimeZones(context.Background(), "ds1")
	require.NoError(t, err)
	assert.Equal(t, 1, frame.NumRows())

	toID, ok := frame.Column(registry.ColumnToID)
	require.True(t, ok)
	label, valid := toID.StringAt(0)
	assert.True(t, valid)
	assert.Equal(t, "EasternPrevailing", label)
}

func TestDataset_MissingArtifactIsConfigError(t *testing.T) {
	_, datasets, _ := setupRegistry(t)

	_, err := datasets.LoadTable(context.Background(), "absent")
	require.Error(t, err)
	assert.True(t, exception.IsConfigError(err))

	_, err = datasets.LoadTable(context.Background(), "")
	require.Error(t, err)
	assert.True(t, exception.IsConfigError(err))
}
