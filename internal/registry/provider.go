// Package registry reads dataset artifacts and dimension mappings from the
// configured storage backend. It is a thin layout reader: a dataset id maps
// to a directory of Parquet/CSV artifacts under the registry root, a mapping
// id to a single CSV file. A missing id or artifact is always a
// configuration error, never an empty result.
//
// Layout under hourglass.pipeline.registry_path:
//
//	datasets/<dataset_id>/load_data.parquet
//	datasets/<dataset_id>/load_data_lookup.parquet
//	datasets/<dataset_id>/geography_timezone.csv
//	mappings/<mapping_id>.csv
package registry

import (
	"bytes"
	"context"
	"io"
	"path"

	"github.com/tigerroll/hourglass/internal/dataset"
	storage "github.com/tigerroll/hourglass/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/hourglass/pkg/batch/adapter/storage/config"
	config "github.com/tigerroll/hourglass/pkg/batch/core/config"
	exception "github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// Mapping CSV columns. from_fraction is optional; when the column exists an
// empty cell is null and is defaulted by the consumer, not here.
const (
	ColumnFromID       = "from_id"
	ColumnToID         = "to_id"
	ColumnFromFraction = "from_fraction"
)

// DatasetProvider returns the read-only input tables of one dataset.
type DatasetProvider interface {
	// LoadTable returns the load table: one row per categorical time key with
	// dynamic per-end-use numeric columns.
	LoadTable(ctx context.Context, datasetID string) (*dataset.Frame, error)
	// LookupTable returns the lookup table keyed by id with the dimension
	// columns and the allocation fraction.
	LookupTable(ctx context.Context, datasetID string) (*dataset.Frame, error)
	// GeographyTimeZones returns the dataset's geography-to-timezone records,
	// mapping-shaped (from_id, to_id, optional from_fraction).
	GeographyTimeZones(ctx context.Context, datasetID string) (*dataset.Frame, error)
}

// MappingProvider returns dimension mappings by id.
type MappingProvider interface {
	// Mapping returns (from_id, to_id[, from_fraction]) rows for the given
	// mapping id.
	Mapping(ctx context.Context, mappingID string) (*dataset.Frame, error)
}

// storageRegistry reads the registry layout through a storage connection, so
// the registry can live on the local filesystem or on GCS unchanged.
type storageRegistry struct {
	resolver storage.StorageConnectionResolver
	cfg      *config.Config
}

// NewDatasetProvider creates a DatasetProvider over the configured storage
// connection.
func NewDatasetProvider(resolver storage.StorageConnectionResolver, cfg *config.Config) DatasetProvider {
	return &storageRegistry{resolver: resolver, cfg: cfg}
}

// NewMappingProvider creates a MappingProvider over the configured storage
// connection.
func NewMappingProvider(resolver storage.StorageConnectionResolver, cfg *config.Config) MappingProvider {
	return &storageRegistry{resolver: resolver, cfg: cfg}
}

func (r *storageRegistry) connection(ctx context.Context) (storage.StorageConnection, string, error) {
	name := r.cfg.Hourglass.Pipeline.StorageRef
	conn, err := r.resolver.ResolveStorageConnection(ctx, name)
	if err != nil {
		return nil, "", exception.NewConfigError("registry", "failed to resolve registry storage connection "+name, err)
	}
	storageCfg, err := storageConfig.NamedStorageConfig(r.cfg, name)
	if err != nil {
		return nil, "", err
	}
	return conn, storageCfg.BucketName, nil
}

// readArtifact downloads one registry object fully into memory. Registry
// artifacts are reference tables, small next to the expanded calendar data.
func (r *storageRegistry) readArtifact(ctx context.Context, objectName string) ([]byte, error) {
	conn, bucket, err := r.connection(ctx)
	if err != nil {
		return nil, err
	}
	reader, err := conn.Download(ctx, bucket, objectName)
	if err != nil {
		return nil, exception.NewConfigError("registry", "registry artifact "+objectName+" is missing or unreadable", err)
	}
	defer reader.Close()
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, exception.NewBatchError("registry", "failed to read registry artifact "+objectName, err)
	}
	logger.Debugf("Registry: read artifact %s (%d bytes).", objectName, len(content))
	return content, nil
}

func (r *storageRegistry) datasetArtifact(datasetID, file string) string {
	return path.Join(r.cfg.Hourglass.Pipeline.RegistryPath, "datasets", datasetID, file)
}

func (r *storageRegistry) readParquetArtifact(ctx context.Context, objectName string) (*dataset.Frame, error) {
	content, err := r.readArtifact(ctx, objectName)
	if err != nil {
		return nil, err
	}
	frame, err := dataset.ReadParquet(content)
	if err != nil {
		return nil, exception.NewConfigError("registry", "registry artifact "+objectName+" is not valid parquet", err)
	}
	return frame, nil
}

func (r *storageRegistry) readMappingCSV(ctx context.Context, objectName string) (*dataset.Frame, error) {
	content, err := r.readArtifact(ctx, objectName)
	if err != nil {
		return nil, err
	}
	frame, err := dataset.ReadCSV(bytes.NewReader(content), map[string]bool{ColumnFromFraction: true})
	if err != nil {
		return nil, exception.NewConfigError("registry", "registry artifact "+objectName+" is not a valid mapping csv", err)
	}
	if !frame.HasColumn(ColumnFromID) || !frame.HasColumn(ColumnToID) {
		return nil, exception.NewConfigErrorf("registry", "mapping artifact %s must carry %q and %q columns, got %v",
			objectName, ColumnFromID, ColumnToID, frame.ColumnNames())
	}
	return frame, nil
}

func (r *storageRegistry) LoadTable(ctx context.Context, datasetID string) (*dataset.Frame, error) {
	if datasetID == "" {
		return nil, exception.NewConfigErrorf("registry", "dataset id is empty")
	}
	return r.readParquetArtifact(ctx, r.datasetArtifact(datasetID, "load_data.parquet"))
}

func (r *storageRegistry) LookupTable(ctx context.Context, datasetID string) (*dataset.Frame, error) {
	if datasetID == "" {
		return nil, exception.NewConfigErrorf("registry", "dataset id is empty")
	}
	return r.readParquetArtifact(ctx, r.datasetArtifact(datasetID, "load_data_lookup.parquet"))
}

func (r *storageRegistry) GeographyTimeZones(ctx context.Context, datasetID string) (*dataset.Frame, error) {
	if datasetID == "" {
		return nil, exception.NewConfigErrorf("registry", "dataset id is empty")
	}
	return r.readMappingCSV(ctx, r.datasetArtifact(datasetID, "geography_timezone.csv"))
}

func (r *storageRegistry) Mapping(ctx context.Context, mappingID string) (*dataset.Frame, error) {
	if mappingID == "" {
		return nil, exception.NewConfigErrorf("registry", "mapping id is empty")
	}
	objectName := path.Join(r.cfg.Hourglass.Pipeline.RegistryPath, "mappings", mappingID+".csv")
	return r.readMappingCSV(ctx, objectName)
}

var (
	_ DatasetProvider = (*storageRegistry)(nil)
	_ MappingProvider = (*storageRegistry)(nil)
)
