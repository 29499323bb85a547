// Package config holds the per-connection configuration for storage
// adapters and the shared decoding helper both backends use.
package config

import (
	"github.com/mitchellh/mapstructure"

	coreConfig "github.com/tigerroll/hourglass/pkg/batch/core/config"
	exception "github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
)

// StorageConfig holds configuration for a single storage connection.
type StorageConfig struct {
	Type            string `yaml:"type"`             // Type of storage ("local", "gcs").
	BucketName      string `yaml:"bucket_name"`      // Default bucket name for operations.
	CredentialsFile string `yaml:"credentials_file"` // Path to credentials file (service account key for GCS).
	BaseDir         string `yaml:"base_dir"`         // Base directory for local file system operations.
}

// DatasourcesConfig holds a map of named storage configurations.
type DatasourcesConfig map[string]StorageConfig

// NamedStorageConfig extracts and decodes the configuration of a named
// storage connection from hourglass.adapters.storage. Decoding recognizes
// yaml tags so the same keys work in YAML and in properties maps.
func NamedStorageConfig(cfg *coreConfig.Config, name string) (StorageConfig, error) {
	var storageCfg StorageConfig

	rawStorage, ok := cfg.Hourglass.AdapterConfigs["storage"]
	if !ok {
		return storageCfg, exception.NewConfigErrorf("storage", "no 'storage' section under adapters configuration")
	}
	storageConfigMap, ok := rawStorage.(map[string]interface{})
	if !ok {
		return storageCfg, exception.NewConfigErrorf("storage", "invalid 'storage' configuration format: expected a map, got %T", rawStorage)
	}
	namedConfig, ok := storageConfigMap[name]
	if !ok {
		return storageCfg, exception.NewConfigErrorf("storage", "storage connection %q not found in configuration", name)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &storageCfg,
		TagName: "yaml",
	})
	if err != nil {
		return storageCfg, exception.NewBatchErrorf("storage", "failed to create decoder for storage config %q", name, err)
	}
	if err := decoder.Decode(namedConfig); err != nil {
		return storageCfg, exception.NewConfigErrorf("storage", "failed to decode storage config for %q", name, err)
	}
	return storageCfg, nil
}
