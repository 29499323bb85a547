// Package config holds the per-connection configuration for database
// adapters and the shared decoding helper the providers use.
package config

import (
	"github.com/mitchellh/mapstructure"

	coreConfig "github.com/tigerroll/hourglass/pkg/batch/core/config"
	exception "github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
)

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Type     string     `yaml:"type"`             // Database type (e.g., "postgres", "mysql", "sqlite").
	Host     string     `yaml:"host"`             // Database host address.
	Port     int        `yaml:"port"`             // Database port number.
	Database string     `yaml:"database"`         // Database name, or the file path for SQLite.
	User     string     `yaml:"user"`             // Database user.
	Password string     `yaml:"password"`         // Database password.
	Schema   string     `yaml:"schema,omitempty"` // Schema name for PostgreSQL/Redshift.
	Sslmode  string     `yaml:"sslmode"`          // SSL mode for the connection.
	Pool     PoolConfig `yaml:"pool"`             // Connection pool settings.
}

// NamedDatabaseConfig extracts and decodes the configuration of a named
// database connection from hourglass.adapters.database. Decoding recognizes
// yaml tags so the same keys work in YAML and in properties maps.
func NamedDatabaseConfig(cfg *coreConfig.Config, name string) (DatabaseConfig, error) {
	var dbCfg DatabaseConfig

	rawDatabase, ok := cfg.Hourglass.AdapterConfigs["database"]
	if !ok {
		return dbCfg, exception.NewConfigErrorf("database", "no 'database' section under adapters configuration")
	}
	dbConfigMap, ok := rawDatabase.(map[string]interface{})
	if !ok {
		return dbCfg, exception.NewConfigErrorf("database", "invalid 'database' configuration format: expected a map, got %T", rawDatabase)
	}
	namedConfig, ok := dbConfigMap[name]
	if !ok {
		return dbCfg, exception.NewConfigErrorf("database", "database connection %q not found in configuration", name)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &dbCfg,
		TagName: "yaml",
	})
	if err != nil {
		return dbCfg, exception.NewBatchErrorf("database", "failed to create decoder for database config %q", name, err)
	}
	if err := decoder.Decode(namedConfig); err != nil {
		return dbCfg, exception.NewConfigErrorf("database", "failed to decode database config for %q", name, err)
	}
	return dbCfg, nil
}
