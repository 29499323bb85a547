package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
	"github.com/tigerroll/hourglass/pkg/batch/support/util/logger"

	"go.uber.org/fx"
)

// Package config provides utilities for loading and managing application configuration
// from various sources, including YAML files and environment variables.

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig // EmbeddedConfig contains the raw bytes of the configuration file.
	EnvFilePath    string         `name:"envFilePath" optional:"true"` // EnvFilePath is the path to the .env file, if any.
}

// loadConfig loads configuration from a file and environment variables.
// This function is intended to be called only once during application startup.
//
// Parameters:
//   envFilePath: The path to the .env file.
//   embeddedConfig: The embedded configuration bytes.
// Returns:
//   A pointer to the loaded Config and an error if loading fails.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	// 1. Load defaults from NewConfig()

	// 2. Expand ${VAR} placeholders, then load the embedded YAML into a
	// temporary Config struct so values are parsed into their proper types.
	expanded, err := NewOsEnvironmentExpander().Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewConfigError(moduleName, "failed to expand environment placeholders in embedded config", err)
	}

	var yamlConfig Config
	if err := yaml.Unmarshal(expanded, &yamlConfig); err != nil {
		return nil, exception.NewConfigError(moduleName, "failed to unmarshal embedded config", err)
	}

	// 3. Merge YAML configuration into the default configuration.
	mergeConfig(cfg, &yamlConfig)

	// 4. Override with environment variables
	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewConfigError(moduleName, "failed to load config from environment variables", err)
	}
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads and provides *Config.
// It initializes the application configuration by loading defaults,
// merging from embedded YAML, and overriding with environment variables.
// It also sets the global logger level.
//
// Parameters:
//   params: ConfigParams containing dependencies like embedded config and env file path.
// Returns:
//   A pointer to the initialized Config and an error if configuration loading fails.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, exception.NewConfigError(moduleName, "failed to initialize application configuration", err)
	}

	// Set global configuration
	GlobalConfig = cfg

	// Set log level
	logger.SetLogLevel(cfg.Hourglass.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Hourglass.System.Logging.Level)

	return cfg, nil
}

// LoadConfig loads configuration from configuration files and environment variables.
// This function is expected to be called only once during application startup.
//
// Parameters:
//   envFilePath: The path to the .env file.
//   embeddedConfig: The embedded configuration bytes.
// Returns:
//   A pointer to the loaded Config and an error if loading fails.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig)
}

// mergeConfig performs a deep merge from sourceConfig into destConfig.
// Values in sourceConfig will overwrite corresponding values in destConfig
// if they are not zero/empty values for their type.
//
// Parameters:
//   destConfig: The destination Config to merge into.
//   sourceConfig: The source Config to merge from.
func mergeConfig(destConfig, sourceConfig *Config) {
	mergeHourglassConfig(&destConfig.Hourglass, &sourceConfig.Hourglass)
}

// mergeHourglassConfig merges source into dest.
//
// Parameters:
//   dest: The destination HourglassConfig to merge into.
//   source: The source HourglassConfig to merge from.
func mergeHourglassConfig(dest, source *HourglassConfig) {
	// Merge BatchConfig
	if source.Batch.PollingIntervalSeconds != 0 {
		dest.Batch.PollingIntervalSeconds = source.Batch.PollingIntervalSeconds
	}
	if source.Batch.JobName != "" {
		dest.Batch.JobName = source.Batch.JobName
	}
	if source.Batch.MetricsAsyncBufferSize != 0 {
		dest.Batch.MetricsAsyncBufferSize = source.Batch.MetricsAsyncBufferSize
	}

	// Merge SystemConfig
	mergeSystemConfig(&dest.System, &source.System)

	// Merge InfrastructureConfig
	if source.Infrastructure.JobRepositoryDBRef != "" {
		dest.Infrastructure.JobRepositoryDBRef = source.Infrastructure.JobRepositoryDBRef
	}

	// Merge SecurityConfig
	if source.Security.MaskedParameterKeys != nil {
		dest.Security.MaskedParameterKeys = source.Security.MaskedParameterKeys
	}

	// Merge TelemetryConfig
	mergeTelemetryConfig(&dest.Telemetry, &source.Telemetry)

	// Merge PipelineConfig
	mergePipelineConfig(&dest.Pipeline, &source.Pipeline)

	// Merge AdapterConfigs (this is the critical part for connection configs)
	if source.AdapterConfigs != nil {
		if dest.AdapterConfigs == nil {
			dest.AdapterConfigs = make(map[string]interface{})
		}
		for key, value := range source.AdapterConfigs {
			dest.AdapterConfigs[key] = value
		}
	}
}

// mergeSystemConfig merges source into dest.
//
// Parameters:
//   dest: The destination SystemConfig to merge into.
//   source: The source SystemConfig to merge from.
func mergeSystemConfig(dest, source *SystemConfig) {
	if source.Timezone != "" {
		dest.Timezone = source.Timezone
	}
	if source.Logging.Level != "" {
		dest.Logging.Level = source.Logging.Level
	}
}

// mergeTelemetryConfig merges source into dest.
// Boolean fields only merge when set to true; the defaults are off.
//
// Parameters:
//   dest: The destination TelemetryConfig to merge into.
//   source: The source TelemetryConfig to merge from.
func mergeTelemetryConfig(dest, source *TelemetryConfig) {
	if source.Enabled {
		dest.Enabled = true
	}
	if source.ServiceName != "" {
		dest.ServiceName = source.ServiceName
	}
	if source.Protocol != "" {
		dest.Protocol = source.Protocol
	}
	if source.Endpoint != "" {
		dest.Endpoint = source.Endpoint
	}
	if source.Insecure {
		dest.Insecure = true
	}
	if source.PrometheusListenAddress != "" {
		dest.PrometheusListenAddress = source.PrometheusListenAddress
	}
}

// mergePipelineConfig merges source into dest.
//
// Parameters:
//   dest: The destination PipelineConfig to merge into.
//   source: The source PipelineConfig to merge from.
func mergePipelineConfig(dest, source *PipelineConfig) {
	if source.DatasetID != "" {
		dest.DatasetID = source.DatasetID
	}
	if source.RegistryPath != "" {
		dest.RegistryPath = source.RegistryPath
	}
	if source.StorageRef != "" {
		dest.StorageRef = source.StorageRef
	}
	if source.OutputPath != "" {
		dest.OutputPath = source.OutputPath
	}
	if source.WeatherYear != 0 {
		dest.WeatherYear = source.WeatherYear
	}
	if source.SystemTimeZone != "" {
		dest.SystemTimeZone = source.SystemTimeZone
	}
	if len(source.SourceTimeZones) > 0 {
		dest.SourceTimeZones = source.SourceTimeZones
	}
	if source.EndUseMappingID != "" {
		dest.EndUseMappingID = source.EndUseMappingID
	}
	if source.GeographyMappingID != "" {
		dest.GeographyMappingID = source.GeographyMappingID
	}
	if source.LeapDayAdjustment != "" {
		dest.LeapDayAdjustment = source.LeapDayAdjustment
	}
}

// loadStructFromEnv recursively loads configuration values into a struct from environment variables.
// It uses the "yaml" tag to determine the environment variable name.
//
// Parameters:
//   val: The reflect.Value of the struct to populate.
//   prefix: The prefix for environment variable names (e.g., "HOURGLASS_BATCH_").
// Returns: An error if any field cannot be set.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists && field.Kind() != reflect.Map { // If it's a map type, continue to process nested environment variables.
			continue
		}

		if field.Kind() == reflect.Map && field.Type().Key().Kind() == reflect.String && field.Type().Elem().Kind() == reflect.Struct {
			// For map[string]struct{}, process nested environment variables
			// Example: HOURGLASS_ADAPTERS_METADATA_HOST
			if err := loadMapOfStructsFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// loadMapOfStructsFromEnv loads fields of type map[string]struct{} from environment variables.
// It infers map keys and struct field names from environment variable names.
//
// Example: For a field `Adapters map[string]DatabaseConfig` in the config struct,
// an environment variable `ADAPTERS_METADATA_HOST=localhost` would set the `Host` field
// of the `DatabaseConfig` instance associated with the key "metadata".
//
// Parameters:
//   mapField: The reflect.Value of the map field.
//   prefix: The environment variable prefix for this map (e.g., "HOURGLASS_ADAPTERS_").
func loadMapOfStructsFromEnv(mapField reflect.Value, prefix string) error {
	if mapField.IsNil() {
		mapField.Set(reflect.MakeMap(mapField.Type()))
	}

	elemType := mapField.Type().Elem()

	// Infer map keys from environment variables and load each element
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}

		keyPartWithValue := strings.TrimPrefix(env, prefix)
		parts := strings.SplitN(keyPartWithValue, "=", 2)
		if len(parts) != 2 {
			continue
		}
		keyAndField := parts[0] // e.g., "METADATA_HOST"
		envValue := parts[1]

		keyAndFieldParts := strings.Split(keyAndField, "_")
		if len(keyAndFieldParts) < 2 {
			continue
		}
		mapKey := strings.ToLower(keyAndFieldParts[0])             // e.g., "metadata"
		structFieldName := strings.Join(keyAndFieldParts[1:], "_") // e.g., "HOST"

		// Get or create an instance of the struct
		structVal := mapField.MapIndex(reflect.ValueOf(mapKey))
		if !structVal.IsValid() {
			structVal = reflect.New(elemType).Elem()
		}

		// Set the value of the struct field
		if err := setStructFieldFromEnv(structVal, structFieldName, envValue); err != nil {
			return err
		}
		mapField.SetMapIndex(reflect.ValueOf(mapKey), structVal)
	}
	return nil
}

// setStructFieldFromEnv sets the value of a specific struct field from an environment variable.
// It iterates through the struct's fields, matching the `fieldName` (case-insensitively)
// against the field's `yaml` tag.
//
// Parameters:
//   structVal: The reflect.Value of the struct instance.
//   fieldName: The name of the field to set (derived from the environment variable).
//   value: The string value to set.
// Returns: An error if the field cannot be set due to type conversion issues.
func setStructFieldFromEnv(structVal reflect.Value, fieldName string, value string) error {
	typ := structVal.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := structVal.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}

		if strings.EqualFold(yamlTag, fieldName) {
			return setField(field, value)
		}
	}
	return nil // Return nil if field not found (not an error)
}

// setField sets the value of a reflect.Value field based on its kind.
// It handles string, int, float, and bool types.
//
// Parameters:
//   field: The reflect.Value of the field to set.
//   value: The string value to convert and set.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	}
	return nil
}
