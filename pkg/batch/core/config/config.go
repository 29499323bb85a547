package config

// Package config provides structures and utilities for managing application configuration.

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
// This is used when loading configuration from an embedded source (e.g., a compiled binary).
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
// It is used to control the verbosity of log output.
type LogLevel string

const (
	LogLevelTrace  LogLevel = "TRACE"
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelFatal  LogLevel = "FATAL"
	LogLevelSilent LogLevel = "SILENT"
)

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// MaskedParameterKeys is a list of keys in JobParameters whose values should be masked in logs.
	MaskedParameterKeys []string `yaml:"masked_parameter_keys"`
}

// BatchConfig holds configuration specific to the batch processing engine.
type BatchConfig struct {
	// PollingIntervalSeconds is the interval for polling job status.
	PollingIntervalSeconds int `yaml:"polling_interval_seconds"`
	// JobName is the default job name if not specified elsewhere.
	JobName string `yaml:"job_name"`
	// MetricsAsyncBufferSize is the buffer size for asynchronous metric recording.
	MetricsAsyncBufferSize int `yaml:"metrics_async_buffer_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG", "TRACE").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC", "Asia/Tokyo").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// InfrastructureConfig holds logical dependency settings for infrastructure components.
type InfrastructureConfig struct {
	// JobRepositoryDBRef is the name of the DBConnection used by JobRepository (e.g., "metadata").
	JobRepositoryDBRef string `yaml:"job_repository_db_ref"`
}

// TelemetryConfig holds settings for traces and metrics export.
type TelemetryConfig struct {
	// Enabled toggles OpenTelemetry trace export.
	Enabled bool `yaml:"enabled"`
	// ServiceName is the service.name resource attribute on exported telemetry.
	ServiceName string `yaml:"service_name"`
	// Protocol selects the OTLP transport, "grpc" or "http".
	Protocol string `yaml:"protocol"`
	// Endpoint is the OTLP collector endpoint (host:port).
	Endpoint string `yaml:"endpoint"`
	// Insecure disables TLS on the OTLP connection.
	Insecure bool `yaml:"insecure"`
	// PrometheusListenAddress is the address serving the /metrics endpoint.
	// Empty disables the endpoint.
	PrometheusListenAddress string `yaml:"prometheus_listen_address"`
}

// PipelineConfig holds default settings for the time alignment pipeline.
// Each value may be overridden per launch through job parameters of the
// same name.
type PipelineConfig struct {
	// DatasetID identifies the dataset within the registry.
	DatasetID string `yaml:"dataset_id"`
	// RegistryPath is the path to the dimension registry root, relative to the
	// storage connection.
	RegistryPath string `yaml:"registry_path"`
	// StorageRef is the name of the storage connection used for dataset
	// input and output.
	StorageRef string `yaml:"storage_ref"`
	// OutputPath is the directory the final dataset is written under.
	OutputPath string `yaml:"output_path"`
	// WeatherYear is the calendar year the pipeline aligns timestamps to.
	WeatherYear int `yaml:"weather_year"`
	// SystemTimeZone is the canonical timezone label for output timestamps.
	SystemTimeZone string `yaml:"system_time_zone"`
	// SourceTimeZones is the ordered list of source timezone labels the
	// calendar is expanded for.
	SourceTimeZones []string `yaml:"source_time_zones"`
	// EndUseMappingID names the registry mapping from dataset end uses to
	// target end uses.
	EndUseMappingID string `yaml:"end_use_mapping_id"`
	// GeographyMappingID names the registry mapping from dataset geographies
	// to target geographies.
	GeographyMappingID string `yaml:"geography_mapping_id"`
	// LeapDayAdjustment optionally drops one day per zone when aligning a
	// leap year: "drop_dec31", "drop_feb29" or "drop_jan1". Empty keeps all days.
	LeapDayAdjustment string `yaml:"leap_day_adjustment"`
}

// HourglassConfig holds all configuration under the "hourglass" top-level key.
type HourglassConfig struct {
	// Batch contains batch processing specific configurations.
	Batch BatchConfig `yaml:"batch"`
	// System contains system-wide configurations.
	System SystemConfig `yaml:"system"`
	// Infrastructure contains infrastructure-related configurations.
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	// Security contains security-related configurations.
	Security SecurityConfig `yaml:"security"`
	// Telemetry contains trace and metrics export configurations.
	Telemetry TelemetryConfig `yaml:"telemetry"`
	// Pipeline contains default settings for the time alignment pipeline.
	Pipeline PipelineConfig `yaml:"pipeline"`
	// AdapterConfigs holds configurations for resource adapters, keyed by
	// connection name (database and storage connections).
	AdapterConfigs map[string]interface{} `yaml:"adapters"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	// Hourglass contains the top-level configuration for the application.
	Hourglass HourglassConfig `yaml:"hourglass"`
	// EmbeddedConfig holds configuration loaded from an embedded source, not from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// GlobalConfig is a pointer to the configuration instance shared across the application.
// It is expected to be set via fx.Supply or fx.Provide.
var GlobalConfig *Config

// GetMaskedParameterKeys retrieves the list of keys to be masked from the global configuration.
//
// Returns:
//
//	A slice of strings representing the keys whose values should be masked.
func GetMaskedParameterKeys() []string {
	if GlobalConfig == nil {
		return []string{}
	}
	return GlobalConfig.Hourglass.Security.MaskedParameterKeys
}

// NewConfig returns a new instance of Config with default values.
//
// Returns:
//
//	A pointer to a new Config instance initialized with default settings.
func NewConfig() *Config {
	cfg := &Config{
		Hourglass: HourglassConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Batch: BatchConfig{
				JobName:                "",
				PollingIntervalSeconds: 1,
				MetricsAsyncBufferSize: 100,
			},
			Infrastructure: InfrastructureConfig{
				JobRepositoryDBRef: "metadata",
			},
			Security: SecurityConfig{
				MaskedParameterKeys: []string{"password", "api_key", "secret"},
			},
			Telemetry: TelemetryConfig{
				Enabled:     false,
				ServiceName: "hourglass",
				Protocol:    "grpc",
			},
			Pipeline: PipelineConfig{
				StorageRef:     "datasets",
				SystemTimeZone: "EasternStandard",
			},
		},
	}

	// Initialize AdapterConfigs as an empty map, to be populated by YAML or by mergeConfig.
	cfg.Hourglass.AdapterConfigs = map[string]interface{}{}
	return cfg
}
