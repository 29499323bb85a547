// Package pipeline holds the run-scoped plumbing of the alignment job: the
// validated pipeline configuration and the in-memory dataset catalog the
// stages pass frames through.
package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/hourglass/internal/chrono"
	storage "github.com/tigerroll/hourglass/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/hourglass/pkg/batch/adapter/storage/config"
	config "github.com/tigerroll/hourglass/pkg/batch/core/config"
	model "github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
	exception "github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// Job parameter keys recognized as pipeline configuration overrides.
const (
	ParamDatasetID          = "dataset_id"
	ParamRegistryPath       = "registry_path"
	ParamStorageRef         = "storage_ref"
	ParamOutputPath         = "output_path"
	ParamWeatherYear        = "weather_year"
	ParamSystemTimeZone     = "system_time_zone"
	ParamSourceTimeZones    = "source_time_zones"
	ParamEndUseMappingID    = "end_use_mapping_id"
	ParamGeographyMappingID = "geography_mapping_id"
	ParamLeapDayAdjustment  = "leap_day_adjustment"
)

// Config is the fully validated pipeline configuration for one run. Zone
// labels are canonicalized; nothing in here is defaulted silently.
type Config struct {
	DatasetID          string
	RegistryPath       string
	StorageRef         string
	OutputPath         string
	WeatherYear        int
	SystemTimeZone     string
	SourceTimeZones    []string
	EndUseMappingID    string
	GeographyMappingID string
	LeapDayAdjustment  chrono.LeapDayAdjustment
}

// ResolveConfig builds the pipeline Config from application configuration
// overlaid with job parameter overrides, then validates it. Every violation
// is collected before failing, so the operator sees the whole list at once.
func ResolveConfig(appCfg *config.Config, params model.JobParameters) (*Config, error) {
	pc := appCfg.Hourglass.Pipeline

	c := &Config{
		DatasetID:          overrideString(params, ParamDatasetID, pc.DatasetID),
		RegistryPath:       overrideString(params, ParamRegistryPath, pc.RegistryPath),
		StorageRef:         overrideString(params, ParamStorageRef, pc.StorageRef),
		OutputPath:         overrideString(params, ParamOutputPath, pc.OutputPath),
		SystemTimeZone:     overrideString(params, ParamSystemTimeZone, pc.SystemTimeZone),
		EndUseMappingID:    overrideString(params, ParamEndUseMappingID, pc.EndUseMappingID),
		GeographyMappingID: overrideString(params, ParamGeographyMappingID, pc.GeographyMappingID),
	}

	var err error
	c.WeatherYear, err = overrideInt(params, ParamWeatherYear, pc.WeatherYear)
	var verr *multierror.Error
	if err != nil {
		verr = multierror.Append(verr, err)
	}

	c.SourceTimeZones = pc.SourceTimeZones
	if raw, ok := stringParam(params, ParamSourceTimeZones); ok {
		c.SourceTimeZones = splitZoneList(raw)
	}

	leapRaw := overrideString(params, ParamLeapDayAdjustment, pc.LeapDayAdjustment)
	c.LeapDayAdjustment, err = chrono.ParseLeapDayAdjustment(leapRaw)
	if err != nil {
		verr = multierror.Append(verr, err)
	}

	verr = c.validate(verr)
	if verr.ErrorOrNil() != nil {
		return nil, exception.NewConfigError("pipeline", "invalid pipeline configuration", verr)
	}
	logger.Debugf("Pipeline configuration resolved: dataset=%s year=%d zones=%v output=%s",
		c.DatasetID, c.WeatherYear, c.SourceTimeZones, c.OutputPath)
	return c, nil
}

// validate appends every violation; zone labels are canonicalized in place
// when they resolve.
func (c *Config) validate(verr *multierror.Error) *multierror.Error {
	if c.DatasetID == "" {
		verr = multierror.Append(verr, fmt.Errorf("dataset_id is required"))
	}
	if c.RegistryPath == "" {
		verr = multierror.Append(verr, fmt.Errorf("registry_path is required"))
	}
	if c.StorageRef == "" {
		verr = multierror.Append(verr, fmt.Errorf("storage_ref is required"))
	}
	if c.OutputPath == "" {
		verr = multierror.Append(verr, fmt.Errorf("output_path is required"))
	}
	if c.EndUseMappingID == "" {
		verr = multierror.Append(verr, fmt.Errorf("end_use_mapping_id is required"))
	}
	if c.GeographyMappingID == "" {
		verr = multierror.Append(verr, fmt.Errorf("geography_mapping_id is required"))
	}
	if c.WeatherYear <= 0 {
		verr = multierror.Append(verr, fmt.Errorf("weather_year must be a positive year, got %d", c.WeatherYear))
	}

	if c.SystemTimeZone == "" {
		verr = multierror.Append(verr, fmt.Errorf("system_time_zone is required"))
	} else if _, err := chrono.ResolveZone(c.SystemTimeZone); err != nil {
		verr = multierror.Append(verr, err)
	} else if canonical, ok := chrono.CanonicalLabel(c.SystemTimeZone); ok {
		c.SystemTimeZone = canonical
	}

	canonicalZones := make([]string, 0, len(c.SourceTimeZones))
	for _, label := range c.SourceTimeZones {
		if _, err := chrono.ResolveZone(label); err != nil {
			verr = multierror.Append(verr, err)
			continue
		}
		canonical, _ := chrono.CanonicalLabel(label)
		canonicalZones = append(canonicalZones, canonical)
	}
	if len(verr.WrappedErrors()) == 0 {
		c.SourceTimeZones = canonicalZones
	}
	return verr
}

// PreflightOutput fails when anything already exists at the output path.
// Pre-existing output (including partial results of an aborted run) is an
// operator remove-then-retry situation, never something to write over.
func (c *Config) PreflightOutput(ctx context.Context, resolver storage.StorageConnectionResolver, appCfg *config.Config) error {
	conn, err := resolver.ResolveStorageConnection(ctx, c.StorageRef)
	if err != nil {
		return exception.NewConfigError("pipeline", "failed to resolve output storage connection "+c.StorageRef, err)
	}
	storageCfg, err := storageConfig.NamedStorageConfig(appCfg, c.StorageRef)
	if err != nil {
		return err
	}
	exists, err := conn.Exists(ctx, storageCfg.BucketName, c.OutputPath)
	if err != nil {
		return exception.NewBatchError("pipeline", "output path preflight failed for "+c.OutputPath, err)
	}
	if exists {
		return exception.NewOutputExistsError("pipeline", c.OutputPath)
	}
	return nil
}

// OutputBucket returns the bucket the output path lives in.
func (c *Config) OutputBucket(appCfg *config.Config) (string, error) {
	storageCfg, err := storageConfig.NamedStorageConfig(appCfg, c.StorageRef)
	if err != nil {
		return "", err
	}
	return storageCfg.BucketName, nil
}

func stringParam(params model.JobParameters, key string) (string, bool) {
	v := params.Get(key)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func overrideString(params model.JobParameters, key, fallback string) string {
	if s, ok := stringParam(params, key); ok {
		return s
	}
	return fallback
}

// overrideInt accepts int, float64 (JSON round-trips land here) and numeric
// strings.
func overrideInt(params model.JobParameters, key string, fallback int) (int, error) {
	v := params.Get(key)
	if v == nil {
		return fallback, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		if n == "" {
			return fallback, nil
		}
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return fallback, fmt.Errorf("job parameter %q must be an integer, got %q", key, n)
		}
		return parsed, nil
	default:
		return fallback, fmt.Errorf("job parameter %q has unsupported type %T", key, v)
	}
}

func splitZoneList(raw string) []string {
	parts := strings.Split(raw, ",")
	zones := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			zones = append(zones, p)
		}
	}
	return zones
}
