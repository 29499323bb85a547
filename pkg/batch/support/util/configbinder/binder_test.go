package configbinder_test

import (
	"testing"

	"github.com/tigerroll/hourglass/pkg/batch/support/util/configbinder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type alignmentProps struct {
	WeatherYear     int    `yaml:"weather_year"`
	SystemTimeZone  string `yaml:"system_time_zone"`
	DropLeapDay     bool   `yaml:"drop_leap_day"`
	UnboundProperty string `yaml:"unbound_property"`
}

func TestBindProperties(t *testing.T) {
	props := map[string]string{
		"weather_year":     "2012",
		"system_time_zone": "EasternStandard",
		"drop_leap_day":    "true",
	}

	var target alignmentProps
	err := configbinder.BindProperties(props, &target)
	require.NoError(t, err)

	// Weak typing converts the string values onto typed fields.
	assert.Equal(t, 2012, target.WeatherYear)
	assert.Equal(t, "EasternStandard", target.SystemTimeZone)
	assert.True(t, target.DropLeapDay)
	assert.Empty(t, target.UnboundProperty)
}

func TestBindPropertiesEmptyMap(t *testing.T) {
	target := alignmentProps{WeatherYear: 2018}
	err := configbinder.BindProperties(nil, &target)
	require.NoError(t, err)

	// Nothing to bind leaves the target untouched.
	assert.Equal(t, 2018, target.WeatherYear)
}

func TestBindPropertiesTypeMismatch(t *testing.T) {
	props := map[string]string{"weather_year": "not-a-year"}

	var target alignmentProps
	err := configbinder.BindProperties(props, &target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alignmentProps")
}
