package chrono

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	exception "github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
)

func TestHoursInYear(t *testing.T) {
	assert.Equal(t, 8760, HoursInYear(2013))
	assert.Equal(t, 8784, HoursInYear(2012))
	assert.Equal(t, 8760, HoursInYear(1900), "century non-leap year")
	assert.Equal(t, 8784, HoursInYear(2000), "400-year leap year")
}

func TestBuildCalendar_RowCountPerZone(t *testing.T) {
	cal, err := BuildCalendar(CalendarSpec{
		Year:        2013,
		SystemZone:  LabelEasternStandard,
		SourceZones: []string{LabelEasternPrevailing, LabelCentralStandard},
	})
	require.NoError(t, err)
	assert.Equal(t, 2*8760, cal.NumRows())

	leap, err := BuildCalendar(CalendarSpec{
		Year:        2012,
		SystemZone:  LabelEasternStandard,
		SourceZones: []string{LabelEasternPrevailing},
	})
	require.NoError(t, err)
	assert.Equal(t, 8784, leap.NumRows())
}

func TestBuildCalendar_EmptyZoneListYieldsEmptyCalendar(t *testing.T) {
	cal, err := BuildCalendar(CalendarSpec{
		Year:       2012,
		SystemZone: LabelEasternStandard,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, cal.NumRows())
	assert.Equal(t, []string{ColTimezone, ColDayOfWeek, ColMonth, ColHour, ColTimestamp}, cal.ColumnNames())
}

func TestBuildCalendar_LocalClockEncodings(t *testing.T) {
	cal, err := BuildCalendar(CalendarSpec{
		Year:        2012,
		SystemZone:  LabelEasternStandard,
		SourceZones: []string{LabelEasternStandard},
	})
	require.NoError(t, err)

	dow, _ := cal.Column(ColDayOfWeek)
	month, _ := cal.Column(ColMonth)
	hour, _ := cal.Column(ColHour)
	tz, _ := cal.Column(ColTimezone)

	// 2012-01-01 was a Sunday; Monday=0 encoding makes that "6".
	d0, _ := dow.StringAt(0)
	m0, _ := month.StringAt(0)
	h0, _ := hour.StringAt(0)
	z0, _ := tz.StringAt(0)
	assert.Equal(t, "6", d0)
	assert.Equal(t, "1", m0)
	assert.Equal(t, "0", h0)
	assert.Equal(t, LabelEasternStandard, z0)

	h5, _ := hour.StringAt(5)
	assert.Equal(t, "5", h5)

	// Hour strings cycle through "0".."23" with no zero padding.
	h23, _ := hour.StringAt(23)
	h24, _ := hour.StringAt(24)
	assert.Equal(t, "23", h23)
	assert.Equal(t, "0", h24)
}

func TestBuildCalendar_IdentityZoneKeepsLocalTimestamps(t *testing.T) {
	// Source zone equal to the system zone: timestamps are the local clock.
	cal, err := BuildCalendar(CalendarSpec{
		Year:        2012,
		SystemZone:  LabelEasternStandard,
		SourceZones: []string{LabelEasternStandard},
	})
	require.NoError(t, err)

	ts, _ := cal.Column(ColTimestamp)
	t0, _ := ts.TimeAt(0)
	assert.True(t, time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC).Equal(t0))
	tLast, _ := ts.TimeAt(cal.NumRows() - 1)
	assert.True(t, time.Date(2012, 12, 31, 23, 0, 0, 0, time.UTC).Equal(tLast))
}

func TestBuildCalendar_YearWrapAtBoundaries(t *testing.T) {
	// Eastern local Dec 31 19:00-23:00 converts to Jan 1 00:00-04:00 UTC of
	// the following year; the wrap pins those rows back into the target
	// year, aliasing the UTC zone's real Jan 1 rows. Preserved behavior,
	// not a bug.
	cal, err := BuildCalendar(CalendarSpec{
		Year:        2013,
		SystemZone:  LabelUTC,
		SourceZones: []string{LabelUTC, LabelEasternStandard},
	})
	require.NoError(t, err)
	require.Equal(t, 2*8760, cal.NumRows())

	ts, _ := cal.Column(ColTimestamp)
	t0, _ := ts.TimeAt(0)
	assert.True(t, time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC).Equal(t0))

	// Eastern rows start at the second half; local Jan 1 00:00 EST is
	// 05:00 UTC.
	tEastern0, _ := ts.TimeAt(8760)
	assert.True(t, time.Date(2013, 1, 1, 5, 0, 0, 0, time.UTC).Equal(tEastern0))

	// Local Dec 31 23:00 EST crosses into Jan 1 04:00 of 2014 and wraps
	// back onto Jan 1 04:00 of the target year.
	tLast, _ := ts.TimeAt(cal.NumRows() - 1)
	assert.True(t, time.Date(2013, 1, 1, 4, 0, 0, 0, time.UTC).Equal(tLast))

	// The wrapped Eastern row duplicates the UTC zone's real midnight row.
	seen := 0
	target := time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < cal.NumRows(); i++ {
		v, _ := ts.TimeAt(i)
		if v.Equal(target) {
			seen++
		}
	}
	assert.Equal(t, 2, seen, "wrap aliasing duplicates the midnight timestamp")
}

func TestBuildCalendar_PrevailingZoneObservesDST(t *testing.T) {
	cal, err := BuildCalendar(CalendarSpec{
		Year:        2012,
		SystemZone:  LabelUTC,
		SourceZones: []string{LabelEasternPrevailing},
	})
	require.NoError(t, err)
	require.Equal(t, 8784, cal.NumRows())

	// 2012-03-11 02:00 EST does not exist; the local clock jumps to 03:00.
	// Absolute-hour enumeration therefore skips local hour "2" that day,
	// leaving one fewer "2" than "1" across March.
	month, _ := cal.Column(ColMonth)
	hour, _ := cal.Column(ColHour)
	marchHours := map[string]int{}
	for i := 0; i < cal.NumRows(); i++ {
		m, _ := month.StringAt(i)
		if m != "3" {
			continue
		}
		h, _ := hour.StringAt(i)
		marchHours[h]++
	}
	assert.Equal(t, marchHours["1"]-1, marchHours["2"])
}

func TestBuildCalendar_LeapDayAdjustment(t *testing.T) {
	for _, adj := range []LeapDayAdjustment{LeapDayDropFeb29, LeapDayDropDec31, LeapDayDropJan1} {
		cal, err := BuildCalendar(CalendarSpec{
			Year:        2012,
			SystemZone:  LabelEasternStandard,
			SourceZones: []string{LabelEasternStandard},
			LeapDay:     adj,
		})
		require.NoError(t, err)
		assert.Equal(t, 8760, cal.NumRows(), "adjustment %q drops exactly one day", adj)
	}

	// No effect outside leap years.
	cal, err := BuildCalendar(CalendarSpec{
		Year:        2013,
		SystemZone:  LabelEasternStandard,
		SourceZones: []string{LabelEasternStandard},
		LeapDay:     LeapDayDropDec31,
	})
	require.NoError(t, err)
	assert.Equal(t, 8760, cal.NumRows())
}

func TestParseLeapDayAdjustment(t *testing.T) {
	for _, s := range []string{"", "none"} {
		adj, err := ParseLeapDayAdjustment(s)
		require.NoError(t, err)
		assert.Equal(t, LeapDayNone, adj)
	}
	adj, err := ParseLeapDayAdjustment("drop_feb29")
	require.NoError(t, err)
	assert.Equal(t, LeapDayDropFeb29, adj)

	_, err = ParseLeapDayAdjustment("drop_everything")
	require.Error(t, err)
	assert.True(t, exception.IsConfigError(err))
}

func TestBuildCalendar_UnknownZoneIsConfigError(t *testing.T) {
	_, err := BuildCalendar(CalendarSpec{
		Year:        2012,
		SystemZone:  LabelUTC,
		SourceZones: []string{"MarsStandard"},
	})
	require.Error(t, err)
	assert.True(t, exception.IsConfigError(err))
}
