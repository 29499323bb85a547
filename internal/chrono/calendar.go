package chrono

import (
	"strconv"
	"time"

	dataset "github.com/tigerroll/hourglass/internal/dataset"
	exception "github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
)

// Calendar column names shared with the join stage.
const (
	ColTimezone  = "timezone"
	ColDayOfWeek = "day_of_week"
	ColMonth     = "month"
	ColHour      = "hour"
	ColTimestamp = "timestamp"
)

// LeapDayAdjustment optionally drops one local date from each zone's
// calendar when the weather year is a leap year, keeping the row count at
// 8760.
type LeapDayAdjustment string

const (
	LeapDayNone      LeapDayAdjustment = ""
	LeapDayDropFeb29 LeapDayAdjustment = "drop_feb29"
	LeapDayDropDec31 LeapDayAdjustment = "drop_dec31"
	LeapDayDropJan1  LeapDayAdjustment = "drop_jan1"
)

// ParseLeapDayAdjustment validates a leap-day adjustment setting. "none" and
// the empty string both mean no adjustment.
func ParseLeapDayAdjustment(s string) (LeapDayAdjustment, error) {
	switch s {
	case "", "none":
		return LeapDayNone, nil
	case string(LeapDayDropFeb29):
		return LeapDayDropFeb29, nil
	case string(LeapDayDropDec31):
		return LeapDayDropDec31, nil
	case string(LeapDayDropJan1):
		return LeapDayDropJan1, nil
	default:
		return LeapDayNone, exception.NewConfigErrorf("chrono", "unknown leap_day_adjustment %q", s)
	}
}

// CalendarSpec describes one calendar synthesis run.
type CalendarSpec struct {
	// Year is the target weather year all timestamps are aligned to.
	Year int
	// SystemZone is the canonical timezone label output timestamps are
	// expressed in (then stripped to naive).
	SystemZone string
	// SourceZones is the ordered list of source timezone labels; one
	// full-year hourly block is synthesized per zone, in this order.
	SourceZones []string
	// LeapDay optionally drops one local date per zone in leap years.
	LeapDay LeapDayAdjustment
}

// IsLeapYear reports whether the year has a Feb 29.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// HoursInYear returns 8760, or 8784 for leap years.
func HoursInYear(year int) int {
	if IsLeapYear(year) {
		return 8784
	}
	return 8760
}

// BuildCalendar synthesizes the hourly calendar Frame: per source zone,
// every hour of the year in that zone's local wall clock, annotated with
// string-encoded day_of_week (Monday=0, "0"-"6"), month ("1"-"12") and
// hour ("0"-"23") derived from the local clock, plus the instant converted
// to the system zone, stripped of its zone annotation, and with its year
// component forced back to the target year.
//
// The year wrap means an instant whose system-zone conversion crosses a
// year boundary is pinned back into the nominal year. A converted Dec 31
// 23:00 that lands on Jan 1 of the following year re-appears as Jan 1 of
// the target year, aliasing the real Jan 1 row. This is deliberate modeling
// behavior carried over unchanged; see the boundary tests.
//
// An empty source-zone list produces an empty calendar, not an error.
func BuildCalendar(spec CalendarSpec) (*dataset.Frame, error) {
	sysLoc, err := ResolveZone(spec.SystemZone)
	if err != nil {
		return nil, err
	}

	hours := HoursInYear(spec.Year)
	capacity := hours * len(spec.SourceZones)
	timezones := make([]string, 0, capacity)
	dows := make([]string, 0, capacity)
	months := make([]string, 0, capacity)
	hourStrs := make([]string, 0, capacity)
	timestamps := make([]time.Time, 0, capacity)

	dropLeapDate := spec.LeapDay != LeapDayNone && IsLeapYear(spec.Year)

	for _, label := range spec.SourceZones {
		loc, err := ResolveZone(label)
		if err != nil {
			return nil, err
		}
		canonical, _ := CanonicalLabel(label)

		start := time.Date(spec.Year, time.January, 1, 0, 0, 0, 0, loc)
		for h := 0; h < hours; h++ {
			local := start.Add(time.Duration(h) * time.Hour)
			if dropLeapDate && isDroppedDate(local, spec.Year, spec.LeapDay) {
				continue
			}

			sys := local.In(sysLoc)
			wrapped := time.Date(spec.Year, sys.Month(), sys.Day(), sys.Hour(), sys.Minute(), sys.Second(), 0, time.UTC)

			timezones = append(timezones, canonical)
			dows = append(dows, strconv.Itoa(mondayIndexedWeekday(local.Weekday())))
			months = append(months, strconv.Itoa(int(local.Month())))
			hourStrs = append(hourStrs, strconv.Itoa(local.Hour()))
			timestamps = append(timestamps, wrapped)
		}
	}

	return dataset.NewFrame(
		dataset.NewStringColumn(ColTimezone, timezones, nil),
		dataset.NewStringColumn(ColDayOfWeek, dows, nil),
		dataset.NewStringColumn(ColMonth, months, nil),
		dataset.NewStringColumn(ColHour, hourStrs, nil),
		dataset.NewTimeColumn(ColTimestamp, timestamps, nil),
	)
}

// mondayIndexedWeekday converts Go's Sunday=0 weekday to the pipeline's
// Monday=0 encoding.
func mondayIndexedWeekday(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// isDroppedDate tests the local wall-clock date against the configured
// leap-day adjustment.
func isDroppedDate(local time.Time, year int, adj LeapDayAdjustment) bool {
	switch adj {
	case LeapDayDropFeb29:
		return local.Month() == time.February && local.Day() == 29
	case LeapDayDropDec31:
		return local.Month() == time.December && local.Day() == 31
	case LeapDayDropJan1:
		return local.Month() == time.January && local.Day() == 1 && local.Year() == year
	default:
		return false
	}
}
