// Package stage implements the five tasklets of the tempo alignment
// pipeline. Stages exchange frames through the shared dataset catalog and
// report join-cardinality anomalies as counted warnings, never as silent
// drops.
package stage

import (
	"context"

	"github.com/tigerroll/hourglass/internal/dataset"
	port "github.com/tigerroll/hourglass/pkg/batch/core/application/port"
	model "github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/hourglass/pkg/batch/core/metrics"
	logger "github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// Warning kinds counted by the stages. Each kind names one join-cardinality
// anomaly that is legal but worth surfacing.
const (
	WarnEmptyEndUseFilter = "empty_enduse_filter"
	WarnUnmappedTimezone  = "unmapped_timezone"
	WarnUnmeasuredID      = "unmeasured_id"
	WarnUnmatchedCalendar = "unmatched_calendar"
	WarnUnmappedGeography = "unmapped_geography"
)

// Dataset column names shared across the stages. The categorical time keys
// live in the chrono package; these are the dimension and measure columns.
const (
	ColID           = "id"
	ColSector       = "sector"
	ColScenario     = "scenario"
	ColModelYear    = "model_year"
	ColGeography    = "geography"
	ColFraction     = "fraction"
	ColFromFraction = "from_fraction"
	ColElectricity  = "electricity"
	ColWeight       = "weight"
)

// recordWarning bumps the step's warning total, logs, and feeds the
// per-kind counter. A zero count is a non-event.
func recordWarning(ctx context.Context, recorder metrics.MetricRecorder, se *model.StepExecution, kind string, count int64) {
	if count <= 0 {
		return
	}
	se.AddWarnings(count)
	logger.Warnf("Stage '%s': %d %s rows.", se.StepName, count, kind)
	if recorder != nil {
		recorder.RecordJoinWarning(port.GetContextWithStepExecution(ctx, se), se.StepName, kind, count)
	}
}

// countNulls returns the number of null cells in the named column.
func countNulls(f *dataset.Frame, name string) int64 {
	c, ok := f.Column(name)
	if !ok {
		return 0
	}
	var n int64
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			n++
		}
	}
	return n
}
