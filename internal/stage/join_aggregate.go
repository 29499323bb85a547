package stage

import (
	"context"

	"github.com/tigerroll/hourglass/internal/chrono"
	"github.com/tigerroll/hourglass/internal/dataset"
	"github.com/tigerroll/hourglass/internal/pipeline"
	"github.com/tigerroll/hourglass/internal/registry"
	port "github.com/tigerroll/hourglass/pkg/batch/core/application/port"
	model "github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/hourglass/pkg/batch/core/metrics"
	exception "github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// weightedElectricity is the intermediate product column; renamed to the
// electricity measure after aggregation.
const weightedElectricity = "weighted_electricity"

// JoinAggregateTasklet performs the fraction-weighted join and aggregation:
// lookup rows gain a timezone through the geography→timezone map, weights
// combine fraction and from_fraction by multiplication (from_fraction
// defaulted to 1 before multiplying), consolidated load joins in by id, and
// the weighted sums are re-keyed from categorical time onto the calendar's
// absolute timestamps. The calendar is authoritative: every calendar row
// appears in the result, with zero electricity when nothing matched.
type JoinAggregateTasklet struct {
	catalog  *pipeline.DatasetCatalog
	recorder metrics.MetricRecorder

	stepExecutionContext model.ExecutionContext
}

// NewJoinAggregateTasklet creates the join-and-aggregate tasklet.
func NewJoinAggregateTasklet(catalog *pipeline.DatasetCatalog, recorder metrics.MetricRecorder) port.Tasklet {
	return &JoinAggregateTasklet{
		catalog:              catalog,
		recorder:             recorder,
		stepExecutionContext: model.NewExecutionContext(),
	}
}

func (t *JoinAggregateTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	lookup, err := t.catalog.Frame(pipeline.FrameLookupTable)
	if err != nil {
		return model.ExitStatusFailed, err
	}
	geographyZones, err := t.catalog.Frame(pipeline.FrameGeographyZones)
	if err != nil {
		return model.ExitStatusFailed, err
	}
	consolidated, err := t.catalog.Frame(pipeline.FrameConsolidatedLoad)
	if err != nil {
		return model.ExitStatusFailed, err
	}
	calendar, err := t.catalog.Frame(pipeline.FrameCalendar)
	if err != nil {
		return model.ExitStatusFailed, err
	}

	aligned, counts, err := alignLoad(lookup, geographyZones, consolidated, calendar)
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError("stage", "fraction-weighted join and aggregate failed", err)
	}

	recordWarning(ctx, t.recorder, stepExecution, WarnUnmappedTimezone, counts.unmappedTimezone)
	recordWarning(ctx, t.recorder, stepExecution, WarnUnmeasuredID, counts.unmeasuredID)
	recordWarning(ctx, t.recorder, stepExecution, WarnUnmatchedCalendar, counts.unmatchedCalendar)

	t.catalog.PutFrame(pipeline.FrameAlignedLoad, aligned)

	stepExecution.InputRows = int64(lookup.NumRows() + consolidated.NumRows() + calendar.NumRows())
	stepExecution.OutputRows = int64(aligned.NumRows())
	t.stepExecutionContext.Put("aligned_rows", aligned.NumRows())

	logger.Infof("Stage '%s': aligned %d rows onto the calendar.", stepExecution.StepName, aligned.NumRows())
	return model.ExitStatusCompleted, nil
}

// joinCounts carries the per-kind anomaly counts of one alignment run.
type joinCounts struct {
	unmappedTimezone  int64
	unmeasuredID      int64
	unmatchedCalendar int64
}

// alignLoad is the pure frame transformation behind the tasklet, kept free
// of engine types so it can be exercised directly.
func alignLoad(lookup, geographyZones, consolidated, calendar *dataset.Frame) (*dataset.Frame, joinCounts, error) {
	var counts joinCounts

	zones, err := prepareGeographyZones(geographyZones)
	if err != nil {
		return nil, counts, err
	}

	// 1. Attach a timezone to each lookup row. Unmatched rows keep a null
	// timezone, which propagates.
	weighted, err := lookup.Join(zones, []string{ColGeography}, dataset.LeftJoin)
	if err != nil {
		return nil, counts, err
	}
	counts.unmappedTimezone = countNulls(weighted, chrono.ColTimezone)

	// 2. Default from_fraction to 1 before multiplying. Defaulting after the
	// product would rewrite rows that were already weighted.
	weighted, err = weighted.FillNullFloat(ColFromFraction, 1)
	if err != nil {
		return nil, counts, err
	}
	weighted, err = weighted.MultiplyColumns(ColWeight, ColFraction, ColFromFraction)
	if err != nil {
		return nil, counts, err
	}

	// 3. Join the consolidated load in by id. Lookup rows without load are
	// unmeasured and contribute nothing to the sums.
	withLoad, err := weighted.Join(consolidated, []string{ColID}, dataset.LeftJoin)
	if err != nil {
		return nil, counts, err
	}
	counts.unmeasuredID = countNulls(withLoad, ColElectricity)

	// 4. Sum weight*electricity per dimension and categorical-time group.
	withLoad, err = withLoad.MultiplyColumns(weightedElectricity, ColWeight, ColElectricity)
	if err != nil {
		return nil, counts, err
	}
	aggregated, err := withLoad.GroupBySum(
		[]string{ColSector, ColScenario, ColGeography, ColModelYear, chrono.ColTimezone, chrono.ColDayOfWeek, chrono.ColMonth, chrono.ColHour},
		[]string{weightedElectricity},
	)
	if err != nil {
		return nil, counts, err
	}
	aggregated, err = aggregated.Rename(weightedElectricity, ColElectricity)
	if err != nil {
		return nil, counts, err
	}

	// 5. Re-key onto the calendar. The right join anchors on the calendar, so
	// every timestamp appears; calendar rows with no aggregate match become
	// placeholder rows with null dimensions and zero electricity.
	aligned, err := aggregated.Join(calendar, []string{chrono.ColTimezone, chrono.ColDayOfWeek, chrono.ColMonth, chrono.ColHour}, dataset.RightJoin)
	if err != nil {
		return nil, counts, err
	}
	counts.unmatchedCalendar = countNulls(aligned, ColElectricity)
	aligned, err = aligned.FillNullFloat(ColElectricity, 0)
	if err != nil {
		return nil, counts, err
	}
	aligned, err = aligned.Drop(chrono.ColTimezone, chrono.ColDayOfWeek, chrono.ColMonth, chrono.ColHour)
	if err != nil {
		return nil, counts, err
	}
	return aligned, counts, nil
}

// prepareGeographyZones reshapes the mapping-shaped geography→timezone rows
// for the join: from_id becomes the geography key, to_id the timezone label,
// and a missing from_fraction column materializes as all-ones.
func prepareGeographyZones(zones *dataset.Frame) (*dataset.Frame, error) {
	cols := []string{registry.ColumnFromID, registry.ColumnToID}
	if zones.HasColumn(registry.ColumnFromFraction) {
		cols = append(cols, registry.ColumnFromFraction)
	}
	prepared, err := zones.Select(cols...)
	if err != nil {
		return nil, err
	}
	prepared, err = prepared.Rename(registry.ColumnFromID, ColGeography)
	if err != nil {
		return nil, err
	}
	prepared, err = prepared.Rename(registry.ColumnToID, chrono.ColTimezone)
	if err != nil {
		return nil, err
	}
	if !prepared.HasColumn(ColFromFraction) {
		ones := make([]float64, prepared.NumRows())
		for i := range ones {
			ones[i] = 1
		}
		prepared, err = prepared.WithColumn(dataset.NewFloatColumn(ColFromFraction, ones, nil))
		if err != nil {
			return nil, err
		}
	}
	return canonicalizeZoneLabels(prepared)
}

// canonicalizeZoneLabels rewrites recognized timezone labels (short codes
// included) to their canonical form so they equi-join against the calendar.
// Unrecognized labels pass through and simply never match, which the join
// stage counts as unmatched calendar rows.
func canonicalizeZoneLabels(f *dataset.Frame) (*dataset.Frame, error) {
	tz, ok := f.Column(chrono.ColTimezone)
	if !ok {
		return f, nil
	}
	labels := make([]string, f.NumRows())
	valid := make([]bool, f.NumRows())
	for i := 0; i < f.NumRows(); i++ {
		label, v := tz.StringAt(i)
		if !v {
			continue
		}
		valid[i] = true
		if canonical, known := chrono.CanonicalLabel(label); known {
			labels[i] = canonical
		} else {
			labels[i] = label
		}
	}
	return f.WithColumn(dataset.NewStringColumn(chrono.ColTimezone, labels, valid))
}

func (t *JoinAggregateTasklet) Close(ctx context.Context) error {
	return nil
}

func (t *JoinAggregateTasklet) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	t.stepExecutionContext = ec
	return nil
}

func (t *JoinAggregateTasklet) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return t.stepExecutionContext, nil
}

var _ port.Tasklet = (*JoinAggregateTasklet)(nil)
