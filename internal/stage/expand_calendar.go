package stage

import (
	"context"

	"github.com/tigerroll/hourglass/internal/chrono"
	"github.com/tigerroll/hourglass/internal/pipeline"
	port "github.com/tigerroll/hourglass/pkg/batch/core/application/port"
	model "github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// ExpandCalendarTasklet synthesizes the hourly calendar for the weather
// year: one full-year block per source timezone, categorical keys from the
// local wall clock, timestamps converted to the system zone and pinned back
// into the weather year. An empty source-zone list produces an empty
// calendar and, downstream, an empty output.
type ExpandCalendarTasklet struct {
	catalog *pipeline.DatasetCatalog

	stepExecutionContext model.ExecutionContext
}

// NewExpandCalendarTasklet creates the calendar expansion tasklet.
func NewExpandCalendarTasklet(catalog *pipeline.DatasetCatalog) port.Tasklet {
	return &ExpandCalendarTasklet{
		catalog:              catalog,
		stepExecutionContext: model.NewExecutionContext(),
	}
}

func (t *ExpandCalendarTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	pcfg, err := t.catalog.PipelineConfig()
	if err != nil {
		return model.ExitStatusFailed, err
	}

	calendar, err := chrono.BuildCalendar(chrono.CalendarSpec{
		Year:        pcfg.WeatherYear,
		SystemZone:  pcfg.SystemTimeZone,
		SourceZones: pcfg.SourceTimeZones,
		LeapDay:     pcfg.LeapDayAdjustment,
	})
	if err != nil {
		return model.ExitStatusFailed, err
	}
	t.catalog.PutFrame(pipeline.FrameCalendar, calendar)

	stepExecution.InputRows = int64(len(pcfg.SourceTimeZones))
	stepExecution.OutputRows = int64(calendar.NumRows())
	t.stepExecutionContext.Put("calendar_rows", calendar.NumRows())
	t.stepExecutionContext.Put("weather_year", pcfg.WeatherYear)

	logger.Infof("Stage '%s': expanded %d calendar rows for year %d over %d zones.",
		stepExecution.StepName, calendar.NumRows(), pcfg.WeatherYear, len(pcfg.SourceTimeZones))
	return model.ExitStatusCompleted, nil
}

func (t *ExpandCalendarTasklet) Close(ctx context.Context) error {
	return nil
}

func (t *ExpandCalendarTasklet) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	t.stepExecutionContext = ec
	return nil
}

func (t *ExpandCalendarTasklet) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return t.stepExecutionContext, nil
}

var _ port.Tasklet = (*ExpandCalendarTasklet)(nil)
