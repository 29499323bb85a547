package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
)

// Span represents a single operation or unit of work in distributed tracing.
// This interface provides basic methods for managing the lifecycle of a span.
type Span interface {
	// End sets the end time of the current span and finishes the span.
	// Once a span is ended, its data is ready to be exported to the tracing system.
	End()
}

// MetricRecorder is an abstract interface for recording metrics related to
// batch execution.
//
// This interface provides a standardized way to record metrics for job,
// stage, and dataset-level events, which facilitates integration with
// different metrics backends (e.g., Prometheus, OpenTelemetry Metrics).
type MetricRecorder interface {
	// RecordJobStart records the start of a JobExecution.
	//
	// ctx: The context for the operation.
	// execution: Details of the started JobExecution.
	RecordJobStart(ctx context.Context, execution *model.JobExecution)

	// RecordJobEnd records the end of a JobExecution.
	//
	// ctx: The context for the operation.
	// execution: Details of the ended JobExecution.
	RecordJobEnd(ctx context.Context, execution *model.JobExecution)

	// RecordStepStart records the start of a StepExecution.
	//
	// ctx: The context for the operation.
	// execution: Details of the started StepExecution.
	RecordStepStart(ctx context.Context, execution *model.StepExecution)

	// RecordStepEnd records the end of a StepExecution.
	//
	// ctx: The context for the operation.
	// execution: Details of the ended StepExecution.
	RecordStepEnd(ctx context.Context, execution *model.StepExecution)

	// RecordInputRows records the number of rows a stage consumed.
	//
	// ctx: The context for the operation.
	// stepName: The name of the stage.
	// count: The number of rows read.
	RecordInputRows(ctx context.Context, stepName string, count int64)

	// RecordOutputRows records the number of rows a stage produced.
	//
	// ctx: The context for the operation.
	// stepName: The name of the stage.
	// count: The number of rows written.
	RecordOutputRows(ctx context.Context, stepName string, count int64)

	// RecordJoinWarning records join-cardinality warnings emitted by a stage.
	//
	// ctx: The context for the operation.
	// stepName: The name of the stage.
	// kind: The warning kind (e.g., "unmapped_timezone", "unmatched_calendar").
	// count: The number of affected rows.
	RecordJoinWarning(ctx context.Context, stepName string, kind string, count int64)

	// RecordDuration records the execution time of a specific operation.
	//
	// ctx: The context for the operation.
	// name: The name of the duration to record (e.g., "parquet_read_duration").
	// duration: The length of the duration to record.
	// tags: A map of additional tags or attributes to associate with the duration.
	//       Example: `{"dataset": "load_data", "status": "success"}`
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
