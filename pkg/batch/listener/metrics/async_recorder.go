package metrics

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"

	port "github.com/tigerroll/hourglass/pkg/batch/core/application/port"
	config "github.com/tigerroll/hourglass/pkg/batch/core/config"
	"github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
	"github.com/tigerroll/hourglass/pkg/batch/core/metrics"
	"github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// MetricEvent represents a metric event to be recorded asynchronously.
type MetricEvent struct {
	Type          string
	JobExecution  *model.JobExecution
	StepExecution *model.StepExecution
	StepName      string
	Kind          string // Warning kind for join warning events
	Count         int64
	Duration      time.Duration
	Tags          map[string]string
}

// Metric event type constants
const (
	MetricEventTypeJobStart       = "job_start"
	MetricEventTypeJobEnd         = "job_end"
	MetricEventTypeStepStart      = "step_start"
	MetricEventTypeStepEnd        = "step_end"
	MetricEventTypeInputRows      = "input_rows"
	MetricEventTypeOutputRows     = "output_rows"
	MetricEventTypeJoinWarning    = "join_warning"
	MetricEventTypeRecordDuration = "record_duration"
)

// AsyncMetricRecorder asynchronously records metrics by pushing events to a channel
// and processing them in a separate goroutine.
type AsyncMetricRecorder struct {
	eventQueue   chan MetricEvent
	stopCh       chan struct{}
	wg           sync.WaitGroup
	syncRecorder metrics.MetricRecorder // The concrete instance that performs actual metric recording
}

// NewAsyncMetricRecorder creates a new asynchronous metric recorder.
// bufferSize: The buffer size for the event queue. If 0 or less, a default value is used.
// syncRec: The synchronous recorder that performs the actual metric recording.
func NewAsyncMetricRecorder(bufferSize int, syncRec metrics.MetricRecorder) *AsyncMetricRecorder {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	r := &AsyncMetricRecorder{
		eventQueue:   make(chan MetricEvent, bufferSize),
		stopCh:       make(chan struct{}),
		syncRecorder: syncRec,
	}
	r.wg.Add(1)
	go r.run()
	logger.Debugf("AsyncMetricRecorder: Worker goroutine started (buffer size: %d).", bufferSize)
	return r
}

// run is the worker goroutine that reads events from the event queue and processes them with the synchronous recorder.
func (r *AsyncMetricRecorder) run() {
	defer r.wg.Done()
	for {
		select {
		case event := <-r.eventQueue:
			r.processEvent(event)
		case <-r.stopCh:
			// Upon receiving a stop signal, process all remaining events in the queue before exiting.
			remainingEvents := len(r.eventQueue)
			for i := 0; i < remainingEvents; i++ {
				event := <-r.eventQueue
				r.processEvent(event)
			}
			logger.Debugf("AsyncMetricRecorder: Worker goroutine stopped. Processed %d remaining events.", remainingEvents)
			return
		}
	}
}

// processEvent processes the received metric event.
func (r *AsyncMetricRecorder) processEvent(event MetricEvent) {
	// The original request context is gone by the time the worker drains the
	// queue; step-scoped label lookups need it back in a fresh context.
	ctx := context.Background()
	if event.StepExecution != nil {
		ctx = port.GetContextWithStepExecution(ctx, event.StepExecution)
	}
	switch event.Type {
	case MetricEventTypeJobStart:
		r.syncRecorder.RecordJobStart(ctx, event.JobExecution)
	case MetricEventTypeJobEnd:
		r.syncRecorder.RecordJobEnd(ctx, event.JobExecution)
	case MetricEventTypeStepStart:
		r.syncRecorder.RecordStepStart(ctx, event.StepExecution)
	case MetricEventTypeStepEnd:
		r.syncRecorder.RecordStepEnd(ctx, event.StepExecution)
	case MetricEventTypeInputRows:
		r.syncRecorder.RecordInputRows(ctx, event.StepName, event.Count)
	case MetricEventTypeOutputRows:
		r.syncRecorder.RecordOutputRows(ctx, event.StepName, event.Count)
	case MetricEventTypeJoinWarning:
		r.syncRecorder.RecordJoinWarning(ctx, event.StepName, event.Kind, event.Count)
	case MetricEventTypeRecordDuration:
		r.syncRecorder.RecordDuration(ctx, event.StepName, event.Duration, event.Tags) // Using StepName as a generic name
	default:
		logger.Warnf("AsyncMetricRecorder: Unknown metric event type: %s", event.Type)
	}
}

// Close gracefully stops the recorder and processes all remaining events in the queue.
func (r *AsyncMetricRecorder) Close() {
	logger.Debugf("AsyncMetricRecorder: Sending shutdown signal...")
	close(r.stopCh)
	r.wg.Wait()
	logger.Debugf("AsyncMetricRecorder: Shutdown complete.")
}

// sendEvent sends an event to the queue, logging a warning if the queue is full.
func (r *AsyncMetricRecorder) sendEvent(event MetricEvent, id string) {
	select {
	case r.eventQueue <- event:
		// Event added to queue
	default:
		logger.Warnf("AsyncMetricRecorder: Event queue is full (type: %s, ID: %s). Event discarded.", event.Type, id)
	}
}

// RecordJobStart asynchronously records the start event of a JobExecution.
func (r *AsyncMetricRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeJobStart, JobExecution: execution}, execution.ID)
}

// RecordJobEnd asynchronously records the end event of a JobExecution.
func (r *AsyncMetricRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeJobEnd, JobExecution: execution}, execution.ID)
}

// RecordStepStart asynchronously records the start event of a StepExecution.
func (r *AsyncMetricRecorder) RecordStepStart(ctx context.Context, execution *model.StepExecution) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeStepStart, StepExecution: execution}, execution.ID)
}

// RecordStepEnd asynchronously records the end event of a StepExecution.
func (r *AsyncMetricRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeStepEnd, StepExecution: execution}, execution.ID)
}

// RecordInputRows asynchronously records the rows a stage consumed.
func (r *AsyncMetricRecorder) RecordInputRows(ctx context.Context, stepName string, count int64) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeInputRows, StepName: stepName, Count: count, StepExecution: port.GetStepExecutionFromContext(ctx)}, stepName)
}

// RecordOutputRows asynchronously records the rows a stage produced.
func (r *AsyncMetricRecorder) RecordOutputRows(ctx context.Context, stepName string, count int64) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeOutputRows, StepName: stepName, Count: count, StepExecution: port.GetStepExecutionFromContext(ctx)}, stepName)
}

// RecordJoinWarning asynchronously records join-cardinality warnings.
func (r *AsyncMetricRecorder) RecordJoinWarning(ctx context.Context, stepName string, kind string, count int64) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeJoinWarning, StepName: stepName, Kind: kind, Count: count, StepExecution: port.GetStepExecutionFromContext(ctx)}, stepName)
}

// RecordDuration asynchronously records the execution time event of a specific operation.
func (r *AsyncMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeRecordDuration, StepName: name, Duration: duration, Tags: tags}, name)
}

// Ensures AsyncMetricRecorder implements the metrics.MetricRecorder interface at compile time.
var _ metrics.MetricRecorder = (*AsyncMetricRecorder)(nil)

// NewAsyncMetricRecorderWrapper is a helper function for use with fx.Decorate.
// It takes fx.Lifecycle and config.Config and calls AsyncMetricRecorder.Close() on shutdown.
func NewAsyncMetricRecorderWrapper(lc fx.Lifecycle, cfg *config.Config, syncRecorder metrics.MetricRecorder) metrics.MetricRecorder {
	bufferSize := cfg.Hourglass.Batch.MetricsAsyncBufferSize
	if bufferSize <= 0 {
		bufferSize = 100
	}
	asyncRecorder := NewAsyncMetricRecorder(bufferSize, syncRecorder)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			asyncRecorder.Close()
			return nil
		},
	})
	logger.Debugf("MetricRecorder decorated with asynchronous wrapper.")
	return asyncRecorder
}
