package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	port "github.com/tigerroll/hourglass/pkg/batch/core/application/port"
	model "github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/hourglass/pkg/batch/core/metrics"
	logger "github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Job Metrics
	jobDurationSeconds *prometheus.HistogramVec
	jobStatusCounter   *prometheus.CounterVec

	// Stage Metrics
	stepDurationSeconds *prometheus.HistogramVec
	stepStatusCounter   *prometheus.CounterVec
	stepInputRows       *prometheus.CounterVec
	stepOutputRows      *prometheus.CounterVec
	joinWarningCounter  *prometheus.CounterVec

	// Generic operation durations (Parquet reads, registry loads, ...)
	operationDuration *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder.
func NewPrometheusRecorder() metrics.MetricRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		jobDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hourglass_job_duration_seconds",
			Help:    "Duration of batch job executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_name", "status", "exit_status"}),
		jobStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hourglass_job_status_total",
			Help: "Total number of batch job executions by status.",
		}, []string{"job_name", "status"}),
		stepDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hourglass_step_duration_seconds",
			Help:    "Duration of pipeline stage executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_name", "step_name", "status", "exit_status"}),
		stepStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hourglass_step_status_total",
			Help: "Total number of pipeline stage executions by status.",
		}, []string{"job_name", "step_name", "status"}),
		stepInputRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hourglass_step_input_rows_total",
			Help: "Total rows consumed by stage.",
		}, []string{"job_name", "step_name"}),
		stepOutputRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hourglass_step_output_rows_total",
			Help: "Total rows produced by stage.",
		}, []string{"job_name", "step_name"}),
		joinWarningCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hourglass_join_warning_total",
			Help: "Total join-cardinality warnings by stage and kind.",
		}, []string{"job_name", "step_name", "kind"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hourglass_operation_duration_seconds",
			Help:    "Duration of named internal operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"name"}),
	}

	// Register all metrics with the registry.
	registry.MustRegister(r.jobDurationSeconds)
	registry.MustRegister(r.jobStatusCounter)
	registry.MustRegister(r.stepDurationSeconds)
	registry.MustRegister(r.stepStatusCounter)
	registry.MustRegister(r.stepInputRows)
	registry.MustRegister(r.stepOutputRows)
	registry.MustRegister(r.joinWarningCounter)
	registry.MustRegister(r.operationDuration)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordJobStart records the start of a JobExecution.
func (r *PrometheusRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	r.jobStatusCounter.WithLabelValues(execution.JobName, execution.Status.String()).Inc()
	logger.Debugf("Metrics: Job '%s' started.", execution.JobName)
}

// RecordJobEnd records the end of a JobExecution.
func (r *PrometheusRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	if execution.EndTime == nil {
		return
	}
	duration := execution.EndTime.Sub(execution.StartTime).Seconds()

	r.jobDurationSeconds.WithLabelValues(
		execution.JobName,
		execution.Status.String(),
		execution.ExitStatus.String(),
	).Observe(duration)

	logger.Debugf("Metrics: Job '%s' ended. Duration: %.3fs", execution.JobName, duration)
}

// RecordStepStart records the start of a StepExecution.
func (r *PrometheusRecorder) RecordStepStart(ctx context.Context, execution *model.StepExecution) {
	jobName := execution.JobExecution.JobName
	r.stepStatusCounter.WithLabelValues(jobName, execution.StepName, execution.Status.String()).Inc()
	logger.Debugf("Metrics: Stage '%s' started.", execution.StepName)
}

// RecordStepEnd records the end of a StepExecution.
func (r *PrometheusRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	if execution.EndTime == nil {
		return
	}
	duration := execution.EndTime.Sub(execution.StartTime).Seconds()

	r.stepDurationSeconds.WithLabelValues(
		execution.JobExecution.JobName,
		execution.StepName,
		execution.Status.String(),
		execution.ExitStatus.String(),
	).Observe(duration)

	logger.Debugf("Metrics: Stage '%s' ended. Duration: %.3fs", execution.StepName, duration)
}

// RecordInputRows records the number of rows a stage consumed.
func (r *PrometheusRecorder) RecordInputRows(ctx context.Context, stepName string, count int64) {
	if se := port.GetStepExecutionFromContext(ctx); se != nil {
		r.stepInputRows.WithLabelValues(se.JobExecution.JobName, stepName).Add(float64(count))
	}
}

// RecordOutputRows records the number of rows a stage produced.
func (r *PrometheusRecorder) RecordOutputRows(ctx context.Context, stepName string, count int64) {
	if se := port.GetStepExecutionFromContext(ctx); se != nil {
		r.stepOutputRows.WithLabelValues(se.JobExecution.JobName, stepName).Add(float64(count))
	}
}

// RecordJoinWarning records join-cardinality warnings emitted by a stage.
func (r *PrometheusRecorder) RecordJoinWarning(ctx context.Context, stepName string, kind string, count int64) {
	if se := port.GetStepExecutionFromContext(ctx); se != nil {
		r.joinWarningCounter.WithLabelValues(se.JobExecution.JobName, stepName, kind).Add(float64(count))
	}
}

// RecordDuration records the execution time of a named internal operation.
// Tags are not mapped to labels; Prometheus label sets must be fixed up front.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.operationDuration.WithLabelValues(name).Observe(duration.Seconds())
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
