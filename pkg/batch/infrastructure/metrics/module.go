package metrics

import (
	"go.uber.org/fx"

	metrics "github.com/tigerroll/hourglass/pkg/batch/core/metrics"
)

// Module is an Fx module that provides the Prometheus recorder, the
// OpenTelemetry tracer, and the telemetry lifecycle hooks.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewPrometheusRecorder,
		fx.As(new(metrics.MetricRecorder)),
	)),
	fx.Provide(fx.Annotate(
		NewOpenTelemetryTracer,
		fx.As(new(metrics.Tracer)),
	)),
	fx.Invoke(RegisterTelemetry),
	fx.Invoke(RegisterPrometheusEndpoint),
)
