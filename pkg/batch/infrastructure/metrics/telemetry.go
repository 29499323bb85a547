package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"

	config "github.com/tigerroll/hourglass/pkg/batch/core/config"
	metrics "github.com/tigerroll/hourglass/pkg/batch/core/metrics"
	exception "github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

const defaultServiceName = "hourglass"

// RegisterTelemetry installs OTLP trace and metric providers as the otel
// globals when telemetry is enabled, and shuts them down on application stop.
func RegisterTelemetry(lc fx.Lifecycle, cfg *config.Config) {
	tc := cfg.Hourglass.Telemetry
	if !tc.Enabled {
		logger.Debugf("Telemetry is disabled; OTLP export is not configured.")
		return
	}

	var tp *sdktrace.TracerProvider
	var mp *sdkmetric.MeterProvider

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			serviceName := tc.ServiceName
			if serviceName == "" {
				serviceName = defaultServiceName
			}
			res := resource.NewSchemaless(attribute.String("service.name", serviceName))

			traceExporter, err := newTraceExporter(ctx, tc)
			if err != nil {
				return exception.NewBatchError("telemetry", "failed to create OTLP trace exporter", err)
			}
			tp = sdktrace.NewTracerProvider(
				sdktrace.WithBatcher(traceExporter),
				sdktrace.WithResource(res),
			)
			otel.SetTracerProvider(tp)

			metricExporter, err := newMetricExporter(ctx, tc)
			if err != nil {
				return exception.NewBatchError("telemetry", "failed to create OTLP metric exporter", err)
			}
			mp = sdkmetric.NewMeterProvider(
				sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
				sdkmetric.WithResource(res),
			)
			otel.SetMeterProvider(mp)

			logger.Infof("Telemetry enabled: exporting to %s over %s.", tc.Endpoint, tc.Protocol)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			var errs []error
			if tp != nil {
				errs = append(errs, tp.Shutdown(shutdownCtx))
			}
			if mp != nil {
				errs = append(errs, mp.Shutdown(shutdownCtx))
			}
			return errors.Join(errs...)
		},
	})
}

func newTraceExporter(ctx context.Context, tc config.TelemetryConfig) (*otlptrace.Exporter, error) {
	if tc.Protocol == "http" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(tc.Endpoint)}
		if tc.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	}
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(tc.Endpoint)}
	if tc.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}

func newMetricExporter(ctx context.Context, tc config.TelemetryConfig) (sdkmetric.Exporter, error) {
	if tc.Protocol == "http" {
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(tc.Endpoint)}
		if tc.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	}
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(tc.Endpoint)}
	if tc.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	return otlpmetricgrpc.New(ctx, opts...)
}

// RegisterPrometheusEndpoint serves the recorder's registry at /metrics on
// the configured listen address. Empty address leaves the endpoint off.
func RegisterPrometheusEndpoint(lc fx.Lifecycle, cfg *config.Config, recorder metrics.MetricRecorder) {
	addr := cfg.Hourglass.Telemetry.PrometheusListenAddress
	if addr == "" {
		return
	}
	promRecorder, ok := recorder.(*PrometheusRecorder)
	if !ok {
		logger.Warnf("Prometheus listen address is set but the active MetricRecorder is not Prometheus-backed; skipping /metrics endpoint.")
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promRecorder.GetRegistry(), promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Infof("Serving Prometheus metrics at http://%s/metrics", addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Errorf("Prometheus metrics endpoint failed: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}
