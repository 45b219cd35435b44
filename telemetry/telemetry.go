// Package telemetry installs OpenTelemetry tracer and meter providers that
// export to rotated files next to the application log.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"omnichat/core"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const (
	TracesFile  = "omnichat_traces.log"
	MetricsFile = "omnichat_metrics.log"
)

type Config struct {
	Dir            string // Empty disables export; the global noop providers stay in place.
	ServiceName    string
	ServiceVersion string
	MetricInterval time.Duration
	Rotation       core.RotationConfig
}

func DefaultConfig() Config {
	return Config{
		ServiceName:    "omnichat",
		ServiceVersion: "1.0.0",
		MetricInterval: 10 * time.Second,
		Rotation:       core.DefaultRotationConfig(),
	}
}

// ShutdownFunc flushes pending spans and metrics and closes the files.
type ShutdownFunc func(ctx context.Context) error

// Init installs global tracer and meter providers writing JSON into rotated
// files under config.Dir. The returned function must be called on exit.
func Init(ctx context.Context, config Config, logger *core.Logger) (ShutdownFunc, error) {
	if logger == nil {
		logger = core.GetLogger()
	}
	if config.Dir == "" {
		logger.Debug("telemetry export disabled")
		return func(context.Context) error { return nil }, nil
	}
	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("telemetry: create dir: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: resource: %w", err)
	}

	traceFile, err := core.NewRotatingFile(filepath.Join(config.Dir, TracesFile), config.Rotation)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(traceFile))
	if err != nil {
		traceFile.Close()
		return nil, fmt.Errorf("telemetry: trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)

	metricsFile, err := core.NewRotatingFile(filepath.Join(config.Dir, MetricsFile), config.Rotation)
	if err != nil {
		tp.Shutdown(ctx)
		traceFile.Close()
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(metricsFile))
	if err != nil {
		tp.Shutdown(ctx)
		traceFile.Close()
		metricsFile.Close()
		return nil, fmt.Errorf("telemetry: metric exporter: %w", err)
	}
	interval := config.MetricInterval
	if interval <= 0 {
		interval = DefaultConfig().MetricInterval
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	logger.With(map[string]any{"dir": config.Dir}).Info("telemetry export enabled")

	return func(ctx context.Context) error {
		return errors.Join(
			tp.Shutdown(ctx),
			mp.Shutdown(ctx),
			traceFile.Close(),
			metricsFile.Close(),
		)
	}, nil
}
