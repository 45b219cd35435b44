package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"omnichat/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func resetGlobals(t *testing.T) {
	t.Cleanup(func() {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
	})
}

func TestInit_DisabledWithoutDir(t *testing.T) {
	shutdown, err := Init(context.Background(), DefaultConfig(), core.NewNopLogger())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_ExportsSpansAndMetrics(t *testing.T) {
	resetGlobals(t)
	cfg := DefaultConfig()
	cfg.Dir = filepath.Join(t.TempDir(), "telemetry")

	ctx := context.Background()
	shutdown, err := Init(ctx, cfg, core.NewNopLogger())
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(ctx, "conversation.round_trip")
	span.End()
	counter, err := otel.Meter("test").Int64Counter("omnichat.submissions")
	require.NoError(t, err)
	counter.Add(ctx, 1)

	require.NoError(t, shutdown(ctx))

	traces, err := os.ReadFile(filepath.Join(cfg.Dir, TracesFile))
	require.NoError(t, err)
	assert.Contains(t, string(traces), "conversation.round_trip")
	assert.Contains(t, string(traces), "omnichat")

	metrics, err := os.ReadFile(filepath.Join(cfg.Dir, MetricsFile))
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "omnichat.submissions")
}
