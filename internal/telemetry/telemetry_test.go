package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/carrierbridge/internal/telemetry"
	"github.com/tournevent/carrierbridge/pkg/shipper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)

	m.RecordRequest(shipper.OpTrackShipment, "laposte", "success", 0.12)
	m.RecordRequest(shipper.OpTrackShipment, "laposte", "success", 0.08)
	m.RecordError("colissimo", "rejected")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(shipper.OpTrackShipment, "laposte", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CarrierErrors.WithLabelValues("colissimo", "rejected")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{
		"carrierbridge_requests_total",
		"carrierbridge_request_duration_seconds",
		"carrierbridge_carrier_errors_total",
	}, names)
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.NewMetrics(prometheus.NewRegistry())
		telemetry.NewMetrics(prometheus.NewRegistry())
	})
}

func TestMetrics_ImplementsRecorder(t *testing.T) {
	var _ shipper.Recorder = telemetry.NewMetrics(prometheus.NewRegistry())
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "WARN", "error", "bogus"} {
		logger, err := telemetry.NewLogger(level)
		require.NoError(t, err, level)
		assert.NotNil(t, logger)
	}
}

func TestInitTracer_ResourceAttributes(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	ctx := context.Background()
	tracer, shutdown, err := telemetry.InitTracer(ctx, "http://127.0.0.1:4318", "carrierbridge", "1.2.3",
		attribute.Bool("laposte.enabled", true))
	require.NoError(t, err)
	t.Cleanup(func() {
		sctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		_ = shutdown(sctx)
	})

	_, span := tracer.Start(ctx, "op")
	defer span.End()

	ro, ok := span.(sdktrace.ReadOnlySpan)
	require.True(t, ok)
	attrs := ro.Resource().Set()

	v, ok := attrs.Value("service.name")
	require.True(t, ok)
	assert.Equal(t, "carrierbridge", v.AsString())
	v, ok = attrs.Value("service.version")
	require.True(t, ok)
	assert.Equal(t, "1.2.3", v.AsString())
	v, ok = attrs.Value("laposte.enabled")
	require.True(t, ok)
	assert.True(t, v.AsBool())
}
