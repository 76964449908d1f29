package testutil

import (
	"context"
	"testing"

	"github.com/evergreen-ci/shutdowncheck"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// RecordSpans installs a global tracer provider that keeps every finished
// span in memory, and restores the previous provider when the test ends.
// Tests using it must not run in parallel with other tracing tests.
func RecordSpans(t *testing.T) *tracetest.SpanRecorder {
	recorder := tracetest.NewSpanRecorder()

	spanLimits := sdktrace.NewSpanLimits()
	spanLimits.AttributeValueLengthLimit = shutdowncheck.OtelAttributeMaxLength
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(recorder),
		sdktrace.WithRawSpanLimits(spanLimits),
	)

	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		grip.Warning(errors.Wrap(tp.Shutdown(context.Background()), "shutting down test tracer provider"))
	})

	return recorder
}

// SpanNames returns the names of the ended spans in the order they ended.
func SpanNames(recorder *tracetest.SpanRecorder) []string {
	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	return names
}

// RecordMetrics installs a global meter provider backed by a manual reader,
// and restores the previous provider when the test ends.
func RecordMetrics(t *testing.T) *sdkmetric.ManualReader {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(mp)
	t.Cleanup(func() {
		otel.SetMeterProvider(previous)
		grip.Warning(errors.Wrap(mp.Shutdown(context.Background()), "shutting down test meter provider"))
	})

	return reader
}

// CollectMetrics reads every metric recorded so far, keyed by instrument
// name.
func CollectMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collecting metrics: %s", err)
	}

	out := map[string]metricdata.Metrics{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			out[m.Name] = m
		}
	}
	return out
}
