package shutdowncheck

import (
	"context"
	"time"

	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
)

const (
	// OtelAttributeMaxLength caps span attribute values such as the captured
	// gateway output.
	OtelAttributeMaxLength = 10000

	metricsExportInterval = 15 * time.Second
	metricsExportTimeout  = metricsExportInterval * 2
)

// TracerConfig configures the OpenTelemetry tracer and meter providers. If
// not enabled neither traces nor metrics will be sent.
type TracerConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CollectorEndpoint string `yaml:"collector_endpoint"`
	// Insecure disables TLS to the collector, for a collector on localhost.
	Insecure bool `yaml:"insecure"`
}

// ValidateAndDefault validates the tracer configuration.
func (c *TracerConfig) ValidateAndDefault() error {
	if c.Enabled && c.CollectorEndpoint == "" {
		return errors.New("tracer can't be enabled without a collector endpoint")
	}
	return nil
}

// InitTracer installs a global tracer provider exporting spans to the
// configured collector. The returned function flushes and shuts it down. A
// disabled config installs nothing and returns a no-op closer.
func InitTracer(ctx context.Context, conf TracerConfig) (func(context.Context) error, error) {
	if !conf.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	if err := conf.ValidateAndDefault(); err != nil {
		return nil, errors.Wrap(err, "invalid tracer config")
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(conf.CollectorEndpoint)}
	if conf.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	if err != nil {
		return nil, errors.Wrap(err, "initializing otel exporter")
	}

	spanLimits := sdktrace.NewSpanLimits()
	spanLimits.AttributeValueLengthLimit = OtelAttributeMaxLength

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(tracerResource()),
		sdktrace.WithRawSpanLimits(spanLimits),
	)
	tp.RegisterSpanProcessor(utility.NewAttributeSpanProcessor())
	otel.SetTracerProvider(tp)
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		grip.Error(errors.Wrap(err, "otel error"))
	}))

	return func(ctx context.Context) error {
		catcher := grip.NewBasicCatcher()
		catcher.Wrap(tp.Shutdown(ctx), "trace provider shutdown")
		catcher.Wrap(exp.Shutdown(ctx), "trace exporter shutdown")
		return catcher.Resolve()
	}, nil
}

// InitMeter installs a global meter provider that periodically exports
// scenario metrics to the configured collector. The returned function
// flushes and shuts it down. A disabled config installs nothing.
func InitMeter(ctx context.Context, conf TracerConfig) (func(context.Context) error, error) {
	if !conf.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	if err := conf.ValidateAndDefault(); err != nil {
		return nil, errors.Wrap(err, "invalid tracer config")
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(conf.CollectorEndpoint)}
	if conf.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "making otel metrics exporter")
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(tracerResource()),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp,
			sdkmetric.WithInterval(metricsExportInterval),
			sdkmetric.WithTimeout(metricsExportTimeout),
		)),
	)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		return errors.Wrap(mp.Shutdown(ctx), "meter provider shutdown")
	}, nil
}

func tracerResource() *resource.Resource {
	return resource.NewSchemaless(
		semconv.ServiceName("shutdowncheck"),
		semconv.ServiceVersion(ClientVersion),
	)
}
