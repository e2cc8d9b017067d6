package otel

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TracerName is the instrumentation scope used by the broker and mailbox spans.
const TracerName = "github.com/nulzo/model-bridge"

// Tracer returns the bridge tracer from the global provider. Without Setup it is a no-op.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

type Options struct {
	ServiceName    string
	ServiceVersion string
	// SampleRatio outside (0, 1) samples every trace.
	SampleRatio float64
}

func (o Options) sampler() sdktrace.Sampler {
	if o.SampleRatio > 0 && o.SampleRatio < 1 {
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(o.SampleRatio))
	}
	return sdktrace.ParentBased(sdktrace.AlwaysSample())
}

// Setup installs a global tracer provider that pretty-prints spans to w and a W3C
// trace-context propagator, so callers' traceparent headers are continued.
// The returned func flushes pending spans.
func Setup(opts Options, logger *zap.Logger, w io.Writer) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, err
	}

	attrs := []resource.Option{
		resource.WithAttributes(semconv.ServiceName(opts.ServiceName)),
		resource.WithHost(),
		resource.WithProcess(),
	}
	if opts.ServiceVersion != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersion(opts.ServiceVersion)))
	}
	// standalone resource; merging with resource.Default() can clash on schema URL
	res, err := resource.New(context.Background(), attrs...)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(opts.sampler()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("Tracing enabled",
		zap.String("service", opts.ServiceName),
		zap.Float64("sample_ratio", opts.SampleRatio),
	)

	return tp.Shutdown, nil
}
