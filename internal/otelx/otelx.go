// Package otelx configures the global OpenTelemetry tracer provider and
// propagators for the opengraph server.
package otelx

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/xerrors"
)

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

func noShutdown(context.Context) error { return nil }

type Options struct {
	Enabled   bool
	Endpoint  string // host:port of the OTLP gRPC collector
	Insecure  bool
	Sample    float64 // root span ratio, clamped to [0,1]
	Service   string
	Component string
	Version   string

	// Attributes are added to the trace resource, e.g. site.url.
	Attributes map[string]string
	// DialTimeout bounds exporter construction. default: 3s
	DialTimeout time.Duration
}

func (o *Options) setDefaults() {
	if o.Service == "" {
		o.Service = "opengraph"
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 3 * time.Second
	}
}

// Init installs W3C trace-context and baggage propagation and a tracer
// provider. Disabled tracing still gets an SDK provider that starts no root
// traces but follows sampled parents, so traceparent headers keep flowing.
// The returned func is never nil.
func Init(ctx context.Context, o Options) (ShutdownFunc, error) {
	o.setDefaults()
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	if !o.Enabled {
		otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSampler(sampler(0))))
		return noShutdown, nil
	}
	if o.Endpoint == "" {
		return noShutdown, xerrors.New("otelx: tracing enabled without an OTLP endpoint")
	}

	exp, err := dialExporter(ctx, o)
	if err != nil {
		return noShutdown, xerrors.Wrapf(err, "otelx: OTLP exporter for %s", o.Endpoint)
	}

	// a partial resource is still usable; detector errors are dropped
	res, _ := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithHost(),
		resource.WithAttributes(resourceAttributes(o)...),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler(o.Sample)),
		sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// sampler honours the parent's decision and samples roots by ratio.
func sampler(ratio float64) sdktrace.Sampler {
	var root sdktrace.Sampler
	switch {
	case ratio <= 0:
		root = sdktrace.NeverSample()
	case ratio >= 1:
		root = sdktrace.AlwaysSample()
	default:
		root = sdktrace.TraceIDRatioBased(ratio)
	}
	return sdktrace.ParentBased(root)
}

func dialExporter(ctx context.Context, o Options) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(o.Endpoint),
		otlptracegrpc.WithDialOption(grpc.WithUserAgent(userAgent(o))),
	}
	if o.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	ctx, cancel := context.WithTimeout(ctx, o.DialTimeout)
	defer cancel()
	return otlptracegrpc.New(ctx, opts...)
}

func userAgent(o Options) string {
	if o.Version == "" {
		return o.Service
	}
	return o.Service + "/" + o.Version
}

func resourceAttributes(o Options) []attribute.KeyValue {
	name := o.Service
	if o.Component != "" {
		name += "." + o.Component
	}
	attrs := make([]attribute.KeyValue, 0, 2+len(o.Attributes))
	attrs = append(attrs, semconv.ServiceName(name), semconv.ServiceVersion(o.Version))
	for k, v := range o.Attributes {
		if v != "" {
			attrs = append(attrs, attribute.String(k, v))
		}
	}
	return attrs
}
