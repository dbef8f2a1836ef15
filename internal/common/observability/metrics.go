package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Observability owns the OpenTelemetry meter and tracer providers.
type Observability struct {
	registry       *prometheus.Registry
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer

	requestCounter  otelmetric.Int64Counter
	requestDuration otelmetric.Float64Histogram
}

// Options configures New. An empty JaegerEndpoint keeps tracing in-process.
type Options struct {
	ServiceName    string
	JaegerEndpoint string
	Logger         Logger
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
}

func New(opts Options) *Observability {
	o := &Observability{
		registry: prometheus.NewRegistry(),
		tracer:   noop.NewTracerProvider().Tracer(opts.ServiceName),
	}

	// OpenTelemetry instruments live in their own registry under the "otel"
	// namespace so they never clash with the promauto collectors.
	exporter, err := otelprom.New(
		otelprom.WithRegisterer(o.registry),
		otelprom.WithNamespace("otel"),
	)
	if err != nil {
		if opts.Logger != nil {
			opts.Logger.Warn("failed to create prometheus exporter", map[string]interface{}{"error": err.Error()})
		}
	} else {
		o.meterProvider = metric.NewMeterProvider(metric.WithReader(exporter))
		otel.SetMeterProvider(o.meterProvider)
		o.meter = o.meterProvider.Meter(opts.ServiceName)

		o.requestCounter, _ = o.meter.Int64Counter(
			"gateway.requests",
			otelmetric.WithDescription("Number of proxied dashboard requests"),
		)
		o.requestDuration, _ = o.meter.Float64Histogram(
			"gateway.request.duration",
			otelmetric.WithDescription("End-to-end gateway request duration"),
			otelmetric.WithUnit("ms"),
		)
	}

	tp, err := newTracerProvider(opts.ServiceName, opts.JaegerEndpoint)
	if err != nil {
		if opts.Logger != nil {
			opts.Logger.Warn("failed to create tracer provider", map[string]interface{}{"error": err.Error()})
		}
		return o
	}
	o.tracerProvider = tp
	otel.SetTracerProvider(tp)
	o.tracer = tp.Tracer(opts.ServiceName)

	return o
}

// Tracer returns the tracer used for upstream spans.
func (o *Observability) Tracer() trace.Tracer {
	if o == nil || o.tracer == nil {
		return noop.NewTracerProvider().Tracer("")
	}
	return o.tracer
}

// Gatherer exposes the OpenTelemetry metrics for scraping.
func (o *Observability) Gatherer() prometheus.Gatherer {
	if o == nil || o.registry == nil {
		return prometheus.NewRegistry()
	}
	return o.registry
}

func (o *Observability) RecordRequest(ctx context.Context, resource, method string, status int, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("resource", resource),
		attribute.String("method", method),
		attribute.Int("status", status),
	)
	if o.requestCounter != nil {
		o.requestCounter.Add(ctx, 1, attrs)
	}
	if o.requestDuration != nil {
		o.requestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
}
