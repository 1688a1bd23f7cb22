package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"

	"bus-finder/internal/common/logger"
)

// Observability bundles the otel meter and tracer used by the search path.
// The zero value is usable and records nothing.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracer         trace.Tracer
	searchCounter  otelmetric.Int64Counter
	searchDuration otelmetric.Float64Histogram
	catalogRoutes  otelmetric.Int64Gauge
}

// New wires an otel MeterProvider to the default prometheus registry, so
// the instruments show up on /metrics next to the promauto ones.
func New(serviceName string, log logger.Logger) *Observability {
	obs := &Observability{tracer: otel.Tracer(serviceName)}

	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("failed to create prometheus exporter", map[string]interface{}{"error": err})
		return obs
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter(serviceName)

	obs.meterProvider = provider
	obs.searchCounter, _ = meter.Int64Counter(
		"searches.processed",
		otelmetric.WithDescription("Number of bus searches processed"),
	)
	obs.searchDuration, _ = meter.Float64Histogram(
		"searches.duration",
		otelmetric.WithDescription("Bus search duration"),
		otelmetric.WithUnit("ms"),
	)
	obs.catalogRoutes, _ = meter.Int64Gauge(
		"catalog.routes",
		otelmetric.WithDescription("Routes loaded per state"),
	)

	return obs
}

// StartSpan opens a span on the service tracer. Without a configured
// TracerProvider the span is a no-op.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := o.tracer
	if tracer == nil {
		tracer = otel.Tracer("bus-finder")
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordSearch(ctx context.Context, outcome string, duration time.Duration) {
	attrs := otelmetric.WithAttributes(attribute.String("outcome", outcome))
	if o.searchCounter != nil {
		o.searchCounter.Add(ctx, 1, attrs)
	}
	if o.searchDuration != nil {
		o.searchDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) RecordCatalogRoutes(ctx context.Context, state string, routes int) {
	if o.catalogRoutes != nil {
		o.catalogRoutes.Record(ctx, int64(routes), otelmetric.WithAttributes(attribute.String("state", state)))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.meterProvider.Shutdown(ctx)
	}
}
