package telemetry

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const meterName = "github.com/BerylCAtieno/churn-risk-agent"

// InitMetrics installs a global OTLP push exporter when endpoint is set.
// With no endpoint the global no-op provider stays in place. The returned
// function flushes and stops the exporter.
func InitMetrics(ctx context.Context, service, endpoint string) (shutdown func(context.Context) error) {
	noop := func(context.Context) error { return nil }
	if endpoint == "" {
		slog.Info("metrics export disabled")
		return noop
	}

	res, err := sdkresource.Merge(sdkresource.Default(), sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(service),
	))
	if err != nil {
		slog.Warn("metrics resource merge failed", "error", err)
		res = sdkresource.Default()
	}

	ctxInit, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exp, err := otlpmetricgrpc.New(ctxInit,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		slog.Warn("metrics exporter init failed", "error", err)
		return noop
	}

	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(10*time.Second))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)
	slog.Info("metrics initialized", "endpoint", endpoint)
	return mp.Shutdown
}

// Instruments are the churn pipeline's metrics. A nil *Instruments records
// nothing.
type Instruments struct {
	analyses    metric.Int64Counter
	failures    metric.Int64Counter
	probability metric.Float64Histogram
}

// NewInstruments creates the instruments on meter. A nil meter uses the
// global provider.
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	analyses, err := meter.Int64Counter("churn_analyses_total",
		metric.WithDescription("Completed churn analyses by risk tier"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("churn_analysis_failures_total",
		metric.WithDescription("Failed churn analyses by error kind"))
	if err != nil {
		return nil, err
	}
	probability, err := meter.Float64Histogram("churn_probability",
		metric.WithDescription("Churn probability returned by the classifier"),
		metric.WithExplicitBucketBoundaries(0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9))
	if err != nil {
		return nil, err
	}
	return &Instruments{analyses: analyses, failures: failures, probability: probability}, nil
}

// RecordAnalysis counts a completed analysis.
func (i *Instruments) RecordAnalysis(ctx context.Context, tier string, probability float64) {
	if i == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tier", tier))
	i.analyses.Add(ctx, 1, attrs)
	i.probability.Record(ctx, probability, attrs)
}

// RecordFailure counts a failed analysis.
func (i *Instruments) RecordFailure(ctx context.Context, kind string) {
	if i == nil {
		return
	}
	i.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
