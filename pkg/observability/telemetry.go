// Package observability sets up OpenTelemetry tracing and metrics for the
// command gateway with pluggable exporters.
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// MeterName is the instrumentation scope of the gateway metrics.
const MeterName = "github.com/plaenen/commandgateway"

// Config selects the exporters of a gateway process. A nil TraceExporter
// disables tracing; a nil MetricReader keeps the gateway metrics in memory
// only.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	TraceExporter   sdktrace.SpanExporter
	TraceSampleRate float64

	// SyncExport exports every span as it ends instead of batching.
	SyncExport bool

	MetricReader sdkmetric.Reader

	Logger *slog.Logger
}

// Telemetry holds the providers created by Init.
type Telemetry struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Metrics        *Metrics
	Logger         *slog.Logger

	closers []func(context.Context) error
}

// Init builds the tracer and meter providers and installs them, together with
// the W3C trace context propagator, as the process globals.
func Init(ctx context.Context, cfg Config) (*Telemetry, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	tel := &Telemetry{Logger: logger}
	tel.TracerProvider = tel.tracerProvider(res, cfg)

	mp := sdkmetric.NewMeterProvider(meterOptions(res, cfg.MetricReader)...)
	tel.MeterProvider = mp
	tel.closers = append(tel.closers, mp.Shutdown)
	if tel.Metrics, err = NewMetrics(mp.Meter(MeterName)); err != nil {
		return nil, err
	}
	if cfg.MetricReader != nil {
		otel.SetMeterProvider(mp)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("Telemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.Bool("tracing", cfg.TraceExporter != nil),
		slog.Float64("sample_rate", cfg.TraceSampleRate),
		slog.Bool("metrics_exported", cfg.MetricReader != nil),
	)
	return tel, nil
}

func (t *Telemetry) tracerProvider(res *resource.Resource, cfg Config) trace.TracerProvider {
	if cfg.TraceExporter == nil {
		return noop.NewTracerProvider()
	}

	export := sdktrace.WithBatcher(cfg.TraceExporter)
	if cfg.SyncExport {
		export = sdktrace.WithSyncer(cfg.TraceExporter)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler(cfg.TraceSampleRate))),
		export,
	)
	t.closers = append(t.closers, tp.Shutdown)
	otel.SetTracerProvider(tp)
	return tp
}

func meterOptions(res *resource.Resource, reader sdkmetric.Reader) []sdkmetric.Option {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if reader != nil {
		opts = append(opts, sdkmetric.WithReader(reader))
	}
	return opts
}

// sampler maps a ratio to a root sampler. Commands continuing a remote trace
// follow the caller's decision.
func sampler(rate float64) sdktrace.Sampler {
	if rate <= 0 {
		return sdktrace.NeverSample()
	}
	if rate >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.TraceIDRatioBased(rate)
}

// Shutdown flushes pending spans and metrics, then stops the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	errs := make([]error, 0, len(t.closers))
	for i := len(t.closers) - 1; i >= 0; i-- {
		errs = append(errs, t.closers[i](ctx))
	}
	if err := errors.Join(errs...); err != nil {
		t.Logger.Error("Telemetry shutdown failed", slog.Any("error", err))
		return err
	}
	return nil
}

// Tracer returns a named tracer from the configured provider.
func (t *Telemetry) Tracer(name string) trace.Tracer {
	return t.TracerProvider.Tracer(name)
}

// Meter returns a named meter from the configured provider.
func (t *Telemetry) Meter(name string) metric.Meter {
	return t.MeterProvider.Meter(name)
}
