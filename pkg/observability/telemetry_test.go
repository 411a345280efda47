package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/plaenen/commandgateway/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitWithoutExporters(t *testing.T) {
	tel, err := observability.Init(context.Background(), observability.Config{ServiceName: "test"})
	require.NoError(t, err)
	require.NotNil(t, tel.Metrics)

	_, span := tel.Tracer("test").Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	tel, err := observability.Init(context.Background(), observability.Config{
		ServiceName:  "test",
		MetricReader: reader,
	})
	require.NoError(t, err)
	defer tel.Shutdown(context.Background())

	ctx := context.Background()
	tel.Metrics.RecordAccepted(ctx, "shop.cart.addItem", 5*time.Millisecond)
	tel.Metrics.RecordAccepted(ctx, "shop.cart.addItem", 7*time.Millisecond)
	tel.Metrics.RecordRejected(ctx, "shop.cart.teleport", "CommandNotFound")
	tel.Metrics.RecordDeadLetter(ctx, "shop.cart.addItem")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}

	assert.Equal(t, int64(2), sums["commandgateway.commands.accepted"])
	assert.Equal(t, int64(1), sums["commandgateway.commands.rejected"])
	assert.Equal(t, int64(1), sums["commandgateway.deadletters.recorded"])
}

func TestTracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tel, err := observability.Init(context.Background(), observability.Config{
		ServiceName:     "test",
		TraceExporter:   exporter,
		TraceSampleRate: 1,
	})
	require.NoError(t, err)
	defer tel.Shutdown(context.Background())

	ctx, span := observability.StartSpan(context.Background(), tel.Tracer("test"), "command.shop_cart_addItem",
		observability.WithAttributes(observability.CommandAttrs("shop.cart.addItem", "")...),
	)
	assert.NotEmpty(t, observability.TraceID(ctx))
	observability.EndSpan(span, nil)

	tp, ok := tel.TracerProvider.(*sdktrace.TracerProvider)
	require.True(t, ok)
	require.NoError(t, tp.ForceFlush(context.Background()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "command.shop_cart_addItem", spans[0].Name)
}
