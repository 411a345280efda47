package embeddednats_test

import (
	"context"
	"log/slog"
	"testing"

	natsclient "github.com/nats-io/nats.go"
	"github.com/plaenen/commandgateway/pkg/infrastructure/nats"
	"github.com/plaenen/commandgateway/pkg/runtime/embeddednats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newService(t *testing.T, opts ...embeddednats.Option) *embeddednats.Service {
	opts = append([]embeddednats.Option{
		embeddednats.WithLogger(slog.New(slog.DiscardHandler)),
		embeddednats.WithNATSOptions(nats.WithStoreDir(t.TempDir())),
	}, opts...)
	return embeddednats.New(opts...)
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	service := newService(t)

	assert.Equal(t, "embedded-nats", service.Name())
	assert.Empty(t, service.URL())
	assert.ErrorIs(t, service.HealthCheck(ctx), embeddednats.ErrNotStarted)

	require.NoError(t, service.Start(ctx))
	assert.NotEmpty(t, service.URL())
	assert.NotNil(t, service.Server())
	assert.NoError(t, service.HealthCheck(ctx))

	nc, err := natsclient.Connect(service.URL())
	require.NoError(t, err)
	_, err = nc.JetStream()
	assert.NoError(t, err)
	nc.Close()

	require.NoError(t, service.Stop(ctx))
}

func TestServiceStopWithoutStart(t *testing.T) {
	assert.NoError(t, newService(t).Stop(context.Background()))
}

func TestServiceTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	service := newService(t, embeddednats.WithTracer(provider.Tracer("test")))

	ctx := context.Background()
	require.NoError(t, service.Start(ctx))
	require.NoError(t, service.Stop(ctx))

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.Equal(t, []string{"embeddednats.Start", "embeddednats.Stop"}, names)
}
