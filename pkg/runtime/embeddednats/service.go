// Package embeddednats runs an embedded NATS server as a runner.Service.
package embeddednats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/plaenen/commandgateway/pkg/infrastructure/nats"
	"github.com/plaenen/commandgateway/pkg/observability"
	"github.com/plaenen/commandgateway/pkg/runner"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ErrNotStarted is returned by HealthCheck before Start succeeded.
var ErrNotStarted = errors.New("nats server not started")

// Service wraps an embedded NATS server with JetStream.
type Service struct {
	server      *nats.EmbeddedServer
	logger      *slog.Logger
	tracer      trace.Tracer
	natsOptions []nats.Option
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets the logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracer sets the tracer for lifecycle spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithNATSOptions sets the options passed to nats.StartEmbeddedServer.
//
//	service := embeddednats.New(
//	    embeddednats.WithNATSOptions(
//	        nats.WithPort(4222),
//	        nats.WithStoreDir("/var/lib/gateway/nats"),
//	    ),
//	)
func WithNATSOptions(opts ...nats.Option) Option {
	return func(s *Service) {
		s.natsOptions = opts
	}
}

// New creates an embedded NATS service.
func New(opts ...Option) *Service {
	s := &Service{
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer("embeddednats"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the service name.
func (s *Service) Name() string {
	return "embedded-nats"
}

// Start starts the server and waits until it accepts connections.
func (s *Service) Start(ctx context.Context) (err error) {
	ctx, span := observability.StartSpan(ctx, s.tracer, "embeddednats.Start")
	defer func() { observability.EndSpan(span, err) }()

	opts := append([]nats.Option{nats.WithLogger(s.logger)}, s.natsOptions...)
	srv, err := nats.StartEmbeddedServer(opts...)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to start embedded NATS", slog.String("error", err.Error()))
		return fmt.Errorf("failed to start embedded NATS: %w", err)
	}
	s.server = srv

	span.SetAttributes(attribute.String("nats.url", srv.URL()))
	s.logger.InfoContext(ctx, "Embedded NATS started", slog.String("url", srv.URL()))
	return nil
}

// Stop shuts the server down. It is safe to call without Start.
func (s *Service) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	_, span := observability.StartSpan(ctx, s.tracer, "embeddednats.Stop")
	defer observability.EndSpan(span, nil)

	s.server.Shutdown()
	s.logger.InfoContext(ctx, "Embedded NATS stopped")
	return nil
}

// HealthCheck verifies the server accepts client connections.
func (s *Service) HealthCheck(ctx context.Context) (err error) {
	_, span := observability.StartSpan(ctx, s.tracer, "embeddednats.HealthCheck")
	defer func() { observability.EndSpan(span, err) }()

	if s.server == nil {
		return ErrNotStarted
	}

	nc, err := nats.ConnectToEmbedded(s.server)
	if err != nil {
		return fmt.Errorf("nats server not responsive: %w", err)
	}
	nc.Close()
	return nil
}

// URL returns the client URL. Empty until Start succeeds.
func (s *Service) URL() string {
	if s.server == nil {
		return ""
	}
	return s.server.URL()
}

// Server returns the underlying server. Nil until Start succeeds.
func (s *Service) Server() *nats.EmbeddedServer {
	return s.server
}

var (
	_ runner.Service       = (*Service)(nil)
	_ runner.HealthChecker = (*Service)(nil)
)
