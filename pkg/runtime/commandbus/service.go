// Package commandbus runs the JetStream command receiver as a runner.Service.
//
// The service connects to NATS (or to an embedded server when no URL is
// configured), ensures the command stream and optionally starts a durable
// consumer. It implements gateway.Receiver itself so a gateway can be built
// before the runner starts it.
//
//	bus := commandbus.New(commandbus.WithConfig(cfg))
//	gw, _ := gateway.New(app, bus)
//	runner.New([]runner.Service{bus}).Run(ctx)
package commandbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/plaenen/commandgateway/pkg/command"
	"github.com/plaenen/commandgateway/pkg/gateway"
	"github.com/plaenen/commandgateway/pkg/infrastructure/nats"
	"github.com/plaenen/commandgateway/pkg/observability"
	natsreceiver "github.com/plaenen/commandgateway/pkg/receiver/nats"
	"github.com/plaenen/commandgateway/pkg/runner"
	"github.com/plaenen/commandgateway/pkg/runtime/embeddednats"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ErrNotStarted is returned by Receive and HealthCheck before Start succeeded.
var ErrNotStarted = errors.New("command bus not started")

// Service owns the receiver and, when configured, an embedded server.
type Service struct {
	config      natsreceiver.Config
	natsOptions []nats.Option
	durable     string
	handler     natsreceiver.Handler
	logger      *slog.Logger
	tracer      trace.Tracer

	mu       sync.RWMutex
	embedded *embeddednats.Service
	receiver *natsreceiver.Receiver
}

// Option configures the service.
type Option func(*Service)

// WithConfig sets the receiver configuration. An empty URL starts an
// embedded server.
func WithConfig(config natsreceiver.Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithEmbeddedOptions sets the options of the embedded server.
func WithEmbeddedOptions(opts ...nats.Option) Option {
	return func(s *Service) {
		s.natsOptions = opts
	}
}

// WithConsumer processes queued commands with handler on a durable consumer.
func WithConsumer(durable string, handler natsreceiver.Handler) Option {
	return func(s *Service) {
		s.durable = durable
		s.handler = handler
	}
}

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

// New creates a command bus service.
func New(opts ...Option) *Service {
	s := &Service{
		config: natsreceiver.DefaultConfig(),
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer("commandbus"),
	}
	s.config.URL = ""

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the service name.
func (s *Service) Name() string {
	return "commandbus"
}

// Start connects the receiver and starts the consumer if one is configured.
func (s *Service) Start(ctx context.Context) (err error) {
	ctx, span := observability.StartSpan(ctx, s.tracer, "commandbus.Start")
	defer func() { observability.EndSpan(span, err) }()

	config := s.config
	if config.Logger == nil {
		config.Logger = s.logger
	}

	var embedded *embeddednats.Service
	if config.URL == "" {
		embedded = embeddednats.New(
			embeddednats.WithLogger(s.logger),
			embeddednats.WithTracer(s.tracer),
			embeddednats.WithNATSOptions(s.natsOptions...),
		)
		if err := embedded.Start(ctx); err != nil {
			return err
		}
		config.URL = embedded.URL()
	}

	receiver, err := natsreceiver.New(config)
	if err != nil {
		s.stopEmbedded(ctx, embedded)
		return fmt.Errorf("failed to create receiver: %w", err)
	}

	if s.handler != nil {
		if _, err := receiver.Subscribe(s.durable, s.handler); err != nil {
			receiver.Close()
			s.stopEmbedded(ctx, embedded)
			return err
		}
	}

	s.mu.Lock()
	s.embedded = embedded
	s.receiver = receiver
	s.mu.Unlock()

	span.SetAttributes(
		attribute.String("nats.url", config.URL),
		attribute.String("stream.name", config.StreamName),
		attribute.Bool("nats.embedded", embedded != nil),
	)
	s.logger.InfoContext(ctx, "Command bus started",
		slog.String("url", config.URL),
		slog.String("stream", config.StreamName),
		slog.Bool("embedded", embedded != nil),
	)
	return nil
}

func (s *Service) stopEmbedded(ctx context.Context, embedded *embeddednats.Service) {
	if embedded == nil {
		return
	}
	if err := embedded.Stop(ctx); err != nil {
		s.logger.WarnContext(ctx, "Failed to stop embedded NATS", slog.String("error", err.Error()))
	}
}

// Stop drains the consumer, closes the receiver and then the embedded server.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	receiver, embedded := s.receiver, s.embedded
	s.receiver, s.embedded = nil, nil
	s.mu.Unlock()

	if receiver == nil {
		return nil
	}

	_, span := observability.StartSpan(ctx, s.tracer, "commandbus.Stop")
	defer observability.EndSpan(span, nil)

	if err := receiver.Close(); err != nil {
		s.logger.WarnContext(ctx, "Failed to close receiver", slog.String("error", err.Error()))
	}
	s.stopEmbedded(ctx, embedded)

	s.logger.InfoContext(ctx, "Command bus stopped")
	return nil
}

// Receive hands cmd to the receiver.
func (s *Service) Receive(ctx context.Context, cmd *command.Enriched) error {
	s.mu.RLock()
	receiver := s.receiver
	s.mu.RUnlock()

	if receiver == nil {
		return ErrNotStarted
	}
	return receiver.Receive(ctx, cmd)
}

// HealthCheck reports whether the receiver is connected and, in embedded
// mode, whether the server accepts connections.
func (s *Service) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	receiver, embedded := s.receiver, s.embedded
	s.mu.RUnlock()

	if receiver == nil {
		return ErrNotStarted
	}
	if embedded != nil {
		if err := embedded.HealthCheck(ctx); err != nil {
			return err
		}
	}
	return receiver.HealthCheck()
}

// URL returns the NATS URL in use. Empty until Start succeeds.
func (s *Service) URL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.receiver == nil {
		return ""
	}
	return s.receiver.URL()
}

var (
	_ runner.HealthChecker = (*Service)(nil)
	_ gateway.Receiver     = (*Service)(nil)
)
