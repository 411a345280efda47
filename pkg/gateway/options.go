package gateway

import (
	"log/slog"
	"time"

	"github.com/plaenen/commandgateway/pkg/observability"
	"go.opentelemetry.io/otel/trace"
)

// DefaultHandoffTimeout bounds a single hand-off to the receiver.
const DefaultHandoffTimeout = 10 * time.Second

type options struct {
	logger         *slog.Logger
	tracer         trace.Tracer
	metrics        *observability.Metrics
	clock          Clock
	newID          IDGenerator
	handoffTimeout time.Duration
	deadLetters    DeadLetterRecorder
}

// Option configures a Gateway.
type Option func(*options)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTracer sets the tracer used for per-command spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithMetrics enables command metrics.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// WithClock overrides the clock used for command timestamps.
func WithClock(clock Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithIDGenerator overrides the command id generator.
// Ids must be globally unique across gateway instances.
func WithIDGenerator(newID IDGenerator) Option {
	return func(o *options) {
		o.newID = newID
	}
}

// WithHandoffTimeout bounds each hand-off. Zero disables the bound.
func WithHandoffTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.handoffTimeout = timeout
	}
}

// WithDeadLetters records commands whose hand-off failed.
func WithDeadLetters(recorder DeadLetterRecorder) Option {
	return func(o *options) {
		o.deadLetters = recorder
	}
}
