package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys shared by the gateway, the receivers and the span store.
var (
	AttrCommandName   = attribute.Key("command.name")
	AttrCommandID     = attribute.Key("command.id")
	AttrCorrelationID = attribute.Key("command.correlation_id")
	AttrUserID        = attribute.Key("command.user_id")
	AttrAggregateID   = attribute.Key("aggregate.id")
	AttrErrorCode     = attribute.Key("error.code")
)

// SpanOption configures a span after it was started.
type SpanOption func(trace.Span)

// WithAttributes sets attrs on the span.
func WithAttributes(attrs ...attribute.KeyValue) SpanOption {
	return func(span trace.Span) {
		span.SetAttributes(attrs...)
	}
}

// StartSpan starts a span and applies opts to it.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, opts ...SpanOption) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, name)
	for _, opt := range opts {
		opt(span)
	}
	return ctx, span
}

// EndSpan sets the span status from err and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// TraceID returns the id of the trace active in ctx, or "".
func TraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

// CommandAttrs returns the name and, if known, aggregate id of a command.
func CommandAttrs(commandName, aggregateID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{AttrCommandName.String(commandName)}
	if aggregateID != "" {
		attrs = append(attrs, AttrAggregateID.String(aggregateID))
	}
	return attrs
}
