package middleware

import (
	"context"

	"github.com/plaenen/commandgateway/pkg/command"
	"github.com/plaenen/commandgateway/pkg/gateway"
	"github.com/plaenen/commandgateway/pkg/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Tracing records a "receive {context.aggregate.command}" span around the
// wrapped receiver. A nil tracer uses the global provider.
func Tracing(tracer trace.Tracer) Middleware {
	if tracer == nil {
		tracer = otel.Tracer("github.com/plaenen/commandgateway/pkg/middleware")
	}

	return func(next gateway.Receiver) gateway.Receiver {
		return gateway.ReceiverFunc(func(ctx context.Context, cmd *command.Enriched) (err error) {
			attrs := append(observability.CommandAttrs(cmd.FullyQualifiedName(), cmd.AggregateIdentifier.ID),
				observability.AttrCommandID.String(cmd.ID),
				observability.AttrCorrelationID.String(cmd.Metadata.CorrelationID),
				observability.AttrUserID.String(cmd.Metadata.Initiator.User.ID),
			)

			ctx, span := observability.StartSpan(ctx, tracer, "receive "+cmd.FullyQualifiedName(),
				observability.WithAttributes(attrs...),
			)
			defer func() { observability.EndSpan(span, err) }()

			return next.Receive(ctx, cmd)
		})
	}
}
