package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/plaenen/commandgateway/pkg/command"
	"github.com/plaenen/commandgateway/pkg/gateway"
)

// Logging logs the outcome and duration of every receive.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next gateway.Receiver) gateway.Receiver {
		return gateway.ReceiverFunc(func(ctx context.Context, cmd *command.Enriched) error {
			start := time.Now()

			err := next.Receive(ctx, cmd)

			attrs := []any{
				slog.String("command_id", cmd.ID),
				slog.String("command_name", cmd.FullyQualifiedName()),
				slog.String("correlation_id", cmd.Metadata.CorrelationID),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			}
			if err != nil {
				logger.ErrorContext(ctx, "Command receive failed", append(attrs, slog.String("error", err.Error()))...)
				return err
			}

			logger.DebugContext(ctx, "Command received by downstream", attrs...)
			return nil
		})
	}
}
