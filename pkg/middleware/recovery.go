package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/plaenen/commandgateway/pkg/command"
	"github.com/plaenen/commandgateway/pkg/gateway"
)

// Recovery turns a panic in the wrapped receiver into an error.
func Recovery(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next gateway.Receiver) gateway.Receiver {
		return gateway.ReceiverFunc(func(ctx context.Context, cmd *command.Enriched) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "Command receiver panicked",
						slog.String("command_id", cmd.ID),
						slog.String("command_name", cmd.FullyQualifiedName()),
						slog.Any("panic", r),
						slog.String("stack_trace", string(debug.Stack())),
					)
					err = fmt.Errorf("command receiver panicked: %v", r)
				}
			}()

			return next.Receive(ctx, cmd)
		})
	}
}
