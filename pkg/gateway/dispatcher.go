package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/plaenen/commandgateway/pkg/command"
	"github.com/plaenen/commandgateway/pkg/observability"
	"github.com/plaenen/commandgateway/pkg/validators"
)

// Receiver accepts enriched commands for processing. Receive returns once the
// command is durably queued, not once it has been processed.
type Receiver interface {
	Receive(ctx context.Context, cmd *command.Enriched) error
}

// ReceiverFunc is a function adapter for Receiver.
type ReceiverFunc func(ctx context.Context, cmd *command.Enriched) error

// Receive implements Receiver.
func (f ReceiverFunc) Receive(ctx context.Context, cmd *command.Enriched) error {
	return f(ctx, cmd)
}

// DeadLetterRecorder stores commands whose hand-off failed so an operator can
// inspect or replay them.
type DeadLetterRecorder interface {
	Record(ctx context.Context, cmd *command.Enriched, cause error) error
}

// Dispatcher hands enriched commands to the receiver. It never retries.
type Dispatcher struct {
	receiver    Receiver
	timeout     time.Duration
	deadLetters DeadLetterRecorder
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// Dispatch logs the command and hands it off. A failed hand-off is recorded as
// a dead letter, if configured, and returned as UnknownError.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd *command.Enriched) error {
	d.logger.InfoContext(ctx, "Command received.",
		slog.String("command_id", cmd.ID),
		slog.String("command_name", cmd.FullyQualifiedName()),
		slog.String("aggregate_id", cmd.AggregateIdentifier.ID),
		slog.String("correlation_id", cmd.Metadata.CorrelationID),
		slog.String("user_id", cmd.Metadata.Client.User.ID),
		slog.String("client_ip", cmd.Metadata.Client.IP),
		slog.String("token", maskToken(cmd.Metadata.Client.Token)),
		slog.Time("timestamp", cmd.Metadata.Timestamp),
		slog.String("trace_id", observability.TraceID(ctx)),
		slog.Any("data", cmd.Data),
	)

	// The caller going away must not abort a hand-off that already started.
	handoffCtx := context.WithoutCancel(ctx)
	if d.timeout > 0 {
		var cancel context.CancelFunc
		handoffCtx, cancel = context.WithTimeout(handoffCtx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	err := d.receiver.Receive(handoffCtx, cmd)
	if d.metrics != nil {
		d.metrics.RecordHandoff(ctx, cmd.FullyQualifiedName(), time.Since(start), err)
	}
	if err == nil {
		return nil
	}

	d.logger.ErrorContext(ctx, "Command hand-off failed",
		slog.String("command_id", cmd.ID),
		slog.String("command_name", cmd.FullyQualifiedName()),
		slog.String("error", err.Error()),
	)

	if d.deadLetters != nil {
		if recErr := d.deadLetters.Record(context.WithoutCancel(ctx), cmd, err); recErr != nil {
			d.logger.ErrorContext(ctx, "Failed to record dead letter",
				slog.String("command_id", cmd.ID),
				slog.String("error", recErr.Error()),
			)
		} else if d.metrics != nil {
			d.metrics.RecordDeadLetter(ctx, cmd.FullyQualifiedName())
		}
	}

	return newError(ErrUnknown, fmt.Sprintf("failed to hand off command '%s'", cmd.ID), err)
}

func maskToken(token string) string {
	if token == "" {
		return ""
	}
	return validators.MaskString(token)
}
