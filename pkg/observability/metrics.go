package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments of the command gateway
type Metrics struct {
	CommandsAccepted metric.Int64Counter
	CommandsRejected metric.Int64Counter
	CommandDuration  metric.Float64Histogram

	HandoffDuration metric.Float64Histogram
	HandoffErrors   metric.Int64Counter
	DeadLetters     metric.Int64Counter
}

// NewMetrics creates all metric instruments
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.CommandsAccepted, err = meter.Int64Counter(
		"commandgateway.commands.accepted",
		metric.WithDescription("Commands accepted for processing"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating commands.accepted: %w", err)
	}

	m.CommandsRejected, err = meter.Int64Counter(
		"commandgateway.commands.rejected",
		metric.WithDescription("Commands rejected, by error kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating commands.rejected: %w", err)
	}

	m.CommandDuration, err = meter.Float64Histogram(
		"commandgateway.command.duration",
		metric.WithDescription("Time from request to acknowledgment in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating command.duration: %w", err)
	}

	m.HandoffDuration, err = meter.Float64Histogram(
		"commandgateway.handoff.duration",
		metric.WithDescription("Receiver hand-off latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating handoff.duration: %w", err)
	}

	m.HandoffErrors, err = meter.Int64Counter(
		"commandgateway.handoff.errors",
		metric.WithDescription("Failed receiver hand-offs"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating handoff.errors: %w", err)
	}

	m.DeadLetters, err = meter.Int64Counter(
		"commandgateway.deadletters.recorded",
		metric.WithDescription("Commands stored as dead letters"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating deadletters.recorded: %w", err)
	}

	return m, nil
}

// RecordAccepted records an accepted command and its end-to-end duration
func (m *Metrics) RecordAccepted(ctx context.Context, commandName string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("command_name", commandName))

	m.CommandsAccepted.Add(ctx, 1, attrs)
	m.CommandDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordRejected records a command that failed with the given error code
func (m *Metrics) RecordRejected(ctx context.Context, commandName string, errorCode string) {
	m.CommandsRejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command_name", commandName),
		AttrErrorCode.String(errorCode),
	))
}

// RecordHandoff records the latency of a receiver hand-off
func (m *Metrics) RecordHandoff(ctx context.Context, commandName string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("command_name", commandName),
		attribute.Bool("success", err == nil),
	}

	m.HandoffDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	if err != nil {
		m.HandoffErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordDeadLetter records a command stored after a failed hand-off
func (m *Metrics) RecordDeadLetter(ctx context.Context, commandName string) {
	m.DeadLetters.Add(ctx, 1, metric.WithAttributes(attribute.String("command_name", commandName)))
}
