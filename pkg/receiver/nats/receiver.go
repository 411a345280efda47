// Package nats hands enriched commands to the processing engine through a
// NATS JetStream work queue.
//
// Each command is published as JSON to "{prefix}.{context}.{aggregate}.{command}"
// with the command id as message id, so a retried publish is deduplicated by
// the broker. A publish ack means the command is durably queued.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/plaenen/commandgateway/pkg/command"
	"github.com/plaenen/commandgateway/pkg/gateway"
	"go.opentelemetry.io/otel/propagation"
)

// Header names set on every published command.
const (
	HeaderCommandID   = "Command-ID"
	HeaderCommandName = "Command-Name"
)

// Config holds configuration for the JetStream receiver.
type Config struct {
	// URL is the NATS server URL
	URL string

	// StreamName is the JetStream stream holding commands
	StreamName string

	// SubjectPrefix is the first subject token of every command
	SubjectPrefix string

	// MaxAge is how long unconsumed commands are retained
	MaxAge time.Duration

	// DuplicateWindow is how long the broker remembers message ids
	DuplicateWindow time.Duration

	// ConnectOptions are passed to nats.Connect, e.g. credentials
	ConnectOptions []nats.Option

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults for the JetStream receiver.
func DefaultConfig() Config {
	return Config{
		URL:             nats.DefaultURL,
		StreamName:      "COMMANDS",
		SubjectPrefix:   "commands",
		MaxAge:          7 * 24 * time.Hour,
		DuplicateWindow: 2 * time.Minute,
	}
}

// Receiver publishes commands to JetStream. It implements gateway.Receiver.
type Receiver struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	config  Config
	ownConn bool
	logger  *slog.Logger

	mu   sync.Mutex
	subs []*nats.Subscription
}

var _ gateway.Receiver = (*Receiver)(nil)

// New connects to NATS and ensures the command stream exists.
func New(config Config) (*Receiver, error) {
	nc, err := nats.Connect(config.URL, config.ConnectOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	r, err := NewWithConn(nc, config)
	if err != nil {
		nc.Close()
		return nil, err
	}
	r.ownConn = true
	return r, nil
}

// NewWithConn uses an existing connection. The caller keeps ownership of nc.
func NewWithConn(nc *nats.Conn, config Config) (*Receiver, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Receiver{
		nc:     nc,
		js:     js,
		config: config,
		logger: logger,
	}

	if err := r.ensureStream(); err != nil {
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}

	return r, nil
}

// ensureStream creates the work-queue stream or updates its limits.
func (r *Receiver) ensureStream() error {
	streamConfig := &nats.StreamConfig{
		Name:       r.config.StreamName,
		Subjects:   []string{r.config.SubjectPrefix + ".>"},
		Retention:  nats.WorkQueuePolicy, // Commands are deleted once acked
		MaxAge:     r.config.MaxAge,
		Duplicates: r.config.DuplicateWindow,
		Storage:    nats.FileStorage,
		Replicas:   1,
	}

	stream, err := r.js.StreamInfo(r.config.StreamName)
	if err != nil {
		if _, err := r.js.AddStream(streamConfig); err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
		return nil
	}

	if stream.Config.MaxAge != streamConfig.MaxAge || stream.Config.Duplicates != streamConfig.Duplicates {
		if _, err := r.js.UpdateStream(streamConfig); err != nil {
			return fmt.Errorf("failed to update stream: %w", err)
		}
	}

	return nil
}

// Subject returns the subject cmd is published to.
func (r *Receiver) Subject(cmd *command.Enriched) string {
	return fmt.Sprintf("%s.%s.%s.%s", r.config.SubjectPrefix,
		cmd.ContextIdentifier.Name, cmd.AggregateIdentifier.Name, cmd.Name)
}

// Receive publishes cmd and waits for the stream ack.
func (r *Receiver) Receive(ctx context.Context, cmd *command.Enriched) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to serialize command %s: %w", cmd.ID, err)
	}

	msg := nats.NewMsg(r.Subject(cmd))
	msg.Data = data
	msg.Header.Set(HeaderCommandID, cmd.ID)
	msg.Header.Set(HeaderCommandName, cmd.FullyQualifiedName())
	propagation.TraceContext{}.Inject(ctx, &headerCarrier{header: msg.Header})

	ack, err := r.js.PublishMsg(msg, nats.MsgId(cmd.ID), nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to publish command %s: %w", cmd.ID, err)
	}

	if ack.Duplicate {
		r.logger.WarnContext(ctx, "Duplicate command publish ignored by broker",
			slog.String("command_id", cmd.ID),
			slog.Uint64("stream_sequence", ack.Sequence),
		)
	}
	return nil
}

// Handler processes one command taken from the stream. Returning an error
// redelivers the command.
type Handler func(ctx context.Context, cmd *command.Enriched) error

// Subscribe starts a durable consumer for all commands. It is used by the
// processing engine, not by the gateway.
func (r *Receiver) Subscribe(durable string, handler Handler) (*nats.Subscription, error) {
	sub, err := r.js.Subscribe(
		r.config.SubjectPrefix+".>",
		func(msg *nats.Msg) {
			var cmd command.Enriched
			if err := json.Unmarshal(msg.Data, &cmd); err != nil {
				r.logger.Error("Dropping undecodable command",
					slog.String("subject", msg.Subject),
					slog.String("error", err.Error()),
				)
				msg.Term()
				return
			}

			ctx := context.Background()
			if msg.Header != nil {
				ctx = propagation.TraceContext{}.Extract(ctx, &headerCarrier{header: msg.Header})
			}

			if err := handler(ctx, &cmd); err != nil {
				r.logger.Warn("Command handler failed, redelivering",
					slog.String("command_id", cmd.ID),
					slog.String("error", err.Error()),
				)
				msg.Nak()
				return
			}

			msg.Ack()
		},
		nats.Durable(durable),
		nats.ManualAck(),
		nats.AckExplicit(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()

	return sub, nil
}

// Close drains subscriptions and closes the connection if the receiver opened it.
func (r *Receiver) Close() error {
	r.mu.Lock()
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Drain(); err != nil {
			r.logger.Warn("Failed to drain subscription", slog.String("error", err.Error()))
		}
	}

	if r.ownConn {
		r.nc.Close()
	}
	return nil
}

// URL returns the URL of the connected server.
func (r *Receiver) URL() string {
	return r.nc.ConnectedUrl()
}

// HealthCheck reports an error unless the connection is established.
func (r *Receiver) HealthCheck() error {
	if status := r.nc.Status(); status != nats.CONNECTED {
		return fmt.Errorf("nats connection %s", status)
	}
	return nil
}

// headerCarrier adapts NATS headers to propagation.TextMapCarrier.
type headerCarrier struct {
	header nats.Header
}

func (c *headerCarrier) Get(key string) string {
	return c.header.Get(key)
}

func (c *headerCarrier) Set(key, value string) {
	c.header.Set(key, value)
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.header))
	for k := range c.header {
		keys = append(keys, k)
	}
	return keys
}
