// Package queue is an in-process command receiver backed by a bounded channel.
// It suits single-binary deployments where the processing engine runs in the
// same process as the gateway.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/plaenen/commandgateway/pkg/command"
	"github.com/plaenen/commandgateway/pkg/gateway"
)

var (
	// ErrQueueFull is returned when no slot frees up before the hand-off deadline.
	ErrQueueFull = errors.New("command queue is full")

	// ErrQueueClosed is returned when receiving on a closed queue.
	ErrQueueClosed = errors.New("command queue is closed")
)

// DefaultCapacity is the queue capacity used when none is configured.
const DefaultCapacity = 1024

// Queue buffers enriched commands for a consumer. It implements gateway.Receiver.
type Queue struct {
	commands chan *command.Enriched

	mu     sync.RWMutex
	closed bool
}

var _ gateway.Receiver = (*Queue)(nil)

// New creates a queue holding up to capacity commands.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{commands: make(chan *command.Enriched, capacity)}
}

// Receive enqueues cmd, waiting for a free slot until ctx is done.
func (q *Queue) Receive(ctx context.Context, cmd *command.Enriched) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.commands <- cmd:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrQueueFull, ctx.Err())
	}
}

// Commands returns the channel the consumer reads from. It is closed by Close.
func (q *Queue) Commands() <-chan *command.Enriched {
	return q.commands
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	return len(q.commands)
}

// Close stops accepting commands. Already queued commands stay readable.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.commands)
	}
}

// Handler processes one dequeued command.
type Handler func(ctx context.Context, cmd *command.Enriched) error

// Consumer drains a queue into a handler on one goroutine. It implements
// runner.Service so it can be run next to the gateway.
type Consumer struct {
	queue   *Queue
	handler Handler
	logger  *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewConsumer creates a consumer for q.
func NewConsumer(q *Queue, handler Handler, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{queue: q, handler: handler, logger: logger}
}

// Name returns the service name.
func (c *Consumer) Name() string {
	return "command-queue-consumer"
}

// Start launches the consume loop.
func (c *Consumer) Start(context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(ctx)
	return nil
}

func (c *Consumer) run(ctx context.Context) {
	defer close(c.done)

	for cmd := range c.queue.Commands() {
		if err := c.handler(ctx, cmd); err != nil {
			c.logger.ErrorContext(ctx, "Command processing failed",
				slog.String("command_id", cmd.ID),
				slog.String("command_name", cmd.FullyQualifiedName()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Stop closes the queue and waits until queued commands are processed or ctx expires.
func (c *Consumer) Stop(ctx context.Context) error {
	if c.done == nil {
		return nil
	}

	c.queue.Close()

	select {
	case <-c.done:
		c.cancel()
		return nil
	case <-ctx.Done():
		c.cancel()
		return fmt.Errorf("queue not drained: %w", ctx.Err())
	}
}
