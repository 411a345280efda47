package queue_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/plaenen/commandgateway/pkg/application"
	"github.com/plaenen/commandgateway/pkg/command"
	"github.com/plaenen/commandgateway/pkg/gateway"
	"github.com/plaenen/commandgateway/pkg/receiver/queue"
	"github.com/plaenen/commandgateway/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCommand(id string) *command.Enriched {
	return &command.Enriched{ID: id, Envelope: command.Envelope{Name: "clear"}}
}

func TestQueue(t *testing.T) {
	t.Run("enqueue and read", func(t *testing.T) {
		q := queue.New(2)
		require.NoError(t, q.Receive(context.Background(), newCommand("a")))
		assert.Equal(t, 1, q.Len())
		assert.Equal(t, "a", (<-q.Commands()).ID)
	})

	t.Run("full queue fails at deadline", func(t *testing.T) {
		q := queue.New(1)
		require.NoError(t, q.Receive(context.Background(), newCommand("a")))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		err := q.Receive(ctx, newCommand("b"))
		assert.ErrorIs(t, err, queue.ErrQueueFull)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("closed queue", func(t *testing.T) {
		q := queue.New(1)
		require.NoError(t, q.Receive(context.Background(), newCommand("a")))
		q.Close()
		q.Close()

		assert.ErrorIs(t, q.Receive(context.Background(), newCommand("b")), queue.ErrQueueClosed)

		cmd, ok := <-q.Commands()
		require.True(t, ok)
		assert.Equal(t, "a", cmd.ID)
		_, ok = <-q.Commands()
		assert.False(t, ok)
	})
}

func TestConsumerDrainsOnStop(t *testing.T) {
	q := queue.New(8)

	var (
		mu  sync.Mutex
		ids []string
	)
	c := queue.NewConsumer(q, func(_ context.Context, cmd *command.Enriched) error {
		mu.Lock()
		defer mu.Unlock()
		ids = append(ids, cmd.ID)
		return nil
	}, slog.New(slog.DiscardHandler))

	require.NoError(t, q.Receive(context.Background(), newCommand("a")))
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, q.Receive(context.Background(), newCommand("b")))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))

	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestGatewayOverFullQueue(t *testing.T) {
	b := application.NewBuilder()
	b.MustRegister(application.HandlerDescriptor{Context: "shop", Aggregate: "cart", Command: "clear", Schema: schema.EmptyObject()})

	q := queue.New(1)
	g, err := gateway.New(b.Build(), q,
		gateway.WithLogger(slog.New(slog.DiscardHandler)),
		gateway.WithHandoffTimeout(10*time.Millisecond),
	)
	require.NoError(t, err)

	req := gateway.Request{AggregateIdentifier: command.AggregateIdentifier{ID: uuid.NewString()}}

	_, err = g.Invoke(context.Background(), "shop_cart_clear", req)
	require.NoError(t, err)

	_, err = g.Invoke(context.Background(), "shop_cart_clear", req)
	assert.ErrorIs(t, err, gateway.ErrUnknown)
	assert.ErrorIs(t, err, queue.ErrQueueFull)
}
