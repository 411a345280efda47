package sqlite_test

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/plaenen/commandgateway/pkg/application"
	"github.com/plaenen/commandgateway/pkg/command"
	deadletter "github.com/plaenen/commandgateway/pkg/deadletter/sqlite"
	"github.com/plaenen/commandgateway/pkg/gateway"
	"github.com/plaenen/commandgateway/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *deadletter.Store {
	t.Helper()
	store, err := deadletter.New(deadletter.WithMemoryDatabase())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func enriched(name string) *command.Enriched {
	id := uuid.NewString()
	return &command.Enriched{
		Envelope: command.Envelope{
			ContextIdentifier:   command.ContextIdentifier{Name: "shop"},
			AggregateIdentifier: command.AggregateIdentifier{Name: "cart", ID: uuid.NewString()},
			Name:                name,
			Data:                map[string]any{},
		},
		ID:       id,
		Metadata: command.Metadata{CausationID: id, CorrelationID: id},
	}
}

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	first := enriched("addItem")
	second := enriched("clear")
	require.NoError(t, store.Record(ctx, first, errors.New("broker down")))
	require.NoError(t, store.Record(ctx, second, errors.New("timeout")))

	letters, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, letters, 2)

	assert.Equal(t, first.ID, letters[0].Command.ID)
	assert.Equal(t, "broker down", letters[0].Error)
	assert.Equal(t, "shop.cart.addItem", letters[0].Command.FullyQualifiedName())
	assert.Equal(t, second.ID, letters[1].Command.ID)
	assert.False(t, letters[0].RecordedAt.IsZero())

	limited, err := store.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGetAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	require.NoError(t, store.Record(ctx, enriched("clear"), errors.New("boom")))
	letters, err := store.List(ctx, 0)
	require.NoError(t, err)
	id := letters[0].ID

	letter, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, letter.ID)

	require.NoError(t, store.Delete(ctx, id))
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, deadletter.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, id), deadletter.ErrNotFound)
}

func TestReplay(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	cmd := enriched("clear")
	require.NoError(t, store.Record(ctx, cmd, errors.New("boom")))
	letters, err := store.List(ctx, 0)
	require.NoError(t, err)

	failing := gateway.ReceiverFunc(func(context.Context, *command.Enriched) error { return errors.New("still down") })
	assert.Error(t, store.Replay(ctx, letters[0].ID, failing))

	var replayed *command.Enriched
	ok := gateway.ReceiverFunc(func(_ context.Context, c *command.Enriched) error {
		replayed = c
		return nil
	})
	require.NoError(t, store.Replay(ctx, letters[0].ID, ok))
	require.NotNil(t, replayed)
	assert.Equal(t, cmd.ID, replayed.ID)

	remaining, err := store.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestFileDatabase(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "deadletters.db")

	store, err := deadletter.New(deadletter.WithDSN(dsn))
	require.NoError(t, err)
	require.NoError(t, store.Record(ctx, enriched("clear"), errors.New("boom")))
	require.NoError(t, store.Close())

	reopened, err := deadletter.New(deadletter.WithDSN(dsn))
	require.NoError(t, err)
	defer reopened.Close()

	letters, err := reopened.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, letters, 1)
}

func TestGatewayRecordsFailedHandoff(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	b := application.NewBuilder()
	b.MustRegister(application.HandlerDescriptor{Context: "shop", Aggregate: "cart", Command: "clear", Schema: schema.EmptyObject()})

	receiver := gateway.ReceiverFunc(func(context.Context, *command.Enriched) error {
		return errors.New("broker down")
	})
	g, err := gateway.New(b.Build(), receiver,
		gateway.WithLogger(slog.New(slog.DiscardHandler)),
		gateway.WithDeadLetters(store),
	)
	require.NoError(t, err)

	_, err = g.Invoke(ctx, "shop_cart_clear", gateway.Request{
		AggregateIdentifier: command.AggregateIdentifier{ID: uuid.NewString()},
	})
	require.ErrorIs(t, err, gateway.ErrUnknown)

	letters, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, "broker down", letters[0].Error)
	assert.True(t, letters[0].Command.IsCausalRoot())
}
