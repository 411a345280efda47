package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/plaenen/commandgateway/pkg/application"
	"github.com/plaenen/commandgateway/pkg/command"
	"github.com/plaenen/commandgateway/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shopApp(t *testing.T) *application.Application {
	t.Helper()

	b := application.NewBuilder()
	require.NoError(t, b.Register(application.HandlerDescriptor{
		Context: "shop", Aggregate: "cart", Command: "addItem",
		Schema: schema.Object(map[string]*schema.Schema{
			"productId": schema.String(),
			"quantity":  schema.Number(),
		}, "productId", "quantity"),
	}))
	require.NoError(t, b.Register(application.HandlerDescriptor{
		Context: "shop", Aggregate: "cart", Command: "clear",
		Schema: schema.EmptyObject(),
	}))
	return b.Build()
}

func TestKey(t *testing.T) {
	key := application.Key{Context: "shop", Aggregate: "cart", Command: "addItem"}
	assert.Equal(t, "shop.cart.addItem", key.String())
	assert.Equal(t, "shop_cart_addItem", key.OperationName())
}

func TestBuilderRegister(t *testing.T) {
	t.Run("trims names", func(t *testing.T) {
		b := application.NewBuilder()
		require.NoError(t, b.Register(application.HandlerDescriptor{Context: " shop ", Aggregate: "cart", Command: "clear"}))

		_, ok := b.Build().Handler(application.Key{Context: "shop", Aggregate: "cart", Command: "clear"})
		assert.True(t, ok)
	})

	t.Run("rejects empty names", func(t *testing.T) {
		err := application.NewBuilder().Register(application.HandlerDescriptor{Context: "shop", Aggregate: "", Command: "clear"})
		assert.ErrorIs(t, err, application.ErrInvalidHandler)
	})

	t.Run("rejects non alphanumeric names", func(t *testing.T) {
		err := application.NewBuilder().Register(application.HandlerDescriptor{Context: "shop", Aggregate: "cart_x", Command: "clear"})
		assert.ErrorIs(t, err, application.ErrInvalidHandler)
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		b := application.NewBuilder()
		h := application.HandlerDescriptor{Context: "shop", Aggregate: "cart", Command: "clear"}
		require.NoError(t, b.Register(h))
		assert.ErrorIs(t, b.Register(h), application.ErrInvalidHandler)
	})

	t.Run("build is a snapshot", func(t *testing.T) {
		b := application.NewBuilder()
		b.MustRegister(application.HandlerDescriptor{Context: "shop", Aggregate: "cart", Command: "clear"})
		app := b.Build()

		b.MustRegister(application.HandlerDescriptor{Context: "shop", Aggregate: "cart", Command: "checkout"})
		_, ok := app.Handler(application.Key{Context: "shop", Aggregate: "cart", Command: "checkout"})
		assert.False(t, ok)
	})
}

func TestApplicationLookup(t *testing.T) {
	app := shopApp(t)

	tests := []struct {
		name string
		key  application.Key
		err  error
	}{
		{"registered", application.Key{Context: "shop", Aggregate: "cart", Command: "addItem"}, nil},
		{"unknown context", application.Key{Context: "bank", Aggregate: "cart", Command: "addItem"}, application.ErrContextNotFound},
		{"unknown aggregate", application.Key{Context: "shop", Aggregate: "order", Command: "addItem"}, application.ErrAggregateNotFound},
		{"unknown command", application.Key{Context: "shop", Aggregate: "cart", Command: "teleport"}, application.ErrCommandNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := app.Lookup(tt.key)
			if tt.err == nil {
				require.NoError(t, err)
				assert.Equal(t, tt.key, h.Key())
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestApplicationHandlersOrdered(t *testing.T) {
	handlers := shopApp(t).Handlers()
	require.Len(t, handlers, 2)
	assert.Equal(t, "addItem", handlers[0].Command)
	assert.Equal(t, "clear", handlers[1].Command)
}

func envelope(name string) *command.Envelope {
	return &command.Envelope{
		ContextIdentifier:   command.ContextIdentifier{Name: "shop"},
		AggregateIdentifier: command.AggregateIdentifier{Name: "cart", ID: "id"},
		Name:                name,
		Data:                map[string]any{},
	}
}

func TestReservedNames(t *testing.T) {
	rule := application.NewReservedNames("destroy").WithPrefixes("internal")
	ctx := context.Background()

	assert.NoError(t, rule.Check(ctx, envelope("addItem"), command.ClientMetadata{}))
	assert.ErrorIs(t, rule.Check(ctx, envelope("destroy"), command.ClientMetadata{}), application.ErrRuleViolation)
	assert.ErrorIs(t, rule.Check(ctx, envelope("internalReset"), command.ClientMetadata{}), application.ErrRuleViolation)
}

func TestRoleBasedAuthorizer(t *testing.T) {
	rule := application.NewRoleBasedAuthorizer(
		map[string][]string{"shop.cart.clear": {"admin", "support"}},
		application.RolesFromClaim("roles"),
	)
	ctx := context.Background()

	client := func(claims map[string]any) command.ClientMetadata {
		return command.ClientMetadata{User: command.User{ID: "jane.doe", Claims: claims}}
	}

	t.Run("unrestricted command", func(t *testing.T) {
		assert.NoError(t, rule.Check(ctx, envelope("addItem"), client(nil)))
	})

	t.Run("missing role", func(t *testing.T) {
		err := rule.Check(ctx, envelope("clear"), client(map[string]any{"roles": []any{"customer"}}))
		assert.ErrorIs(t, err, application.ErrRuleViolation)
	})

	t.Run("role from list claim", func(t *testing.T) {
		assert.NoError(t, rule.Check(ctx, envelope("clear"), client(map[string]any{"roles": []any{"customer", "support"}})))
	})

	t.Run("role from string claim", func(t *testing.T) {
		assert.NoError(t, rule.Check(ctx, envelope("clear"), client(map[string]any{"roles": "admin"})))
	})

	t.Run("default resolver reads roles claim", func(t *testing.T) {
		defaulted := application.NewRoleBasedAuthorizer(map[string][]string{"shop.cart.clear": {"admin"}}, nil)
		assert.ErrorIs(t, defaulted.Check(ctx, envelope("clear"), client(nil)), application.ErrRuleViolation)
		assert.NoError(t, defaulted.Check(ctx, envelope("clear"), client(map[string]any{application.DefaultRolesClaim: "admin"})))
	})

	t.Run("resolver failure", func(t *testing.T) {
		failing := application.NewRoleBasedAuthorizer(
			map[string][]string{"shop.cart.clear": {"admin"}},
			func(context.Context, command.ClientMetadata) ([]string, error) {
				return nil, errors.New("directory unavailable")
			},
		)
		err := failing.Check(ctx, envelope("clear"), client(nil))
		require.Error(t, err)
		assert.NotErrorIs(t, err, application.ErrRuleViolation)
	})
}
