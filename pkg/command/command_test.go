package command_test

import (
	"encoding/json"
	"testing"

	"github.com/plaenen/commandgateway/pkg/command"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnvelope(t *testing.T, data map[string]any) *command.Envelope {
	t.Helper()

	env, err := command.NewEnvelope(
		command.ContextIdentifier{Name: "shop"},
		command.AggregateIdentifier{Name: "cart", ID: "3b1d5c0e-6a3f-4a8e-9a39-2f7a0f6a1c11"},
		"addItem",
		data,
	)
	require.NoError(t, err)
	return env
}

func TestNewEnvelope(t *testing.T) {
	t.Run("nil data becomes empty object", func(t *testing.T) {
		env := newEnvelope(t, nil)
		assert.NotNil(t, env.Data)
		assert.Empty(t, env.Data)
	})

	t.Run("fully qualified name", func(t *testing.T) {
		env := newEnvelope(t, nil)
		assert.Equal(t, "shop.cart.addItem", env.FullyQualifiedName())
	})
}

func TestEnvelopeIsolation(t *testing.T) {
	nested := map[string]any{"color": "red"}
	list := []any{"a", map[string]any{"b": 1}}
	source := map[string]any{
		"productId": "p1",
		"quantity":  2,
		"options":   nested,
		"tags":      list,
	}

	env := newEnvelope(t, source)

	source["productId"] = "p2"
	source["extra"] = true
	nested["color"] = "blue"
	list[0] = "changed"
	list[1].(map[string]any)["b"] = 99

	assert.Equal(t, "p1", env.Data["productId"])
	assert.NotContains(t, env.Data, "extra")
	assert.Equal(t, "red", env.Data["options"].(map[string]any)["color"])

	tags := env.Data["tags"].([]any)
	assert.Equal(t, "a", tags[0])
	assert.EqualValues(t, 1, tags[1].(map[string]any)["b"])
}

func TestCloneData(t *testing.T) {
	type item struct {
		SKU   string `json:"sku"`
		Count int    `json:"count"`
	}

	t.Run("normalizes numbers", func(t *testing.T) {
		out, err := command.CloneData(map[string]any{
			"int":    3,
			"int64":  int64(4),
			"float":  float32(1.5),
			"number": json.Number("7"),
		})
		require.NoError(t, err)
		assert.Equal(t, float64(3), out["int"])
		assert.Equal(t, float64(4), out["int64"])
		assert.Equal(t, float64(1.5), out["float"])
		assert.Equal(t, float64(7), out["number"])
	})

	t.Run("structs are copied through json", func(t *testing.T) {
		out, err := command.CloneData(map[string]any{"item": item{SKU: "x", Count: 2}})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"sku": "x", "count": float64(2)}, out["item"])
	})

	t.Run("unsupported values fail", func(t *testing.T) {
		_, err := command.CloneData(map[string]any{"ch": make(chan int)})
		assert.Error(t, err)

		_, err = command.CloneData(map[string]any{"nested": map[string]any{"n": json.Number("x")}})
		assert.Error(t, err)
	})
}

func TestEnrichedIsCausalRoot(t *testing.T) {
	cmd := &command.Enriched{
		ID: "id-1",
		Metadata: command.Metadata{
			CausationID:   "id-1",
			CorrelationID: "id-1",
		},
	}
	assert.True(t, cmd.IsCausalRoot())

	cmd.Metadata.CorrelationID = "other"
	assert.False(t, cmd.IsCausalRoot())
}

func TestEnrichedJSON(t *testing.T) {
	cmd := command.Enriched{
		Envelope: *newEnvelope(t, map[string]any{"productId": "p1"}),
		ID:       "id-1",
		Metadata: command.Metadata{CausationID: "id-1", CorrelationID: "id-1"},
	}

	b, err := json.Marshal(cmd)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(b, &wire))
	assert.Equal(t, "id-1", wire["id"])
	assert.Equal(t, "addItem", wire["name"])
	assert.Equal(t, map[string]any{"name": "shop"}, wire["contextIdentifier"])
	assert.Equal(t, "id-1", wire["metadata"].(map[string]any)["causationId"])
}

func TestEnvelopeClone(t *testing.T) {
	env := newEnvelope(t, map[string]any{"tags": []any{"a"}})

	copied, err := env.Clone()
	require.NoError(t, err)
	env.Data["tags"].([]any)[0] = "b"

	assert.Equal(t, []any{"a"}, copied.Data["tags"])
	assert.Equal(t, env.FullyQualifiedName(), copied.FullyQualifiedName())
}

func TestCloneClient(t *testing.T) {
	t.Run("claims are copied", func(t *testing.T) {
		client := command.ClientMetadata{
			Token: "token",
			User:  command.User{ID: "jane.doe", Claims: map[string]any{"roles": []string{"customer"}}},
		}

		copied, err := command.CloneClient(client)
		require.NoError(t, err)
		client.User.Claims["roles"].([]string)[0] = "admin"

		assert.Equal(t, []any{"customer"}, copied.User.Claims["roles"])
		assert.Equal(t, "token", copied.Token)
	})

	t.Run("nil claims", func(t *testing.T) {
		copied, err := command.CloneClient(command.ClientMetadata{User: command.User{ID: "jane.doe"}})
		require.NoError(t, err)
		assert.Nil(t, copied.User.Claims)
	})

	t.Run("uncopyable claims", func(t *testing.T) {
		_, err := command.CloneClient(command.ClientMetadata{User: command.User{Claims: map[string]any{"f": func() {}}}})
		assert.Error(t, err)
	})
}
