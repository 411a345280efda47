package command

import (
	"encoding/json"
	"fmt"
)

// CloneData returns a deep copy of data in its JSON form: nested maps become
// map[string]any, slices become []any and numbers become float64. Values of
// other types are copied through a JSON round-trip. The result shares no
// mutable state with data.
func CloneData(data map[string]any) (map[string]any, error) {
	if data == nil {
		return map[string]any{}, nil
	}
	return cloneObject(data)
}

func cloneObject(in map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(in))
	for key, value := range in {
		copied, err := cloneValue(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[key] = copied
	}
	return out, nil
}

func cloneValue(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string, bool, float64:
		return v, nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", v.String(), err)
		}
		return f, nil
	case map[string]any:
		return cloneObject(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			copied, err := cloneValue(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = copied
		}
		return out, nil
	default:
		return roundTrip(v)
	}
}

func roundTrip(value any) (any, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("unsupported value of type %T: %w", value, err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("unsupported value of type %T: %w", value, err)
	}
	return out, nil
}

// Clone returns a copy of e whose data shares no mutable state with e.
func (e *Envelope) Clone() (*Envelope, error) {
	return NewEnvelope(e.ContextIdentifier, e.AggregateIdentifier, e.Name, e.Data)
}

// CloneClient returns a copy of client whose user claims share no mutable
// state with client. Nil claims stay nil.
func CloneClient(client ClientMetadata) (ClientMetadata, error) {
	if client.User.Claims == nil {
		return client, nil
	}
	claims, err := CloneData(client.User.Claims)
	if err != nil {
		return ClientMetadata{}, fmt.Errorf("copy client claims: %w", err)
	}
	client.User.Claims = claims
	return client, nil
}
