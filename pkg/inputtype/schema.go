package inputtype

import (
	"github.com/plaenen/commandgateway/pkg/schema"
)

// Schema converts t back into a schema that accepts the same values as the
// schema t was derived from.
func (t *Type) Schema() *schema.Schema {
	s := &schema.Schema{
		Description: t.Description,
		Enum:        t.Enum,
	}
	if t.Nullable {
		s.Types = []string{t.Kind.String(), schema.TypeNull}
	} else {
		s.Type = t.Kind.String()
	}

	switch t.Kind {
	case KindObject:
		s.Properties = make(map[string]*schema.Schema, len(t.Fields))
		for _, f := range t.Fields {
			s.Properties[f.Name] = f.Type.Schema()
		}
		s.Required = t.RequiredFields()
		if t.Closed {
			schema.Closed(s)
		}
	case KindArray:
		s.Items = t.Elem.Schema()
		s.MinItems = t.MinItems
		s.MaxItems = t.MaxItems
	case KindString:
		s.MinLength = t.MinLength
		s.MaxLength = t.MaxLength
		s.Pattern = t.Pattern
		s.Format = t.Format
	case KindNumber, KindInteger:
		s.Minimum = t.Minimum
		s.Maximum = t.Maximum
	}

	return s
}

// InputSchema returns the schema accepted by the operation's data argument.
// Operations without input accept only the empty object.
func (d *Descriptor) InputSchema() *schema.Schema {
	if d.Input == nil {
		return schema.EmptyObject()
	}
	return d.Input.Schema()
}
