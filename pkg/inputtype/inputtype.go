// Package inputtype derives the API input type of a command handler from its
// declared schema.
//
// Derivation is a recursive transform from the handler's JSON Schema to a tree
// of tagged Type values (object, array, string, number, integer, boolean). It
// runs once per handler when the gateway is built; the results are kept in a
// read-only Cache.
package inputtype

import (
	"errors"
	"fmt"
	"sort"

	"github.com/plaenen/commandgateway/pkg/application"
	"github.com/plaenen/commandgateway/pkg/schema"
)

var (
	// ErrSchemaMissing is returned when a handler declares no input schema.
	ErrSchemaMissing = errors.New("schema is missing")

	// ErrUnsupportedSchema is returned when a schema cannot be turned into an input type.
	ErrUnsupportedSchema = errors.New("unsupported schema")
)

// Kind tags the variant of a Type.
type Kind int

const (
	KindObject Kind = iota + 1
	KindArray
	KindString
	KindNumber
	KindInteger
	KindBoolean
)

// String returns the JSON Schema type name of the kind.
func (k Kind) String() string {
	switch k {
	case KindObject:
		return schema.TypeObject
	case KindArray:
		return schema.TypeArray
	case KindString:
		return schema.TypeString
	case KindNumber:
		return schema.TypeNumber
	case KindInteger:
		return schema.TypeInteger
	case KindBoolean:
		return schema.TypeBoolean
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func kindFromName(name string) (Kind, bool) {
	switch name {
	case schema.TypeObject:
		return KindObject, true
	case schema.TypeArray:
		return KindArray, true
	case schema.TypeString:
		return KindString, true
	case schema.TypeNumber:
		return KindNumber, true
	case schema.TypeInteger:
		return KindInteger, true
	case schema.TypeBoolean:
		return KindBoolean, true
	default:
		return 0, false
	}
}

// Type is a derived input type. Which fields are meaningful depends on Kind.
type Type struct {
	Kind        Kind
	Description string
	Nullable    bool
	Enum        []any

	// Object
	Name   string
	Fields []Field
	Closed bool

	// Array
	Elem     *Type
	MinItems *int
	MaxItems *int

	// String
	MinLength *int
	MaxLength *int
	Pattern   string
	Format    string

	// Number and integer
	Minimum *float64
	Maximum *float64
}

// Field is a named member of an object type.
type Field struct {
	Name     string
	Type     *Type
	Required bool
}

// Field returns the field called name.
func (t *Type) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// RequiredFields returns the names of the required fields, sorted.
func (t *Type) RequiredFields() []string {
	var names []string
	for _, f := range t.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// Descriptor is the derived API surface of one handler.
type Descriptor struct {
	Key  application.Key
	Name string

	// Input is nil when the handler's schema declares no properties; the
	// operation then takes no input argument.
	Input *Type

	// Output lists the operation's result fields. It always holds exactly the
	// generated command id.
	Output []Field
}

// HasInput reports whether the operation takes a data argument.
func (d *Descriptor) HasInput() bool {
	return d.Input != nil
}

// OutputIDField is the single result field of every operation.
const OutputIDField = "id"

// Derive builds the descriptor for h.
func Derive(h application.HandlerDescriptor) (*Descriptor, error) {
	key := h.Key()
	if h.Schema == nil {
		return nil, fmt.Errorf("%w: command '%s' must declare an input schema", ErrSchemaMissing, key)
	}

	d := &Descriptor{
		Key:  key,
		Name: key.OperationName(),
		Output: []Field{
			{Name: OutputIDField, Type: &Type{Kind: KindString}, Required: true},
		},
	}

	if schema.IsEmptyObject(h.Schema) {
		return d, nil
	}

	input, err := derive(h.Schema, d.Name, "#")
	if err != nil {
		return nil, fmt.Errorf("command '%s': %w", key, err)
	}
	if input.Kind != KindObject {
		return nil, fmt.Errorf("%w: command '%s' schema must be an object, got %s", ErrUnsupportedSchema, key, input.Kind)
	}

	d.Input = input
	return d, nil
}

func derive(s *schema.Schema, name, path string) (*Type, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: %s is empty", ErrUnsupportedSchema, path)
	}

	kind, nullable, err := kindOf(s, path)
	if err != nil {
		return nil, err
	}

	t := &Type{
		Kind:        kind,
		Description: s.Description,
		Nullable:    nullable,
		Enum:        s.Enum,
	}

	switch kind {
	case KindObject:
		if len(s.Properties) == 0 {
			return nil, fmt.Errorf("%w: %s is an object without properties", ErrUnsupportedSchema, path)
		}
		t.Name = name
		t.Closed = schema.IsFalse(s.AdditionalProperties)

		required := make(map[string]bool, len(s.Required))
		for _, r := range s.Required {
			if _, ok := s.Properties[r]; !ok {
				return nil, fmt.Errorf("%w: %s requires undeclared property '%s'", ErrUnsupportedSchema, path, r)
			}
			required[r] = true
		}

		names := make([]string, 0, len(s.Properties))
		for n := range s.Properties {
			names = append(names, n)
		}
		sort.Strings(names)

		for _, n := range names {
			ft, err := derive(s.Properties[n], name+"_"+n, path+"/properties/"+n)
			if err != nil {
				return nil, err
			}
			t.Fields = append(t.Fields, Field{Name: n, Type: ft, Required: required[n]})
		}

	case KindArray:
		if s.Items == nil {
			return nil, fmt.Errorf("%w: %s is an array without items", ErrUnsupportedSchema, path)
		}
		elem, err := derive(s.Items, name+"_Item", path+"/items")
		if err != nil {
			return nil, err
		}
		t.Elem = elem
		t.MinItems = s.MinItems
		t.MaxItems = s.MaxItems

	case KindString:
		t.MinLength = s.MinLength
		t.MaxLength = s.MaxLength
		t.Pattern = s.Pattern
		t.Format = s.Format

	case KindNumber, KindInteger:
		t.Minimum = s.Minimum
		t.Maximum = s.Maximum
	}

	return t, nil
}

// kindOf resolves the single non-null type of s. A "null" member makes the type nullable.
func kindOf(s *schema.Schema, path string) (Kind, bool, error) {
	names := s.Types
	if s.Type != "" {
		names = []string{s.Type}
	}

	var (
		kinds    []Kind
		nullable bool
	)
	for _, n := range names {
		if n == schema.TypeNull {
			nullable = true
			continue
		}
		k, ok := kindFromName(n)
		if !ok {
			return 0, false, fmt.Errorf("%w: %s has unknown type '%s'", ErrUnsupportedSchema, path, n)
		}
		kinds = append(kinds, k)
	}

	if len(kinds) != 1 {
		return 0, false, fmt.Errorf("%w: %s must declare exactly one non-null type, got %v", ErrUnsupportedSchema, path, names)
	}
	return kinds[0], nullable, nil
}
