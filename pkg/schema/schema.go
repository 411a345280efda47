// Package schema holds the JSON-Schema representation used to declare command
// inputs, plus helpers to build, parse and validate against it.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"
)

// Schema is a JSON Schema document describing a command payload.
type Schema = jsonschema.Schema

// Type names understood by the gateway.
const (
	TypeObject  = "object"
	TypeArray   = "array"
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeNull    = "null"
)

// ErrInvalidSchema is returned when a schema document cannot be parsed or resolved.
var ErrInvalidSchema = errors.New("invalid schema")

// Object builds an object schema with the given properties and required set.
func Object(properties map[string]*Schema, required ...string) *Schema {
	if properties == nil {
		properties = map[string]*Schema{}
	}
	sort.Strings(required)
	return &Schema{
		Type:       TypeObject,
		Properties: properties,
		Required:   required,
	}
}

// EmptyObject builds an object schema without properties.
func EmptyObject() *Schema {
	return Object(nil)
}

// String builds a string schema.
func String() *Schema { return &Schema{Type: TypeString} }

// Number builds a number schema.
func Number() *Schema { return &Schema{Type: TypeNumber} }

// Integer builds an integer schema.
func Integer() *Schema { return &Schema{Type: TypeInteger} }

// Boolean builds a boolean schema.
func Boolean() *Schema { return &Schema{Type: TypeBoolean} }

// Array builds an array schema whose elements match items.
func Array(items *Schema) *Schema {
	return &Schema{Type: TypeArray, Items: items}
}

// Closed marks an object schema as rejecting unknown properties.
func Closed(s *Schema) *Schema {
	s.AdditionalProperties = &Schema{Not: &Schema{}}
	return s
}

// Parse decodes a JSON document into a schema.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	return &s, nil
}

// MustParse is like Parse but panics on error. Intended for static declarations.
func MustParse(data string) *Schema {
	s, err := Parse([]byte(data))
	if err != nil {
		panic(err)
	}
	return s
}

// IsEmptyObject reports whether s is an object schema declaring no properties.
func IsEmptyObject(s *Schema) bool {
	if s == nil {
		return false
	}
	return s.Type == TypeObject && len(s.Properties) == 0
}

// IsFalse reports whether s is the boolean schema `false`, which the
// jsonschema package represents as {not: {}}.
func IsFalse(s *Schema) bool {
	if s == nil || s.Not == nil {
		return false
	}
	b, err := json.Marshal(s)
	if err != nil {
		return false
	}
	switch string(b) {
	case "false", `{"not":{}}`, `{"not":true}`:
		return true
	}
	return false
}

// Validator checks values against a resolved schema. It is safe for concurrent use.
type Validator struct {
	resolved *jsonschema.Resolved
}

// Compile resolves s once so that it can be used for repeated validation.
func Compile(s *Schema) (*Validator, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: schema is nil", ErrInvalidSchema)
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	return &Validator{resolved: resolved}, nil
}

// Validate returns nil when value conforms to the schema.
func (v *Validator) Validate(value any) error {
	return v.resolved.Validate(value)
}
