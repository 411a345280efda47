package inputtype

import (
	"fmt"
	"strings"
)

// TypeDefinitions renders the operation's types in GraphQL SDL: one input
// definition per object type reachable from the input (root first), followed
// by the result type.
func (d *Descriptor) TypeDefinitions() []string {
	var defs []string
	if d.Input != nil {
		defs = appendInputDefinitions(defs, d.Input)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "type %s_Result {\n", d.Name)
	for _, f := range d.Output {
		fmt.Fprintf(&b, "  %s: %s\n", f.Name, typeRef(f.Type, f.Required))
	}
	b.WriteString("}")

	return append(defs, b.String())
}

func appendInputDefinitions(defs []string, t *Type) []string {
	switch t.Kind {
	case KindArray:
		return appendInputDefinitions(defs, t.Elem)
	case KindObject:
	default:
		return defs
	}

	var b strings.Builder
	fmt.Fprintf(&b, "input %s {\n", t.Name)
	for _, f := range t.Fields {
		fmt.Fprintf(&b, "  %s: %s\n", f.Name, typeRef(f.Type, f.Required))
	}
	b.WriteString("}")
	defs = append(defs, b.String())

	for _, f := range t.Fields {
		defs = appendInputDefinitions(defs, f.Type)
	}
	return defs
}

func typeRef(t *Type, required bool) string {
	var ref string
	switch t.Kind {
	case KindObject:
		ref = t.Name
	case KindArray:
		ref = "[" + typeRef(t.Elem, !t.Elem.Nullable) + "]"
	case KindString:
		ref = "String"
	case KindNumber:
		ref = "Float"
	case KindInteger:
		ref = "Int"
	case KindBoolean:
		ref = "Boolean"
	}
	if required && !t.Nullable {
		ref += "!"
	}
	return ref
}
