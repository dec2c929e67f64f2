package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hanpama/batchql/internal/batch"
)

// Render produces SDL for every type reachable from the roots of s.
// Deterministic ordering: type names sorted lexicographically, fields in
// declaration order. Resolvers are never invoked.
func Render(s *Schema) string {
	if s == nil {
		return ""
	}
	types := map[string]NamedType{}
	var b strings.Builder

	b.WriteString("schema {\n")
	if s.Query != nil {
		q := s.Query(batch.New(batch.Parallel))
		collectTypes(types, q)
		b.WriteString("  query: " + q.Name() + "\n")
	}
	if s.Mutation != nil {
		m := s.Mutation(batch.New(batch.Sequential))
		collectTypes(types, m)
		b.WriteString("  mutation: " + m.Name() + "\n")
	}
	b.WriteString("}\n\n")

	typeNames := make([]string, 0, len(types))
	for name, typ := range types {
		if IsBuiltin(typ) {
			continue
		}
		typeNames = append(typeNames, name)
	}
	sort.Strings(typeNames)

	for _, name := range typeNames {
		switch typ := types[name].(type) {
		case *Scalar:
			renderScalar(&b, typ)
		case *Enum:
			renderEnum(&b, typ)
		case *InputObject:
			renderInputObject(&b, typ)
		case *Object:
			renderObject(&b, typ)
		}
	}

	out := strings.TrimRight(b.String(), "\n") + "\n"
	return out
}

// collectTypes walks field and argument types. Nested objects are reached
// through the type references of their fields, so per-request object
// instances are only visited once per name.
func collectTypes(seen map[string]NamedType, t NamedType) {
	if t == nil {
		return
	}
	if _, ok := seen[t.Name()]; ok {
		return
	}
	seen[t.Name()] = t
	switch t := t.(type) {
	case *Object:
		for _, f := range t.Fields() {
			collectTypes(seen, f.Type.NamedType())
			for _, a := range f.Arguments {
				collectTypes(seen, a.Type.NamedType())
			}
		}
	case *InputObject:
		for _, f := range t.Fields() {
			collectTypes(seen, f.Type.NamedType())
		}
	}
}

// ----- render helpers -----

func renderDescription(b *strings.Builder, indent, desc string) {
	if desc == "" {
		return
	}
	b.WriteString(indent + "\"\"\"\n")
	// Escape quotes in description
	escaped := strings.ReplaceAll(desc, "\"", "\\\"")
	b.WriteString(indent + escaped)
	b.WriteString("\n" + indent + "\"\"\"\n")
}

func renderDeprecation(b *strings.Builder, reason string) {
	if reason == "" {
		return
	}
	b.WriteString(" @deprecated(reason: ")
	b.WriteString(strconv.Quote(reason))
	b.WriteString(")")
}

func renderScalar(b *strings.Builder, typ *Scalar) {
	renderDescription(b, "", typ.Description())
	b.WriteString("scalar ")
	b.WriteString(typ.Name())
	b.WriteString("\n\n")
}

func renderEnum(b *strings.Builder, typ *Enum) {
	renderDescription(b, "", typ.Description())
	b.WriteString("enum ")
	b.WriteString(typ.Name())
	b.WriteString(" {\n")
	for _, val := range typ.Values() {
		renderDescription(b, "  ", val.Description)
		b.WriteString("  ")
		b.WriteString(val.DisplayName)
		renderDeprecation(b, val.DeprecationReason)
		b.WriteString("\n")
	}
	b.WriteString("}\n\n")
}

func renderInputObject(b *strings.Builder, typ *InputObject) {
	renderDescription(b, "", typ.Description())
	b.WriteString("input ")
	b.WriteString(typ.Name())
	b.WriteString(" {\n")
	for _, field := range typ.Fields() {
		renderDescription(b, "  ", field.Description)
		b.WriteString("  ")
		renderInputValue(b, field)
		renderDeprecation(b, field.DeprecationReason)
		b.WriteString("\n")
	}
	b.WriteString("}\n\n")
}

func renderObject(b *strings.Builder, typ *Object) {
	renderDescription(b, "", typ.Description())
	b.WriteString("type ")
	b.WriteString(typ.Name())
	b.WriteString(" {\n")
	for _, field := range typ.Fields() {
		renderField(b, field)
	}
	b.WriteString("}\n\n")
}

func renderField(b *strings.Builder, field *Field) {
	renderDescription(b, "  ", field.Description)
	b.WriteString("  ")
	b.WriteString(field.Name)
	if len(field.Arguments) > 0 {
		b.WriteString("(")
		for i, arg := range field.Arguments {
			if i > 0 {
				b.WriteString(", ")
			}
			renderInputValue(b, arg)
		}
		b.WriteString(")")
	}
	b.WriteString(": ")
	b.WriteString(field.Type.String())
	renderDeprecation(b, field.DeprecationReason)
	b.WriteString("\n")
}

func renderInputValue(b *strings.Builder, v *InputValue) {
	b.WriteString(v.Name)
	b.WriteString(": ")
	b.WriteString(v.Type.String())
	if v.HasDefault {
		b.WriteString(" = ")
		b.WriteString(renderValue(v.Type, v.DefaultValue))
	}
}

// renderValue renders a default value. Enum values are rendered by their
// display name.
func renderValue(t *TypeRef, value any) string {
	if value == nil {
		return "null"
	}
	if e, ok := t.NamedType().(*Enum); ok && !t.IsList() {
		if res := CoerceResult(Named(e), "", value); res.OK() {
			return fmt.Sprint(res.Value)
		}
	}

	switch v := value.(type) {
	case string:
		return strconv.Quote(v)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []any:
		var parts []string
		for _, item := range v {
			parts = append(parts, renderValue(elemType(t), item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var parts []string
		for _, k := range keys {
			parts = append(parts, k+": "+renderValue(fieldType(t, k), v[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprint(v)
	}
}

func elemType(t *TypeRef) *TypeRef {
	if t.IsNonNull() {
		t = t.OfType
	}
	return t.Unwrap()
}

func fieldType(t *TypeRef, name string) *TypeRef {
	if in, ok := t.NamedType().(*InputObject); ok {
		if f := in.Field(name); f != nil {
			return f.Type
		}
	}
	return Named(String)
}
