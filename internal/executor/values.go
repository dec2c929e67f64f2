package executor

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/gqlerror"

	language "github.com/hanpama/batchql/internal/language"
	schema "github.com/hanpama/batchql/internal/schema"
)

// VariableValues holds the values of an operation's declared variables and
// remembers which of them are referenced.
type VariableValues struct {
	defs   []*language.VariableDefinition
	byName map[string]*language.VariableDefinition
	values map[string]any
	used   map[string]bool
}

// NewVariableValues binds supplied values to the operation's variable
// definitions. Variables that are neither supplied nor defaulted stay
// absent; values for undeclared names are ignored.
func NewVariableValues(op *language.OperationDefinition, supplied map[string]any) *VariableValues {
	v := &VariableValues{
		defs:   op.VariableDefinitions,
		byName: make(map[string]*language.VariableDefinition, len(op.VariableDefinitions)),
		values: make(map[string]any, len(op.VariableDefinitions)),
		used:   make(map[string]bool, len(op.VariableDefinitions)),
	}
	for _, def := range op.VariableDefinitions {
		v.byName[def.Name] = def
		if val, ok := supplied[def.Name]; ok {
			v.values[def.Name] = val
		} else if def.DefaultValue != nil {
			v.values[def.Name] = valueFromAST(def.DefaultValue, nil).Value
		}
	}
	return v
}

// Lookup returns the value of the variable.
func (v *VariableValues) Lookup(name string) (any, bool) {
	if _, ok := v.byName[name]; !ok {
		return nil, false
	}
	val, ok := v.values[name]
	return val, ok
}

// Definition returns the declaration of the variable, or nil.
func (v *VariableValues) Definition(name string) *language.VariableDefinition {
	return v.byName[name]
}

// MarkReferenced records every variable op refers to, following fragment
// spreads. Selections excluded by @skip or @include still count.
func (v *VariableValues) MarkReferenced(doc *language.Document, op *language.OperationDefinition) {
	spread := make(map[string]bool)
	directives := func(dirs []*language.Directive) {
		for _, d := range dirs {
			for _, a := range d.Arguments {
				v.markValue(a.Value)
			}
		}
	}
	var walk func(set language.SelectionSet)
	walk = func(set language.SelectionSet) {
		for _, selection := range set {
			switch sel := selection.(type) {
			case *language.Field:
				for _, a := range sel.Arguments {
					v.markValue(a.Value)
				}
				directives(sel.Directives)
				walk(sel.SelectionSet)
			case *language.FragmentSpread:
				directives(sel.Directives)
				if spread[sel.Name] {
					continue
				}
				spread[sel.Name] = true
				if frag := doc.Fragment(sel.Name); frag != nil {
					directives(frag.Directives)
					walk(frag.SelectionSet)
				}
			case *language.InlineFragment:
				directives(sel.Directives)
				walk(sel.SelectionSet)
			}
		}
	}
	directives(op.Directives)
	walk(op.SelectionSet)
}

func (v *VariableValues) markValue(value language.Value) {
	switch value := value.(type) {
	case *language.Variable:
		if _, ok := v.byName[value.Name]; ok {
			v.used[value.Name] = true
		}
	case *language.ListValue:
		for _, item := range value.Values {
			v.markValue(item)
		}
	case *language.ObjectValue:
		for _, f := range value.Fields {
			v.markValue(f.Value)
		}
	}
}

// Unused lists declared variables that were never referenced, in declaration
// order.
func (v *VariableValues) Unused() []*language.VariableDefinition {
	var out []*language.VariableDefinition
	for _, def := range v.defs {
		if !v.used[def.Name] {
			out = append(out, def)
		}
	}
	return out
}

func (v *VariableValues) unusedErrors() gqlerror.List {
	var errs gqlerror.List
	for _, def := range v.Unused() {
		errs = append(errs, &gqlerror.Error{
			Message:   fmt.Sprintf("Variable '$%s' is not used.", def.Name),
			Locations: locations(def.Location),
		})
	}
	return errs
}

// valueFromAST converts a literal to its loosely typed Go form. Absent
// variables produce an absent optional; inside lists and objects they read
// as null and are omitted respectively.
func valueFromAST(value language.Value, vars *VariableValues) schema.Optional {
	switch value := value.(type) {
	case nil:
		return schema.Optional{}
	case *language.Variable:
		if vars == nil {
			return schema.Optional{}
		}
		if v, ok := vars.Lookup(value.Name); ok {
			return schema.Some(v)
		}
		return schema.Optional{}
	case *language.IntValue:
		return schema.Some(value.Value)
	case *language.FloatValue:
		return schema.Some(value.Value)
	case *language.StringValue:
		return schema.Some(value.Value)
	case *language.BooleanValue:
		return schema.Some(value.Value)
	case *language.NullValue:
		return schema.Some(nil)
	case *language.EnumValue:
		return schema.Some(value.Value)
	case *language.ListValue:
		out := make([]any, len(value.Values))
		for i, item := range value.Values {
			out[i] = valueFromAST(item, vars).Value
		}
		return schema.Some(out)
	case *language.ObjectValue:
		out := make(map[string]any, len(value.Fields))
		for _, f := range value.Fields {
			if v := valueFromAST(f.Value, vars); v.HasValue {
				out[f.Name] = v.Value
			}
		}
		return schema.Some(out)
	default:
		return schema.Optional{}
	}
}

// describeInput converts a declared variable type into the description used
// for compatibility checks.
func describeInput(t language.InputType) schema.TypeDescription {
	switch t := t.(type) {
	case *language.NonNullType:
		return schema.NonNullDescription(describeInput(t.Type))
	case *language.ListType:
		return schema.ListDescription(describeInput(t.Type))
	case *language.NamedType:
		return schema.NamedDescription(t.Name)
	default:
		return schema.TypeDescription{}
	}
}

func locations(locs ...language.Location) []gqlerror.Location {
	var out []gqlerror.Location
	for _, l := range locs {
		if l.IsZero() {
			continue
		}
		out = append(out, gqlerror.Location{Line: l.Line, Column: l.Column})
	}
	return out
}
