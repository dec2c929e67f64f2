package schema

import (
	"fmt"
	"sort"
)

// InputObject is a named set of input fields accepted as a map.
type InputObject struct {
	name        string
	description string
	fields      []*InputValue
}

// InputValue describes an input object field or a field argument.
type InputValue struct {
	Name              string
	Description       string
	Type              *TypeRef
	DefaultValue      any
	HasDefault        bool
	DeprecationReason string
}

func NewInputObject(name, description string) *InputObject {
	return &InputObject{name: name, description: description}
}

// NewInputValue declares an input field or argument.
func NewInputValue(name string, t *TypeRef) *InputValue {
	return &InputValue{Name: name, Type: t}
}

// NewArgument is NewInputValue for field arguments.
func NewArgument(name string, t *TypeRef) *InputValue { return NewInputValue(name, t) }

func (v *InputValue) WithDefault(value any) *InputValue {
	v.DefaultValue = value
	v.HasDefault = true
	return v
}

func (v *InputValue) WithDescription(desc string) *InputValue {
	v.Description = desc
	return v
}

func (v *InputValue) Deprecated(reason string) *InputValue {
	v.DeprecationReason = reason
	return v
}

// AddField registers an input field. It panics on duplicates.
func (o *InputObject) AddField(v *InputValue) *InputObject {
	if v.Type == nil {
		panic(fmt.Sprintf("schema: input %s.%s has no type", o.name, v.Name))
	}
	if o.Field(v.Name) != nil {
		panic(fmt.Sprintf("schema: input %s declares field %s twice", o.name, v.Name))
	}
	o.fields = append(o.fields, v)
	return o
}

func (o *InputObject) Name() string          { return o.name }
func (o *InputObject) Kind() TypeKind        { return TypeKindInputObject }
func (o *InputObject) Description() string   { return o.description }
func (o *InputObject) Fields() []*InputValue { return o.fields }

func (o *InputObject) Field(name string) *InputValue {
	for _, f := range o.fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// coerceInput returns a map holding only the keys that were supplied.
// Absent fields are still coerced as null so that required fields report.
func (o *InputObject) coerceInput(t *TypeRef, name string, value any) CoercionResult {
	if value == nil {
		return Coerced(nil)
	}
	in, ok := value.(map[string]any)
	if !ok {
		return CoercionFailed(NewCoercionError(name, Describe(t), value))
	}

	var errs []*CoercionError
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if o.Field(k) == nil {
			errs = append(errs, &CoercionError{Name: name + "." + k, Expected: NamedDescription(o.name), Actual: in[k], HasActual: true})
		}
	}

	out := make(map[string]any, len(in))
	for _, f := range o.fields {
		raw, supplied := in[f.Name]
		if !supplied && f.HasDefault {
			raw, supplied = f.DefaultValue, true
		}
		res := CoerceInput(f.Type, name+"."+f.Name, raw)
		errs = append(errs, res.Errors...)
		if supplied && res.OK() {
			out[f.Name] = res.Value
		}
	}
	if len(errs) > 0 {
		return CoercionFailed(errs...)
	}
	return Coerced(out)
}

func (o *InputObject) coerceResult(t *TypeRef, name string, value any) CoercionResult {
	return CoercionFailed(&CoercionError{Name: name, Expected: Describe(t)})
}
