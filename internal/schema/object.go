package schema

import (
	"context"
	"fmt"
)

// Resolver produces the accessor for a field. It may register deferred work
// on the request's batch instead of fetching data itself.
type Resolver func(ctx context.Context, args Args) (Accessor, error)

// Object is a selectable type. Objects are usually built per request so
// their resolvers can close over request-scoped state.
type Object struct {
	name        string
	description string
	fields      []*Field
	byName      map[string]*Field
}

// Field represents a field on an object. The shape flags are derived from
// Type when the field is added to an object.
type Field struct {
	Name              string
	Description       string
	DeprecationReason string
	Type              *TypeRef
	Arguments         []*InputValue
	Resolve           Resolver

	IsNullable     bool
	IsSingular     bool
	IsItemNullable bool
}

func NewObject(name, description string) *Object {
	return &Object{name: name, description: description, byName: map[string]*Field{}}
}

func NewField(name string, t *TypeRef, resolve Resolver) *Field {
	return &Field{Name: name, Type: t, Resolve: resolve}
}

func (f *Field) WithDescription(desc string) *Field {
	f.Description = desc
	return f
}

func (f *Field) Deprecated(reason string) *Field {
	f.DeprecationReason = reason
	return f
}

func (f *Field) WithArgument(arg *InputValue) *Field {
	if arg.Type == nil {
		panic(fmt.Sprintf("schema: argument %s of field %s has no type", arg.Name, f.Name))
	}
	if f.Argument(arg.Name) != nil {
		panic(fmt.Sprintf("schema: field %s declares argument %s twice", f.Name, arg.Name))
	}
	f.Arguments = append(f.Arguments, arg)
	return f
}

func (f *Field) Argument(name string) *InputValue {
	for _, a := range f.Arguments {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// AddField records the field and its shape. Malformed declarations are
// programmer errors and panic.
func (o *Object) AddField(f *Field) *Object {
	if f.Resolve == nil {
		panic(fmt.Sprintf("schema: field %s.%s has no resolver", o.name, f.Name))
	}
	if _, ok := o.byName[f.Name]; ok {
		panic(fmt.Sprintf("schema: object %s declares field %s twice", o.name, f.Name))
	}
	nullable, singular, itemNullable, err := shapeOf(f.Type)
	if err != nil {
		panic(fmt.Sprintf("schema: field %s.%s: %v", o.name, f.Name, err))
	}
	f.IsNullable, f.IsSingular, f.IsItemNullable = nullable, singular, itemNullable
	o.fields = append(o.fields, f)
	o.byName[f.Name] = f
	return o
}

// shapeOf unwraps the type outside-in: NonNull? List? NonNull? Named.
func shapeOf(t *TypeRef) (nullable, singular, itemNullable bool, err error) {
	nullable, singular, itemNullable = true, true, true
	if t == nil {
		return false, false, false, fmt.Errorf("missing type")
	}
	if t.Kind == TypeRefKindNonNull {
		nullable = false
		t = t.OfType
	}
	if t == nil {
		return false, false, false, fmt.Errorf("non-null without inner type")
	}
	if t.Kind == TypeRefKindList {
		singular = false
		t = t.OfType
		if t != nil && t.Kind == TypeRefKindNonNull {
			itemNullable = false
			t = t.OfType
		}
	}
	if t == nil || t.Kind != TypeRefKindNamed || t.Named == nil {
		return false, false, false, fmt.Errorf("unsupported type shape")
	}
	return nullable, singular, itemNullable, nil
}

func (o *Object) Name() string        { return o.name }
func (o *Object) Kind() TypeKind      { return TypeKindObject }
func (o *Object) Description() string { return o.description }
func (o *Object) Fields() []*Field    { return o.fields }

func (o *Object) Field(name string) *Field { return o.byName[name] }

func (o *Object) coerceInput(t *TypeRef, name string, value any) CoercionResult {
	return CoercionFailed(&CoercionError{Name: name, Expected: Describe(t)})
}

// coerceResult passes values through; objects are assembled by the executor.
func (o *Object) coerceResult(t *TypeRef, name string, value any) CoercionResult {
	return Coerced(value)
}
