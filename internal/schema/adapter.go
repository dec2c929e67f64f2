package schema

import (
	"fmt"
	"reflect"
)

// Adapter converts values into and out of the internal representation of a
// type shape.
type Adapter interface {
	CoerceInput(t *TypeRef, name string, value any) CoercionResult
	CoerceResult(t *TypeRef, name string, value any) CoercionResult
	Describe(t *TypeRef) TypeDescription
}

// AdapterFor selects the adapter for the outermost layer of t.
func AdapterFor(t *TypeRef) Adapter {
	switch t.Kind {
	case TypeRefKindNonNull:
		return nonNullAdapter{}
	case TypeRefKindList:
		return listAdapter{}
	case TypeRefKindNamed:
		return namedAdapter{}
	default:
		panic(fmt.Sprintf("schema: invalid type reference kind %q", t.Kind))
	}
}

// CoerceInput coerces value against t using the matching adapter.
func CoerceInput(t *TypeRef, name string, value any) CoercionResult {
	return AdapterFor(t).CoerceInput(t, name, value)
}

// CoerceResult coerces a resolved value against t using the matching adapter.
func CoerceResult(t *TypeRef, name string, value any) CoercionResult {
	return AdapterFor(t).CoerceResult(t, name, value)
}

type nonNullAdapter struct{}

func (nonNullAdapter) CoerceInput(t *TypeRef, name string, value any) CoercionResult {
	res := CoerceInput(t.OfType, name, value)
	if !res.OK() {
		return res
	}
	if res.Value == nil {
		return CoercionFailed(NewCoercionError(name, Describe(t), value))
	}
	return res
}

func (nonNullAdapter) CoerceResult(t *TypeRef, name string, value any) CoercionResult {
	res := CoerceResult(t.OfType, name, value)
	if !res.OK() {
		return res
	}
	if res.Value == nil {
		return CoercionFailed(NewCoercionError(name, Describe(t), value))
	}
	return res
}

func (nonNullAdapter) Describe(t *TypeRef) TypeDescription {
	return NonNullDescription(Describe(t.OfType))
}

type listAdapter struct{}

// CoerceInput wraps a single non-list value into a one element list.
func (listAdapter) CoerceInput(t *TypeRef, name string, value any) CoercionResult {
	if value == nil {
		return Coerced(nil)
	}
	items, ok := ListItems(value)
	if !ok {
		items = []any{value}
	}
	out := make([]any, len(items))
	var errs []*CoercionError
	for i, item := range items {
		res := CoerceInput(t.OfType, fmt.Sprintf("%s[%d]", name, i), item)
		errs = append(errs, res.Errors...)
		out[i] = res.Value
	}
	if len(errs) > 0 {
		return CoercionFailed(errs...)
	}
	return Coerced(out)
}

func (listAdapter) CoerceResult(t *TypeRef, name string, value any) CoercionResult {
	if value == nil {
		return Coerced(nil)
	}
	items, ok := ListItems(value)
	if !ok {
		return CoercionFailed(NewCoercionError(name, Describe(t), value))
	}
	out := make([]any, len(items))
	var errs []*CoercionError
	for i, item := range items {
		res := CoerceResult(t.OfType, fmt.Sprintf("%s[%d]", name, i), item)
		errs = append(errs, res.Errors...)
		out[i] = res.Value
	}
	if len(errs) > 0 {
		return CoercionFailed(errs...)
	}
	return Coerced(out)
}

func (listAdapter) Describe(t *TypeRef) TypeDescription {
	return ListDescription(Describe(t.OfType))
}

type namedAdapter struct{}

func (namedAdapter) CoerceInput(t *TypeRef, name string, value any) CoercionResult {
	return t.Named.coerceInput(t, name, value)
}

func (namedAdapter) CoerceResult(t *TypeRef, name string, value any) CoercionResult {
	return t.Named.coerceResult(t, name, value)
}

func (namedAdapter) Describe(t *TypeRef) TypeDescription {
	return NamedDescription(t.Named.Name())
}

// ListItems returns the elements of any slice or array value. Strings and
// byte slices are not lists.
func ListItems(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case string, []byte:
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}
