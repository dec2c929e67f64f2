package schema

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/huandu/xstrings"
)

// Enum is a leaf type with a fixed set of values.
type Enum struct {
	name        string
	description string
	values      []*EnumValue
}

// EnumValue maps a member to its Go value. DisplayName is the name on the
// wire and defaults to the SCREAMING_SNAKE form of Name.
type EnumValue struct {
	Name              string
	DisplayName       string
	Description       string
	DeprecationReason string
	Value             any
}

func NewEnum(name, description string) *Enum {
	return &Enum{name: name, description: description}
}

func NewEnumValue(name string, value any) *EnumValue {
	return &EnumValue{
		Name:        name,
		DisplayName: strings.ToUpper(xstrings.ToSnakeCase(name)),
		Value:       value,
	}
}

func (v *EnumValue) WithDisplayName(name string) *EnumValue {
	v.DisplayName = name
	return v
}

func (v *EnumValue) WithDescription(desc string) *EnumValue {
	v.Description = desc
	return v
}

func (v *EnumValue) Deprecated(reason string) *EnumValue {
	v.DeprecationReason = reason
	return v
}

// AddValue registers a member. It panics on duplicate names or values that
// cannot be compared.
func (e *Enum) AddValue(v *EnumValue) *Enum {
	if v.Value == nil || !reflect.TypeOf(v.Value).Comparable() {
		panic(fmt.Sprintf("schema: enum %s value %s must be a comparable non-nil value", e.name, v.Name))
	}
	for _, existing := range e.values {
		if strings.EqualFold(existing.Name, v.Name) || strings.EqualFold(existing.DisplayName, v.DisplayName) {
			panic(fmt.Sprintf("schema: enum %s declares %s twice", e.name, v.Name))
		}
	}
	e.values = append(e.values, v)
	return e
}

func (e *Enum) Name() string         { return e.name }
func (e *Enum) Kind() TypeKind       { return TypeKindEnum }
func (e *Enum) Description() string  { return e.description }
func (e *Enum) Values() []*EnumValue { return e.values }

// lookup matches display names first and member names second, ignoring case.
func (e *Enum) lookup(s string) *EnumValue {
	for _, v := range e.values {
		if strings.EqualFold(v.DisplayName, s) {
			return v
		}
	}
	for _, v := range e.values {
		if strings.EqualFold(v.Name, s) {
			return v
		}
	}
	return nil
}

func (e *Enum) coerceInput(t *TypeRef, name string, value any) CoercionResult {
	if value == nil {
		return Coerced(nil)
	}
	if s, ok := value.(string); ok {
		if v := e.lookup(s); v != nil {
			return Coerced(v.Value)
		}
	}
	return CoercionFailed(NewCoercionError(name, Describe(t), value))
}

func (e *Enum) coerceResult(t *TypeRef, name string, value any) CoercionResult {
	if value == nil {
		return Coerced(nil)
	}
	if reflect.TypeOf(value).Comparable() {
		for _, v := range e.values {
			if v.Value == value {
				return Coerced(v.DisplayName)
			}
		}
	}
	if s, ok := value.(string); ok {
		if v := e.lookup(s); v != nil {
			return Coerced(v.DisplayName)
		}
	}
	return CoercionFailed(NewCoercionError(name, Describe(t), value))
}
