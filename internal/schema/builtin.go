package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Scalar is a leaf type whose values are converted by a pair of functions.
// Both functions receive non-nil values and report false on mismatch.
type Scalar struct {
	name        string
	description string
	parseInput  func(any) (any, bool)
	serialize   func(any) (any, bool)
}

// NewScalar declares a custom scalar.
func NewScalar(name, description string, parseInput, serialize func(any) (any, bool)) *Scalar {
	return &Scalar{name: name, description: description, parseInput: parseInput, serialize: serialize}
}

func (s *Scalar) Name() string        { return s.name }
func (s *Scalar) Kind() TypeKind      { return TypeKindScalar }
func (s *Scalar) Description() string { return s.description }

func (s *Scalar) coerceInput(t *TypeRef, name string, value any) CoercionResult {
	if value == nil {
		return Coerced(nil)
	}
	if v, ok := s.parseInput(value); ok {
		return Coerced(v)
	}
	return CoercionFailed(NewCoercionError(name, Describe(t), value))
}

func (s *Scalar) coerceResult(t *TypeRef, name string, value any) CoercionResult {
	if value == nil {
		return Coerced(nil)
	}
	if v, ok := s.serialize(value); ok {
		return Coerced(v)
	}
	return CoercionFailed(NewCoercionError(name, Describe(t), value))
}

var (
	String = NewScalar("String",
		"The `String` scalar type represents textual data, represented as UTF-8 character sequences.",
		parseString, serializeString)
	Int = NewScalar("Int",
		"The `Int` scalar type represents non-fractional signed whole numeric values.",
		coerceInt, serializeInt)
	Float = NewScalar("Float",
		"The `Float` scalar type represents signed double-precision fractional values.",
		coerceFloat, coerceFloat)
	Boolean = NewScalar("Boolean",
		"The `Boolean` scalar type represents `true` or `false`.",
		coerceBoolean, serializeBoolean)
	ID = NewScalar("ID",
		"The `ID` scalar type represents a unique identifier, often used to refetch an object or as a key for caching.",
		parseID, serializeID)
)

// IsBuiltin reports whether t is one of the predefined scalars.
func IsBuiltin(t NamedType) bool {
	switch t {
	case String, Int, Float, Boolean, ID:
		return true
	}
	return false
}

func parseString(v any) (any, bool) {
	s, ok := v.(string)
	return s, ok
}

func serializeString(v any) (any, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case fmt.Stringer:
		return v.String(), true
	}
	return nil, false
}

// coerceInt accepts integers that fit in 32 bits and floats without a
// fractional part.
func coerceInt(v any) (any, bool) {
	if i, ok := toInt64(v); ok {
		if i < math.MinInt32 || i > math.MaxInt32 {
			return nil, false
		}
		return int(i), true
	}
	f, ok := toFloat64(v)
	if !ok || f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return nil, false
	}
	return int(f), true
}

func serializeInt(v any) (any, bool) {
	if s, ok := v.(string); ok {
		i, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, false
		}
		return int(i), true
	}
	return coerceInt(v)
}

func coerceFloat(v any) (any, bool) {
	if f, ok := toFloat64(v); ok {
		return f, true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return nil, false
}

// coerceBoolean treats any non-zero integer as true.
func coerceBoolean(v any) (any, bool) {
	if b, ok := v.(bool); ok {
		return b, true
	}
	if i, ok := toInt64(v); ok {
		return i != 0, true
	}
	return nil, false
}

func serializeBoolean(v any) (any, bool) {
	b, ok := v.(bool)
	return b, ok
}

func parseID(v any) (any, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	if i, ok := toInt64(v); ok {
		return strconv.FormatInt(i, 10), true
	}
	return nil, false
}

func serializeID(v any) (any, bool) {
	if s, ok := parseID(v); ok {
		return s, true
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String(), true
	}
	return nil, false
}

func toInt64(v any) (int64, bool) {
	switch v := v.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), uint64(v) <= math.MaxInt64
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), uint64(v) <= math.MaxInt64
	case json.Number:
		i, err := v.Int64()
		return i, err == nil
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch v := v.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}
