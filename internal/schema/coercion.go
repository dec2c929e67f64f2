package schema

import (
	"fmt"
	"strings"
)

// CoercionResult is returned by every coercion. A result without errors and
// without a value means nothing was supplied; a nil Value with HasValue set
// is an explicit null.
type CoercionResult struct {
	Value    any
	HasValue bool
	Errors   []*CoercionError
}

func Coerced(value any) CoercionResult {
	return CoercionResult{Value: value, HasValue: true}
}

func CoercionFailed(errs ...*CoercionError) CoercionResult {
	return CoercionResult{Errors: errs}
}

func (r CoercionResult) OK() bool { return len(r.Errors) == 0 }

// CoercionError records a value that does not fit the expected type.
type CoercionError struct {
	Name      string
	Expected  TypeDescription
	Actual    any
	HasActual bool
}

func NewCoercionError(name string, expected TypeDescription, actual any) *CoercionError {
	return &CoercionError{Name: name, Expected: expected, Actual: actual, HasActual: true}
}

func (e *CoercionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reason: '%s' %s type expected", e.Name, e.Expected)
	if e.HasActual {
		b.WriteString(" but got ")
		b.WriteString(formatValue(e.Actual))
	}
	return b.String()
}

// Optional distinguishes an absent argument from an explicit null.
type Optional struct {
	Value    any
	HasValue bool
}

func Some(v any) Optional { return Optional{Value: v, HasValue: true} }

func (o Optional) String() string {
	if !o.HasValue {
		return "undefined"
	}
	return formatValue(o.Value)
}

// Args holds coerced argument values keyed by argument name.
type Args map[string]Optional

// Get returns the argument value, or nil when absent or null.
func (a Args) Get(name string) any { return a[name].Value }

// Has reports whether the argument was supplied, including as null.
func (a Args) Has(name string) bool { return a[name].HasValue }

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return `"` + v + `"`
	default:
		return fmt.Sprint(v)
	}
}
