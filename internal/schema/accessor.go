package schema

import "github.com/hanpama/batchql/internal/batch"

// Record is the value of the enclosing object a child accessor reads from.
// A nil *Record means the accessor is read at the root of its source.
type Record struct {
	Value any
}

// Accessor yields a field's value once the batch it depends on has run.
type Accessor interface {
	Type() *TypeRef
	Value(r *Record) any
}

type accessorFunc struct {
	t    *TypeRef
	read func(*Record) any
}

func (a *accessorFunc) Type() *TypeRef      { return a.t }
func (a *accessorFunc) Value(r *Record) any { return a.read(r) }

// AccessorFunc builds an accessor from a read function.
func AccessorFunc(t *TypeRef, read func(*Record) any) Accessor {
	return &accessorFunc{t: t, read: read}
}

// Null always reads null.
func Null(t *TypeRef) Accessor {
	return AccessorFunc(t, func(*Record) any { return nil })
}

// Const always reads v.
func Const(t *TypeRef, v any) Accessor {
	return AccessorFunc(t, func(*Record) any { return v })
}

// FromSlot reads the result of a deferred operation and passes it through
// selector. A nil selector returns the slot value as is.
func FromSlot[T any](t *TypeRef, slot *batch.Slot[T], selector func(T) any) Accessor {
	return AccessorFunc(t, func(*Record) any {
		v := slot.Get()
		if selector == nil {
			return v
		}
		return selector(v)
	})
}

// FromParent reads from the enclosing record. Null parents and parents of
// another type read as null.
func FromParent[T any](t *TypeRef, selector func(T) any) Accessor {
	return AccessorFunc(t, func(r *Record) any {
		if r == nil {
			return nil
		}
		parent, ok := r.Value.(T)
		if !ok {
			return nil
		}
		return selector(parent)
	})
}
