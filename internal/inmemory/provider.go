// Package inmemory serves schema fields from Go values held in memory. A
// Provider is a batch operation: it captures its data when the batch runs
// and hands out accessors that read from the captured value afterwards.
package inmemory

import (
	"context"

	batch "github.com/hanpama/batchql/internal/batch"
	schema "github.com/hanpama/batchql/internal/schema"
)

// Provider yields records of type T, either a single record or a
// collection of them.
type Provider[T any] struct {
	fetch func(context.Context) (any, error)
	slot  batch.Slot[any]
	root  func() any
}

// New returns a provider for a single record.
func New[T any](fetch func(context.Context) (T, error)) *Provider[T] {
	return newRoot[T](func(ctx context.Context) (any, error) { return fetch(ctx) })
}

// NewCollection returns a provider for a collection of records.
func NewCollection[T any](fetch func(context.Context) ([]T, error)) *Provider[T] {
	return newRoot[T](func(ctx context.Context) (any, error) { return fetch(ctx) })
}

func newRoot[T any](fetch func(context.Context) (any, error)) *Provider[T] {
	p := &Provider[T]{fetch: fetch}
	p.root = p.slot.Get
	return p
}

// Execute captures the provider's data. Derived providers read through
// their parent and do nothing here.
func (p *Provider[T]) Execute(ctx context.Context) error {
	if p.fetch == nil {
		return nil
	}
	v, err := p.fetch(ctx)
	if err != nil {
		return err
	}
	p.slot.Set(v)
	return nil
}

// Select returns an accessor of type t reading fn from the current record.
// Read at the root, it applies fn to the captured record, or to each record
// of a captured collection.
func (p *Provider[T]) Select(t *schema.TypeRef, fn func(T) any) schema.Accessor {
	return schema.AccessorFunc(t, func(r *schema.Record) any {
		var v any
		if r == nil {
			v = p.root()
		} else {
			v = r.Value
		}
		return apply(v, fn)
	})
}

// Records returns the captured records. A single record is returned as a
// one element slice and a null root as an empty one.
func (p *Provider[T]) Records() []T {
	switch v := p.root().(type) {
	case T:
		return []T{v}
	case []T:
		return v
	default:
		return nil
	}
}

// Child derives a provider for values nested in each record of p.
func Child[T, U any](p *Provider[T], fn func(T) U) *Provider[U] {
	return &Provider[U]{root: func() any {
		switch v := p.root().(type) {
		case T:
			return fn(v)
		case []T:
			out := make([]U, len(v))
			for i, item := range v {
				out[i] = fn(item)
			}
			return out
		default:
			return nil
		}
	}}
}

// ChildForCollection derives a provider for collections nested in each
// record of p. Collections of a captured collection are flattened.
func ChildForCollection[T, U any](p *Provider[T], fn func(T) []U) *Provider[U] {
	return &Provider[U]{root: func() any {
		switch v := p.root().(type) {
		case T:
			return fn(v)
		case []T:
			var out []U
			for _, item := range v {
				out = append(out, fn(item)...)
			}
			return out
		default:
			return nil
		}
	}}
}

func apply[T any](v any, fn func(T) any) any {
	switch v := v.(type) {
	case nil:
		return nil
	case T:
		return fn(v)
	case []T:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = fn(item)
		}
		return out
	default:
		return nil
	}
}
