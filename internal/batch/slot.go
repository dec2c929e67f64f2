package batch

import (
	"context"
	"sync/atomic"
)

// Slot is a write-once cell. The batch writes it during execution and
// accessors read it after the barrier.
type Slot[T any] struct {
	value T
	set   atomic.Bool
}

// Set stores v. Writing a slot twice panics.
func (s *Slot[T]) Set(v T) {
	if s.set.Load() {
		panic("batch: slot written twice")
	}
	s.value = v
	s.set.Store(true)
}

// Get returns the stored value. Reading before the slot is written panics.
func (s *Slot[T]) Get() T {
	if !s.set.Load() {
		panic("batch: slot read before the batch executed")
	}
	return s.value
}

// IsSet reports whether the slot has been written.
func (s *Slot[T]) IsSet() bool { return s.set.Load() }

// Deferred is an Operation that stores the result of fetch in its slot.
type Deferred[T any] struct {
	fetch func(context.Context) (T, error)
	slot  Slot[T]
}

func NewDeferred[T any](fetch func(context.Context) (T, error)) *Deferred[T] {
	return &Deferred[T]{fetch: fetch}
}

func (d *Deferred[T]) Execute(ctx context.Context) error {
	v, err := d.fetch(ctx)
	if err != nil {
		return err
	}
	d.slot.Set(v)
	return nil
}

// Slot exposes the cell the result is written to.
func (d *Deferred[T]) Slot() *Slot[T] { return &d.slot }
