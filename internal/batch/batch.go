// Package batch collects deferred data fetches registered while a request's
// selection tree is resolved and runs them behind a single barrier.
//
// Resolvers never read an operation's result before Execute returns. Every
// operation writes its result into a Slot exactly once, so readers need no
// locking after the barrier.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	eventbus "github.com/hanpama/batchql/internal/eventbus"
	events "github.com/hanpama/batchql/internal/events"
)

var (
	// ErrExecuted is returned when Execute is called more than once.
	ErrExecuted = errors.New("batch: already executed")
	// ErrPanic wraps a panic raised by an operation.
	ErrPanic = errors.New("batch: operation panicked")
)

// Mode selects how registered operations are scheduled.
type Mode int

const (
	// Parallel starts every operation concurrently. Used for queries.
	Parallel Mode = iota
	// Sequential runs operations one at a time in registration order. Used
	// for mutations.
	Sequential
)

func (m Mode) String() string {
	switch m {
	case Parallel:
		return "parallel"
	case Sequential:
		return "sequential"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Operation is a deferred unit of work participating in a batch.
type Operation interface {
	Execute(ctx context.Context) error
}

// OperationFunc adapts a function to Operation.
type OperationFunc func(ctx context.Context) error

func (f OperationFunc) Execute(ctx context.Context) error { return f(ctx) }

// Batch is the per-request ledger of deferred operations.
type Batch struct {
	mode Mode

	mu       sync.Mutex
	ops      []Operation
	keyed    map[any]*keyedOp
	executed bool
}

type keyedOp struct {
	once sync.Once
	op   Operation
}

func New(mode Mode) *Batch {
	return &Batch{mode: mode, keyed: map[any]*keyedOp{}}
}

func (b *Batch) Mode() Mode { return b.mode }

// Len returns the number of registered operations.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ops)
}

// Add registers op and returns it. Registering after Execute panics.
func (b *Batch) Add(op Operation) Operation {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.executed {
		panic("batch: operation added after execution")
	}
	b.ops = append(b.ops, op)
	return op
}

// Once returns the operation registered under key, creating and registering
// it with factory on first use. Resolvers targeting the same source share
// one operation this way.
//
// factory runs without holding the batch lock and may register other
// operations; those are placed before the one it returns. A factory must not
// call Once with its own key.
func (b *Batch) Once(key any, factory func() Operation) Operation {
	b.mu.Lock()
	entry, ok := b.keyed[key]
	if !ok {
		if b.executed {
			b.mu.Unlock()
			panic("batch: operation added after execution")
		}
		entry = &keyedOp{}
		b.keyed[key] = entry
	}
	b.mu.Unlock()

	entry.once.Do(func() {
		entry.op = b.Add(factory())
	})
	return entry.op
}

// Register adds op to b and returns it with its concrete type.
func Register[T Operation](b *Batch, op T) T {
	b.Add(op)
	return op
}

// Execute runs every registered operation exactly once. In parallel mode
// the first failure cancels the context of the others; in sequential mode
// execution stops at the first failure or cancellation.
func (b *Batch) Execute(ctx context.Context) error {
	b.mu.Lock()
	if b.executed {
		b.mu.Unlock()
		return ErrExecuted
	}
	b.executed = true
	ops := append([]Operation(nil), b.ops...)
	b.mu.Unlock()

	start := time.Now()
	eventbus.Publish(ctx, events.BatchStart{Mode: b.mode.String(), Operations: len(ops)})

	var err error
	if len(ops) > 0 {
		switch b.mode {
		case Sequential:
			err = runSequential(ctx, ops)
		default:
			err = runParallel(ctx, ops)
		}
	}

	eventbus.Publish(ctx, events.BatchFinish{
		Mode:       b.mode.String(),
		Operations: len(ops),
		Err:        err,
		Duration:   time.Since(start),
	})
	return err
}

// run executes op, turning a panic into an error wrapping ErrPanic.
func run(ctx context.Context, op Operation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return op.Execute(ctx)
}

func runParallel(ctx context.Context, ops []Operation) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, op := range ops {
		op := op
		g.Go(func() error { return run(gctx, op) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func runSequential(ctx context.Context, ops []Operation) error {
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := run(ctx, op); err != nil {
			return err
		}
	}
	return nil
}
