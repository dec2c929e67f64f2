package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vektah/gqlparser/v2/gqlerror"

	batch "github.com/hanpama/batchql/internal/batch"
	eventbus "github.com/hanpama/batchql/internal/eventbus"
	events "github.com/hanpama/batchql/internal/events"
	language "github.com/hanpama/batchql/internal/language"
	reqid "github.com/hanpama/batchql/internal/reqid"
	schema "github.com/hanpama/batchql/internal/schema"
)

// ErrNoMutation is returned for mutation operations against a schema
// without a mutation root.
var ErrNoMutation = errors.New("schema does not define a mutation root")

// Options configures an Executor.
type Options struct {
	Logger          *slog.Logger
	ExceptionFilter ExceptionFilter
}

// Option mutates Options
type Option func(*Options)

func WithLogger(l *slog.Logger) Option { return func(o *Options) { o.Logger = l } }

func WithExceptionFilter(f ExceptionFilter) Option {
	return func(o *Options) { o.ExceptionFilter = f }
}

type Executor struct {
	schema *schema.Schema
	opt    Options
}

func New(s *schema.Schema, opts ...Option) *Executor {
	op := Options{Logger: slog.Default()}
	for _, f := range opts {
		f(&op)
	}
	if op.Logger == nil {
		op.Logger = slog.Default()
	}
	return &Executor{schema: s, opt: op}
}

// Execute runs one request. The returned error is reserved for fatal
// conditions: syntax errors, operation selection failures, escalated
// resolver errors, cancellation and unstructured batch failures. Everything
// else is reported in Result.Errors.
func (e *Executor) Execute(ctx context.Context, req Request) (res *Result, err error) {
	doc, err := language.ParseQuery(req.Query)
	if err != nil {
		return nil, err
	}
	op, err := doc.Operation(req.OperationName)
	if err != nil {
		return nil, err
	}

	ctx, _ = reqid.Ensure(ctx)
	start := time.Now()
	opType := string(op.Operation)
	eventbus.Publish(ctx, events.GraphQLStart{Query: req.Query, OperationName: req.OperationName, OperationType: opType})
	defer func() {
		finish := events.GraphQLFinish{
			Query:         req.Query,
			OperationName: req.OperationName,
			OperationType: opType,
			Err:           err,
			Duration:      time.Since(start),
		}
		if res != nil {
			for _, gerr := range res.Errors {
				finish.Errors = append(finish.Errors, gerr.Message)
			}
		}
		eventbus.Publish(ctx, finish)
	}()

	var (
		b    *batch.Batch
		root *schema.Object
	)
	switch op.Operation {
	case language.Query:
		b = batch.New(batch.Parallel)
		root = e.schema.Query(b)
	case language.Mutation:
		if e.schema.Mutation == nil {
			return nil, ErrNoMutation
		}
		b = batch.New(batch.Sequential)
		root = e.schema.Mutation(b)
	default:
		return nil, fmt.Errorf("unsupported operation type: %s", op.Operation)
	}

	if errs := checkFragmentCycles(doc); len(errs) > 0 {
		return &Result{Errors: errs}, nil
	}

	c := &collector{
		ctx:    ctx,
		doc:    doc,
		vars:   NewVariableValues(op, req.Variables),
		logger: e.opt.Logger,
		filter: e.opt.ExceptionFilter,
	}
	c.vars.MarkReferenced(doc, op)
	fields, err := c.CollectFields(root, op.SelectionSet, nil)
	if err != nil {
		return nil, err
	}
	c.validation = append(c.validation, c.vars.unusedErrors()...)
	if len(c.validation) > 0 {
		return &Result{Errors: c.validation}, nil
	}

	if err := b.Execute(ctx); err != nil {
		var list gqlerror.List
		if errors.As(err, &list) {
			return &Result{Errors: list}, nil
		}
		var gerr *gqlerror.Error
		if errors.As(err, &gerr) {
			return &Result{Errors: gqlerror.List{gerr}}, nil
		}
		return nil, fmt.Errorf("executing %s: %w", op.Operation, err)
	}

	a := &assembler{ctx: ctx, logger: e.opt.Logger, errors: c.resolution}
	data, _ := a.assemble(nil, fields, nil)
	return &Result{Data: data, Errors: a.errors}, nil
}
