package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	schema "github.com/hanpama/batchql/internal/schema"
)

// assembler turns resolved selections into the response tree once the batch
// has run.
type assembler struct {
	ctx    context.Context
	logger *slog.Logger
	errors gqlerror.List
}

// assemble reads every selection against record. It returns false when a
// non-null field produced null, so the caller nulls its own value.
func (a *assembler) assemble(record *schema.Record, sels []*FieldSelection, path ast.Path) (*ResultMap, bool) {
	out := NewResultMap()
	for _, sel := range sels {
		key := sel.ResponseKey()
		value, ok := a.complete(record, sel, appendPath(path, ast.PathName(key)))
		if !ok {
			return nil, false
		}
		out.Set(key, value)
	}
	return out, true
}

func (a *assembler) complete(record *schema.Record, sel *FieldSelection, path ast.Path) (any, bool) {
	value, readOK := a.read(record, sel, path)
	reported := sel.failed || !readOK

	if value != nil && sel.SelectionSet != nil {
		if sel.Field.IsSingular {
			sub, ok := a.assemble(&schema.Record{Value: value}, sel.SelectionSet, path)
			if ok {
				value = sub
			} else {
				value = nil
				reported = true
			}
		} else if items, ok := schema.ListItems(value); ok {
			list := make([]any, len(items))
			for i, item := range items {
				if item == nil {
					continue
				}
				sub, ok := a.assemble(&schema.Record{Value: item}, sel.SelectionSet, appendPath(path, ast.PathIndex(i)))
				if ok {
					list[i] = sub
				} else {
					reported = true
				}
			}
			value = list
		}
	}

	res := schema.CoerceResult(sel.Field.Type, sel.Name, value)
	if !res.OK() {
		if !reported {
			for _, cerr := range res.Errors {
				a.errors = append(a.errors, &gqlerror.Error{
					Message:   fmt.Sprintf("%s could not be fetched", cerr.Name),
					Locations: locations(sel.Location),
					Path:      path,
				})
			}
		}
		return nil, sel.Field.IsNullable
	}
	return res.Value, true
}

// read returns the accessor's value. A panicking accessor reads as null and
// is reported as an internal error.
func (a *assembler) read(record *schema.Record, sel *FieldSelection, path ast.Path) (value any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.ErrorContext(a.ctx, "panic reading field", "path", path.String(), "panic", r)
			a.errors = append(a.errors, &gqlerror.Error{
				Message: "Internal server error",
				Path:    path,
			})
			value, ok = nil, false
		}
	}()
	return sel.Accessor.Value(record), true
}

func appendPath(path ast.Path, elem ast.PathElement) ast.Path {
	out := make(ast.Path, len(path)+1)
	copy(out, path)
	out[len(path)] = elem
	return out
}
