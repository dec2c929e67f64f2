package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	language "github.com/hanpama/batchql/internal/language"
	schema "github.com/hanpama/batchql/internal/schema"
)

var (
	// ErrAmbiguousMerge is reported when two selections share a response key
	// and field name. Merging their sub-selections is not supported.
	ErrAmbiguousMerge = errors.New("ambiguous field merge")
	// ErrUnknownFragment is returned when a spread names a fragment the
	// document does not define.
	ErrUnknownFragment = errors.New("unknown fragment")
)

// FieldSelection is a collected, validated and resolved field.
type FieldSelection struct {
	Name         string
	Alias        string
	Arguments    []*language.Argument
	Directives   []*language.Directive
	SelectionSet []*FieldSelection
	Field        *schema.Field
	Args         schema.Args
	Location     language.Location
	Accessor     schema.Accessor

	// failed is set when an error was already reported for this field
	// during collection.
	failed bool
}

// ResponseKey is the key the selection is written under.
func (s *FieldSelection) ResponseKey() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Name
}

// MergeWith combines two selections of the same field under the same key.
func (s *FieldSelection) MergeWith(other *FieldSelection) (*FieldSelection, error) {
	return nil, fmt.Errorf("%w: '%s' is selected more than once", ErrAmbiguousMerge, s.ResponseKey())
}

// ExceptionFilter decides whether an unstructured resolver error is fatal.
// Returning true aborts the request with that error.
type ExceptionFilter func(ctx context.Context, err error) bool

// collector walks selection sets, invoking resolvers as it goes.
type collector struct {
	ctx    context.Context
	doc    *language.Document
	vars   *VariableValues
	logger *slog.Logger
	filter ExceptionFilter

	// validation errors block resolution; resolution errors null a field.
	validation gqlerror.List
	resolution gqlerror.List
}

// collectedFields preserves first-occurrence order.
type collectedFields struct {
	fields []*FieldSelection
	index  map[string]int
	names  map[string]string // response key -> field name
}

func newCollectedFields() *collectedFields {
	return &collectedFields{index: make(map[string]int), names: make(map[string]string)}
}

func (c *collector) add(out *collectedFields, sel *FieldSelection) {
	if name, ok := out.names[sel.ResponseKey()]; ok && name != sel.Name {
		c.validation = append(c.validation, &gqlerror.Error{
			Message:   fmt.Sprintf("Fields '%s' and '%s' conflict on response key '%s'.", name, sel.Name, sel.ResponseKey()),
			Locations: locations(sel.Location),
		})
		return
	}
	key := sel.ResponseKey() + "\x00" + sel.Name
	idx, exists := out.index[key]
	if !exists {
		out.names[sel.ResponseKey()] = sel.Name
		out.index[key] = len(out.fields)
		out.fields = append(out.fields, sel)
		return
	}
	merged, err := out.fields[idx].MergeWith(sel)
	if err != nil {
		c.validation = append(c.validation, &gqlerror.Error{
			Message:   err.Error(),
			Locations: locations(sel.Location),
		})
		return
	}
	out.fields[idx] = merged
}

// CollectFields validates set against obj, resolves every field and recurses
// into object-typed fields. Validation and resolution problems are recorded
// on the collector; the returned error is fatal.
func (c *collector) CollectFields(obj *schema.Object, set language.SelectionSet, path ast.Path) ([]*FieldSelection, error) {
	out := newCollectedFields()
	if err := c.collectInto(out, obj, set, path, map[string]bool{}); err != nil {
		return nil, err
	}
	return out.fields, nil
}

func (c *collector) collectInto(out *collectedFields, obj *schema.Object, set language.SelectionSet, path ast.Path, visited map[string]bool) error {
	for _, selection := range set {
		switch sel := selection.(type) {
		case *language.Field:
			if !c.included(sel.Directives) {
				if err := c.validateSet(obj, language.SelectionSet{sel}, map[string]bool{}); err != nil {
					return err
				}
				continue
			}
			fs, err := c.collectField(obj, sel, path)
			if err != nil {
				return err
			}
			if fs != nil {
				c.add(out, fs)
			}

		case *language.FragmentSpread:
			if !c.included(sel.Directives) {
				if err := c.validateSet(obj, language.SelectionSet{sel}, map[string]bool{}); err != nil {
					return err
				}
				continue
			}
			frag := c.doc.Fragment(sel.Name)
			if frag == nil {
				return fmt.Errorf("%w: %q", ErrUnknownFragment, sel.Name)
			}
			if visited[sel.Name] {
				continue
			}
			visited[sel.Name] = true
			if frag.TypeCondition != obj.Name() {
				continue
			}
			if !c.included(frag.Directives) {
				if err := c.validateSet(obj, frag.SelectionSet, map[string]bool{}); err != nil {
					return err
				}
				continue
			}
			if err := c.collectInto(out, obj, frag.SelectionSet, path, visited); err != nil {
				return err
			}

		case *language.InlineFragment:
			if sel.TypeCondition != "" && sel.TypeCondition != obj.Name() {
				continue
			}
			if !c.included(sel.Directives) {
				if err := c.validateSet(obj, sel.SelectionSet, map[string]bool{}); err != nil {
					return err
				}
				continue
			}
			if err := c.collectInto(out, obj, sel.SelectionSet, path, visited); err != nil {
				return err
			}
		}
	}
	return nil
}

// collectField returns nil when the field is unknown.
func (c *collector) collectField(obj *schema.Object, field *language.Field, parent ast.Path) (*FieldSelection, error) {
	def := obj.Field(field.Name)
	if def == nil {
		c.invalidField(obj, field)
		return nil, nil
	}

	path := appendPath(parent, ast.PathName(field.ResponseKey()))
	fs := &FieldSelection{
		Name:       field.Name,
		Alias:      field.Alias,
		Arguments:  field.Arguments,
		Directives: field.Directives,
		Field:      def,
		Location:   field.Location,
		Accessor:   schema.Null(def.Type),
		failed:     true,
	}

	// A field that is not resolved still has its sub-selection validated.
	unresolved := func() (*FieldSelection, error) {
		if err := c.validateSubfields(def, field); err != nil {
			return nil, err
		}
		return fs, nil
	}

	selectionOK := c.validateSelection(def, field)
	argumentsOK := c.validateArguments(obj, def, field.Arguments)
	if !selectionOK || !argumentsOK {
		return unresolved()
	}

	args, ok := c.coerceArguments(def, field.Arguments, path)
	if !ok {
		return unresolved()
	}
	fs.Args = args

	acc, err := c.resolve(def, args)
	if err != nil {
		if fatal := c.handleResolverError(err, path); fatal != nil {
			return nil, fatal
		}
		return unresolved()
	}
	fs.Accessor = acc
	fs.failed = false

	if child := acc.Type().Object(); child != nil {
		subs, err := c.CollectFields(child, field.SelectionSet, path)
		if err != nil {
			return nil, err
		}
		fs.SelectionSet = subs
	}
	return fs, nil
}

func (c *collector) invalidField(obj *schema.Object, field *language.Field) {
	c.validation = append(c.validation, &gqlerror.Error{
		Message:   fmt.Sprintf("Invalid field '%s' specified on '%s'.", field.Name, obj.Name()),
		Locations: locations(field.Location),
	})
}

// validateSet checks set against obj without invoking resolvers. It covers
// selections excluded by directives and those below unresolved fields.
func (c *collector) validateSet(obj *schema.Object, set language.SelectionSet, visited map[string]bool) error {
	for _, selection := range set {
		switch sel := selection.(type) {
		case *language.Field:
			def := obj.Field(sel.Name)
			if def == nil {
				c.invalidField(obj, sel)
				continue
			}
			c.validateArguments(obj, def, sel.Arguments)
			if !c.validateSelection(def, sel) {
				continue
			}
			if err := c.validateSubfields(def, sel); err != nil {
				return err
			}

		case *language.FragmentSpread:
			frag := c.doc.Fragment(sel.Name)
			if frag == nil {
				return fmt.Errorf("%w: %q", ErrUnknownFragment, sel.Name)
			}
			if visited[sel.Name] {
				continue
			}
			visited[sel.Name] = true
			if frag.TypeCondition != obj.Name() {
				continue
			}
			if err := c.validateSet(obj, frag.SelectionSet, visited); err != nil {
				return err
			}

		case *language.InlineFragment:
			if sel.TypeCondition != "" && sel.TypeCondition != obj.Name() {
				continue
			}
			if err := c.validateSet(obj, sel.SelectionSet, visited); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *collector) validateSubfields(def *schema.Field, field *language.Field) error {
	child, ok := def.Type.NamedType().(*schema.Object)
	if !ok {
		return nil
	}
	return c.validateSet(child, field.SelectionSet, map[string]bool{})
}

// validateSelection checks that object fields have a sub-selection and leaf
// fields do not.
func (c *collector) validateSelection(def *schema.Field, field *language.Field) bool {
	named := def.Type.NamedType()
	_, isObject := named.(*schema.Object)
	switch {
	case isObject && len(field.SelectionSet) == 0:
		c.validation = append(c.validation, &gqlerror.Error{
			Message:   fmt.Sprintf("Field '%s' of type '%s' must have a selection of subfields.", field.Name, def.Type),
			Locations: locations(field.Location),
		})
		return false
	case !isObject && len(field.SelectionSet) > 0:
		c.validation = append(c.validation, &gqlerror.Error{
			Message:   fmt.Sprintf("Field '%s' must not have a selection since type '%s' has no subfields.", field.Name, def.Type),
			Locations: locations(field.Location),
		})
		return false
	}
	return true
}

// validateArguments reports unknown arguments and variables whose declared
// type cannot be used in the argument's position.
func (c *collector) validateArguments(obj *schema.Object, def *schema.Field, args []*language.Argument) bool {
	valid := true
	for _, arg := range args {
		argDef := def.Argument(arg.Name)
		if argDef == nil {
			valid = false
			c.validation = append(c.validation, &gqlerror.Error{
				Message:   fmt.Sprintf("Unknown argument '%s' on field '%s' of type '%s'.", arg.Name, def.Name, obj.Name()),
				Locations: locations(arg.Location),
			})
			continue
		}
		variable, ok := arg.Value.(*language.Variable)
		if !ok {
			continue
		}
		varDef := c.vars.Definition(variable.Name)
		if varDef == nil {
			valid = false
			c.validation = append(c.validation, &gqlerror.Error{
				Message:   fmt.Sprintf("Variable '$%s' is not defined.", variable.Name),
				Locations: locations(variable.Location, arg.Location),
			})
			continue
		}
		from := describeInput(varDef.Type)
		to := schema.Describe(argDef.Type)
		if !from.CanBeDownCastTo(to) {
			valid = false
			c.validation = append(c.validation, &gqlerror.Error{
				Message:   fmt.Sprintf("Variable '$%s' of type '%s' used in position expecting type '%s'.", variable.Name, from, to),
				Locations: locations(variable.Location, arg.Location),
			})
		}
	}
	return valid
}

// coerceArguments coerces every declared argument. Absent arguments fall
// back to their default; absent arguments without one stay absent.
func (c *collector) coerceArguments(def *schema.Field, supplied []*language.Argument, path ast.Path) (schema.Args, bool) {
	byName := make(map[string]*language.Argument, len(supplied))
	for _, a := range supplied {
		byName[a.Name] = a
	}

	args := make(schema.Args, len(def.Arguments))
	ok := true
	for _, argDef := range def.Arguments {
		astArg := byName[argDef.Name]
		var value schema.Optional
		if astArg != nil {
			value = valueFromAST(astArg.Value, c.vars)
		}
		if !value.HasValue && argDef.HasDefault {
			value = schema.Some(argDef.DefaultValue)
		}

		preamble := fmt.Sprintf("Argument '%s'", argDef.Name)
		var locs []gqlerror.Location
		if astArg != nil {
			if v, isVar := astArg.Value.(*language.Variable); isVar {
				preamble = fmt.Sprintf("Variable '$%s'", v.Name)
				locs = locations(v.Location, astArg.Location)
			} else {
				locs = locations(astArg.Location)
			}
		}

		res := schema.CoerceInput(argDef.Type, argDef.Name, value.Value)
		if !res.OK() {
			ok = false
			for _, cerr := range res.Errors {
				c.resolution = append(c.resolution, &gqlerror.Error{
					Message:   fmt.Sprintf("%s expected value of type '%s' but got: %s. %s", preamble, schema.Describe(argDef.Type), value, cerr),
					Locations: locs,
					Path:      path,
					Extensions: map[string]any{
						"InputError": map[string]any{
							"Input":  cerr.Name,
							"Reason": "Coercion",
						},
					},
				})
			}
			continue
		}
		if value.HasValue {
			args[argDef.Name] = schema.Some(res.Value)
		} else {
			args[argDef.Name] = schema.Optional{}
		}
	}
	return args, ok
}

// resolve invokes the resolver and checks the accessor it returns. Panics
// are turned into errors.
func (c *collector) resolve(def *schema.Field, args schema.Args) (acc schema.Accessor, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in resolver for field %s: %v", def.Name, r)
		}
	}()
	acc, err = def.Resolve(c.ctx, args)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return schema.Null(def.Type), nil
	}
	if got := acc.Type().String(); got != def.Type.String() {
		return nil, fmt.Errorf("resolver for field %s returned %s, want %s", def.Name, got, def.Type)
	}
	return acc, nil
}

// handleResolverError records err. It returns a non-nil error only when the
// exception filter escalates err.
func (c *collector) handleResolverError(err error, path ast.Path) error {
	var list gqlerror.List
	if errors.As(err, &list) {
		c.resolution = append(c.resolution, withPath(list, path)...)
		return nil
	}
	var gerr *gqlerror.Error
	if errors.As(err, &gerr) {
		c.resolution = append(c.resolution, withPath(gqlerror.List{gerr}, path)...)
		return nil
	}
	if c.filter != nil && c.filter(c.ctx, err) {
		return err
	}
	c.logger.ErrorContext(c.ctx, "error resolving field", "path", path.String(), "error", err)
	c.resolution = append(c.resolution, &gqlerror.Error{
		Message: "Internal server error",
		Path:    path,
	})
	return nil
}

func withPath(list gqlerror.List, path ast.Path) gqlerror.List {
	out := make(gqlerror.List, 0, len(list))
	for _, e := range list {
		if e == nil {
			continue
		}
		if e.Path == nil {
			cp := *e
			cp.Path = path
			e = &cp
		}
		out = append(out, e)
	}
	return out
}

// included evaluates @skip and @include.
func (c *collector) included(dirs []*language.Directive) bool {
	for _, d := range dirs {
		if d.Name != "skip" && d.Name != "include" {
			continue
		}
		var cond schema.Optional
		if arg := d.Argument("if"); arg != nil {
			cond = valueFromAST(arg.Value, c.vars)
		}
		b, ok := cond.Value.(bool)
		if !ok {
			c.validation = append(c.validation, &gqlerror.Error{
				Message:   fmt.Sprintf("Directive '@%s' requires a Boolean 'if' argument.", d.Name),
				Locations: locations(d.Location),
			})
			return false
		}
		if (d.Name == "skip") == b {
			return false
		}
	}
	return true
}
