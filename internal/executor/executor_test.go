package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	batch "github.com/hanpama/batchql/internal/batch"
	eventbus "github.com/hanpama/batchql/internal/eventbus"
	events "github.com/hanpama/batchql/internal/events"
	language "github.com/hanpama/batchql/internal/language"
	reqid "github.com/hanpama/batchql/internal/reqid"
	schema "github.com/hanpama/batchql/internal/schema"
)

type user struct {
	ID      string
	Name    string
	Friends []user
}

var errFatal = errors.New("database unavailable")

type fixture struct {
	fetches  atomic.Int32
	mutated  []string
	counter  int
	users    []user
	logs     bytes.Buffer
	executor *Executor
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		users: []user{
			{ID: "1", Name: "ann", Friends: []user{{ID: "2", Name: "bob"}}},
			{ID: "2", Name: "bob"},
		},
	}
	logger := slog.New(slog.NewTextHandler(&f.logs, nil))
	f.executor = New(f.build(), append([]Option{WithLogger(logger)}, opts...)...)
	return f
}

func (f *fixture) build() *schema.Schema {
	return &schema.Schema{
		Query:    f.query,
		Mutation: f.mutation,
	}
}

func (f *fixture) userType() *schema.Object {
	obj := schema.NewObject("User", "")
	idType := schema.NonNullType(schema.Named(schema.ID))
	nameType := schema.Named(schema.String)
	requiredType := schema.NonNullType(schema.Named(schema.String))
	friendsType := schema.ListType(schema.NonNullType(schema.Named(obj)))
	return obj.
		AddField(schema.NewField("id", idType, func(context.Context, schema.Args) (schema.Accessor, error) {
			return schema.FromParent(idType, func(u user) any { return u.ID }), nil
		})).
		AddField(schema.NewField("name", nameType, func(context.Context, schema.Args) (schema.Accessor, error) {
			return schema.FromParent(nameType, func(u user) any { return u.Name }), nil
		})).
		AddField(schema.NewField("required", requiredType, func(context.Context, schema.Args) (schema.Accessor, error) {
			return nil, nil
		})).
		AddField(schema.NewField("friends", friendsType, func(context.Context, schema.Args) (schema.Accessor, error) {
			return schema.FromParent(friendsType, func(u user) any { return u.Friends }), nil
		}))
}

func (f *fixture) query(b *batch.Batch) *schema.Object {
	userObj := f.userType()
	usersType := schema.NonNullType(schema.ListType(schema.NonNullType(schema.Named(userObj))))
	userType := schema.Named(userObj)
	strType := schema.Named(schema.String)
	intType := schema.Named(schema.Int)

	loadUsers := func() *batch.Deferred[[]user] {
		return b.Once("users", func() batch.Operation {
			return batch.NewDeferred(func(context.Context) ([]user, error) {
				f.fetches.Add(1)
				return f.users, nil
			})
		}).(*batch.Deferred[[]user])
	}

	fail := func(err error) schema.Resolver {
		return func(context.Context, schema.Args) (schema.Accessor, error) { return nil, err }
	}
	constant := func(t *schema.TypeRef, v any) schema.Resolver {
		return func(context.Context, schema.Args) (schema.Accessor, error) { return schema.Const(t, v), nil }
	}

	return schema.NewObject("Query", "").
		AddField(schema.NewField("foo", strType, constant(strType, "foo"))).
		AddField(schema.NewField("bar", schema.NonNullType(intType), constant(schema.NonNullType(intType), 2))).
		AddField(schema.NewField("baz", schema.Named(schema.Boolean), constant(schema.Named(schema.Boolean), true))).
		AddField(schema.NewField("echo", intType, func(_ context.Context, args schema.Args) (schema.Accessor, error) {
			return schema.Const(intType, args.Get("id")), nil
		}).WithArgument(schema.NewArgument("id", schema.NonNullType(intType)))).
		AddField(schema.NewField("greet", strType, func(_ context.Context, args schema.Args) (schema.Accessor, error) {
			return schema.Const(strType, fmt.Sprintf("hello %v", args.Get("name"))), nil
		}).WithArgument(schema.NewArgument("name", strType).WithDefault("world"))).
		AddField(schema.NewField("users", usersType, func(context.Context, schema.Args) (schema.Accessor, error) {
			return schema.FromSlot(usersType, loadUsers().Slot(), nil), nil
		})).
		AddField(schema.NewField("user", userType, func(_ context.Context, args schema.Args) (schema.Accessor, error) {
			id := args.Get("id")
			return schema.FromSlot(userType, loadUsers().Slot(), func(us []user) any {
				for _, u := range us {
					if u.ID == id {
						return u
					}
				}
				return nil
			}), nil
		}).WithArgument(schema.NewArgument("id", schema.NonNullType(schema.Named(schema.ID))))).
		AddField(schema.NewField("fail", strType, fail(errors.New("boom")))).
		AddField(schema.NewField("failNonNull", schema.NonNullType(strType), fail(errors.New("boom")))).
		AddField(schema.NewField("fatal", strType, fail(fmt.Errorf("loading: %w", errFatal)))).
		AddField(schema.NewField("forbidden", strType, fail(&gqlerror.Error{Message: "not allowed"}))).
		AddField(schema.NewField("explode", strType, func(context.Context, schema.Args) (schema.Accessor, error) {
			panic("kaboom")
		})).
		AddField(schema.NewField("mistyped", strType, constant(intType, 1))).
		AddField(schema.NewField("unreadable", strType, func(context.Context, schema.Args) (schema.Accessor, error) {
			return schema.AccessorFunc(strType, func(*schema.Record) any { panic("bad read") }), nil
		})).
		AddField(schema.NewField("crash", strType, func(context.Context, schema.Args) (schema.Accessor, error) {
			b.Add(batch.OperationFunc(func(context.Context) error { panic("operation failed") }))
			return schema.Const(strType, "never read"), nil
		}))
}

func (f *fixture) mutation(b *batch.Batch) *schema.Object {
	intType := schema.NonNullType(schema.Named(schema.Int))
	return schema.NewObject("Mutation", "").
		AddField(schema.NewField("incr", intType, func(_ context.Context, args schema.Args) (schema.Accessor, error) {
			label := fmt.Sprint(args.Get("label"))
			d := batch.Register(b, batch.NewDeferred(func(context.Context) (int, error) {
				f.counter++
				f.mutated = append(f.mutated, label)
				return f.counter, nil
			}))
			return schema.FromSlot(intType, d.Slot(), nil), nil
		}).WithArgument(schema.NewArgument("label", schema.Named(schema.String))))
}

func (f *fixture) run(t *testing.T, query string, vars map[string]any) *Result {
	t.Helper()
	res, err := f.executor.Execute(context.Background(), Request{Query: query, Variables: vars})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func messages(errs gqlerror.List) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Message
	}
	return out
}

func TestExecute_ScalarFields(t *testing.T) {
	f := newFixture(t)
	res := f.run(t, `{ foo bar baz }`, nil)
	require.Empty(t, res.Errors)
	require.Equal(t, []string{"foo", "bar", "baz"}, res.Data.Keys())

	out, err := json.Marshal(res)
	require.NoError(t, err)
	require.Equal(t, `{"data":{"foo":"foo","bar":2,"baz":true}}`, string(out))
}

func TestExecute_AliasesAndNesting(t *testing.T) {
	f := newFixture(t)
	res := f.run(t, `{
		first: user(id: "1") { id name friends { name } }
		all: users { id }
		again: users { name }
	}`, nil)
	require.Empty(t, res.Errors)

	// Pattern: Result comparison
	want := map[string]any{
		"first": map[string]any{
			"id":      "1",
			"name":    "ann",
			"friends": []any{map[string]any{"name": "bob"}},
		},
		"all":   []any{map[string]any{"id": "1"}, map[string]any{"id": "2"}},
		"again": []any{map[string]any{"name": "ann"}, map[string]any{"name": "bob"}},
	}
	if diff := cmp.Diff(want, res.Data.Map()); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	require.EqualValues(t, 1, f.fetches.Load(), "resolvers sharing a source share one fetch")
}

func TestExecute_Variables(t *testing.T) {
	f := newFixture(t)

	t.Run("nullable variable in non-null position", func(t *testing.T) {
		res := f.run(t, `query($id: Int) { echo(id: $id) }`, map[string]any{"id": float64(7)})
		require.Empty(t, res.Errors)
		require.Equal(t, map[string]any{"echo": 7}, res.Data.Map())
	})

	t.Run("default value", func(t *testing.T) {
		res := f.run(t, `query($id: Int = 3) { echo(id: $id) }`, nil)
		require.Empty(t, res.Errors)
		require.Equal(t, map[string]any{"echo": 3}, res.Data.Map())
	})

	t.Run("argument default", func(t *testing.T) {
		res := f.run(t, `{ a: greet b: greet(name: "ann") }`, nil)
		require.Empty(t, res.Errors)
		require.Equal(t, map[string]any{"a": "hello world", "b": "hello ann"}, res.Data.Map())
	})

	t.Run("type mismatch", func(t *testing.T) {
		res := f.run(t, `query($id: String) { echo(id: $id) }`, map[string]any{"id": "x"})
		require.Nil(t, res.Data)
		require.Equal(t, []string{"Variable '$id' of type 'String' used in position expecting type 'Int!'."}, messages(res.Errors))
		require.Len(t, res.Errors[0].Locations, 2)
	})

	t.Run("not defined", func(t *testing.T) {
		res := f.run(t, `{ echo(id: $id) }`, nil)
		require.Nil(t, res.Data)
		require.Equal(t, []string{"Variable '$id' is not defined."}, messages(res.Errors))
	})

	t.Run("unused", func(t *testing.T) {
		res := f.run(t, `query($x: Int, $y: Int) { echo(id: $y) }`, map[string]any{"y": 1})
		require.Nil(t, res.Data)
		require.Equal(t, []string{"Variable '$x' is not used."}, messages(res.Errors))
	})

	t.Run("used in excluded selection", func(t *testing.T) {
		res := f.run(t, `query($id: Int!) { foo echo(id: $id) @skip(if: true) }`, map[string]any{"id": 1})
		require.Empty(t, res.Errors)
		require.Equal(t, map[string]any{"foo": "foo"}, res.Data.Map())
	})

	t.Run("used below unresolved field", func(t *testing.T) {
		res := f.run(t, `query($s: Boolean!) { foo user(id: 1.5) { id name @include(if: $s) } }`, map[string]any{"s": true})
		require.Equal(t, map[string]any{"foo": "foo", "user": nil}, res.Data.Map())
		require.Len(t, res.Errors, 1)
		require.Contains(t, res.Errors[0].Message, "Argument 'id' expected value of type 'ID!'")
		require.Equal(t, ast.Path{ast.PathName("user")}, res.Errors[0].Path)
	})

	t.Run("used in fragment directive", func(t *testing.T) {
		res := f.run(t, `query($id: Int!, $s: Boolean!) { ...Q } fragment Q on Query { foo @include(if: $s) echo(id: $id) }`,
			map[string]any{"id": 2, "s": false})
		require.Empty(t, res.Errors)
		require.Equal(t, map[string]any{"echo": 2}, res.Data.Map())
	})

	t.Run("null for non-null argument", func(t *testing.T) {
		res := f.run(t, `query($id: Int) { echo(id: $id) foo }`, map[string]any{"id": nil})
		require.Equal(t, map[string]any{"echo": nil, "foo": "foo"}, res.Data.Map())
		require.Len(t, res.Errors, 1)
		require.Contains(t, res.Errors[0].Message, "Variable '$id' expected value of type 'Int!' but got: null.")
	})
}

func TestExecute_ArgumentCoercion(t *testing.T) {
	f := newFixture(t)
	res := f.run(t, `{ echo(id: "x") foo }`, nil)

	require.Equal(t, map[string]any{"echo": nil, "foo": "foo"}, res.Data.Map())
	require.Len(t, res.Errors, 1)
	gerr := res.Errors[0]
	require.Contains(t, gerr.Message, `Argument 'id' expected value of type 'Int!' but got: "x".`)
	require.Equal(t, ast.Path{ast.PathName("echo")}, gerr.Path)
	require.Equal(t, map[string]any{
		"InputError": map[string]any{"Input": "id", "Reason": "Coercion"},
	}, gerr.Extensions)
}

func TestExecute_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "unknown field",
			query: `{ foo nope }`,
			want:  []string{"Invalid field 'nope' specified on 'Query'."},
		},
		{
			name:  "unknown argument",
			query: `{ foo(x: 1) }`,
			want:  []string{"Unknown argument 'x' on field 'foo' of type 'Query'."},
		},
		{
			name:  "missing selection",
			query: `{ users }`,
			want:  []string{"Field 'users' of type '[User!]!' must have a selection of subfields."},
		},
		{
			name:  "selection on leaf",
			query: `{ foo { bar } }`,
			want:  []string{"Field 'foo' must not have a selection since type 'String' has no subfields."},
		},
		{
			name:  "nested unknown field",
			query: `{ users { id email } }`,
			want:  []string{"Invalid field 'email' specified on 'User'."},
		},
		{
			name:  "unknown field below unresolved field",
			query: `{ foo user(id: 1.5) { nope } }`,
			want:  []string{"Invalid field 'nope' specified on 'User'."},
		},
		{
			name:  "unknown field in skipped field",
			query: `{ foo users @skip(if: true) { id email } }`,
			want:  []string{"Invalid field 'email' specified on 'User'."},
		},
		{
			name:  "unknown argument in excluded fragment",
			query: `{ foo ... @include(if: false) { echo(id: 1, x: 2) } }`,
			want:  []string{"Unknown argument 'x' on field 'echo' of type 'Query'."},
		},
		{
			name:  "self spread",
			query: `{ ...A } fragment A on Query { foo ...A }`,
			want:  []string{"Cannot spread fragment 'A' within itself."},
		},
		{
			name:  "fragment cycle",
			query: `{ ...B } fragment B on Query { ...A } fragment A on Query { foo ...B }`,
			want:  []string{"Fragments 'A', 'B' spread each other in a cycle."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			res := f.run(t, tt.query, nil)
			require.Nil(t, res.Data)
			require.Equal(t, tt.want, messages(res.Errors))
			require.Zero(t, f.fetches.Load())
		})
	}
}

func TestExecute_AmbiguousMerge(t *testing.T) {
	f := newFixture(t)
	res := f.run(t, `{ foo ... on Query { foo } }`, nil)
	require.Nil(t, res.Data)
	require.Len(t, res.Errors, 1)
	require.Contains(t, res.Errors[0].Message, ErrAmbiguousMerge.Error())

	res = f.run(t, `{ a: foo a: bar }`, nil)
	require.Nil(t, res.Data)
	require.Len(t, res.Errors, 1)
	require.Equal(t, "Fields 'foo' and 'bar' conflict on response key 'a'.", res.Errors[0].Message)
}

func TestExecute_Fragments(t *testing.T) {
	f := newFixture(t)
	res := f.run(t, `
		query {
			...Head
			... on Query { baz }
			... { bar }
			... on User { id }
			...Head
		}
		fragment Head on Query { foo }
	`, nil)
	require.Empty(t, res.Errors)
	require.Equal(t, []string{"foo", "baz", "bar"}, res.Data.Keys())
}

func TestExecute_UnknownFragment(t *testing.T) {
	f := newFixture(t)
	_, err := f.executor.Execute(context.Background(), Request{Query: `{ ...Missing }`})
	require.ErrorIs(t, err, ErrUnknownFragment)
}

func TestExecute_Directives(t *testing.T) {
	f := newFixture(t)
	res := f.run(t, `query($s: Boolean!) { foo @skip(if: $s) bar @include(if: false) baz ... @include(if: true) { echo(id: 1) } }`,
		map[string]any{"s": true})
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"baz": true, "echo": 1}, res.Data.Map())
}

func TestExecute_ResolverErrors(t *testing.T) {
	t.Run("nullable field", func(t *testing.T) {
		f := newFixture(t)
		res := f.run(t, `{ foo fail }`, nil)
		require.Equal(t, map[string]any{"foo": "foo", "fail": nil}, res.Data.Map())
		require.Equal(t, []string{"Internal server error"}, messages(res.Errors))
		require.Equal(t, ast.Path{ast.PathName("fail")}, res.Errors[0].Path)
		require.Contains(t, f.logs.String(), "boom")
	})

	t.Run("graphql error passes through", func(t *testing.T) {
		f := newFixture(t)
		res := f.run(t, `{ blocked: forbidden }`, nil)
		require.Equal(t, map[string]any{"blocked": nil}, res.Data.Map())
		require.Equal(t, []string{"not allowed"}, messages(res.Errors))
		require.Equal(t, ast.Path{ast.PathName("blocked")}, res.Errors[0].Path)
	})

	t.Run("panic", func(t *testing.T) {
		f := newFixture(t)
		res := f.run(t, `{ explode foo }`, nil)
		require.Equal(t, map[string]any{"explode": nil, "foo": "foo"}, res.Data.Map())
		require.Equal(t, []string{"Internal server error"}, messages(res.Errors))
		require.Contains(t, f.logs.String(), "kaboom")
	})

	t.Run("panicking accessor", func(t *testing.T) {
		f := newFixture(t)
		res := f.run(t, `{ unreadable foo }`, nil)
		require.Equal(t, map[string]any{"unreadable": nil, "foo": "foo"}, res.Data.Map())
		require.Equal(t, []string{"Internal server error"}, messages(res.Errors))
		require.Equal(t, ast.Path{ast.PathName("unreadable")}, res.Errors[0].Path)
		require.Contains(t, f.logs.String(), "bad read")
	})

	t.Run("mistyped accessor", func(t *testing.T) {
		f := newFixture(t)
		res := f.run(t, `{ mistyped }`, nil)
		require.Equal(t, map[string]any{"mistyped": nil}, res.Data.Map())
		require.Equal(t, []string{"Internal server error"}, messages(res.Errors))
	})

	t.Run("exception filter escalates", func(t *testing.T) {
		f := newFixture(t, WithExceptionFilter(func(_ context.Context, err error) bool {
			return errors.Is(err, errFatal)
		}))
		res, err := f.executor.Execute(context.Background(), Request{Query: `{ fail fatal }`})
		require.ErrorIs(t, err, errFatal)
		require.Nil(t, res)

		res = f.run(t, `{ fail }`, nil)
		require.Equal(t, []string{"Internal server error"}, messages(res.Errors))
	})
}

func TestExecute_NullBubbling(t *testing.T) {
	t.Run("non-null root field", func(t *testing.T) {
		f := newFixture(t)
		res := f.run(t, `{ foo failNonNull }`, nil)
		require.Nil(t, res.Data)
		require.Equal(t, []string{"Internal server error"}, messages(res.Errors))
	})

	t.Run("nullable parent", func(t *testing.T) {
		f := newFixture(t)
		res := f.run(t, `{ user(id: "1") { id required } foo }`, nil)
		require.Equal(t, map[string]any{"user": nil, "foo": "foo"}, res.Data.Map())
		require.Equal(t, []string{"required could not be fetched"}, messages(res.Errors))
		require.Equal(t, ast.Path{ast.PathName("user"), ast.PathName("required")}, res.Errors[0].Path)
	})

	t.Run("through non-null list", func(t *testing.T) {
		f := newFixture(t)
		res := f.run(t, `{ users { required } }`, nil)
		require.Nil(t, res.Data)
		require.Equal(t, []string{"required could not be fetched", "required could not be fetched"}, messages(res.Errors))
		require.Equal(t, ast.Path{ast.PathName("users"), ast.PathIndex(1), ast.PathName("required")}, res.Errors[1].Path)
	})

	t.Run("missing object", func(t *testing.T) {
		f := newFixture(t)
		res := f.run(t, `{ user(id: "9") { id } }`, nil)
		require.Empty(t, res.Errors)
		require.Equal(t, map[string]any{"user": nil}, res.Data.Map())
	})
}

func TestExecute_Mutation(t *testing.T) {
	f := newFixture(t)
	res := f.run(t, `mutation { a: incr(label: "a") b: incr(label: "b") c: incr(label: "c") }`, nil)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"a": 1, "b": 2, "c": 3}, res.Data.Map())
	require.Equal(t, []string{"a", "b", "c"}, f.mutated)

	t.Run("no mutation root", func(t *testing.T) {
		e := New(&schema.Schema{Query: f.query}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
		_, err := e.Execute(context.Background(), Request{Query: `mutation { incr }`})
		require.ErrorIs(t, err, ErrNoMutation)
	})
}

func TestExecute_FatalErrors(t *testing.T) {
	f := newFixture(t)

	t.Run("syntax error", func(t *testing.T) {
		_, err := f.executor.Execute(context.Background(), Request{Query: `{ foo`})
		var syntax *language.SyntaxError
		require.ErrorAs(t, err, &syntax)
	})

	t.Run("operation selection", func(t *testing.T) {
		_, err := f.executor.Execute(context.Background(), Request{Query: `query A { foo } query B { bar }`})
		require.Error(t, err)

		res, err := f.executor.Execute(context.Background(), Request{Query: `query A { foo } query B { bar }`, OperationName: "B"})
		require.NoError(t, err)
		require.Equal(t, map[string]any{"bar": 2}, res.Data.Map())
	})

	t.Run("panicking operation", func(t *testing.T) {
		res, err := f.executor.Execute(context.Background(), Request{Query: `{ foo crash }`})
		require.ErrorIs(t, err, batch.ErrPanic)
		require.ErrorContains(t, err, "operation failed")
		require.Nil(t, res)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.executor.Execute(ctx, Request{Query: `{ users { id } }`})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestExecute_Events(t *testing.T) {
	bus := eventbus.New()
	eventbus.Use(bus)
	t.Cleanup(func() { eventbus.Use(nil) })

	var seen []string
	var ids []string
	record := func(ctx context.Context, name string) {
		seen = append(seen, name)
		id, _ := reqid.FromContext(ctx)
		ids = append(ids, id)
	}
	eventbus.Subscribe(func(ctx context.Context, e events.GraphQLStart) { record(ctx, "start:"+e.OperationType) })
	eventbus.Subscribe(func(ctx context.Context, e events.BatchStart) { record(ctx, fmt.Sprintf("batch:%s:%d", e.Mode, e.Operations)) })
	eventbus.Subscribe(func(ctx context.Context, e events.BatchFinish) { record(ctx, "batch done") })
	var finish events.GraphQLFinish
	eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
		finish = e
		record(ctx, "finish")
	})

	f := newFixture(t)
	f.run(t, `{ users { id } fail }`, nil)

	require.Equal(t, []string{"start:query", "batch:parallel:1", "batch done", "finish"}, seen)
	require.NotEmpty(t, ids[0])
	for _, id := range ids {
		require.Equal(t, ids[0], id)
	}
	require.Equal(t, []string{"Internal server error"}, finish.Errors)
	require.NoError(t, finish.Err)

	t.Run("syntax errors publish nothing", func(t *testing.T) {
		seen = nil
		_, err := f.executor.Execute(context.Background(), Request{Query: `{`})
		require.Error(t, err)
		require.Empty(t, seen)
	})
}
