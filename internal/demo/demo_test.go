package demo

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	executor "github.com/hanpama/batchql/internal/executor"
	rowgroup "github.com/hanpama/batchql/internal/rowgroup"
)

func orgID(name string) string {
	return uuid.NewSHA1(idSpace, []byte("organisation:"+name)).String()
}

func execute(t *testing.T, store *Store, query string, vars map[string]any) *executor.Result {
	t.Helper()
	e := executor.New(Schema(store), executor.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	res, err := e.Execute(context.Background(), executor.Request{Query: query, Variables: vars})
	require.NoError(t, err)
	return res
}

func TestStore_Join(t *testing.T) {
	s := Seed()
	rows, err := s.Join(context.Background(), []rowgroup.Column{
		{Alias: "o", Name: "organisation.name"},
		{Alias: "u", Name: "user.name"},
	})
	require.NoError(t, err)

	want := []rowgroup.Row{
		{"o": "Windup Button", "u": "Ann"},
		{"o": "Windup Button", "u": "Bob"},
		{"o": "Acme", "u": "Cid"},
		{"o": "Food Bank", "u": nil},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}

	_, err = s.Join(context.Background(), []rowgroup.Column{{Alias: "x", Name: "organisation.owner"}})
	require.ErrorContains(t, err, `unknown column "organisation.owner"`)
}

func TestQuery_Organisations(t *testing.T) {
	s := Seed()
	res := execute(t, s, `{
		organisations { name type departments users { name } userNames }
		organisationNames
	}`, nil)
	require.Empty(t, res.Errors)

	// Pattern: Result comparison
	want := map[string]any{
		"organisations": []any{
			map[string]any{
				"name":        "Windup Button",
				"type":        "SME",
				"departments": []any{"Engineering", "Design"},
				"users":       []any{map[string]any{"name": "Ann"}, map[string]any{"name": "Bob"}},
				"userNames":   []any{"Ann", "Bob"},
			},
			map[string]any{
				"name":        "Acme",
				"type":        "ENTERPRISE",
				"departments": []any{"Sales", "Support", "Legal"},
				"users":       []any{map[string]any{"name": "Cid"}},
				"userNames":   []any{"Cid"},
			},
			map[string]any{
				"name":        "Food Bank",
				"type":        "NOT_FOR_PROFIT",
				"departments": []any{},
				"users":       []any{},
				"userNames":   []any{},
			},
		},
		"organisationNames": []any{"Windup Button", "Acme", "Food Bank"},
	}
	if diff := cmp.Diff(want, res.Data.Map()); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	require.EqualValues(t, 1, s.Joins(), "all fields share one join")
}

func TestQuery_Users(t *testing.T) {
	s := Seed()
	res := execute(t, s, `{ users { name organisation { name type } } organisationNames }`, nil)
	require.Empty(t, res.Errors)

	want := map[string]any{
		"users": []any{
			map[string]any{"name": "Ann", "organisation": map[string]any{"name": "Windup Button", "type": "SME"}},
			map[string]any{"name": "Bob", "organisation": map[string]any{"name": "Windup Button", "type": "SME"}},
			map[string]any{"name": "Cid", "organisation": map[string]any{"name": "Acme", "type": "ENTERPRISE"}},
		},
		"organisationNames": []any{"Windup Button", "Acme", "Food Bank"},
	}
	if diff := cmp.Diff(want, res.Data.Map()); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	require.EqualValues(t, 1, s.Joins())
}

func TestQuery_Organisation(t *testing.T) {
	s := Seed()

	t.Run("by id with back reference", func(t *testing.T) {
		res := execute(t, s, `query($id: ID!) {
			organisation(organisationId: $id) { id revenuePerAnum users { name organisation { name } } }
		}`, map[string]any{"id": orgID("Acme")})
		require.Empty(t, res.Errors)
		want := map[string]any{
			"organisation": map[string]any{
				"id":             orgID("Acme"),
				"revenuePerAnum": 98000000.5,
				"users": []any{
					map[string]any{"name": "Cid", "organisation": map[string]any{"name": "Acme"}},
				},
			},
		}
		if diff := cmp.Diff(want, res.Data.Map()); diff != "" {
			t.Errorf("result mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("missing", func(t *testing.T) {
		res := execute(t, s, `{ organisation(organisationId: "`+uuid.Nil.String()+`") { name } }`, nil)
		require.Nil(t, res.Data)
		require.Len(t, res.Errors, 1)
		require.Equal(t, "organisation could not be fetched", res.Errors[0].Message)
	})

	t.Run("malformed id", func(t *testing.T) {
		res := execute(t, s, `{ organisation(organisationId: "nope") { name } }`, nil)
		require.Nil(t, res.Data)
		require.Len(t, res.Errors, 1)
		require.Equal(t, "'nope' is not a valid id", res.Errors[0].Message)
	})

	t.Run("by name", func(t *testing.T) {
		res := execute(t, s, `{ a: organisationsNamed(name: "Acme") { name } b: organisationsNamed { name } }`, nil)
		require.Empty(t, res.Errors)
		require.Equal(t, map[string]any{
			"a": []any{map[string]any{"name": "Acme"}},
			"b": []any{},
		}, res.Data.Map())
	})
}

func TestQuery_EnumValue(t *testing.T) {
	s := NewStore()
	res := execute(t, s, `query($v: OrgType) { a: enumValue(value: NOT_FOR_PROFIT) b: enumValue(value: $v) c: enumValue }`,
		map[string]any{"v": "enterprise"})
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"a": "NOT_FOR_PROFIT", "b": "ENTERPRISE", "c": nil}, res.Data.Map())
	require.Zero(t, s.Joins())
}

func TestQuery_EmptyStore(t *testing.T) {
	res := execute(t, NewStore(), `{ organisations { name } organisationNames users { name } }`, nil)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"organisations": []any{}, "organisationNames": []any{}, "users": []any{}}, res.Data.Map())
}

func TestMutation(t *testing.T) {
	s := Seed()
	res := execute(t, s, `mutation($id: ID!) {
		first: renameOrganisation(organisationId: $id, name: "Acme Ltd") { name }
		addUser(organisationId: $id, name: "Dee") { name organisation { name userNames } }
		second: renameOrganisation(organisationId: $id, name: "Acme Group") { name userNames }
	}`, map[string]any{"id": orgID("Acme")})
	require.Empty(t, res.Errors)

	// Each field reads the store as it was right after its own mutation.
	want := map[string]any{
		"first": map[string]any{"name": "Acme Ltd"},
		"addUser": map[string]any{
			"name":         "Dee",
			"organisation": map[string]any{"name": "Acme Ltd", "userNames": []any{"Cid", "Dee"}},
		},
		"second": map[string]any{"name": "Acme Group", "userNames": []any{"Cid", "Dee"}},
	}
	if diff := cmp.Diff(want, res.Data.Map()); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	t.Run("back references read each field's own state", func(t *testing.T) {
		s := Seed()
		res := execute(t, s, `mutation($id: ID!) {
			first: renameOrganisation(organisationId: $id, name: "Acme Ltd") { users { organisation { name } } }
			second: renameOrganisation(organisationId: $id, name: "Acme Group") { users { organisation { name } } }
		}`, map[string]any{"id": orgID("Acme")})
		require.Empty(t, res.Errors)

		want := map[string]any{
			"first":  map[string]any{"users": []any{map[string]any{"organisation": map[string]any{"name": "Acme Ltd"}}}},
			"second": map[string]any{"users": []any{map[string]any{"organisation": map[string]any{"name": "Acme Group"}}}},
		}
		if diff := cmp.Diff(want, res.Data.Map()); diff != "" {
			t.Errorf("result mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unknown organisation", func(t *testing.T) {
		res := execute(t, s, `mutation { addUser(organisationId: "`+uuid.Nil.String()+`", name: "x") { name } }`, nil)
		require.Nil(t, res.Data)
		require.Len(t, res.Errors, 1)
		require.Contains(t, res.Errors[0].Message, "record not found")
		require.Equal(t, "NOT_FOUND", res.Errors[0].Extensions["code"])
	})
}
