package schema

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/batchql/internal/batch"
)

func noop(context.Context, Args) (Accessor, error) { return nil, nil }

func TestAddField_Shape(t *testing.T) {
	tests := []struct {
		typ                                    *TypeRef
		nullable, singular, itemNullable bool
	}{
		{typ: Named(String), nullable: true, singular: true, itemNullable: true},
		{typ: NonNullType(Named(String)), nullable: false, singular: true, itemNullable: true},
		{typ: ListType(Named(String)), nullable: true, singular: false, itemNullable: true},
		{typ: ListType(NonNullType(Named(String))), nullable: true, singular: false, itemNullable: false},
		{typ: NonNullType(ListType(Named(String))), nullable: false, singular: false, itemNullable: true},
		{typ: NonNullType(ListType(NonNullType(Named(String)))), nullable: false, singular: false, itemNullable: false},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			obj := NewObject("Query", "").AddField(NewField("f", tt.typ, noop))
			f := obj.Field("f")
			require.Equal(t, tt.nullable, f.IsNullable)
			require.Equal(t, tt.singular, f.IsSingular)
			require.Equal(t, tt.itemNullable, f.IsItemNullable)
		})
	}
}

func TestAddField_Malformed(t *testing.T) {
	tests := map[string]func(){
		"no type":          func() { NewObject("Q", "").AddField(NewField("f", nil, noop)) },
		"no resolver":      func() { NewObject("Q", "").AddField(NewField("f", Named(Int), nil)) },
		"double non-null":  func() { NewObject("Q", "").AddField(NewField("f", NonNullType(NonNullType(Named(Int))), noop)) },
		"nested list":      func() { NewObject("Q", "").AddField(NewField("f", ListType(ListType(Named(Int))), noop)) },
		"duplicate":        func() { NewObject("Q", "").AddField(NewField("f", Named(Int), noop)).AddField(NewField("f", Named(Int), noop)) },
		"duplicate arg":    func() { NewField("f", Named(Int), noop).WithArgument(NewArgument("a", Named(Int))).WithArgument(NewArgument("a", Named(Int))) },
		"enum with slices": func() { NewEnum("E", "").AddValue(NewEnumValue("A", []int{1})) },
	}
	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			require.Panics(t, fn)
		})
	}
}

func TestAccessors(t *testing.T) {
	type user struct{ Name string }
	typ := Named(String)

	require.Nil(t, Null(typ).Value(nil))
	require.Equal(t, "x", Const(typ, "x").Value(&Record{Value: 1}))

	name := FromParent(typ, func(u user) any { return u.Name })
	require.Equal(t, "ann", name.Value(&Record{Value: user{Name: "ann"}}))
	require.Nil(t, name.Value(nil))
	require.Nil(t, name.Value(&Record{Value: 3}))

	b := batch.New(batch.Parallel)
	d := batch.Register(b, batch.NewDeferred(func(context.Context) (user, error) { return user{Name: "bob"}, nil }))
	root := FromSlot(typ, d.Slot(), func(u user) any { return u.Name })
	require.NoError(t, b.Execute(context.Background()))

	require.Equal(t, "bob", root.Value(nil))
	require.Same(t, typ, root.Type())
}

func demoSchema() *Schema {
	status := NewEnum("Status", "Account status.").
		AddValue(NewEnumValue("Active", 1)).
		AddValue(NewEnumValue("Suspended", 2).Deprecated("use Active"))
	filter := NewInputObject("UserFilter", "").
		AddField(NewInputValue("status", Named(status)).WithDefault(1)).
		AddField(NewInputValue("names", ListType(NonNullType(Named(String)))))
	dateTime := NewScalar("DateTime", "RFC 3339 timestamp.", parseString, serializeString)

	return &Schema{
		Query: func(*batch.Batch) *Object {
			user := NewObject("User", "A member of an organisation.").
				AddField(NewField("id", NonNullType(Named(ID)), noop)).
				AddField(NewField("joined", Named(dateTime), noop)).
				AddField(NewField("status", NonNullType(Named(status)), noop))
			return NewObject("Query", "").
				AddField(NewField("users", NonNullType(ListType(NonNullType(Named(user)))), noop).
					WithDescription("Lists users.").
					WithArgument(NewArgument("first", Named(Int)).WithDefault(10)).
					WithArgument(NewArgument("filter", Named(filter)))).
				AddField(NewField("legacy", Named(String), noop).Deprecated("no longer populated"))
		},
		Mutation: func(*batch.Batch) *Object {
			return NewObject("Mutation", "").
				AddField(NewField("touch", NonNullType(Named(Boolean)), noop))
		},
	}
}

func TestSchemaRenderSnapshot(t *testing.T) {
	actual := Render(demoSchema())

	// Snapshot file path
	snapshotPath := filepath.Join("testdata", "schema_rendered.graphql")

	// If snapshot doesn't exist, create it
	if _, err := os.Stat(snapshotPath); os.IsNotExist(err) {
		err := os.WriteFile(snapshotPath, []byte(actual), 0644)
		require.NoError(t, err, "failed to write snapshot file")
		t.Logf("Created snapshot file: %s", snapshotPath)
		return
	}

	// Read existing snapshot
	expected, err := os.ReadFile(snapshotPath)
	require.NoError(t, err, "failed to read snapshot file")

	// Compare snapshots
	if diff := cmp.Diff(string(expected), actual); diff != "" {
		t.Errorf("Rendered schema snapshot mismatch (-want +got):\n%s", diff)
	}
}
