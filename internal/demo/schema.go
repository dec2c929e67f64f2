package demo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/vektah/gqlparser/v2/gqlerror"

	batch "github.com/hanpama/batchql/internal/batch"
	inmemory "github.com/hanpama/batchql/internal/inmemory"
	rowgroup "github.com/hanpama/batchql/internal/rowgroup"
	schema "github.com/hanpama/batchql/internal/schema"
)

var OrgTypeEnum = schema.NewEnum("OrgType", "Size class of an organisation.").
	AddValue(NewOrgTypeValue(OrgTypeSme)).
	AddValue(NewOrgTypeValue(OrgTypeEnterprise)).
	AddValue(NewOrgTypeValue(OrgTypeNotForProfit))

func NewOrgTypeValue(t OrgType) *schema.EnumValue {
	return schema.NewEnumValue(t.String(), t)
}

// Schema serves store. Every query reads the store through one join, shared
// by all fields that need organisations or users. Mutation fields read the
// store back after their own change.
func Schema(store *Store) *schema.Schema {
	return &schema.Schema{
		Query: func(b *batch.Batch) *schema.Object {
			return newRequest(store, b).query()
		},
		Mutation: func(b *batch.Batch) *schema.Object {
			return newRequest(store, b).mutation()
		},
	}
}

type organisationsKey struct{}
type enumKey struct{}

// request holds the per-request types; they close over the request's batch.
type request struct {
	store *Store
	batch *batch.Batch

	organisation *schema.Object
	user         *schema.Object
}

func newRequest(store *Store, b *batch.Batch) *request {
	r := &request{store: store, batch: b}
	r.organisation = schema.NewObject("Organisation", "")
	r.user = schema.NewObject("User", "A member of an organisation.")
	r.buildOrganisation()
	r.buildUser()
	return r
}

// organisations returns the request's organisation provider, registering
// it on first use.
func (r *request) organisations() *inmemory.Provider[rowgroup.Row] {
	return r.batch.Once(organisationsKey{}, func() batch.Operation {
		return inmemory.NewCollection(func(ctx context.Context) ([]rowgroup.Row, error) {
			return loadOrganisations(ctx, r.store)
		})
	}).(*inmemory.Provider[rowgroup.Row])
}

// loadOrganisations joins organisations with users and regroups the rows
// into organisation records, each holding its users under "users". Every
// user record points back to its organisation under "organisation".
func loadOrganisations(ctx context.Context, store *Store) ([]rowgroup.Row, error) {
	plan := rowgroup.NewPlan()
	orgs := plan.Group("organisations", false, []string{"id"}, "id", "name", "type", "revenuePerAnum", "departments")
	users := plan.Group("users", false, []string{"id"}, "id", "name", "organisationId")
	orgs.AddChild(users)

	columns := append(sourceColumns(orgs, "organisation."), sourceColumns(users, "user.")...)
	rows, err := store.Join(ctx, columns)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	grouped, err := orgs.Apply(rows)
	if err != nil {
		return nil, err
	}
	records := grouped.([]rowgroup.Row)
	for _, org := range records {
		for _, u := range usersOf(org) {
			u["organisation"] = org
		}
	}
	return records, nil
}

func usersOf(org rowgroup.Row) []rowgroup.Row {
	users, _ := org["users"].([]rowgroup.Row)
	return users
}

func sourceColumns(g *rowgroup.Group, prefix string) []rowgroup.Column {
	out := make([]rowgroup.Column, len(g.Columns))
	for i, c := range g.Columns {
		out[i] = rowgroup.Column{Alias: c.Alias, Name: prefix + c.Name}
	}
	return out
}

func findOrganisation(p *inmemory.Provider[rowgroup.Row], id any) any {
	for _, org := range p.Records() {
		if org["id"] == id {
			return org
		}
	}
	return nil
}

func column(t *schema.TypeRef, name string) schema.Resolver {
	return func(context.Context, schema.Args) (schema.Accessor, error) {
		return schema.FromParent(t, func(row rowgroup.Row) any { return row[name] }), nil
	}
}

func (r *request) buildOrganisation() {
	idType := schema.NonNullType(schema.Named(schema.ID))
	nameType := schema.NonNullType(schema.Named(schema.String))
	revenueType := schema.NonNullType(schema.Named(schema.Float))
	typeType := schema.NonNullType(schema.Named(OrgTypeEnum))
	usersType := schema.NonNullType(schema.ListType(schema.NonNullType(schema.Named(r.user))))
	namesType := schema.NonNullType(schema.ListType(schema.NonNullType(schema.Named(schema.String))))

	r.organisation.
		AddField(schema.NewField("id", idType, column(idType, "id"))).
		AddField(schema.NewField("name", nameType, column(nameType, "name"))).
		AddField(schema.NewField("revenuePerAnum", revenueType, column(revenueType, "revenuePerAnum"))).
		AddField(schema.NewField("type", typeType, column(typeType, "type"))).
		AddField(schema.NewField("users", usersType, column(usersType, "users"))).
		AddField(schema.NewField("userNames", namesType, func(context.Context, schema.Args) (schema.Accessor, error) {
			return schema.FromParent(namesType, func(row rowgroup.Row) any {
				users := usersOf(row)
				names := make([]any, len(users))
				for i, u := range users {
					names[i] = u["name"]
				}
				return names
			}), nil
		})).
		AddField(schema.NewField("departments", namesType, column(namesType, "departments")))
}

func (r *request) buildUser() {
	idType := schema.NonNullType(schema.Named(schema.ID))
	nameType := schema.NonNullType(schema.Named(schema.String))
	orgType := schema.NonNullType(schema.Named(r.organisation))

	r.user.
		AddField(schema.NewField("id", idType, column(idType, "id"))).
		AddField(schema.NewField("name", nameType, column(nameType, "name"))).
		AddField(schema.NewField("organisation", orgType, column(orgType, "organisation")))
}

func (r *request) query() *schema.Object {
	orgType := schema.NonNullType(schema.Named(r.organisation))
	orgsType := schema.NonNullType(schema.ListType(orgType))
	usersType := schema.NonNullType(schema.ListType(schema.NonNullType(schema.Named(r.user))))
	namesType := schema.NonNullType(schema.ListType(schema.NonNullType(schema.Named(schema.String))))
	enumType := schema.Named(OrgTypeEnum)

	return schema.NewObject("Query", "").
		AddField(schema.NewField("organisation", orgType, func(_ context.Context, args schema.Args) (schema.Accessor, error) {
			id, err := parseID(args.Get("organisationId"))
			if err != nil {
				return nil, err
			}
			p := r.organisations()
			return schema.AccessorFunc(orgType, func(*schema.Record) any {
				return findOrganisation(p, id.String())
			}), nil
		}).WithArgument(schema.NewArgument("organisationId", schema.NonNullType(schema.Named(schema.ID))))).
		AddField(schema.NewField("organisations", orgsType, func(context.Context, schema.Args) (schema.Accessor, error) {
			return r.organisations().Select(orgsType, func(row rowgroup.Row) any { return row }), nil
		})).
		AddField(schema.NewField("organisationNames", namesType, func(context.Context, schema.Args) (schema.Accessor, error) {
			names := inmemory.Child(r.organisations(), func(row rowgroup.Row) string {
				name, _ := row["name"].(string)
				return name
			})
			return names.Select(namesType, func(name string) any { return name }), nil
		})).
		AddField(schema.NewField("users", usersType, func(context.Context, schema.Args) (schema.Accessor, error) {
			users := inmemory.ChildForCollection(r.organisations(), usersOf)
			return users.Select(usersType, func(row rowgroup.Row) any { return row }), nil
		})).
		AddField(schema.NewField("organisationsNamed", orgsType, func(_ context.Context, args schema.Args) (schema.Accessor, error) {
			name := args.Get("name")
			p := r.organisations()
			return schema.AccessorFunc(orgsType, func(*schema.Record) any {
				var out []rowgroup.Row
				for _, org := range p.Records() {
					if name != nil && org["name"] == name {
						out = append(out, org)
					}
				}
				return out
			}), nil
		}).WithArgument(schema.NewArgument("name", schema.Named(schema.String)))).
		AddField(schema.NewField("enumValue", enumType, func(_ context.Context, args schema.Args) (schema.Accessor, error) {
			p := r.batch.Once(enumKey{}, func() batch.Operation {
				return inmemory.New(func(context.Context) (OrgType, error) { return OrgTypeSme, nil })
			}).(*inmemory.Provider[OrgType])
			return p.Select(enumType, func(OrgType) any { return args.Get("value") }), nil
		}).WithArgument(schema.NewArgument("value", enumType)))
}

func (r *request) mutation() *schema.Object {
	orgType := schema.NonNullType(schema.Named(r.organisation))
	userType := schema.NonNullType(schema.Named(r.user))
	idArg := schema.NewArgument("organisationId", schema.NonNullType(schema.Named(schema.ID)))
	nameArg := schema.NewArgument("name", schema.NonNullType(schema.Named(schema.String)))

	return schema.NewObject("Mutation", "").
		AddField(schema.NewField("renameOrganisation", orgType, func(_ context.Context, args schema.Args) (schema.Accessor, error) {
			id, err := parseID(args.Get("organisationId"))
			if err != nil {
				return nil, err
			}
			name := args.Get("name").(string)
			batch.Register(r.batch, batch.OperationFunc(func(ctx context.Context) error {
				_, err := r.store.Rename(ctx, id, name)
				return notFound(err)
			}))
			// Read back after this rename and before any later mutation.
			p := batch.Register(r.batch, inmemory.NewCollection(func(ctx context.Context) ([]rowgroup.Row, error) {
				return loadOrganisations(ctx, r.store)
			}))
			return schema.AccessorFunc(orgType, func(*schema.Record) any {
				return findOrganisation(p, id.String())
			}), nil
		}).WithArgument(idArg).WithArgument(nameArg)).
		AddField(schema.NewField("addUser", userType, func(_ context.Context, args schema.Args) (schema.Accessor, error) {
			id, err := parseID(args.Get("organisationId"))
			if err != nil {
				return nil, err
			}
			name := args.Get("name").(string)
			// The added user is read back with its organisation as of right
			// after the insert.
			d := batch.Register(r.batch, batch.NewDeferred(func(ctx context.Context) (rowgroup.Row, error) {
				u, err := r.store.AddUser(id, name)
				if err != nil {
					return nil, notFound(err)
				}
				orgs, err := loadOrganisations(ctx, r.store)
				if err != nil {
					return nil, err
				}
				for _, org := range orgs {
					for _, row := range usersOf(org) {
						if row["id"] == u.ID.String() {
							return row, nil
						}
					}
				}
				return nil, notFound(fmt.Errorf("user %s: %w", u.ID, ErrNotFound))
			}))
			return schema.FromSlot(userType, d.Slot(), nil), nil
		}).WithArgument(idArg).WithArgument(nameArg))
}

func parseID(v any) (uuid.UUID, error) {
	s, _ := v.(string)
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, gqlerror.Errorf("'%s' is not a valid id", s)
	}
	return id, nil
}

// notFound reports missing records as GraphQL errors so the request fails
// with a structured error instead of an internal one.
func notFound(err error) error {
	if err == nil {
		return nil
	}
	return &gqlerror.Error{Message: err.Error(), Err: err, Extensions: map[string]any{"code": "NOT_FOUND"}}
}

