// Package demo is a small organisation directory served through batchql.
// Organisations and their users are read as one left join and regrouped
// into nested records before the fields read them.
package demo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	rowgroup "github.com/hanpama/batchql/internal/rowgroup"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("demo: record not found")

type OrgType int

const (
	OrgTypeSme OrgType = iota + 1
	OrgTypeEnterprise
	OrgTypeNotForProfit
)

func (t OrgType) String() string {
	switch t {
	case OrgTypeSme:
		return "Sme"
	case OrgTypeEnterprise:
		return "Enterprise"
	case OrgTypeNotForProfit:
		return "NotForProfit"
	default:
		return fmt.Sprintf("OrgType(%d)", int(t))
	}
}

type Organisation struct {
	ID             uuid.UUID
	Name           string
	Type           OrgType
	RevenuePerAnum float64
	Departments    []string
}

type User struct {
	ID             uuid.UUID
	Name           string
	OrganisationID uuid.UUID
}

var idSpace = uuid.MustParse("6f1f4c57-3f5a-4f43-9a43-2b8a3c1d0e11")

// Store keeps organisations and users in insertion order.
type Store struct {
	mu            sync.RWMutex
	organisations []Organisation
	users         []User

	joins atomic.Int64
}

func NewStore() *Store { return &Store{} }

// Seed returns a store with a few organisations, one of them without users.
func Seed() *Store {
	s := NewStore()
	windup := s.AddOrganisation("Windup Button", OrgTypeSme, 1250000, "Engineering", "Design")
	acme := s.AddOrganisation("Acme", OrgTypeEnterprise, 98000000.5, "Sales", "Support", "Legal")
	s.AddOrganisation("Food Bank", OrgTypeNotForProfit, 0)
	s.mustAddUser(windup.ID, "Ann")
	s.mustAddUser(windup.ID, "Bob")
	s.mustAddUser(acme.ID, "Cid")
	return s
}

// AddOrganisation stores a new organisation. Ids are derived from the name
// so a seeded store always has the same ids.
func (s *Store) AddOrganisation(name string, typ OrgType, revenue float64, departments ...string) Organisation {
	s.mu.Lock()
	defer s.mu.Unlock()
	org := Organisation{
		ID:             uuid.NewSHA1(idSpace, []byte("organisation:"+name)),
		Name:           name,
		Type:           typ,
		RevenuePerAnum: revenue,
		Departments:    append([]string{}, departments...),
	}
	s.organisations = append(s.organisations, org)
	return org
}

// AddUser stores a new member of the organisation orgID.
func (s *Store) AddUser(orgID uuid.UUID, name string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(orgID) < 0 {
		return User{}, fmt.Errorf("organisation %s: %w", orgID, ErrNotFound)
	}
	u := User{
		ID:             uuid.NewSHA1(idSpace, []byte(fmt.Sprintf("user:%s:%s:%d", orgID, name, len(s.users)))),
		Name:           name,
		OrganisationID: orgID,
	}
	s.users = append(s.users, u)
	return u, nil
}

func (s *Store) mustAddUser(orgID uuid.UUID, name string) {
	if _, err := s.AddUser(orgID, name); err != nil {
		panic(err)
	}
}

// Rename changes an organisation's name.
func (s *Store) Rename(ctx context.Context, id uuid.UUID, name string) (Organisation, error) {
	if err := ctx.Err(); err != nil {
		return Organisation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return Organisation{}, fmt.Errorf("organisation %s: %w", id, ErrNotFound)
	}
	s.organisations[i].Name = name
	return s.organisations[i], nil
}

func (s *Store) indexOf(id uuid.UUID) int {
	return slices.IndexFunc(s.organisations, func(o Organisation) bool { return o.ID == id })
}

// Joins reports how many joins the store has served.
func (s *Store) Joins() int64 { return s.joins.Load() }

// Join returns organisations left joined with their users. Each row holds
// the requested source columns under their aliases. Source columns are
// named "organisation.<field>" and "user.<field>"; organisations without
// users produce one row whose user columns are null.
func (s *Store) Join(ctx context.Context, columns []rowgroup.Column) ([]rowgroup.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, c := range columns {
		if _, err := columnValue(c.Name, nil, nil); err != nil {
			return nil, err
		}
	}
	s.joins.Add(1)

	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []rowgroup.Row
	for i := range s.organisations {
		org := &s.organisations[i]
		matched := false
		for j := range s.users {
			if s.users[j].OrganisationID != org.ID {
				continue
			}
			matched = true
			rows = append(rows, joinRow(columns, org, &s.users[j]))
		}
		if !matched {
			rows = append(rows, joinRow(columns, org, nil))
		}
	}
	return rows, nil
}

func joinRow(columns []rowgroup.Column, org *Organisation, u *User) rowgroup.Row {
	row := make(rowgroup.Row, len(columns))
	for _, c := range columns {
		row[c.Alias], _ = columnValue(c.Name, org, u)
	}
	return row
}

// columnValue reads a source column. Nil records read as null.
func columnValue(name string, org *Organisation, u *User) (any, error) {
	table, field, _ := strings.Cut(name, ".")
	switch table {
	case "organisation":
		switch field {
		case "id", "name", "type", "revenuePerAnum", "departments":
		default:
			return nil, fmt.Errorf("demo: unknown column %q", name)
		}
		if org == nil {
			return nil, nil
		}
		switch field {
		case "id":
			return org.ID.String(), nil
		case "name":
			return org.Name, nil
		case "type":
			return org.Type, nil
		case "revenuePerAnum":
			return org.RevenuePerAnum, nil
		default:
			return org.Departments, nil
		}
	case "user":
		switch field {
		case "id", "name", "organisationId":
		default:
			return nil, fmt.Errorf("demo: unknown column %q", name)
		}
		if u == nil {
			return nil, nil
		}
		switch field {
		case "id":
			return u.ID.String(), nil
		case "name":
			return u.Name, nil
		default:
			return u.OrganisationID.String(), nil
		}
	}
	return nil, fmt.Errorf("demo: unknown column %q", name)
}
