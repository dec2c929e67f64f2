// Package rowgroup rebuilds nested records from the flat rows a relational
// join produces.
//
// A Group describes one level of nesting: the columns that identify a record
// at that level (Key), the columns it keeps, and the groups nested under it.
// Rows sharing a key collapse into one record; rows whose key has a null
// component are dropped, which is how a LEFT JOIN without a match
// disappears.
package rowgroup

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAmbiguousSingular is returned when a singular group matches more than
// one record.
var ErrAmbiguousSingular = errors.New("rowgroup: singular group matched more than one record")

// Row is one flat result row, keyed by column name.
type Row map[string]any

// Column maps a result column to the name it is exposed under.
type Column struct {
	Alias string
	Name  string
}

type Group struct {
	Name       string
	Key        []string
	IsSingular bool
	// Columns restricts and renames the columns copied into each record.
	// When empty the first row of each record is copied as is.
	Columns  []Column
	Children []*Group
}

func New(name string, singular bool, key ...string) *Group {
	return &Group{Name: name, Key: key, IsSingular: singular}
}

func (g *Group) AddChild(child *Group) *Group {
	g.Children = append(g.Children, child)
	return g
}

// Apply groups rows into records. A non-singular group yields []Row; a
// singular one yields a Row, or nil when nothing matched. With no rows at
// all the result is a single record holding only the children.
func (g *Group) Apply(rows []Row) (any, error) {
	if len(rows) == 0 {
		record := Row{}
		for _, child := range g.Children {
			v, err := child.apply(rows)
			if err != nil {
				return nil, err
			}
			record[child.Name] = v
		}
		return record, nil
	}
	return g.apply(rows)
}

func (g *Group) apply(rows []Row) (any, error) {
	partitions := Partition(rows, g.Key)
	records := make([]Row, 0, len(partitions))
	for _, part := range partitions {
		record := g.project(part[0])
		for _, child := range g.Children {
			v, err := child.apply(part)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", g.Name, err)
			}
			record[child.Name] = v
		}
		records = append(records, record)
	}

	if !g.IsSingular {
		return records, nil
	}
	switch len(records) {
	case 0:
		return nil, nil
	case 1:
		return records[0], nil
	default:
		return nil, fmt.Errorf("%s: %w (%d records)", g.Name, ErrAmbiguousSingular, len(records))
	}
}

func (g *Group) project(row Row) Row {
	if len(g.Columns) == 0 {
		out := make(Row, len(row))
		for k, v := range row {
			out[k] = v
		}
		return out
	}
	out := make(Row, len(g.Columns))
	for _, c := range g.Columns {
		out[c.Name] = row[c.Alias]
	}
	return out
}

// Partition splits rows by the composite key in first-seen order. Rows with
// a null key component are dropped.
func Partition(rows []Row, key []string) [][]Row {
	var out [][]Row
	index := make(map[string]int)
	for _, row := range rows {
		k, ok := compositeKey(row, key)
		if !ok {
			continue
		}
		i, seen := index[k]
		if !seen {
			i = len(out)
			index[k] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], row)
	}
	return out
}

func compositeKey(row Row, key []string) (string, bool) {
	var b strings.Builder
	for _, col := range key {
		v := row[col]
		if v == nil {
			return "", false
		}
		fmt.Fprintf(&b, "%T:%#v\x00", v, v)
	}
	return b.String(), true
}
