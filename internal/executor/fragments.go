package executor

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/gqlerror"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	language "github.com/hanpama/batchql/internal/language"
)

// checkFragmentCycles reports fragments that spread themselves, directly or
// through other fragments. Spreads of undefined fragments are ignored here.
func checkFragmentCycles(doc *language.Document) gqlerror.List {
	if len(doc.Fragments) == 0 {
		return nil
	}

	g := simple.NewDirectedGraph()
	ids := make(map[string]int64, len(doc.Fragments))
	byID := make(map[int64]*language.FragmentDefinition, len(doc.Fragments))
	for i, frag := range doc.Fragments {
		id := int64(i)
		ids[frag.Name] = id
		byID[id] = frag
		g.AddNode(simple.Node(id))
	}

	var errs gqlerror.List
	for _, frag := range doc.Fragments {
		from := ids[frag.Name]
		for _, spread := range spreadsIn(frag.SelectionSet) {
			to, ok := ids[spread.Name]
			if !ok {
				continue
			}
			if to == from {
				errs = append(errs, &gqlerror.Error{
					Message:   fmt.Sprintf("Cannot spread fragment '%s' within itself.", frag.Name),
					Locations: locations(spread.Location),
				})
				continue
			}
			g.SetEdge(g.NewEdge(simple.Node(from), simple.Node(to)))
		}
	}

	if _, err := topo.Sort(g); err != nil {
		var unorderable topo.Unorderable
		if !errors.As(err, &unorderable) {
			return append(errs, &gqlerror.Error{Message: err.Error()})
		}
		for _, component := range unorderable {
			frags := make([]*language.FragmentDefinition, 0, len(component))
			for _, n := range component {
				frags = append(frags, byID[n.ID()])
			}
			sort.Slice(frags, func(i, j int) bool { return frags[i].Name < frags[j].Name })
			names := make([]string, len(frags))
			locs := make([]language.Location, len(frags))
			for i, f := range frags {
				names[i] = "'" + f.Name + "'"
				locs[i] = f.Location
			}
			errs = append(errs, &gqlerror.Error{
				Message:   fmt.Sprintf("Fragments %s spread each other in a cycle.", strings.Join(names, ", ")),
				Locations: locations(locs...),
			})
		}
	}
	return errs
}

// spreadsIn lists every fragment spread in set, including those nested in
// fields and inline fragments.
func spreadsIn(set language.SelectionSet) []*language.FragmentSpread {
	var out []*language.FragmentSpread
	for _, sel := range set {
		switch sel := sel.(type) {
		case *language.FragmentSpread:
			out = append(out, sel)
		case *language.Field:
			out = append(out, spreadsIn(sel.SelectionSet)...)
		case *language.InlineFragment:
			out = append(out, spreadsIn(sel.SelectionSet)...)
		}
	}
	return out
}
