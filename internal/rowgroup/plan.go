package rowgroup

import "fmt"

// Plan hands out column aliases that are unique within one query and builds
// the groups that read them back. Use one Plan per query.
type Plan struct {
	next int
}

func NewPlan() *Plan { return &Plan{} }

// Alias returns a fresh alias.
func (p *Plan) Alias() string {
	alias := fmt.Sprintf("field%d", p.next)
	p.next++
	return alias
}

// Group returns a group exposing columns under fresh aliases. key names
// the identifying columns among columns.
func (p *Plan) Group(name string, singular bool, key []string, columns ...string) *Group {
	g := &Group{Name: name, IsSingular: singular}
	aliases := make(map[string]string, len(columns))
	for _, col := range columns {
		alias := p.Alias()
		aliases[col] = alias
		g.Columns = append(g.Columns, Column{Alias: alias, Name: col})
	}
	for _, k := range key {
		alias, ok := aliases[k]
		if !ok {
			alias = p.Alias()
			g.Columns = append(g.Columns, Column{Alias: alias, Name: k})
		}
		g.Key = append(g.Key, alias)
	}
	return g
}
