package language

import "fmt"

// OperationType is the root kind of an operation definition.
type OperationType string

const (
	Query    OperationType = "query"
	Mutation OperationType = "mutation"
)

// Document is the parsed form of a request.
type Document struct {
	Operations []*OperationDefinition
	Fragments  []*FragmentDefinition
}

// Fragment returns the fragment definition named name, or nil.
func (d *Document) Fragment(name string) *FragmentDefinition {
	for _, f := range d.Fragments {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Operation picks the operation to run. An empty name selects the only
// operation in the document.
func (d *Document) Operation(name string) (*OperationDefinition, error) {
	if name == "" {
		switch len(d.Operations) {
		case 0:
			return nil, fmt.Errorf("document does not contain any operation")
		case 1:
			return d.Operations[0], nil
		default:
			return nil, fmt.Errorf("operation name is required when the document contains %d operations", len(d.Operations))
		}
	}
	for _, op := range d.Operations {
		if op.Name == name {
			return op, nil
		}
	}
	return nil, fmt.Errorf("operation %q not found", name)
}

type OperationDefinition struct {
	Operation           OperationType
	Name                string
	VariableDefinitions []*VariableDefinition
	Directives          []*Directive
	SelectionSet        SelectionSet
	Location            Location
}

type FragmentDefinition struct {
	Name          string
	TypeCondition string
	Directives    []*Directive
	SelectionSet  SelectionSet
	Location      Location
}

type VariableDefinition struct {
	Name         string
	Type         InputType
	DefaultValue Value
	Location     Location
}

// Selection is one of *Field, *FragmentSpread or *InlineFragment.
type Selection interface {
	isSelection()
}

type SelectionSet []Selection

type Field struct {
	Alias        string
	Name         string
	Arguments    []*Argument
	Directives   []*Directive
	SelectionSet SelectionSet
	Location     Location
}

// ResponseKey is the key the field is written under in the result.
func (f *Field) ResponseKey() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

type FragmentSpread struct {
	Name       string
	Directives []*Directive
	Location   Location
}

// InlineFragment with an empty TypeCondition applies to any type.
type InlineFragment struct {
	TypeCondition string
	Directives    []*Directive
	SelectionSet  SelectionSet
	Location      Location
}

func (*Field) isSelection()          {}
func (*FragmentSpread) isSelection() {}
func (*InlineFragment) isSelection() {}

type Argument struct {
	Name     string
	Value    Value
	Location Location
}

type Directive struct {
	Name      string
	Arguments []*Argument
	Location  Location
}

// Argument returns the argument named name, or nil.
func (d *Directive) Argument(name string) *Argument {
	for _, a := range d.Arguments {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Value is one of the literal kinds below or a *Variable.
type Value interface {
	isValue()
}

type IntValue struct{ Value int64 }

type FloatValue struct{ Value float64 }

type StringValue struct{ Value string }

type BooleanValue struct{ Value bool }

type NullValue struct{}

type EnumValue struct{ Value string }

type ListValue struct{ Values []Value }

type ObjectValue struct{ Fields []*ObjectField }

type ObjectField struct {
	Name  string
	Value Value
}

type Variable struct {
	Name     string
	Location Location
}

func (*IntValue) isValue()     {}
func (*FloatValue) isValue()   {}
func (*StringValue) isValue()  {}
func (*BooleanValue) isValue() {}
func (*NullValue) isValue()    {}
func (*EnumValue) isValue()    {}
func (*ListValue) isValue()    {}
func (*ObjectValue) isValue()  {}
func (*Variable) isValue()     {}

// InputType is the declared type of a variable: *NamedType, *ListType or
// *NonNullType.
type InputType interface {
	fmt.Stringer
	isInputType()
}

type NamedType struct{ Name string }

type ListType struct{ Type InputType }

type NonNullType struct{ Type InputType }

func (t *NamedType) String() string   { return t.Name }
func (t *ListType) String() string    { return "[" + t.Type.String() + "]" }
func (t *NonNullType) String() string { return t.Type.String() + "!" }

func (*NamedType) isInputType()   {}
func (*ListType) isInputType()    {}
func (*NonNullType) isInputType() {}
