package schema

// TypeDescription is the user-facing shape of a type, used in error messages
// and for checking variable usage against argument types.
type TypeDescription struct {
	Kind   TypeRefKind
	Name   string           // For named types
	OfType *TypeDescription // For List and NonNull
}

func NamedDescription(name string) TypeDescription {
	return TypeDescription{Kind: TypeRefKindNamed, Name: name}
}

func ListDescription(inner TypeDescription) TypeDescription {
	return TypeDescription{Kind: TypeRefKindList, OfType: &inner}
}

func NonNullDescription(inner TypeDescription) TypeDescription {
	return TypeDescription{Kind: TypeRefKindNonNull, OfType: &inner}
}

func (d TypeDescription) String() string {
	switch d.Kind {
	case TypeRefKindList:
		return "[" + d.OfType.String() + "]"
	case TypeRefKindNonNull:
		return d.OfType.String() + "!"
	default:
		return d.Name
	}
}

// CanBeDownCastTo reports whether a value described by d may be used where
// target is expected. A non-null type may stand in for its nullable form.
// A nullable type used in a non-null position is accepted here and rejected
// at coercion time if the value turns out to be null.
func (d TypeDescription) CanBeDownCastTo(target TypeDescription) bool {
	if d.Kind == TypeRefKindNonNull {
		if target.Kind == TypeRefKindNonNull {
			return d.OfType.CanBeDownCastTo(*target.OfType)
		}
		return d.OfType.CanBeDownCastTo(target)
	}
	if target.Kind == TypeRefKindNonNull {
		return d.CanBeDownCastTo(*target.OfType)
	}
	if d.Kind == TypeRefKindList {
		return target.Kind == TypeRefKindList && d.OfType.CanBeDownCastTo(*target.OfType)
	}
	return target.Kind == TypeRefKindNamed && d.Name == target.Name
}

// Describe renders the description of t.
func Describe(t *TypeRef) TypeDescription {
	return AdapterFor(t).Describe(t)
}
