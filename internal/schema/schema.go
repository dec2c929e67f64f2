package schema

import "github.com/hanpama/batchql/internal/batch"

// Schema holds the root object factories. Roots are built per request so
// that their resolvers close over that request's batch.
type Schema struct {
	Query    func(*batch.Batch) *Object
	Mutation func(*batch.Batch) *Object
}

// TypeKind represents the kind of a named type
type TypeKind string

const (
	TypeKindScalar      TypeKind = "SCALAR"
	TypeKindObject      TypeKind = "OBJECT"
	TypeKindEnum        TypeKind = "ENUM"
	TypeKindInputObject TypeKind = "INPUT_OBJECT"
)

// NamedType is the leaf of a TypeRef. Each implementation is the leaf
// adapter for its own kind.
type NamedType interface {
	Name() string
	Kind() TypeKind
	coerceInput(t *TypeRef, name string, value any) CoercionResult
	coerceResult(t *TypeRef, name string, value any) CoercionResult
}

// TypeRef represents a reference to a type (can be wrapped)
type TypeRef struct {
	Kind   TypeRefKind
	OfType *TypeRef  // For List and NonNull
	Named  NamedType // For named types
}

type TypeRefKind string

const (
	TypeRefKindNamed   TypeRefKind = "NAMED"
	TypeRefKindList    TypeRefKind = "LIST"
	TypeRefKindNonNull TypeRefKind = "NON_NULL"
)

func NonNullType(t *TypeRef) *TypeRef { return &TypeRef{Kind: TypeRefKindNonNull, OfType: t} }
func ListType(t *TypeRef) *TypeRef    { return &TypeRef{Kind: TypeRefKindList, OfType: t} }
func Named(t NamedType) *TypeRef      { return &TypeRef{Kind: TypeRefKindNamed, Named: t} }

// Helper functions for TypeRef
func (t *TypeRef) IsNonNull() bool {
	return t != nil && t.Kind == TypeRefKindNonNull
}

func (t *TypeRef) IsList() bool {
	if t.Kind == TypeRefKindList {
		return true
	}
	if t.Kind == TypeRefKindNonNull && t.OfType != nil {
		return t.OfType.Kind == TypeRefKindList
	}
	return false
}

func (t *TypeRef) Unwrap() *TypeRef {
	if t.Kind == TypeRefKindNonNull || t.Kind == TypeRefKindList {
		return t.OfType
	}
	return t
}

// NamedType returns the innermost named type.
func (t *TypeRef) NamedType() NamedType {
	current := t
	for current != nil {
		if current.Named != nil {
			return current.Named
		}
		current = current.OfType
	}
	return nil
}

// Object returns the innermost named type when it is an object.
func (t *TypeRef) Object() *Object {
	if t == nil {
		return nil
	}
	obj, _ := t.NamedType().(*Object)
	return obj
}

func (t *TypeRef) String() string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case TypeRefKindNamed:
		return t.Named.Name()
	case TypeRefKindList:
		return "[" + t.OfType.String() + "]"
	case TypeRefKindNonNull:
		return t.OfType.String() + "!"
	default:
		return ""
	}
}
