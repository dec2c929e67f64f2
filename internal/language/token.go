package language

import "fmt"

// TokenKind classifies a lexical token.
type TokenKind int

const (
	TokenName TokenKind = iota
	TokenPunctuator
	TokenInt
	TokenFloat
	TokenString
)

func (k TokenKind) String() string {
	switch k {
	case TokenName:
		return "Name"
	case TokenPunctuator:
		return "Punctuator"
	case TokenInt:
		return "Int"
	case TokenFloat:
		return "Float"
	case TokenString:
		return "String"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

// Location is a 1-based line/column position in the request text. The zero
// Location marks nodes that were not produced from a source token.
type Location struct {
	Line   int
	Column int
}

func (l Location) String() string { return fmt.Sprintf("(%d,%d)", l.Line, l.Column) }

// IsZero reports whether l is the sentinel location.
func (l Location) IsZero() bool { return l.Line == 0 && l.Column == 0 }

// Token is a single lexeme. Int and Float tokens also carry their decoded value.
type Token struct {
	Kind     TokenKind
	Value    string
	Location Location
	Int      int64
	Float    float64
}

func (t Token) String() string {
	if t.Kind == TokenString {
		return fmt.Sprintf("%s(%q)@%s", t.Kind, t.Value, t.Location)
	}
	return fmt.Sprintf("%s(%s)@%s", t.Kind, t.Value, t.Location)
}

func (t Token) is(kind TokenKind, value string) bool {
	return t.Kind == kind && t.Value == value
}
