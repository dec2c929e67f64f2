package language

import "fmt"

// SyntaxError aborts a request before any resolution. It is not a GraphQL
// error and never becomes part of a partial result.
type SyntaxError struct {
	Message  string
	Location Location
}

func (e *SyntaxError) Error() string {
	if e.Location.IsZero() {
		return "syntax error: " + e.Message
	}
	return fmt.Sprintf("syntax error at %d:%d: %s", e.Location.Line, e.Location.Column, e.Message)
}

func syntaxErrorf(loc Location, format string, args ...any) *SyntaxError {
	return &SyntaxError{Message: fmt.Sprintf(format, args...), Location: loc}
}
