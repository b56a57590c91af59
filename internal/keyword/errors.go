package keyword

import (
	"fmt"
	"strings"
)

// ParseError reports a malformed keyword expression. Pos is the byte offset
// of the offending token and Token its text (empty at end of input).
type ParseError struct {
	Expr  string
	Pos   int
	Token string
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid keyword expression %q: %s at position %d", e.Expr, e.Msg, e.Pos)
}

// Pointer renders the expression with a caret under the offending token.
func (e *ParseError) Pointer() string {
	return e.Expr + "\n" + strings.Repeat(" ", e.Pos) + "^"
}
