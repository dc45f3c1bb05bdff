package query

import (
	"fmt"

	"github.com/hupe1980/vecfs/attr"
)

// SyntaxError reports malformed query text.
type SyntaxError struct {
	Msg string
	// Remainder is the input left unparsed when the error was found.
	Remainder string
}

func (e *SyntaxError) Error() string {
	if e.Remainder == "" {
		return fmt.Sprintf("query syntax error: %s at end of input", e.Msg)
	}
	return fmt.Sprintf("query syntax error: %s near %q", e.Msg, e.Remainder)
}

// TypeError reports a well-formed argument of the wrong kind.
type TypeError struct {
	Func string
	Arg  int
	Want attr.Kind
	Got  attr.Kind
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("query type error: %s argument %d must be %s, got %s", e.Func, e.Arg, e.Want, e.Got)
}
