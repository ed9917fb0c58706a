package dsl

import "fmt"

// SyntaxError reports malformed rule text and where it went wrong.
type SyntaxError struct {
	Pos   Position
	Token string
	Msg   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %s near %q: %s", e.Pos, e.Token, e.Msg)
}
