// Package parser provides the scope-aware recursive descent parser for
// Narlie.
package parser

import (
	"fmt"

	"github.com/kolkov/narlie/internal/token"
)

// Error represents a grammar violation. Parsing stops at the first one.
type Error struct {
	Pos     token.Position // Position of the offending node
	Text    string         // Source text of the offending node
	Message string         // Human-readable error message
}

// Error returns a formatted error message with position information.
func (e *Error) Error() string {
	msg := e.Message
	if e.Text != "" {
		msg = e.Text + ": " + msg
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s", e.Pos, msg)
	}
	return msg
}

// Messages shared by tests and callers.
const (
	MsgFirstChild     = "must be the first child in a scope"
	MsgUnbalanced     = "scope does not pop back to zero"
	MsgUndefined      = "Id is undefined in this scope"
	MsgNotImplemented = "not implemented"
)

// errorf creates an Error at the given position with formatted message.
func errorf(pos token.Position, text, format string, args ...any) *Error {
	return &Error{
		Pos:     pos,
		Text:    text,
		Message: fmt.Sprintf(format, args...),
	}
}
