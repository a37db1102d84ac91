// Package codegen lowers a parsed Narlie tree into calls against a
// backend.Backend.
package codegen

import (
	"fmt"

	"github.com/kolkov/narlie/internal/ast"
	"github.com/kolkov/narlie/internal/token"
)

// Error represents a code generation error.
type Error struct {
	Pos     token.Position
	Node    string // Printed form of the offending node
	Message string
	Want    string // Expected count or kind, if any
	Got     string
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Node != "" {
		msg = e.Node + ": " + msg
	}
	if e.Want != "" || e.Got != "" {
		msg += fmt.Sprintf(" (want %s, got %s)", e.Want, e.Got)
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s", e.Pos, msg)
	}
	return msg
}

// Messages shared by tests and callers.
const (
	MsgNoReference   = "cannot find codegen reference"
	MsgUnknownHost   = "unknown host method"
	MsgSingleValue   = "must produce exactly one value"
	MsgArgumentCount = "wrong number of argument values"
	MsgArgumentKinds = "argument kinds do not match host method"
	MsgControlValue  = "control form used as a value"
)

func errorAt(n ast.Node, format string, args ...any) *Error {
	return &Error{
		Pos:     n.Pos(),
		Node:    ast.String(n),
		Message: fmt.Sprintf(format, args...),
	}
}
