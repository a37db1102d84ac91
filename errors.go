package narlie

import (
	"errors"
	"fmt"

	"github.com/kolkov/narlie/internal/codegen"
	"github.com/kolkov/narlie/internal/lexer"
	"github.com/kolkov/narlie/internal/parser"
	"github.com/kolkov/narlie/internal/vm"
)

// LexError represents an invalid or improperly terminated token.
type LexError struct {
	Line    int    // 1-based line number
	Column  int    // 1-based column number
	Message string // Error description
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at %d:%d: %s", e.Line, e.Column, e.Message)
}

// ParseError represents a grammar or resolution error in Narlie source.
type ParseError struct {
	Line    int    // 1-based line number
	Column  int    // 1-based column number
	Message string // Error description
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Column, e.Message)
}

// CodeGenError represents an error while lowering a parsed program.
type CodeGenError struct {
	Line    int // 1-based line number, 0 if unknown
	Column  int // 1-based column number, 0 if unknown
	Message string
}

func (e *CodeGenError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("codegen error: %s", e.Message)
	}
	return fmt.Sprintf("codegen error at %d:%d: %s", e.Line, e.Column, e.Message)
}

// RuntimeError represents an error during execution.
type RuntimeError struct {
	Method  string // Method being executed
	Message string // Error description
	Err     error  // Underlying error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %s", e.Message)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// compileError converts an internal lexer, parser or codegen error to
// its public type.
func compileError(err error) error {
	var le *lexer.Error
	if errors.As(err, &le) {
		msg := le.Reason
		if le.Char >= 0 {
			msg = fmt.Sprintf("%s %q", le.Reason, le.Char)
		}
		return &LexError{Line: le.Pos.Line, Column: le.Pos.Column, Message: msg}
	}
	var pe *parser.Error
	if errors.As(err, &pe) {
		msg := pe.Message
		if pe.Text != "" {
			msg = pe.Text + ": " + msg
		}
		return &ParseError{Line: pe.Pos.Line, Column: pe.Pos.Column, Message: msg}
	}
	var ce *codegen.Error
	if errors.As(err, &ce) {
		msg := ce.Message
		if ce.Node != "" {
			msg = ce.Node + ": " + msg
		}
		if ce.Want != "" || ce.Got != "" {
			msg += fmt.Sprintf(" (want %s, got %s)", ce.Want, ce.Got)
		}
		return &CodeGenError{Line: ce.Pos.Line, Column: ce.Pos.Column, Message: msg}
	}
	return &CodeGenError{Message: err.Error()}
}

// runtimeError converts a VM error to its public type.
func runtimeError(err error) error {
	var re *vm.RuntimeError
	if errors.As(err, &re) {
		return &RuntimeError{Method: re.Method, Message: re.Err.Error(), Err: re.Err}
	}
	return &RuntimeError{Message: err.Error(), Err: err}
}
