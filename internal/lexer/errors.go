package lexer

import (
	"fmt"

	"github.com/kolkov/narlie/internal/token"
)

// Error reasons.
const (
	UnexpectedCharacter = "unexpected character"
	UnterminatedString  = "unterminated string"
	InvalidEscape       = "invalid escape sequence"
	MissingExponent     = "missing exponent digits"
	NumberOutOfRange    = "numeric literal out of range"
)

// Error is a lexical error: an invalid or improperly terminated token.
type Error struct {
	Char   rune           // Offending character (-1 at end of input)
	Pos    token.Position // 1-based position of Char
	Reason string         // One of the reason constants above
}

func (e *Error) Error() string {
	if e.Char == eof {
		return fmt.Sprintf("%s: %s at end of input", e.Pos, e.Reason)
	}
	return fmt.Sprintf("%s: %s %q", e.Pos, e.Reason, e.Char)
}
