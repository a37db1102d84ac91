package token

import "fmt"

// Position is a location in Narlie source. Line and Column count from 1;
// Column counts characters, not bytes.
type Position struct {
	Filename string
	Line     int
	Column   int
	Offset   int // byte offset
}

// Start returns the position of the first character of a file.
func Start(filename string) Position {
	return Position{Filename: filename, Line: 1, Column: 1}
}

// Advance returns the position following r, where r is size bytes long.
func (p Position) Advance(r rune, size int) Position {
	p.Offset += size
	if r == '\n' {
		p.Line++
		p.Column = 1
		return p
	}
	p.Column++
	return p
}

// String formats p as "file:line:col", or "line:col" without a file name.
func (p Position) String() string {
	if p.Filename != "" {
		return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// IsValid reports whether p refers to a real location.
func (p Position) IsValid() bool {
	return p.Line > 0
}
