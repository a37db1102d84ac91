// Package lexer provides Narlie source code tokenization.
package lexer

import (
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kolkov/narlie/internal/token"
)

// eof is the sentinel character at the end of input.
const eof = -1

// Lexer tokenizes Narlie source code.
type Lexer struct {
	src     []byte         // Source code
	ch      rune           // Current character (eof at end of input)
	offset  int            // Byte offset of the next character
	pos     token.Position // Position of the current character
	nextPos token.Position // Position of the next character
}

// New creates a new Lexer for the given source code.
func New(src []byte) *Lexer {
	l := &Lexer{}
	l.Reset(src)
	return l
}

// NewFromString creates a new Lexer from a string.
func NewFromString(src string) *Lexer {
	return New([]byte(src))
}

// Reset prepares the lexer to scan a new compilation unit.
func (l *Lexer) Reset(src []byte) {
	l.src = src
	l.offset = 0
	l.pos = token.Start(l.pos.Filename)
	l.nextPos = l.pos
	l.next() // Initialize first character
}

// SetFilename sets the file name reported in token positions.
func (l *Lexer) SetFilename(name string) {
	l.pos.Filename = name
	l.nextPos.Filename = name
}

// Token represents a scanned token with its position and value.
type Token struct {
	Type  token.Token
	Pos   token.Position
	Value string // Source text (identifiers, keywords) or unescaped string

	Int  int64   // Value of Int tokens
	Real float64 // Value of Real tokens
	Bool bool    // Value of Bool tokens
}

// String returns the source form of the token. Scanning the result
// yields a token with the same type and value.
func (t Token) String() string {
	switch t.Type {
	case token.ScopePush:
		return "("
	case token.ScopePop:
		return ")"
	case token.Nil:
		return "nil"
	case token.Bool:
		if t.Bool {
			return "#t"
		}
		return "#f"
	case token.Int:
		return strconv.FormatInt(t.Int, 10)
	case token.Real:
		return FormatReal(t.Real)
	case token.String:
		return Quote(t.Value)
	case token.Unknown:
		return ""
	default:
		return t.Value
	}
}

// FormatReal formats f so that it scans back as a Real token.
func FormatReal(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Quote returns s as a string literal using the only two escapes
// the lexer accepts.
func Quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		if r == '"' || r == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	sb.WriteByte('"')
	return sb.String()
}

// Scan scans and returns the next token.
// At end of input it returns a token of type Unknown.
func (l *Lexer) Scan() (Token, error) {
	l.skipWhitespace()

	pos := l.pos

	switch {
	case l.ch == eof:
		return Token{Type: token.Unknown, Pos: pos}, nil
	case l.ch == '(':
		l.next()
		return Token{Type: token.ScopePush, Pos: pos, Value: "("}, nil
	case l.ch == ')':
		l.next()
		return Token{Type: token.ScopePop, Pos: pos, Value: ")"}, nil
	case l.ch == '"':
		return l.scanString(pos)
	case l.ch == '#':
		return l.scanHash(pos)
	case isDigit(l.ch):
		return l.scanNumber(pos)
	case isIdentChar(l.ch):
		return l.scanIdent(pos)
	default:
		return Token{}, l.errorf(UnexpectedCharacter)
	}
}

func (l *Lexer) scanHash(pos token.Position) (Token, error) {
	l.next() // consume #
	var val bool
	switch l.ch {
	case 't':
		val = true
	case 'f':
		val = false
	default:
		return Token{}, l.errorf(UnexpectedCharacter)
	}
	l.next()
	if err := l.expectDelimiter(); err != nil {
		return Token{}, err
	}
	return Token{Type: token.Bool, Pos: pos, Value: string(l.src[pos.Offset:l.offsetOfCurrent()]), Bool: val}, nil
}

func (l *Lexer) scanString(pos token.Position) (Token, error) {
	l.next() // consume opening quote

	var sb strings.Builder
	for l.ch != '"' {
		switch l.ch {
		case eof:
			return Token{}, l.errorf(UnterminatedString)
		case '\\':
			l.next()
			if l.ch != '"' && l.ch != '\\' {
				if l.ch == eof {
					return Token{}, l.errorf(UnterminatedString)
				}
				return Token{}, l.errorf(InvalidEscape)
			}
			sb.WriteRune(l.ch)
		default:
			sb.WriteRune(l.ch)
		}
		l.next()
	}
	l.next() // consume closing quote

	if err := l.expectDelimiter(); err != nil {
		return Token{}, err
	}
	return Token{Type: token.String, Pos: pos, Value: sb.String()}, nil
}

func (l *Lexer) scanNumber(pos token.Position) (Token, error) {
	start := pos.Offset

	for isDigit(l.ch) {
		l.next()
	}
	intEnd := l.offsetOfCurrent()
	isReal := false

	frac := 0.0
	if l.ch == '.' {
		isReal = true
		l.next()
		fracStart := l.offsetOfCurrent()
		for isDigit(l.ch) {
			l.next()
		}
		if digits := string(l.src[fracStart:l.offsetOfCurrent()]); digits != "" {
			frac, _ = strconv.ParseFloat("0."+digits, 64)
		}
	}

	exp := 0
	if l.ch == 'e' || l.ch == 'E' {
		isReal = true
		l.next()
		sign := 1
		if l.ch == '+' || l.ch == '-' {
			if l.ch == '-' {
				sign = -1
			}
			l.next()
		}
		if !isDigit(l.ch) {
			return Token{}, l.errorf(MissingExponent)
		}
		for isDigit(l.ch) {
			if exp < 100000 {
				exp = exp*10 + int(l.ch-'0')
			}
			l.next()
		}
		exp *= sign
	}

	if err := l.expectDelimiter(); err != nil {
		return Token{}, err
	}

	text := string(l.src[start:l.offsetOfCurrent()])
	mantissa := string(l.src[start:intEnd])
	if !isReal {
		n, err := strconv.ParseInt(mantissa, 10, 64)
		if err != nil {
			return Token{}, &Error{Char: rune(text[0]), Pos: pos, Reason: NumberOutOfRange}
		}
		return Token{Type: token.Int, Pos: pos, Value: text, Int: n}, nil
	}

	whole, _ := strconv.ParseFloat(mantissa, 64)
	val := 0.0
	if m := whole + frac; m != 0 {
		val = m * math.Pow10(exp)
	}
	if math.IsInf(val, 0) || math.IsNaN(val) {
		return Token{}, &Error{Char: rune(text[0]), Pos: pos, Reason: NumberOutOfRange}
	}
	return Token{Type: token.Real, Pos: pos, Value: text, Real: val}, nil
}

func (l *Lexer) scanIdent(pos token.Position) (Token, error) {
	for isIdentChar(l.ch) {
		l.next()
	}
	if err := l.expectDelimiter(); err != nil {
		return Token{}, err
	}
	word := string(l.src[pos.Offset:l.offsetOfCurrent()])
	tok := Token{Type: token.LookupIdent(word), Pos: pos, Value: word}
	if tok.Type == token.Bool {
		tok.Bool = word == "true"
	}
	return tok, nil
}

// expectDelimiter checks that the character following a token is
// whitespace, a parenthesis or the end of input.
func (l *Lexer) expectDelimiter() error {
	if l.ch == eof || l.ch == '(' || l.ch == ')' || isSpace(l.ch) {
		return nil
	}
	return l.errorf(UnexpectedCharacter)
}

func (l *Lexer) errorf(reason string) *Error {
	return &Error{Char: l.ch, Pos: l.pos, Reason: reason}
}

func (l *Lexer) skipWhitespace() {
	for {
		switch {
		case isSpace(l.ch):
			l.next()
		case l.ch == ';':
			for l.ch != eof && l.ch != '\n' {
				l.next()
			}
		default:
			return
		}
	}
}

// offsetOfCurrent returns the byte offset of the current character,
// or len(src) at end of input.
func (l *Lexer) offsetOfCurrent() int {
	if l.ch == eof {
		return len(l.src)
	}
	return l.pos.Offset
}

func (l *Lexer) next() {
	if l.offset >= len(l.src) {
		if l.ch != eof {
			l.pos = l.nextPos
		}
		l.ch = eof
		return
	}

	l.pos = l.nextPos

	r, size := rune(l.src[l.offset]), 1
	if r >= utf8.RuneSelf {
		r, size = utf8.DecodeRune(l.src[l.offset:])
	}
	l.ch = r
	l.offset += size
	l.nextPos = l.nextPos.Advance(r, size)
}

// Helper functions

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isSpace(ch rune) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f' || ch == '\v'
}

func isIdentChar(ch rune) bool {
	switch ch {
	case '&', '|', '>', '<', '=', '!', '*', '+', '-', '/', '%', '^', '_', '.':
		return true
	}
	return isDigit(ch) || unicode.IsLetter(ch)
}
