// Package token defines lexical tokens for Narlie.
package token

import "strconv"

// Token represents a lexical token type.
type Token uint8

const (
	// Unknown marks the end of input. The lexer returns it as the scan
	// termination signal, not as an error.
	Unknown Token = iota // <end>

	// Scope markers
	ScopePush // (
	ScopePop  // )

	Ident // identifier

	// Keywords
	keywordStart
	Define // define
	If     // if
	For    // for
	While  // while
	keywordEnd

	// Literals
	literalStart
	Nil    // nil
	Bool   // boolean
	Int    // integer
	Real   // real
	String // string
	literalEnd
)

var names = [...]string{
	Unknown:   "<end>",
	ScopePush: "(",
	ScopePop:  ")",
	Ident:     "identifier",
	Define:    "define",
	If:        "if",
	For:       "for",
	While:     "while",
	Nil:       "nil",
	Bool:      "boolean",
	Int:       "integer",
	Real:      "real",
	String:    "string",
}

// String returns a human-readable name for the token type.
func (t Token) String() string {
	if int(t) < len(names) && names[t] != "" {
		return names[t]
	}
	return "token(" + strconv.Itoa(int(t)) + ")"
}

// IsKeyword returns true if the token is a keyword.
func (t Token) IsKeyword() bool {
	return t > keywordStart && t < keywordEnd
}

// IsLiteral returns true if the token is a literal (nil, boolean, number, string).
func (t Token) IsLiteral() bool {
	return t > literalStart && t < literalEnd
}

// Virtual form names. They are scanned as plain identifiers and
// recognized by the parser.
const (
	Using = "using"
	Let   = "let"
	Set   = "set"
	Setf  = "setf"
)

// reserved maps reserved words to their token types.
var reserved = map[string]Token{
	"define": Define,
	"if":     If,
	"for":    For,
	"while":  While,
	"nil":    Nil,
	"true":   Bool,
	"false":  Bool,
}

var virtuals = map[string]bool{
	Using: true,
	Let:   true,
	Set:   true,
	Setf:  true,
}

// LookupIdent returns the token type for a scanned word.
// Returns a keyword or literal token for reserved words, otherwise Ident.
func LookupIdent(word string) Token {
	if tok, ok := reserved[word]; ok {
		return tok
	}
	return Ident
}

// IsVirtual reports whether name is one of the virtual forms
// (using, let, set, setf).
func IsVirtual(name string) bool {
	return virtuals[name]
}
