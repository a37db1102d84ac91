// Package types defines runtime value types for Narlie.
package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind represents the type of a Narlie value. The backend also uses it as
// the static result type of an expression.
type Kind uint8

const (
	KindNil    Kind = iota // nil
	KindBool               // #t / #f
	KindInt                // 64-bit integer
	KindReal               // 64-bit float
	KindString             // string
	KindArray              // parameter array (variadic arguments, lists)
	KindAny                // statically unknown; resolved at run time
)

// String returns a string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindReal:
		return "real"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindAny:
		return "any"
	default:
		return "unknown"
	}
}

// ParseKind returns the kind named by s.
func ParseKind(s string) (Kind, bool) {
	for k := KindNil; k <= KindAny; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return KindNil, false
}

// AssignableTo reports whether a value of kind k can be passed where
// kind param is expected. Any accepts everything, ints widen to reals,
// and an Any source is accepted anywhere (checked at run time).
func (k Kind) AssignableTo(param Kind) bool {
	switch {
	case param == KindAny, k == KindAny, k == param:
		return true
	case k == KindInt && param == KindReal:
		return true
	default:
		return false
	}
}

// Value represents a Narlie runtime value.
// Uses tagged union pattern; values are passed by value.
type Value struct {
	kind Kind
	num  int64
	real float64
	str  string
	arr  []Value
}

// Constructors

// Nil returns the nil value.
func Nil() Value {
	return Value{kind: KindNil}
}

// Bool creates a boolean value.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

// Int creates an integer value.
func Int(n int64) Value {
	return Value{kind: KindInt, num: n}
}

// Real creates a real value.
func Real(f float64) Value {
	return Value{kind: KindReal, real: f}
}

// Str creates a string value.
func Str(s string) Value {
	return Value{kind: KindString, str: s}
}

// Array creates an array value holding elems. The slice is not copied.
func Array(elems []Value) Value {
	return Value{kind: KindArray, arr: elems}
}

// NewArray creates an array of n nil elements.
func NewArray(n int) Value {
	return Value{kind: KindArray, arr: make([]Value, n)}
}

// Accessors

// Kind returns the value's type.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNil returns true if the value is nil.
func (v Value) IsNil() bool {
	return v.kind == KindNil
}

// IsNumeric returns true for ints and reals.
func (v Value) IsNumeric() bool {
	return v.kind == KindInt || v.kind == KindReal
}

// Elems returns the elements of an array value, or nil.
func (v Value) Elems() []Value {
	return v.arr
}

// Conversions

// AsInt returns the integer representation of the value.
// Reals are truncated; strings are parsed with prefix rules.
func (v Value) AsInt() int64 {
	switch v.kind {
	case KindInt, KindBool:
		return v.num
	case KindReal:
		return int64(v.real)
	case KindString:
		return int64(ParseNumPrefix(v.str))
	case KindArray:
		return int64(len(v.arr))
	default: // KindNil
		return 0
	}
}

// AsReal returns the floating point representation of the value.
func (v Value) AsReal() float64 {
	switch v.kind {
	case KindInt, KindBool:
		return float64(v.num)
	case KindReal:
		return v.real
	case KindString:
		return ParseNumPrefix(v.str)
	case KindArray:
		return float64(len(v.arr))
	default: // KindNil
		return 0
	}
}

// AsBool returns the truth value.
// nil, #f, zero numbers and the empty string are false.
func (v Value) AsBool() bool {
	switch v.kind {
	case KindBool, KindInt:
		return v.num != 0
	case KindReal:
		return v.real != 0
	case KindString:
		return v.str != ""
	case KindArray:
		return len(v.arr) > 0
	default: // KindNil
		return false
	}
}

// AsStr returns the display form of the value, as printed by print.
func (v Value) AsStr() string {
	switch v.kind {
	case KindBool:
		if v.num != 0 {
			return "#t"
		}
		return "#f"
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindReal:
		return FormatReal(v.real)
	case KindString:
		return v.str
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = e.AsStr()
		}
		return "(" + strings.Join(parts, " ") + ")"
	default:
		return "nil"
	}
}

// String returns a debug representation of the value.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return fmt.Sprintf("Bool(%s)", v.AsStr())
	case KindInt:
		return fmt.Sprintf("Int(%d)", v.num)
	case KindReal:
		return fmt.Sprintf("Real(%s)", FormatReal(v.real))
	case KindString:
		return fmt.Sprintf("Str(%q)", v.str)
	case KindArray:
		return fmt.Sprintf("Array%s", v.AsStr())
	default:
		return "Nil()"
	}
}

// Equal reports whether a and b hold the same value. Ints and reals
// compare numerically.
func Equal(a, b Value) bool {
	if a.IsNumeric() && b.IsNumeric() {
		return Compare(a, b) == 0
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindString:
		return a.str == b.str
	default:
		return a.num == b.num
	}
}

// Comparison

// Compare compares two values.
// Returns -1 if a < b, 0 if a == b, 1 if a > b.
// Numbers compare numerically (as ints when both are ints); anything
// else compares by display string.
func Compare(a, b Value) int {
	if a.kind == KindInt && b.kind == KindInt {
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		default:
			return 0
		}
	}
	if a.IsNumeric() && b.IsNumeric() {
		an, bn := a.AsReal(), b.AsReal()
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a.AsStr(), b.AsStr())
}

// Number Parsing and Formatting

// ParseNumPrefix parses a number from the beginning of a string.
// Allows trailing non-numeric characters like "123abc" -> 123.
func ParseNumPrefix(s string) float64 {
	i := 0
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	if i >= len(s) {
		return 0
	}

	start := i
	if s[i] == '+' || s[i] == '-' {
		i++
	}

	gotDigit := false
	for i < len(s) && isDigit(s[i]) {
		gotDigit = true
		i++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			gotDigit = true
			i++
		}
	}
	if !gotDigit {
		return 0
	}

	end := i
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		for i < len(s) && isDigit(s[i]) {
			end = i + 1
			i++
		}
	}

	n, _ := strconv.ParseFloat(s[start:end], 64)
	return n
}

// FormatReal formats a real for display.
func FormatReal(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Helper functions

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
