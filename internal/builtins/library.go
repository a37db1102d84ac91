package builtins

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/kolkov/narlie/internal/runtime"
	"github.com/kolkov/narlie/internal/types"
)

// ErrDivisionByZero is returned by integer division and modulo by zero.
var ErrDivisionByZero = errors.New("division by zero")

var regexCache = runtime.NewCache(64)

// Default returns a registry holding the standard Narlie library.
func Default() *Registry {
	r := NewRegistry()
	for _, f := range library() {
		r.MustRegister(f)
	}
	return r
}

func library() []*Function {
	return []*Function{
		// Arithmetic
		{Name: "+", Arity: VariableArity(), Result: types.KindAny, Handler: variadic(add)},
		{Name: "-", Arity: VariableArity(), Result: types.KindAny, Handler: variadic(sub)},
		{Name: "*", Arity: VariableArity(), Result: types.KindAny, Handler: variadic(mul)},
		{Name: "/", Arity: FixedArity(2), Result: types.KindAny, Handler: div},
		{Name: "%", Arity: FixedArity(2), Result: types.KindInt, Handler: mod},

		// Comparison
		{Name: "=", Arity: FixedArity(2), Result: types.KindBool, Handler: compare(func(c int) bool { return c == 0 })},
		{Name: "!=", Arity: FixedArity(2), Result: types.KindBool, Handler: compare(func(c int) bool { return c != 0 })},
		{Name: "<", Arity: FixedArity(2), Result: types.KindBool, Handler: compare(func(c int) bool { return c < 0 })},
		{Name: ">", Arity: FixedArity(2), Result: types.KindBool, Handler: compare(func(c int) bool { return c > 0 })},
		{Name: "<=", Arity: FixedArity(2), Result: types.KindBool, Handler: compare(func(c int) bool { return c <= 0 })},
		{Name: ">=", Arity: FixedArity(2), Result: types.KindBool, Handler: compare(func(c int) bool { return c >= 0 })},

		// Logic
		{Name: "and", Arity: VariableArity(), Result: types.KindBool, Handler: variadic(and)},
		{Name: "or", Arity: VariableArity(), Result: types.KindBool, Handler: variadic(or)},
		{Name: "not", Arity: FixedArity(1), Result: types.KindBool, Handler: not},

		// Output
		{Name: "print", Arity: VariableArity(), Result: types.KindNil, Handler: printer("")},
		{Name: "println", Arity: VariableArity(), Result: types.KindNil, Handler: printer("\n")},
		{Name: "newline", Arity: EmptyArity(), Result: types.KindNil, Handler: newline},

		// Strings and lists
		{Name: "concat", Arity: VariableArity(), Result: types.KindString, Handler: variadic(concat)},
		{Name: "str", Arity: FixedArity(1), Result: types.KindString, Handler: str},
		{Name: "len", Arity: FixedArity(1), Result: types.KindInt, Handler: length},
		{Name: "substr", Arity: RangeArity(2, 3), Result: types.KindString, Handler: substr},
		{Name: "list", Arity: VariableArity(), Result: types.KindArray, Handler: list},
		{Name: "nth", Arity: FixedArity(2), Result: types.KindAny, Handler: nth},

		// Regular expressions
		{Name: "match", Arity: FixedArity(2), Result: types.KindBool, Handler: match},
		{Name: "re-find", Arity: FixedArity(2), Result: types.KindAny, Handler: reFind},
		{Name: "re-replace", Arity: FixedArity(3), Result: types.KindString, Handler: reReplace},
	}
}

// variadic adapts fn to receive the elements of the boxed argument array.
func variadic(fn func(args []types.Value) (types.Value, error)) Handler {
	return func(_ *Env, args []types.Value) (types.Value, error) {
		return fn(unbox(args))
	}
}

func unbox(args []types.Value) []types.Value {
	if len(args) == 1 && args[0].Kind() == types.KindArray {
		return args[0].Elems()
	}
	return args
}

func allInts(args []types.Value) bool {
	for _, a := range args {
		if a.Kind() != types.KindInt {
			return false
		}
	}
	return true
}

func add(args []types.Value) (types.Value, error) {
	if allInts(args) {
		var n int64
		for _, a := range args {
			n += a.AsInt()
		}
		return types.Int(n), nil
	}
	var f float64
	for _, a := range args {
		f += a.AsReal()
	}
	return types.Real(f), nil
}

func sub(args []types.Value) (types.Value, error) {
	switch len(args) {
	case 0:
		return types.Int(0), nil
	case 1:
		if allInts(args) {
			return types.Int(-args[0].AsInt()), nil
		}
		return types.Real(-args[0].AsReal()), nil
	}
	if allInts(args) {
		n := args[0].AsInt()
		for _, a := range args[1:] {
			n -= a.AsInt()
		}
		return types.Int(n), nil
	}
	f := args[0].AsReal()
	for _, a := range args[1:] {
		f -= a.AsReal()
	}
	return types.Real(f), nil
}

func mul(args []types.Value) (types.Value, error) {
	if allInts(args) {
		n := int64(1)
		for _, a := range args {
			n *= a.AsInt()
		}
		return types.Int(n), nil
	}
	f := 1.0
	for _, a := range args {
		f *= a.AsReal()
	}
	return types.Real(f), nil
}

func div(_ *Env, args []types.Value) (types.Value, error) {
	a, b := args[0], args[1]
	if allInts(args) {
		if b.AsInt() == 0 {
			return types.Nil(), ErrDivisionByZero
		}
		return types.Int(a.AsInt() / b.AsInt()), nil
	}
	return types.Real(a.AsReal() / b.AsReal()), nil
}

func mod(_ *Env, args []types.Value) (types.Value, error) {
	b := args[1].AsInt()
	if b == 0 {
		return types.Nil(), ErrDivisionByZero
	}
	return types.Int(args[0].AsInt() % b), nil
}

func compare(pred func(int) bool) Handler {
	return func(_ *Env, args []types.Value) (types.Value, error) {
		if args[0].Kind() == types.KindBool || args[0].Kind() == types.KindNil ||
			args[1].Kind() == types.KindBool || args[1].Kind() == types.KindNil {
			c := 1
			if types.Equal(args[0], args[1]) {
				c = 0
			}
			return types.Bool(pred(c)), nil
		}
		return types.Bool(pred(types.Compare(args[0], args[1]))), nil
	}
}

func and(args []types.Value) (types.Value, error) {
	for _, a := range args {
		if !a.AsBool() {
			return types.Bool(false), nil
		}
	}
	return types.Bool(true), nil
}

func or(args []types.Value) (types.Value, error) {
	for _, a := range args {
		if a.AsBool() {
			return types.Bool(true), nil
		}
	}
	return types.Bool(false), nil
}

func not(_ *Env, args []types.Value) (types.Value, error) {
	return types.Bool(!args[0].AsBool()), nil
}

func printer(terminator string) Handler {
	return func(env *Env, args []types.Value) (types.Value, error) {
		args = unbox(args)
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.AsStr()
		}
		_, err := io.WriteString(env.out(), strings.Join(parts, " ")+terminator)
		return types.Nil(), err
	}
}

func newline(env *Env, _ []types.Value) (types.Value, error) {
	_, err := io.WriteString(env.out(), "\n")
	return types.Nil(), err
}

func (e *Env) out() io.Writer {
	if e == nil || e.Stdout == nil {
		return io.Discard
	}
	return e.Stdout
}

func concat(args []types.Value) (types.Value, error) {
	var sb strings.Builder
	for _, a := range args {
		sb.WriteString(a.AsStr())
	}
	return types.Str(sb.String()), nil
}

func str(_ *Env, args []types.Value) (types.Value, error) {
	return types.Str(args[0].AsStr()), nil
}

func length(_ *Env, args []types.Value) (types.Value, error) {
	v := args[0]
	switch v.Kind() {
	case types.KindArray:
		return types.Int(int64(len(v.Elems()))), nil
	case types.KindNil:
		return types.Int(0), nil
	default:
		return types.Int(int64(utf8.RuneCountInString(v.AsStr()))), nil
	}
}

func substr(_ *Env, args []types.Value) (types.Value, error) {
	runes := []rune(args[0].AsStr())
	start := clamp(args[1].AsInt(), 0, int64(len(runes)))
	end := int64(len(runes))
	if len(args) == 3 {
		end = clamp(start+args[2].AsInt(), start, int64(len(runes)))
	}
	return types.Str(string(runes[start:end])), nil
}

func clamp(n, lo, hi int64) int64 {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func list(_ *Env, args []types.Value) (types.Value, error) {
	elems := unbox(args)
	out := make([]types.Value, len(elems))
	copy(out, elems)
	return types.Array(out), nil
}

func nth(_ *Env, args []types.Value) (types.Value, error) {
	if args[0].Kind() != types.KindArray {
		return types.Nil(), fmt.Errorf("nth: expected array, got %s", args[0].Kind())
	}
	elems := args[0].Elems()
	i := args[1].AsInt()
	if i < 0 || i >= int64(len(elems)) {
		return types.Nil(), fmt.Errorf("nth: index %d out of range [0,%d)", i, len(elems))
	}
	return elems[i], nil
}

func match(_ *Env, args []types.Value) (types.Value, error) {
	re, err := regexCache.Get(args[0].AsStr())
	if err != nil {
		return types.Nil(), fmt.Errorf("match: %w", err)
	}
	return types.Bool(re.MatchString(args[1].AsStr())), nil
}

func reFind(_ *Env, args []types.Value) (types.Value, error) {
	re, err := regexCache.Get(args[0].AsStr())
	if err != nil {
		return types.Nil(), fmt.Errorf("re-find: %w", err)
	}
	if s, ok := re.FindString(args[1].AsStr()); ok {
		return types.Str(s), nil
	}
	return types.Nil(), nil
}

func reReplace(_ *Env, args []types.Value) (types.Value, error) {
	re, err := regexCache.Get(args[0].AsStr())
	if err != nil {
		return types.Nil(), fmt.Errorf("re-replace: %w", err)
	}
	return types.Str(re.ReplaceAllString(args[1].AsStr(), args[2].AsStr())), nil
}
