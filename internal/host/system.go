package host

import (
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/kolkov/narlie/internal/builtins"
	"github.com/kolkov/narlie/internal/types"
)

// SystemNamespace is the namespace of the default host library.
const SystemNamespace = "System"

var (
	kInt  = types.KindInt
	kReal = types.KindReal
	kStr  = types.KindString
	kAny  = types.KindAny
)

// Default returns a registry holding the System library: Math, Console,
// String and Convert.
func Default() *Registry {
	r := NewRegistry()
	r.MustRegister(mathType())
	r.MustRegister(consoleType())
	r.MustRegister(stringType())
	r.MustRegister(convertType())
	return r
}

func mathType() *Type {
	return NewType(SystemNamespace, "Math").
		Static("Max", []types.Kind{kInt, kInt}, kInt, pick(1)).
		Static("Max", []types.Kind{kReal, kReal}, kReal, pick(1)).
		Static("Min", []types.Kind{kInt, kInt}, kInt, pick(-1)).
		Static("Min", []types.Kind{kReal, kReal}, kReal, pick(-1)).
		Static("Abs", []types.Kind{kInt}, kInt, abs).
		Static("Abs", []types.Kind{kReal}, kReal, abs).
		Static("Sqrt", []types.Kind{kReal}, kReal, real1(math.Sqrt)).
		Static("Pow", []types.Kind{kReal, kReal}, kReal, pow)
}

// pick returns the argument that compares in direction dir against the other.
func pick(dir int) builtins.Handler {
	return func(_ *builtins.Env, args []types.Value) (types.Value, error) {
		if types.Compare(args[0], args[1])*dir >= 0 {
			return args[0], nil
		}
		return args[1], nil
	}
}

func abs(_ *builtins.Env, args []types.Value) (types.Value, error) {
	v := args[0]
	if v.Kind() == types.KindInt {
		if n := v.AsInt(); n < 0 {
			return types.Int(-n), nil
		}
		return v, nil
	}
	return types.Real(math.Abs(v.AsReal())), nil
}

func real1(fn func(float64) float64) builtins.Handler {
	return func(_ *builtins.Env, args []types.Value) (types.Value, error) {
		return types.Real(fn(args[0].AsReal())), nil
	}
}

func pow(_ *builtins.Env, args []types.Value) (types.Value, error) {
	return types.Real(math.Pow(args[0].AsReal(), args[1].AsReal())), nil
}

func consoleType() *Type {
	return NewType(SystemNamespace, "Console").
		Static("WriteLine", nil, types.KindNil, write("\n")).
		Static("WriteLine", []types.Kind{kAny}, types.KindNil, write("\n")).
		Static("Write", []types.Kind{kAny}, types.KindNil, write(""))
}

func write(terminator string) builtins.Handler {
	return func(env *builtins.Env, args []types.Value) (types.Value, error) {
		var w io.Writer = io.Discard
		if env != nil && env.Stdout != nil {
			w = env.Stdout
		}
		s := ""
		if len(args) > 0 {
			s = args[0].AsStr()
		}
		_, err := io.WriteString(w, s+terminator)
		return types.Nil(), err
	}
}

func stringType() *Type {
	return NewType(SystemNamespace, "String").
		Static("Concat", []types.Kind{kStr, kStr}, kStr, strConcat).
		Static("Concat", []types.Kind{kAny, kAny}, kStr, strConcat).
		Static("ToUpper", []types.Kind{kStr}, kStr, str1(strings.ToUpper)).
		Static("ToLower", []types.Kind{kStr}, kStr, str1(strings.ToLower)).
		Static("Length", []types.Kind{kStr}, kInt, strLength)
}

func strConcat(_ *builtins.Env, args []types.Value) (types.Value, error) {
	return types.Str(args[0].AsStr() + args[1].AsStr()), nil
}

func str1(fn func(string) string) builtins.Handler {
	return func(_ *builtins.Env, args []types.Value) (types.Value, error) {
		return types.Str(fn(args[0].AsStr())), nil
	}
}

func strLength(_ *builtins.Env, args []types.Value) (types.Value, error) {
	return types.Int(int64(utf8.RuneCountInString(args[0].AsStr()))), nil
}

func convertType() *Type {
	return NewType(SystemNamespace, "Convert").
		Static("ToInt32", []types.Kind{kAny}, kInt, toInt32).
		Static("ToDouble", []types.Kind{kAny}, kReal, toDouble).
		Static("ToString", []types.Kind{kAny}, kStr, toString)
}

func toInt32(_ *builtins.Env, args []types.Value) (types.Value, error) {
	v := args[0]
	var f float64
	if v.Kind() == types.KindInt {
		f = float64(v.AsInt())
	} else {
		f = math.Round(v.AsReal())
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return types.Nil(), fmt.Errorf("ToInt32: value %s out of range", v.AsStr())
	}
	return types.Int(int64(f)), nil
}

func toDouble(_ *builtins.Env, args []types.Value) (types.Value, error) {
	return types.Real(args[0].AsReal()), nil
}

func toString(_ *builtins.Env, args []types.Value) (types.Value, error) {
	return types.Str(args[0].AsStr()), nil
}
