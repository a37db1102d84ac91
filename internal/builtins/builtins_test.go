package builtins

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/narlie/internal/types"
)

func TestArityCheck(t *testing.T) {
	tests := []struct {
		name    string
		arity   Arity
		n       int
		wantErr bool
	}{
		{"fixed exact", FixedArity(2), 2, false},
		{"fixed too few", FixedArity(2), 1, true},
		{"fixed too many", FixedArity(2), 3, true},
		{"range low", RangeArity(2, 3), 2, false},
		{"range high", RangeArity(2, 3), 3, false},
		{"range below", RangeArity(2, 3), 1, true},
		{"range above", RangeArity(2, 3), 4, true},
		{"empty unconstrained", EmptyArity(), 5, false},
		{"variable unconstrained", VariableArity(), 0, false},
		{"variable many", VariableArity(), 100, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.arity.Check(tt.n)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	f := &Function{Name: "f", Arity: FixedArity(1)}
	require.NoError(t, r.Register(f))
	assert.Error(t, r.Register(&Function{Name: "f"}), "duplicate name")
	assert.Error(t, r.Register(&Function{Name: ""}), "empty name")
	assert.Error(t, r.Register(&Function{Name: "bad", Arity: RangeArity(3, 1)}), "inverted range")

	got, ok := r.Lookup("f")
	require.True(t, ok)
	assert.Same(t, f, got)
	_, ok = r.Lookup("g")
	assert.False(t, ok)
	assert.Equal(t, []string{"f"}, r.Names())
	assert.Equal(t, 1, r.Len())
}

func TestFunctionPredicates(t *testing.T) {
	assert.False(t, (&Function{Arity: EmptyArity()}).RequiresArgs())
	assert.True(t, (&Function{Arity: FixedArity(0)}).RequiresArgs())
	assert.True(t, (&Function{Arity: VariableArity()}).IsVariadic())
	assert.Equal(t, "+/variable", (&Function{Name: "+", Arity: VariableArity()}).String())
	assert.Equal(t, "substr/range(2..3)", (&Function{Name: "substr", Arity: RangeArity(2, 3)}).String())
}

// call invokes a default library function the way the interpreter does:
// variadic functions receive their arguments boxed into one array.
func call(t *testing.T, env *Env, name string, args ...types.Value) (types.Value, error) {
	t.Helper()
	f, ok := Default().Lookup(name)
	require.True(t, ok, "function %q not registered", name)
	if f.IsVariadic() {
		args = []types.Value{types.Array(args)}
	}
	return f.Handler(env, args)
}

func TestLibrary(t *testing.T) {
	i, r, s := types.Int, types.Real, types.Str
	tests := []struct {
		name string
		fn   string
		args []types.Value
		want types.Value
	}{
		{"add ints", "+", []types.Value{i(1), i(2), i(3)}, i(6)},
		{"add mixed", "+", []types.Value{i(1), r(0.5)}, r(1.5)},
		{"add none", "+", nil, i(0)},
		{"negate", "-", []types.Value{i(4)}, i(-4)},
		{"sub", "-", []types.Value{i(10), i(3), i(2)}, i(5)},
		{"mul", "*", []types.Value{i(2), i(3)}, i(6)},
		{"mul real", "*", []types.Value{r(2), i(3)}, r(6)},
		{"div ints", "/", []types.Value{i(7), i(2)}, i(3)},
		{"div real", "/", []types.Value{r(7), i(2)}, r(3.5)},
		{"mod", "%", []types.Value{i(7), i(4)}, i(3)},
		{"eq", "=", []types.Value{i(2), r(2)}, types.Bool(true)},
		{"neq", "!=", []types.Value{s("a"), s("b")}, types.Bool(true)},
		{"lt", "<", []types.Value{i(1), i(2)}, types.Bool(true)},
		{"gt", ">", []types.Value{i(5), i(0)}, types.Bool(true)},
		{"le", "<=", []types.Value{i(2), i(2)}, types.Bool(true)},
		{"ge", ">=", []types.Value{i(1), i(2)}, types.Bool(false)},
		{"eq bools", "=", []types.Value{types.Bool(true), types.Bool(true)}, types.Bool(true)},
		{"eq nil", "=", []types.Value{types.Nil(), i(0)}, types.Bool(false)},
		{"and", "and", []types.Value{types.Bool(true), i(1)}, types.Bool(true)},
		{"and false", "and", []types.Value{types.Bool(true), types.Nil()}, types.Bool(false)},
		{"or", "or", []types.Value{types.Bool(false), s("x")}, types.Bool(true)},
		{"not", "not", []types.Value{types.Nil()}, types.Bool(true)},
		{"concat", "concat", []types.Value{s("a"), i(1), types.Bool(true)}, s("a1#t")},
		{"str", "str", []types.Value{r(2.5)}, s("2.5")},
		{"len string", "len", []types.Value{s("héllo")}, i(5)},
		{"len list", "len", []types.Value{types.Array([]types.Value{i(1), i(2)})}, i(2)},
		{"substr", "substr", []types.Value{s("hello"), i(1), i(3)}, s("ell")},
		{"substr tail", "substr", []types.Value{s("hello"), i(3)}, s("lo")},
		{"substr clamp", "substr", []types.Value{s("hi"), i(5)}, s("")},
		{"list", "list", []types.Value{i(1), s("a")}, types.Array([]types.Value{i(1), s("a")})},
		{"nth", "nth", []types.Value{types.Array([]types.Value{i(1), s("a")}), i(1)}, s("a")},
		{"match", "match", []types.Value{s("^a+b$"), s("aaab")}, types.Bool(true)},
		{"match miss", "match", []types.Value{s("^a+b$"), s("abc")}, types.Bool(false)},
		{"re-find", "re-find", []types.Value{s("[0-9]+"), s("ab12cd")}, s("12")},
		{"re-find miss", "re-find", []types.Value{s("[0-9]+"), s("abcd")}, types.Nil()},
		{"re-replace", "re-replace", []types.Value{s("o+"), s("foo boo"), s("0")}, s("f0 b0")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := call(t, nil, tt.fn, tt.args...)
			require.NoError(t, err)
			assert.True(t, types.Equal(tt.want, got), "got %v, want %v", got, tt.want)
			assert.Equal(t, tt.want.Kind(), got.Kind())
		})
	}
}

func TestLibraryErrors(t *testing.T) {
	_, err := call(t, nil, "/", types.Int(1), types.Int(0))
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = call(t, nil, "%", types.Int(1), types.Int(0))
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = call(t, nil, "nth", types.Array(nil), types.Int(0))
	assert.Error(t, err)

	_, err = call(t, nil, "nth", types.Int(1), types.Int(0))
	assert.Error(t, err)

	_, err = call(t, nil, "match", types.Str("("), types.Str("x"))
	assert.Error(t, err)
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	env := &Env{Stdout: &buf}

	_, err := call(t, env, "print", types.Str("a"), types.Int(1))
	require.NoError(t, err)
	_, err = call(t, env, "newline")
	require.NoError(t, err)
	_, err = call(t, env, "println", types.Real(2.5), types.Nil(), types.Bool(false))
	require.NoError(t, err)

	assert.Equal(t, "a 1\n2.5 nil #f\n", buf.String())

	// A nil environment discards output.
	_, err = call(t, nil, "println", types.Str("dropped"))
	assert.NoError(t, err)
}

func TestFunctionCall(t *testing.T) {
	f := &Function{Name: "noop", Arity: EmptyArity(), Result: types.KindInt}
	_, err := f.Call(nil, nil)
	assert.Error(t, err, "missing handler")

	f.Handler = func(*Env, []types.Value) (types.Value, error) { return types.Int(7), nil }
	v, err := f.Call(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.AsInt())
	assert.Equal(t, "noop", f.Symbol())
	assert.Equal(t, types.KindInt, f.ResultKind())
}
