package vm

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/narlie/internal/backend"
	"github.com/kolkov/narlie/internal/builtins"
	"github.com/kolkov/narlie/internal/host"
	"github.com/kolkov/narlie/internal/types"
)

var lib = builtins.Default()

func fn(t *testing.T, name string) *builtins.Function {
	t.Helper()
	f, ok := lib.Lookup(name)
	require.True(t, ok, "function %q", name)
	return f
}

// newMain declares type Main with a static entry method main.
func newMain(t *testing.T) (*Builder, backend.Type, backend.Method) {
	t.Helper()
	b := NewBuilder()
	typ, err := b.DeclareType("Main")
	require.NoError(t, err)
	m, err := b.DeclareMethod(typ, "main", true, true)
	require.NoError(t, err)
	return b, typ, m
}

// boxed builds a variadic call the way the code generator lowers one.
func boxed(t *testing.T, b *Builder, f backend.Callable, args ...backend.Expr) backend.Expr {
	t.Helper()
	arr := b.BuildArray(types.KindAny, len(args))
	exprs := make([]backend.Expr, 0, len(args)+1)
	for i, a := range args {
		exprs = append(exprs, b.StoreArrayElement(arr, i, a))
	}
	call, err := b.BuildCall(f, []backend.Expr{b.BuildLocalRef(arr)})
	require.NoError(t, err)
	return b.BuildBlock([]backend.Local{arr}, append(exprs, call))
}

func call(t *testing.T, b *Builder, f backend.Callable, args ...backend.Expr) backend.Expr {
	t.Helper()
	e, err := b.BuildCall(f, args)
	require.NoError(t, err)
	return e
}

func run(t *testing.T, b *Builder, typ backend.Type) (types.Value, string) {
	t.Helper()
	c, err := b.FinalizeType(typ)
	require.NoError(t, err)
	var out bytes.Buffer
	v, err := New(c.(*Program), &builtins.Env{Stdout: &out}).Run(context.Background())
	require.NoError(t, err)
	return v, out.String()
}

func TestStackBasics(t *testing.T) {
	vm := New(&Program{}, nil)
	for i := 0; i < DefaultStackSize*2+1; i++ {
		vm.push(types.Int(int64(i)))
	}
	assert.Equal(t, DefaultStackSize*2+1, vm.sp)
	assert.GreaterOrEqual(t, len(vm.stackData), vm.sp)

	assert.Equal(t, int64(DefaultStackSize*2), vm.pop().AsInt())
	top := vm.popN(2)
	assert.Equal(t, int64(DefaultStackSize*2-2), top[0].AsInt())
	assert.Equal(t, int64(DefaultStackSize*2-1), top[1].AsInt())
}

func TestNestedArithmetic(t *testing.T) {
	// (+ 1 (* 2 3))
	b, typ, m := newMain(t)
	inner := boxed(t, b, fn(t, "*"), b.BuildLiteral(types.Int(2)), b.BuildLiteral(types.Int(3)))
	outer := boxed(t, b, fn(t, "+"), b.BuildLiteral(types.Int(1)), inner)
	require.NoError(t, b.AppendStatement(m, outer))

	assert.Equal(t, "{arr1[2]; (store arr1[0] 1); (store arr1[1] {arr0[2]; (store arr0[0] 2); (store arr0[1] 3); (* arr0)}); (+ arr1)}\n",
		m.(*MethodBuilder).Dump())

	v, _ := run(t, b, typ)
	assert.Equal(t, int64(7), v.AsInt())
}

func TestLocalsAndWhile(t *testing.T) {
	// (let i 0) (while (< i 5) (set i (+ i 1))) i
	b, typ, m := newMain(t)
	i, err := b.DeclareLocal(m, types.KindInt, b.BuildLiteral(types.Int(0)))
	require.NoError(t, err)

	cond := call(t, b, fn(t, "<"), b.BuildLocalRef(i), b.BuildLiteral(types.Int(5)))
	require.NoError(t, b.OpenWhile(m, cond))
	step := b.AssignLocal(i, boxed(t, b, fn(t, "+"), b.BuildLocalRef(i), b.BuildLiteral(types.Int(1))))
	require.NoError(t, b.AppendStatement(m, step))
	require.NoError(t, b.EndWhile(m))
	require.NoError(t, b.AppendStatement(m, b.BuildLocalRef(i)))

	v, _ := run(t, b, typ)
	assert.Equal(t, int64(5), v.AsInt())
}

func TestIfElse(t *testing.T) {
	tests := []struct {
		name string
		x    int64
		want string
	}{
		{"then", 3, "pos"},
		{"else", -3, "neg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, typ, m := newMain(t)
			x, err := b.DeclareLocal(m, types.KindInt, b.BuildLiteral(types.Int(tt.x)))
			require.NoError(t, err)
			cond := call(t, b, fn(t, ">"), b.BuildLocalRef(x), b.BuildLiteral(types.Int(0)))
			require.NoError(t, b.OpenIf(m, cond))
			require.NoError(t, b.AppendStatement(m, boxed(t, b, fn(t, "print"), b.BuildLiteral(types.Str("pos")))))
			require.NoError(t, b.Else(m))
			require.NoError(t, b.AppendStatement(m, boxed(t, b, fn(t, "print"), b.BuildLiteral(types.Str("neg")))))
			require.NoError(t, b.EndIf(m))

			_, out := run(t, b, typ)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestIfWithoutElse(t *testing.T) {
	b, typ, m := newMain(t)
	require.NoError(t, b.OpenIf(m, b.BuildLiteral(types.Bool(false))))
	require.NoError(t, b.AppendStatement(m, boxed(t, b, fn(t, "print"), b.BuildLiteral(types.Str("no")))))
	require.NoError(t, b.EndIf(m))
	require.NoError(t, b.AppendStatement(m, b.BuildLiteral(types.Str("done"))))

	v, out := run(t, b, typ)
	assert.Empty(t, out)
	assert.Equal(t, "done", v.AsStr())
}

func TestForLoop(t *testing.T) {
	// (let i 0) (for (set i 0) (< i 3) (set i (+ i 1)) (print i))
	b, typ, m := newMain(t)
	i, err := b.DeclareLocal(m, types.KindInt, b.BuildLiteral(types.Nil()))
	require.NoError(t, err)

	pre := b.AssignLocal(i, b.BuildLiteral(types.Int(0)))
	cond := call(t, b, fn(t, "<"), b.BuildLocalRef(i), b.BuildLiteral(types.Int(3)))
	post := b.AssignLocal(i, boxed(t, b, fn(t, "+"), b.BuildLocalRef(i), b.BuildLiteral(types.Int(1))))
	require.NoError(t, b.OpenFor(m, []backend.Expr{pre}, cond, []backend.Expr{post}))
	require.NoError(t, b.AppendStatement(m, boxed(t, b, fn(t, "print"), b.BuildLocalRef(i))))
	require.NoError(t, b.EndFor(m))

	_, out := run(t, b, typ)
	assert.Equal(t, "012", out)
}

func TestLastTopLevelValueIsResult(t *testing.T) {
	b, typ, m := newMain(t)
	require.NoError(t, b.AppendStatement(m, b.BuildLiteral(types.Int(1))))
	require.NoError(t, b.AppendStatement(m, b.BuildLiteral(types.Real(2.5))))
	v, _ := run(t, b, typ)
	assert.Equal(t, 2.5, v.AsReal())

	b, typ, _ = newMain(t)
	v, _ = run(t, b, typ)
	assert.True(t, v.IsNil())
}

func TestConstantsAndFunctionsShared(t *testing.T) {
	b, typ, m := newMain(t)
	eq := fn(t, "=")
	for i := 0; i < 3; i++ {
		require.NoError(t, b.AppendStatement(m, call(t, b, eq, b.BuildLiteral(types.Int(1)), b.BuildLiteral(types.Int(1)))))
	}
	c, err := b.FinalizeType(typ)
	require.NoError(t, err)
	p := c.(*Program)
	assert.Len(t, p.Consts, 1)
	assert.Len(t, p.Funcs, 1)
}

func TestBuilderErrors(t *testing.T) {
	t.Run("duplicate type", func(t *testing.T) {
		b := NewBuilder()
		_, err := b.DeclareType("T")
		require.NoError(t, err)
		_, err = b.DeclareType("T")
		assert.Error(t, err)
	})

	t.Run("duplicate method", func(t *testing.T) {
		b, typ, _ := newMain(t)
		_, err := b.DeclareMethod(typ, "main", true, false)
		assert.Error(t, err)
	})

	t.Run("foreign type handle", func(t *testing.T) {
		b := NewBuilder()
		other, _, _ := newMain(t)
		typ, err := other.DeclareType("Other")
		require.NoError(t, err)
		_, err = b.DeclareMethod(typ, "m", true, false)
		assert.Error(t, err)
	})

	t.Run("foreign expression handle", func(t *testing.T) {
		b, typ, m := newMain(t)
		require.NoError(t, b.AppendStatement(m, foreignExpr{}))
		_, err := b.FinalizeType(typ)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid expression")
	})

	t.Run("element out of range", func(t *testing.T) {
		b, typ, m := newMain(t)
		arr := b.BuildArray(types.KindAny, 1)
		e := b.StoreArrayElement(arr, 1, b.BuildLiteral(types.Int(1)))
		require.NoError(t, b.AppendStatement(m, b.BuildBlock([]backend.Local{arr}, []backend.Expr{e})))
		_, err := b.FinalizeType(typ)
		assert.Error(t, err)
	})

	t.Run("mismatched end", func(t *testing.T) {
		b, _, m := newMain(t)
		require.NoError(t, b.OpenWhile(m, b.BuildLiteral(types.Bool(true))))
		assert.Error(t, b.EndIf(m))
		assert.Error(t, b.Else(m))
	})

	t.Run("end without open", func(t *testing.T) {
		b, _, m := newMain(t)
		assert.Error(t, b.EndFor(m))
	})

	t.Run("unclosed construct", func(t *testing.T) {
		b, typ, m := newMain(t)
		require.NoError(t, b.OpenIf(m, b.BuildLiteral(types.Bool(true))))
		_, err := b.FinalizeType(typ)
		assert.Error(t, err)
	})

	t.Run("finalize twice", func(t *testing.T) {
		b, typ, m := newMain(t)
		_, err := b.FinalizeType(typ)
		require.NoError(t, err)
		_, err = b.FinalizeType(typ)
		assert.ErrorIs(t, err, ErrFinalized)
		assert.ErrorIs(t, b.AppendStatement(m, b.BuildLiteral(types.Nil())), ErrFinalized)
	})
}

type foreignExpr struct{}

func (foreignExpr) Kind() types.Kind { return types.KindAny }

func TestEntryPoint(t *testing.T) {
	b := NewBuilder()
	typ, err := b.DeclareType("Main")
	require.NoError(t, err)
	helper, err := b.DeclareMethod(typ, "helper", true, false)
	require.NoError(t, err)
	require.NoError(t, b.AppendStatement(helper, b.BuildLiteral(types.Str("helper"))))

	c, err := b.FinalizeType(typ)
	require.NoError(t, err)
	p := c.(*Program)
	_, err = p.EntryMethod()
	assert.Error(t, err)

	// Setting the entry point after finalization updates the program.
	require.NoError(t, b.SetEntryPoint(helper))
	assert.Equal(t, "helper", p.Entry)
	v, err := New(p, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "helper", v.AsStr())
}

func TestRuntimeError(t *testing.T) {
	b, typ, m := newMain(t)
	require.NoError(t, b.AppendStatement(m, call(t, b, fn(t, "/"), b.BuildLiteral(types.Int(1)), b.BuildLiteral(types.Int(0)))))
	c, err := b.FinalizeType(typ)
	require.NoError(t, err)

	_, err = New(c.(*Program), nil).Run(context.Background())
	var rerr *RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "main", rerr.Method)
	assert.ErrorIs(t, err, builtins.ErrDivisionByZero)
}

func TestCancel(t *testing.T) {
	b, typ, m := newMain(t)
	require.NoError(t, b.OpenWhile(m, b.BuildLiteral(types.Bool(true))))
	require.NoError(t, b.EndWhile(m))
	c, err := b.FinalizeType(typ)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New(c.(*Program), nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDisassemble(t *testing.T) {
	b, typ, m := newMain(t)
	require.NoError(t, b.OpenWhile(m, b.BuildLiteral(types.Bool(false))))
	require.NoError(t, b.EndWhile(m))
	require.NoError(t, b.AppendStatement(m, boxed(t, b, fn(t, "+"), b.BuildLiteral(types.Int(1)))))
	c, err := b.FinalizeType(typ)
	require.NoError(t, err)

	asm := c.(*Program).Disassemble()
	for _, want := range []string{
		"=== Type Main",
		"entry: main",
		"[0] Bool(#f)",
		"=== Method static main (locals: 1) ===",
		"JumpFalse 2 (-> 0006)",
		"Jump -6 (-> 0000)",
		"NewArray [0] size 1",
		"Call + argc 1",
		"Result",
	} {
		assert.Contains(t, asm, want)
	}
}

func TestPersistRoundTrip(t *testing.T) {
	b, typ, m := newMain(t)
	x, err := b.DeclareLocal(m, types.KindAny, b.BuildLiteral(types.Str("a\"b")))
	require.NoError(t, err)
	require.NoError(t, b.AppendStatement(m, boxed(t, b, fn(t, "print"), b.BuildLocalRef(x), b.BuildLiteral(types.Real(1.5)), b.BuildLiteral(types.Bool(true)))))

	hosts := host.Default()
	ty, ok := hosts.LookupType([]string{host.SystemNamespace}, "Math")
	require.True(t, ok)
	pow, ok := host.Unique(ty, "Pow", 2)
	require.True(t, ok)
	require.NoError(t, b.AppendStatement(m, call(t, b, pow, b.BuildLiteral(types.Int(2)), b.BuildLiteral(types.Int(10)))))

	c, err := b.FinalizeType(typ)
	require.NoError(t, err)
	p := c.(*Program)

	path := filepath.Join(t.TempDir(), "main.nbc")
	require.NoError(t, b.Persist(p, path))

	loaded, err := Load(path, NewLinker(lib, hosts))
	require.NoError(t, err)
	assert.Equal(t, p.ID, loaded.ID)
	assert.Equal(t, p.Disassemble(), loaded.Disassemble())

	var out bytes.Buffer
	v, err := New(loaded, &builtins.Env{Stdout: &out}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a\"b 1.5 #t", out.String())
	assert.Equal(t, 1024.0, v.AsReal())
}

func TestDecodeErrors(t *testing.T) {
	b, typ, m := newMain(t)
	require.NoError(t, b.AppendStatement(m, boxed(t, b, fn(t, "+"), b.BuildLiteral(types.Int(1)))))
	c, err := b.FinalizeType(typ)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, c.(*Program).Encode(&buf))
	encoded := buf.String()

	tests := []struct {
		name string
		src  string
		link Linker
		want string
	}{
		{"not json", "{", NewLinker(lib, nil), "decoding program"},
		{"format", strings.Replace(encoded, Format, "other/1", 1), NewLinker(lib, nil), "unsupported program format"},
		{"unresolved", encoded, NewLinker(nil, nil), `unresolved function "+"`},
		{"bad local", strings.Replace(encoded, `"locals": 1`, `"locals": 0`, 1), NewLinker(lib, nil), "local 0 out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.src), tt.link)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRuntimeErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := error(&RuntimeError{Method: "main", IP: 3, Err: base})
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "runtime error in main at 0003: boom", err.Error())
}

func TestExprNodes(t *testing.T) {
	b, _, _ := newMain(t)
	arr := b.BuildArray(types.KindAny, 1)
	store := b.StoreArrayElement(arr, 0, b.BuildLiteral(types.Int(1)))
	require.IsType(t, &StoreElemExpr{}, store)

	c := call(t, b, fn(t, "<"), b.BuildLiteral(types.Int(1)), b.BuildLiteral(types.Int(2)))
	require.IsType(t, &CallExpr{}, c)
}
