package codegen_test

import (
	"fmt"
	"strings"

	"github.com/kolkov/narlie/internal/backend"
	"github.com/kolkov/narlie/internal/types"
)

// recorder is a backend that records every capability call as a line
// of text. Expressions are rendered as S-expressions.
type recorder struct {
	calls  []string
	locals int
	arrays int
}

var _ backend.Backend = (*recorder)(nil)

type (
	recType     string
	recMethod   string
	recCompiled string
)

func (t recType) TypeName() string     { return string(t) }
func (m recMethod) MethodName() string { return string(m) }
func (c recCompiled) TypeName() string { return string(c) }

type recExpr struct {
	text string
	kind types.Kind
}

func (e *recExpr) Kind() types.Kind { return e.kind }
func (e *recExpr) String() string   { return e.text }

type recLocal struct {
	name string
	kind types.Kind
}

func (l *recLocal) LocalKind() types.Kind { return l.kind }

func (r *recorder) log(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

// count returns the number of recorded calls starting with prefix.
func (r *recorder) count(prefix string) int {
	n := 0
	for _, c := range r.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (r *recorder) DeclareType(name string) (backend.Type, error) {
	r.log("type %s", name)
	return recType(name), nil
}

func (r *recorder) DeclareMethod(t backend.Type, name string, isStatic, isEntry bool) (backend.Method, error) {
	r.log("method %s.%s static=%t entry=%t", t.TypeName(), name, isStatic, isEntry)
	return recMethod(name), nil
}

func (r *recorder) BuildLiteral(v types.Value) backend.Expr {
	text := v.AsStr()
	if v.Kind() == types.KindString {
		text = fmt.Sprintf("%q", text)
	}
	return &recExpr{text: text, kind: v.Kind()}
}

func (r *recorder) BuildLocalRef(l backend.Local) backend.Expr {
	x := l.(*recLocal)
	return &recExpr{text: x.name, kind: x.kind}
}

func (r *recorder) DeclareLocal(m backend.Method, kind types.Kind, init backend.Expr) (backend.Local, error) {
	l := &recLocal{name: fmt.Sprintf("l%d", r.locals), kind: kind}
	r.locals++
	r.log("declare %s = %s", l.name, init)
	return l, nil
}

func (r *recorder) AssignLocal(l backend.Local, value backend.Expr) backend.Expr {
	return &recExpr{text: fmt.Sprintf("(= %s %s)", l.(*recLocal).name, value), kind: value.Kind()}
}

func (r *recorder) BuildCall(fn backend.Callable, args []backend.Expr) (backend.Expr, error) {
	parts := []string{fn.Symbol()}
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	text := "(" + strings.Join(parts, " ") + ")"
	r.log("call %s", text)
	return &recExpr{text: text, kind: fn.ResultKind()}, nil
}

func (r *recorder) BuildArray(elem types.Kind, size int) backend.Local {
	l := &recLocal{name: fmt.Sprintf("a%d", r.arrays), kind: types.KindArray}
	r.arrays++
	r.log("array %s[%d]", l.name, size)
	return l
}

func (r *recorder) StoreArrayElement(l backend.Local, index int, value backend.Expr) backend.Expr {
	name := l.(*recLocal).name
	r.log("store %s[%d] = %s", name, index, value)
	return &recExpr{text: fmt.Sprintf("(%s[%d] = %s)", name, index, value), kind: value.Kind()}
}

func (r *recorder) BuildBlock(locals []backend.Local, exprs []backend.Expr) backend.Expr {
	parts := make([]string, 0, len(exprs))
	for _, e := range exprs {
		parts = append(parts, fmt.Sprint(e))
	}
	kind := types.KindNil
	if len(exprs) > 0 {
		kind = exprs[len(exprs)-1].Kind()
	}
	return &recExpr{text: "{" + strings.Join(parts, "; ") + "}", kind: kind}
}

func (r *recorder) OpenIf(m backend.Method, cond backend.Expr) error {
	r.log("if %s", cond)
	return nil
}

func (r *recorder) Else(m backend.Method) error {
	r.log("else")
	return nil
}

func (r *recorder) EndIf(m backend.Method) error {
	r.log("endif")
	return nil
}

func (r *recorder) OpenFor(m backend.Method, pre []backend.Expr, cond backend.Expr, post []backend.Expr) error {
	r.log("for %s; %s; %s", exprs(pre), cond, exprs(post))
	return nil
}

func (r *recorder) EndFor(m backend.Method) error {
	r.log("endfor")
	return nil
}

func (r *recorder) OpenWhile(m backend.Method, cond backend.Expr) error {
	r.log("while %s", cond)
	return nil
}

func (r *recorder) EndWhile(m backend.Method) error {
	r.log("endwhile")
	return nil
}

func (r *recorder) AppendStatement(m backend.Method, e backend.Expr) error {
	r.log("stmt %s", e)
	return nil
}

func (r *recorder) SetEntryPoint(m backend.Method) error {
	r.log("entry %s", m.MethodName())
	return nil
}

func (r *recorder) FinalizeType(t backend.Type) (backend.Compiled, error) {
	r.log("finalize %s", t.TypeName())
	return recCompiled(t.TypeName()), nil
}

func (r *recorder) Persist(c backend.Compiled, path string) error {
	r.log("persist %s %s", c.TypeName(), path)
	return nil
}

func exprs(list []backend.Expr) string {
	parts := make([]string, len(list))
	for i, e := range list {
		parts[i] = fmt.Sprint(e)
	}
	return strings.Join(parts, ", ")
}
