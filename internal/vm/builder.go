// Package vm implements the Narlie code-emission backend: an IR builder
// that satisfies backend.Backend, a bytecode emitter, a stack-based
// interpreter and artifact persistence.
package vm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kolkov/narlie/internal/backend"
	"github.com/kolkov/narlie/internal/types"
)

// ErrFinalized is returned when a finalized type is modified or
// finalized again.
var ErrFinalized = errors.New("type already finalized")

// Builder builds types and methods as IR and compiles them to bytecode
// when a type is finalized.
type Builder struct {
	types     map[string]*TypeBuilder
	nextLocal int
	optimize  bool
}

var _ backend.Backend = (*Builder)(nil)

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{types: make(map[string]*TypeBuilder)}
}

// SetOptimize enables the peephole pass on types finalized afterwards.
func (b *Builder) SetOptimize(on bool) {
	b.optimize = on
}

// TypeBuilder is a type under construction.
type TypeBuilder struct {
	name      string
	methods   []*MethodBuilder
	entry     *MethodBuilder
	program   *Program
	finalized bool
}

// TypeName returns the type's name.
func (t *TypeBuilder) TypeName() string { return t.name }

// Methods returns the declared methods in order.
func (t *TypeBuilder) Methods() []*MethodBuilder { return t.methods }

// MethodBuilder is a method under construction.
type MethodBuilder struct {
	name   string
	static bool
	entry  bool
	owner  *TypeBuilder
	body   []Stmt
	open   []*construct
}

// MethodName returns the method's name.
func (m *MethodBuilder) MethodName() string { return m.name }

// Body returns the method's top-level statements.
func (m *MethodBuilder) Body() []Stmt { return m.body }

// Dump returns an indented listing of the method's IR.
func (m *MethodBuilder) Dump() string {
	var sb strings.Builder
	dumpStmts(&sb, m.body, "")
	return sb.String()
}

type constructKind uint8

const (
	openIf constructKind = iota
	openElse
	openFor
	openWhile
)

// construct is an open control construct collecting statements.
type construct struct {
	kind   constructKind
	stmt   Stmt
	target *[]Stmt
}

func (m *MethodBuilder) append(s Stmt) {
	if n := len(m.open); n > 0 {
		t := m.open[n-1].target
		*t = append(*t, s)
		return
	}
	m.body = append(m.body, s)
}

func (m *MethodBuilder) push(kind constructKind, s Stmt, target *[]Stmt) {
	m.open = append(m.open, &construct{kind: kind, stmt: s, target: target})
}

func (m *MethodBuilder) pop(kinds ...constructKind) (*construct, error) {
	n := len(m.open)
	if n == 0 {
		return nil, fmt.Errorf("method %s: no open construct", m.name)
	}
	top := m.open[n-1]
	for _, k := range kinds {
		if top.kind == k {
			m.open = m.open[:n-1]
			return top, nil
		}
	}
	return nil, fmt.Errorf("method %s: mismatched end of construct", m.name)
}

// -----------------------------------------------------------------------------
// Handle conversion
// -----------------------------------------------------------------------------

func (b *Builder) typeOf(t backend.Type) (*TypeBuilder, error) {
	tb, ok := t.(*TypeBuilder)
	if !ok || tb == nil || b.types[tb.name] != tb {
		return nil, fmt.Errorf("type handle %T does not belong to this builder", t)
	}
	return tb, nil
}

func (b *Builder) methodOf(m backend.Method) (*MethodBuilder, error) {
	mb, ok := m.(*MethodBuilder)
	if !ok || mb == nil {
		return nil, fmt.Errorf("method handle %T does not belong to this builder", m)
	}
	if _, err := b.typeOf(mb.owner); err != nil {
		return nil, err
	}
	if mb.owner.finalized {
		return nil, fmt.Errorf("method %s: %w", mb.name, ErrFinalized)
	}
	return mb, nil
}

func asExpr(e backend.Expr) Expr {
	if x, ok := e.(Expr); ok && x != nil {
		return x
	}
	return &invalid{reason: fmt.Sprintf("expression handle %T", e)}
}

func asLocal(l backend.Local) (*Local, bool) {
	x, ok := l.(*Local)
	return x, ok && x != nil
}

func (b *Builder) newLocal(kind types.Kind) *Local {
	l := &Local{id: b.nextLocal, kind: kind}
	b.nextLocal++
	return l
}

// -----------------------------------------------------------------------------
// Types and methods
// -----------------------------------------------------------------------------

// DeclareType declares a new type.
func (b *Builder) DeclareType(name string) (backend.Type, error) {
	if name == "" {
		return nil, fmt.Errorf("type name must not be empty")
	}
	if _, exists := b.types[name]; exists {
		return nil, fmt.Errorf("type %q already declared", name)
	}
	t := &TypeBuilder{name: name}
	b.types[name] = t
	return t, nil
}

// DeclareMethod declares a method on t.
func (b *Builder) DeclareMethod(t backend.Type, name string, isStatic, isEntry bool) (backend.Method, error) {
	tb, err := b.typeOf(t)
	if err != nil {
		return nil, err
	}
	if tb.finalized {
		return nil, fmt.Errorf("type %s: %w", tb.name, ErrFinalized)
	}
	if name == "" {
		return nil, fmt.Errorf("method name must not be empty")
	}
	for _, m := range tb.methods {
		if m.name == name {
			return nil, fmt.Errorf("method %s.%s already declared", tb.name, name)
		}
	}
	m := &MethodBuilder{name: name, static: isStatic, entry: isEntry, owner: tb}
	tb.methods = append(tb.methods, m)
	return m, nil
}

// -----------------------------------------------------------------------------
// Expressions
// -----------------------------------------------------------------------------

// BuildLiteral builds a constant.
func (b *Builder) BuildLiteral(v types.Value) backend.Expr {
	return &Literal{Value: v}
}

// BuildLocalRef builds a read of l.
func (b *Builder) BuildLocalRef(l backend.Local) backend.Expr {
	x, ok := asLocal(l)
	if !ok {
		return &invalid{reason: fmt.Sprintf("local handle %T", l)}
	}
	return &LocalRef{Local: x}
}

// DeclareLocal declares a local in the innermost open construct of m,
// initialized with init.
func (b *Builder) DeclareLocal(m backend.Method, kind types.Kind, init backend.Expr) (backend.Local, error) {
	mb, err := b.methodOf(m)
	if err != nil {
		return nil, err
	}
	l := b.newLocal(kind)
	mb.append(&DeclStmt{Local: l, Init: asExpr(init)})
	return l, nil
}

// AssignLocal builds an assignment to l that yields the assigned value.
func (b *Builder) AssignLocal(l backend.Local, value backend.Expr) backend.Expr {
	x, ok := asLocal(l)
	if !ok {
		return &invalid{reason: fmt.Sprintf("local handle %T", l)}
	}
	return &Assign{Local: x, Value: asExpr(value)}
}

// BuildCall builds a positional call of fn.
func (b *Builder) BuildCall(fn backend.Callable, args []backend.Expr) (backend.Expr, error) {
	if fn == nil {
		return nil, fmt.Errorf("call of nil function")
	}
	xs := make([]Expr, len(args))
	for i, a := range args {
		xs[i] = asExpr(a)
	}
	return &CallExpr{Fn: fn, Args: xs}, nil
}

// BuildArray creates an array local of size elements.
func (b *Builder) BuildArray(elem types.Kind, size int) backend.Local {
	l := b.newLocal(types.KindArray)
	l.array = true
	l.size = size
	return l
}

// StoreArrayElement builds a store into element index of l.
func (b *Builder) StoreArrayElement(l backend.Local, index int, value backend.Expr) backend.Expr {
	x, ok := asLocal(l)
	if !ok || !x.array {
		return &invalid{reason: fmt.Sprintf("array handle %T", l)}
	}
	if index < 0 || index >= x.size {
		return &invalid{reason: fmt.Sprintf("index %d out of range for %s", index, x)}
	}
	return &StoreElemExpr{Array: x, Index: index, Value: asExpr(value)}
}

// BuildBlock builds a block expression.
func (b *Builder) BuildBlock(locals []backend.Local, exprs []backend.Expr) backend.Expr {
	blk := &Block{}
	for _, l := range locals {
		x, ok := asLocal(l)
		if !ok {
			return &invalid{reason: fmt.Sprintf("local handle %T", l)}
		}
		blk.Locals = append(blk.Locals, x)
	}
	for _, e := range exprs {
		blk.Exprs = append(blk.Exprs, asExpr(e))
	}
	return blk
}

// -----------------------------------------------------------------------------
// Statements and control flow
// -----------------------------------------------------------------------------

// AppendStatement appends e as a statement.
func (b *Builder) AppendStatement(m backend.Method, e backend.Expr) error {
	mb, err := b.methodOf(m)
	if err != nil {
		return err
	}
	mb.append(&ExprStmt{X: asExpr(e)})
	return nil
}

// OpenIf opens a conditional; statements go to the true block until Else.
func (b *Builder) OpenIf(m backend.Method, cond backend.Expr) error {
	mb, err := b.methodOf(m)
	if err != nil {
		return err
	}
	s := &IfStmt{Cond: asExpr(cond)}
	mb.push(openIf, s, &s.Then)
	return nil
}

// Else switches the open conditional to its false block.
func (b *Builder) Else(m backend.Method) error {
	mb, err := b.methodOf(m)
	if err != nil {
		return err
	}
	c, err := mb.pop(openIf)
	if err != nil {
		return err
	}
	s := c.stmt.(*IfStmt)
	s.HasElse = true
	mb.push(openElse, s, &s.Else)
	return nil
}

// EndIf closes the open conditional.
func (b *Builder) EndIf(m backend.Method) error {
	return b.end(m, openIf, openElse)
}

// OpenFor opens a for loop.
func (b *Builder) OpenFor(m backend.Method, pre []backend.Expr, cond backend.Expr, post []backend.Expr) error {
	mb, err := b.methodOf(m)
	if err != nil {
		return err
	}
	s := &ForStmt{Cond: asExpr(cond)}
	for _, e := range pre {
		s.Pre = append(s.Pre, asExpr(e))
	}
	for _, e := range post {
		s.Post = append(s.Post, asExpr(e))
	}
	mb.push(openFor, s, &s.Body)
	return nil
}

// EndFor closes the open for loop.
func (b *Builder) EndFor(m backend.Method) error {
	return b.end(m, openFor)
}

// OpenWhile opens a while loop.
func (b *Builder) OpenWhile(m backend.Method, cond backend.Expr) error {
	mb, err := b.methodOf(m)
	if err != nil {
		return err
	}
	s := &WhileStmt{Cond: asExpr(cond)}
	mb.push(openWhile, s, &s.Body)
	return nil
}

// EndWhile closes the open while loop.
func (b *Builder) EndWhile(m backend.Method) error {
	return b.end(m, openWhile)
}

func (b *Builder) end(m backend.Method, kinds ...constructKind) error {
	mb, err := b.methodOf(m)
	if err != nil {
		return err
	}
	c, err := mb.pop(kinds...)
	if err != nil {
		return err
	}
	mb.append(c.stmt)
	return nil
}

// -----------------------------------------------------------------------------
// Finalization
// -----------------------------------------------------------------------------

// SetEntryPoint marks m as the entry point of its type.
func (b *Builder) SetEntryPoint(m backend.Method) error {
	mb, ok := m.(*MethodBuilder)
	if !ok || mb == nil {
		return fmt.Errorf("method handle %T does not belong to this builder", m)
	}
	if _, err := b.typeOf(mb.owner); err != nil {
		return err
	}
	mb.owner.entry = mb
	if p := mb.owner.program; p != nil {
		p.Entry = mb.name
	}
	return nil
}

// FinalizeType compiles every method of t into an executable Program.
// A type is finalized at most once.
func (b *Builder) FinalizeType(t backend.Type) (backend.Compiled, error) {
	tb, err := b.typeOf(t)
	if err != nil {
		return nil, err
	}
	if tb.finalized {
		return nil, fmt.Errorf("type %s: %w", tb.name, ErrFinalized)
	}
	tb.finalized = true

	prog := &Program{ID: uuid.New(), Type: tb.name}
	em := newEmitter(prog)
	for _, m := range tb.methods {
		if len(m.open) > 0 {
			return nil, fmt.Errorf("method %s.%s: %d unclosed constructs", tb.name, m.name, len(m.open))
		}
		code, err := em.method(m)
		if err != nil {
			return nil, fmt.Errorf("method %s.%s: %w", tb.name, m.name, err)
		}
		if b.optimize {
			code.Code = optimizeCode(code.Code)
		}
		prog.Methods = append(prog.Methods, code)
		if prog.Entry == "" && m.entry {
			prog.Entry = m.name
		}
	}
	if tb.entry != nil {
		prog.Entry = tb.entry.name
	}
	tb.program = prog
	return prog, nil
}

// Persist writes a compiled program to path.
func (b *Builder) Persist(c backend.Compiled, path string) error {
	prog, ok := c.(*Program)
	if !ok || prog == nil {
		return fmt.Errorf("compiled handle %T does not belong to this builder", c)
	}
	return prog.Save(path)
}
