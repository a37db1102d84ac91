package vm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kolkov/narlie/internal/backend"
	"github.com/kolkov/narlie/internal/types"
)

// Expr is an IR expression. Every expression leaves exactly one value
// on the stack when evaluated.
type Expr interface {
	backend.Expr
	String() string
	emit(e *emitter)
}

// Stmt is an IR statement.
type Stmt interface {
	emit(e *emitter)
	dump(sb *strings.Builder, indent string)
}

// Local is a method-scoped variable. Array locals are allocated by the
// block expression that lists them.
type Local struct {
	id    int
	kind  types.Kind
	size  int // Element count of array locals
	array bool
}

// LocalKind returns the kind of the local's value.
func (l *Local) LocalKind() types.Kind { return l.kind }

// IsArray reports whether the local is an array.
func (l *Local) IsArray() bool { return l.array }

// Size returns the element count of an array local.
func (l *Local) Size() int { return l.size }

func (l *Local) String() string {
	if l.array {
		return fmt.Sprintf("arr%d[%d]", l.id, l.size)
	}
	return fmt.Sprintf("loc%d", l.id)
}

func (l *Local) name() string {
	if l.array {
		return fmt.Sprintf("arr%d", l.id)
	}
	return fmt.Sprintf("loc%d", l.id)
}

// Literal is a constant value.
type Literal struct {
	Value types.Value
}

func (x *Literal) Kind() types.Kind { return x.Value.Kind() }

func (x *Literal) String() string {
	if x.Value.Kind() == types.KindString {
		return strconv.Quote(x.Value.AsStr())
	}
	return x.Value.AsStr()
}

// LocalRef reads a local.
type LocalRef struct {
	Local *Local
}

func (x *LocalRef) Kind() types.Kind { return x.Local.kind }
func (x *LocalRef) String() string   { return x.Local.name() }

// Assign stores a value into a local and yields it.
type Assign struct {
	Local *Local
	Value Expr
}

func (x *Assign) Kind() types.Kind { return x.Value.Kind() }

func (x *Assign) String() string {
	return fmt.Sprintf("(= %s %s)", x.Local.name(), x.Value)
}

// CallExpr calls a function with positional arguments.
type CallExpr struct {
	Fn   backend.Callable
	Args []Expr
}

func (x *CallExpr) Kind() types.Kind { return x.Fn.ResultKind() }

func (x *CallExpr) String() string {
	var sb strings.Builder
	sb.WriteString("(")
	sb.WriteString(x.Fn.Symbol())
	for _, a := range x.Args {
		sb.WriteString(" ")
		sb.WriteString(a.String())
	}
	sb.WriteString(")")
	return sb.String()
}

// StoreElemExpr stores a value into an array element and yields it.
type StoreElemExpr struct {
	Array *Local
	Index int
	Value Expr
}

func (x *StoreElemExpr) Kind() types.Kind { return x.Value.Kind() }

func (x *StoreElemExpr) String() string {
	return fmt.Sprintf("(store %s[%d] %s)", x.Array.name(), x.Index, x.Value)
}

// Block allocates its locals, evaluates its expressions in order and
// yields the value of the last one (nil when empty).
type Block struct {
	Locals []*Local
	Exprs  []Expr
}

func (x *Block) Kind() types.Kind {
	if len(x.Exprs) == 0 {
		return types.KindNil
	}
	return x.Exprs[len(x.Exprs)-1].Kind()
}

func (x *Block) String() string {
	parts := make([]string, 0, len(x.Locals)+len(x.Exprs))
	for _, l := range x.Locals {
		parts = append(parts, l.String())
	}
	for _, e := range x.Exprs {
		parts = append(parts, e.String())
	}
	return "{" + strings.Join(parts, "; ") + "}"
}

// invalid stands in for an expression built from a foreign handle. It
// fails the method when emitted.
type invalid struct {
	reason string
}

func (x *invalid) Kind() types.Kind { return types.KindAny }
func (x *invalid) String() string   { return "<invalid: " + x.reason + ">" }

// ExprStmt evaluates an expression and discards its value.
type ExprStmt struct {
	X Expr
}

// DeclStmt declares a local initialized with a value.
type DeclStmt struct {
	Local *Local
	Init  Expr
}

// IfStmt is a conditional.
type IfStmt struct {
	Cond    Expr
	Then    []Stmt
	Else    []Stmt
	HasElse bool
}

// ForStmt is a loop with initializer and step expressions.
type ForStmt struct {
	Pre  []Expr
	Cond Expr
	Post []Expr
	Body []Stmt
}

// WhileStmt is a pre-tested loop.
type WhileStmt struct {
	Cond Expr
	Body []Stmt
}

func (s *ExprStmt) dump(sb *strings.Builder, indent string) {
	fmt.Fprintf(sb, "%s%s\n", indent, s.X)
}

func (s *DeclStmt) dump(sb *strings.Builder, indent string) {
	fmt.Fprintf(sb, "%s%s := %s\n", indent, s.Local.name(), s.Init)
}

func (s *IfStmt) dump(sb *strings.Builder, indent string) {
	fmt.Fprintf(sb, "%sif %s\n", indent, s.Cond)
	dumpStmts(sb, s.Then, indent+"  ")
	if s.HasElse {
		fmt.Fprintf(sb, "%selse\n", indent)
		dumpStmts(sb, s.Else, indent+"  ")
	}
	fmt.Fprintf(sb, "%send\n", indent)
}

func (s *ForStmt) dump(sb *strings.Builder, indent string) {
	fmt.Fprintf(sb, "%sfor %s; %s; %s\n", indent, exprList(s.Pre), s.Cond, exprList(s.Post))
	dumpStmts(sb, s.Body, indent+"  ")
	fmt.Fprintf(sb, "%send\n", indent)
}

func (s *WhileStmt) dump(sb *strings.Builder, indent string) {
	fmt.Fprintf(sb, "%swhile %s\n", indent, s.Cond)
	dumpStmts(sb, s.Body, indent+"  ")
	fmt.Fprintf(sb, "%send\n", indent)
}

func dumpStmts(sb *strings.Builder, stmts []Stmt, indent string) {
	for _, s := range stmts {
		s.dump(sb, indent)
	}
}

func exprList(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
