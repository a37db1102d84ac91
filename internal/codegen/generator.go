package codegen

import (
	"fmt"
	"strconv"

	"github.com/kolkov/narlie/internal/ast"
	"github.com/kolkov/narlie/internal/backend"
	"github.com/kolkov/narlie/internal/builtins"
	"github.com/kolkov/narlie/internal/host"
	"github.com/kolkov/narlie/internal/token"
	"github.com/kolkov/narlie/internal/types"
)

// Generator lowers a tree into the body of one backend method.
//
// Expressions are collected on a stack of pending lists: lowering a node
// pushes a list, visits the node, and pops whatever the node produced.
// Top-level forms and the blocks of control constructs are lowered as
// statements; everything else is an expression of its owner.
type Generator struct {
	be     backend.Backend
	hosts  host.Resolver
	tree   *ast.Tree
	method backend.Method

	// Backend locals, keyed by the scope that registered them.
	locals  map[ast.ScopeID]map[string]backend.Local
	pending [][]backend.Expr

	// Nesting depth of call arguments being lowered.
	args int
}

var _ ast.Visitor[error] = (*Generator)(nil)

// NewGenerator creates a generator emitting into be. hosts resolves host
// calls that were not statically bound by the parser; it may be nil.
func NewGenerator(be backend.Backend, hosts host.Resolver) *Generator {
	return &Generator{be: be, hosts: hosts}
}

// Generate lowers tree into method m.
func (g *Generator) Generate(tree *ast.Tree, m backend.Method) error {
	g.tree = tree
	g.method = m
	g.locals = make(map[ast.ScopeID]map[string]backend.Local)
	g.pending = g.pending[:0]
	return g.statement(tree.Root)
}

// statement lowers n and appends each resulting expression to the
// innermost open construct of the method.
func (g *Generator) statement(n ast.Node) error {
	if list, ok := n.(*ast.ListNode); ok {
		for _, c := range list.Children() {
			if err := g.statement(c); err != nil {
				return err
			}
		}
		return nil
	}
	exprs, err := g.lower(n)
	if err != nil {
		return err
	}
	for _, e := range exprs {
		if err := g.be.AppendStatement(g.method, e); err != nil {
			return errorAt(n, "%v", err)
		}
	}
	return nil
}

// lower returns the expressions produced by n.
func (g *Generator) lower(n ast.Node) ([]backend.Expr, error) {
	g.pending = append(g.pending, nil)
	err := ast.Accept[error](n, g)
	top := len(g.pending) - 1
	exprs := g.pending[top]
	g.pending = g.pending[:top]
	return exprs, err
}

// lowerAll lowers each node in order and concatenates the results.
func (g *Generator) lowerAll(nodes []ast.Node) ([]backend.Expr, error) {
	var out []backend.Expr
	for _, n := range nodes {
		exprs, err := g.lower(n)
		if err != nil {
			return nil, err
		}
		out = append(out, exprs...)
	}
	return out, nil
}

// arguments lowers the argument nodes of a call. Control forms are
// rejected anywhere inside them.
func (g *Generator) arguments(nodes []ast.Node) ([]backend.Expr, error) {
	g.args++
	defer func() { g.args-- }()
	return g.lowerAll(nodes)
}

// single lowers n, which must produce exactly one expression.
func (g *Generator) single(n ast.Node, what string) (backend.Expr, error) {
	exprs, err := g.lower(n)
	if err != nil {
		return nil, err
	}
	if len(exprs) != 1 {
		e := errorAt(n, "%s %s", what, MsgSingleValue)
		e.Want, e.Got = "1", strconv.Itoa(len(exprs))
		return nil, e
	}
	return exprs[0], nil
}

func (g *Generator) push(e backend.Expr) {
	top := len(g.pending) - 1
	g.pending[top] = append(g.pending[top], e)
}

// -----------------------------------------------------------------------------
// Locals
// -----------------------------------------------------------------------------

func (g *Generator) register(scope ast.ScopeID, name string, l backend.Local) {
	m := g.locals[scope]
	if m == nil {
		m = make(map[string]backend.Local)
		g.locals[scope] = m
	}
	m[name] = l
}

// local finds name starting at scope and walking outward.
func (g *Generator) local(scope ast.ScopeID, name string) (backend.Local, bool) {
	for cur := scope; ; cur = g.tree.Scopes.Parent(cur) {
		if l, ok := g.locals[cur][name]; ok {
			return l, true
		}
		if cur == ast.NoScope {
			return nil, false
		}
	}
}

// -----------------------------------------------------------------------------
// Visitor
// -----------------------------------------------------------------------------

func (g *Generator) VisitInt(n *ast.IntLit) error {
	g.push(g.be.BuildLiteral(types.Int(n.Value)))
	return nil
}

func (g *Generator) VisitReal(n *ast.RealLit) error {
	g.push(g.be.BuildLiteral(types.Real(n.Value)))
	return nil
}

func (g *Generator) VisitStr(n *ast.StrLit) error {
	g.push(g.be.BuildLiteral(types.Str(n.Value)))
	return nil
}

func (g *Generator) VisitBool(n *ast.BoolLit) error {
	g.push(g.be.BuildLiteral(types.Bool(n.Value)))
	return nil
}

func (g *Generator) VisitNil(n *ast.NilLit) error {
	g.push(g.be.BuildLiteral(types.Nil()))
	return nil
}

// VisitList lowers an unreduced list as the sequence of its children.
func (g *Generator) VisitList(n *ast.ListNode) error {
	exprs, err := g.lowerAll(n.Children())
	if err != nil {
		return err
	}
	for _, e := range exprs {
		g.push(e)
	}
	return nil
}

func (g *Generator) VisitId(n *ast.IdNode) error {
	if !n.IsCall() {
		return g.reference(n)
	}
	if n.IsVirtual() {
		switch n.ID {
		case token.Using:
			// Namespaces were consumed by the parser.
			return nil
		case token.Let:
			return g.let(n)
		default:
			return g.set(n)
		}
	}
	return g.call(n)
}

func (g *Generator) reference(n *ast.IdNode) error {
	if n.Func != nil {
		e, err := g.be.BuildCall(n.Func, nil)
		if err != nil {
			return errorAt(n, "%v", err)
		}
		g.push(e)
		return nil
	}
	l, ok := g.local(ast.EnclosingScope(n), n.ID)
	if !ok {
		return errorAt(n, MsgNoReference)
	}
	g.push(g.be.BuildLocalRef(l))
	return nil
}

func (g *Generator) call(n *ast.IdNode) error {
	if n.Func == nil {
		return errorAt(n, "%s", MsgNoReference)
	}
	args, err := g.arguments(n.Children())
	if err != nil {
		return err
	}
	if err := n.Func.Arity.Check(len(args)); err != nil {
		e := errorAt(n, MsgArgumentCount)
		e.Want, e.Got = n.Func.Arity.String(), strconv.Itoa(len(args))
		return e
	}

	var e backend.Expr
	if n.Func.IsVariadic() {
		e, err = g.boxedCall(n.Func, args)
	} else {
		e, err = g.be.BuildCall(n.Func, args)
	}
	if err != nil {
		return errorAt(n, "%v", err)
	}
	g.push(e)
	return nil
}

// boxedCall stores args into a fresh array local, in order, and calls fn
// with the array as its only argument.
func (g *Generator) boxedCall(fn *builtins.Function, args []backend.Expr) (backend.Expr, error) {
	arr := g.be.BuildArray(types.KindAny, len(args))
	exprs := make([]backend.Expr, 0, len(args)+1)
	for i, a := range args {
		exprs = append(exprs, g.be.StoreArrayElement(arr, i, a))
	}
	c, err := g.be.BuildCall(fn, []backend.Expr{g.be.BuildLocalRef(arr)})
	if err != nil {
		return nil, err
	}
	exprs = append(exprs, c)
	return g.be.BuildBlock([]backend.Local{arr}, exprs), nil
}

// let declares one local per binding and registers it in the scope
// enclosing the form. It produces no expression.
func (g *Generator) let(n *ast.IdNode) error {
	pairs, err := ast.LetPairs(n)
	if err != nil {
		return errorAt(n, "%v", err)
	}
	target := g.tree.Scopes.Parent(n.Scope())
	for _, p := range pairs {
		v, err := g.single(p.Value, "let "+p.Name.ID)
		if err != nil {
			return err
		}
		l, err := g.be.DeclareLocal(g.method, v.Kind(), v)
		if err != nil {
			return errorAt(p.Name, "%v", err)
		}
		g.register(target, p.Name.ID, l)
	}
	return nil
}

// set produces the assignment of its value to a registered local.
func (g *Generator) set(n *ast.IdNode) error {
	children := n.Children()
	if len(children) != 2 {
		e := errorAt(n, "set expects a target and a value")
		e.Want, e.Got = "2", strconv.Itoa(len(children))
		return e
	}
	target, ok := children[0].(*ast.IdNode)
	if !ok {
		return errorAt(children[0], "set target must be an identifier")
	}
	l, ok := g.local(n.Scope(), target.ID)
	if !ok {
		return errorAt(target, MsgNoReference)
	}
	v, err := g.single(children[1], "set "+target.ID)
	if err != nil {
		return err
	}
	g.push(g.be.AssignLocal(l, v))
	return nil
}

func (g *Generator) VisitHostCall(n *ast.HostCallNode) error {
	args, err := g.arguments(n.Children())
	if err != nil {
		return err
	}
	kinds := make([]types.Kind, len(args))
	for i, a := range args {
		kinds[i] = a.Kind()
	}
	m := n.Method
	if m != nil && !m.Accepts(kinds) {
		e := errorAt(n, MsgArgumentKinds)
		e.Want, e.Got = m.Symbol(), fmt.Sprint(kinds)
		return e
	}
	if m == nil {
		if g.hosts == nil {
			return errorAt(n, MsgUnknownHost)
		}
		m, err = g.hosts.ResolveMethod(n.Type, n.Name, kinds)
		if err != nil {
			e := errorAt(n, MsgUnknownHost)
			e.Want, e.Got = n.Type.FullName()+"."+n.Name, fmt.Sprintf("%v", err)
			return e
		}
	}
	e, err := g.be.BuildCall(m, args)
	if err != nil {
		return errorAt(n, "%v", err)
	}
	g.push(e)
	return nil
}

// VisitControl emits a control construct into the method. It produces
// no expression, so it cannot appear among call arguments.
func (g *Generator) VisitControl(n *ast.ControlNode) error {
	if g.args > 0 {
		return errorAt(n, MsgControlValue)
	}
	switch n.Tag {
	case ast.If:
		return g.ifStmt(n)
	case ast.For:
		return g.forStmt(n)
	default:
		return g.whileStmt(n)
	}
}

func (g *Generator) ifStmt(n *ast.ControlNode) error {
	cond, err := g.single(n.Cond(), "if condition")
	if err != nil {
		return err
	}
	if err := g.be.OpenIf(g.method, cond); err != nil {
		return errorAt(n, "%v", err)
	}
	if err := g.statement(n.Then()); err != nil {
		return err
	}
	if n.Len() == 3 {
		if err := g.be.Else(g.method); err != nil {
			return errorAt(n, "%v", err)
		}
		if err := g.statement(n.Else()); err != nil {
			return err
		}
	}
	if err := g.be.EndIf(g.method); err != nil {
		return errorAt(n, "%v", err)
	}
	return nil
}

func (g *Generator) forStmt(n *ast.ControlNode) error {
	var pre, post []backend.Expr
	var err error
	if !ast.IsNil(n.Pre()) {
		if pre, err = g.lower(n.Pre()); err != nil {
			return err
		}
	}
	cond, err := g.single(n.Cond(), "for condition")
	if err != nil {
		return err
	}
	if !ast.IsNil(n.Post()) {
		if post, err = g.lower(n.Post()); err != nil {
			return err
		}
	}
	if err := g.be.OpenFor(g.method, pre, cond, post); err != nil {
		return errorAt(n, "%v", err)
	}
	if err := g.statement(n.Body()); err != nil {
		return err
	}
	if err := g.be.EndFor(g.method); err != nil {
		return errorAt(n, "%v", err)
	}
	return nil
}

func (g *Generator) whileStmt(n *ast.ControlNode) error {
	cond, err := g.single(n.Cond(), "while condition")
	if err != nil {
		return err
	}
	if err := g.be.OpenWhile(g.method, cond); err != nil {
		return errorAt(n, "%v", err)
	}
	if err := g.statement(n.Body()); err != nil {
		return err
	}
	if err := g.be.EndWhile(g.method); err != nil {
		return errorAt(n, "%v", err)
	}
	return nil
}
