// Package ast defines the abstract syntax tree for Narlie programs.
//
// Node hierarchy:
//
//	Node (sealed interface)
//	├── Branch (owns a scope and children)
//	│   ├── ListNode - parenthesized group, the root is a ListNode
//	│   ├── IdNode - identifier: a leaf reference or a call with arguments
//	│   ├── ControlNode - if / for / while
//	│   └── HostCallNode - call bound to a host type's static method
//	└── Literals
//	    └── IntLit, RealLit, StrLit, BoolLit, NilLit
//
// Every node records its parent (nil for the root) and the position of
// its first token. Scopes live in a separate arena (Scopes) and are
// addressed by ScopeID.
package ast

import (
	"github.com/kolkov/narlie/internal/builtins"
	"github.com/kolkov/narlie/internal/host"
	"github.com/kolkov/narlie/internal/token"
)

// Node is the interface implemented by all AST nodes.
type Node interface {
	// Pos returns the position of the first token of the node.
	Pos() token.Position

	// Parent returns the enclosing node, or nil for the root.
	Parent() Node

	setParent(Node)
	node() // marker method to prevent external implementations
}

// Branch is a node that owns a scope and an ordered list of children.
type Branch interface {
	Node

	// Scope returns the scope owned by the node, or NoScope for a leaf
	// identifier.
	Scope() ScopeID

	// Children returns the node's children in source order.
	Children() []Node

	// Append adds child as the last child and sets its parent.
	Append(child Node)

	// Replace substitutes repl for old and reports whether old was found.
	Replace(old, repl Node) bool

	// SetChildren replaces the children slice, reparenting each child.
	SetChildren(children []Node)
}

type base struct {
	StartPos token.Position
	parent   Node
}

func (b *base) Pos() token.Position { return b.StartPos }
func (b *base) Parent() Node        { return b.parent }
func (b *base) setParent(p Node)    { b.parent = p }
func (b *base) node()               {}

// branch provides scope and children storage for Branch nodes. self is
// the embedding node, used as the parent of appended children.
type branch struct {
	base
	self     Node
	scope    ScopeID
	children []Node
}

func (b *branch) Scope() ScopeID   { return b.scope }
func (b *branch) Children() []Node { return b.children }

// Len returns the number of children.
func (b *branch) Len() int { return len(b.children) }

// Child returns the i-th child, or nil if out of range.
func (b *branch) Child(i int) Node {
	if i < 0 || i >= len(b.children) {
		return nil
	}
	return b.children[i]
}

func (b *branch) Append(child Node) {
	child.setParent(b.self)
	b.children = append(b.children, child)
}

func (b *branch) Replace(old, repl Node) bool {
	for i, c := range b.children {
		if c == old {
			repl.setParent(b.self)
			b.children[i] = repl
			return true
		}
	}
	return false
}

func (b *branch) SetChildren(children []Node) {
	for _, c := range children {
		c.setParent(b.self)
	}
	b.children = children
}

// ListNode is a parenthesized group of nodes. The tree root is a
// ListNode without parent.
type ListNode struct {
	branch
}

// NewList creates a list node owning scope.
func NewList(pos token.Position, scope ScopeID) *ListNode {
	n := &ListNode{}
	n.StartPos = pos
	n.self = n
	n.scope = scope
	return n
}

// IdNode is an identifier. A leaf IdNode references a variable or names
// a zero-arity function; a call IdNode owns a scope holding its
// arguments.
type IdNode struct {
	branch
	ID   string             // Identifier; "setf" is rewritten to "set"
	Func *builtins.Function // Resolved function, nil for variables and virtual forms
}

// NewLeaf creates a leaf identifier. fn is nil unless the identifier
// names a zero-arity function.
func NewLeaf(pos token.Position, id string, fn *builtins.Function) *IdNode {
	n := &IdNode{ID: id, Func: fn}
	n.StartPos = pos
	n.self = n
	n.scope = NoScope
	return n
}

// NewCall creates an identifier call owning scope. fn is nil for
// virtual forms.
func NewCall(pos token.Position, id string, fn *builtins.Function, scope ScopeID) *IdNode {
	n := NewLeaf(pos, id, fn)
	n.scope = scope
	return n
}

// IsCall reports whether the identifier owns an argument scope.
func (n *IdNode) IsCall() bool { return n.scope != NoScope }

// IsVirtual reports whether the node is a virtual form call.
func (n *IdNode) IsVirtual() bool {
	return n.IsCall() && n.Func == nil && token.IsVirtual(n.ID)
}

// Control identifies the kind of a ControlNode.
type Control uint8

const (
	If Control = iota
	For
	While
)

// String returns the keyword of the control construct.
func (c Control) String() string {
	switch c {
	case If:
		return "if"
	case For:
		return "for"
	case While:
		return "while"
	default:
		return "control"
	}
}

// ControlNode is an if, for or while construct. For loops are stored
// in the order (cond pre post body).
type ControlNode struct {
	branch
	Tag Control
}

// NewControl creates a control node owning scope.
func NewControl(pos token.Position, tag Control, scope ScopeID) *ControlNode {
	n := &ControlNode{Tag: tag}
	n.StartPos = pos
	n.self = n
	n.scope = scope
	return n
}

// Cond returns the condition of the construct.
func (n *ControlNode) Cond() Node { return n.Child(0) }

// Then returns the true block of an if.
func (n *ControlNode) Then() Node { return n.Child(1) }

// Else returns the false block of an if, or nil.
func (n *ControlNode) Else() Node { return n.Child(2) }

// Pre returns the initializer of a for loop.
func (n *ControlNode) Pre() Node { return n.Child(1) }

// Post returns the step of a for loop.
func (n *ControlNode) Post() Node { return n.Child(2) }

// Body returns the loop body of a for or while.
func (n *ControlNode) Body() Node {
	if n.Tag == For {
		return n.Child(3)
	}
	return n.Child(1)
}

// HostCallNode is a call to a static method of a host type.
type HostCallNode struct {
	branch
	Name   string       // Method name as written
	Type   *host.Type   // Resolved host type
	Method *host.Method // Set when statically bound; otherwise resolved during codegen
}

// NewHostCall creates a host call owning scope.
func NewHostCall(pos token.Position, name string, t *host.Type, scope ScopeID) *HostCallNode {
	n := &HostCallNode{Name: name, Type: t}
	n.StartPos = pos
	n.self = n
	n.scope = scope
	return n
}

// IntLit is an integer literal.
type IntLit struct {
	base
	Value int64
}

// RealLit is a real literal.
type RealLit struct {
	base
	Value float64
}

// StrLit is a string literal (unescaped).
type StrLit struct {
	base
	Value string
}

// BoolLit is a boolean literal.
type BoolLit struct {
	base
	Value bool
}

// NilLit is the nil literal.
type NilLit struct {
	base
}

// NewInt creates an integer literal.
func NewInt(pos token.Position, v int64) *IntLit {
	return &IntLit{base: base{StartPos: pos}, Value: v}
}

// NewReal creates a real literal.
func NewReal(pos token.Position, v float64) *RealLit {
	return &RealLit{base: base{StartPos: pos}, Value: v}
}

// NewStr creates a string literal.
func NewStr(pos token.Position, v string) *StrLit {
	return &StrLit{base: base{StartPos: pos}, Value: v}
}

// NewBool creates a boolean literal.
func NewBool(pos token.Position, v bool) *BoolLit {
	return &BoolLit{base: base{StartPos: pos}, Value: v}
}

// NewNil creates a nil literal.
func NewNil(pos token.Position) *NilLit {
	return &NilLit{base: base{StartPos: pos}}
}

// IsNil reports whether n is absent or a nil literal.
func IsNil(n Node) bool {
	if n == nil {
		return true
	}
	_, ok := n.(*NilLit)
	return ok
}

// EnclosingScope returns the scope in which n is evaluated: the scope
// of the nearest ancestor owning one.
func EnclosingScope(n Node) ScopeID {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if b, ok := p.(Branch); ok && b.Scope() != NoScope {
			return b.Scope()
		}
	}
	return NoScope
}

// Tree is a parsed compilation unit.
type Tree struct {
	Root       *ListNode
	Scopes     *Scopes
	Namespaces []string // Namespaces registered by using forms
}
