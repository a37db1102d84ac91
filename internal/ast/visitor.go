package ast

import "fmt"

// Visitor defines the generic visitor pattern for AST traversal.
// Type parameter T is the return type of visit methods.
//
// The method set covers every node type, so a visitor that compiles
// handles the whole tree. Adding a node type means adding a method here,
// which breaks every visitor until it handles the new node.
//
// Example usage for code generation:
//
//	type Gen struct{ out []Expr }
//	func (g *Gen) VisitInt(n *IntLit) error {
//	    g.out = append(g.out, literal(n.Value))
//	    return nil
//	}
type Visitor[T any] interface {
	// Branches
	VisitList(*ListNode) T
	VisitId(*IdNode) T
	VisitControl(*ControlNode) T
	VisitHostCall(*HostCallNode) T

	// Literals
	VisitInt(*IntLit) T
	VisitReal(*RealLit) T
	VisitStr(*StrLit) T
	VisitBool(*BoolLit) T
	VisitNil(*NilLit) T
}

// Accept dispatches to the appropriate visitor method based on node type.
//
// Example:
//
//	err := ast.Accept[error](node, gen)
func Accept[T any](node Node, v Visitor[T]) T {
	switch n := node.(type) {
	case *ListNode:
		return v.VisitList(n)
	case *IdNode:
		return v.VisitId(n)
	case *ControlNode:
		return v.VisitControl(n)
	case *HostCallNode:
		return v.VisitHostCall(n)
	case *IntLit:
		return v.VisitInt(n)
	case *RealLit:
		return v.VisitReal(n)
	case *StrLit:
		return v.VisitStr(n)
	case *BoolLit:
		return v.VisitBool(n)
	case *NilLit:
		return v.VisitNil(n)
	default:
		// Node is sealed; only a nil node gets here.
		panic(fmt.Sprintf("ast: unexpected node %T", node))
	}
}

// Walk traverses an AST in depth-first order.
// For each node, it calls fn(node). If fn returns false,
// the children of that node are not visited.
//
// Example: Count all identifiers
//
//	count := 0
//	ast.Walk(tree.Root, func(n ast.Node) bool {
//	    if _, ok := n.(*ast.IdNode); ok {
//	        count++
//	    }
//	    return true // continue traversal
//	})
func Walk(node Node, fn func(Node) bool) {
	if node == nil || !fn(node) {
		return
	}
	if b, ok := node.(Branch); ok {
		for _, c := range b.Children() {
			Walk(c, fn)
		}
	}
}

// Inspect traverses an AST with parent tracking.
// For each node, it calls fn(node, parent). The parent is nil for the root node.
// If fn returns false, the children of that node are not visited.
func Inspect(node Node, fn func(node, parent Node) bool) {
	if node == nil {
		return
	}
	inspect(node, node.Parent(), fn)
}

func inspect(node, parent Node, fn func(node, parent Node) bool) {
	if !fn(node, parent) {
		return
	}
	if b, ok := node.(Branch); ok {
		for _, c := range b.Children() {
			inspect(c, node, fn)
		}
	}
}

// Count returns the number of nodes in the subtree rooted at node.
func Count(node Node) int {
	n := 0
	Walk(node, func(Node) bool {
		n++
		return true
	})
	return n
}
