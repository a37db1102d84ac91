package ast

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kolkov/narlie/internal/lexer"
)

// Printer writes nodes as canonical S-expressions. Parsing the output
// with the same functions and host types yields an equivalent tree.
// For loops are printed in source order (pre cond post body).
type Printer struct {
	w      io.Writer
	indent string // Indentation unit; empty prints each form on one line
	err    error
}

// NewPrinter creates a new Printer that writes to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// SetIndent makes the printer break nested branches onto separate
// lines, indented by unit per level.
func (p *Printer) SetIndent(unit string) {
	p.indent = unit
}

// PrintTree writes each top-level form of the tree on its own line.
func (p *Printer) PrintTree(t *Tree) error {
	for _, n := range t.Root.Children() {
		p.printNode(n, 0)
		p.write("\n")
	}
	return p.err
}

// Print writes node.
func (p *Printer) Print(node Node) error {
	p.printNode(node, 0)
	return p.err
}

// String returns the compact S-expression form of node.
func String(node Node) string {
	var sb strings.Builder
	_ = NewPrinter(&sb).Print(node)
	return sb.String()
}

func (p *Printer) write(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *Printer) printNode(node Node, depth int) {
	switch n := node.(type) {
	case nil:
		p.write("<nil>")
	case *ListNode:
		p.printForm("", n.Children(), depth)
	case *IdNode:
		if !n.IsCall() {
			p.write(n.ID)
			return
		}
		p.printForm(n.ID, n.Children(), depth)
	case *ControlNode:
		children := n.Children()
		if n.Tag == For && len(children) >= 2 {
			children = append([]Node{children[1], children[0]}, children[2:]...)
		}
		p.printForm(n.Tag.String(), children, depth)
	case *HostCallNode:
		head := n.Name
		if n.Type != nil {
			head += " " + n.Type.FullName()
		}
		p.printForm(head, n.Children(), depth)
	case *IntLit:
		p.write(strconv.FormatInt(n.Value, 10))
	case *RealLit:
		p.write(lexer.FormatReal(n.Value))
	case *StrLit:
		p.write(lexer.Quote(n.Value))
	case *BoolLit:
		if n.Value {
			p.write("#t")
		} else {
			p.write("#f")
		}
	case *NilLit:
		p.write("nil")
	default:
		p.write(fmt.Sprintf("<%T>", node))
	}
}

func (p *Printer) printForm(head string, children []Node, depth int) {
	p.write("(")
	p.write(head)
	for i, c := range children {
		if p.indent != "" && isBranch(c) {
			p.write("\n")
			p.write(strings.Repeat(p.indent, depth+1))
		} else if head != "" || i > 0 {
			p.write(" ")
		}
		p.printNode(c, depth+1)
	}
	p.write(")")
}

func isBranch(n Node) bool {
	switch n := n.(type) {
	case *IdNode:
		return n.IsCall()
	case Branch:
		return true
	default:
		return false
	}
}
