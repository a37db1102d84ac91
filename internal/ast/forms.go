package ast

import "fmt"

// LetPair is one name/value binding of a let form.
type LetPair struct {
	Name  *IdNode
	Value Node
}

// LetPairs returns the bindings of a let form: either the shorthand
// (let id value) or the multi-binding (let (id0 v0) (id1 v1) ...).
func LetPairs(n *IdNode) ([]LetPair, error) {
	children := n.Children()
	if len(children) == 0 {
		return nil, fmt.Errorf("let expects at least one binding")
	}
	if id, ok := bindingName(children[0]); ok {
		if len(children) != 2 {
			return nil, fmt.Errorf("let %s expects exactly one value, got %d", id.ID, len(children)-1)
		}
		return []LetPair{{Name: id, Value: children[1]}}, nil
	}

	pairs := make([]LetPair, 0, len(children))
	for i, c := range children {
		list, ok := c.(*ListNode)
		if !ok || len(list.Children()) != 2 {
			return nil, fmt.Errorf("let binding %d must be a (name value) pair", i)
		}
		id, ok := bindingName(list.Children()[0])
		if !ok {
			return nil, fmt.Errorf("let binding %d must start with an identifier", i)
		}
		pairs = append(pairs, LetPair{Name: id, Value: list.Children()[1]})
	}
	return pairs, nil
}

func bindingName(n Node) (*IdNode, bool) {
	id, ok := n.(*IdNode)
	if !ok || id.IsCall() {
		return nil, false
	}
	return id, true
}
