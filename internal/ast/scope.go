package ast

import (
	"fmt"
	"sort"

	"github.com/kolkov/narlie/internal/builtins"
	"github.com/kolkov/narlie/internal/token"
)

// ScopeID addresses a scope in a Scopes arena.
type ScopeID int32

// NoScope is the parent of the root scope and the scope of leaf nodes.
const NoScope ScopeID = -1

// Binding is a name bound in a scope: either a function or a variable
// bound to its value expression.
type Binding struct {
	Name  string
	Func  *builtins.Function // Set for functions
	Value Node               // Value expression of a variable
	Pos   token.Position     // Declaration position
}

// IsFunc reports whether the binding names a function.
func (b *Binding) IsFunc() bool {
	return b.Func != nil
}

type scope struct {
	parent ScopeID
	names  map[string]*Binding
}

// Scopes is an arena of nested scopes. Each scope holds an optional
// parent index and its own name table; lookup walks parent indices
// outward and the nearest binding wins.
type Scopes struct {
	scopes []scope
}

// NewScopes creates an empty arena.
func NewScopes() *Scopes {
	return &Scopes{}
}

// New allocates a scope with the given parent (NoScope for a root).
func (s *Scopes) New(parent ScopeID) ScopeID {
	s.scopes = append(s.scopes, scope{parent: parent})
	return ScopeID(len(s.scopes) - 1)
}

// Len returns the number of allocated scopes.
func (s *Scopes) Len() int {
	return len(s.scopes)
}

func (s *Scopes) valid(id ScopeID) bool {
	return id >= 0 && int(id) < len(s.scopes)
}

// Parent returns the parent of id, or NoScope.
func (s *Scopes) Parent(id ScopeID) ScopeID {
	if !s.valid(id) {
		return NoScope
	}
	return s.scopes[id].parent
}

// SetParent re-parents id. It refuses to create a cycle.
func (s *Scopes) SetParent(id, parent ScopeID) error {
	if !s.valid(id) {
		return fmt.Errorf("invalid scope %d", id)
	}
	for p := parent; p != NoScope; p = s.Parent(p) {
		if p == id {
			return fmt.Errorf("scope %d cannot be its own ancestor", id)
		}
	}
	s.scopes[id].parent = parent
	return nil
}

// Define binds b.Name in scope id, replacing any binding of the same
// name in that scope.
func (s *Scopes) Define(id ScopeID, b *Binding) {
	if !s.valid(id) {
		return
	}
	sc := &s.scopes[id]
	if sc.names == nil {
		sc.names = make(map[string]*Binding)
	}
	sc.names[b.Name] = b
}

// DefineFunc binds a function in scope id.
func (s *Scopes) DefineFunc(id ScopeID, f *builtins.Function) {
	s.Define(id, &Binding{Name: f.Name, Func: f})
}

// LookupLocal finds name in scope id only.
func (s *Scopes) LookupLocal(id ScopeID, name string) (*Binding, bool) {
	if !s.valid(id) {
		return nil, false
	}
	b, ok := s.scopes[id].names[name]
	return b, ok
}

// Lookup finds name starting at scope id and walking outward. It returns
// the binding and the scope that holds it.
func (s *Scopes) Lookup(id ScopeID, name string) (*Binding, ScopeID, bool) {
	for cur := id; s.valid(cur); cur = s.scopes[cur].parent {
		if b, ok := s.scopes[cur].names[name]; ok {
			return b, cur, true
		}
	}
	return nil, NoScope, false
}

// Depth returns the number of ancestors of id.
func (s *Scopes) Depth(id ScopeID) int {
	d := 0
	for p := s.Parent(id); p != NoScope; p = s.Parent(p) {
		d++
	}
	return d
}

// Names returns the names bound directly in scope id, sorted.
func (s *Scopes) Names(id ScopeID) []string {
	if !s.valid(id) {
		return nil
	}
	names := make([]string, 0, len(s.scopes[id].names))
	for name := range s.scopes[id].names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset discards every scope.
func (s *Scopes) Reset() {
	s.scopes = s.scopes[:0]
}
