package host

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gobwas/glob"

	"github.com/kolkov/narlie/internal/runtime"
	"github.com/kolkov/narlie/internal/types"
)

// Registry holds host types and implements Resolver.
type Registry struct {
	types map[string]*Type // by full name
	order []string         // full names in registration order
	allow *runtime.Regex   // nil allows every type

	mu    sync.Mutex
	globs map[string]glob.Glob
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]*Type),
		globs: make(map[string]glob.Glob),
	}
}

// Register adds t. Registering the same full name twice is an error.
func (r *Registry) Register(t *Type) error {
	if t.Name == "" {
		return fmt.Errorf("host type name must not be empty")
	}
	full := t.FullName()
	if _, exists := r.types[full]; exists {
		return fmt.Errorf("host type %q already registered", full)
	}
	r.types[full] = t
	r.order = append(r.order, full)
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(t *Type) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// SetAllowPattern restricts lookups to types whose full name matches
// the regular expression. An empty pattern removes the restriction.
func (r *Registry) SetAllowPattern(pattern string) error {
	if pattern == "" {
		r.allow = nil
		return nil
	}
	re, err := runtime.Compile(pattern)
	if err != nil {
		return fmt.Errorf("host allow pattern: %w", err)
	}
	r.allow = re
	return nil
}

// Types returns the full names of the visible types, sorted.
func (r *Registry) Types() []string {
	var out []string
	for _, full := range r.order {
		if r.allowed(full) {
			out = append(out, full)
		}
	}
	sort.Strings(out)
	return out
}

// Symbols returns every method of every visible type keyed by
// Method.Symbol.
func (r *Registry) Symbols() map[string]*Method {
	out := make(map[string]*Method)
	for _, full := range r.order {
		if !r.allowed(full) {
			continue
		}
		for _, m := range r.types[full].methods {
			out[m.Symbol()] = m
		}
	}
	return out
}

func (r *Registry) allowed(full string) bool {
	return r.allow == nil || r.allow.MatchString(full)
}

// LookupType resolves name among namespaces. A qualified name is tried
// as-is first. Namespace entries may be glob patterns such as "System.*".
// When several types match, the first registered one wins.
func (r *Registry) LookupType(namespaces []string, name string) (*Type, bool) {
	if t, ok := r.types[name]; ok && r.allowed(name) {
		return t, true
	}
	for _, full := range r.order {
		t := r.types[full]
		if t.Name != name || !r.allowed(full) {
			continue
		}
		for _, ns := range namespaces {
			if r.matchNamespace(ns, t.Namespace) {
				return t, true
			}
		}
	}
	return nil, false
}

func (r *Registry) matchNamespace(pattern, ns string) bool {
	if pattern == ns {
		return true
	}
	if !strings.ContainsAny(pattern, "*?[{") {
		return false
	}
	r.mu.Lock()
	g, ok := r.globs[pattern]
	if !ok {
		var err error
		g, err = glob.Compile(pattern, '.')
		if err != nil {
			g = nil
		}
		r.globs[pattern] = g
	}
	r.mu.Unlock()
	return g != nil && g.Match(ns)
}

// HasStaticMethod reports whether t has a public static method named name.
func (r *Registry) HasStaticMethod(t *Type, name string) bool {
	for _, m := range t.Methods(name) {
		if m.callable() {
			return true
		}
	}
	return false
}

// ResolveMethod returns the best overload of name on t for args. Exact
// kind matches are preferred; ties go to the first registered overload.
func (r *Registry) ResolveMethod(t *Type, name string, args []types.Kind) (*Method, error) {
	var best *Method
	bestScore := -1
	for _, m := range t.Methods(name) {
		if !m.callable() {
			continue
		}
		if s := m.score(args); s > bestScore {
			best, bestScore = m, s
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %s.%s%s", ErrUnknownMethod, t.FullName(), name, kindList(args))
	}
	return best, nil
}

// Unique returns the single public static overload of name on t taking
// argc arguments, if exactly one exists.
func Unique(t *Type, name string, argc int) (*Method, bool) {
	var found *Method
	for _, m := range t.Methods(name) {
		if !m.callable() || len(m.Params) != argc {
			continue
		}
		if found != nil {
			return nil, false
		}
		found = m
	}
	return found, found != nil
}

func kindList(kinds []types.Kind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = k.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
