// Package host models externally supplied types and their static
// methods, and resolves host-bound calls by namespace, name and
// argument kinds.
package host

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kolkov/narlie/internal/builtins"
	"github.com/kolkov/narlie/internal/types"
)

// ErrUnknownMethod is returned when no method matches a call.
var ErrUnknownMethod = errors.New("unknown host method")

// Method describes a host method callable from Narlie.
type Method struct {
	Type    *Type
	Name    string
	Params  []types.Kind
	Result  types.Kind
	Static  bool
	Public  bool
	Handler builtins.Handler
}

// FullName returns the qualified method name, e.g. "System.Math.Max".
func (m *Method) FullName() string {
	if m.Type == nil {
		return m.Name
	}
	return m.Type.FullName() + "." + m.Name
}

// Symbol returns a name that is unique across overloads, used when a
// compiled program is persisted and rebound.
func (m *Method) Symbol() string {
	params := make([]string, len(m.Params))
	for i, p := range m.Params {
		params[i] = p.String()
	}
	return m.FullName() + "(" + strings.Join(params, ",") + ")"
}

// ResultKind returns the static kind of the method's result.
func (m *Method) ResultKind() types.Kind {
	return m.Result
}

// Call invokes the method's handler.
func (m *Method) Call(env *builtins.Env, args []types.Value) (types.Value, error) {
	if m.Handler == nil {
		return types.Nil(), fmt.Errorf("%s: no handler", m.FullName())
	}
	return m.Handler(env, args)
}

func (m *Method) String() string {
	return m.Symbol()
}

// callable reports whether the method may be bound from Narlie source.
func (m *Method) callable() bool {
	return m.Public && m.Static
}

// Accepts reports whether arguments of the given kinds can be passed
// to m.
func (m *Method) Accepts(args []types.Kind) bool {
	return m.score(args) >= 0
}

// score rates how well args match the parameters. It returns -1 when
// the method cannot accept them, otherwise the number of exact matches.
func (m *Method) score(args []types.Kind) int {
	if len(args) != len(m.Params) {
		return -1
	}
	exact := 0
	for i, a := range args {
		p := m.Params[i]
		switch {
		case a == p:
			exact++
		case !a.AssignableTo(p):
			return -1
		}
	}
	return exact
}

// Type is a host type exposing methods.
type Type struct {
	Namespace string
	Name      string
	methods   []*Method
}

// NewType creates an empty host type.
func NewType(namespace, name string) *Type {
	return &Type{Namespace: namespace, Name: name}
}

// FullName returns the namespace-qualified type name.
func (t *Type) FullName() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// Add attaches m to the type and returns the type for chaining.
func (t *Type) Add(m *Method) *Type {
	m.Type = t
	t.methods = append(t.methods, m)
	return t
}

// Static adds a public static method.
func (t *Type) Static(name string, params []types.Kind, result types.Kind, h builtins.Handler) *Type {
	return t.Add(&Method{Name: name, Params: params, Result: result, Static: true, Public: true, Handler: h})
}

// Methods returns every method whose name matches name case-insensitively.
func (t *Type) Methods(name string) []*Method {
	var out []*Method
	for _, m := range t.methods {
		if strings.EqualFold(m.Name, name) {
			out = append(out, m)
		}
	}
	return out
}

// All returns the type's methods in registration order.
func (t *Type) All() []*Method {
	return t.methods
}

// Resolver is the capability the parser and code generator use to bind
// host calls.
type Resolver interface {
	// LookupType finds a type by short or qualified name among the
	// given namespaces.
	LookupType(namespaces []string, name string) (*Type, bool)

	// HasStaticMethod reports whether t exposes a public static method
	// named name (case-insensitive).
	HasStaticMethod(t *Type, name string) bool

	// ResolveMethod picks the public static method of t matching name
	// and the argument kinds.
	ResolveMethod(t *Type, name string, args []types.Kind) (*Method, error)
}
