// Package builtins defines invocable built-in functions, their arity
// policies, and the default Narlie function library.
package builtins

import (
	"fmt"
	"io"
	"sort"

	"github.com/kolkov/narlie/internal/types"
)

// Policy is a function's constraint on its argument count.
type Policy uint8

const (
	Empty    Policy = iota // Takes no arguments; usable as a bare identifier
	Fixed                  // Exactly Min arguments
	Range                  // Between Min and Max arguments
	Variable               // Any number of arguments, boxed into one array
)

// String returns a human-readable name for the policy.
func (p Policy) String() string {
	switch p {
	case Empty:
		return "empty"
	case Fixed:
		return "fixed"
	case Range:
		return "range"
	case Variable:
		return "variable"
	default:
		return "unknown"
	}
}

// Arity is a function's declared argument-count policy with its bounds.
type Arity struct {
	Policy Policy
	Min    int
	Max    int
}

// EmptyArity returns the arity of a function that takes no arguments.
func EmptyArity() Arity { return Arity{Policy: Empty} }

// FixedArity returns the arity of a function taking exactly n arguments.
func FixedArity(n int) Arity { return Arity{Policy: Fixed, Min: n, Max: n} }

// RangeArity returns the arity of a function taking lo..hi arguments.
func RangeArity(lo, hi int) Arity { return Arity{Policy: Range, Min: lo, Max: hi} }

// VariableArity returns the arity of a variadic function.
func VariableArity() Arity { return Arity{Policy: Variable, Max: -1} }

// Check validates an argument count against the policy. Empty and
// Variable functions are unconstrained here.
func (a Arity) Check(n int) error {
	switch a.Policy {
	case Fixed:
		if n != a.Min {
			return fmt.Errorf("expected %d arguments, got %d", a.Min, n)
		}
	case Range:
		if n < a.Min || n > a.Max {
			return fmt.Errorf("expected %d to %d arguments, got %d", a.Min, a.Max, n)
		}
	}
	return nil
}

// String returns a compact description such as "fixed(2)".
func (a Arity) String() string {
	switch a.Policy {
	case Fixed:
		return fmt.Sprintf("fixed(%d)", a.Min)
	case Range:
		return fmt.Sprintf("range(%d..%d)", a.Min, a.Max)
	default:
		return a.Policy.String()
	}
}

// Env is the execution environment handed to function handlers.
type Env struct {
	Stdout io.Writer
}

// Handler implements a function at run time. Variable-arity handlers
// receive a single array argument holding the boxed arguments.
type Handler func(env *Env, args []types.Value) (types.Value, error)

// Function describes an invocable built-in. It is immutable once
// registered.
type Function struct {
	Name    string
	Arity   Arity
	Result  types.Kind // Static result kind reported to the backend
	Handler Handler
}

// RequiresArgs reports whether a call to the function needs an
// argument scope (every policy except Empty).
func (f *Function) RequiresArgs() bool {
	return f.Arity.Policy != Empty
}

// IsVariadic reports whether the function boxes its arguments.
func (f *Function) IsVariadic() bool {
	return f.Arity.Policy == Variable
}

func (f *Function) String() string {
	return f.Name + "/" + f.Arity.String()
}

// Symbol returns the name the function is persisted and rebound under.
func (f *Function) Symbol() string {
	return f.Name
}

// ResultKind returns the static kind of the function's result.
func (f *Function) ResultKind() types.Kind {
	return f.Result
}

// Call invokes the function's handler.
func (f *Function) Call(env *Env, args []types.Value) (types.Value, error) {
	if f.Handler == nil {
		return types.Nil(), fmt.Errorf("function %q has no handler", f.Name)
	}
	return f.Handler(env, args)
}

// Registry holds the functions visible to a compilation.
type Registry struct {
	funcs map[string]*Function
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]*Function)}
}

// Register adds f to the registry. Registering a name twice is an error.
func (r *Registry) Register(f *Function) error {
	if f.Name == "" {
		return fmt.Errorf("function name must not be empty")
	}
	if _, exists := r.funcs[f.Name]; exists {
		return fmt.Errorf("function %q already registered", f.Name)
	}
	if f.Arity.Policy == Range && f.Arity.Min > f.Arity.Max {
		return fmt.Errorf("function %q: invalid range %d..%d", f.Name, f.Arity.Min, f.Arity.Max)
	}
	r.funcs[f.Name] = f
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(f *Function) {
	if err := r.Register(f); err != nil {
		panic(err)
	}
}

// Lookup returns the function registered under name.
func (r *Registry) Lookup(name string) (*Function, bool) {
	f, ok := r.funcs[name]
	return f, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered functions.
func (r *Registry) Len() int {
	return len(r.funcs)
}
