// Package backend defines the boundary between the code generator and a
// code-emission backend. Handles are opaque to the code generator; each
// backend supplies its own implementations.
package backend

import (
	"github.com/kolkov/narlie/internal/builtins"
	"github.com/kolkov/narlie/internal/types"
)

// Type is a container type under construction.
type Type interface {
	TypeName() string
}

// Method is a method under construction.
type Method interface {
	MethodName() string
}

// Expr is a built expression.
type Expr interface {
	// Kind returns the static result kind of the expression.
	Kind() types.Kind
}

// Local is a method-scoped variable.
type Local interface {
	LocalKind() types.Kind
}

// Compiled is a finalized type.
type Compiled interface {
	TypeName() string
}

// Callable is a function the backend can call: a *builtins.Function or
// a *host.Method.
type Callable interface {
	// Symbol returns the name the callable is persisted and rebound under.
	Symbol() string

	// ResultKind returns the static kind of the result.
	ResultKind() types.Kind

	// Call invokes the callable.
	Call(env *builtins.Env, args []types.Value) (types.Value, error)
}

// Backend is the capability set the code generator lowers into.
//
// Statements and locals are appended to the innermost open control
// construct of a method, or to the method body when none is open.
type Backend interface {
	DeclareType(name string) (Type, error)
	DeclareMethod(t Type, name string, isStatic, isEntry bool) (Method, error)

	BuildLiteral(v types.Value) Expr
	BuildLocalRef(l Local) Expr
	DeclareLocal(m Method, kind types.Kind, init Expr) (Local, error)
	AssignLocal(l Local, value Expr) Expr
	BuildCall(fn Callable, args []Expr) (Expr, error)

	// BuildArray creates an array local of size elements. It is
	// allocated when a block expression listing it is evaluated.
	BuildArray(elem types.Kind, size int) Local
	StoreArrayElement(l Local, index int, value Expr) Expr

	// BuildBlock allocates locals, evaluates exprs in order and yields
	// the value of the last one.
	BuildBlock(locals []Local, exprs []Expr) Expr

	OpenIf(m Method, cond Expr) error
	Else(m Method) error
	EndIf(m Method) error
	OpenFor(m Method, pre []Expr, cond Expr, post []Expr) error
	EndFor(m Method) error
	OpenWhile(m Method, cond Expr) error
	EndWhile(m Method) error

	AppendStatement(m Method, e Expr) error
	SetEntryPoint(m Method) error
	FinalizeType(t Type) (Compiled, error)
	Persist(c Compiled, path string) error
}
