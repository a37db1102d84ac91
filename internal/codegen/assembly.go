package codegen

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/kolkov/narlie/internal/ast"
	"github.com/kolkov/narlie/internal/backend"
	"github.com/kolkov/narlie/internal/host"
)

// Default names of the generated container type and entry method.
const (
	DefaultTypeName   = "Program"
	DefaultMethodName = "Main"
)

// ErrReused is returned when an AssemblyGenerator is run a second time.
var ErrReused = errors.New("assembly generator already finalized")

// Options configures an AssemblyGenerator.
type Options struct {
	TypeName   string        // Container type name (default "Program")
	MethodName string        // Entry method name (default "Main")
	Output     string        // Persist the compiled type here when set
	Hosts      host.Resolver // Resolves host calls left unbound by the parser
	Logger     *slog.Logger  // Defaults to slog.Default()
}

func (o *Options) applyDefaults() {
	if o.TypeName == "" {
		o.TypeName = DefaultTypeName
	}
	if o.MethodName == "" {
		o.MethodName = DefaultMethodName
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// AssemblyGenerator turns one tree into one finalized container type
// with a single static entry method.
type AssemblyGenerator struct {
	be        backend.Backend
	opts      Options
	finalized bool
}

// NewAssemblyGenerator creates a generator emitting into be.
func NewAssemblyGenerator(be backend.Backend, opts Options) *AssemblyGenerator {
	opts.applyDefaults()
	return &AssemblyGenerator{be: be, opts: opts}
}

// Generate declares the container type and entry method, lowers tree
// into the method and finalizes the type. When an output path is
// configured the entry point is set and the compiled type persisted.
func (a *AssemblyGenerator) Generate(tree *ast.Tree) (backend.Compiled, error) {
	if a.finalized {
		return nil, ErrReused
	}
	log := a.opts.Logger.With("type", a.opts.TypeName)

	t, err := a.be.DeclareType(a.opts.TypeName)
	if err != nil {
		return nil, fmt.Errorf("declaring type: %w", err)
	}
	m, err := a.be.DeclareMethod(t, a.opts.MethodName, true, true)
	if err != nil {
		return nil, fmt.Errorf("declaring method: %w", err)
	}

	if err := NewGenerator(a.be, a.opts.Hosts).Generate(tree, m); err != nil {
		return nil, err
	}

	a.finalized = true
	compiled, err := a.be.FinalizeType(t)
	if err != nil {
		return nil, fmt.Errorf("finalizing type: %w", err)
	}
	log.Debug("type finalized", "method", a.opts.MethodName)

	if a.opts.Output == "" {
		return compiled, nil
	}
	if err := a.be.SetEntryPoint(m); err != nil {
		return nil, fmt.Errorf("setting entry point: %w", err)
	}
	if err := a.be.Persist(compiled, a.opts.Output); err != nil {
		return nil, fmt.Errorf("persisting %s: %w", a.opts.Output, err)
	}
	log.Debug("type persisted", "output", a.opts.Output)
	return compiled, nil
}
