package narlie

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kolkov/narlie/internal/ast"
	"github.com/kolkov/narlie/internal/builtins"
	"github.com/kolkov/narlie/internal/observability"
	"github.com/kolkov/narlie/internal/types"
	"github.com/kolkov/narlie/internal/vm"
)

// Program represents a compiled Narlie program ready for execution.
// It is safe for concurrent use; each call to Run or Eval creates an
// independent execution context.
type Program struct {
	compiled *vm.Program
	source   string    // Original source, empty for loaded programs
	tree     *ast.Tree // Parsed tree, nil for loaded programs
}

// Run executes the program and returns its output.
//
// If config is nil, default configuration is used.
// If config.Stdout is set, output is written there and the returned
// string is empty.
func (p *Program) Run(ctx context.Context, config *Config) (string, error) {
	var buf *bytes.Buffer
	var out io.Writer
	if config != nil && config.Stdout != nil {
		out = config.Stdout
	} else {
		buf = &bytes.Buffer{}
		out = buf
	}

	if _, err := p.exec(ctx, out); err != nil {
		return "", err
	}
	if buf != nil {
		return buf.String(), nil
	}
	return "", nil
}

// Eval executes the program, writing its output to out, and returns the
// printed value of the last top-level expression ("nil" if there is
// none). A nil out discards output.
func (p *Program) Eval(ctx context.Context, out io.Writer) (string, error) {
	if out == nil {
		out = io.Discard
	}
	v, err := p.exec(ctx, out)
	if err != nil {
		return "", err
	}
	return v.AsStr(), nil
}

func (p *Program) exec(ctx context.Context, out io.Writer) (v types.Value, err error) {
	ctx, span := observability.Tracer.Start(ctx, "narlie.Run")
	span.SetAttributes(attribute.String("narlie.program_id", p.compiled.ID.String()))
	start := time.Now()
	defer func() {
		observability.PhaseDuration.WithLabelValues(observability.PhaseRun).Observe(time.Since(start).Seconds())
		observability.RunsTotal.WithLabelValues(observability.Result(err)).Inc()
		observability.Fail(span, err)
		span.End()
	}()

	v, err = vm.New(p.compiled, &builtins.Env{Stdout: out}).Run(ctx)
	if err != nil {
		return types.Nil(), runtimeError(err)
	}
	return v, nil
}

// Disassemble returns a human-readable representation of the bytecode.
func (p *Program) Disassemble() string {
	return p.compiled.Disassemble()
}

// AST returns the parsed program in canonical S-expression form, one
// top-level form per line. It is empty for loaded programs.
func (p *Program) AST() string {
	if p.tree == nil {
		return ""
	}
	var sb strings.Builder
	if err := ast.NewPrinter(&sb).PrintTree(p.tree); err != nil {
		return ""
	}
	return sb.String()
}

// Source returns the original Narlie source code.
func (p *Program) Source() string {
	return p.source
}

// ID returns the unique identifier assigned when the program was built.
func (p *Program) ID() string {
	return p.compiled.ID.String()
}

// TypeName returns the name of the generated container type.
func (p *Program) TypeName() string {
	return p.compiled.Type
}

// Save persists the program to path.
func (p *Program) Save(path string) error {
	return p.compiled.Save(path)
}
