package narlie

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kolkov/narlie/internal/ast"
	"github.com/kolkov/narlie/internal/builtins"
	"github.com/kolkov/narlie/internal/codegen"
	"github.com/kolkov/narlie/internal/host"
	"github.com/kolkov/narlie/internal/observability"
	"github.com/kolkov/narlie/internal/parser"
	"github.com/kolkov/narlie/internal/store"
	"github.com/kolkov/narlie/internal/vm"
)

// Version is the narlie version string.
const Version = "0.1.0"

// Run compiles and executes a Narlie program.
// This is a convenience function for one-off execution.
// For repeated execution of the same program, use Compile followed by
// Program.Run.
//
// Returns the program output as a string, or an error if lexing,
// parsing, code generation or execution fails. If config.Stdout is set,
// output is written there and the returned string is empty.
//
// Example:
//
//	output, err := narlie.Run(`(print (+ 1 2))`, nil)
//	// output: "3"
func Run(program string, config *Config) (string, error) {
	prog, err := Compile(program, config)
	if err != nil {
		return "", err
	}
	return prog.Run(context.Background(), config)
}

// Compile lexes, parses and lowers a Narlie program into an executable
// Program. The returned Program can be executed multiple times.
//
// Example:
//
//	prog, err := narlie.Compile(`(let x 2) (* x 21)`, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	value, _ := prog.Eval(ctx, os.Stdout)
//	// value: "42"
func Compile(program string, config *Config) (*Program, error) {
	return CompileContext(context.Background(), program, config)
}

// CompileContext is like Compile with a context carrying the parent
// trace span.
func CompileContext(ctx context.Context, program string, config *Config) (prog *Program, err error) {
	cfg := resolveConfig(config)
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	ctx, span := observability.Tracer.Start(ctx, "narlie.Compile")
	defer func() {
		observability.CompilesTotal.WithLabelValues(observability.Result(err)).Inc()
		observability.Fail(span, err)
		span.End()
	}()

	hosts, err := newHosts(cfg)
	if err != nil {
		return nil, err
	}

	var tree *ast.Tree
	err = phase(ctx, observability.PhaseParse, func() error {
		var perr error
		tree, perr = parser.Parse(program, parser.Options{
			Host:       hosts,
			Namespaces: cfg.Namespaces,
			Filename:   cfg.Filename,
		})
		return perr
	})
	if err != nil {
		return nil, compileError(err)
	}
	cfg.Logger.Debug("parsed", "file", cfg.Filename, "nodes", ast.Count(tree.Root), "scopes", tree.Scopes.Len())

	var cache *store.Store
	var key string
	if cfg.Cache != "" {
		if cache, err = store.Open(cfg.Cache); err != nil {
			return nil, fmt.Errorf("opening cache: %w", err)
		}
		defer cache.Close()
		key = cacheKey(program, cfg)
		if compiled, ok := fromCache(cache, key, hosts, cfg); ok {
			span.SetAttributes(attribute.Bool("narlie.cache_hit", true))
			if cfg.Output != "" {
				if err := compiled.Save(cfg.Output); err != nil {
					return nil, fmt.Errorf("persisting %s: %w", cfg.Output, err)
				}
			}
			return &Program{compiled: compiled, source: program, tree: tree}, nil
		}
	}

	var compiled *vm.Program
	err = phase(ctx, observability.PhaseCodegen, func() error {
		b := vm.NewBuilder()
		b.SetOptimize(cfg.Optimize)
		gen := codegen.NewAssemblyGenerator(b, codegen.Options{
			TypeName:   cfg.TypeName,
			MethodName: cfg.MethodName,
			Output:     cfg.Output,
			Hosts:      hosts,
			Logger:     cfg.Logger,
		})
		c, gerr := gen.Generate(tree)
		if gerr != nil {
			return gerr
		}
		compiled = c.(*vm.Program)
		return nil
	})
	if err != nil {
		return nil, compileError(err)
	}
	span.SetAttributes(attribute.String("narlie.program_id", compiled.ID.String()))

	if cache != nil {
		toCache(cache, key, compiled, cfg)
	}
	return &Program{compiled: compiled, source: program, tree: tree}, nil
}

// MustCompile is like Compile but panics if the program cannot be
// compiled. It simplifies initialization of global program variables.
//
// Example:
//
//	var answer = narlie.MustCompile(`(* 6 7)`, nil)
func MustCompile(program string, config *Config) *Program {
	prog, err := Compile(program, config)
	if err != nil {
		panic(err)
	}
	return prog
}

// Load reads a program persisted with Config.Output or Program.Save.
// Function references are rebound against the built-in library and the
// host types visible under config.
func Load(path string, config *Config) (*Program, error) {
	cfg := resolveConfig(config)
	hosts, err := newHosts(cfg)
	if err != nil {
		return nil, err
	}
	compiled, err := vm.Load(path, vm.NewLinker(builtins.Default(), hosts))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	if cfg.Optimize {
		vm.Optimize(compiled)
	}
	return &Program{compiled: compiled}, nil
}

// resolveConfig returns a defaulted copy of config.
func resolveConfig(config *Config) *Config {
	cfg := &Config{}
	if config != nil {
		*cfg = *config
	}
	cfg.applyDefaults()
	return cfg
}

func newHosts(cfg *Config) (*host.Registry, error) {
	hosts := host.Default()
	if err := hosts.SetAllowPattern(cfg.AllowHost); err != nil {
		return nil, fmt.Errorf("allow_host: %w", err)
	}
	return hosts, nil
}

// phase runs fn inside a trace span and records its duration.
func phase(ctx context.Context, name string, fn func() error) error {
	_, span := observability.Tracer.Start(ctx, "narlie."+name)
	defer span.End()

	start := time.Now()
	err := fn()
	observability.PhaseDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	observability.Fail(span, err)
	return err
}

// cacheKey covers every option that changes the generated code.
func cacheKey(program string, cfg *Config) string {
	return store.Key([]byte(program),
		vm.Format,
		cfg.TypeName,
		cfg.MethodName,
		strings.Join(cfg.Namespaces, ","),
		cfg.AllowHost,
		strconv.FormatBool(cfg.Optimize),
	)
}

func fromCache(cache *store.Store, key string, hosts *host.Registry, cfg *Config) (*vm.Program, bool) {
	e, ok, err := cache.Get(key)
	if err != nil {
		cfg.Logger.Warn("cache lookup failed", "cache", cache.Path(), "error", err)
		return nil, false
	}
	if !ok {
		observability.CacheMissesTotal.Inc()
		return nil, false
	}
	compiled, err := vm.Decode(bytes.NewReader(e.Artifact), vm.NewLinker(builtins.Default(), hosts))
	if err != nil {
		cfg.Logger.Warn("discarding cached artifact", "key", key, "error", err)
		observability.CacheMissesTotal.Inc()
		return nil, false
	}
	observability.CacheHitsTotal.Inc()
	cfg.Logger.Debug("cache hit", "key", key, "program", e.ProgramID, "hits", e.Hits)
	return compiled, true
}

func toCache(cache *store.Store, key string, compiled *vm.Program, cfg *Config) {
	var buf bytes.Buffer
	if err := compiled.Encode(&buf); err != nil {
		cfg.Logger.Warn("encoding artifact for cache", "error", err)
		return
	}
	if err := cache.Put(key, compiled.ID.String(), buf.Bytes()); err != nil {
		cfg.Logger.Warn("storing artifact in cache", "cache", cache.Path(), "error", err)
	}
}
