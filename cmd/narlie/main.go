// narlie - Narlie compiler
//
// Compiles Narlie source to bytecode and runs it, persists compiled
// programs, and provides an interactive loop and a watch mode.
// Uses manual argument parsing so value flags may be attached (-oout.nrl).
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/kolkov/narlie"
	"github.com/kolkov/narlie/internal/observability"
)

// version is set at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	shortUsage = "usage: narlie [options] [-e 'prog' | progfile | -]"
	longUsage  = `Compilation:
  -e prog           compile prog instead of reading a file
  -o path           persist the compiled program to path
  -t name           name of the generated type (default "Program")
  -m name           name of the entry method (default "Main")
  -n namespace      search namespace for host types (multiple allowed)
  -O                run the peephole optimizer over the bytecode
  -allow regex      only expose host types matching regex
  -config file      load options from a TOML file
  -cache file       reuse compiled artifacts from a SQLite cache

Execution:
  -load path        run a program persisted with -o
  -watch            recompile and rerun progfile when it changes
  -repl             start an interactive session
  -metrics addr     serve Prometheus metrics on addr

Debugging arguments:
  -d                print parsed AST to stderr and exit
  -da               print bytecode assembly to stderr and exit
  -v                log compiler phases to stderr

Other:
  -h, --help        show this help message
  -version          show narlie version and exit
`
)

// options is the parsed command line.
type options struct {
	source     string
	inline     bool
	file       string
	load       string
	configFile string
	output     string
	typeName   string
	methodName string
	namespaces []string
	allow      string
	cache      string
	metrics    string
	optimize   bool
	watch      bool
	repl       bool
	debug      bool
	debugAsm   bool
	verbose    bool
	help       bool
	version    bool
}

// valueFlags take an argument, either as the next word or attached.
var valueFlags = []string{"-config", "-cache", "-metrics", "-allow", "-load", "-e", "-o", "-t", "-m", "-n"}

//nolint:gocyclo // CLI argument parsing is inherently branchy
func parseArgs(args []string) (*options, error) {
	opts := &options{}
	var i int
	for i = 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			i++
			break
		}
		if arg == "-" || !strings.HasPrefix(arg, "-") {
			break
		}

		switch arg {
		case "-O":
			opts.optimize = true
			continue
		case "-watch":
			opts.watch = true
			continue
		case "-repl":
			opts.repl = true
			continue
		case "-d":
			opts.debug = true
			continue
		case "-da":
			opts.debugAsm = true
			continue
		case "-v":
			opts.verbose = true
			continue
		case "-h", "--help":
			opts.help = true
			continue
		case "-version", "--version":
			opts.version = true
			continue
		}

		name, value, ok := "", "", false
		for _, f := range valueFlags {
			if arg == f {
				if i+1 >= len(args) {
					return nil, fmt.Errorf("flag needs an argument: %s", f)
				}
				i++
				name, value, ok = f, args[i], true
				break
			}
			// Single-letter flags accept an attached value: -oout.nrl
			if len(f) == 2 && strings.HasPrefix(arg, f) {
				name, value, ok = f, arg[2:], true
				break
			}
		}
		if !ok {
			return nil, fmt.Errorf("flag provided but not defined: %s", arg)
		}

		switch name {
		case "-config":
			opts.configFile = value
		case "-cache":
			opts.cache = value
		case "-metrics":
			opts.metrics = value
		case "-allow":
			opts.allow = value
		case "-load":
			opts.load = value
		case "-e":
			opts.source = value
			opts.inline = true
		case "-o":
			opts.output = value
		case "-t":
			opts.typeName = value
		case "-m":
			opts.methodName = value
		case "-n":
			opts.namespaces = append(opts.namespaces, value)
		}
	}

	rest := args[i:]
	switch {
	case len(rest) > 1:
		return nil, fmt.Errorf("unexpected argument: %s", rest[1])
	case len(rest) == 1 && opts.inline:
		return nil, fmt.Errorf("unexpected argument: %s", rest[0])
	case len(rest) == 1:
		opts.file = rest[0]
	}
	if opts.watch && (opts.file == "" || opts.file == "-") {
		return nil, errors.New("-watch needs a program file")
	}
	return opts, nil
}

// config merges the config file (if any) with command line overrides.
func (o *options) config(logger *slog.Logger) (*narlie.Config, error) {
	cfg := &narlie.Config{}
	if o.configFile != "" {
		loaded, err := narlie.LoadConfig(o.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if o.typeName != "" {
		cfg.TypeName = o.typeName
	}
	if o.methodName != "" {
		cfg.MethodName = o.methodName
	}
	if o.output != "" {
		cfg.Output = o.output
	}
	if len(o.namespaces) > 0 {
		cfg.Namespaces = append(cfg.Namespaces, o.namespaces...)
	}
	if o.optimize {
		cfg.Optimize = true
	}
	if o.allow != "" {
		cfg.AllowHost = o.allow
	}
	if o.cache != "" {
		cfg.Cache = o.cache
	}
	if o.metrics != "" {
		cfg.MetricsAddr = o.metrics
	}
	if o.file != "" && o.file != "-" {
		cfg.Filename = o.file
	}
	cfg.Logger = logger
	return cfg, nil
}

func main() {
	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		errorExitf("%v\n%s", err, shortUsage)
	}
	if opts.help {
		fmt.Printf("narlie %s - Narlie compiler\n\n%s\n\n%s", version, shortUsage, longUsage)
		os.Exit(0)
	}
	if opts.version {
		fmt.Printf("narlie version %s\n", version)
		fmt.Printf("  language: %s\n", narlie.Version)
		fmt.Printf("  commit:   %s\n", commit)
		fmt.Printf("  built:    %s\n", date)
		os.Exit(0)
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := opts.config(logger)
	if err != nil {
		errorExit(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cfg.MetricsAddr != "" {
		srv := observability.NewServer(cfg.MetricsAddr)
		if err := srv.Start(ctx); err != nil {
			errorExitf("metrics: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(shutdownCtx)
		}()
	}

	switch {
	case opts.repl:
		err = runREPL(ctx, cfg, os.Stdout)
	case opts.watch:
		err = watch(ctx, opts.file, cfg, os.Stdout)
	default:
		err = runOnce(ctx, opts, cfg)
	}
	if err != nil {
		stop()
		errorExit(err)
	}
}

// runOnce compiles (or loads) a single program and runs it.
func runOnce(ctx context.Context, opts *options, cfg *narlie.Config) error {
	var prog *narlie.Program
	var err error
	if opts.load != "" {
		prog, err = narlie.Load(opts.load, cfg)
	} else {
		var src string
		src, err = readSource(opts)
		if err != nil {
			return err
		}
		prog, err = narlie.CompileContext(ctx, src, cfg)
	}
	if err != nil {
		return err
	}

	if opts.debug {
		if opts.load != "" {
			fmt.Fprintln(os.Stderr, "AST is not available for loaded programs")
		} else {
			fmt.Fprint(os.Stderr, prog.AST())
		}
		return nil
	}
	if opts.debugAsm {
		fmt.Fprintln(os.Stderr, prog.Disassemble())
		return nil
	}

	stdout := bufio.NewWriter(os.Stdout)
	defer stdout.Flush()
	cfg.Stdout = stdout
	_, err = prog.Run(ctx, cfg)
	return err
}

// readSource returns the program text named on the command line.
func readSource(opts *options) (string, error) {
	if opts.inline {
		return opts.source, nil
	}
	var data []byte
	var err error
	if opts.file == "" || opts.file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(opts.file)
	}
	if err != nil {
		return "", fmt.Errorf("cannot read program: %w", err)
	}
	return string(data), nil
}

// errorExitf prints formatted error message and exits with code 1
func errorExitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "narlie: "+format+"\n", args...)
	os.Exit(1)
}

// errorExit prints error and exits with code 1
func errorExit(err error) {
	fmt.Fprintf(os.Stderr, "narlie: %v\n", err)
	os.Exit(1)
}
