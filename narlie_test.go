package narlie_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/narlie"
)

func TestRun(t *testing.T) {
	tests := []struct {
		name    string
		program string
		config  *narlie.Config
		want    string
	}{
		{
			name:    "print",
			program: `(println "hello" (+ 1 2))`,
			want:    "hello 3\n",
		},
		{
			name:    "nested arithmetic",
			program: `(print (+ 1 (* 2 3)))`,
			want:    "7",
		},
		{
			name:    "if else",
			program: `(let x 3) (if (> x 0) (print "pos") (print "neg"))`,
			want:    "pos",
		},
		{
			name:    "for loop",
			program: `(for (let i 0) (< i 3) (set i (+ i 1)) (print i))`,
			want:    "012",
		},
		{
			name:    "while loop",
			program: `(let n 3) (while (> n 0) ((print n) (set n (- n 1))))`,
			want:    "321",
		},
		{
			name:    "comments and reals",
			program: "; sum\n(print (+ 1.5 2.5e1))",
			want:    "26.5",
		},
		{
			name:    "host call",
			program: `(using System) (WriteLine Console (Max Math 3 4))`,
			want:    "4\n",
		},
		{
			name:    "configured namespace",
			program: `(WriteLine Console "hi")`,
			config:  &narlie.Config{Namespaces: []string{"System"}},
			want:    "hi\n",
		},
		{
			name:    "regex",
			program: `(print (re-replace "[0-9]+" "a1b22" "#"))`,
			want:    "a#b#",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := narlie.Run(tt.program, tt.config)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEval(t *testing.T) {
	prog, err := narlie.Compile(`
		(let total 0)
		(for (let i 1) (<= i 10) (set i (+ i 1))
			(set total (+ total i)))
		total`, nil)
	require.NoError(t, err)

	v, err := prog.Eval(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "55", v)

	v, err = narlie.MustCompile(`(print "x")`, nil).Eval(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "nil", v)
}

func TestRunWithStdout(t *testing.T) {
	var buf bytes.Buffer
	got, err := narlie.Run(`(print "out")`, &narlie.Config{Stdout: &buf})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, "out", buf.String())
}

func TestErrors(t *testing.T) {
	t.Run("lex", func(t *testing.T) {
		_, err := narlie.Compile(`(print "a\q")`, nil)
		var le *narlie.LexError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, 1, le.Line)
		assert.Contains(t, le.Error(), "lex error at 1:")
	})

	t.Run("parse", func(t *testing.T) {
		_, err := narlie.Compile("(print 1", nil)
		var pe *narlie.ParseError
		require.ErrorAs(t, err, &pe)
		assert.Contains(t, pe.Message, "scope does not pop back to zero")
	})

	t.Run("first child", func(t *testing.T) {
		_, err := narlie.Compile("(1 print 2)", nil)
		var pe *narlie.ParseError
		require.ErrorAs(t, err, &pe)
		assert.Contains(t, pe.Message, "must be the first child in a scope")
	})

	t.Run("codegen", func(t *testing.T) {
		_, err := narlie.Compile("(print y)", nil)
		var ce *narlie.CodeGenError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, 1, ce.Line)
		assert.Equal(t, 8, ce.Column)
		assert.Contains(t, ce.Message, "cannot find codegen reference")
	})

	t.Run("runtime", func(t *testing.T) {
		_, err := narlie.Run("(/ 1 0)", nil)
		var re *narlie.RuntimeError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, "Main", re.Method)
		assert.Contains(t, re.Message, "division by zero")
	})

	t.Run("cancelled", func(t *testing.T) {
		prog := narlie.MustCompile("(while #t 1)", nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := prog.Run(ctx, nil)
		assert.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("bad allow pattern", func(t *testing.T) {
		_, err := narlie.Compile("1", &narlie.Config{AllowHost: "("})
		assert.Error(t, err)
	})
}

func TestMustCompilePanics(t *testing.T) {
	assert.Panics(t, func() { narlie.MustCompile("(", nil) })
}

func TestAllowHost(t *testing.T) {
	cfg := &narlie.Config{AllowHost: `^System\.Math$`}
	got, err := narlie.Run(`(using System) (print (Abs Math (- 0 3)))`, cfg)
	require.NoError(t, err)
	assert.Equal(t, "3", got)

	// Console is hidden: WriteLine is not a host call and not a function.
	_, err = narlie.Run(`(using System) (WriteLine Console 1)`, cfg)
	require.Error(t, err)
}

func TestProgramAccessors(t *testing.T) {
	prog, err := narlie.Compile(`(let x 1) (for nil (< x 3) (set x (+ x 1)) (print x))`, &narlie.Config{TypeName: "Loop", MethodName: "Go"})
	require.NoError(t, err)
	assert.Equal(t, "Loop", prog.TypeName())
	assert.Len(t, prog.ID(), 36)
	assert.Equal(t, "(let x 1)\n(for nil (< x 3) (set x (+ x 1)) (print x))\n", prog.AST())
	assert.Contains(t, prog.Disassemble(), "=== Method static Go")
	assert.Contains(t, prog.Source(), "(let x 1)")
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "prog.nbc")
	prog, err := narlie.Compile(`(using System) (WriteLine Console (Pow Math 2.0 5.0))`, &narlie.Config{Output: out})
	require.NoError(t, err)
	_, err = os.Stat(out)
	require.NoError(t, err)

	loaded, err := narlie.Load(out, nil)
	require.NoError(t, err)
	assert.Equal(t, prog.ID(), loaded.ID())
	assert.Empty(t, loaded.AST())

	got, err := loaded.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "32\n", got)

	// A loaded program cannot bind host types hidden by the allow pattern.
	_, err = narlie.Load(out, &narlie.Config{AllowHost: `^System\.Console$`})
	require.Error(t, err)

	again := filepath.Join(dir, "again.nbc")
	require.NoError(t, loaded.Save(again))
	_, err = narlie.Load(again, nil)
	require.NoError(t, err)
}

func TestCache(t *testing.T) {
	cfg := &narlie.Config{Cache: filepath.Join(t.TempDir(), "cache.db")}
	src := `(print (* 6 7))`

	first, err := narlie.Compile(src, cfg)
	require.NoError(t, err)
	second, err := narlie.Compile(src, cfg)
	require.NoError(t, err)
	assert.Equal(t, first.ID(), second.ID(), "served from cache")

	got, err := second.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "42", got)

	other, err := narlie.Compile(src, &narlie.Config{Cache: cfg.Cache, TypeName: "Other"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), other.ID(), "options are part of the key")

	// Parsing precedes the cache lookup.
	_, err = narlie.Compile(src+"(", cfg)
	assert.Error(t, err)
}

func TestConcurrentRuns(t *testing.T) {
	prog := narlie.MustCompile(`(let i 0) (while (< i 100) (set i (+ i 1))) (print i)`, nil)
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := prog.Run(context.Background(), nil)
			if err == nil && got != "100" {
				err = errors.New("unexpected output " + got)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "narlie.toml")
	content := strings.Join([]string{
		`type_name = "Hello"`,
		`namespaces = ["System"]`,
		`allow_host = "^System\\.(Math|Console)$"`,
		`cache = "cache.db"`,
		`metrics_addr = ":9090"`,
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := narlie.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "Hello", cfg.TypeName)
	assert.Equal(t, "Main", cfg.MethodName, "default applied")
	assert.Equal(t, []string{"System"}, cfg.Namespaces)
	assert.Equal(t, `^System\.(Math|Console)$`, cfg.AllowHost)
	assert.Equal(t, "cache.db", cfg.Cache)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.NotNil(t, cfg.Logger)

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte(`allow_host = "("`), 0o644))
	_, err = narlie.LoadConfig(bad)
	assert.Error(t, err)

	_, err = narlie.LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
