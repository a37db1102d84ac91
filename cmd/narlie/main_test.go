package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want options
	}{
		{"file", []string{"prog.nrl"}, options{file: "prog.nrl"}},
		{"stdin", []string{"-"}, options{file: "-"}},
		{"inline", []string{"-e", "(print 1)"}, options{source: "(print 1)", inline: true}},
		{"attached", []string{"-oout.json", "-tHello", "p.nrl"}, options{output: "out.json", typeName: "Hello", file: "p.nrl"}},
		{"namespaces", []string{"-n", "System", "-nSystem.*", "p.nrl"}, options{namespaces: []string{"System", "System.*"}, file: "p.nrl"}},
		{"long flags", []string{"-metrics", ":9090", "-cache", "c.db", "-allow", "^System", "-repl"}, options{metrics: ":9090", cache: "c.db", allow: "^System", repl: true}},
		{"debug", []string{"-d", "-da", "-v", "p.nrl"}, options{debug: true, debugAsm: true, verbose: true, file: "p.nrl"}},
		{"end of flags", []string{"--", "-odd.nrl"}, options{file: "-odd.nrl"}},
		{"load", []string{"-load", "out.json"}, options{load: "out.json"}},
		{"optimize", []string{"-O", "-e", "1"}, options{optimize: true, source: "1", inline: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArgs(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseArgsErrors(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"-x"}, "flag provided but not defined: -x"},
		{[]string{"-o"}, "flag needs an argument: -o"},
		{[]string{"a.nrl", "b.nrl"}, "unexpected argument: b.nrl"},
		{[]string{"-e", "1", "a.nrl"}, "unexpected argument: a.nrl"},
		{[]string{"-watch"}, "-watch needs a program file"},
	}
	for _, tt := range tests {
		_, err := parseArgs(tt.args)
		require.Error(t, err, "%v", tt.args)
		assert.EqualError(t, err, tt.want)
	}
}

func TestOptionsConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "narlie.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
type_name = "FromFile"
namespaces = ["System"]
cache = "file.db"
`), 0o600))

	opts, err := parseArgs([]string{"-config", path, "-m", "Run", "-n", "System.Math", "-cache", "flag.db", "p.nrl"})
	require.NoError(t, err)
	cfg, err := opts.config(slog.Default())
	require.NoError(t, err)

	assert.Equal(t, "FromFile", cfg.TypeName)
	assert.Equal(t, "Run", cfg.MethodName)
	assert.Equal(t, []string{"System", "System.Math"}, cfg.Namespaces)
	assert.Equal(t, "flag.db", cfg.Cache)
	assert.Equal(t, "p.nrl", cfg.Filename)

	_, err = (&options{configFile: filepath.Join(dir, "missing.toml")}).config(slog.Default())
	assert.Error(t, err)
}

func TestDepth(t *testing.T) {
	tests := []struct {
		src  string
		want int
	}{
		{"", 0},
		{"(print 1)", 0},
		{"(print (+ 1", 2},
		{"(print \")\"", 1},
		{"(print \"a\\\"(\")", 0},
		{"(print \"open", 2},
		{"(let x 1) ; (", 0},
		{"1)", -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, depth(tt.src), tt.src)
	}
}

func TestReplCommand(t *testing.T) {
	var out bytes.Buffer
	assert.True(t, replCommand(":quit", nil, &out))
	assert.False(t, replCommand(":asm", nil, &out))
	assert.Contains(t, out.String(), "no program yet")

	out.Reset()
	assert.False(t, replCommand(":help", nil, &out))
	assert.Contains(t, out.String(), ":asm")

	out.Reset()
	assert.False(t, replCommand(":bogus", nil, &out))
	assert.Equal(t, "unknown command :bogus\n", out.String())
}

func TestRebuild(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p.nrl")
	opts := &options{file: path}
	cfg, err := opts.config(slog.Default())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`(print (+ 1 2))`), 0o600))
	var out bytes.Buffer
	rebuild(context.Background(), path, cfg, &out)
	assert.Equal(t, "3", out.String())

	require.NoError(t, os.WriteFile(path, []byte(`(print`), 0o600))
	out.Reset()
	rebuild(context.Background(), path, cfg, &out)
	assert.Contains(t, out.String(), "narlie: ")
}
