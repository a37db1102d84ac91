package parser_test

import (
	"strings"
	"testing"

	"github.com/kolkov/narlie/internal/ast"
	"github.com/kolkov/narlie/internal/host"
	"github.com/kolkov/narlie/internal/parser"
)

// FuzzParser checks that the parser never panics and that every tree it
// accepts prints to a form it accepts again.
func FuzzParser(f *testing.F) {
	seeds := []string{
		"",
		"(+ 1 2)",
		"(+ 1 (* 2 3))",
		"(let x 5) (if (> x 0) 1 0)",
		"(let (a 1) (b 2)) (println a b)",
		"(for (let i 0) (< i 3) (set i (+ i 1)) (println i))",
		"(while #f nil)",
		"(using System) (Max Math 1 2)",
		`(println "a\\b" 1.5e3 #t)`,
		"((((",
		"))",
		"(define f 1)",
	}
	for _, s := range seeds {
		f.Add(s)
	}

	opts := parser.Options{Host: host.Default()}
	f.Fuzz(func(t *testing.T, src string) {
		tree, err := parser.Parse(src, opts)
		if err != nil {
			return
		}
		var sb strings.Builder
		if err := ast.NewPrinter(&sb).PrintTree(tree); err != nil {
			t.Fatalf("print: %v", err)
		}
		again, err := parser.Parse(sb.String(), opts)
		if err != nil {
			t.Fatalf("reparse of %q failed: %v", sb.String(), err)
		}
		if got, want := ast.String(again.Root), ast.String(tree.Root); got != want {
			t.Fatalf("round trip mismatch:\n got %s\nwant %s", got, want)
		}
	})
}
