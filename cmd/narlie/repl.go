package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/kolkov/narlie"
)

const (
	promptMain  = "narlie> "
	promptCont  = "   ...> "
	historyFile = ".narlie_history"
	replHelp    = `Commands:
  :help     show this message
  :ast      print the AST of the last program
  :asm      print the bytecode of the last program
  :quit     leave the session
`
)

// runREPL reads programs line by line, compiling and evaluating each one
// as it becomes complete. Program output and the value of the last
// top-level expression are written to out.
func runREPL(ctx context.Context, cfg *narlie.Config, out io.Writer) error {
	fmt.Fprintf(out, "narlie %s (:help for commands)\n", narlie.Version)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	// Entry point persistence makes no sense per line.
	session := *cfg
	session.Output = ""
	session.Stdout = nil

	var last *narlie.Program
	for ctx.Err() == nil {
		src, ok := readComplete(ln)
		if !ok {
			fmt.Fprintln(out)
			break
		}
		trimmed := strings.TrimSpace(src)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))

		if strings.HasPrefix(trimmed, ":") {
			if quit := replCommand(trimmed, last, out); quit {
				break
			}
			continue
		}

		prog, err := narlie.CompileContext(ctx, src, &session)
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		last = prog
		value, err := prog.Eval(ctx, out)
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		fmt.Fprintf(out, "=> %s\n", value)
	}

	if f, err := os.Create(histPath); err == nil {
		_, _ = ln.WriteHistory(f)
		_ = f.Close()
	}
	return nil
}

// replCommand handles a ':' command and reports whether to quit.
func replCommand(cmd string, last *narlie.Program, out io.Writer) bool {
	switch strings.Fields(cmd)[0] {
	case ":quit", ":q":
		return true
	case ":help":
		fmt.Fprint(out, replHelp)
	case ":ast", ":asm":
		if last == nil {
			fmt.Fprintln(out, "no program yet")
			return false
		}
		if cmd == ":ast" {
			fmt.Fprint(out, last.AST())
		} else {
			fmt.Fprintln(out, last.Disassemble())
		}
	default:
		fmt.Fprintf(out, "unknown command %s\n", cmd)
	}
	return false
}

// readComplete prompts until the accumulated input closes every open
// list. It returns false on end of input.
func readComplete(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			// Ctrl+C drops the pending input.
			return "", true
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if depth(b.String()) <= 0 {
			return b.String(), true
		}
	}
}

// depth returns the number of lists left open at the end of src,
// ignoring parentheses inside strings and comments. A negative result
// means src closes more lists than it opens.
func depth(src string) int {
	n := 0
	inString, escaped, inComment := false, false, false
	for _, r := range src {
		switch {
		case inComment:
			if r == '\n' {
				inComment = false
			}
		case inString:
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
		case r == '"':
			inString = true
		case r == ';':
			inComment = true
		case r == '(':
			n++
		case r == ')':
			n--
		}
	}
	if inString {
		// An unterminated string is still being typed.
		return n + 1
	}
	return n
}
