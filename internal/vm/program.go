package vm

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kolkov/narlie/internal/backend"
	"github.com/kolkov/narlie/internal/types"
)

// Program is a finalized type: bytecode for each of its methods plus the
// constant pool and function table they share.
type Program struct {
	ID      uuid.UUID
	Type    string
	Entry   string // Name of the entry method, empty if none
	Consts  []types.Value
	Funcs   []backend.Callable
	Methods []*Code
}

var _ backend.Compiled = (*Program)(nil)

// Code is the bytecode of one method.
type Code struct {
	Name      string
	Static    bool
	NumLocals int
	Code      []Opcode
}

// TypeName returns the name of the compiled type.
func (p *Program) TypeName() string { return p.Type }

// Method returns the method named name.
func (p *Program) Method(name string) (*Code, bool) {
	for _, m := range p.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// EntryMethod returns the entry method.
func (p *Program) EntryMethod() (*Code, error) {
	if p.Entry == "" {
		return nil, fmt.Errorf("type %s has no entry point", p.Type)
	}
	m, ok := p.Method(p.Entry)
	if !ok {
		return nil, fmt.Errorf("type %s: entry method %q not found", p.Type, p.Entry)
	}
	return m, nil
}

// Disassemble returns a human-readable disassembly of the program.
func (p *Program) Disassemble() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "=== Type %s (%s) ===\n", p.Type, p.ID)
	if p.Entry != "" {
		fmt.Fprintf(&sb, "  entry: %s\n", p.Entry)
	}
	sb.WriteString("\n")

	if len(p.Consts) > 0 {
		sb.WriteString("=== Constants ===\n")
		for i, c := range p.Consts {
			fmt.Fprintf(&sb, "  [%d] %s\n", i, c)
		}
		sb.WriteString("\n")
	}

	if len(p.Funcs) > 0 {
		sb.WriteString("=== Functions ===\n")
		for i, fn := range p.Funcs {
			fmt.Fprintf(&sb, "  [%d] %s -> %s\n", i, fn.Symbol(), fn.ResultKind())
		}
		sb.WriteString("\n")
	}

	for _, m := range p.Methods {
		static := ""
		if m.Static {
			static = "static "
		}
		fmt.Fprintf(&sb, "=== Method %s%s (locals: %d) ===\n", static, m.Name, m.NumLocals)
		p.disassembleCode(&sb, m.Code, "  ")
		sb.WriteString("\n")
	}

	return sb.String()
}

func (p *Program) disassembleCode(sb *strings.Builder, code []Opcode, indent string) {
	for i := 0; i < len(code); i++ {
		op := code[i]
		fmt.Fprintf(sb, "%s%04d %s", indent, i, op)

		switch op {
		case Const:
			if i+1 < len(code) {
				i++
				idx := int(code[i])
				if idx < len(p.Consts) {
					fmt.Fprintf(sb, " [%d] = %s", idx, p.Consts[idx])
				} else {
					fmt.Fprintf(sb, " [%d]", idx)
				}
			}
		case LoadLocal, StoreLocal:
			if i+1 < len(code) {
				i++
				fmt.Fprintf(sb, " [%d]", code[i])
			}
		case NewArray:
			if i+2 < len(code) {
				fmt.Fprintf(sb, " [%d] size %d", code[i+1], code[i+2])
				i += 2
			}
		case StoreElem:
			if i+2 < len(code) {
				fmt.Fprintf(sb, " [%d][%d]", code[i+1], code[i+2])
				i += 2
			}
		case Call:
			if i+2 < len(code) {
				idx, argc := int(code[i+1]), int(code[i+2])
				if idx < len(p.Funcs) {
					fmt.Fprintf(sb, " %s argc %d", p.Funcs[idx].Symbol(), argc)
				} else {
					fmt.Fprintf(sb, " [%d] argc %d", idx, argc)
				}
				i += 2
			}
		case Jump, JumpFalse:
			if i+1 < len(code) {
				i++
				offset := int(code[i])
				fmt.Fprintf(sb, " %d (-> %04d)", offset, i+1+offset)
			}
		}
		sb.WriteString("\n")
	}
}

// verify checks that every operand of every method refers to a valid
// constant, function, local or jump target.
func (p *Program) verify() error {
	for _, m := range p.Methods {
		code := m.Code
		for i := 0; i < len(code); i++ {
			op := code[i]
			if op < Nop || op > JumpFalse {
				return fmt.Errorf("method %s: invalid opcode %d at %d", m.Name, int32(op), i)
			}
			n := op.operands()
			if n == 0 {
				continue
			}
			if i+n >= len(code) {
				return fmt.Errorf("method %s: truncated %s at %d", m.Name, op, i)
			}
			a := int(code[i+1])
			switch op {
			case Const:
				if a < 0 || a >= len(p.Consts) {
					return fmt.Errorf("method %s: constant %d out of range", m.Name, a)
				}
			case LoadLocal, StoreLocal, NewArray, StoreElem:
				if a < 0 || a >= m.NumLocals {
					return fmt.Errorf("method %s: local %d out of range", m.Name, a)
				}
			case Call:
				if a < 0 || a >= len(p.Funcs) {
					return fmt.Errorf("method %s: function %d out of range", m.Name, a)
				}
			case Jump, JumpFalse:
				if t := i + 2 + a; t < 0 || t > len(code) {
					return fmt.Errorf("method %s: jump target %d out of range", m.Name, t)
				}
			}
			i += n
		}
	}
	return nil
}
