package vm

import (
	"fmt"

	"github.com/kolkov/narlie/internal/types"
)

// emitter compiles method IR into bytecode, sharing the constant pool
// and function table of one Program.
type emitter struct {
	prog   *Program
	consts map[constKey]int
	funcs  map[string]int

	// Per-method state
	code  []Opcode
	slots map[*Local]int
	err   error
}

type constKey struct {
	kind types.Kind
	repr string
}

func newEmitter(prog *Program) *emitter {
	return &emitter{
		prog:   prog,
		consts: make(map[constKey]int),
		funcs:  make(map[string]int),
	}
}

func (e *emitter) method(m *MethodBuilder) (*Code, error) {
	e.code = nil
	e.slots = make(map[*Local]int)
	e.err = nil

	for _, s := range m.body {
		if es, ok := s.(*ExprStmt); ok {
			// Top-level expression values become the run result.
			es.X.emit(e)
			e.op(Result)
			continue
		}
		s.emit(e)
	}
	if e.err != nil {
		return nil, e.err
	}
	return &Code{
		Name:      m.name,
		Static:    m.static,
		NumLocals: len(e.slots),
		Code:      e.code,
	}, nil
}

func (e *emitter) op(ops ...Opcode) {
	e.code = append(e.code, ops...)
}

func (e *emitter) fail(format string, args ...any) {
	if e.err == nil {
		e.err = fmt.Errorf(format, args...)
	}
}

func (e *emitter) slot(l *Local) Opcode {
	s, ok := e.slots[l]
	if !ok {
		s = len(e.slots)
		e.slots[l] = s
	}
	return Opcode(s)
}

func (e *emitter) constant(v types.Value) Opcode {
	key := constKey{kind: v.Kind(), repr: v.String()}
	idx, ok := e.consts[key]
	if !ok {
		idx = len(e.prog.Consts)
		e.prog.Consts = append(e.prog.Consts, v)
		e.consts[key] = idx
	}
	return Opcode(idx)
}

func (e *emitter) function(x *CallExpr) Opcode {
	sym := x.Fn.Symbol()
	idx, ok := e.funcs[sym]
	if !ok {
		idx = len(e.prog.Funcs)
		e.prog.Funcs = append(e.prog.Funcs, x.Fn)
		e.funcs[sym] = idx
	}
	return Opcode(idx)
}

// jump emits op with a placeholder offset and returns the offset's index.
func (e *emitter) jump(op Opcode) int {
	e.op(op, 0)
	return len(e.code) - 1
}

// patch points the jump operand at index at to the current position.
func (e *emitter) patch(at int) {
	e.code[at] = Opcode(len(e.code) - (at + 1))
}

// jumpBack emits op jumping to target.
func (e *emitter) jumpBack(op Opcode, target int) {
	e.op(op, 0)
	e.code[len(e.code)-1] = Opcode(target - len(e.code))
}

func (e *emitter) stmts(list []Stmt) {
	for _, s := range list {
		s.emit(e)
	}
}

// -----------------------------------------------------------------------------
// Statements
// -----------------------------------------------------------------------------

func (s *ExprStmt) emit(e *emitter) {
	s.X.emit(e)
	e.op(Drop)
}

func (s *DeclStmt) emit(e *emitter) {
	s.Init.emit(e)
	e.op(StoreLocal, e.slot(s.Local))
}

func (s *IfStmt) emit(e *emitter) {
	s.Cond.emit(e)
	toElse := e.jump(JumpFalse)
	e.stmts(s.Then)
	if !s.HasElse {
		e.patch(toElse)
		return
	}
	toEnd := e.jump(Jump)
	e.patch(toElse)
	e.stmts(s.Else)
	e.patch(toEnd)
}

func (s *ForStmt) emit(e *emitter) {
	for _, x := range s.Pre {
		x.emit(e)
		e.op(Drop)
	}
	start := len(e.code)
	s.Cond.emit(e)
	exit := e.jump(JumpFalse)
	e.stmts(s.Body)
	for _, x := range s.Post {
		x.emit(e)
		e.op(Drop)
	}
	e.jumpBack(Jump, start)
	e.patch(exit)
}

func (s *WhileStmt) emit(e *emitter) {
	start := len(e.code)
	s.Cond.emit(e)
	exit := e.jump(JumpFalse)
	e.stmts(s.Body)
	e.jumpBack(Jump, start)
	e.patch(exit)
}

// -----------------------------------------------------------------------------
// Expressions
// -----------------------------------------------------------------------------

func (x *Literal) emit(e *emitter) {
	if x.Value.IsNil() {
		e.op(Nil)
		return
	}
	e.op(Const, e.constant(x.Value))
}

func (x *LocalRef) emit(e *emitter) {
	e.op(LoadLocal, e.slot(x.Local))
}

func (x *Assign) emit(e *emitter) {
	x.Value.emit(e)
	e.op(Dupe, StoreLocal, e.slot(x.Local))
}

func (x *CallExpr) emit(e *emitter) {
	for _, a := range x.Args {
		a.emit(e)
	}
	e.op(Call, e.function(x), Opcode(len(x.Args)))
}

func (x *StoreElemExpr) emit(e *emitter) {
	x.Value.emit(e)
	e.op(Dupe, StoreElem, e.slot(x.Array), Opcode(x.Index))
}

func (x *Block) emit(e *emitter) {
	for _, l := range x.Locals {
		if l.array {
			e.op(NewArray, e.slot(l), Opcode(l.size))
		} else {
			e.op(Nil, StoreLocal, e.slot(l))
		}
	}
	if len(x.Exprs) == 0 {
		e.op(Nil)
		return
	}
	for i, sub := range x.Exprs {
		sub.emit(e)
		if i < len(x.Exprs)-1 {
			e.op(Drop)
		}
	}
}

func (x *invalid) emit(e *emitter) {
	e.fail("invalid expression: %s", x.reason)
	e.op(Nil)
}
