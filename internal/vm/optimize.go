package vm

// Peephole optimization: a post-emission pass that removes values which
// are pushed only to be dropped, the common shape of assignments and
// literals in statement position.
//
//	Dupe StoreLocal s Drop     ->  StoreLocal s
//	Dupe StoreElem s i Drop    ->  StoreElem s i
//	Const k Drop               ->  (nothing)
//	Nil Drop                   ->  (nothing)
//	LoadLocal s Drop           ->  (nothing)
//	Nop                        ->  (nothing)
//
// Jump offsets are rewritten through a map from old to new positions.
// A sequence is left alone when a jump lands inside it.

// Optimize rewrites every method of p in place.
func Optimize(p *Program) {
	for _, m := range p.Methods {
		m.Code = optimizeCode(m.Code)
	}
}

func optimizeCode(code []Opcode) []Opcode {
	targets := jumpTargets(code)

	result := make([]Opcode, 0, len(code))
	posMap := make(map[int]int, len(code)+1) // old position -> new position
	type jumpFix struct{ oldOperand, newOperand int }
	var jumps []jumpFix

	for pos := 0; pos < len(code); {
		posMap[pos] = len(result)

		if consumed, repl, ok := rewrite(code, pos); ok && !landsInside(targets, pos, consumed) {
			result = append(result, repl...)
			pos += consumed
			continue
		}

		n := 1 + code[pos].operands()
		if code[pos] == Jump || code[pos] == JumpFalse {
			jumps = append(jumps, jumpFix{oldOperand: pos + 1, newOperand: len(result) + 1})
		}
		result = append(result, code[pos:pos+n]...)
		pos += n
	}
	posMap[len(code)] = len(result)

	for _, j := range jumps {
		oldTarget := j.oldOperand + 1 + int(code[j.oldOperand])
		result[j.newOperand] = Opcode(posMap[oldTarget] - (j.newOperand + 1))
	}
	return result
}

// rewrite matches a pattern at pos and returns the number of opcodes it
// covers and their replacement.
func rewrite(code []Opcode, pos int) (int, []Opcode, bool) {
	at := func(i int, op Opcode) bool {
		return pos+i < len(code) && code[pos+i] == op
	}
	switch code[pos] {
	case Nop:
		return 1, nil, true
	case Nil:
		if at(1, Drop) {
			return 2, nil, true
		}
	case Const, LoadLocal:
		if at(2, Drop) {
			return 3, nil, true
		}
	case Dupe:
		if at(1, StoreLocal) && at(3, Drop) {
			return 4, []Opcode{StoreLocal, code[pos+2]}, true
		}
		if at(1, StoreElem) && at(4, Drop) {
			return 5, []Opcode{StoreElem, code[pos+2], code[pos+3]}, true
		}
	}
	return 0, nil, false
}

// jumpTargets returns the set of positions some jump in code lands on.
func jumpTargets(code []Opcode) map[int]bool {
	targets := make(map[int]bool)
	for pos := 0; pos < len(code); pos += 1 + code[pos].operands() {
		if code[pos] == Jump || code[pos] == JumpFalse {
			targets[pos+2+int(code[pos+1])] = true
		}
	}
	return targets
}

// landsInside reports whether a jump targets a position strictly inside
// the n opcodes starting at pos.
func landsInside(targets map[int]bool, pos, n int) bool {
	for i := pos + 1; i < pos+n; i++ {
		if targets[i] {
			return true
		}
	}
	return false
}
