package vm

import "fmt"

// Opcode represents a virtual machine instruction.
// Each opcode is a 32-bit signed integer, allowing for large jump offsets
// and constant indices without overflow concerns.
type Opcode int32

const (
	// Nop does nothing.
	Nop Opcode = iota

	// Stack operations
	Const  // Push constant: Const index
	Nil    // Push nil
	Dupe   // Duplicate top of stack
	Drop   // Discard top of stack
	Result // Pop top of stack into the run result

	// Locals
	LoadLocal  // Push local: LoadLocal slot
	StoreLocal // Pop into local: StoreLocal slot

	// Arrays
	NewArray  // Allocate array in local: NewArray slot size
	StoreElem // Pop into array element: StoreElem slot index

	// Calls
	Call // Call function: Call funcIndex argc (args on stack)

	// Control flow
	Jump      // Unconditional jump: Jump offset
	JumpFalse // Pop and jump if false: JumpFalse offset
)

var opcodeNames = [...]string{
	Nop:        "Nop",
	Const:      "Const",
	Nil:        "Nil",
	Dupe:       "Dupe",
	Drop:       "Drop",
	Result:     "Result",
	LoadLocal:  "LoadLocal",
	StoreLocal: "StoreLocal",
	NewArray:   "NewArray",
	StoreElem:  "StoreElem",
	Call:       "Call",
	Jump:       "Jump",
	JumpFalse:  "JumpFalse",
}

// String returns the opcode mnemonic.
func (op Opcode) String() string {
	if op >= 0 && int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", int32(op))
}

// operands returns the number of operands following op.
func (op Opcode) operands() int {
	switch op {
	case Const, LoadLocal, StoreLocal, Jump, JumpFalse:
		return 1
	case NewArray, StoreElem, Call:
		return 2
	default:
		return 0
	}
}
