package vm

import (
	"context"
	"fmt"
	"os"

	"github.com/kolkov/narlie/internal/builtins"
	"github.com/kolkov/narlie/internal/types"
)

// DefaultStackSize is the initial stack capacity.
const DefaultStackSize = 64

// RuntimeError reports a failure while executing a method.
type RuntimeError struct {
	Method string
	IP     int
	Err    error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error in %s at %04d: %v", e.Method, e.IP, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// VM executes a Program.
type VM struct {
	program *Program
	env     *builtins.Env

	// Value stack
	stackData []types.Value
	sp        int

	locals []types.Value
	result types.Value
}

// New creates a VM for prog. A nil env writes to os.Stdout.
func New(prog *Program, env *builtins.Env) *VM {
	if env == nil {
		env = &builtins.Env{Stdout: os.Stdout}
	}
	return &VM{
		program:   prog,
		env:       env,
		stackData: make([]types.Value, DefaultStackSize),
	}
}

// Run executes the entry method and returns the value of its last
// top-level expression statement.
func (vm *VM) Run(ctx context.Context) (types.Value, error) {
	m, err := vm.program.EntryMethod()
	if err != nil {
		return types.Nil(), err
	}
	return vm.RunMethod(ctx, m.Name)
}

// RunMethod executes the named method.
func (vm *VM) RunMethod(ctx context.Context, name string) (types.Value, error) {
	m, ok := vm.program.Method(name)
	if !ok {
		return types.Nil(), fmt.Errorf("type %s has no method %q", vm.program.Type, name)
	}
	vm.sp = 0
	vm.result = types.Nil()
	vm.locals = make([]types.Value, m.NumLocals)
	if err := vm.execute(ctx, m); err != nil {
		return types.Nil(), err
	}
	return vm.result, nil
}

func (vm *VM) execute(ctx context.Context, m *Code) error {
	code := m.Code
	ip := 0
	for ip < len(code) {
		at := ip
		op := code[ip]
		ip++

		switch op {
		case Nop:
			// Do nothing

		case Const:
			idx := int(code[ip])
			ip++
			vm.push(vm.program.Consts[idx])

		case Nil:
			vm.push(types.Nil())

		case Dupe:
			vm.push(vm.stackData[vm.sp-1])

		case Drop:
			vm.sp--

		case Result:
			vm.result = vm.pop()

		case LoadLocal:
			idx := int(code[ip])
			ip++
			vm.push(vm.locals[idx])

		case StoreLocal:
			idx := int(code[ip])
			ip++
			vm.locals[idx] = vm.pop()

		case NewArray:
			idx, size := int(code[ip]), int(code[ip+1])
			ip += 2
			vm.locals[idx] = types.NewArray(size)

		case StoreElem:
			idx, elem := int(code[ip]), int(code[ip+1])
			ip += 2
			elems := vm.locals[idx].Elems()
			if elem >= len(elems) {
				return &RuntimeError{Method: m.Name, IP: at, Err: fmt.Errorf("element %d out of range [0:%d]", elem, len(elems))}
			}
			elems[elem] = vm.pop()

		case Call:
			idx, argc := int(code[ip]), int(code[ip+1])
			ip += 2
			args := make([]types.Value, argc)
			copy(args, vm.popN(argc))
			v, err := vm.program.Funcs[idx].Call(vm.env, args)
			if err != nil {
				return &RuntimeError{Method: m.Name, IP: at, Err: err}
			}
			vm.push(v)

		case Jump:
			offset := int(code[ip])
			ip++
			if offset < 0 {
				if err := ctx.Err(); err != nil {
					return &RuntimeError{Method: m.Name, IP: at, Err: err}
				}
			}
			ip += offset

		case JumpFalse:
			offset := int(code[ip])
			ip++
			if !vm.pop().AsBool() {
				ip += offset
			}

		default:
			return &RuntimeError{Method: m.Name, IP: at, Err: fmt.Errorf("invalid opcode %s", op)}
		}
	}
	return nil
}

// push pushes a value onto the stack.
func (vm *VM) push(v types.Value) {
	if vm.sp >= len(vm.stackData) {
		vm.growStack()
	}
	vm.stackData[vm.sp] = v
	vm.sp++
}

// pop removes and returns the top value from the stack.
func (vm *VM) pop() types.Value {
	vm.sp--
	return vm.stackData[vm.sp]
}

// popN returns a view of the top n values and decrements sp.
// The caller must not hold the view after pushing new values.
func (vm *VM) popN(n int) []types.Value {
	vm.sp -= n
	return vm.stackData[vm.sp : vm.sp+n]
}

// growStack doubles the stack capacity.
func (vm *VM) growStack() {
	newData := make([]types.Value, len(vm.stackData)*2)
	copy(newData, vm.stackData)
	vm.stackData = newData
}
