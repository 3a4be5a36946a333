package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
)

// DefaultStackMax bounds the operand stack when Options.StackMax is zero.
const DefaultStackMax = 256

var (
	ErrStackUnderflow     = errors.New("stack underflow")
	ErrStackOverflow      = errors.New("stack overflow")
	ErrDivisionByZero     = errors.New("division by zero")
	ErrInvalidInstruction = errors.New("invalid instruction")

	// ErrMissingReturn means the code section ended without a RETURN. The
	// compiler always terminates a chunk with RETURN, so this indicates broken
	// code generation and is reported as a compile error.
	ErrMissingReturn = errors.New("code ended without RETURN")
)

// DivisionPolicy selects what DIVIDE does with a zero divisor.
type DivisionPolicy uint8

const (
	// DivZeroHalt stops execution with a RuntimeError.
	DivZeroHalt DivisionPolicy = iota
	// DivZeroRestore reports the problem, pushes both operands back unchanged
	// and keeps executing.
	DivZeroRestore
)

// ParseDivisionPolicy maps a config string ("halt" or "restore") to a policy.
// The empty string selects DivZeroHalt.
func ParseDivisionPolicy(s string) (DivisionPolicy, error) {
	switch s {
	case "", "halt":
		return DivZeroHalt, nil
	case "restore":
		return DivZeroRestore, nil
	default:
		return DivZeroHalt, fmt.Errorf("unknown division-by-zero policy %q (want halt or restore)", s)
	}
}

func (p DivisionPolicy) String() string {
	switch p {
	case DivZeroHalt:
		return "halt"
	case DivZeroRestore:
		return "restore"
	default:
		return fmt.Sprintf("DivisionPolicy(%d)", p)
	}
}

// RuntimeError describes a failed instruction.
type RuntimeError struct {
	Op         Opcode // Instruction that failed
	Offset     int    // Byte offset of the instruction
	Line       int    // Source line of the instruction
	StackDepth int    // Stack depth when the instruction started
	Err        error  // One of the Err* sentinels
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("[line %d] runtime error in %s at %04d (stack depth %d): %v",
		e.Line, e.Op, e.Offset, e.StackDepth, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// Options configures a VM. Zero values select the defaults.
type Options struct {
	StackMax       int            // Operand stack bound (DefaultStackMax if zero)
	DivisionByZero DivisionPolicy // Zero-divisor handling
	Trace          bool           // Print stack and instruction before each step
	Out            io.Writer      // Where RETURN prints (os.Stdout if nil)
	TraceOut       io.Writer      // Trace destination (Out if nil)
	Diagnostics    io.Writer      // Non-fatal runtime diagnostics (os.Stderr if nil)
	Logger         commonlog.Logger
}

// VM executes bytecode chunks.
type VM struct {
	chunk *Chunk
	ip    int
	stack []Value

	opts Options
	log  commonlog.Logger
}

// NewVM creates a new VM instance.
func NewVM(opts Options) *VM {
	if opts.StackMax <= 0 {
		opts.StackMax = DefaultStackMax
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.TraceOut == nil {
		opts.TraceOut = opts.Out
	}
	if opts.Diagnostics == nil {
		opts.Diagnostics = os.Stderr
	}
	log := opts.Logger
	if log == nil {
		log = commonlog.GetLogger("reckon.vm")
	}
	return &VM{
		stack: make([]Value, 0, opts.StackMax),
		opts:  opts,
		log:   log,
	}
}

// Execute runs a chunk from its first instruction until RETURN.
// Returns the value printed by RETURN. Failures are *RuntimeError values,
// except a chunk without RETURN which yields ErrMissingReturn.
func (vm *VM) Execute(chunk *Chunk) (Value, error) {
	vm.chunk = chunk
	vm.ip = 0
	vm.stack = vm.stack[:0]

	v, err := vm.run()
	if err != nil {
		vm.log.Debugf("execution halted: %v", err)
		return 0, err
	}
	vm.log.Debugf("execution finished: %s", v)
	return v, nil
}

// StackDepth returns the number of values on the operand stack.
func (vm *VM) StackDepth() int {
	return len(vm.stack)
}

// Stack returns a copy of the operand stack, bottom first.
func (vm *VM) Stack() []Value {
	out := make([]Value, len(vm.stack))
	copy(out, vm.stack)
	return out
}

// run is the main execution loop.
func (vm *VM) run() (Value, error) {
	code := vm.chunk.Code

	for vm.ip < len(code) {
		start := vm.ip
		depth := len(vm.stack)
		op := Opcode(code[vm.ip])

		if vm.opts.Trace {
			vm.trace(start)
		}
		vm.ip++

		switch op {
		case OpConstant:
			if vm.ip+2 > len(code) {
				return 0, vm.fail(op, start, depth, ErrInvalidInstruction)
			}
			idx := int(binary.BigEndian.Uint16(code[vm.ip:]))
			vm.ip += 2
			if idx >= len(vm.chunk.Constants) {
				return 0, vm.fail(op, start, depth, ErrInvalidInstruction)
			}
			if err := vm.push(vm.chunk.Constants[idx]); err != nil {
				return 0, vm.fail(op, start, depth, err)
			}

		case OpNegate:
			v, err := vm.pop()
			if err != nil {
				return 0, vm.fail(op, start, depth, err)
			}
			vm.push(-v)

		case OpAdd, OpSubtract, OpMultiply, OpDivide:
			// The operand pushed first is the left-hand side.
			rhs, err := vm.pop()
			if err != nil {
				return 0, vm.fail(op, start, depth, err)
			}
			lhs, err := vm.pop()
			if err != nil {
				return 0, vm.fail(op, start, depth, err)
			}

			switch op {
			case OpAdd:
				vm.push(lhs + rhs)
			case OpSubtract:
				vm.push(lhs - rhs)
			case OpMultiply:
				vm.push(lhs * rhs)
			case OpDivide:
				if rhs == 0 {
					if vm.opts.DivisionByZero == DivZeroHalt {
						return 0, vm.fail(op, start, depth, ErrDivisionByZero)
					}
					fmt.Fprintf(vm.opts.Diagnostics, "[line %d] Cannot divide by zero.\n", vm.chunk.LineAt(start))
					vm.push(lhs)
					vm.push(rhs)
					continue
				}
				vm.push(lhs / rhs)
			}

		case OpReturn:
			v, err := vm.pop()
			if err != nil {
				return 0, vm.fail(op, start, depth, err)
			}
			fmt.Fprintln(vm.opts.Out, v)
			return v, nil

		default:
			return 0, vm.fail(op, start, depth, ErrInvalidInstruction)
		}
	}

	return 0, ErrMissingReturn
}

func (vm *VM) fail(op Opcode, offset, depth int, err error) error {
	return &RuntimeError{
		Op:         op,
		Offset:     offset,
		Line:       vm.chunk.LineAt(offset),
		StackDepth: depth,
		Err:        err,
	}
}

func (vm *VM) trace(offset int) {
	line, _ := vm.chunk.DisassembleInstruction(offset)
	fmt.Fprintln(vm.opts.TraceOut, FormatStack(vm.stack))
	fmt.Fprintln(vm.opts.TraceOut, line)
}

// Stack helpers

func (vm *VM) push(val Value) error {
	if len(vm.stack) >= vm.opts.StackMax {
		return ErrStackOverflow
	}
	vm.stack = append(vm.stack, val)
	return nil
}

func (vm *VM) pop() (Value, error) {
	n := len(vm.stack)
	if n == 0 {
		return 0, ErrStackUnderflow
	}
	v := vm.stack[n-1]
	vm.stack = vm.stack[:n-1]
	return v, nil
}
