package bytecode

import "fmt"

// InterpretResult is the three-way outcome of interpreting a program.
type InterpretResult uint8

const (
	InterpretOK InterpretResult = iota + 1
	InterpretCompileError
	InterpretRuntimeError
)

func (r InterpretResult) String() string {
	switch r {
	case InterpretOK:
		return "ok"
	case InterpretCompileError:
		return "compile error"
	case InterpretRuntimeError:
		return "runtime error"
	default:
		return fmt.Sprintf("InterpretResult(%d)", r)
	}
}
