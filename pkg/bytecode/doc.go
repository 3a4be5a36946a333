// Package bytecode provides the chunk format and the stack-based virtual
// machine that executes compiled arithmetic expressions.
//
// The bytecode format is designed for:
//   - Compact representation (1 byte per instruction, 3 for CONSTANT)
//   - Fast decoding (fixed-width opcodes, big-endian u16 operands)
//   - Easy serialization (binary "RKBC" images for files, CBOR for the cache)
//
// # Architecture Overview
//
//   - Opcodes: CONSTANT, NEGATE, ADD, SUBTRACT, MULTIPLY, DIVIDE and RETURN.
//     There are no jumps, so control flow is strictly linear.
//
//   - Chunk: code bytes, a line table with one entry per code byte, and a
//     constant pool of Values. CONSTANT carries a pool index; the VM
//     dereferences the pool at execution time.
//
//   - VM: fetch-decode-execute loop over an explicit, bounded operand stack.
//     Binary operators pop the right operand first, so the value pushed
//     earlier in program order is the left operand.
//
// # Failure Model
//
// The VM never panics on malformed input. Stack underflow, stack overflow,
// invalid instructions and (under DivZeroHalt) division by zero are returned
// as *RuntimeError. A chunk that runs off its end yields ErrMissingReturn,
// which callers report as a compile error since the compiler always emits a
// trailing RETURN.
package bytecode
