package bytecode

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Disassemble returns a human-readable bytecode listing for the chunk.
func (c *Chunk) Disassemble() string {
	return c.DisassembleWithName("")
}

// DisassembleWithName returns a human-readable bytecode listing with a name header.
// Each instruction occupies one line: byte offset, source line (or "|" when
// unchanged from the previous instruction), mnemonic and operand.
func (c *Chunk) DisassembleWithName(name string) string {
	var sb strings.Builder

	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}

	offset := 0
	for offset < len(c.Code) {
		line, instrLen := c.DisassembleInstruction(offset)
		sb.WriteString(line)
		sb.WriteString("\n")
		offset += instrLen
	}

	return sb.String()
}

// DisassembleInstruction formats the instruction at offset.
// Returns the formatted line (without newline) and the instruction length.
func (c *Chunk) DisassembleInstruction(offset int) (string, int) {
	if offset >= len(c.Code) {
		return "<end of code>", 0
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%04d ", offset))
	if offset > 0 && c.LineAt(offset) == c.LineAt(offset-1) {
		sb.WriteString("   | ")
	} else {
		sb.WriteString(fmt.Sprintf("%4d ", c.LineAt(offset)))
	}

	op := Opcode(c.Code[offset])
	switch op {
	case OpConstant:
		if offset+2 >= len(c.Code) {
			sb.WriteString(fmt.Sprintf("%-16s <truncated>", op))
			return sb.String(), len(c.Code) - offset
		}
		idx := int(binary.BigEndian.Uint16(c.Code[offset+1:]))
		constVal := "?"
		if idx < len(c.Constants) {
			constVal = c.Constants[idx].String()
		}
		sb.WriteString(fmt.Sprintf("%-16s %4d '%s'", op, idx, constVal))
		return sb.String(), 3

	default:
		sb.WriteString(op.String())
		return sb.String(), 1
	}
}

// FormatStack renders stack slots the way the execution tracer prints them.
func FormatStack(stack []Value) string {
	var sb strings.Builder
	sb.WriteString("          ")
	for _, v := range stack {
		sb.WriteString(fmt.Sprintf("[ %s ]", v))
	}
	return sb.String()
}
