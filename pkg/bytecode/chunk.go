package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// BytecodeVersion is the current bytecode format version.
// Increment when making incompatible changes to the format.
const BytecodeVersion uint16 = 1

// MaxConstants is the number of pool entries addressable by a u16 operand.
const MaxConstants = 1 << 16

// Magic bytes for bytecode files: "RKBC" (ReCKon ByteCode)
var BytecodeMagic = []byte{'R', 'K', 'B', 'C'}

// ErrTooManyConstants is returned when a chunk's constant pool is full.
var ErrTooManyConstants = errors.New("too many constants in one chunk")

// Chunk is an append-only bytecode program: instructions, a line table with
// one entry per code byte, and a constant pool.
type Chunk struct {
	Version uint16 `cbor:"1,keyasint"`

	// Code section
	Code []byte `cbor:"2,keyasint"`

	// Lines holds the source line of every byte in Code.
	Lines []int `cbor:"3,keyasint"`

	// Constant pool - values referenced by OpConstant
	Constants []Value `cbor:"4,keyasint"`
}

// NewChunk creates a new empty chunk with the current version.
func NewChunk() *Chunk {
	return &Chunk{
		Version:   BytecodeVersion,
		Code:      make([]byte, 0, 64),
		Lines:     make([]int, 0, 64),
		Constants: make([]Value, 0, 8),
	}
}

// Write appends a raw byte tagged with its source line.
func (c *Chunk) Write(b byte, line int) int {
	offset := len(c.Code)
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
	return offset
}

// WriteOp appends a single-byte opcode.
func (c *Chunk) WriteOp(op Opcode, line int) int {
	return c.Write(byte(op), line)
}

// AddConstant appends a value to the pool and returns its index.
// Constants are never de-duplicated or reordered.
func (c *Chunk) AddConstant(value Value) int {
	c.Constants = append(c.Constants, value)
	return len(c.Constants) - 1
}

// GetConstant returns the constant at the given index.
// Panics if the index is out of bounds.
func (c *Chunk) GetConstant(index int) Value {
	return c.Constants[index]
}

// EmitConstant adds value to the pool and emits OpConstant with its index.
// Returns the offset of the instruction.
func (c *Chunk) EmitConstant(value Value, line int) (int, error) {
	if len(c.Constants) >= MaxConstants {
		return -1, ErrTooManyConstants
	}
	idx := c.AddConstant(value)
	offset := c.WriteOp(OpConstant, line)
	c.Write(byte(idx>>8), line)
	c.Write(byte(idx), line)
	return offset, nil
}

// LineAt returns the source line for a code offset, or 0 when out of range.
func (c *Chunk) LineAt(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		return 0
	}
	return c.Lines[offset]
}

// CodeLen returns the length of the code section.
func (c *Chunk) CodeLen() int {
	return len(c.Code)
}

// ConstantCount returns the number of constants in the pool.
func (c *Chunk) ConstantCount() int {
	return len(c.Constants)
}

// InstructionCount decodes the code section and counts instructions.
// Unknown opcodes count as one-byte instructions.
func (c *Chunk) InstructionCount() int {
	n := 0
	for offset := 0; offset < len(c.Code); {
		offset += Opcode(c.Code[offset]).InstructionLen()
		n++
	}
	return n
}

// Validate checks the structural invariants of a chunk loaded from outside
// the compiler: line table length, opcode validity, operand bounds and
// constant indices.
func (c *Chunk) Validate() error {
	if len(c.Lines) != len(c.Code) {
		return fmt.Errorf("line table has %d entries for %d code bytes", len(c.Lines), len(c.Code))
	}
	if len(c.Constants) > MaxConstants {
		return ErrTooManyConstants
	}
	for offset := 0; offset < len(c.Code); {
		op := Opcode(c.Code[offset])
		if !op.IsValid() {
			return fmt.Errorf("unknown opcode 0x%02X at %04d", byte(op), offset)
		}
		if offset+op.InstructionLen() > len(c.Code) {
			return fmt.Errorf("truncated %s operand at %04d", op, offset)
		}
		if op == OpConstant {
			idx := int(binary.BigEndian.Uint16(c.Code[offset+1:]))
			if idx >= len(c.Constants) {
				return fmt.Errorf("constant index %d out of range at %04d", idx, offset)
			}
		}
		offset += op.InstructionLen()
	}
	return nil
}

// Serialize encodes the chunk to bytes for storage/transport.
// Format:
//
//	[magic:4] [version:2]
//	[code_len:4] [code:...]
//	[lines:4 * code_len]
//	[const_count:4] [constants:8 * const_count]
func (c *Chunk) Serialize() ([]byte, error) {
	if len(c.Lines) != len(c.Code) {
		return nil, fmt.Errorf("line table has %d entries for %d code bytes", len(c.Lines), len(c.Code))
	}

	estimatedSize := 14 + len(c.Code)*5 + len(c.Constants)*8
	buf := make([]byte, 0, estimatedSize)

	buf = append(buf, BytecodeMagic...)
	buf = binary.BigEndian.AppendUint16(buf, c.Version)

	// Code section
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(c.Code)))
	buf = append(buf, c.Code...)

	// Line table
	for _, line := range c.Lines {
		buf = binary.BigEndian.AppendUint32(buf, uint32(line))
	}

	// Constants
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(c.Constants)))
	for _, v := range c.Constants {
		buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(float64(v)))
	}

	return buf, nil
}

// Deserialize decodes a chunk from bytes.
func Deserialize(data []byte) (*Chunk, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("bytecode too short: need at least 6 bytes, got %d", len(data))
	}

	if string(data[0:4]) != string(BytecodeMagic) {
		return nil, fmt.Errorf("invalid bytecode magic: expected %q, got %q", BytecodeMagic, data[0:4])
	}

	c := &Chunk{
		Version: binary.BigEndian.Uint16(data[4:6]),
	}
	pos := 6

	if c.Version > BytecodeVersion {
		return nil, fmt.Errorf("bytecode version %d is newer than supported version %d", c.Version, BytecodeVersion)
	}

	// Code section
	if pos+4 > len(data) {
		return nil, fmt.Errorf("unexpected end of bytecode reading code length at pos %d", pos)
	}
	codeLen := int(binary.BigEndian.Uint32(data[pos:]))
	pos += 4

	if codeLen > len(data)-pos {
		return nil, fmt.Errorf("unexpected end of bytecode reading code section: need %d bytes at pos %d", codeLen, pos)
	}
	c.Code = make([]byte, codeLen)
	copy(c.Code, data[pos:pos+codeLen])
	pos += codeLen

	// Line table
	if codeLen*4 > len(data)-pos {
		return nil, fmt.Errorf("unexpected end of bytecode reading line table at pos %d", pos)
	}
	c.Lines = make([]int, codeLen)
	for i := range c.Lines {
		c.Lines[i] = int(binary.BigEndian.Uint32(data[pos:]))
		pos += 4
	}

	// Constants
	if pos+4 > len(data) {
		return nil, fmt.Errorf("unexpected end of bytecode reading constant count")
	}
	constCount := int(binary.BigEndian.Uint32(data[pos:]))
	pos += 4

	if constCount > MaxConstants {
		return nil, ErrTooManyConstants
	}
	if constCount*8 > len(data)-pos {
		return nil, fmt.Errorf("unexpected end of bytecode reading %d constants", constCount)
	}
	c.Constants = make([]Value, constCount)
	for i := range c.Constants {
		c.Constants[i] = Value(math.Float64frombits(binary.BigEndian.Uint64(data[pos:])))
		pos += 8
	}

	if pos != len(data) {
		return nil, fmt.Errorf("%d trailing bytes after bytecode", len(data)-pos)
	}

	return c, nil
}
