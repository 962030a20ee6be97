package bytecode

import (
	"fmt"
	"slices"
)

// BytecodeVersion is bumped whenever opcode numbering or operand meaning
// changes. Images with a different version never compare equal.
const BytecodeVersion uint16 = 1

// Chunk is one instruction of a function's compiled code.
//
// X is opcode dependent: a literal, a slot index, a relative jump
// distance, an operator id or a handle into the engine's function or
// string arena. Pos is the byte offset of the originating source and is
// diagnostic only.
type Chunk struct {
	Op  Opcode `cbor:"1,keyasint"`
	X   int64  `cbor:"2,keyasint,omitempty"`
	Pos int32  `cbor:"3,keyasint,omitempty"`
}

// String renders the chunk as "NAME x".
func (c Chunk) String() string {
	if c.Op.Operand() == OperandNone {
		return c.Op.String()
	}
	return fmt.Sprintf("%s %d", c.Op, c.X)
}

// Code is a flat, append-only sequence of chunks. Jumps are relative to
// the index of the jumping chunk; there are no basic blocks.
type Code []Chunk

// Len returns the number of chunks.
func (c Code) Len() int {
	return len(c)
}

// Target returns the absolute index a jump at i lands on.
func (c Code) Target(i int) int {
	if c[i].Op == OpForeachNext || c[i].Op == OpForeachMapNext {
		return i + 2
	}
	return i + int(c[i].X)
}

// JumpTargets marks every index (including len(c)) that some jump lands
// on. Chunks at marked indexes must stay addressable boundaries.
func (c Code) JumpTargets() []bool {
	targets := make([]bool, len(c)+1)
	for i, ch := range c {
		if !ch.Op.IsJump() && ch.Op != OpForeachNext && ch.Op != OpForeachMapNext {
			continue
		}
		if t := c.Target(i); t >= 0 && t <= len(c) {
			targets[t] = true
		}
	}
	return targets
}

// Clone returns an independent copy.
func (c Code) Clone() Code {
	return slices.Clone(c)
}

// Equal reports whether two code sequences are identical, positions
// included.
func (c Code) Equal(other Code) bool {
	return slices.Equal(c, other)
}

// Count returns how many chunks use op.
func (c Code) Count(op Opcode) int {
	n := 0
	for _, ch := range c {
		if ch.Op == op {
			n++
		}
	}
	return n
}

// Ops returns the opcode sequence, mostly useful in tests and listings.
func (c Code) Ops() []Opcode {
	ops := make([]Opcode, len(c))
	for i, ch := range c {
		ops[i] = ch.Op
	}
	return ops
}
