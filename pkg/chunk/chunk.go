// Package chunk implements the growable bytecode buffer the compiler
// writes into and the VM reads from: a byte array, a parallel
// source-line array of equal length, and a constant pool.
package chunk

import (
	"errors"

	"github.com/kristofer/vela/pkg/value"
)

// MaxConstants is the largest number of constants a single chunk may
// hold. Constants are addressed by a one-byte operand (spec §3
// Invariant 7), so the pool cannot exceed 256 entries.
const MaxConstants = 256

// ErrTooManyConstants is returned by AddConstant once a chunk's
// constant pool is full.
var ErrTooManyConstants = errors.New("too many constants in one chunk")

// initialCapacity is the floor both the code/line arrays and the
// constant pool grow from on first write — avoids a string of tiny
// reallocations for chunks that end up small (most do: loop bodies,
// single expressions).
const initialCapacity = 8

// Chunk is a unit of compiled bytecode: one per Function.
type Chunk struct {
	Code      []byte
	Lines     []int // Lines[i] is the source line of Code[i] (Invariant 6)
	Constants []value.Value
}

// New returns an empty chunk with its arrays pre-sized to
// initialCapacity, matching the teacher's and the clox lineage's
// "grow from a small floor" discipline.
func New() *Chunk {
	return &Chunk{
		Code:      make([]byte, 0, initialCapacity),
		Lines:     make([]int, 0, initialCapacity),
		Constants: make([]value.Value, 0, initialCapacity),
	}
}

// Write appends one byte of bytecode at the given source line.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// AddConstant appends a value to the constant pool and returns its
// index, or ErrTooManyConstants if the pool is already at capacity.
func (c *Chunk) AddConstant(v value.Value) (int, error) {
	if len(c.Constants) >= MaxConstants {
		return 0, ErrTooManyConstants
	}
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1, nil
}

// Len returns the number of bytecode bytes written so far — used by
// the compiler to compute jump targets and loop offsets before a jump
// is patched.
func (c *Chunk) Len() int { return len(c.Code) }

// PatchByte overwrites a single byte already written — used to patch
// 16-bit jump operands once the jump's target offset is known.
func (c *Chunk) PatchByte(offset int, b byte) { c.Code[offset] = b }
