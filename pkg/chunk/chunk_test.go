package chunk

import (
	"testing"

	"github.com/kristofer/vela/pkg/value"
)

func TestWriteTracksParallelLines(t *testing.T) {
	c := New()
	c.Write(byte(OpNull), 1)
	c.Write(byte(OpTrue), 1)
	c.Write(byte(OpPrint), 2)

	if len(c.Code) != len(c.Lines) {
		t.Fatalf("Code/Lines length mismatch: %d vs %d", len(c.Code), len(c.Lines))
	}
	want := []int{1, 1, 2}
	for i, line := range want {
		if c.Lines[i] != line {
			t.Errorf("Lines[%d] = %d, want %d", i, c.Lines[i], line)
		}
	}
}

func TestAddConstant(t *testing.T) {
	c := New()
	idx, err := c.AddConstant(value.NumberVal(42))
	if err != nil {
		t.Fatalf("AddConstant returned error: %v", err)
	}
	if idx != 0 {
		t.Fatalf("first constant index = %d, want 0", idx)
	}
	idx2, err := c.AddConstant(value.NumberVal(7))
	if err != nil || idx2 != 1 {
		t.Fatalf("second constant index = (%d, %v), want (1, nil)", idx2, err)
	}
}

// TestConstantPoolOverflow checks spec §8's boundary behavior: 256
// constants compile, 257 is an error (one-byte operand addressing).
func TestConstantPoolOverflow(t *testing.T) {
	c := New()
	for i := 0; i < MaxConstants; i++ {
		if _, err := c.AddConstant(value.NumberVal(float64(i))); err != nil {
			t.Fatalf("constant %d: unexpected error %v", i, err)
		}
	}
	if _, err := c.AddConstant(value.NumberVal(999)); err != ErrTooManyConstants {
		t.Fatalf("257th constant error = %v, want ErrTooManyConstants", err)
	}
}

func TestPatchByte(t *testing.T) {
	c := New()
	c.Write(byte(OpJump), 1)
	offset := c.Len()
	c.Write(0xff, 1)
	c.Write(0xff, 1)
	c.PatchByte(offset, 0x01)
	c.PatchByte(offset+1, 0x02)
	if c.Code[offset] != 0x01 || c.Code[offset+1] != 0x02 {
		t.Fatalf("PatchByte did not overwrite in place: %v", c.Code[offset:offset+2])
	}
}

func TestOpStringNames(t *testing.T) {
	if OpConstant.String() != "OP_CONSTANT" {
		t.Errorf("OpConstant.String() = %q", OpConstant.String())
	}
	if OpReturn.String() != "OP_RETURN" {
		t.Errorf("OpReturn.String() = %q", OpReturn.String())
	}
	unknown := Op(255)
	if unknown.String() != "OP_UNKNOWN" {
		t.Errorf("unknown opcode String() = %q, want OP_UNKNOWN", unknown.String())
	}
}
