package vm

import (
	"fmt"
	"strings"

	"github.com/kristofer/vela/pkg/chunk"
	"github.com/kristofer/vela/pkg/object"
)

// Disassemble renders every instruction of a compiled chunk as
// human-readable text (SPEC_FULL.md domain-stack item 1, grounded on
// the teacher's pkg/vm/debugger.go and cmd/smog/main.go's
// disassembleFile). It lives here rather than in package chunk because
// formatting OP_CLOSURE needs the Function's upvalue count, and chunk
// cannot import package object without creating object -> chunk ->
// object cycle.
func Disassemble(c *chunk.Chunk, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		var line string
		line, offset = DisassembleInstruction(c, offset)
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// DisassembleInstruction formats the instruction at offset and returns
// the offset of the one after it.
func DisassembleInstruction(c *chunk.Chunk, offset int) (string, int) {
	var b strings.Builder
	fmt.Fprintf(&b, "%04d ", offset)
	if offset > 0 && c.Lines[offset] == c.Lines[offset-1] {
		b.WriteString("   | ")
	} else {
		fmt.Fprintf(&b, "%4d ", c.Lines[offset])
	}

	op := chunk.Op(c.Code[offset])
	switch op {
	case chunk.OpConstant, chunk.OpGetLocal, chunk.OpSetLocal, chunk.OpGetGlobal,
		chunk.OpDefineGlobal, chunk.OpSetGlobal, chunk.OpGetUpvalue, chunk.OpSetUpvalue,
		chunk.OpPopN, chunk.OpClass, chunk.OpMethod, chunk.OpGetField, chunk.OpSetField,
		chunk.OpCall:
		idx := c.Code[offset+1]
		fmt.Fprintf(&b, "%-16s %4d", op, idx)
		if op == chunk.OpConstant && int(idx) < len(c.Constants) {
			fmt.Fprintf(&b, " (%v)", c.Constants[idx])
		}
		return b.String(), offset + 2

	case chunk.OpInvoke:
		nameIdx := c.Code[offset+1]
		argc := c.Code[offset+2]
		fmt.Fprintf(&b, "%-16s %4d (%d args)", op, nameIdx, argc)
		return b.String(), offset + 3

	case chunk.OpJump, chunk.OpJumpIfFalse, chunk.OpLoop:
		jump := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
		target := offset + 3
		if op == chunk.OpLoop {
			target -= jump
		} else {
			target += jump
		}
		fmt.Fprintf(&b, "%-16s %4d -> %d", op, offset, target)
		return b.String(), offset + 3

	case chunk.OpClosure:
		constIdx := c.Code[offset+1]
		fmt.Fprintf(&b, "%-16s %4d", op, constIdx)
		next := offset + 2
		if int(constIdx) < len(c.Constants) {
			if fn, ok := c.Constants[constIdx].AsObject().(*object.Function); ok {
				for i := 0; i < fn.UpvalueCount; i++ {
					isLocal := c.Code[next]
					index := c.Code[next+1]
					kind := "upvalue"
					if isLocal != 0 {
						kind = "local"
					}
					fmt.Fprintf(&b, "\n%04d      |                     %s %d", next, kind, index)
					next += 2
				}
			}
		}
		return b.String(), next

	default:
		fmt.Fprintf(&b, "%-16s", op)
		return b.String(), offset + 1
	}
}

// traceStep prints the current value stack and the next instruction
// to vm.trace before it executes — the runtime counterpart to
// original_source's DEBUG_TRACE_EXECUTION compile flag.
func (vm *VM) traceStep(f *frame) {
	fmt.Fprint(vm.trace, "          ")
	for i := 0; i < vm.sp; i++ {
		fmt.Fprintf(vm.trace, "[ %s ]", vm.formatValue(vm.stack[i]))
	}
	fmt.Fprintln(vm.trace)
	line, _ := DisassembleInstruction(f.closure.Function.Chunk, f.ip)
	fmt.Fprintln(vm.trace, line)
}
