// Runtime error reporting: stack traces built from the live frame
// array, one entry per active call (spec §4.6's "Runtime errors print
// a stack trace"), modeled on the teacher's RuntimeError/StackFrame
// pair in pkg/vm/errors.go.
package vm

import (
	"fmt"
	"strings"
)

// StackFrame describes one active call at the moment a runtime error
// was raised: the function's display name and the source line its
// instruction pointer had reached.
type StackFrame struct {
	Name       string
	SourceLine int
}

// RuntimeError is returned by Interpret when script execution fails.
// It carries the full call stack captured at the point of failure.
type RuntimeError struct {
	Message    string
	StackTrace []StackFrame
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for i := len(e.StackTrace) - 1; i >= 0; i-- {
		fr := e.StackTrace[i]
		fmt.Fprintf(&b, "\n  [line %d] in %s", fr.SourceLine, fr.Name)
	}
	return b.String()
}

func newRuntimeError(message string, stack []StackFrame) *RuntimeError {
	return &RuntimeError{Message: message, StackTrace: stack}
}

// captureStackTrace walks the currently active frames, innermost
// first, recording each one's display name and the source line its ip
// had reached (via the chunk's parallel line array — spec §3
// Invariant 6), not merely a raw bytecode offset.
func (vm *VM) captureStackTrace() []StackFrame {
	trace := make([]StackFrame, 0, vm.frameCount)
	for i := vm.frameCount - 1; i >= 0; i-- {
		fr := vm.frames[i]
		line := 0
		if ip := fr.ip - 1; ip >= 0 && ip < len(fr.closure.Function.Chunk.Lines) {
			line = fr.closure.Function.Chunk.Lines[ip]
		}
		trace = append(trace, StackFrame{
			Name:       fr.closure.Function.DisplayName(),
			SourceLine: line,
		})
	}
	return trace
}
