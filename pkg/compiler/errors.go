package compiler

import "strings"

// CompileError aggregates every diagnostic the compiler reported
// before entering panic-mode recovery. Compilation only succeeds if
// none were reported (spec §7): this type is what Compile returns
// otherwise.
type CompileError struct {
	Messages []string
}

func (e *CompileError) Error() string {
	return strings.Join(e.Messages, "\n")
}
