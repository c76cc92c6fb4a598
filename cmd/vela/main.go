// Command vela is the CLI host: it loads one source file, runs it on a
// fresh VM, and maps the result to a process exit code (spec §6).
package main

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/kristofer/vela/pkg/compiler"
	"github.com/kristofer/vela/pkg/vm"
)

// Exit codes for the two error domains (spec §6: "the source uses 69
// and 420 respectively").
const (
	exitCompileError = 69
	exitRuntimeError = 420
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <path>\n", os.Args[0])
		os.Exit(exitCompileError)
	}

	os.Exit(run(os.Args[1]))
}

func run(path string) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vela: %v\n", err)
		return exitCompileError
	}

	machine := vm.New(os.Stdout)

	if os.Getenv("VELA_TRACE") != "" {
		machine.SetTrace(os.Stderr)
	}
	if os.Getenv("VELA_STRESS_GC") != "" {
		machine.SetGCStressMode(true)
	}
	if os.Getenv("VELA_LOG_GC") != "" {
		machine.SetGCLogging(os.Stderr)
	}

	if err := machine.Interpret(string(source)); err != nil {
		switch err.(type) {
		case *compiler.CompileError:
			reportError(err, "Compile error")
			return exitCompileError
		case *vm.RuntimeError:
			reportError(err, "Runtime error")
			return exitRuntimeError
		default:
			reportError(err, "Error")
			return exitRuntimeError
		}
	}
	return 0
}

// reportError writes a diagnostic to stderr, framed with a rule line
// only when stderr is an interactive terminal (spec grounding:
// aclements-go-misc/git-p/pager.go's term.IsTerminal(1) check —
// redirected/piped stderr gets the same text without the cosmetic
// framing).
func reportError(err error, label string) {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		fmt.Fprintln(os.Stderr, "----")
		fmt.Fprintf(os.Stderr, "%s: %v\n", label, err)
		fmt.Fprintln(os.Stderr, "----")
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", label, err)
}
