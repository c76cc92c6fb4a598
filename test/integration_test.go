// Package test provides end-to-end integration tests for vela: each
// test compiles and runs a complete script through the public
// vm.VM.Interpret entry point, the same path cmd/vela drives.
package test

import (
	"bytes"
	"testing"

	"github.com/kristofer/vela/pkg/compiler"
	"github.com/kristofer/vela/pkg/vm"
)

func interpret(t *testing.T, source string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	machine := vm.New(&out)
	err := machine.Interpret(source)
	return out.String(), err
}

func TestArithmeticOperatorPrecedence(t *testing.T) {
	out, err := interpret(t, "print 1 + 2 * 3;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "7\n" {
		t.Errorf("got %q, want %q", out, "7\n")
	}
}

func TestStringConcatenationLaw(t *testing.T) {
	out, err := interpret(t, `print "a"+"b"+"c";`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "abc\n" {
		t.Errorf("got %q, want %q", out, "abc\n")
	}
}

func TestClosureCounterExample(t *testing.T) {
	src := `
		func mk() {
			let count = 0;
			func inc() {
				count = count + 1;
				return count;
			}
			return inc;
		}
		let counter = mk();
		print counter();
		print counter();
	`
	out, err := interpret(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "1\n2\n" {
		t.Errorf("got %q, want %q", out, "1\n2\n")
	}
}

func TestClassWithInitializerAndMethod(t *testing.T) {
	src := `
		class Pair {
			Pair(a, b) {
				this.a = a;
				this.b = b;
			}
			sum() {
				return this.a + this.b;
			}
		}
		let p = Pair(2, 5);
		print p.sum();
	`
	out, err := interpret(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "7\n" {
		t.Errorf("got %q, want %q", out, "7\n")
	}
}

func TestDesugaredForLoopSummation(t *testing.T) {
	src := `
		let total = 0;
		for (let i = 0; i < 10; i = i + 1) {
			total = total + i;
		}
		print total;
	`
	out, err := interpret(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "45\n" {
		t.Errorf("got %q, want %q", out, "45\n")
	}
}

func TestUninitializedLetIsNullThenUndefinedGlobalErrors(t *testing.T) {
	out, err := interpret(t, "let x; print x;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "null\n" {
		t.Errorf("got %q, want %q", out, "null\n")
	}

	_, err = interpret(t, "print y;")
	if err == nil {
		t.Fatal("expected a runtime error referencing an undefined global")
	}
	if _, ok := err.(*vm.RuntimeError); !ok {
		t.Fatalf("error type = %T, want *vm.RuntimeError", err)
	}
}

func TestBreakOutsideLoopIsCompileError(t *testing.T) {
	_, err := interpret(t, "break;")
	if err == nil {
		t.Fatal("expected a compile error")
	}
	if _, ok := err.(*compiler.CompileError); !ok {
		t.Fatalf("error type = %T, want *compiler.CompileError", err)
	}
}

func TestAndShortCircuits(t *testing.T) {
	src := `
		func boom() { return undefinedThing; }
		print false and boom();
		print true and "right side";
	`
	out, err := interpret(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "false\nright side\n" {
		t.Errorf("got %q, want %q", out, "false\nright side\n")
	}
}

func TestOrShortCircuits(t *testing.T) {
	src := `
		func boom() { return undefinedThing; }
		print true or boom();
	`
	out, err := interpret(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "true\n" {
		t.Errorf("got %q, want %q", out, "true\n")
	}
}

func TestStrFormatsEveryPrimitiveKind(t *testing.T) {
	cases := map[string]string{
		"true":  "true\n",
		"false": "false\n",
		"null":  "null\n",
		"0":     "0\n",
		"1":     "1\n",
		"-1":    "-1\n",
		"3.5":   "3.5\n",
	}
	for expr, want := range cases {
		out, err := interpret(t, "print str("+expr+");")
		if err != nil {
			t.Fatalf("str(%s): unexpected error: %v", expr, err)
		}
		if out != want {
			t.Errorf("str(%s) = %q, want %q", expr, out, want)
		}
	}
}

func TestBuiltinNatives(t *testing.T) {
	out, err := interpret(t, "print slen(\"hello\");")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "5\n" {
		t.Errorf("slen: got %q, want %q", out, "5\n")
	}

	out, err = interpret(t, "print sqrt(16);")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "4\n" {
		t.Errorf("sqrt: got %q, want %q", out, "4\n")
	}
}
