package compiler

import (
	"fmt"
	"strings"
	"testing"

	"github.com/kristofer/vela/pkg/object"
)

// fakeHeap is a minimal compiler.Heap for exercising the compiler in
// isolation from package vm: a plain map-backed intern cache stands in
// for the VM's weak string table, and compiler roots are recorded but
// never walked (there's no GC running during these tests).
type fakeHeap struct {
	strings map[string]*object.String
	roots   []*object.Function
}

func newFakeHeap() *fakeHeap { return &fakeHeap{strings: map[string]*object.String{}} }

func (h *fakeHeap) InternString(s string) *object.String {
	if existing, ok := h.strings[s]; ok {
		return existing
	}
	str := object.NewString(s)
	h.strings[s] = str
	return str
}

func (h *fakeHeap) AllocFunction() *object.Function { return object.NewFunction() }
func (h *fakeHeap) PushCompilerRoot(fn *object.Function) { h.roots = append(h.roots, fn) }
func (h *fakeHeap) PopCompilerRoot()                     { h.roots = h.roots[:len(h.roots)-1] }

func compileOK(t *testing.T, src string) *object.Function {
	t.Helper()
	fn, err := Compile(src, newFakeHeap())
	if err != nil {
		t.Fatalf("Compile(%q) returned unexpected error: %v", src, err)
	}
	return fn
}

func compileErr(t *testing.T, src string) error {
	t.Helper()
	_, err := Compile(src, newFakeHeap())
	if err == nil {
		t.Fatalf("Compile(%q) succeeded, want an error", src)
	}
	return err
}

func TestCompileSimpleArithmetic(t *testing.T) {
	fn := compileOK(t, "print 1 + 2 * 3;")
	if fn.Chunk.Len() == 0 {
		t.Fatal("expected non-empty bytecode")
	}
}

func TestCompileStringInterning(t *testing.T) {
	heap := newFakeHeap()
	_, err := Compile(`let a = "hi"; let b = "hi";`, heap)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	// The global names "a" and "b" are interned too, so the two "hi"
	// literals sharing one entry leave exactly 3 distinct strings.
	if len(heap.strings) != 3 {
		t.Fatalf("two equal string literals should intern to one entry, got %d distinct strings, want 3 (a, b, hi)", len(heap.strings))
	}
}

func TestCompileClosuresAndClasses(t *testing.T) {
	compileOK(t, `
		func mk() {
			let count = 0;
			func inc() {
				count = count + 1;
				return count;
			}
			return inc;
		}
	`)
	compileOK(t, `
		class Pair {
			Pair(a, b) {
				this.a = a;
				this.b = b;
			}
			sum() {
				return this.a + this.b;
			}
		}
		let p = Pair(1, 2);
		print p.sum();
	`)
}

func TestCompileForLoopDesugars(t *testing.T) {
	compileOK(t, `
		let total = 0;
		for (let i = 0; i < 5; i = i + 1) {
			total = total + i;
		}
		print total;
	`)
}

func TestCompileErrorsReportAndRecover(t *testing.T) {
	cases := map[string]string{
		"unexpected token":              "let = 1;",
		"use in own initializer":        "{ let a = a; }",
		"break outside loop":            "break;",
		"return outside function":       "return 1;",
		"invalid assignment target":     "1 = 2;",
		"return value from initializer": "class C { C() { return 1; } }",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			compileErr(t, src)
		})
	}
}

func TestCompileDuplicateLocal(t *testing.T) {
	compileErr(t, "{ let x = 1; let x = 2; }")
}

// TestCompile255ParametersOK and TestCompile256ParametersIsError check
// spec §8's boundary behavior around the one-byte arity operand.
func TestCompile255ParametersOK(t *testing.T) {
	compileOK(t, "func f("+paramList(255)+") { return 0; }")
}

func TestCompile256ParametersIsError(t *testing.T) {
	compileErr(t, "func f("+paramList(256)+") { return 0; }")
}

func paramList(n int) string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("p%d", i)
	}
	return strings.Join(names, ", ")
}

// TestCompile256ConstantsOK and TestCompile257ConstantsIsError mirror
// the same boundary for the chunk's one-byte constant-pool operand.
func TestCompile256ConstantsOK(t *testing.T) {
	compileOK(t, numberStatements(256))
}

func TestCompile257ConstantsIsError(t *testing.T) {
	compileErr(t, numberStatements(257))
}

func numberStatements(n int) string {
	var b strings.Builder
	// Each literal is a fresh constant-pool entry (numbers aren't interned).
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "print %d.5;\n", i)
	}
	return b.String()
}
