package vm

import (
	"fmt"

	"github.com/kristofer/vela/pkg/object"
	"github.com/kristofer/vela/pkg/value"
)

// approxSize is a fixed per-object accounting unit, the same for every
// kind, used to drive the GC's
// growth trigger (spec §4.7's bytesAllocated/nextGC bookkeeping). Go's
// runtime already owns real memory management; this is a deterministic
// stand-in so collection timing (and VELA_STRESS_GC) is reproducible
// without reaching into unsafe.Sizeof games.
const approxSize = 64

// allocate is the single routing point every heap object passes
// through (spec §9's "one routing procedure"): it may trigger a
// collection before the new object exists (so the collection can never
// see, and therefore never free, the object being allocated), then
// links the object at the head of the sweep list and accounts its
// size.
func (vm *VM) allocate(o object.Obj) {
	vm.maybeCollect()
	o.SetNextObj(vm.objects)
	vm.objects = o
	vm.bytesAllocated += approxSize
}

func (vm *VM) maybeCollect() {
	if vm.stressGC || vm.bytesAllocated > vm.nextGC {
		vm.collectGarbage()
	}
}

func (vm *VM) allocClosure(fn *object.Function) *object.Closure {
	c := object.NewClosure(fn)
	vm.allocate(c)
	return c
}

func (vm *VM) allocClass(name *object.String) *object.Class {
	c := object.NewClass(name)
	vm.allocate(c)
	return c
}

func (vm *VM) allocInstance(class *object.Class) *object.Instance {
	i := object.NewInstance(class)
	vm.allocate(i)
	return i
}

func (vm *VM) allocBoundMethod(recv value.Value, method *object.Closure) *object.BoundMethod {
	b := object.NewBoundMethod(recv, method)
	vm.allocate(b)
	return b
}

func (vm *VM) allocUpvalue(slot *value.Value, index int) *object.Upvalue {
	u := object.NewUpvalue(slot, index)
	vm.allocate(u)
	return u
}

func (vm *VM) allocNative(name string, arity int, fn object.NativeFn) *object.Native {
	n := object.NewNative(name, arity, fn)
	vm.allocate(n)
	return n
}

// internString returns the single String object for the given bytes,
// allocating and registering a new one only the first time those
// bytes are seen (spec §3 Invariant 1, §4.2's intern-by-raw-bytes
// lookup).
func (vm *VM) internString(s string) *object.String {
	hash := object.HashBytes(s)
	if key, ok := vm.strings.FindString(s, hash); ok {
		return key.(*object.String)
	}
	str := object.NewString(s)
	vm.allocate(str)
	vm.strings.Set(str, value.BoolVal(true))
	return str
}

// InternString implements compiler.Heap.
func (vm *VM) InternString(chars string) *object.String {
	return vm.internString(chars)
}

// AllocFunction implements compiler.Heap: every Function the compiler
// builds — the top-level script and every nested func/method — is
// routed through the same allocation accounting as runtime objects.
func (vm *VM) AllocFunction() *object.Function {
	fn := object.NewFunction()
	vm.allocate(fn)
	return fn
}

// PushCompilerRoot and PopCompilerRoot implement compiler.Heap,
// keeping the chain of in-progress function compilations reachable
// from a GC root (spec §9 "Compiler roots") in case a collection runs
// mid-compilation (e.g. while interning a string literal).
func (vm *VM) PushCompilerRoot(fn *object.Function) {
	vm.compilerRoots = append(vm.compilerRoots, fn)
}

func (vm *VM) PopCompilerRoot() {
	vm.compilerRoots = vm.compilerRoots[:len(vm.compilerRoots)-1]
}

// defineNatives registers the built-in globals (spec §6): clock, slen,
// sqrt, str, and gc.
func (vm *VM) defineNatives() {
	vm.defineNative("clock", 0, nativeClock)
	vm.defineNative("slen", 1, vm.nativeSlen)
	vm.defineNative("sqrt", 1, nativeSqrt)
	vm.defineNative("str", 1, vm.nativeStr)
	vm.defineNative("gc", 0, vm.nativeGC)
}

func (vm *VM) defineNative(name string, arity int, fn object.NativeFn) {
	native := vm.allocNative(name, arity, fn)
	vm.globals.Set(vm.internString(name), value.ObjVal(native))
}

// runtimeError constructs and returns a *RuntimeError carrying the
// current call stack's trace, then resets the VM's stacks — runtime
// errors are unrecoverable from the script (spec §7).
func (vm *VM) runtimeError(f *frame, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	err := newRuntimeError(msg, vm.captureStackTrace())
	vm.resetStack()
	return err
}
