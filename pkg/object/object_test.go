package object

import (
	"testing"

	"github.com/kristofer/vela/pkg/value"
)

// Regression test for the constructor bug caught during review: every
// New* constructor must set Header.Kind explicitly, since Go's zero
// value for Kind (KindString) would otherwise silently mistag every
// other object kind for GC dispatch.
func TestConstructorsSetDistinctKind(t *testing.T) {
	name := NewString("Point")
	fn := NewFunction()
	native := NewNative("clock", 0, nil)
	closure := NewClosure(fn)
	class := NewClass(name)
	instance := NewInstance(class)
	bound := NewBoundMethod(value.ObjVal(instance), closure)
	upvalue := NewUpvalue(nil, 0)

	cases := []struct {
		name string
		obj  Obj
		want Kind
	}{
		{"String", name, KindString},
		{"Function", fn, KindFunction},
		{"Native", native, KindNative},
		{"Closure", closure, KindClosure},
		{"Class", class, KindClass},
		{"Instance", instance, KindInstance},
		{"BoundMethod", bound, KindBoundMethod},
		{"Upvalue", upvalue, KindUpvalue},
	}
	for _, c := range cases {
		if got := c.obj.HeapKind(); got != c.want {
			t.Errorf("%s.HeapKind() = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestMarkBitAndSweepLink(t *testing.T) {
	s := NewString("x")
	if s.IsMarked() {
		t.Fatal("new object should start unmarked")
	}
	s.SetMarked(true)
	if !s.IsMarked() {
		t.Fatal("SetMarked(true) did not stick")
	}

	other := NewString("y")
	s.SetNextObj(other)
	if s.NextObj() != Obj(other) {
		t.Fatal("NextObj did not return the linked object")
	}
}

func TestStringInternKeyContract(t *testing.T) {
	s := NewString("hello")
	if s.Bytes() != "hello" {
		t.Errorf("Bytes() = %q, want %q", s.Bytes(), "hello")
	}
	if s.Hash() != HashBytes("hello") {
		t.Error("Hash() does not match HashBytes of the same content")
	}
}

func TestFunctionDisplayName(t *testing.T) {
	fn := NewFunction()
	if got := fn.DisplayName(); got != "<script>" {
		t.Errorf("anonymous function DisplayName() = %q, want <script>", got)
	}
	fn.Name = NewString("add")
	if got := fn.DisplayName(); got != "add" {
		t.Errorf("named function DisplayName() = %q, want add", got)
	}
}

func TestUpvalueOpenCloseLifecycle(t *testing.T) {
	var slot = value.NumberVal(3)
	u := NewUpvalue(&slot, 2)
	if !u.IsOpen() {
		t.Fatal("fresh upvalue should be open")
	}
	if u.Slot != 2 {
		t.Errorf("Slot = %d, want 2", u.Slot)
	}
	if u.Get() != slot {
		t.Error("open upvalue Get() should read through Location")
	}

	slot = value.NumberVal(9)
	if u.Get() != slot {
		t.Error("open upvalue should observe writes to its stack slot")
	}

	u.Close()
	if u.IsOpen() {
		t.Fatal("upvalue should be closed after Close()")
	}
	if u.Get() != slot {
		t.Error("closed upvalue should retain the value at close time")
	}
}

func TestClassMethodTable(t *testing.T) {
	name := NewString("Counter")
	class := NewClass(name)
	methodName := NewString("bump")
	fn := NewFunction()
	closure := NewClosure(fn)

	if _, ok := class.Method(methodName); ok {
		t.Fatal("unset method should not be found")
	}
	class.SetMethod(methodName, closure)
	got, ok := class.Method(methodName)
	if !ok || got != closure {
		t.Fatal("SetMethod/Method round-trip failed")
	}
}
