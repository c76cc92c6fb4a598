package vm

import (
	"github.com/kristofer/vela/pkg/chunk"
	"github.com/kristofer/vela/pkg/object"
	"github.com/kristofer/vela/pkg/value"
)

// add implements OP_ADD's dual contract (spec §4.6): two strings
// concatenate (interned), anything else numeric-adds.
func (vm *VM) add(f *frame) error {
	b := vm.peek(0)
	a := vm.peek(1)

	if a.IsObject() && b.IsObject() {
		as, aok := a.AsObject().(*object.String)
		bs, bok := b.AsObject().(*object.String)
		if aok && bok {
			vm.pop()
			vm.pop()
			vm.push(value.ObjVal(vm.internString(as.Chars + bs.Chars)))
			return nil
		}
	}
	if a.IsNumber() && b.IsNumber() {
		vm.pop()
		vm.pop()
		vm.push(value.NumberVal(a.AsNumber() + b.AsNumber()))
		return nil
	}
	return vm.runtimeError(f, "operands must be two numbers or two strings")
}

func (vm *VM) arithmetic(f *frame, op chunk.Op) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError(f, "operands must be numbers")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	switch op {
	case chunk.OpSubtract:
		vm.push(value.NumberVal(a - b))
	case chunk.OpMultiply:
		vm.push(value.NumberVal(a * b))
	case chunk.OpDivide:
		vm.push(value.NumberVal(a / b))
	}
	return nil
}

func (vm *VM) numericCompare(f *frame, op chunk.Op) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError(f, "operands must be numbers")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	var result bool
	switch op {
	case chunk.OpLess:
		result = a < b
	case chunk.OpLessEqual:
		result = a <= b
	case chunk.OpGreater:
		result = a > b
	case chunk.OpGreaterEqual:
		result = a >= b
	}
	vm.push(value.BoolVal(result))
	return nil
}

// modulo requires both operands to be non-negative integers (spec §9
// Open Question — Vela retains the source's stricter behavior rather
// than loosening it, documented in DESIGN.md).
func (vm *VM) modulo(f *frame) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError(f, "operands must be numbers")
	}
	b := vm.peek(0).AsNumber()
	a := vm.peek(1).AsNumber()
	if !value.IsInteger(a) || !value.IsInteger(b) || a < 0 || b < 0 {
		return vm.runtimeError(f, "'%%' requires non-negative integer operands")
	}
	vm.pop()
	vm.pop()
	vm.push(value.NumberVal(float64(int64(a) % int64(b))))
	return nil
}

// factorial requires a non-negative integer operand (spec §4.6).
func (vm *VM) factorial(f *frame) error {
	if !vm.peek(0).IsNumber() {
		return vm.runtimeError(f, "operand must be a number")
	}
	n := vm.peek(0).AsNumber()
	if !value.IsInteger(n) || n < 0 {
		return vm.runtimeError(f, "'!' requires a non-negative integer operand")
	}
	vm.pop()
	result := 1.0
	for i := 2.0; i <= n; i++ {
		result *= i
	}
	vm.push(value.NumberVal(result))
	return nil
}

// mapIndex implements OP_MAP_INDEX: `s[i]` returns the one-character string
// at index i, failing on a non-string receiver, a non-integer index,
// or an out-of-range index (spec §4.6).
func (vm *VM) mapIndex(f *frame) error {
	idxVal := vm.pop()
	recv := vm.pop()

	s, ok := recv.AsObject().(*object.String)
	if !recv.IsObject() || !ok {
		return vm.runtimeError(f, "only strings can be indexed")
	}
	if !idxVal.IsNumber() || !value.IsInteger(idxVal.AsNumber()) {
		return vm.runtimeError(f, "index must be an integer")
	}
	i := int(idxVal.AsNumber())
	if i < 0 || i >= len(s.Chars) {
		return vm.runtimeError(f, "index out of range")
	}
	vm.push(value.ObjVal(vm.internString(string(s.Chars[i]))))
	return nil
}

// getField resolves an instance field first, falling back to a bound
// method from the instance's class (spec §4.6's GET_FIELD).
func (vm *VM) getField(f *frame) error {
	name := vm.readString(f)
	recvVal := vm.peek(0)
	inst, ok := recvVal.AsObject().(*object.Instance)
	if !recvVal.IsObject() || !ok {
		return vm.runtimeError(f, "only instances have fields")
	}

	if v, ok := inst.Fields.Get(name); ok {
		vm.pop()
		vm.push(v)
		return nil
	}
	if method, ok := inst.Class.Method(name); ok {
		vm.pop()
		vm.push(value.ObjVal(vm.allocBoundMethod(recvVal, method)))
		return nil
	}
	return vm.runtimeError(f, "undefined field '%s'", name.Chars)
}

func (vm *VM) setField(f *frame) error {
	name := vm.readString(f)
	recvVal := vm.peek(1)
	inst, ok := recvVal.AsObject().(*object.Instance)
	if !recvVal.IsObject() || !ok {
		return vm.runtimeError(f, "only instances have fields")
	}
	v := vm.peek(0)
	inst.Fields.Set(name, v)
	vm.pop()
	vm.pop()
	vm.push(v)
	return nil
}
