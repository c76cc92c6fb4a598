package vm

import (
	"github.com/kristofer/vela/pkg/object"
	"github.com/kristofer/vela/pkg/value"
)

// callValue implements OP_CALL's dispatch table (spec §4.6): closures
// get a new frame, natives run inline, classes construct an instance
// (routing through its initializer if one exists), and bound methods
// rebind slot 0 to the stored receiver before calling through.
func (vm *VM) callValue(callee value.Value, argc int) error {
	f := vm.currentFrame()
	if !callee.IsObject() {
		return vm.runtimeError(f, "can only call functions and classes")
	}

	switch obj := callee.AsObject().(type) {
	case *object.Closure:
		return vm.callClosure(obj, argc)

	case *object.Native:
		return vm.callNative(obj, argc)

	case *object.Class:
		instance := vm.allocInstance(obj)
		vm.stack[vm.sp-argc-1] = value.ObjVal(instance)
		if init, ok := obj.Method(obj.Name); ok {
			return vm.callClosure(init, argc)
		}
		if argc != 0 {
			return vm.runtimeError(f, "expected 0 arguments but got %d", argc)
		}
		return nil

	case *object.BoundMethod:
		vm.stack[vm.sp-argc-1] = obj.Receiver
		return vm.callClosure(obj.Method, argc)

	default:
		return vm.runtimeError(f, "can only call functions and classes")
	}
}

func (vm *VM) callClosure(closure *object.Closure, argc int) error {
	f := vm.currentFrame()
	if argc != closure.Function.Arity {
		return vm.runtimeError(f, "expected %d arguments but got %d", closure.Function.Arity, argc)
	}
	if vm.frameCount == framesMax {
		return vm.runtimeError(f, "stack overflow")
	}
	vm.frames[vm.frameCount] = frame{closure: closure, ip: 0, base: vm.sp - argc - 1}
	vm.frameCount++
	return nil
}

func (vm *VM) callNative(native *object.Native, argc int) error {
	f := vm.currentFrame()
	if native.Arity >= 0 && argc != native.Arity {
		return vm.runtimeError(f, "expected %d arguments but got %d", native.Arity, argc)
	}
	args := vm.stack[vm.sp-argc : vm.sp]
	vm.nativeErr = false
	vm.nativeErrMsg = ""
	result := native.Fn(args, func(msg string) {
		vm.nativeErr = true
		vm.nativeErrMsg = msg
	})
	if vm.nativeErr {
		msg := vm.nativeErrMsg
		vm.nativeErr = false
		return vm.runtimeError(f, "%s", msg)
	}
	vm.sp -= argc + 1
	vm.push(result)
	return nil
}

// invoke fuses "get method or field, then call" into one step
// (spec §4.6's OP_INVOKE), falling back to ordinary callValue when the
// looked-up field holds some other callable (field lookup wins over
// the method table, per spec).
func (vm *VM) invoke(f *frame, name *object.String, argc int) error {
	recvVal := vm.peek(argc)
	inst, ok := recvVal.AsObject().(*object.Instance)
	if !recvVal.IsObject() || !ok {
		return vm.runtimeError(f, "only instances have methods")
	}

	if field, ok := inst.Fields.Get(name); ok {
		vm.stack[vm.sp-argc-1] = field
		return vm.callValue(field, argc)
	}

	method, ok := inst.Class.Method(name)
	if !ok {
		return vm.runtimeError(f, "undefined field '%s'", name.Chars)
	}
	return vm.callClosure(method, argc)
}

// captureUpvalue returns an open upvalue for the stack slot at
// absolute index slot, reusing an existing one if the open list
// already has it, and otherwise inserting a fresh one while preserving
// the descending-address invariant (spec §3 Invariant 4, §4.6).
func (vm *VM) captureUpvalue(slot int) *object.Upvalue {
	var prev *object.Upvalue
	cur := vm.openUpvalues
	for cur != nil && cur.Slot > slot {
		prev = cur
		cur = cur.NextOpen
	}
	if cur != nil && cur.Slot == slot {
		return cur
	}

	created := vm.allocUpvalue(&vm.stack[slot], slot)
	created.NextOpen = cur
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.NextOpen = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above the absolute
// slot index cutoff (spec §4.6's RETURN/CLOSE_UPV behavior).
func (vm *VM) closeUpvalues(cutoff int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Slot >= cutoff {
		u := vm.openUpvalues
		u.Close()
		vm.openUpvalues = u.NextOpen
	}
}
