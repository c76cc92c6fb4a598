// Package vm implements the stack-based bytecode interpreter: call
// frames, the value stack, global/string tables, native dispatch, the
// tri-color garbage collector, and runtime error reporting (spec
// §4.6-§4.7).
package vm

import (
	"fmt"
	"io"
	"math"

	"github.com/kristofer/vela/pkg/chunk"
	"github.com/kristofer/vela/pkg/compiler"
	"github.com/kristofer/vela/pkg/object"
	"github.com/kristofer/vela/pkg/table"
	"github.com/kristofer/vela/pkg/value"
)

const (
	framesMax = 64
	stackMax  = framesMax * 256
)

// frame is one active call: the closure being executed, its
// instruction pointer, and the base slot its locals are relative to
// (spec §4.6's "Call frame").
type frame struct {
	closure *object.Closure
	ip      int
	base    int
}

// VM is a single-threaded bytecode interpreter. Zero value is not
// usable; construct with New.
type VM struct {
	stack      [stackMax]value.Value
	sp         int
	frames     [framesMax]frame
	frameCount int

	globals *table.Table
	strings *table.Table // intern pool, weakly keyed (spec §4.2's "remove white" table)

	openUpvalues *object.Upvalue // head of the descending-address open list

	// GC bookkeeping (spec §4.7).
	objects        object.Obj // sweep-list head
	bytesAllocated int64
	nextGC         int64
	stressGC       bool
	gcLog          io.Writer

	compilerRoots []*object.Function

	trace io.Writer

	out io.Writer

	nativeErr    bool
	nativeErrMsg string
}

// New constructs a VM with its globals table populated with the
// built-in natives (spec §6) and output directed at w.
func New(out io.Writer) *VM {
	vm := &VM{
		globals: table.New(),
		strings: table.New(),
		nextGC:  1 << 20, // 1MiB floor before the first collection can fire
		out:     out,
	}
	vm.defineNatives()
	return vm
}

// SetTrace enables per-instruction execution tracing to w (nil
// disables it), the runtime counterpart to original_source's
// DEBUG_TRACE_EXECUTION compile flag.
func (vm *VM) SetTrace(w io.Writer) { vm.trace = w }

// SetGCStressMode forces a collection before every allocation when on,
// matching original_source's DEBUG_STRESS_GC flag; used by the GC
// soundness property test (spec §8).
func (vm *VM) SetGCStressMode(on bool) { vm.stressGC = on }

// SetGCLogging enables collection bookkeeping logs to w (nil
// disables), matching original_source's DEBUG_LOG_GC flag.
func (vm *VM) SetGCLogging(w io.Writer) { vm.gcLog = w }

// Interpret compiles and runs source, returning either a
// *compiler.CompileError or a *RuntimeError on failure.
func (vm *VM) Interpret(source string) error {
	fn, err := compiler.Compile(source, vm)
	if err != nil {
		return err
	}

	vm.push(value.ObjVal(fn))
	closure := vm.allocClosure(fn)
	vm.pop()
	vm.push(value.ObjVal(closure))
	vm.frames[0] = frame{closure: closure, ip: 0, base: 0}
	vm.frameCount = 1

	return vm.run()
}

func (vm *VM) push(v value.Value) {
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() value.Value {
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.sp-1-distance]
}

func (vm *VM) resetStack() {
	vm.sp = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

func (vm *VM) currentFrame() *frame { return &vm.frames[vm.frameCount-1] }

func (vm *VM) readByte(f *frame) byte {
	b := f.closure.Function.Chunk.Code[f.ip]
	f.ip++
	return b
}

func (vm *VM) readShort(f *frame) int {
	hi := vm.readByte(f)
	lo := vm.readByte(f)
	return int(hi)<<8 | int(lo)
}

func (vm *VM) readConstant(f *frame) value.Value {
	return f.closure.Function.Chunk.Constants[vm.readByte(f)]
}

func (vm *VM) readString(f *frame) *object.String {
	return vm.readConstant(f).AsObject().(*object.String)
}

// run is the central fetch-decode-execute loop (spec §4.6).
func (vm *VM) run() error {
	f := vm.currentFrame()

	for {
		if vm.trace != nil {
			vm.traceStep(f)
		}

		op := chunk.Op(vm.readByte(f))
		switch op {
		case chunk.OpConstant:
			vm.push(vm.readConstant(f))

		case chunk.OpNull:
			vm.push(value.Nil)
		case chunk.OpTrue:
			vm.push(value.True)
		case chunk.OpFalse:
			vm.push(value.False)

		case chunk.OpPop:
			vm.pop()
		case chunk.OpPopN:
			n := int(vm.readByte(f))
			vm.sp -= n

		case chunk.OpGetLocal:
			slot := int(vm.readByte(f))
			vm.push(vm.stack[f.base+slot])
		case chunk.OpSetLocal:
			slot := int(vm.readByte(f))
			vm.stack[f.base+slot] = vm.peek(0)

		case chunk.OpGetGlobal:
			name := vm.readString(f)
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError(f, "undefined variable '%s'", name.Chars)
			}
			vm.push(v)
		case chunk.OpDefineGlobal:
			name := vm.readString(f)
			vm.globals.Set(name, vm.peek(0))
			vm.pop()
		case chunk.OpSetGlobal:
			name := vm.readString(f)
			if vm.globals.Set(name, vm.peek(0)) {
				vm.globals.Delete(name)
				return vm.runtimeError(f, "undefined variable '%s'", name.Chars)
			}

		case chunk.OpGetUpvalue:
			slot := int(vm.readByte(f))
			vm.push(f.closure.Upvalues[slot].Get())
		case chunk.OpSetUpvalue:
			slot := int(vm.readByte(f))
			f.closure.Upvalues[slot].Set(vm.peek(0))
		case chunk.OpCloseUpvalue:
			vm.closeUpvalues(vm.sp - 1)
			vm.pop()

		case chunk.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.BoolVal(value.Equal(a, b)))
		case chunk.OpNotEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.BoolVal(!value.Equal(a, b)))

		case chunk.OpLess, chunk.OpLessEqual, chunk.OpGreater, chunk.OpGreaterEqual:
			if err := vm.numericCompare(f, op); err != nil {
				return err
			}

		case chunk.OpAdd:
			if err := vm.add(f); err != nil {
				return err
			}
		case chunk.OpSubtract, chunk.OpMultiply, chunk.OpDivide:
			if err := vm.arithmetic(f, op); err != nil {
				return err
			}
		case chunk.OpModulo:
			if err := vm.modulo(f); err != nil {
				return err
			}

		case chunk.OpNegate:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError(f, "operand must be a number")
			}
			vm.push(value.NumberVal(-vm.pop().AsNumber()))
		case chunk.OpNot:
			vm.push(value.BoolVal(!vm.pop().Truthy()))
		case chunk.OpFactorial:
			if err := vm.factorial(f); err != nil {
				return err
			}

		case chunk.OpPrint:
			vm.printValue(vm.pop())

		case chunk.OpJump:
			off := vm.readShort(f)
			f.ip += off
		case chunk.OpJumpIfFalse:
			off := vm.readShort(f)
			if !vm.peek(0).Truthy() {
				f.ip += off
			}
		case chunk.OpLoop:
			off := vm.readShort(f)
			f.ip -= off

		case chunk.OpCall:
			argc := int(vm.readByte(f))
			if err := vm.callValue(vm.peek(argc), argc); err != nil {
				return err
			}
			f = vm.currentFrame()

		case chunk.OpInvoke:
			name := vm.readString(f)
			argc := int(vm.readByte(f))
			if err := vm.invoke(f, name, argc); err != nil {
				return err
			}
			f = vm.currentFrame()

		case chunk.OpClosure:
			fn := vm.readConstant(f).AsObject().(*object.Function)
			upvalues := make([]*object.Upvalue, fn.UpvalueCount)
			for i := range upvalues {
				isLocal := vm.readByte(f)
				index := vm.readByte(f)
				if isLocal != 0 {
					upvalues[i] = vm.captureUpvalue(f.base + int(index))
				} else {
					upvalues[i] = f.closure.Upvalues[index]
				}
			}
			closure := vm.allocClosure(fn)
			copy(closure.Upvalues, upvalues)
			vm.push(value.ObjVal(closure))

		case chunk.OpClass:
			name := vm.readString(f)
			vm.push(value.ObjVal(vm.allocClass(name)))
		case chunk.OpMethod:
			name := vm.readString(f)
			method := vm.pop().AsObject().(*object.Closure)
			class := vm.peek(0).AsObject().(*object.Class)
			class.SetMethod(name, method)

		case chunk.OpGetField:
			if err := vm.getField(f); err != nil {
				return err
			}
		case chunk.OpSetField:
			if err := vm.setField(f); err != nil {
				return err
			}

		case chunk.OpMapIndex:
			if err := vm.mapIndex(f); err != nil {
				return err
			}

		case chunk.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(f.base)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return nil
			}
			vm.sp = f.base
			vm.push(result)
			f = vm.currentFrame()

		default:
			return vm.runtimeError(f, "unknown opcode %d", op)
		}
	}
}

func (vm *VM) printValue(v value.Value) {
	fmt.Fprintln(vm.out, vm.formatValue(v))
}

func (vm *VM) formatValue(v value.Value) string {
	switch {
	case v.IsNull():
		return "null"
	case v.IsBool():
		if v.AsBool() {
			return "true"
		}
		return "false"
	case v.IsNumber():
		return formatNumber(v.AsNumber())
	case v.IsObject():
		return vm.formatObject(v.AsObject().(object.Obj))
	default:
		return ""
	}
}

func formatNumber(n float64) string {
	if value.IsInteger(n) && math.Abs(n) < 1e15 {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}

func (vm *VM) formatObject(o object.Obj) string {
	switch obj := o.(type) {
	case *object.String:
		return obj.Chars
	case *object.Function:
		return "<func " + obj.DisplayName() + ">"
	case *object.Native:
		return "<native " + obj.Name + ">"
	case *object.Closure:
		return "<func " + obj.Function.DisplayName() + ">"
	case *object.Class:
		return obj.Name.Chars
	case *object.Instance:
		return obj.Class.Name.Chars + " instance"
	case *object.BoundMethod:
		return "<func " + obj.Method.Function.DisplayName() + ">"
	default:
		return "<object>"
	}
}
