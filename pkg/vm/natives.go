package vm

import (
	"math"
	"time"

	"github.com/kristofer/vela/pkg/object"
	"github.com/kristofer/vela/pkg/value"
)

// The built-in globals (spec §6). Each is deliberately trivial — the
// spec lists them as external collaborators out of scope for
// correctness — but they still follow the teacher's native-function
// convention: signal failure through setErr and return a placeholder,
// never a Go error (spec §9).

func nativeClock(args []value.Value, setErr func(string)) value.Value {
	return value.NumberVal(float64(time.Now().UnixNano()) / 1e9)
}

func (vm *VM) nativeSlen(args []value.Value, setErr func(string)) value.Value {
	s, ok := args[0].AsObject().(*object.String)
	if !args[0].IsObject() || !ok {
		setErr("slen() requires a string argument")
		return value.Nil
	}
	return value.NumberVal(float64(len(s.Chars)))
}

func nativeSqrt(args []value.Value, setErr func(string)) value.Value {
	if !args[0].IsNumber() {
		setErr("sqrt() requires a number argument")
		return value.Nil
	}
	n := args[0].AsNumber()
	if n < 0 {
		setErr("sqrt() of a negative number")
		return value.Nil
	}
	return value.NumberVal(math.Sqrt(n))
}

// nativeStr formats null/bool/number the same way OP_PRINT does;
// formatting an object is a NativeError (spec §6).
func (vm *VM) nativeStr(args []value.Value, setErr func(string)) value.Value {
	v := args[0]
	if v.IsObject() {
		setErr("str() does not accept object values")
		return value.Nil
	}
	return value.ObjVal(vm.internString(vm.formatValue(v)))
}

func (vm *VM) nativeGC(args []value.Value, setErr func(string)) value.Value {
	vm.collectGarbage()
	return value.Nil
}
