package vm

import (
	"fmt"

	"github.com/kristofer/vela/pkg/object"
	"github.com/kristofer/vela/pkg/table"
	"github.com/kristofer/vela/pkg/value"
)

// collectGarbage runs one stop-the-world tri-color mark-and-sweep
// cycle (spec §4.7): mark every root and its transitive children grey
// then black, prune the weak string-intern table of anything left
// white, sweep the unmarked objects off the heap list, then grow
// nextGC from the surviving byte count.
func (vm *VM) collectGarbage() {
	if vm.gcLog != nil {
		fmt.Fprintf(vm.gcLog, "-- gc begin (bytesAllocated=%d)\n", vm.bytesAllocated)
	}

	var grey []object.Obj
	grey = vm.markRoots(grey)
	for len(grey) > 0 {
		o := grey[len(grey)-1]
		grey = grey[:len(grey)-1]
		grey = vm.blacken(o, grey)
	}

	vm.strings.RemoveIf(func(k table.Key) bool {
		return k.(*object.String).IsMarked()
	})

	vm.sweep()

	vm.nextGC = vm.bytesAllocated * 2
	if vm.gcLog != nil {
		fmt.Fprintf(vm.gcLog, "-- gc end (bytesAllocated=%d, nextGC=%d)\n", vm.bytesAllocated, vm.nextGC)
	}
}

// markRoots marks every root named in spec §4.7: the live value
// stack, each frame's closure, every open upvalue, the globals table,
// and the chain of in-progress compiler functions.
func (vm *VM) markRoots(grey []object.Obj) []object.Obj {
	for i := 0; i < vm.sp; i++ {
		grey = vm.markValue(vm.stack[i], grey)
	}
	for i := 0; i < vm.frameCount; i++ {
		grey = vm.markObject(vm.frames[i].closure, grey)
	}
	for u := vm.openUpvalues; u != nil; u = u.NextOpen {
		grey = vm.markObject(u, grey)
	}
	vm.globals.Each(func(k table.Key, v value.Value) {
		grey = vm.markObject(k.(*object.String), grey)
		grey = vm.markValue(v, grey)
	})
	for _, fn := range vm.compilerRoots {
		grey = vm.markObject(fn, grey)
	}
	return grey
}

func (vm *VM) markValue(v value.Value, grey []object.Obj) []object.Obj {
	if v.IsObject() {
		return vm.markObject(v.AsObject().(object.Obj), grey)
	}
	return grey
}

// markObject marks o black-pending (grey) if it wasn't already marked,
// enqueuing it so blacken can visit its children. Marking is
// idempotent (spec §3 Invariant 3): an already-marked object is never
// re-enqueued.
func (vm *VM) markObject(o object.Obj, grey []object.Obj) []object.Obj {
	if o == nil || o.IsMarked() {
		return grey
	}
	o.SetMarked(true)
	return append(grey, o)
}

// blacken marks o's direct children, per the per-kind child table in
// spec §4.7.
func (vm *VM) blacken(o object.Obj, grey []object.Obj) []object.Obj {
	switch obj := o.(type) {
	case *object.String, *object.Native:
		// no children
	case *object.Upvalue:
		grey = vm.markValue(obj.Get(), grey)
	case *object.Function:
		if obj.Name != nil {
			grey = vm.markObject(obj.Name, grey)
		}
		for _, c := range obj.Chunk.Constants {
			grey = vm.markValue(c, grey)
		}
	case *object.Closure:
		grey = vm.markObject(obj.Function, grey)
		for _, u := range obj.Upvalues {
			grey = vm.markObject(u, grey)
		}
	case *object.Class:
		grey = vm.markObject(obj.Name, grey)
		obj.Methods.Each(func(k table.Key, v value.Value) {
			grey = vm.markObject(k.(*object.String), grey)
			grey = vm.markValue(v, grey)
		})
	case *object.Instance:
		grey = vm.markObject(obj.Class, grey)
		obj.Fields.Each(func(k table.Key, v value.Value) {
			grey = vm.markObject(k.(*object.String), grey)
			grey = vm.markValue(v, grey)
		})
	case *object.BoundMethod:
		grey = vm.markValue(obj.Receiver, grey)
		grey = vm.markObject(obj.Method, grey)
	}
	return grey
}

// sweep walks the intrusive sweep list, unlinking and discarding any
// object left unmarked (white) and clearing the mark bit on every
// survivor (spec §4.7, §3 Invariant 3).
func (vm *VM) sweep() {
	var prev object.Obj
	cur := vm.objects
	for cur != nil {
		if cur.IsMarked() {
			cur.SetMarked(false)
			prev = cur
			cur = cur.NextObj()
			continue
		}
		unreached := cur
		cur = cur.NextObj()
		if prev != nil {
			prev.SetNextObj(cur)
		} else {
			vm.objects = cur
		}
		vm.bytesAllocated -= approxSize
		_ = unreached // Go's own GC reclaims the memory once unlinked
	}
}
