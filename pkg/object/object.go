// Package object implements the heap — every reference type a Vela
// program can allocate: strings, functions, closures, upvalues,
// classes, instances, bound methods, and the native-function trampoline.
//
// Every object shares a common Header (kind tag, sweep-list link, mark
// bit) instead of sitting in a type hierarchy. The garbage collector in
// package vm reaches the mark bit and sweep link through the Obj
// interface; it finds an object's children with a type switch on the
// concrete Go type and does not read Header.Kind.
package object

import (
	"hash/fnv"

	"github.com/kristofer/vela/pkg/chunk"
	"github.com/kristofer/vela/pkg/table"
	"github.com/kristofer/vela/pkg/value"
)

// Kind tags a heap object's concrete type. Small, dense, and ordered
// roughly by how often the GC and VM dispatch on it.
type Kind byte

const (
	KindString Kind = iota
	KindFunction
	KindNative
	KindClosure
	KindUpvalue
	KindClass
	KindInstance
	KindBoundMethod
)

// Header is embedded at the front of every heap object. The sweep list
// is intrusive — Next chains every live allocation in one singly-linked
// list so the collector can walk and free without a side table.
type Header struct {
	Kind   Kind
	Next   Obj // next object in the VM's sweep list
	Marked bool
}

// Obj is the interface satisfied by every heap object. It is the same
// interface package value expects to box inside a Value; object and
// value therefore agree on the contract without importing each other's
// concrete types. The sweep-list link and mark bit are exposed through
// promoted Header methods so the VM's GC (package vm) can walk and
// flip them without a type switch over every concrete object kind —
// only objHeader stays unexported, sealing the interface to this
// package's own types.
type Obj interface {
	value.Obj
	objHeader() *Header
	HeapKind() Kind
	IsMarked() bool
	SetMarked(bool)
	NextObj() Obj
	SetNextObj(Obj)
}

func (h *Header) ObjKind() byte      { return byte(h.Kind) }
func (h *Header) objHeader() *Header { return h }

// HeapKind reports the object's variant tag as a Kind (ObjKind carries
// the same tag as a byte for package value, which must not import
// package object's Kind type).
func (h *Header) HeapKind() Kind { return h.Kind }

func (h *Header) IsMarked() bool   { return h.Marked }
func (h *Header) SetMarked(m bool) { h.Marked = m }
func (h *Header) NextObj() Obj     { return h.Next }
func (h *Header) SetNextObj(o Obj) { h.Next = o }

// String is an immutable, interned UTF-8 byte sequence with a
// precomputed FNV-1a hash (spec §3 Invariant 1). Two String objects
// with equal bytes are always the same object — the table's intern
// pool guarantees it — so value.Equal can compare strings by pointer.
type String struct {
	Header
	Chars    string
	HashCode uint32
}

// HashBytes computes the FNV-1a hash used throughout — by the intern
// table's probe-by-raw-bytes lookup and by String.Hash itself. Using
// the standard library's hash/fnv keeps this a one-line idiomatic call
// instead of a hand-rolled accumulator loop.
func HashBytes(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s)) // hash.Hash32 never errors on Write
	return h.Sum32()
}

// NewString allocates a String header for the given bytes. It does not
// intern — callers go through the VM's string table (package table)
// for that, since interning requires the one shared pool.
func NewString(s string) *String {
	return &String{Header: Header{Kind: KindString}, Chars: s, HashCode: HashBytes(s)}
}

func (s *String) Len() int { return len(s.Chars) }

// Hash and Bytes satisfy table.Key, letting *String be used directly
// as a key in package table's hash map (globals, fields, methods) and
// in the VM's intern pool.
func (s *String) Hash() uint32  { return s.HashCode }
func (s *String) Bytes() string { return s.Chars }

// Function is a compiled, callable unit of code: the script's
// top-level body, or a `func`/method body. Name is nil for the
// implicit top-level script function.
type Function struct {
	Header
	Arity        int
	UpvalueCount int
	Name         *String
	Chunk        *chunk.Chunk
}

func NewFunction() *Function {
	return &Function{Header: Header{Kind: KindFunction}, Chunk: chunk.New()}
}

// DisplayName is what stack traces and `str()` show: the function's
// name, or "<script>" for the implicit top-level function.
func (f *Function) DisplayName() string {
	if f.Name == nil {
		return "<script>"
	}
	return f.Name.Chars
}

// NativeFn is the signature every built-in global function implements.
// On failure it sets the VM's nativeError flag (via the supplied
// setErr callback) and returns a placeholder value — §4.6/§9 require
// that natives signal errors through the side channel rather than a Go
// error return, so OP_CALL can treat native and closure calls
// uniformly.
type NativeFn func(args []value.Value, setErr func(msg string)) value.Value

// Native wraps a NativeFn as a callable heap object.
type Native struct {
	Header
	Name string
	Fn   NativeFn
	Arity int // -1 means variadic / not arity-checked
}

func NewNative(name string, arity int, fn NativeFn) *Native {
	return &Native{Header: Header{Kind: KindNative}, Name: name, Fn: fn, Arity: arity}
}

// Upvalue is a reference cell shared between a closure and the frame
// that created it. While Location is non-nil the upvalue is "open" and
// reads through to the stack slot it points at; Close copies the
// current value into Closed and sets Location to nil, after which Get
// and Set use Closed (spec §3's open/closed lifecycle).
type Upvalue struct {
	Header
	Location *value.Value // points into the VM stack while open; nil once closed
	Closed   value.Value
	Slot     int      // absolute stack index Location points at, while open
	NextOpen *Upvalue // next-lower open upvalue (strictly descending stack address); distinct from Header.Next, the GC sweep-list link
}

// NewUpvalue creates an open upvalue over the stack slot at the given
// absolute index. Slot is tracked alongside the pointer rather than
// derived from it (Go gives no defined pointer-subtraction operator)
// so the VM's open-upvalue list can compare addresses by plain integer
// order.
func NewUpvalue(slot *value.Value, index int) *Upvalue {
	return &Upvalue{Header: Header{Kind: KindUpvalue}, Location: slot, Slot: index}
}

func (u *Upvalue) IsOpen() bool { return u.Location != nil }

// Close copies the pointed-to value into the upvalue itself and
// detaches it from the stack slot. After Close, reads and writes go
// through Closed instead of Location.
func (u *Upvalue) Close() {
	u.Closed = *u.Location
	u.Location = nil
}

// Get returns the upvalue's current value, open or closed.
func (u *Upvalue) Get() value.Value {
	if u.Location != nil {
		return *u.Location
	}
	return u.Closed
}

// Set writes through an open upvalue's stack slot, or into Closed once
// closed.
func (u *Upvalue) Set(v value.Value) {
	if u.Location != nil {
		*u.Location = v
		return
	}
	u.Closed = v
}

// Closure pairs a Function with the concrete upvalue references it
// captured at creation time. Its Upvalues slice always has length
// equal to Function.UpvalueCount (spec §3 Invariant 5).
type Closure struct {
	Header
	Function *Function
	Upvalues []*Upvalue
}

func NewClosure(fn *Function) *Closure {
	return &Closure{Header: Header{Kind: KindClosure}, Function: fn, Upvalues: make([]*Upvalue, fn.UpvalueCount)}
}

// Class is a named method table, backed by package table's
// open-addressing map (spec §4.2) keyed by method-name String. There is
// no inheritance between user classes (spec Non-goals).
type Class struct {
	Header
	Name    *String
	Methods *table.Table
}

func NewClass(name *String) *Class {
	return &Class{Header: Header{Kind: KindClass}, Name: name, Methods: table.New()}
}

// Method looks up a method by name, returning the Closure if present.
func (c *Class) Method(name *String) (*Closure, bool) {
	v, ok := c.Methods.Get(name)
	if !ok {
		return nil, false
	}
	return v.AsObject().(*Closure), true
}

// SetMethod installs a method closure under name.
func (c *Class) SetMethod(name *String, closure *Closure) {
	c.Methods.Set(name, value.ObjVal(closure))
}

// Instance is a live object: a reference to its Class plus an
// open-ended field table (package table) keyed by interned field-name
// strings.
type Instance struct {
	Header
	Class  *Class
	Fields *table.Table
}

func NewInstance(class *Class) *Instance {
	return &Instance{Header: Header{Kind: KindInstance}, Class: class, Fields: table.New()}
}

// BoundMethod packages a receiver together with the Closure a GET_FIELD
// resolved to (because the name hit the class's method table rather
// than an instance field). Calling a BoundMethod is equivalent to
// calling its Closure with the receiver installed as slot 0.
type BoundMethod struct {
	Header
	Receiver value.Value
	Method   *Closure
}

func NewBoundMethod(receiver value.Value, method *Closure) *BoundMethod {
	return &BoundMethod{Header: Header{Kind: KindBoundMethod}, Receiver: receiver, Method: method}
}
