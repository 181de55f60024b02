// Package object implements Fer's heap object model: strings, lists,
// dictionaries, functions, natives, closures, upvalues, classes, instances,
// and bound methods, all sharing a common Header so the collector in
// package gc can thread them on one intrusive allocation list.
package object

import (
	"fmt"
	"strings"

	"github.com/kristofer/fer/internal/chunk"
	"github.com/kristofer/fer/internal/table"
	"github.com/kristofer/fer/internal/value"
)

// Header is embedded by every concrete object type. It carries the mark
// bit and the allocation-list link the collector needs, and satisfies the
// corresponding methods of value.Obj by promotion so individual object
// types don't repeat this bookkeeping.
type Header struct {
	marked bool
	next   value.Obj
}

func (h *Header) IsMarked() bool       { return h.marked }
func (h *Header) SetMarked(m bool)     { h.marked = m }
func (h *Header) NextObj() value.Obj   { return h.next }
func (h *Header) SetNextObj(o value.Obj) { h.next = o }

// String is an immutable interned byte string with a precomputed FNV-1a
// hash.
type String struct {
	Header
	Chars string
	Hash  uint32
}

func (s *String) ObjType() value.ObjType  { return value.ObjString }
func (s *String) Trace(func(value.Value)) {}
func (s *String) String() string          { return s.Chars }

// Bytes and HashCode satisfy table.StringKey without this package ever
// importing table's concrete entry types.
func (s *String) Bytes() []byte   { return []byte(s.Chars) }
func (s *String) HashCode() uint32 { return s.Hash }

// FNV1a32 computes the hash used for every interned string.
func FNV1a32(b []byte) uint32 {
	const offsetBasis = 2166136261
	const prime = 16777619
	h := uint32(offsetBasis)
	for _, c := range b {
		h ^= uint32(c)
		h *= prime
	}
	return h
}

// NewString constructs a raw (not-yet-interned) string object. Callers
// should route through the VM/compiler's shared intern pool rather than
// calling this directly, except that pool's own implementation.
func NewString(s string) *String {
	return &String{Chars: s, Hash: FNV1a32([]byte(s))}
}

// List is a dynamic array of values. Capacity growth is handled by Go's
// append; Elements.cap doubling from 8 happens naturally because NewList
// starts the backing array at that size.
type List struct {
	Header
	Elements []value.Value
}

func NewList() *List {
	return &List{Elements: make([]value.Value, 0, 8)}
}

func (l *List) ObjType() value.ObjType { return value.ObjList }

func (l *List) Trace(mark func(value.Value)) {
	for _, v := range l.Elements {
		mark(v)
	}
}

func (l *List) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range l.Elements {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.String())
	}
	b.WriteByte(']')
	return b.String()
}

// Dict is a dictionary keyed by interned strings, backed directly by the
// open-addressed table.Table used throughout the VM for globals, intern
// pool, instance fields, and class method tables.
type Dict struct {
	Header
	Table *table.Table
}

func NewDict() *Dict {
	return &Dict{Table: table.New()}
}

func (d *Dict) ObjType() value.ObjType { return value.ObjDict }

func (d *Dict) Trace(mark func(value.Value)) {
	d.Table.Each(func(key table.StringKey, v value.Value) {
		if s, ok := key.(value.Obj); ok {
			mark(value.Obj_(s))
		}
		mark(v)
	})
}

func (d *Dict) String() string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	d.Table.Each(func(key table.StringKey, v value.Value) {
		if !first {
			b.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&b, "%s: %s", key.Bytes(), v.String())
	})
	b.WriteByte('}')
	return b.String()
}

// Function is a compiled function prototype: arity, upvalue count, an
// optional name (nil for the top-level script), and its owned Chunk.
type Function struct {
	Header
	Name         *String
	Arity        int
	UpvalueCount int
	Chunk        *chunk.Chunk
}

func NewFunction() *Function {
	return &Function{Chunk: chunk.New()}
}

func (f *Function) ObjType() value.ObjType { return value.ObjFunction }

func (f *Function) Trace(mark func(value.Value)) {
	if f.Name != nil {
		mark(value.Obj_(f.Name))
	}
	for _, c := range f.Chunk.Constants {
		mark(c)
	}
}

func (f *Function) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Chars)
}

// NativeFn is the signature every host-registered callable implements.
type NativeFn func(args []value.Value) (value.Value, error)

// Native wraps a host callable so it can live on the value stack and be
// dispatched by OP_CALL like any other callee.
type Native struct {
	Header
	Name string
	Fn   NativeFn
}

func NewNative(name string, fn NativeFn) *Native {
	return &Native{Name: name, Fn: fn}
}

func (n *Native) ObjType() value.ObjType        { return value.ObjNative }
func (n *Native) Trace(func(value.Value))       {}
func (n *Native) String() string                { return fmt.Sprintf("<native fn %s>", n.Name) }

// Upvalue is a reference to a captured variable: open while it still
// points into a VM stack slot, closed once it owns a copy. Location is
// only meaningful while open; once closed,
// Location is repointed at &Closed so callers keep using the same
// pointer uniformly.
type Upvalue struct {
	Header
	Location *value.Value
	Closed   value.Value
	NextOpen *Upvalue // singly linked open-upvalue list, sorted by descending OpenSlot

	// OpenSlot is the absolute VM stack index Location points at. It's
	// only meaningful while the upvalue is open; the VM's open-upvalue
	// list is kept sorted by this so captureUpvalue/closeUpvalues can
	// find/cut it without doing pointer arithmetic on the stack array.
	OpenSlot int
}

func NewUpvalue(slot *value.Value, slotIndex int) *Upvalue {
	u := &Upvalue{OpenSlot: slotIndex}
	u.Location = slot
	return u
}

func (u *Upvalue) ObjType() value.ObjType { return value.ObjUpvalue }

func (u *Upvalue) Trace(mark func(value.Value)) {
	mark(*u.Location)
}

func (u *Upvalue) String() string { return "<upvalue>" }

// Close copies the current slot value into the upvalue's own storage and
// repoints Location at it, detaching it from the stack.
func (u *Upvalue) Close() {
	u.Closed = *u.Location
	u.Location = &u.Closed
}

// Closure pairs a Function with the upvalues its nested functions capture.
// Upvalues has exactly Function.UpvalueCount entries.
type Closure struct {
	Header
	Function *Function
	Upvalues []*Upvalue
}

func NewClosure(fn *Function) *Closure {
	return &Closure{Function: fn, Upvalues: make([]*Upvalue, fn.UpvalueCount)}
}

func (c *Closure) ObjType() value.ObjType { return value.ObjClosure }

func (c *Closure) Trace(mark func(value.Value)) {
	mark(value.Obj_(c.Function))
	for _, u := range c.Upvalues {
		if u != nil {
			mark(value.Obj_(u))
		}
	}
}

func (c *Closure) String() string { return c.Function.String() }

// Class is a method table keyed by selector name. Inheritance is
// implemented by copying the parent's method table at class-declaration
// time; no runtime superclass pointer is kept except the synthetic
// "super" local used during compilation.
type Class struct {
	Header
	Name    *String
	Methods *table.Table
}

func NewClass(name *String) *Class {
	return &Class{Name: name, Methods: table.New()}
}

func (c *Class) ObjType() value.ObjType { return value.ObjClass }

func (c *Class) Trace(mark func(value.Value)) {
	mark(value.Obj_(c.Name))
	c.Methods.Each(func(_ table.StringKey, v value.Value) {
		mark(v)
	})
}

func (c *Class) String() string { return fmt.Sprintf("<class %s>", c.Name.Chars) }

// Instance is a class reference plus a field table.
type Instance struct {
	Header
	Class  *Class
	Fields *table.Table
}

func NewInstance(class *Class) *Instance {
	return &Instance{Class: class, Fields: table.New()}
}

func (i *Instance) ObjType() value.ObjType { return value.ObjInstance }

func (i *Instance) Trace(mark func(value.Value)) {
	mark(value.Obj_(i.Class))
	i.Fields.Each(func(_ table.StringKey, v value.Value) {
		mark(v)
	})
}

func (i *Instance) String() string { return fmt.Sprintf("<%s instance>", i.Class.Name.Chars) }

// BoundMethod pairs a receiver with a closure, produced when OP_GET_PROPERTY
// resolves a method instead of a field.
type BoundMethod struct {
	Header
	Receiver value.Value
	Method   *Closure
}

func NewBoundMethod(receiver value.Value, method *Closure) *BoundMethod {
	return &BoundMethod{Receiver: receiver, Method: method}
}

func (b *BoundMethod) ObjType() value.ObjType { return value.ObjBoundMethod }

func (b *BoundMethod) Trace(mark func(value.Value)) {
	mark(b.Receiver)
	mark(value.Obj_(b.Method))
}

func (b *BoundMethod) String() string { return b.Method.String() }
