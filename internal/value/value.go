//go:build !nanbox

// Package value defines Fer's runtime value representation: a small tagged
// union of nil, boolean, number, and heap-object, plus equality, truthiness,
// and printing.
//
// Two layouts are available behind a build tag: the default tagged-struct
// layout in this file, and an optional NaN-boxed 64-bit layout in
// value_nanbox.go (build tag "nanbox"). Both expose the exact same API, so
// every other package in the module is oblivious to which one is active.
package value

import (
	"fmt"
	"math"
	"strconv"
)

// Type identifies which alternative of the tagged union a Value holds.
type Type byte

const (
	Nil Type = iota
	Bool
	Number
	ObjVal
)

// ObjType identifies the concrete variant of a heap object.
type ObjType byte

const (
	ObjString ObjType = iota
	ObjList
	ObjDict
	ObjFunction
	ObjNative
	ObjClosure
	ObjUpvalue
	ObjClass
	ObjInstance
	ObjBoundMethod
)

// Obj is implemented by every heap-allocated object. Types in package object
// implement it; package value never constructs one, it only stores and
// compares them.
//
// Trace reports every Value this object directly references, by invoking
// mark once per child; the collector in package gc uses this for the mark
// phase without either package importing the other's concrete types.
//
// IsMarked/SetMarked and NextObj/SetNextObj back the GC's intrusive
// allocation list and mark bit; object.Header implements them so concrete
// object types get them for free by embedding it.
type Obj interface {
	ObjType() ObjType
	Trace(mark func(Value))
	IsMarked() bool
	SetMarked(bool)
	NextObj() Obj
	SetNextObj(Obj)
}

// Value is Fer's tagged runtime value: nil, a boolean, a 64-bit float, or a
// pointer to a heap object.
type Value struct {
	typ Type
	b   bool
	n   float64
	o   Obj
}

// NilValue is the singleton nil value.
var NilValue = Value{typ: Nil}

func Bool_(b bool) Value { return Value{typ: Bool, b: b} }

func Number_(n float64) Value { return Value{typ: Number, n: n} }

func Obj_(o Obj) Value { return Value{typ: ObjVal, o: o} }

func (v Value) Type() Type   { return v.typ }
func (v Value) IsNil() bool  { return v.typ == Nil }
func (v Value) IsBool() bool { return v.typ == Bool }
func (v Value) IsNumber() bool { return v.typ == Number }
func (v Value) IsObj() bool  { return v.typ == ObjVal }

func (v Value) AsBool() bool    { return v.b }
func (v Value) AsNumber() float64 { return v.n }
func (v Value) AsObj() Obj       { return v.o }

// IsObjType reports whether v holds a heap object of the given variant.
func (v Value) IsObjType(t ObjType) bool {
	return v.typ == ObjVal && v.o.ObjType() == t
}

// IsFalsey implements Fer's truthiness rule: nil and false are falsey,
// everything else (including 0 and "") is truthy.
func (v Value) IsFalsey() bool {
	return v.IsNil() || (v.IsBool() && !v.AsBool())
}

// Equal implements Fer's value equality: nil only equals nil, booleans
// structurally, numbers by IEEE 754 ==, and objects (including strings,
// which are interned) by pointer identity.
func Equal(a, b Value) bool {
	if a.typ != b.typ {
		return false
	}
	switch a.typ {
	case Nil:
		return true
	case Bool:
		return a.b == b.b
	case Number:
		return a.n == b.n
	case ObjVal:
		return a.o == b.o
	default:
		return false
	}
}

// String renders v the way the PRINT opcode and the disassembler do.
// Numbers use the shortest round-tripping decimal representation (%g
// style).
func (v Value) String() string {
	switch v.typ {
	case Nil:
		return "nil"
	case Bool:
		if v.b {
			return "true"
		}
		return "false"
	case Number:
		return formatNumber(v.n)
	case ObjVal:
		return fmt.Sprint(v.o)
	default:
		return "<invalid value>"
	}
}

func formatNumber(n float64) string {
	if math.IsInf(n, 1) {
		return "inf"
	}
	if math.IsInf(n, -1) {
		return "-inf"
	}
	if math.IsNaN(n) {
		return "nan"
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}
