// Package vm implements Fer's stack-based bytecode interpreter: call
// frames, the value stack, globals, the dispatch loop, and the GC trigger
// points.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/kristofer/fer/internal/chunk"
	"github.com/kristofer/fer/internal/compiler"
	"github.com/kristofer/fer/internal/fererr"
	"github.com/kristofer/fer/internal/gc"
	"github.com/kristofer/fer/internal/object"
	"github.com/kristofer/fer/internal/table"
	"github.com/kristofer/fer/internal/value"
)

const (
	maxFrames  = 64
	stackSize  = maxFrames * 256
)

// InterpretResult reports whether Interpret succeeded, failed to compile,
// or raised a runtime error partway through execution.
type InterpretResult int

const (
	InterpretOK InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

// frame is one active call: the closure being executed, the instruction
// pointer into its chunk, and the base of its window into the value stack.
type frame struct {
	closure *object.Closure
	ip      int
	slots   int // index into vm.stack where this frame's window begins
}

// VM is a single-threaded Fer interpreter instance. All execution happens
// synchronously on the goroutine that calls Interpret; there is no
// concurrent mutation of any VM state.
type VM struct {
	frames     [maxFrames]frame
	frameCount int

	stack    [stackSize]value.Value
	stackTop int

	globals          *table.Table
	permanentGlobals map[*object.String]bool

	strings *object.Pool
	gc      *gc.Collector

	openUpvalues *object.Upvalue // sorted by descending slot index

	initString *object.String

	// Trace, if non-nil, is called before each instruction with the
	// current chunk and offset, for the disassembler.
	Trace func(c *chunk.Chunk, offset int)
	// StressGC, when true, forces a collection after every executed
	// instruction instead of only when ShouldCollect reports the threshold
	// crossed (-stress-gc). Allocations made within one instruction are not
	// separated by a collection.
	StressGC bool

	Stdout io.Writer
}

// New constructs a VM with empty globals and a fresh intern pool.
func New() *VM {
	strings := object.NewPool()
	collector := gc.New(strings)
	v := &VM{
		globals:          table.New(),
		permanentGlobals: make(map[*object.String]bool),
		strings:          strings,
		gc:               collector,
		Stdout:           os.Stdout,
	}
	strings.OnAlloc = func(o value.Obj) { collector.Track(o, 32) }
	v.initString = strings.Intern("init")
	return v
}

// Roots implements gc.RootSource: every value stack slot in use, every
// active closure, every open upvalue, both globals tables, and the
// cached init string.
func (v *VM) Roots(mark func(value.Value)) {
	for i := 0; i < v.stackTop; i++ {
		mark(v.stack[i])
	}
	for i := 0; i < v.frameCount; i++ {
		mark(value.Obj_(v.frames[i].closure))
	}
	for uv := v.openUpvalues; uv != nil; uv = uv.NextOpen {
		mark(value.Obj_(uv))
	}
	v.globals.Each(func(key table.StringKey, val value.Value) {
		if s, ok := key.(value.Obj); ok {
			mark(value.Obj_(s))
		}
		mark(val)
	})
	for s := range v.permanentGlobals {
		mark(value.Obj_(s))
	}
	if v.initString != nil {
		mark(value.Obj_(v.initString))
	}
}

// SetGCLogFn installs a logging callback the collector invokes around
// every collection cycle, for the "-gc-log" driver flag.
func (v *VM) SetGCLogFn(fn func(format string, args ...any)) {
	v.gc.LogFn = fn
}

// DefineNative publishes a host callable into the globals table.
func (v *VM) DefineNative(name string, fn object.NativeFn) {
	nameObj := v.strings.Intern(name)
	native := gc.Alloc(v.gc, object.NewNative(name, fn), 40)
	v.globals.Set(nameObj, value.Obj_(native))
}

// InternString returns the canonical *object.String for s, routing through
// the VM's own intern pool and GC tracking. Natives marshal Go strings
// into Fer values through this rather than constructing object.String
// directly, so every string a native produces is interned and GC-tracked
// like any string literal.
func (v *VM) InternString(s string) *object.String {
	return v.strings.Intern(s)
}

// NewList allocates a tracked, empty *object.List for a native to fill in.
func (v *VM) NewList() *object.List {
	return gc.Alloc(v.gc, object.NewList(), 48)
}

// NewDict allocates a tracked, empty *object.Dict for a native to fill in.
func (v *VM) NewDict() *object.Dict {
	return gc.Alloc(v.gc, object.NewDict(), 48)
}

// Interpret compiles and runs source in one call.
func (v *VM) Interpret(source string) InterpretResult {
	fn, errs := compiler.Compile(source, v.strings, v.gc)
	if errs != nil {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e)
		}
		return InterpretCompileError
	}
	return v.InterpretFunction(fn)
}

// InterpretFunction runs an already-compiled top-level function, skipping
// the parse/compile stage entirely. This is the path "fer run" takes for
// a .ferc file: decode straight to an *object.Function and hand it here.
func (v *VM) InterpretFunction(fn *object.Function) InterpretResult {
	closure := gc.Alloc(v.gc, object.NewClosure(fn), 64)
	v.push(value.Obj_(closure))
	v.callValue(value.Obj_(closure), 0)

	if err := v.run(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		v.resetStack()
		return InterpretRuntimeError
	}
	return InterpretOK
}

func (v *VM) resetStack() {
	v.stackTop = 0
	v.frameCount = 0
	v.openUpvalues = nil
}

func (v *VM) push(val value.Value) {
	v.stack[v.stackTop] = val
	v.stackTop++
}

func (v *VM) pop() value.Value {
	v.stackTop--
	return v.stack[v.stackTop]
}

func (v *VM) peek(distance int) value.Value {
	return v.stack[v.stackTop-1-distance]
}

func (v *VM) runtimeError(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	frames := make([]fererr.Frame, 0, v.frameCount)
	for i := 0; i < v.frameCount; i++ {
		fr := &v.frames[i]
		fn := fr.closure.Function
		line := 0
		if fr.ip-1 >= 0 && fr.ip-1 < len(fn.Chunk.Lines) {
			line = fn.Chunk.Lines[fr.ip-1]
		}
		name := "script"
		if fn.Name != nil {
			name = fn.Name.Chars
		}
		frames = append(frames, fererr.Frame{Name: name, Line: line})
	}
	return fererr.New(msg, frames)
}

func isFalsey(v value.Value) bool { return v.IsFalsey() }

func valuesEqual(a, b value.Value) bool { return value.Equal(a, b) }

// run is the dispatch loop: a switch over every opcode, executed until a
// top-level OP_RETURN or a runtime error unwinds it.
func (v *VM) run() error {
	fr := &v.frames[v.frameCount-1]

	readByte := func() byte {
		b := fr.closure.Function.Chunk.Code[fr.ip]
		fr.ip++
		return b
	}
	readShort := func() int {
		hi := fr.closure.Function.Chunk.Code[fr.ip]
		lo := fr.closure.Function.Chunk.Code[fr.ip+1]
		fr.ip += 2
		return int(hi)<<8 | int(lo)
	}
	readConstant := func() value.Value {
		return fr.closure.Function.Chunk.Constants[readByte()]
	}
	readString := func() *object.String {
		return readConstant().AsObj().(*object.String)
	}

	for {
		if v.Trace != nil {
			v.Trace(fr.closure.Function.Chunk, fr.ip)
		}

		op := chunk.Op(readByte())
		switch op {
		case chunk.OpConstant:
			v.push(readConstant())

		case chunk.OpNil:
			v.push(value.NilValue)
		case chunk.OpTrue:
			v.push(value.Bool_(true))
		case chunk.OpFalse:
			v.push(value.Bool_(false))
		case chunk.OpPop:
			v.pop()

		case chunk.OpGetLocal:
			slot := int(readByte())
			v.push(v.stack[fr.slots+slot])
		case chunk.OpSetLocal:
			slot := int(readByte())
			v.stack[fr.slots+slot] = v.peek(0)

		case chunk.OpGetGlobal:
			name := readString()
			val, ok := v.globals.Get(name)
			if !ok {
				return v.runtimeError("Undefined variable '%s'.", name.Chars)
			}
			v.push(val)
		case chunk.OpSetGlobal:
			name := readString()
			if v.permanentGlobals[name] {
				return v.runtimeError("Cannot reassign permanent variable '%s'.", name.Chars)
			}
			if _, ok := v.globals.Get(name); !ok {
				return v.runtimeError("Undefined variable '%s'.", name.Chars)
			}
			v.globals.Set(name, v.peek(0))
		case chunk.OpDefineGlobal:
			name := readString()
			v.globals.Set(name, v.peek(0))
			v.pop()
		case chunk.OpDefineGlobalPerm:
			name := readString()
			v.globals.Set(name, v.peek(0))
			v.permanentGlobals[name] = true
			v.pop()

		case chunk.OpGetUpvalue:
			slot := int(readByte())
			v.push(*fr.closure.Upvalues[slot].Location)
		case chunk.OpSetUpvalue:
			slot := int(readByte())
			*fr.closure.Upvalues[slot].Location = v.peek(0)

		case chunk.OpGetProperty:
			if err := v.getProperty(readString()); err != nil {
				return err
			}
		case chunk.OpSetProperty:
			if err := v.setProperty(readString()); err != nil {
				return err
			}
		case chunk.OpGetSuper:
			name := readString()
			superclass := v.pop().AsObj().(*object.Class)
			receiver := v.pop()
			if err := v.bindMethod(superclass, receiver, name); err != nil {
				return err
			}

		case chunk.OpGetItem:
			if err := v.getItem(); err != nil {
				return err
			}
		case chunk.OpSetItem:
			if err := v.setItem(); err != nil {
				return err
			}

		case chunk.OpEqual:
			b := v.pop()
			a := v.pop()
			v.push(value.Bool_(valuesEqual(a, b)))
		case chunk.OpGreater:
			if err := v.binaryNumeric(func(a, b float64) value.Value { return value.Bool_(a > b) }); err != nil {
				return err
			}
		case chunk.OpLess:
			if err := v.binaryNumeric(func(a, b float64) value.Value { return value.Bool_(a < b) }); err != nil {
				return err
			}

		case chunk.OpAdd:
			if err := v.add(); err != nil {
				return err
			}
		case chunk.OpSubtract:
			if err := v.binaryNumeric(func(a, b float64) value.Value { return value.Number_(a - b) }); err != nil {
				return err
			}
		case chunk.OpMultiply:
			if err := v.binaryNumeric(func(a, b float64) value.Value { return value.Number_(a * b) }); err != nil {
				return err
			}
		case chunk.OpDivide:
			if err := v.binaryNumeric(func(a, b float64) value.Value { return value.Number_(a / b) }); err != nil {
				return err
			}

		case chunk.OpNot:
			v.push(value.Bool_(isFalsey(v.pop())))
		case chunk.OpNegate:
			if !v.peek(0).IsNumber() {
				return v.runtimeError("Operand must be a number.")
			}
			v.push(value.Number_(-v.pop().AsNumber()))

		case chunk.OpPrint:
			fmt.Fprintln(v.Stdout, v.pop().String())

		case chunk.OpJump:
			offset := readShort()
			fr.ip += offset
		case chunk.OpJumpIfFalse:
			offset := readShort()
			if isFalsey(v.peek(0)) {
				fr.ip += offset
			}
		case chunk.OpLoop:
			offset := readShort()
			fr.ip -= offset

		case chunk.OpCall:
			argc := int(readByte())
			if err := v.callValue(v.peek(argc), argc); err != nil {
				return err
			}
			fr = &v.frames[v.frameCount-1]

		case chunk.OpInvoke:
			name := readString()
			argc := int(readByte())
			if err := v.invoke(name, argc); err != nil {
				return err
			}
			fr = &v.frames[v.frameCount-1]
		case chunk.OpSuperInvoke:
			name := readString()
			argc := int(readByte())
			superclass := v.pop().AsObj().(*object.Class)
			if err := v.invokeFromClass(superclass, name, argc); err != nil {
				return err
			}
			fr = &v.frames[v.frameCount-1]

		case chunk.OpClosure:
			fn := readConstant().AsObj().(*object.Function)
			closure := gc.Alloc(v.gc, object.NewClosure(fn), 64)
			v.push(value.Obj_(closure))
			for i := range closure.Upvalues {
				isLocal := readByte()
				index := readByte()
				if isLocal != 0 {
					closure.Upvalues[i] = v.captureUpvalue(fr.slots + int(index))
				} else {
					closure.Upvalues[i] = fr.closure.Upvalues[index]
				}
			}
		case chunk.OpCloseUpvalue:
			v.closeUpvalues(v.stackTop - 1)
			v.pop()

		case chunk.OpList:
			count := int(readByte())
			list := gc.Alloc(v.gc, object.NewList(), 48)
			list.Elements = append(list.Elements, v.stack[v.stackTop-count:v.stackTop]...)
			v.stackTop -= count
			v.push(value.Obj_(list))
		case chunk.OpDictionary:
			count := int(readByte())
			dict := gc.Alloc(v.gc, object.NewDict(), 48)
			base := v.stackTop - count*2
			for i := 0; i < count; i++ {
				key := v.stack[base+i*2]
				val := v.stack[base+i*2+1]
				keyStr, ok := key.AsObj().(*object.String)
				if !key.IsObj() || !ok {
					return v.runtimeError("Dictionary keys must be strings.")
				}
				dict.Table.Set(keyStr, val)
			}
			v.stackTop = base
			v.push(value.Obj_(dict))

		case chunk.OpClass:
			name := readString()
			v.push(value.Obj_(gc.Alloc(v.gc, object.NewClass(name), 56)))
		case chunk.OpInherit:
			superVal := v.peek(1)
			superclass, ok := superVal.AsObj().(*object.Class)
			if !superVal.IsObj() || !ok {
				return v.runtimeError("Superclass must be a class.")
			}
			subclass := v.peek(0).AsObj().(*object.Class)
			superclass.Methods.Each(func(k table.StringKey, val value.Value) {
				subclass.Methods.Set(k, val)
			})
			v.pop() // the redundant subclass reference; the superclass stays bound as the "super" local
		case chunk.OpMethod:
			name := readString()
			method := v.peek(0)
			class := v.peek(1).AsObj().(*object.Class)
			class.Methods.Set(name, method)
			v.pop()

		case chunk.OpReturn:
			result := v.pop()
			v.closeUpvalues(fr.slots)
			v.frameCount--
			if v.frameCount == 0 {
				v.pop()
				return nil
			}
			v.stackTop = fr.slots
			v.push(result)
			fr = &v.frames[v.frameCount-1]

		default:
			return v.runtimeError("Unknown opcode %d.", op)
		}

		if v.StressGC || v.gc.ShouldCollect() {
			v.gc.Collect(v)
		}
	}
}
