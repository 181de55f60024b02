package vm

import (
	"github.com/kristofer/fer/internal/gc"
	"github.com/kristofer/fer/internal/object"
	"github.com/kristofer/fer/internal/value"
)

// callValue dispatches OP_CALL against whatever kind of callee sits at
// the given stack value: a closure is called directly, a native is
// invoked and its result pushed, a class is instantiated (running init
// if it has one), and a bound method swaps in its stored receiver.
func (v *VM) callValue(callee value.Value, argc int) error {
	if !callee.IsObj() {
		return v.runtimeError("Can only call functions and classes.")
	}
	switch obj := callee.AsObj().(type) {
	case *object.Closure:
		return v.call(obj, argc)
	case *object.Native:
		args := v.stack[v.stackTop-argc : v.stackTop]
		result, err := obj.Fn(args)
		if err != nil {
			return v.runtimeError("%s", err.Error())
		}
		v.stackTop -= argc + 1
		v.push(result)
		return nil
	case *object.Class:
		instance := gc.Alloc(v.gc, object.NewInstance(obj), 56)
		v.stack[v.stackTop-argc-1] = value.Obj_(instance)
		if init, ok := obj.Methods.Get(v.initString); ok {
			return v.call(init.AsObj().(*object.Closure), argc)
		} else if argc != 0 {
			return v.runtimeError("Expected 0 arguments but got %d.", argc)
		}
		return nil
	case *object.BoundMethod:
		v.stack[v.stackTop-argc-1] = obj.Receiver
		return v.call(obj.Method, argc)
	default:
		return v.runtimeError("Can only call functions and classes.")
	}
}

func (v *VM) call(closure *object.Closure, argc int) error {
	if argc != closure.Function.Arity {
		return v.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argc)
	}
	if v.frameCount == maxFrames {
		return v.runtimeError("Stack overflow.")
	}
	fr := &v.frames[v.frameCount]
	fr.closure = closure
	fr.ip = 0
	fr.slots = v.stackTop - argc - 1
	v.frameCount++
	return nil
}

// invoke fuses property lookup and call for receiver.name(args): fields
// take priority (a field holding a callable is just called), then the
// class's method table.
func (v *VM) invoke(name *object.String, argc int) error {
	receiver := v.peek(argc)
	instance, ok := receiver.AsObj().(*object.Instance)
	if !receiver.IsObj() || !ok {
		return v.runtimeError("Only instances have methods.")
	}
	if field, ok := instance.Fields.Get(name); ok {
		v.stack[v.stackTop-argc-1] = field
		return v.callValue(field, argc)
	}
	return v.invokeFromClass(instance.Class, name, argc)
}

func (v *VM) invokeFromClass(class *object.Class, name *object.String, argc int) error {
	method, ok := class.Methods.Get(name)
	if !ok {
		return v.runtimeError("Undefined property '%s'.", name.Chars)
	}
	return v.call(method.AsObj().(*object.Closure), argc)
}

func (v *VM) bindMethod(class *object.Class, receiver value.Value, name *object.String) error {
	method, ok := class.Methods.Get(name)
	if !ok {
		return v.runtimeError("Undefined property '%s'.", name.Chars)
	}
	bound := gc.Alloc(v.gc, object.NewBoundMethod(receiver, method.AsObj().(*object.Closure)), 48)
	v.push(value.Obj_(bound))
	return nil
}

func (v *VM) getProperty(name *object.String) error {
	receiverVal := v.peek(0)
	instance, ok := receiverVal.AsObj().(*object.Instance)
	if !receiverVal.IsObj() || !ok {
		return v.runtimeError("Only instances have properties.")
	}
	if field, ok := instance.Fields.Get(name); ok {
		v.pop()
		v.push(field)
		return nil
	}
	if _, ok := instance.Class.Methods.Get(name); ok {
		v.pop()
		return v.bindMethod(instance.Class, receiverVal, name)
	}
	return v.runtimeError("Undefined property '%s'.", name.Chars)
}

func (v *VM) setProperty(name *object.String) error {
	receiverVal := v.peek(1)
	instance, ok := receiverVal.AsObj().(*object.Instance)
	if !receiverVal.IsObj() || !ok {
		return v.runtimeError("Only instances have fields.")
	}
	instance.Fields.Set(name, v.peek(0))
	val := v.pop()
	v.pop()
	v.push(val)
	return nil
}

func (v *VM) getItem() error {
	index := v.pop()
	container := v.pop()
	if !container.IsObj() {
		return v.runtimeError("Can only index lists and dictionaries.")
	}
	switch obj := container.AsObj().(type) {
	case *object.List:
		if !index.IsNumber() {
			return v.runtimeError("List index must be a number.")
		}
		i := int(index.AsNumber())
		if i < 0 || i >= len(obj.Elements) {
			return v.runtimeError("List index out of range.")
		}
		v.push(obj.Elements[i])
		return nil
	case *object.Dict:
		key, ok := index.AsObj().(*object.String)
		if !index.IsObj() || !ok {
			return v.runtimeError("Dictionary key must be a string.")
		}
		val, ok := obj.Table.Get(key)
		if !ok {
			return v.runtimeError("Undefined dictionary key '%s'.", key.Chars)
		}
		v.push(val)
		return nil
	default:
		return v.runtimeError("Can only index lists and dictionaries.")
	}
}

func (v *VM) setItem() error {
	val := v.pop()
	index := v.pop()
	container := v.pop()
	if !container.IsObj() {
		return v.runtimeError("Can only index lists and dictionaries.")
	}
	switch obj := container.AsObj().(type) {
	case *object.List:
		if !index.IsNumber() {
			return v.runtimeError("List index must be a number.")
		}
		i := int(index.AsNumber())
		if i < 0 || i >= len(obj.Elements) {
			return v.runtimeError("List index out of range.")
		}
		obj.Elements[i] = val
	case *object.Dict:
		key, ok := index.AsObj().(*object.String)
		if !index.IsObj() || !ok {
			return v.runtimeError("Dictionary key must be a string.")
		}
		obj.Table.Set(key, val)
	default:
		return v.runtimeError("Can only index lists and dictionaries.")
	}
	v.push(val)
	return nil
}

// add implements OP_ADD's overload: string+string concatenates (through
// the intern pool), number+number adds, anything else errors.
func (v *VM) add() error {
	b := v.peek(0)
	a := v.peek(1)
	switch {
	case a.IsNumber() && b.IsNumber():
		v.pop()
		v.pop()
		v.push(value.Number_(a.AsNumber() + b.AsNumber()))
		return nil
	case isString(a) && isString(b):
		v.pop()
		v.pop()
		as := a.AsObj().(*object.String)
		bs := b.AsObj().(*object.String)
		result := v.strings.Intern(as.Chars + bs.Chars)
		v.push(value.Obj_(result))
		return nil
	default:
		return v.runtimeError("Operands must be two numbers or two strings.")
	}
}

func isString(v value.Value) bool { return v.IsObjType(value.ObjString) }

func (v *VM) binaryNumeric(f func(a, b float64) value.Value) error {
	if !v.peek(0).IsNumber() || !v.peek(1).IsNumber() {
		return v.runtimeError("Operands must be numbers.")
	}
	b := v.pop()
	a := v.pop()
	v.push(f(a.AsNumber(), b.AsNumber()))
	return nil
}

// captureUpvalue finds or creates an open upvalue for the stack slot at
// absolute index slot, keeping the open list sorted by descending slot.
func (v *VM) captureUpvalue(slot int) *object.Upvalue {
	var prev *object.Upvalue
	cur := v.openUpvalues
	for cur != nil && cur.OpenSlot > slot {
		prev = cur
		cur = cur.NextOpen
	}
	if cur != nil && cur.OpenSlot == slot {
		return cur
	}
	created := gc.Alloc(v.gc, object.NewUpvalue(&v.stack[slot], slot), 24)
	created.NextOpen = cur
	if prev == nil {
		v.openUpvalues = created
	} else {
		prev.NextOpen = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above the given absolute
// stack index, detaching it from the stack.
func (v *VM) closeUpvalues(from int) {
	for v.openUpvalues != nil && v.openUpvalues.OpenSlot >= from {
		uv := v.openUpvalues
		uv.Close()
		v.openUpvalues = uv.NextOpen
	}
}
