package object_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/fer/internal/object"
	"github.com/kristofer/fer/internal/table"
	"github.com/kristofer/fer/internal/value"
)

func TestNewStringHashesWithFNV1a(t *testing.T) {
	s := object.NewString("hello")
	assert.Equal(t, object.FNV1a32([]byte("hello")), s.Hash)
	assert.Equal(t, "hello", s.Chars)
	assert.Equal(t, []byte("hello"), s.Bytes())
}

func TestListTraceVisitsEveryElement(t *testing.T) {
	l := object.NewList()
	l.Elements = append(l.Elements, value.Number_(1), value.Number_(2))

	var seen []float64
	l.Trace(func(v value.Value) { seen = append(seen, v.AsNumber()) })
	assert.Equal(t, []float64{1, 2}, seen)
}

func TestListStringFormatsLikeFerLiteral(t *testing.T) {
	l := object.NewList()
	l.Elements = append(l.Elements, value.Number_(1), value.Bool_(true))
	assert.Equal(t, "[1, true]", l.String())
}

func TestDictTraceVisitsKeysAndValues(t *testing.T) {
	d := object.NewDict()
	key := object.NewString("k")
	d.Table.Set(key, value.Number_(42))

	var marked []value.Value
	d.Trace(func(v value.Value) { marked = append(marked, v) })
	require.Len(t, marked, 2)
}

func TestFunctionStringDistinguishesScriptFromNamed(t *testing.T) {
	script := object.NewFunction()
	assert.Equal(t, "<script>", script.String())

	named := object.NewFunction()
	named.Name = object.NewString("main")
	assert.Equal(t, "<fn main>", named.String())
}

func TestUpvalueCloseDetachesFromStackSlot(t *testing.T) {
	slot := value.Number_(7)
	up := object.NewUpvalue(&slot, 0)
	assert.Equal(t, 7.0, up.Location.AsNumber())

	slot = value.Number_(99)
	assert.Equal(t, 99.0, up.Location.AsNumber(), "open upvalue tracks live slot")

	up.Close()
	slot = value.Number_(1)
	assert.Equal(t, 99.0, up.Location.AsNumber(), "closed upvalue keeps its own copy")
}

func TestClosureTraceVisitsFunctionAndUpvalues(t *testing.T) {
	fn := object.NewFunction()
	fn.UpvalueCount = 1
	cl := object.NewClosure(fn)
	var v float64 = 3
	vv := value.Number_(v)
	cl.Upvalues[0] = object.NewUpvalue(&vv, 0)

	var marked []value.Obj
	cl.Trace(func(v value.Value) { marked = append(marked, v.AsObj()) })
	require.Len(t, marked, 2)
}

func TestClassMethodTableInheritanceByCopy(t *testing.T) {
	parent := object.NewClass(object.NewString("Animal"))
	speak := object.NewString("speak")
	parent.Methods.Set(speak, value.Number_(1))

	child := object.NewClass(object.NewString("Dog"))
	parent.Methods.Each(func(k table.StringKey, v value.Value) {
		child.Methods.Set(k, v)
	})

	v, ok := child.Methods.Get(speak)
	require.True(t, ok)
	assert.Equal(t, 1.0, v.AsNumber())

	// Overriding in the child must not affect the parent's table.
	child.Methods.Set(speak, value.Number_(2))
	v, _ = parent.Methods.Get(speak)
	assert.Equal(t, 1.0, v.AsNumber())
}

func TestInstanceStringIncludesClassName(t *testing.T) {
	class := object.NewClass(object.NewString("Point"))
	inst := object.NewInstance(class)
	assert.Equal(t, "<Point instance>", inst.String())
}

func TestBoundMethodTraceVisitsReceiverAndMethod(t *testing.T) {
	class := object.NewClass(object.NewString("Point"))
	inst := object.NewInstance(class)
	fn := object.NewFunction()
	cl := object.NewClosure(fn)
	bm := object.NewBoundMethod(value.Obj_(inst), cl)

	var marked []value.Value
	bm.Trace(func(v value.Value) { marked = append(marked, v) })
	require.Len(t, marked, 2)
}
