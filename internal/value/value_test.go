package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kristofer/fer/internal/value"
)

type fakeObj struct {
	marked bool
	next   value.Obj
}

func (f *fakeObj) ObjType() value.ObjType        { return value.ObjString }
func (f *fakeObj) Trace(func(value.Value))       {}
func (f *fakeObj) IsMarked() bool                { return f.marked }
func (f *fakeObj) SetMarked(m bool)              { f.marked = m }
func (f *fakeObj) NextObj() value.Obj            { return f.next }
func (f *fakeObj) SetNextObj(o value.Obj)        { f.next = o }
func (f *fakeObj) String() string                { return "fake" }

func TestTruthiness(t *testing.T) {
	assert.True(t, value.NilValue.IsFalsey())
	assert.True(t, value.Bool_(false).IsFalsey())
	assert.False(t, value.Bool_(true).IsFalsey())
	assert.False(t, value.Number_(0).IsFalsey(), "0 is truthy in Fer")
	assert.False(t, value.Obj_(&fakeObj{}).IsFalsey())
}

func TestEqualNilOnlyEqualsNil(t *testing.T) {
	assert.True(t, value.Equal(value.NilValue, value.NilValue))
	assert.False(t, value.Equal(value.NilValue, value.Bool_(false)))
	assert.False(t, value.Equal(value.NilValue, value.Number_(0)))
}

func TestEqualNumbersByIEEE754(t *testing.T) {
	assert.True(t, value.Equal(value.Number_(3), value.Number_(3)))
	assert.False(t, value.Equal(value.Number_(3), value.Number_(4)))

	nan := value.Number_(nanFloat())
	assert.False(t, value.Equal(nan, nan), "NaN must not equal itself")
}

func TestEqualObjectsByIdentity(t *testing.T) {
	a := &fakeObj{}
	b := &fakeObj{}
	va, vb, va2 := value.Obj_(a), value.Obj_(b), value.Obj_(a)
	assert.False(t, value.Equal(va, vb))
	assert.True(t, value.Equal(va, va2))
}

func TestStringFormatsNumbersShortestRoundTrip(t *testing.T) {
	assert.Equal(t, "7", value.Number_(7).String())
	assert.Equal(t, "3.14", value.Number_(3.14).String())
	assert.Equal(t, "nil", value.NilValue.String())
	assert.Equal(t, "true", value.Bool_(true).String())
	assert.Equal(t, "false", value.Bool_(false).String())
}

func nanFloat() float64 {
	var z float64
	return z / z
}
