package gc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/fer/internal/gc"
	"github.com/kristofer/fer/internal/value"
)

type fakeObj struct {
	name     string
	marked   bool
	next     value.Obj
	children []value.Value
}

func (f *fakeObj) ObjType() value.ObjType { return value.ObjList }
func (f *fakeObj) Trace(mark func(value.Value)) {
	for _, c := range f.children {
		mark(c)
	}
}
func (f *fakeObj) IsMarked() bool          { return f.marked }
func (f *fakeObj) SetMarked(m bool)        { f.marked = m }
func (f *fakeObj) NextObj() value.Obj      { return f.next }
func (f *fakeObj) SetNextObj(o value.Obj)  { f.next = o }
func (f *fakeObj) String() string          { return f.name }

type fakeRoots struct {
	values []value.Value
}

func (r *fakeRoots) Roots(mark func(value.Value)) {
	for _, v := range r.values {
		mark(v)
	}
}

type noopInterner struct{}

func (noopInterner) Sweep(func(value.Obj) bool) {}

func TestCollectFreesUnreachableObjects(t *testing.T) {
	c := gc.New(noopInterner{})

	reachable := &fakeObj{name: "reachable"}
	garbage := &fakeObj{name: "garbage"}

	c.Track(reachable, 10)
	c.Track(garbage, 10)

	roots := &fakeRoots{values: []value.Value{value.Obj_(reachable)}}
	c.Collect(roots)

	assert.False(t, reachable.IsMarked(), "mark bit clears after sweep so the next cycle starts fresh")
	assert.Equal(t, int64(10), c.BytesAllocated(), "only the garbage object's bytes should be reclaimed")
}

func TestCollectTracesTransitively(t *testing.T) {
	c := gc.New(noopInterner{})

	child := &fakeObj{name: "child"}
	parent := &fakeObj{name: "parent", children: []value.Value{value.Obj_(child)}}

	c.Track(child, 5)
	c.Track(parent, 5)

	roots := &fakeRoots{values: []value.Value{value.Obj_(parent)}}
	c.Collect(roots)

	assert.Equal(t, int64(10), c.BytesAllocated(), "both parent and reachable child survive")
}

func TestShouldCollectTripsAfterThreshold(t *testing.T) {
	c := gc.New(noopInterner{})
	assert.False(t, c.ShouldCollect())

	for i := 0; i < 5000; i++ {
		c.Track(&fakeObj{}, 1000)
	}
	assert.True(t, c.ShouldCollect())
}

func TestCollectSweepsInternPool(t *testing.T) {
	var sweptWith func(value.Obj) bool
	interner := sweepRecorder{fn: func(f func(value.Obj) bool) { sweptWith = f }}

	c := gc.New(interner)
	c.Collect(&fakeRoots{})

	require.NotNil(t, sweptWith)
}

type sweepRecorder struct {
	fn func(func(value.Obj) bool)
}

func (s sweepRecorder) Sweep(isMarked func(value.Obj) bool) { s.fn(isMarked) }
