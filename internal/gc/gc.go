// Package gc implements Fer's tri-color mark-and-sweep collector. It owns
// the intrusive allocation list threaded through every object.Header,
// paces collections by bytes allocated, and depends on a Roots callback
// supplied by the VM so it never needs to know about call frames or the
// value stack directly.
package gc

import "github.com/kristofer/fer/internal/value"

// gcHeapGrowFactor matches the classic clox pacing: after a collection,
// the next one triggers once allocation has doubled again.
const gcHeapGrowFactor = 2

// RootSource is implemented by the VM to enumerate every value directly
// reachable from outside the heap: the value stack, active call frames,
// open upvalues, globals, and permanent globals. Compiler state is not
// enumerated; the VM only collects from its dispatch loop, never while a
// compile is in progress.
type RootSource interface {
	Roots(mark func(value.Value))
}

// Collector tracks every live object via an intrusive linked list and
// drives the mark-sweep cycle. A nil Collector (the zero value used
// without calling New) is not usable; always construct via New.
type Collector struct {
	head    value.Obj // head of the allocation list
	strings Interner  // intern pool, pre-swept before the sweep phase proper
	sizes   map[value.Obj]int64 // bytes charged by Track for each tracked object

	bytesAllocated int64
	nextGC         int64

	gray []value.Obj

	LogFn func(format string, args ...any) // optional; nil disables GC logging
}

// Interner is the subset of the string intern pool the collector needs:
// enumerate every interned string, and erase ones that didn't survive
// marking, so the pool never pins a garbage string in memory forever.
type Interner interface {
	Sweep(isMarked func(value.Obj) bool)
}

const initialNextGC = 1024 * 1024

// New returns a collector with no tracked objects yet.
func New(strings Interner) *Collector {
	return &Collector{strings: strings, sizes: make(map[value.Obj]int64), nextGC: initialNextGC}
}

// Track registers a freshly allocated object on the collector's allocation
// list and charges its size against the allocation counter. size is an
// approximate byte cost; callers pass a fixed per-type estimate.
func (c *Collector) Track(obj value.Obj, size int64) {
	obj.SetNextObj(c.head)
	c.head = obj
	c.bytesAllocated += size
	c.sizes[obj] = size
}

// Alloc tracks obj and returns it, letting call sites allocate-and-register
// in one expression: gc.Alloc(collector, object.NewList(), 48).
func Alloc[T value.Obj](c *Collector, obj T, size int64) T {
	c.Track(obj, size)
	return obj
}

// ShouldCollect reports whether bytesAllocated has crossed nextGC, the
// signal the VM checks after each allocation-heavy opcode.
func (c *Collector) ShouldCollect() bool {
	return c.bytesAllocated > c.nextGC
}

// BytesAllocated and NextGC expose pacing state for -gc-log.
func (c *Collector) BytesAllocated() int64 { return c.bytesAllocated }
func (c *Collector) NextGC() int64         { return c.nextGC }

// Collect runs one full mark-sweep cycle, rooted at roots.Roots.
func (c *Collector) Collect(roots RootSource) {
	before := c.bytesAllocated
	if c.LogFn != nil {
		c.LogFn("gc begin")
	}

	roots.Roots(c.markValue)
	c.traceReferences()
	c.sweepStrings()
	freed := c.sweepObjects()

	c.nextGC = c.bytesAllocated * gcHeapGrowFactor
	if c.nextGC < initialNextGC {
		c.nextGC = initialNextGC
	}

	if c.LogFn != nil {
		c.LogFn("gc end, collected %d bytes (from %d to %d), next at %d",
			freed, before, c.bytesAllocated, c.nextGC)
	}
}

func (c *Collector) markValue(v value.Value) {
	if !v.IsObj() {
		return
	}
	c.markObj(v.AsObj())
}

func (c *Collector) markObj(o value.Obj) {
	if o == nil || o.IsMarked() {
		return
	}
	o.SetMarked(true)
	c.gray = append(c.gray, o)
}

// traceReferences drains the gray worklist, the classic tri-color
// invariant: pop a gray object, mark everything it references (turning
// them gray too), and it becomes black once its children are all marked.
func (c *Collector) traceReferences() {
	for len(c.gray) > 0 {
		n := len(c.gray) - 1
		obj := c.gray[n]
		c.gray = c.gray[:n]
		obj.Trace(c.markValue)
	}
}

// sweepStrings erases unmarked interned strings before the general sweep,
// so the pool never holds a dangling reference to a reclaimed string.
func (c *Collector) sweepStrings() {
	if c.strings == nil {
		return
	}
	c.strings.Sweep(func(o value.Obj) bool { return o.IsMarked() })
}

// sweepObjects walks the allocation list, freeing (unlinking) every
// unmarked object and clearing the mark bit on survivors for the next
// cycle. Returns an approximate byte count freed; since Go doesn't let us
// recover the original size cheaply, this is tracked by the same
// accounting Track used when allocating each tracked object.
func (c *Collector) sweepObjects() int64 {
	var prev value.Obj
	obj := c.head
	var freed int64
	for obj != nil {
		next := obj.NextObj()
		if obj.IsMarked() {
			obj.SetMarked(false)
			prev = obj
			obj = next
			continue
		}
		// unreachable: unlink it.
		if prev == nil {
			c.head = next
		} else {
			prev.SetNextObj(next)
		}
		size, ok := c.sizes[obj]
		if !ok {
			size = objSize(obj)
		}
		delete(c.sizes, obj)
		freed += size
		obj = next
	}
	c.bytesAllocated -= freed
	return freed
}

// objSize is a rough per-object accounting unit, used only for an object
// the collector has no recorded Track size for; precise sizing isn't
// required for pacing to work, only monotonic growth under allocation.
func objSize(o value.Obj) int64 {
	switch o.ObjType() {
	case value.ObjString:
		return 32
	case value.ObjList, value.ObjDict:
		return 48
	case value.ObjFunction, value.ObjClosure:
		return 64
	default:
		return 40
	}
}
