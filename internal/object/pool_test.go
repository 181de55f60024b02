package object_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kristofer/fer/internal/object"
	"github.com/kristofer/fer/internal/value"
)

func TestInternReturnsSamePointerForEqualContent(t *testing.T) {
	pool := object.NewPool()
	a := pool.Intern("hello")
	b := pool.Intern("hello")
	assert.Same(t, a, b)
}

func TestInternDistinguishesDifferentContent(t *testing.T) {
	pool := object.NewPool()
	a := pool.Intern("hello")
	b := pool.Intern("world")
	assert.NotSame(t, a, b)
}

func TestSweepErasesUnmarkedStrings(t *testing.T) {
	pool := object.NewPool()
	keep := pool.Intern("keep")
	drop := pool.Intern("drop")

	pool.Sweep(func(o value.Obj) bool { return o == value.Obj(keep) })

	assert.Same(t, keep, pool.Intern("keep"))
	// Re-interning "drop" after the sweep must allocate a fresh object,
	// proving the old entry was actually erased rather than merely
	// unreachable from this test.
	dropAgain := pool.Intern("drop")
	assert.Equal(t, "drop", dropAgain.Chars)
	assert.NotSame(t, drop, dropAgain)
}
