package disasm_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/fer/internal/compiler"
	"github.com/kristofer/fer/internal/disasm"
	"github.com/kristofer/fer/internal/gc"
	"github.com/kristofer/fer/internal/object"
)

func compile(t *testing.T, src string) *object.Function {
	t.Helper()
	pool := object.NewPool()
	collector := gc.New(pool)
	fn, errs := compiler.Compile(src, pool, collector)
	require.Empty(t, errs)
	return fn
}

func TestFunctionListsConstantAndSimpleOps(t *testing.T) {
	fn := compile(t, "print 1 + 2;")
	out := disasm.Function(fn, "script")
	assert.Contains(t, out, "== script ==")
	assert.Contains(t, out, "OP_CONSTANT")
	assert.Contains(t, out, "OP_ADD")
	assert.Contains(t, out, "OP_PRINT")
}

func TestFunctionAnnotatesJumpTargets(t *testing.T) {
	fn := compile(t, `if (true) { print 1; } else { print 2; }`)
	out := disasm.Function(fn, "script")
	assert.Contains(t, out, "OP_JUMP_IF_FALSE")
	assert.Contains(t, out, "->")
}

func TestFunctionShowsClosureUpvalueLines(t *testing.T) {
	src := `
		fun make() {
			var n = 0;
			fun inc() { n = n + 1; }
			return inc;
		}
	`
	fn := compile(t, src)
	out := disasm.Function(fn, "script")
	assert.True(t, strings.Contains(out, "local") || strings.Contains(out, "upvalue"))
}
