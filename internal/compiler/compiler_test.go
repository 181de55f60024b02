package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/fer/internal/chunk"
	"github.com/kristofer/fer/internal/compiler"
	"github.com/kristofer/fer/internal/gc"
	"github.com/kristofer/fer/internal/object"
	"github.com/kristofer/fer/internal/value"
)

func compile(t *testing.T, src string) (*object.Function, []string) {
	t.Helper()
	pool := object.NewPool()
	collector := gc.New(pool)
	fn, errs := compiler.Compile(src, pool, collector)
	require.NotNil(t, fn)
	return fn, errs
}

func opsOf(fn *object.Function) []chunk.Op {
	var ops []chunk.Op
	code := fn.Chunk.Code
	for i := 0; i < len(code); {
		op := chunk.Op(code[i])
		ops = append(ops, op)
		i += 1 + operandWidth(op)
	}
	return ops
}

// operandWidth is a test-only mirror of each opcode's operand size, just
// enough to walk a chunk without decoding values.
func operandWidth(op chunk.Op) int {
	switch op {
	case chunk.OpJump, chunk.OpJumpIfFalse, chunk.OpLoop:
		return 2
	case chunk.OpInvoke, chunk.OpSuperInvoke:
		return 2
	case chunk.OpConstant, chunk.OpGetLocal, chunk.OpSetLocal, chunk.OpGetGlobal,
		chunk.OpSetGlobal, chunk.OpDefineGlobal, chunk.OpDefineGlobalPerm,
		chunk.OpGetUpvalue, chunk.OpSetUpvalue, chunk.OpGetProperty,
		chunk.OpSetProperty, chunk.OpGetSuper, chunk.OpCall, chunk.OpList,
		chunk.OpDictionary, chunk.OpClass, chunk.OpMethod:
		return 1
	case chunk.OpClosure:
		return 1 // followed by variable upvalue pairs, not walked here
	default:
		return 0
	}
}

func TestSimpleArithmeticCompilesCleanly(t *testing.T) {
	fn, errs := compile(t, "print 1 + 2 * 3;")
	assert.Empty(t, errs)
	ops := opsOf(fn)
	assert.Contains(t, ops, chunk.OpAdd)
	assert.Contains(t, ops, chunk.OpMultiply)
	assert.Contains(t, ops, chunk.OpPrint)
}

func TestStringConcatCompilesAdd(t *testing.T) {
	fn, errs := compile(t, `var x = "foo"; var y = "bar"; print x + y;`)
	assert.Empty(t, errs)
	assert.Contains(t, opsOf(fn), chunk.OpAdd)
}

func TestVarAtTopLevelEmitsDefineGlobal(t *testing.T) {
	fn, errs := compile(t, "var x = 1;")
	assert.Empty(t, errs)
	assert.Contains(t, opsOf(fn), chunk.OpDefineGlobal)
}

func TestPermWithoutInitializerIsCompileError(t *testing.T) {
	_, errs := compile(t, "perm X;")
	assert.NotEmpty(t, errs)
}

func TestReadingLocalInItsOwnInitializerIsAnError(t *testing.T) {
	_, errs := compile(t, "{ var x = x; }")
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0], "own initializer")
}

func TestReturnAtTopLevelIsAnError(t *testing.T) {
	_, errs := compile(t, "return 1;")
	require.NotEmpty(t, errs)
}

func TestBreakOutsideLoopIsAnError(t *testing.T) {
	_, errs := compile(t, "break;")
	require.NotEmpty(t, errs)
}

func TestClosureCapturesEmitUpvalueOps(t *testing.T) {
	src := `
		fun make() {
			var n = 0;
			fun inc() { n = n + 1; return n; }
			return inc;
		}
	`
	fn, errs := compile(t, src)
	assert.Empty(t, errs)
	// The outer script body just defines make() with a CLOSURE op; inc's
	// prototype sits in make's constant pool, and its body reads and
	// writes the captured n through upvalue ops.
	assert.Contains(t, opsOf(fn), chunk.OpClosure)
	var inc *object.Function
	for _, c := range fn.Chunk.Constants {
		if c.IsObjType(value.ObjFunction) {
			for _, inner := range c.AsObj().(*object.Function).Chunk.Constants {
				if inner.IsObjType(value.ObjFunction) {
					inc = inner.AsObj().(*object.Function)
				}
			}
		}
	}
	require.NotNil(t, inc)
	incOps := opsOf(inc)
	assert.Contains(t, incOps, chunk.OpGetUpvalue)
	assert.Contains(t, incOps, chunk.OpSetUpvalue)
}

func TestClassWithSuperclassEmitsInherit(t *testing.T) {
	src := `
		class A { greet() { print "A"; } }
		class B < A { greet() { super.greet(); print "B"; } }
	`
	fn, errs := compile(t, src)
	assert.Empty(t, errs)
	ops := opsOf(fn)
	assert.Contains(t, ops, chunk.OpInherit)
	assert.Contains(t, ops, chunk.OpClass)
}

func TestClassInheritingFromItselfIsAnError(t *testing.T) {
	_, errs := compile(t, "class A < A {}")
	assert.NotEmpty(t, errs)
}

func TestBoundaryTooManyParametersIsCompileError(t *testing.T) {
	params := ""
	for i := 0; i < 256; i++ {
		if i > 0 {
			params += ", "
		}
		params += "p" + string(rune('A'+i/26)) + string(rune('a'+i%26))
	}
	src := "fun f(" + params + ") {}"
	_, errs := compile(t, src)
	assert.NotEmpty(t, errs)
}

func TestTooManyCallArgumentsIsCompileError(t *testing.T) {
	args := ""
	for i := 0; i < 256; i++ {
		if i > 0 {
			args += ", "
		}
		args += "1"
	}
	src := "f(" + args + ");"
	_, errs := compile(t, src)
	assert.NotEmpty(t, errs)
}

func TestListLiteralCompilesToListOp(t *testing.T) {
	fn, errs := compile(t, "print [1, 2, 3];")
	assert.Empty(t, errs)
	assert.Contains(t, opsOf(fn), chunk.OpList)
}

func TestDictLiteralCompilesToDictionaryOp(t *testing.T) {
	fn, errs := compile(t, `print {"a": 1};`)
	assert.Empty(t, errs)
	assert.Contains(t, opsOf(fn), chunk.OpDictionary)
}

func TestWhileLoopWithBreakCompiles(t *testing.T) {
	src := `
		var i = 0;
		while (true) {
			if (i == 3) break;
			print i;
			i = i + 1;
		}
	`
	fn, errs := compile(t, src)
	assert.Empty(t, errs)
	ops := opsOf(fn)
	assert.Contains(t, ops, chunk.OpLoop)
	assert.Contains(t, ops, chunk.OpJump)
}

func TestPermanentGlobalReassignmentOfLocalIsCompileError(t *testing.T) {
	_, errs := compile(t, `{ perm x = 1; x = 2; }`)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0], "permanent")
}
