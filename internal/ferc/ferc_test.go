package ferc_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/fer/internal/compiler"
	"github.com/kristofer/fer/internal/ferc"
	"github.com/kristofer/fer/internal/gc"
	"github.com/kristofer/fer/internal/object"
	"github.com/kristofer/fer/internal/value"
)

func compile(t *testing.T, src string) *object.Function {
	t.Helper()
	pool := object.NewPool()
	collector := gc.New(pool)
	fn, errs := compiler.Compile(src, pool, collector)
	require.Empty(t, errs)
	return fn
}

func TestRoundTripsSimpleArithmetic(t *testing.T) {
	fn := compile(t, `print 1 + 2 * 3;`)

	var buf bytes.Buffer
	require.NoError(t, ferc.Encode(fn, &buf))

	decoded, err := ferc.Decode(&buf)
	require.NoError(t, err)

	assert.Equal(t, fn.Arity, decoded.Arity)
	assert.Equal(t, fn.UpvalueCount, decoded.UpvalueCount)
	assert.Equal(t, fn.Chunk.Code, decoded.Chunk.Code)
	assert.Equal(t, fn.Chunk.Lines, decoded.Chunk.Lines)
	require.Equal(t, len(fn.Chunk.Constants), len(decoded.Chunk.Constants))
	for i, c := range fn.Chunk.Constants {
		assertSameConstant(t, c, decoded.Chunk.Constants[i])
	}
}

func TestRoundTripsStringConstants(t *testing.T) {
	fn := compile(t, `var name = "fer"; print "hello " + name;`)

	var buf bytes.Buffer
	require.NoError(t, ferc.Encode(fn, &buf))

	decoded, err := ferc.Decode(&buf)
	require.NoError(t, err)

	require.Equal(t, len(fn.Chunk.Constants), len(decoded.Chunk.Constants))
	for i, c := range fn.Chunk.Constants {
		assertSameConstant(t, c, decoded.Chunk.Constants[i])
	}
}

func TestRoundTripsNestedFunctionConstant(t *testing.T) {
	src := `
		fun add(a, b) {
			return a + b;
		}
		print add(1, 2);
	`
	fn := compile(t, src)

	var buf bytes.Buffer
	require.NoError(t, ferc.Encode(fn, &buf))

	decoded, err := ferc.Decode(&buf)
	require.NoError(t, err)

	require.Equal(t, len(fn.Chunk.Constants), len(decoded.Chunk.Constants))

	var original, roundTripped *object.Function
	for i, c := range fn.Chunk.Constants {
		if c.IsObjType(value.ObjFunction) {
			original = c.AsObj().(*object.Function)
			roundTripped = decoded.Chunk.Constants[i].AsObj().(*object.Function)
		}
	}
	require.NotNil(t, original)
	require.NotNil(t, roundTripped)

	assert.Equal(t, original.Name.Chars, roundTripped.Name.Chars)
	assert.Equal(t, original.Arity, roundTripped.Arity)
	assert.Equal(t, original.Chunk.Code, roundTripped.Chunk.Code)
	assert.Equal(t, original.Chunk.Lines, roundTripped.Chunk.Lines)
}

func TestDecodeRejectsBadMagicNumber(t *testing.T) {
	_, err := ferc.Decode(bytes.NewReader([]byte{0, 0, 0, 0, 1, 0, 0, 0}))
	assert.Error(t, err)
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	fn := compile(t, `print 1;`)
	var buf bytes.Buffer
	require.NoError(t, ferc.Encode(fn, &buf))

	truncated := buf.Bytes()[:buf.Len()-2]
	_, err := ferc.Decode(bytes.NewReader(truncated))
	assert.Error(t, err)
}

func assertSameConstant(t *testing.T, a, b value.Value) {
	t.Helper()
	switch {
	case a.IsNumber():
		require.True(t, b.IsNumber())
		assert.Equal(t, a.AsNumber(), b.AsNumber())
	case a.IsObjType(value.ObjString):
		require.True(t, b.IsObjType(value.ObjString))
		assert.Equal(t, a.AsObj().(*object.String).Chars, b.AsObj().(*object.String).Chars)
	case a.IsObjType(value.ObjFunction):
		require.True(t, b.IsObjType(value.ObjFunction))
	default:
		t.Fatalf("unexpected constant type in round-trip: %v", a.Type())
	}
}
