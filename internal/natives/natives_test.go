package natives_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/fer/internal/natives"
	"github.com/kristofer/fer/internal/vm"
)

func newVM(t *testing.T) (*vm.VM, *bytes.Buffer) {
	t.Helper()
	v := vm.New()
	var out bytes.Buffer
	v.Stdout = &out
	natives.Register(v)
	return v, &out
}

func TestClockReturnsANumber(t *testing.T) {
	v, out := newVM(t)
	result := v.Interpret(`print clock() > 0;`)
	require.Equal(t, vm.InterpretOK, result)
	assert.Equal(t, "true\n", out.String())
}

func TestSha256MatchesKnownDigest(t *testing.T) {
	v, out := newVM(t)
	result := v.Interpret(`print sha256("");`)
	require.Equal(t, vm.InterpretOK, result)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855\n", out.String())
}

func TestBase64RoundTrips(t *testing.T) {
	v, out := newVM(t)
	result := v.Interpret(`print base64Decode(base64Encode("hello fer"));`)
	require.Equal(t, vm.InterpretOK, result)
	assert.Equal(t, "hello fer\n", out.String())
}

func TestGzipRoundTrips(t *testing.T) {
	v, out := newVM(t)
	result := v.Interpret(`print gunzip(gzip("round and round"));`)
	require.Equal(t, vm.InterpretOK, result)
	assert.Equal(t, "round and round\n", out.String())
}

func TestMatchesChecksRegexp(t *testing.T) {
	v, out := newVM(t)
	result := v.Interpret(`print matches("^fe+r$", "feeer");`)
	require.Equal(t, vm.InterpretOK, result)
	assert.Equal(t, "true\n", out.String())
}

func TestRandomIntStaysInRange(t *testing.T) {
	v, out := newVM(t)
	result := v.Interpret(`
		var n = randomInt(5, 5);
		print n;
	`)
	require.Equal(t, vm.InterpretOK, result)
	assert.Equal(t, "5\n", out.String())
}

func TestReadWriteFileRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "greeting.txt")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	v, out := newVM(t)
	result := v.Interpret(`
		writeFile("` + path + `", "hi there");
		print readFile("` + path + `");
	`)
	require.Equal(t, vm.InterpretOK, result)
	assert.Equal(t, "hi there\n", out.String())
}

func TestJSONEncodeDecodeRoundTripsLists(t *testing.T) {
	v, out := newVM(t)
	result := v.Interpret(`
		var encoded = jsonEncode([1, 2, "three"]);
		var decoded = jsonDecode(encoded);
		print decoded[2];
	`)
	require.Equal(t, vm.InterpretOK, result)
	assert.Equal(t, "three\n", out.String())
}

func TestJSONDecodeObjectBecomesDict(t *testing.T) {
	v, out := newVM(t)
	result := v.Interpret(`
		var d = jsonDecode(jsonEncode({"a": 1, "b": 2}));
		print d["a"] + d["b"];
	`)
	require.Equal(t, vm.InterpretOK, result)
	assert.Equal(t, "3\n", out.String())
}

func TestNativeArgumentMismatchIsRuntimeErrorNotPanic(t *testing.T) {
	v, _ := newVM(t)
	result := v.Interpret(`print sha256(42);`)
	assert.Equal(t, vm.InterpretRuntimeError, result)
}
