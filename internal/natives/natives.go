// Package natives implements Fer's standard native-function library:
// clock, hashing, base64, JSON, gzip, regexp, random numbers, and file
// I/O, registered into a VM's globals table via DefineNative.
//
// Every native marshals between Go primitives and Fer's own value.Value /
// object types at the boundary, rather than leaving a raw interface{} on
// the VM stack.
package natives

import (
	"bytes"
	"compress/gzip"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"regexp"
	"time"

	"github.com/kristofer/fer/internal/object"
	"github.com/kristofer/fer/internal/table"
	"github.com/kristofer/fer/internal/value"
)

// host is the subset of *vm.VM the natives need to allocate and intern
// values. Depending on this interface rather than importing package vm
// directly would still work either way since natives is the outer
// collaborator, but keeping it narrow documents exactly what a native is
// allowed to touch.
type host interface {
	InternString(s string) *object.String
	NewList() *object.List
	NewDict() *object.Dict
	DefineNative(name string, fn object.NativeFn)
}

// Register installs every native in this package into v's globals table.
func Register(v host) {
	v.DefineNative("clock", clock)
	v.DefineNative("sha256", wrapStringToString(v, sha256Hash))
	v.DefineNative("md5", wrapStringToString(v, md5Hash))
	v.DefineNative("base64Encode", wrapStringToString(v, base64Encode))
	v.DefineNative("base64Decode", wrapStringToStringErr(v, base64Decode))
	v.DefineNative("gzip", wrapStringToStringErr(v, gzipCompress))
	v.DefineNative("gunzip", wrapStringToStringErr(v, gunzipDecompress))
	v.DefineNative("matches", matches)
	v.DefineNative("randomInt", randomInt)
	v.DefineNative("readFile", readFile(v))
	v.DefineNative("writeFile", writeFile(v))
	v.DefineNative("jsonEncode", jsonEncode(v))
	v.DefineNative("jsonDecode", jsonDecode(v))
}

func argError(want string, n int) error {
	return fmt.Errorf("expected %s, got %d argument(s)", want, n)
}

func asString(v value.Value) (string, bool) {
	if !v.IsObj() {
		return "", false
	}
	s, ok := v.AsObj().(*object.String)
	if !ok {
		return "", false
	}
	return s.Chars, true
}

// clock returns seconds since the Unix epoch as a Fer number.
func clock(args []value.Value) (value.Value, error) {
	if len(args) != 0 {
		return value.NilValue, argError("0 arguments", len(args))
	}
	return value.Number_(float64(time.Now().UnixNano()) / 1e9), nil
}

func wrapStringToString(v host, f func(string) string) object.NativeFn {
	return func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.NilValue, argError("1 string argument", len(args))
		}
		s, ok := asString(args[0])
		if !ok {
			return value.NilValue, fmt.Errorf("argument must be a string")
		}
		return value.Obj_(v.InternString(f(s))), nil
	}
}

func wrapStringToStringErr(v host, f func(string) (string, error)) object.NativeFn {
	return func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.NilValue, argError("1 string argument", len(args))
		}
		s, ok := asString(args[0])
		if !ok {
			return value.NilValue, fmt.Errorf("argument must be a string")
		}
		out, err := f(s)
		if err != nil {
			return value.NilValue, err
		}
		return value.Obj_(v.InternString(out)), nil
	}
}

func sha256Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", sum)
}

func md5Hash(s string) string {
	sum := md5.Sum([]byte(s))
	return fmt.Sprintf("%x", sum)
}

func base64Encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func base64Decode(s string) (string, error) {
	out, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("invalid base64 input: %w", err)
	}
	return string(out), nil
}

func gzipCompress(s string) (string, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write([]byte(s)); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func gunzipDecompress(s string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("invalid base64 input: %w", err)
	}
	r, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("not gzip data: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// matches implements matches(pattern, s): reports whether s matches the
// regular expression pattern.
func matches(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.NilValue, argError("2 string arguments", len(args))
	}
	pattern, ok1 := asString(args[0])
	text, ok2 := asString(args[1])
	if !ok1 || !ok2 {
		return value.NilValue, fmt.Errorf("both arguments must be strings")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return value.NilValue, fmt.Errorf("invalid regex pattern: %w", err)
	}
	return value.Bool_(re.MatchString(text)), nil
}

// randomInt implements randomInt(lo, hi), an inclusive range. It uses
// math/rand rather than crypto/rand since this is a language convenience,
// not a security primitive.
func randomInt(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.NilValue, argError("2 number arguments", len(args))
	}
	if !args[0].IsNumber() || !args[1].IsNumber() {
		return value.NilValue, fmt.Errorf("both arguments must be numbers")
	}
	lo := int64(args[0].AsNumber())
	hi := int64(args[1].AsNumber())
	if lo > hi {
		return value.NilValue, fmt.Errorf("randomInt: min must be <= max")
	}
	n := lo + rand.Int63n(hi-lo+1)
	return value.Number_(float64(n)), nil
}

func readFile(v host) object.NativeFn {
	return func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.NilValue, argError("1 string argument", len(args))
		}
		path, ok := asString(args[0])
		if !ok {
			return value.NilValue, fmt.Errorf("argument must be a string")
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return value.NilValue, fmt.Errorf("failed to read file: %w", err)
		}
		return value.Obj_(v.InternString(string(content))), nil
	}
}

func writeFile(v host) object.NativeFn {
	return func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.NilValue, argError("path and content strings", len(args))
		}
		path, ok1 := asString(args[0])
		content, ok2 := asString(args[1])
		if !ok1 || !ok2 {
			return value.NilValue, fmt.Errorf("both arguments must be strings")
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return value.NilValue, fmt.Errorf("failed to write file: %w", err)
		}
		return value.NilValue, nil
	}
}

// jsonEncode serializes a Fer value (nil, bool, number, string, list, or
// dict of strings) to a JSON string.
func jsonEncode(v host) object.NativeFn {
	return func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.NilValue, argError("1 argument", len(args))
		}
		goVal, err := toJSONValue(args[0])
		if err != nil {
			return value.NilValue, err
		}
		out, err := json.Marshal(goVal)
		if err != nil {
			return value.NilValue, fmt.Errorf("failed to encode JSON: %w", err)
		}
		return value.Obj_(v.InternString(string(out))), nil
	}
}

func toJSONValue(v value.Value) (any, error) {
	switch {
	case v.IsNil():
		return nil, nil
	case v.IsBool():
		return v.AsBool(), nil
	case v.IsNumber():
		return v.AsNumber(), nil
	case v.IsObjType(value.ObjString):
		return v.AsObj().(*object.String).Chars, nil
	case v.IsObjType(value.ObjList):
		list := v.AsObj().(*object.List)
		out := make([]any, len(list.Elements))
		for i, el := range list.Elements {
			converted, err := toJSONValue(el)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	case v.IsObjType(value.ObjDict):
		dict := v.AsObj().(*object.Dict)
		out := make(map[string]any)
		var convErr error
		dict.Table.Each(func(key table.StringKey, val value.Value) {
			converted, err := toJSONValue(val)
			if err != nil {
				convErr = err
				return
			}
			out[string(key.Bytes())] = converted
		})
		if convErr != nil {
			return nil, convErr
		}
		return out, nil
	default:
		return nil, fmt.Errorf("value is not JSON-encodable")
	}
}

// jsonDecode parses a JSON string into a Fer value: objects become
// dictionaries, arrays become lists, numbers become Fer numbers.
func jsonDecode(v host) object.NativeFn {
	return func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.NilValue, argError("1 string argument", len(args))
		}
		s, ok := asString(args[0])
		if !ok {
			return value.NilValue, fmt.Errorf("argument must be a string")
		}
		var parsed any
		if err := json.Unmarshal([]byte(s), &parsed); err != nil {
			return value.NilValue, fmt.Errorf("failed to decode JSON: %w", err)
		}
		return fromJSONValue(v, parsed), nil
	}
}

func fromJSONValue(v host, goVal any) value.Value {
	switch x := goVal.(type) {
	case nil:
		return value.NilValue
	case bool:
		return value.Bool_(x)
	case float64:
		return value.Number_(x)
	case string:
		return value.Obj_(v.InternString(x))
	case []any:
		list := v.NewList()
		for _, el := range x {
			list.Elements = append(list.Elements, fromJSONValue(v, el))
		}
		return value.Obj_(list)
	case map[string]any:
		dict := v.NewDict()
		for k, val := range x {
			dict.Table.Set(v.InternString(k), fromJSONValue(v, val))
		}
		return value.Obj_(dict)
	default:
		return value.NilValue
	}
}
