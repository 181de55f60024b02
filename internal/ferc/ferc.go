// Package ferc implements Fer's compiled-chunk binary format (".ferc"
// files): Encode/Decode around a magic number, a version header, and a
// recursively-encoded function prototype.
//
// "fer compile" writes a .ferc file, and "fer run" on that file skips
// re-parsing and re-compiling the source.
package ferc

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/kristofer/fer/internal/chunk"
	"github.com/kristofer/fer/internal/object"
	"github.com/kristofer/fer/internal/value"
)

const (
	magicNumber   uint32 = 0x46455243 // "FERC"
	formatVersion uint32 = 1
)

const (
	constTypeNumber   byte = 0x01
	constTypeString   byte = 0x02
	constTypeFunction byte = 0x03
)

// Encode serializes the top-level script function fn to w.
func Encode(fn *object.Function, w io.Writer) error {
	if err := writeHeader(w); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return writeFunction(w, fn)
}

// Decode deserializes a top-level script function from r.
func Decode(r io.Reader) (*object.Function, error) {
	version, err := readHeader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if version != formatVersion {
		return nil, fmt.Errorf("unsupported .ferc version: %d (expected %d)", version, formatVersion)
	}
	return readFunction(r)
}

func writeHeader(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, magicNumber); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, formatVersion)
}

func readHeader(r io.Reader) (uint32, error) {
	var magic uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return 0, err
	}
	if magic != magicNumber {
		return 0, fmt.Errorf("invalid magic number: 0x%08X (expected 0x%08X)", magic, magicNumber)
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return 0, err
	}
	return version, nil
}

// writeFunction writes one function prototype: name, arity, upvalue
// count, constant pool, then code + line table.
func writeFunction(w io.Writer, fn *object.Function) error {
	if err := writeString(w, nameOf(fn)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(fn.Arity)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(fn.UpvalueCount)); err != nil {
		return err
	}
	if err := writeConstants(w, fn.Chunk.Constants); err != nil {
		return err
	}
	return writeCode(w, fn.Chunk)
}

func readFunction(r io.Reader) (*object.Function, error) {
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	var arity, upvalueCount uint8
	if err := binary.Read(r, binary.LittleEndian, &arity); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &upvalueCount); err != nil {
		return nil, err
	}
	fn := object.NewFunction()
	if name != "" {
		fn.Name = object.NewString(name)
	}
	fn.Arity = int(arity)
	fn.UpvalueCount = int(upvalueCount)

	constants, err := readConstants(r)
	if err != nil {
		return nil, err
	}
	fn.Chunk.Constants = constants

	return fn, readCode(r, fn.Chunk)
}

func nameOf(fn *object.Function) string {
	if fn.Name == nil {
		return ""
	}
	return fn.Name.Chars
}

func writeConstants(w io.Writer, constants []value.Value) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(constants))); err != nil {
		return err
	}
	for i, c := range constants {
		if err := writeConstant(w, c); err != nil {
			return fmt.Errorf("failed to write constant %d: %w", i, err)
		}
	}
	return nil
}

func writeConstant(w io.Writer, c value.Value) error {
	switch {
	case c.IsNumber():
		if err := binary.Write(w, binary.LittleEndian, constTypeNumber); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, c.AsNumber())
	case c.IsObjType(value.ObjString):
		if err := binary.Write(w, binary.LittleEndian, constTypeString); err != nil {
			return err
		}
		return writeString(w, c.AsObj().(*object.String).Chars)
	case c.IsObjType(value.ObjFunction):
		if err := binary.Write(w, binary.LittleEndian, constTypeFunction); err != nil {
			return err
		}
		return writeFunction(w, c.AsObj().(*object.Function))
	default:
		return fmt.Errorf("unsupported constant type for .ferc: %v", c.Type())
	}
}

func readConstants(r io.Reader) ([]value.Value, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	constants := make([]value.Value, count)
	for i := uint32(0); i < count; i++ {
		c, err := readConstant(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read constant %d: %w", i, err)
		}
		constants[i] = c
	}
	return constants, nil
}

func readConstant(r io.Reader) (value.Value, error) {
	var t byte
	if err := binary.Read(r, binary.LittleEndian, &t); err != nil {
		return value.NilValue, err
	}
	switch t {
	case constTypeNumber:
		var n float64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return value.NilValue, err
		}
		return value.Number_(n), nil
	case constTypeString:
		s, err := readString(r)
		if err != nil {
			return value.NilValue, err
		}
		return value.Obj_(object.NewString(s)), nil
	case constTypeFunction:
		fn, err := readFunction(r)
		if err != nil {
			return value.NilValue, err
		}
		return value.Obj_(fn), nil
	default:
		return value.NilValue, fmt.Errorf("unknown constant type: 0x%02X", t)
	}
}

func writeCode(w io.Writer, c *chunk.Chunk) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(c.Code))); err != nil {
		return err
	}
	if _, err := w.Write(c.Code); err != nil {
		return err
	}
	for _, line := range c.Lines {
		if err := binary.Write(w, binary.LittleEndian, int32(line)); err != nil {
			return err
		}
	}
	return nil
}

func readCode(r io.Reader, c *chunk.Chunk) error {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return err
	}
	c.Code = make([]byte, count)
	if _, err := io.ReadFull(r, c.Code); err != nil {
		return err
	}
	c.Lines = make([]int, count)
	for i := uint32(0); i < count; i++ {
		var line int32
		if err := binary.Read(r, binary.LittleEndian, &line); err != nil {
			return err
		}
		c.Lines[i] = int(line)
	}
	return nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
