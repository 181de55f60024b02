// Package disasm renders a compiled chunk as human-readable bytecode
// listings, for the "-trace" flag and the "disassemble" CLI subcommand.
package disasm

import (
	"fmt"
	"strings"

	"github.com/kristofer/fer/internal/chunk"
	"github.com/kristofer/fer/internal/object"
)

// Function disassembles a whole function's chunk under a "== name =="
// header, one instruction per line: a 4-wide offset, a 4-wide source line
// (or "   |" when it repeats the previous instruction's line), the opcode
// name, then its operands.
func Function(fn *object.Function, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	c := fn.Chunk
	for offset := 0; offset < c.Count(); {
		_, offset = Instruction(&b, c, offset)
	}
	return b.String()
}

// Instruction writes one disassembled instruction to w and returns the
// offset of the next instruction. It's also the hook VM.Trace calls for
// live "-trace" output, so the two paths can never drift apart.
func Instruction(w *strings.Builder, c *chunk.Chunk, offset int) (lineShown int, next int) {
	fmt.Fprintf(w, "%4d ", offset)
	line := c.Lines[offset]
	if offset > 0 && c.Lines[offset-1] == line {
		fmt.Fprint(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", line)
	}

	op := chunk.Op(c.Code[offset])
	switch op {
	case chunk.OpConstant, chunk.OpGetGlobal, chunk.OpSetGlobal, chunk.OpDefineGlobal,
		chunk.OpDefineGlobalPerm, chunk.OpGetProperty, chunk.OpSetProperty,
		chunk.OpGetSuper, chunk.OpClass, chunk.OpMethod:
		return line, constantInstruction(w, op, c, offset)

	case chunk.OpGetLocal, chunk.OpSetLocal, chunk.OpGetUpvalue, chunk.OpSetUpvalue,
		chunk.OpCall, chunk.OpList, chunk.OpDictionary:
		return line, byteInstruction(w, op, c, offset)

	case chunk.OpInvoke, chunk.OpSuperInvoke:
		return line, invokeInstruction(w, op, c, offset)

	case chunk.OpJump, chunk.OpJumpIfFalse:
		return line, jumpInstruction(w, op, c, offset, 1)
	case chunk.OpLoop:
		return line, jumpInstruction(w, op, c, offset, -1)

	case chunk.OpClosure:
		return line, closureInstruction(w, c, offset)

	default:
		fmt.Fprintf(w, "%s\n", op)
		return line, offset + 1
	}
}

func constantInstruction(w *strings.Builder, op chunk.Op, c *chunk.Chunk, offset int) int {
	idx := c.Code[offset+1]
	fmt.Fprintf(w, "%-18s %4d '%s'\n", op, idx, c.Constants[idx].String())
	return offset + 2
}

func byteInstruction(w *strings.Builder, op chunk.Op, c *chunk.Chunk, offset int) int {
	slot := c.Code[offset+1]
	fmt.Fprintf(w, "%-18s %4d\n", op, slot)
	return offset + 2
}

func invokeInstruction(w *strings.Builder, op chunk.Op, c *chunk.Chunk, offset int) int {
	idx := c.Code[offset+1]
	argc := c.Code[offset+2]
	fmt.Fprintf(w, "%-18s (%d args) %4d '%s'\n", op, argc, idx, c.Constants[idx].String())
	return offset + 3
}

func jumpInstruction(w *strings.Builder, op chunk.Op, c *chunk.Chunk, offset int, sign int) int {
	jump := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
	fmt.Fprintf(w, "%-18s %4d -> %d\n", op, offset, offset+3+sign*jump)
	return offset + 3
}

func closureInstruction(w *strings.Builder, c *chunk.Chunk, offset int) int {
	idx := c.Code[offset+1]
	offset += 2
	fn := c.Constants[idx].AsObj().(*object.Function)
	fmt.Fprintf(w, "%-18s %4d '%s'\n", chunk.OpClosure, idx, fn.String())
	for i := 0; i < fn.UpvalueCount; i++ {
		isLocal := c.Code[offset]
		index := c.Code[offset+1]
		offset += 2
		kind := "upvalue"
		if isLocal != 0 {
			kind = "local"
		}
		fmt.Fprintf(w, "%4d      |                     %s %d\n", offset-2, kind, index)
	}
	return offset
}
