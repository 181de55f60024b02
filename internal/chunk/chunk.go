// Package chunk defines Fer's bytecode container: a flat byte array, a
// parallel per-byte source-line array, and a constant pool, plus the opcode
// table the compiler emits into and the VM decodes.
//
// A Chunk is owned by exactly one object.Function; nested function
// prototypes live in the enclosing chunk's constant pool as ordinary
// values, the same way number and string literals do.
package chunk

import "github.com/kristofer/fer/internal/value"

// Op is a single bytecode instruction opcode.
type Op byte

// The instruction set. Operand widths are documented per-opcode below;
// jump operands are 16-bit big-endian.
const (
	OpConstant Op = iota
	OpNil
	OpTrue
	OpFalse
	OpPop
	OpGetLocal  // u8 slot
	OpSetLocal  // u8 slot
	OpGetGlobal // u8 name-const idx
	OpSetGlobal
	OpDefineGlobal
	OpDefineGlobalPerm
	OpGetUpvalue // u8 slot
	OpSetUpvalue
	OpGetProperty // u8 name-const idx
	OpSetProperty
	OpGetSuper
	OpGetItem
	OpSetItem
	OpEqual
	OpGreater
	OpLess
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpNot
	OpNegate
	OpPrint
	OpJump         // u16 BE forward offset
	OpJumpIfFalse  // u16 BE forward offset
	OpLoop         // u16 BE backward offset
	OpCall         // u8 argc
	OpInvoke       // u8 name-const idx, u8 argc
	OpSuperInvoke  // u8 name-const idx, u8 argc
	OpClosure      // u8 function-const idx, then N*(u8 isLocal, u8 index)
	OpCloseUpvalue
	OpList       // u8 count
	OpDictionary // u8 pair count
	OpClass      // u8 name-const idx
	OpInherit
	OpMethod // u8 name-const idx
	OpReturn
)

// opNames backs Op.String for the disassembler and for error messages.
var opNames = [...]string{
	OpConstant:          "OP_CONSTANT",
	OpNil:                "OP_NIL",
	OpTrue:               "OP_TRUE",
	OpFalse:              "OP_FALSE",
	OpPop:                "OP_POP",
	OpGetLocal:           "OP_GET_LOCAL",
	OpSetLocal:           "OP_SET_LOCAL",
	OpGetGlobal:          "OP_GET_GLOBAL",
	OpSetGlobal:          "OP_SET_GLOBAL",
	OpDefineGlobal:       "OP_DEFINE_GLOBAL",
	OpDefineGlobalPerm:   "OP_DEFINE_GLOBAL_PERM",
	OpGetUpvalue:         "OP_GET_UPVALUE",
	OpSetUpvalue:         "OP_SET_UPVALUE",
	OpGetProperty:        "OP_GET_PROPERTY",
	OpSetProperty:        "OP_SET_PROPERTY",
	OpGetSuper:           "OP_GET_SUPER",
	OpGetItem:            "OP_GET_ITEM",
	OpSetItem:            "OP_SET_ITEM",
	OpEqual:              "OP_EQUAL",
	OpGreater:            "OP_GREATER",
	OpLess:               "OP_LESS",
	OpAdd:                "OP_ADD",
	OpSubtract:           "OP_SUBTRACT",
	OpMultiply:           "OP_MULTIPLY",
	OpDivide:             "OP_DIVIDE",
	OpNot:                "OP_NOT",
	OpNegate:             "OP_NEGATE",
	OpPrint:              "OP_PRINT",
	OpJump:               "OP_JUMP",
	OpJumpIfFalse:        "OP_JUMP_IF_FALSE",
	OpLoop:               "OP_LOOP",
	OpCall:               "OP_CALL",
	OpInvoke:             "OP_INVOKE",
	OpSuperInvoke:        "OP_SUPER_INVOKE",
	OpClosure:            "OP_CLOSURE",
	OpCloseUpvalue:       "OP_CLOSE_UPVALUE",
	OpList:               "OP_LIST",
	OpDictionary:         "OP_DICTIONARY",
	OpClass:              "OP_CLASS",
	OpInherit:            "OP_INHERIT",
	OpMethod:             "OP_METHOD",
	OpReturn:             "OP_RETURN",
}

func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return "OP_UNKNOWN"
}

// Chunk is a compiled function's code: bytes, a parallel line map (one
// entry per byte), and a constant pool.
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []value.Value
}

// New returns an empty chunk.
func New() *Chunk {
	return &Chunk{}
}

// Write appends a raw byte recorded against the given source line.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// WriteOp appends an opcode byte.
func (c *Chunk) WriteOp(op Op, line int) {
	c.Write(byte(op), line)
}

// AddConstant appends a value to the constant pool and returns its index.
// The compiler is responsible for enforcing the 256-entry ceiling; this
// method just reports where the value landed.
func (c *Chunk) AddConstant(v value.Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// Count is the number of bytes emitted so far.
func (c *Chunk) Count() int { return len(c.Code) }
