// Package compiler implements Fer's single-pass compiler: a Pratt parser
// whose prefix/infix handlers emit bytecode directly, with no intermediate
// AST.
package compiler

import (
	"fmt"
	"strconv"

	"github.com/kristofer/fer/internal/chunk"
	"github.com/kristofer/fer/internal/gc"
	"github.com/kristofer/fer/internal/lexer"
	"github.com/kristofer/fer/internal/object"
	"github.com/kristofer/fer/internal/value"
)

// Precedence levels, lowest to highest, so the table below can compare
// levels numerically.
type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssignment
	PrecOr
	PrecAnd
	PrecEquality
	PrecComparison
	PrecTerm
	PrecFactor
	PrecUnary
	PrecCall
	PrecPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

var rules map[lexer.TokenType]parseRule

func init() {
	rules = map[lexer.TokenType]parseRule{
		lexer.TokenLeftParen:    {(*Compiler).grouping, (*Compiler).call, PrecCall},
		lexer.TokenDot:          {nil, (*Compiler).dot, PrecCall},
		lexer.TokenLeftBracket:  {(*Compiler).list, (*Compiler).index, PrecCall},
		lexer.TokenLeftBrace:    {(*Compiler).dictionary, nil, PrecNone},
		lexer.TokenMinus:        {(*Compiler).unary, (*Compiler).binary, PrecTerm},
		lexer.TokenPlus:         {nil, (*Compiler).binary, PrecTerm},
		lexer.TokenSlash:        {nil, (*Compiler).binary, PrecFactor},
		lexer.TokenStar:         {nil, (*Compiler).binary, PrecFactor},
		lexer.TokenBang:         {(*Compiler).unary, nil, PrecNone},
		lexer.TokenBangEqual:    {nil, (*Compiler).binary, PrecEquality},
		lexer.TokenEqualEqual:   {nil, (*Compiler).binary, PrecEquality},
		lexer.TokenGreater:      {nil, (*Compiler).binary, PrecComparison},
		lexer.TokenGreaterEqual: {nil, (*Compiler).binary, PrecComparison},
		lexer.TokenLess:         {nil, (*Compiler).binary, PrecComparison},
		lexer.TokenLessEqual:    {nil, (*Compiler).binary, PrecComparison},
		lexer.TokenIdentifier:   {(*Compiler).variable, nil, PrecNone},
		lexer.TokenString:       {(*Compiler).string, nil, PrecNone},
		lexer.TokenNumber:       {(*Compiler).number, nil, PrecNone},
		lexer.TokenAnd:          {nil, (*Compiler).and, PrecAnd},
		lexer.TokenOr:           {nil, (*Compiler).or, PrecOr},
		lexer.TokenFalse:        {(*Compiler).literal, nil, PrecNone},
		lexer.TokenTrue:         {(*Compiler).literal, nil, PrecNone},
		lexer.TokenNil:          {(*Compiler).literal, nil, PrecNone},
		lexer.TokenThis:         {(*Compiler).this, nil, PrecNone},
		lexer.TokenSuper:        {(*Compiler).super, nil, PrecNone},
	}
}

func (c *Compiler) ruleFor(t lexer.TokenType) parseRule {
	return rules[t] // zero value {nil, nil, PrecNone} for every token with no rule
}

// FunctionType distinguishes the top-level script, plain functions,
// methods, and initializers, since slot 0 and `return` rules differ per
// kind.
type FunctionType int

const (
	TypeScript FunctionType = iota
	TypeFunction
	TypeMethod
	TypeInitializer
)

// Local is a compile-time record of a stack slot bound to a name.
// Depth == -1 means "declared but not yet initialized": its own
// initializer hasn't finished compiling, so a reference to it in that
// initializer's expression is a compile error rather than reading garbage.
type Local struct {
	Name        string
	Depth       int
	IsCaptured  bool
	IsPermanent bool
}

// upvalueRef is a compile-time record of a captured variable, matching
// the bytecode OP_CLOSURE operand pair (is_local, index).
type upvalueRef struct {
	Index   byte
	IsLocal bool
}

type loopScope struct {
	start       int
	scopeDepth  int
	breakJumps  []int
}

// funcState is one frame of the compiler's frame stack: the function
// currently being compiled, its locals/upvalues, and its loop nesting.
type funcState struct {
	enclosing *funcState
	function  *object.Function
	funcType  FunctionType

	locals     []Local
	scopeDepth int
	upvalues   []upvalueRef
	loops      []*loopScope
}

type classState struct {
	enclosing     *classState
	hasSuperclass bool
}

// Compiler turns Fer source directly into a compiled object.Function
// representing the top-level script, compiling nested functions and
// methods into their own constants along the way.
type Compiler struct {
	lex       *lexer.Lexer
	current   lexer.Token
	previous  lexer.Token
	hadError  bool
	panicMode bool
	errors    []string

	fs *funcState
	cs *classState

	strings *object.Pool
	gc      *gc.Collector
}

// Compile compiles source into a top-level script function. The second
// return value is non-nil only if compilation failed; the function is
// always returned so callers that want a partial disassembly can still
// have one, though a caller that sees errors should not execute the
// result.
func Compile(source string, strings *object.Pool, collector *gc.Collector) (*object.Function, []string) {
	c := &Compiler{lex: lexer.New(source), strings: strings, gc: collector}
	c.pushFunc(TypeScript, "")

	c.advance()
	for !c.match(lexer.TokenEOF) {
		c.declaration()
	}

	fn := c.endFunc()
	if c.hadError {
		return fn, c.errors
	}
	return fn, nil
}

func (c *Compiler) pushFunc(t FunctionType, name string) {
	fn := gc.Alloc(c.gc, object.NewFunction(), 64)
	if t != TypeScript {
		fn.Name = c.strings.Intern(name)
	}
	fs := &funcState{enclosing: c.fs, function: fn, funcType: t}
	// Slot 0 is reserved: the callee itself for plain calls, the receiver
	// for methods/initializers.
	slotZeroName := ""
	if t == TypeMethod || t == TypeInitializer {
		slotZeroName = "this"
	}
	fs.locals = append(fs.locals, Local{Name: slotZeroName, Depth: 0})
	c.fs = fs
}

func (c *Compiler) endFunc() *object.Function {
	c.emitReturn()
	fn := c.fs.function
	fn.UpvalueCount = len(c.fs.upvalues)
	upvalues := c.fs.upvalues
	c.fs = c.fs.enclosing
	if c.fs == nil {
		return fn
	}
	idx := c.makeConstant(value.Obj_(fn))
	c.emitBytes(byte(chunk.OpClosure), idx)
	for _, uv := range upvalues {
		c.emitByte(boolByte(uv.IsLocal))
		c.emitByte(uv.Index)
	}
	return fn
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func (c *Compiler) currentChunk() *chunk.Chunk { return c.fs.function.Chunk }

// ---- token stream -------------------------------------------------------

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.lex.Next()
		if c.current.Type != lexer.TokenError {
			break
		}
		c.errorAtCurrent(c.current.Lexeme)
	}
}

func (c *Compiler) check(t lexer.TokenType) bool { return c.current.Type == t }

func (c *Compiler) match(t lexer.TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t lexer.TokenType, msg string) {
	if c.current.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

func (c *Compiler) errorAtCurrent(msg string) { c.errorAt(c.current, msg) }
func (c *Compiler) error(msg string)          { c.errorAt(c.previous, msg) }

func (c *Compiler) errorAt(tok lexer.Token, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true
	where := ""
	switch {
	case tok.Type == lexer.TokenEOF:
		where = " at end"
	case tok.Type == lexer.TokenError:
		// lexeme already is the message
	default:
		where = fmt.Sprintf(" at '%s'", tok.Lexeme)
	}
	c.errors = append(c.errors, fmt.Sprintf("[line %d] Error%s: %s", tok.Line, where, msg))
}

// synchronize skips tokens until a statement boundary or the start of a
// declaration keyword, so one error doesn't cascade into a run of bogus
// follow-on errors.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.current.Type != lexer.TokenEOF {
		if c.previous.Type == lexer.TokenSemicolon {
			return
		}
		switch c.current.Type {
		case lexer.TokenClass, lexer.TokenFun, lexer.TokenVar, lexer.TokenPerm,
			lexer.TokenFor, lexer.TokenIf, lexer.TokenWhile, lexer.TokenPrint, lexer.TokenReturn:
			return
		}
		c.advance()
	}
}

// ---- byte emission --------------------------------------------------------

func (c *Compiler) emitByte(b byte) { c.currentChunk().Write(b, c.previous.Line) }

func (c *Compiler) emitOp(op chunk.Op) { c.emitByte(byte(op)) }

func (c *Compiler) emitBytes(a, b byte) {
	c.emitByte(a)
	c.emitByte(b)
}

func (c *Compiler) emitOpByte(op chunk.Op, operand byte) { c.emitBytes(byte(op), operand) }

func (c *Compiler) emitReturn() {
	if c.fs.funcType == TypeInitializer {
		c.emitOpByte(chunk.OpGetLocal, 0)
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.emitOp(chunk.OpReturn)
}

func (c *Compiler) makeConstant(v value.Value) byte {
	idx := c.currentChunk().AddConstant(v)
	if idx > 255 {
		c.error("Too many constants in one chunk.")
		return 0
	}
	return byte(idx)
}

func (c *Compiler) emitConstant(v value.Value) {
	c.emitOpByte(chunk.OpConstant, c.makeConstant(v))
}

// emitJump emits op followed by a two-byte placeholder and returns the
// placeholder's offset for patchJump.
func (c *Compiler) emitJump(op chunk.Op) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return c.currentChunk().Count() - 2
}

func (c *Compiler) patchJump(offset int) {
	jump := c.currentChunk().Count() - offset - 2
	if jump > 0xffff {
		c.error("Too much code to jump over.")
	}
	c.currentChunk().Code[offset] = byte(jump >> 8)
	c.currentChunk().Code[offset+1] = byte(jump & 0xff)
}

func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(chunk.OpLoop)
	offset := c.currentChunk().Count() - loopStart + 2
	if offset > 0xffff {
		c.error("Loop body too large.")
	}
	c.emitByte(byte(offset >> 8))
	c.emitByte(byte(offset & 0xff))
}

// ---- identifiers, locals, upvalues ---------------------------------------

func (c *Compiler) identifierConstant(name string) byte {
	return c.makeConstant(value.Obj_(c.strings.Intern(name)))
}

func (c *Compiler) beginScope() { c.fs.scopeDepth++ }

func (c *Compiler) endScope() {
	c.fs.scopeDepth--
	for len(c.fs.locals) > 0 && c.fs.locals[len(c.fs.locals)-1].Depth > c.fs.scopeDepth {
		last := c.fs.locals[len(c.fs.locals)-1]
		if last.IsCaptured {
			c.emitOp(chunk.OpCloseUpvalue)
		} else {
			c.emitOp(chunk.OpPop)
		}
		c.fs.locals = c.fs.locals[:len(c.fs.locals)-1]
	}
}

func (c *Compiler) addLocal(name string) {
	if len(c.fs.locals) >= 256 {
		c.error("Too many local variables in function.")
		return
	}
	c.fs.locals = append(c.fs.locals, Local{Name: name, Depth: -1})
}

func (c *Compiler) declareVariable(name string) {
	if c.fs.scopeDepth == 0 {
		return
	}
	for i := len(c.fs.locals) - 1; i >= 0; i-- {
		local := c.fs.locals[i]
		if local.Depth != -1 && local.Depth < c.fs.scopeDepth {
			break
		}
		if local.Name == name {
			c.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

func (c *Compiler) markInitialized(isPermanent bool) {
	if c.fs.scopeDepth == 0 {
		return
	}
	idx := len(c.fs.locals) - 1
	c.fs.locals[idx].Depth = c.fs.scopeDepth
	c.fs.locals[idx].IsPermanent = isPermanent
}

func (c *Compiler) parseVariable(errMsg string) byte {
	c.consume(lexer.TokenIdentifier, errMsg)
	name := c.previous.Lexeme
	c.declareVariable(name)
	if c.fs.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(name)
}

func (c *Compiler) defineVariable(global byte, isPermanent bool) {
	if c.fs.scopeDepth > 0 {
		c.markInitialized(isPermanent)
		return
	}
	if isPermanent {
		c.emitOpByte(chunk.OpDefineGlobalPerm, global)
	} else {
		c.emitOpByte(chunk.OpDefineGlobal, global)
	}
}

func resolveLocal(fs *funcState, name string) (int, error) {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].Name == name {
			if fs.locals[i].Depth == -1 {
				return -1, fmt.Errorf("Can't read local variable in its own initializer.")
			}
			return i, nil
		}
	}
	return -1, nil
}

func (c *Compiler) addUpvalue(fs *funcState, index byte, isLocal bool) int {
	for i, uv := range fs.upvalues {
		if uv.Index == index && uv.IsLocal == isLocal {
			return i
		}
	}
	if len(fs.upvalues) >= 256 {
		c.error("Too many closure variables in function.")
		return 0
	}
	fs.upvalues = append(fs.upvalues, upvalueRef{Index: index, IsLocal: isLocal})
	return len(fs.upvalues) - 1
}

func (c *Compiler) resolveUpvalue(fs *funcState, name string) (int, error) {
	if fs.enclosing == nil {
		return -1, nil
	}
	local, err := resolveLocal(fs.enclosing, name)
	if err != nil {
		return -1, err
	}
	if local != -1 {
		fs.enclosing.locals[local].IsCaptured = true
		return c.addUpvalue(fs, byte(local), true), nil
	}
	upvalue, err := c.resolveUpvalue(fs.enclosing, name)
	if err != nil {
		return -1, err
	}
	if upvalue != -1 {
		return c.addUpvalue(fs, byte(upvalue), false), nil
	}
	return -1, nil
}

func (c *Compiler) namedVariable(name string, canAssign bool) {
	var getOp, setOp chunk.Op
	local, err := resolveLocal(c.fs, name)
	if err != nil {
		c.error(err.Error())
		return
	}
	var arg byte
	isLocalTarget := false
	if local != -1 {
		arg = byte(local)
		getOp, setOp = chunk.OpGetLocal, chunk.OpSetLocal
		isLocalTarget = true
	} else if up, uerr := c.resolveUpvalue(c.fs, name); uerr != nil {
		c.error(uerr.Error())
		return
	} else if up != -1 {
		arg = byte(up)
		getOp, setOp = chunk.OpGetUpvalue, chunk.OpSetUpvalue
	} else {
		arg = c.identifierConstant(name)
		getOp, setOp = chunk.OpGetGlobal, chunk.OpSetGlobal
	}

	if canAssign && c.match(lexer.TokenEqual) {
		if isLocalTarget && c.fs.locals[local].IsPermanent {
			c.error("Cannot reassign permanent variable.")
		}
		c.expression()
		c.emitOpByte(setOp, arg)
	} else {
		c.emitOpByte(getOp, arg)
	}
}

// ---- declarations and statements ------------------------------------------

func (c *Compiler) declaration() {
	switch {
	case c.match(lexer.TokenVar):
		c.varDeclaration(false)
	case c.match(lexer.TokenPerm):
		c.varDeclaration(true)
	case c.match(lexer.TokenFun):
		c.funDeclaration()
	case c.match(lexer.TokenClass):
		c.classDeclaration()
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) varDeclaration(isPermanent bool) {
	global := c.parseVariable("Expect variable name.")

	if c.match(lexer.TokenEqual) {
		c.expression()
	} else if isPermanent {
		c.error("Permanent variable must have an initializer.")
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.consume(lexer.TokenSemicolon, "Expect ';' after variable declaration.")
	c.defineVariable(global, isPermanent)
}

func (c *Compiler) funDeclaration() {
	global := c.parseVariable("Expect function name.")
	c.markInitialized(false) // allow recursive reference to self
	c.function(TypeFunction)
	c.defineVariable(global, false)
}

func (c *Compiler) function(t FunctionType) {
	c.pushFunc(t, c.previous.Lexeme)
	c.beginScope()

	c.consume(lexer.TokenLeftParen, "Expect '(' after function name.")
	if !c.check(lexer.TokenRightParen) {
		for {
			c.fs.function.Arity++
			if c.fs.function.Arity > 255 {
				c.errorAtCurrent("Can't have more than 255 parameters.")
			}
			constant := c.parseVariable("Expect parameter name.")
			c.defineVariable(constant, false)
			if !c.match(lexer.TokenComma) {
				break
			}
		}
	}
	c.consume(lexer.TokenRightParen, "Expect ')' after parameters.")
	c.consume(lexer.TokenLeftBrace, "Expect '{' before function body.")
	c.block()

	c.endFunc()
}

func (c *Compiler) classDeclaration() {
	c.consume(lexer.TokenIdentifier, "Expect class name.")
	className := c.previous.Lexeme
	nameConstant := c.identifierConstant(className)
	c.declareVariable(className)

	c.emitOpByte(chunk.OpClass, nameConstant)
	c.defineVariable(nameConstant, false)

	cs := &classState{enclosing: c.cs}
	c.cs = cs

	if c.match(lexer.TokenLess) {
		c.consume(lexer.TokenIdentifier, "Expect superclass name.")
		superName := c.previous.Lexeme
		if superName == className {
			c.error("A class can't inherit from itself.")
		}
		c.namedVariable(superName, false)

		c.beginScope()
		c.addLocal("super")
		c.defineVariable(0, false)

		c.namedVariable(className, false)
		c.emitOp(chunk.OpInherit)
		cs.hasSuperclass = true
	}

	c.namedVariable(className, false)
	c.consume(lexer.TokenLeftBrace, "Expect '{' before class body.")
	for !c.check(lexer.TokenRightBrace) && !c.check(lexer.TokenEOF) {
		c.method()
	}
	c.consume(lexer.TokenRightBrace, "Expect '}' after class body.")
	c.emitOp(chunk.OpPop)

	if cs.hasSuperclass {
		c.endScope()
	}
	c.cs = cs.enclosing
}

func (c *Compiler) method() {
	c.consume(lexer.TokenIdentifier, "Expect method name.")
	name := c.previous.Lexeme
	constant := c.identifierConstant(name)

	t := TypeMethod
	if name == "init" {
		t = TypeInitializer
	}
	c.function(t)
	c.emitOpByte(chunk.OpMethod, constant)
}

func (c *Compiler) statement() {
	switch {
	case c.match(lexer.TokenPrint):
		c.printStatement()
	case c.match(lexer.TokenIf):
		c.ifStatement()
	case c.match(lexer.TokenWhile):
		c.whileStatement()
	case c.match(lexer.TokenFor):
		c.forStatement()
	case c.match(lexer.TokenReturn):
		c.returnStatement()
	case c.match(lexer.TokenBreak):
		c.breakStatement()
	case c.match(lexer.TokenContinue):
		c.continueStatement()
	case c.match(lexer.TokenLeftBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(lexer.TokenSemicolon, "Expect ';' after value.")
	c.emitOp(chunk.OpPrint)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(lexer.TokenSemicolon, "Expect ';' after expression.")
	c.emitOp(chunk.OpPop)
}

func (c *Compiler) block() {
	for !c.check(lexer.TokenRightBrace) && !c.check(lexer.TokenEOF) {
		c.declaration()
	}
	c.consume(lexer.TokenRightBrace, "Expect '}' after block.")
}

func (c *Compiler) ifStatement() {
	c.consume(lexer.TokenLeftParen, "Expect '(' after 'if'.")
	c.expression()
	c.consume(lexer.TokenRightParen, "Expect ')' after condition.")

	thenJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()

	elseJump := c.emitJump(chunk.OpJump)
	c.patchJump(thenJump)
	c.emitOp(chunk.OpPop)

	if c.match(lexer.TokenElse) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := c.currentChunk().Count()
	loop := &loopScope{start: loopStart, scopeDepth: c.fs.scopeDepth}
	c.fs.loops = append(c.fs.loops, loop)

	c.consume(lexer.TokenLeftParen, "Expect '(' after 'while'.")
	c.expression()
	c.consume(lexer.TokenRightParen, "Expect ')' after condition.")

	exitJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(chunk.OpPop)

	c.patchLoopBreaks(loop)
	c.fs.loops = c.fs.loops[:len(c.fs.loops)-1]
}

func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(lexer.TokenLeftParen, "Expect '(' after 'for'.")

	switch {
	case c.match(lexer.TokenSemicolon):
		// no initializer
	case c.match(lexer.TokenVar):
		c.varDeclaration(false)
	default:
		c.expressionStatement()
	}

	loopStart := c.currentChunk().Count()
	exitJump := -1
	if !c.match(lexer.TokenSemicolon) {
		c.expression()
		c.consume(lexer.TokenSemicolon, "Expect ';' after loop condition.")
		exitJump = c.emitJump(chunk.OpJumpIfFalse)
		c.emitOp(chunk.OpPop)
	}

	if !c.check(lexer.TokenRightParen) {
		bodyJump := c.emitJump(chunk.OpJump)
		incrementStart := c.currentChunk().Count()
		c.expression()
		c.emitOp(chunk.OpPop)
		c.consume(lexer.TokenRightParen, "Expect ')' after for clauses.")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	} else {
		c.consume(lexer.TokenRightParen, "Expect ')' after for clauses.")
	}

	loop := &loopScope{start: loopStart, scopeDepth: c.fs.scopeDepth}
	c.fs.loops = append(c.fs.loops, loop)

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(chunk.OpPop)
	}

	c.patchLoopBreaks(loop)
	c.fs.loops = c.fs.loops[:len(c.fs.loops)-1]
	c.endScope()
}

func (c *Compiler) patchLoopBreaks(loop *loopScope) {
	for _, jmp := range loop.breakJumps {
		c.patchJump(jmp)
	}
}

func (c *Compiler) returnStatement() {
	if c.fs.funcType == TypeScript {
		c.error("Can't return from top-level code.")
	}
	if c.match(lexer.TokenSemicolon) {
		c.emitReturn()
		return
	}
	if c.fs.funcType == TypeInitializer {
		c.error("Can't return a value from an initializer.")
	}
	c.expression()
	c.consume(lexer.TokenSemicolon, "Expect ';' after return value.")
	c.emitOp(chunk.OpReturn)
}

func (c *Compiler) breakStatement() {
	c.consume(lexer.TokenSemicolon, "Expect ';' after 'break'.")
	if len(c.fs.loops) == 0 {
		c.error("Can't use 'break' outside a loop.")
		return
	}
	loop := c.fs.loops[len(c.fs.loops)-1]
	c.popLocalsToLoopDepth(loop)
	jmp := c.emitJump(chunk.OpJump)
	loop.breakJumps = append(loop.breakJumps, jmp)
}

func (c *Compiler) continueStatement() {
	c.consume(lexer.TokenSemicolon, "Expect ';' after 'continue'.")
	if len(c.fs.loops) == 0 {
		c.error("Can't use 'continue' outside a loop.")
		return
	}
	loop := c.fs.loops[len(c.fs.loops)-1]
	c.popLocalsToLoopDepth(loop)
	c.emitLoop(loop.start)
}

// popLocalsToLoopDepth emits the stack cleanup a break/continue jump must
// perform itself, since it bypasses the normal end-of-scope pops.
func (c *Compiler) popLocalsToLoopDepth(loop *loopScope) {
	for i := len(c.fs.locals) - 1; i >= 0 && c.fs.locals[i].Depth > loop.scopeDepth; i-- {
		if c.fs.locals[i].IsCaptured {
			c.emitOp(chunk.OpCloseUpvalue)
		} else {
			c.emitOp(chunk.OpPop)
		}
	}
}

// ---- expressions -----------------------------------------------------------

func (c *Compiler) expression() { c.parsePrecedence(PrecAssignment) }

func (c *Compiler) parsePrecedence(prec Precedence) {
	c.advance()
	rule := c.ruleFor(c.previous.Type)
	if rule.prefix == nil {
		c.error("Expect expression.")
		return
	}
	canAssign := prec <= PrecAssignment
	rule.prefix(c, canAssign)

	for prec <= c.ruleFor(c.current.Type).precedence {
		c.advance()
		infix := c.ruleFor(c.previous.Type).infix
		infix(c, canAssign)
	}

	if canAssign && c.match(lexer.TokenEqual) {
		c.error("Invalid assignment target.")
	}
}

func (c *Compiler) number(bool) {
	n, _ := strconv.ParseFloat(c.previous.Lexeme, 64)
	c.emitConstant(value.Number_(n))
}

func (c *Compiler) string(bool) {
	// Strip the surrounding quotes; the scanner includes them in Lexeme.
	raw := c.previous.Lexeme[1 : len(c.previous.Lexeme)-1]
	c.emitConstant(value.Obj_(c.strings.Intern(raw)))
}

func (c *Compiler) literal(bool) {
	switch c.previous.Type {
	case lexer.TokenFalse:
		c.emitOp(chunk.OpFalse)
	case lexer.TokenTrue:
		c.emitOp(chunk.OpTrue)
	case lexer.TokenNil:
		c.emitOp(chunk.OpNil)
	}
}

func (c *Compiler) grouping(bool) {
	c.expression()
	c.consume(lexer.TokenRightParen, "Expect ')' after expression.")
}

func (c *Compiler) unary(bool) {
	opType := c.previous.Type
	c.parsePrecedence(PrecUnary)
	switch opType {
	case lexer.TokenBang:
		c.emitOp(chunk.OpNot)
	case lexer.TokenMinus:
		c.emitOp(chunk.OpNegate)
	}
}

func (c *Compiler) binary(bool) {
	opType := c.previous.Type
	rule := c.ruleFor(opType)
	c.parsePrecedence(rule.precedence + 1)

	switch opType {
	case lexer.TokenBangEqual:
		c.emitOp(chunk.OpEqual)
		c.emitOp(chunk.OpNot)
	case lexer.TokenEqualEqual:
		c.emitOp(chunk.OpEqual)
	case lexer.TokenGreater:
		c.emitOp(chunk.OpGreater)
	case lexer.TokenGreaterEqual:
		c.emitOp(chunk.OpLess)
		c.emitOp(chunk.OpNot)
	case lexer.TokenLess:
		c.emitOp(chunk.OpLess)
	case lexer.TokenLessEqual:
		c.emitOp(chunk.OpGreater)
		c.emitOp(chunk.OpNot)
	case lexer.TokenPlus:
		c.emitOp(chunk.OpAdd)
	case lexer.TokenMinus:
		c.emitOp(chunk.OpSubtract)
	case lexer.TokenStar:
		c.emitOp(chunk.OpMultiply)
	case lexer.TokenSlash:
		c.emitOp(chunk.OpDivide)
	}
}

func (c *Compiler) and(bool) {
	endJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(PrecAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or(bool) {
	elseJump := c.emitJump(chunk.OpJumpIfFalse)
	endJump := c.emitJump(chunk.OpJump)
	c.patchJump(elseJump)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(PrecOr)
	c.patchJump(endJump)
}

func (c *Compiler) call(bool) {
	argc := c.argumentList()
	c.emitOpByte(chunk.OpCall, argc)
}

func (c *Compiler) argumentList() byte {
	var count int
	if !c.check(lexer.TokenRightParen) {
		for {
			c.expression()
			count++
			if count > 255 {
				c.error("Can't have more than 255 arguments.")
			}
			if !c.match(lexer.TokenComma) {
				break
			}
		}
	}
	c.consume(lexer.TokenRightParen, "Expect ')' after arguments.")
	return byte(count)
}

func (c *Compiler) dot(canAssign bool) {
	c.consume(lexer.TokenIdentifier, "Expect property name after '.'.")
	name := c.identifierConstant(c.previous.Lexeme)

	switch {
	case canAssign && c.match(lexer.TokenEqual):
		c.expression()
		c.emitOpByte(chunk.OpSetProperty, name)
	case c.match(lexer.TokenLeftParen):
		argc := c.argumentList()
		c.emitBytes(byte(chunk.OpInvoke), name)
		c.emitByte(argc)
	default:
		c.emitOpByte(chunk.OpGetProperty, name)
	}
}

func (c *Compiler) index(canAssign bool) {
	c.expression()
	c.consume(lexer.TokenRightBracket, "Expect ']' after index.")
	if canAssign && c.match(lexer.TokenEqual) {
		c.expression()
		c.emitOp(chunk.OpSetItem)
	} else {
		c.emitOp(chunk.OpGetItem)
	}
}

func (c *Compiler) list(bool) {
	var count int
	if !c.check(lexer.TokenRightBracket) {
		for {
			c.expression()
			count++
			if count > 255 {
				c.error("Can't have more than 255 elements in a list literal.")
			}
			if !c.match(lexer.TokenComma) {
				break
			}
		}
	}
	c.consume(lexer.TokenRightBracket, "Expect ']' after list elements.")
	c.emitOpByte(chunk.OpList, byte(count))
}

func (c *Compiler) dictionary(bool) {
	var count int
	if !c.check(lexer.TokenRightBrace) {
		for {
			c.expression()
			c.consume(lexer.TokenColon, "Expect ':' after dictionary key.")
			c.expression()
			count++
			if count > 255 {
				c.error("Can't have more than 255 pairs in a dictionary literal.")
			}
			if !c.match(lexer.TokenComma) {
				break
			}
		}
	}
	c.consume(lexer.TokenRightBrace, "Expect '}' after dictionary pairs.")
	c.emitOpByte(chunk.OpDictionary, byte(count))
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.previous.Lexeme, canAssign)
}

func (c *Compiler) this(bool) {
	if c.cs == nil {
		c.error("Can't use 'this' outside of a class.")
		return
	}
	c.namedVariable("this", false)
}

func (c *Compiler) super(bool) {
	if c.cs == nil {
		c.error("Can't use 'super' outside of a class.")
		return
	} else if !c.cs.hasSuperclass {
		c.error("Can't use 'super' in a class with no superclass.")
	}
	c.consume(lexer.TokenDot, "Expect '.' after 'super'.")
	c.consume(lexer.TokenIdentifier, "Expect superclass method name.")
	name := c.identifierConstant(c.previous.Lexeme)

	c.namedVariable("this", false)
	if c.match(lexer.TokenLeftParen) {
		argc := c.argumentList()
		c.namedVariable("super", false)
		c.emitBytes(byte(chunk.OpSuperInvoke), name)
		c.emitByte(argc)
	} else {
		c.namedVariable("super", false)
		c.emitOpByte(chunk.OpGetSuper, name)
	}
}
