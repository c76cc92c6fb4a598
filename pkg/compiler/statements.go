package compiler

import (
	"github.com/kristofer/vela/pkg/chunk"
	"github.com/kristofer/vela/pkg/lexer"
	"github.com/kristofer/vela/pkg/value"
)

// declaration is the top of the statement grammar: it adds
// error-recovery synchronization around whichever declaration or
// statement form follows (spec §7).
func (p *parser) declaration() {
	switch {
	case p.match(lexer.TokenClass):
		p.classDeclaration()
	case p.match(lexer.TokenFunc):
		p.funcDeclaration()
	case p.match(lexer.TokenLet):
		p.letDeclaration()
	default:
		p.statement()
	}
	if p.panicMode {
		p.synchronize()
	}
}

func (p *parser) statement() {
	switch {
	case p.match(lexer.TokenPrint):
		p.printStatement()
	case p.match(lexer.TokenIf):
		p.ifStatement()
	case p.match(lexer.TokenWhile):
		p.whileStatement()
	case p.match(lexer.TokenFor):
		p.forStatement()
	case p.match(lexer.TokenReturn):
		p.returnStatement()
	case p.match(lexer.TokenBreak):
		p.breakStatement()
	case p.match(lexer.TokenLeftBrace):
		p.beginScope()
		p.block()
		p.endScope()
	default:
		p.expressionStatement()
	}
}

func (p *parser) block() {
	for !p.check(lexer.TokenRightBrace) && !p.check(lexer.TokenEOF) {
		p.declaration()
	}
	p.consume(lexer.TokenRightBrace, "expected '}' after block")
}

func (p *parser) printStatement() {
	p.expression()
	p.consume(lexer.TokenSemicolon, "expected ';' after value")
	p.emitOp(chunk.OpPrint)
}

func (p *parser) expressionStatement() {
	p.expression()
	p.consume(lexer.TokenSemicolon, "expected ';' after expression")
	p.emitOp(chunk.OpPop)
}

func (p *parser) ifStatement() {
	p.consume(lexer.TokenLeftParen, "expected '(' after 'if'")
	p.expression()
	p.consume(lexer.TokenRightParen, "expected ')' after condition")

	thenJump := p.emitJump(chunk.OpJumpIfFalse)
	p.emitOp(chunk.OpPop)
	p.statement()

	elseJump := p.emitJump(chunk.OpJump)
	p.patchJump(thenJump)
	p.emitOp(chunk.OpPop)

	if p.match(lexer.TokenElse) {
		p.statement()
	}
	p.patchJump(elseJump)
}

// pushLoop/popLoop bracket compilation of a loop body so break and
// emitLoop know the current loop's start offset and where to patch
// break jumps once the loop's extent is known.
func (p *parser) pushLoop() *loopCtx {
	lc := &loopCtx{enclosing: p.cur.loop, loopStart: p.chunk().Len(), scopeDepth: p.cur.scopeDepth}
	p.cur.loop = lc
	return lc
}

func (p *parser) popLoop() {
	lc := p.cur.loop
	for _, j := range lc.breakJumps {
		p.patchJump(j)
	}
	p.cur.loop = lc.enclosing
}

func (p *parser) whileStatement() {
	loop := p.pushLoop()
	p.consume(lexer.TokenLeftParen, "expected '(' after 'while'")
	p.expression()
	p.consume(lexer.TokenRightParen, "expected ')' after condition")

	exitJump := p.emitJump(chunk.OpJumpIfFalse)
	p.emitOp(chunk.OpPop)
	p.statement()
	p.emitLoop(loop.loopStart)

	p.patchJump(exitJump)
	p.emitOp(chunk.OpPop)
	p.popLoop()
}

// forStatement desugars the C-like three-clause `for` into the
// equivalent while-loop bytecode (spec §4.5: for is sugar, not a
// distinct opcode form), wrapping the whole thing in its own scope so
// a clause-declared loop variable doesn't leak.
func (p *parser) forStatement() {
	p.beginScope()
	p.consume(lexer.TokenLeftParen, "expected '(' after 'for'")

	if p.match(lexer.TokenSemicolon) {
		// no initializer
	} else if p.match(lexer.TokenLet) {
		p.letDeclaration()
	} else {
		p.expressionStatement()
	}

	loop := p.pushLoop()
	loop.loopStart = p.chunk().Len()

	exitJump := -1
	if !p.check(lexer.TokenSemicolon) {
		p.expression()
		p.consume(lexer.TokenSemicolon, "expected ';' after loop condition")
		exitJump = p.emitJump(chunk.OpJumpIfFalse)
		p.emitOp(chunk.OpPop)
	} else {
		p.advance() // consume ';'
	}

	if !p.check(lexer.TokenRightParen) {
		bodyJump := p.emitJump(chunk.OpJump)
		incrementStart := p.chunk().Len()
		p.expression()
		p.emitOp(chunk.OpPop)
		p.consume(lexer.TokenRightParen, "expected ')' after for clauses")

		p.emitLoop(loop.loopStart)
		loop.loopStart = incrementStart
		p.patchJump(bodyJump)
	} else {
		p.advance() // consume ')'
	}

	p.statement()
	p.emitLoop(loop.loopStart)

	if exitJump != -1 {
		p.patchJump(exitJump)
		p.emitOp(chunk.OpPop)
	}
	p.popLoop()
	p.endScope()
}

func (p *parser) breakStatement() {
	if p.cur.loop == nil {
		p.error("'break' outside of a loop")
		p.consume(lexer.TokenSemicolon, "expected ';' after 'break'")
		return
	}
	loop := p.cur.loop
	// Pop any locals declared inside the loop body before jumping out,
	// the same way endScope would at the loop's natural exit.
	n := 0
	fs := p.cur
	for i := len(fs.locals) - 1; i >= 0 && fs.locals[i].depth > loop.scopeDepth; i-- {
		if fs.locals[i].isCaptured {
			if n > 0 {
				p.emitOps(chunk.OpPopN, byte(n))
				n = 0
			}
			p.emitOp(chunk.OpCloseUpvalue)
		} else {
			n++
		}
	}
	if n == 1 {
		p.emitOp(chunk.OpPop)
	} else if n > 1 {
		p.emitOps(chunk.OpPopN, byte(n))
	}
	if len(loop.breakJumps) >= maxLoopBreaks {
		p.error("too many 'break' statements in one loop")
	} else {
		loop.breakJumps = append(loop.breakJumps, p.emitJump(chunk.OpJump))
	}
	p.consume(lexer.TokenSemicolon, "expected ';' after 'break'")
}

func (p *parser) returnStatement() {
	if p.cur.kind == typeScript {
		p.error("cannot return from top-level code")
	}
	if p.match(lexer.TokenSemicolon) {
		p.emitReturn()
		return
	}
	if p.cur.kind == typeInitializer {
		p.error("cannot return a value from an initializer")
	}
	p.expression()
	p.consume(lexer.TokenSemicolon, "expected ';' after return value")
	p.emitOp(chunk.OpReturn)
}

func (p *parser) letDeclaration() {
	global := p.parseVariable("expected variable name")
	if p.match(lexer.TokenEqual) {
		p.expression()
	} else {
		p.emitOp(chunk.OpNull)
	}
	p.consume(lexer.TokenSemicolon, "expected ';' after variable declaration")
	p.defineVariable(global)
}

// funcDeclaration compiles `func name(params) { body }` as sugar for
// declaring a variable and immediately assigning it the compiled
// closure (spec §4.5), so a function can recurse by looking itself up
// as a local/global exactly like any other value.
func (p *parser) funcDeclaration() {
	global := p.parseVariable("expected function name")
	p.markInitialized()
	p.function(typeFunction)
	p.defineVariable(global)
}

// function compiles a function/method body into its own funcState,
// nested inside the current one, then emits OP_CLOSURE with the
// trailing upvalue-capture operand pairs the VM needs to wire the
// closure's upvalues at runtime (spec §4.6).
func (p *parser) function(kind funcType) {
	fn := p.heap.AllocFunction()
	p.heap.PushCompilerRoot(fn)
	if p.previous.Type == lexer.TokenIdentifier || kind == typeMethod || kind == typeInitializer {
		fn.Name = p.heap.InternString(p.previous.Lexeme)
	}
	fs := &funcState{enclosing: p.cur, function: fn, kind: kind}
	// Slot 0 is reserved for the receiver in methods/initializers, and
	// is simply unused (but still present) in plain functions so the
	// calling convention is uniform across OP_CALL and OP_INVOKE.
	recvName := ""
	if kind == typeMethod || kind == typeInitializer {
		recvName = "this"
	}
	fs.locals = append(fs.locals, local{name: recvName, depth: 0})
	p.cur = fs

	p.beginScope()
	p.consume(lexer.TokenLeftParen, "expected '(' after function name")
	if !p.check(lexer.TokenRightParen) {
		for {
			fn.Arity++
			if fn.Arity > 255 {
				p.errorAtCurrent("cannot have more than 255 parameters")
			}
			paramConst := p.parseVariable("expected parameter name")
			p.defineVariable(paramConst)
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRightParen, "expected ')' after parameters")
	p.consume(lexer.TokenLeftBrace, "expected '{' before function body")
	p.block()

	compiled := p.endFuncState()
	p.heap.PopCompilerRoot()

	idx := p.makeConstant(value.ObjVal(compiled))
	p.emitOps(chunk.OpClosure, idx)
	for _, up := range fs.upvalues {
		if up.isLocal {
			p.emitByte(1)
		} else {
			p.emitByte(0)
		}
		p.emitByte(up.index)
	}
}

// classDeclaration compiles `class Name { methods... }`. Classes are
// declared as a variable bound to the OP_CLASS result, then each
// method body compiles as a closure immediately consumed by
// OP_METHOD — the same "compile into a stack slot, bind with a
// statement" pattern as funcDeclaration (spec §4.5).
func (p *parser) classDeclaration() {
	p.consume(lexer.TokenIdentifier, "expected class name")
	name := p.previous.Lexeme
	nameConst := p.identifierConstant(name)
	p.declareLocal(name)

	p.emitOps(chunk.OpClass, nameConst)
	p.defineVariable(nameConst)

	p.class = &classState{enclosing: p.class, name: name}

	p.namedVariable(name, false) // push the class back on the stack for OP_METHOD
	p.consume(lexer.TokenLeftBrace, "expected '{' before class body")
	for !p.check(lexer.TokenRightBrace) && !p.check(lexer.TokenEOF) {
		p.method()
	}
	p.consume(lexer.TokenRightBrace, "expected '}' after class body")
	p.emitOp(chunk.OpPop) // discard the class reference pushed above

	p.class = p.class.enclosing
}

func (p *parser) method() {
	p.consume(lexer.TokenIdentifier, "expected method name")
	methodName := p.previous.Lexeme
	nameConst := p.identifierConstant(methodName)

	kind := typeMethod
	if methodName == p.class.name {
		kind = typeInitializer
	}
	p.function(kind)
	p.emitOps(chunk.OpMethod, nameConst)
}
