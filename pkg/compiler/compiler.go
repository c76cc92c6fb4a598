// Package compiler implements Vela's single-pass, precedence-climbing
// compiler. There is no separate parse tree: every production either
// emits bytecode directly into the current function's chunk or
// resolves a name to a local slot, an upvalue, or a global — the
// compiler *is* the parser (spec §1 Non-goals, §4.5).
//
// The compiler is organized the way smog's pkg/compiler and
// pkg/parser were, collapsed into one pass: a parser holds the token
// stream and drives a stack of per-function compiler states
// (funcState), one pushed per nested function/method body.
package compiler

import (
	"fmt"

	"github.com/kristofer/vela/pkg/chunk"
	"github.com/kristofer/vela/pkg/lexer"
	"github.com/kristofer/vela/pkg/object"
	"github.com/kristofer/vela/pkg/value"
)

const (
	maxLocals     = 256
	maxUpvalues   = 256
	maxLoopBreaks = 256
	maxJump       = 1 << 16
)

// funcType tags what kind of callable body a funcState is compiling —
// it changes what `return` and the implicit receiver slot mean.
type funcType int

const (
	typeScript funcType = iota
	typeFunction
	typeMethod
	typeInitializer
)

// local is one entry in a funcState's fixed-size local-variable array:
// its name, the scope depth it was declared at (-1 while its own
// initializer is still compiling — spec §4.5's self-reference check),
// and whether a closure captured it as an upvalue.
type local struct {
	name       string
	depth      int
	isCaptured bool
}

// upvalueRef is one entry in a funcState's upvalue array: either a
// direct capture of the enclosing function's local (isLocal=true) or
// an inherited capture of the enclosing function's own upvalue.
type upvalueRef struct {
	index   byte
	isLocal bool
}

// loopCtx tracks the innermost enclosing loop so `break` can find
// where to jump and whiles/fors can find where to loop back to.
type loopCtx struct {
	enclosing  *loopCtx
	loopStart  int
	scopeDepth int
	breakJumps []int
}

// funcState is the compiler state for one function body being
// compiled: its own locals, upvalues, and scope depth, chained to its
// lexically enclosing function via `enclosing`. This chain is exactly
// the "compiler roots" spec §9 requires the GC to walk while
// compilation is in progress.
type funcState struct {
	enclosing  *funcState
	function   *object.Function
	kind       funcType
	locals     []local
	scopeDepth int
	upvalues   []upvalueRef
	loop       *loopCtx
}

// classState tracks the class currently being compiled, so methods can
// recognize the initializer (same name as the class) and so `this`
// can be rejected outside of a method body.
type classState struct {
	enclosing *classState
	name      string
}

// Heap is the allocation surface the compiler needs from the VM: it
// interns string literals through the single shared intern table, and
// registers in-progress functions as GC roots (spec §9) so a
// collection triggered mid-compilation can't free a chunk's constants
// out from under it. Defining this here — rather than importing
// package vm — keeps the dependency graph acyclic: vm imports
// compiler, not the other way around.
type Heap interface {
	InternString(chars string) *object.String
	AllocFunction() *object.Function
	PushCompilerRoot(fn *object.Function)
	PopCompilerRoot()
}

// parser drives the token stream and the funcState/classState stacks.
type parser struct {
	lex       *lexer.Lexer
	current   lexer.Token
	previous  lexer.Token
	hadError  bool
	panicMode bool
	errs      []string

	heap  Heap
	cur   *funcState
	class *classState
}

// Compile compiles Vela source text into the implicit top-level
// function. It returns a *CompileError (never a bare error) if any
// diagnostic was reported.
func Compile(source string, heap Heap) (*object.Function, error) {
	p := &parser{lex: lexer.New(source), heap: heap}

	topFn := heap.AllocFunction()
	p.cur = &funcState{function: topFn, kind: typeScript}
	p.cur.locals = append(p.cur.locals, local{name: "", depth: 0})
	heap.PushCompilerRoot(topFn)
	defer heap.PopCompilerRoot()

	p.advance()
	for !p.match(lexer.TokenEOF) {
		p.declaration()
	}

	fn := p.endFuncState()
	if p.hadError {
		return nil, &CompileError{Messages: p.errs}
	}
	return fn, nil
}

// --- token stream -----------------------------------------------------

func (p *parser) advance() {
	p.previous = p.current
	for {
		p.current = p.lex.NextToken()
		if p.current.Type != lexer.TokenError {
			break
		}
		p.errorAtCurrent(p.current.Lexeme)
	}
}

func (p *parser) check(t lexer.TokenType) bool { return p.current.Type == t }

func (p *parser) match(t lexer.TokenType) bool {
	if !p.check(t) {
		return false
	}
	p.advance()
	return true
}

func (p *parser) consume(t lexer.TokenType, msg string) {
	if p.current.Type == t {
		p.advance()
		return
	}
	p.errorAtCurrent(msg)
}

func (p *parser) errorAtCurrent(msg string) { p.errorAt(p.current, msg) }
func (p *parser) error(msg string)          { p.errorAt(p.previous, msg) }

func (p *parser) errorAt(tok lexer.Token, msg string) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.hadError = true

	where := "at end"
	if tok.Type == lexer.TokenEOF {
		where = "at end"
	} else if tok.Type == lexer.TokenError {
		where = ""
	} else {
		where = fmt.Sprintf("at '%s'", tok.Lexeme)
	}
	if where == "" {
		p.errs = append(p.errs, fmt.Sprintf("[line %d] Error: %s", tok.Line, msg))
	} else {
		p.errs = append(p.errs, fmt.Sprintf("[line %d] Error %s: %s", tok.Line, where, msg))
	}
}

// synchronize skips tokens after an error until it finds a statement
// boundary: a preceding `;` or a leading statement keyword (spec §7).
func (p *parser) synchronize() {
	p.panicMode = false
	for p.current.Type != lexer.TokenEOF {
		if p.previous.Type == lexer.TokenSemicolon {
			return
		}
		switch p.current.Type {
		case lexer.TokenClass, lexer.TokenFunc, lexer.TokenLet, lexer.TokenFor,
			lexer.TokenIf, lexer.TokenWhile, lexer.TokenPrint, lexer.TokenReturn,
			lexer.TokenBreak:
			return
		}
		p.advance()
	}
}

// --- emission helpers ---------------------------------------------------

func (p *parser) chunk() *chunk.Chunk { return p.cur.function.Chunk }

func (p *parser) emitByte(b byte) { p.chunk().Write(b, p.previous.Line) }
func (p *parser) emitOp(op chunk.Op) { p.emitByte(byte(op)) }
func (p *parser) emitOps(op chunk.Op, operand byte) {
	p.emitOp(op)
	p.emitByte(operand)
}

func (p *parser) emitJump(op chunk.Op) int {
	p.emitOp(op)
	p.emitByte(0xff)
	p.emitByte(0xff)
	return p.chunk().Len() - 2
}

func (p *parser) patchJump(offset int) {
	jump := p.chunk().Len() - offset - 2
	if jump > maxJump-1 {
		p.error("too much code to jump over")
		return
	}
	p.chunk().PatchByte(offset, byte((jump>>8)&0xff))
	p.chunk().PatchByte(offset+1, byte(jump&0xff))
}

func (p *parser) emitLoop(loopStart int) {
	p.emitOp(chunk.OpLoop)
	offset := p.chunk().Len() - loopStart + 2
	if offset > maxJump-1 {
		p.error("loop body too large")
		return
	}
	p.emitByte(byte((offset >> 8) & 0xff))
	p.emitByte(byte(offset & 0xff))
}

func (p *parser) emitConstant(v value.Value) {
	idx := p.makeConstant(v)
	p.emitOps(chunk.OpConstant, idx)
}

func (p *parser) makeConstant(v value.Value) byte {
	idx, err := p.chunk().AddConstant(v)
	if err != nil {
		p.error("too many constants in one chunk")
		return 0
	}
	return byte(idx)
}

// emitReturn always terminates a function body with a synthetic
// `null; return` (spec §9's resolution of the source's inconsistent
// OP_RETURN emission): an initializer instead implicitly returns the
// receiver (slot 0).
func (p *parser) emitReturn() {
	if p.cur.kind == typeInitializer {
		p.emitOps(chunk.OpGetLocal, 0)
	} else {
		p.emitOp(chunk.OpNull)
	}
	p.emitOp(chunk.OpReturn)
}

func (p *parser) endFuncState() *object.Function {
	p.emitReturn()
	fn := p.cur.function
	fn.UpvalueCount = len(p.cur.upvalues)
	p.cur = p.cur.enclosing
	return fn
}

// identifierConstant interns name and returns its constant-pool index,
// used for OP_*_GLOBAL/OP_GET_FIELD/OP_METHOD name operands.
func (p *parser) identifierConstant(name string) byte {
	s := p.heap.InternString(name)
	return p.makeConstant(value.ObjVal(s))
}
