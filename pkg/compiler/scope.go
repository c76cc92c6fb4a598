package compiler

import (
	"github.com/kristofer/vela/pkg/chunk"
	"github.com/kristofer/vela/pkg/lexer"
)

// beginScope/endScope bracket a block's local variables. Ending a
// scope pops its locals off the compile-time local array and emits
// either OP_CLOSE_UPVALUE (if a closure captured the slot) or OP_POP
// to discard it at runtime — spec §3's upvalue-closing rule fires
// exactly at scope exit, not only at function return.
func (p *parser) beginScope() { p.cur.scopeDepth++ }

func (p *parser) endScope() {
	p.cur.scopeDepth--
	fs := p.cur
	n := 0
	for len(fs.locals) > 0 && fs.locals[len(fs.locals)-1].depth > fs.scopeDepth {
		last := fs.locals[len(fs.locals)-1]
		fs.locals = fs.locals[:len(fs.locals)-1]
		if last.isCaptured {
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
}

// declareLocal registers the variable currently being defined in the
// current scope. Depth is left at -1 (addLocal's sentinel) until
// markInitialized runs, so a local's own initializer can't refer to
// itself (spec §4.5).
func (p *parser) declareLocal(name string) {
	fs := p.cur
	if fs.scopeDepth == 0 {
		return // globals aren't tracked as locals
	}
	for i := len(fs.locals) - 1; i >= 0; i-- {
		l := fs.locals[i]
		if l.depth != -1 && l.depth < fs.scopeDepth {
			break
		}
		if l.name == name {
			p.error("a variable with this name is already declared in this scope")
		}
	}
	p.addLocal(name)
}

func (p *parser) addLocal(name string) {
	fs := p.cur
	if len(fs.locals) >= maxLocals {
		p.error("too many local variables in function")
		return
	}
	fs.locals = append(fs.locals, local{name: name, depth: -1})
}

func (p *parser) markInitialized() {
	fs := p.cur
	if fs.scopeDepth == 0 {
		return
	}
	fs.locals[len(fs.locals)-1].depth = fs.scopeDepth
}

// parseVariable consumes an identifier, declares it as a local if
// we're inside a scope, and otherwise returns the constant-pool index
// the global will be defined under.
func (p *parser) parseVariable(errMsg string) byte {
	p.consume(lexer.TokenIdentifier, errMsg)
	name := p.previous.Lexeme
	if p.cur.scopeDepth > 0 {
		p.declareLocal(name)
		return 0
	}
	return p.identifierConstant(name)
}

func (p *parser) defineVariable(global byte) {
	if p.cur.scopeDepth > 0 {
		p.markInitialized()
		return
	}
	p.emitOps(chunk.OpDefineGlobal, global)
}

// resolveLocal searches fs's own locals for name, innermost first.
func resolveLocal(fs *funcState, name string) int {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			if fs.locals[i].depth == -1 {
				return -2 // sentinel: referenced in its own initializer
			}
			return i
		}
	}
	return -1
}

// resolveUpvalue finds name in an enclosing function's locals or
// upvalues, threading an upvalue entry through every intervening
// funcState so nested closures chain correctly (spec §3 Invariant 4).
func resolveUpvalue(fs *funcState, name string) int {
	if fs.enclosing == nil {
		return -1
	}
	if slot := resolveLocal(fs.enclosing, name); slot >= 0 {
		fs.enclosing.locals[slot].isCaptured = true
		return addUpvalue(fs, byte(slot), true)
	}
	if up := resolveUpvalue(fs.enclosing, name); up >= 0 {
		return addUpvalue(fs, byte(up), false)
	}
	return -1
}

func addUpvalue(fs *funcState, index byte, isLocal bool) int {
	for i, u := range fs.upvalues {
		if u.index == index && u.isLocal == isLocal {
			return i
		}
	}
	if len(fs.upvalues) >= maxUpvalues {
		return 0
	}
	fs.upvalues = append(fs.upvalues, upvalueRef{index: index, isLocal: isLocal})
	return len(fs.upvalues) - 1
}
