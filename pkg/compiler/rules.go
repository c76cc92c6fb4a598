package compiler

import (
	"strconv"

	"github.com/kristofer/vela/pkg/chunk"
	"github.com/kristofer/vela/pkg/lexer"
	"github.com/kristofer/vela/pkg/value"
)

// precedence climbs from loosest to tightest binding. Call, field
// access, indexing, and postfix factorial all sit at precCall: they
// are the language's postfix operators, and parsePrecedence chains
// them left-to-right with no recursive right-hand parse.
type precedence int

const (
	precNone precedence = iota
	precAssignment
	precOr
	precAnd
	precEquality
	precComparison
	precTerm
	precFactor
	precUnary
	precCall
	precPrimary
)

type parseFn func(p *parser, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

var rules map[lexer.TokenType]parseRule

func init() {
	rules = map[lexer.TokenType]parseRule{
		lexer.TokenLeftParen:    {prefix: grouping, infix: call, precedence: precCall},
		lexer.TokenLeftBracket:  {infix: index, precedence: precCall},
		lexer.TokenDot:          {infix: dot, precedence: precCall},
		lexer.TokenMinus:        {prefix: unary, infix: binary, precedence: precTerm},
		lexer.TokenPlus:         {infix: binary, precedence: precTerm},
		lexer.TokenSlash:        {infix: binary, precedence: precFactor},
		lexer.TokenStar:         {infix: binary, precedence: precFactor},
		lexer.TokenPercent:      {infix: binary, precedence: precFactor},
		lexer.TokenBang:         {prefix: unary, infix: factorial, precedence: precCall},
		lexer.TokenBangEqual:    {infix: binary, precedence: precEquality},
		lexer.TokenEqualEqual:   {infix: binary, precedence: precEquality},
		lexer.TokenGreater:      {infix: binary, precedence: precComparison},
		lexer.TokenGreaterEqual: {infix: binary, precedence: precComparison},
		lexer.TokenLess:         {infix: binary, precedence: precComparison},
		lexer.TokenLessEqual:    {infix: binary, precedence: precComparison},
		lexer.TokenIdentifier:   {prefix: variable},
		lexer.TokenString:       {prefix: stringLiteral},
		lexer.TokenNumber:       {prefix: number},
		lexer.TokenAnd:          {infix: and_, precedence: precAnd},
		lexer.TokenOr:           {infix: or_, precedence: precOr},
		lexer.TokenFalse:        {prefix: literal},
		lexer.TokenTrue:         {prefix: literal},
		lexer.TokenNull:         {prefix: literal},
		lexer.TokenThis:         {prefix: thisExpr},
	}
}

func (p *parser) rule(t lexer.TokenType) parseRule { return rules[t] }

func (p *parser) expression() { p.parsePrecedence(precAssignment) }

func (p *parser) parsePrecedence(prec precedence) {
	p.advance()
	prefixRule := p.rule(p.previous.Type).prefix
	if prefixRule == nil {
		p.error("expected expression")
		return
	}
	canAssign := prec <= precAssignment
	prefixRule(p, canAssign)

	for prec <= p.rule(p.current.Type).precedence {
		p.advance()
		infixRule := p.rule(p.previous.Type).infix
		infixRule(p, canAssign)
	}

	if canAssign && p.match(lexer.TokenEqual) {
		p.error("invalid assignment target")
	}
}

func grouping(p *parser, _ bool) {
	p.expression()
	p.consume(lexer.TokenRightParen, "expected ')' after expression")
}

func number(p *parser, _ bool) {
	n, err := strconv.ParseFloat(p.previous.Lexeme, 64)
	if err != nil {
		p.error("invalid number literal")
		return
	}
	p.emitConstant(value.NumberVal(n))
}

func stringLiteral(p *parser, _ bool) {
	raw := p.previous.Lexeme
	text := raw[1 : len(raw)-1] // strip the surrounding quotes
	s := p.heap.InternString(text)
	p.emitConstant(value.ObjVal(s))
}

func literal(p *parser, _ bool) {
	switch p.previous.Type {
	case lexer.TokenFalse:
		p.emitOp(chunk.OpFalse)
	case lexer.TokenTrue:
		p.emitOp(chunk.OpTrue)
	case lexer.TokenNull:
		p.emitOp(chunk.OpNull)
	}
}

func unary(p *parser, _ bool) {
	op := p.previous.Type
	p.parsePrecedence(precUnary)
	switch op {
	case lexer.TokenMinus:
		p.emitOp(chunk.OpNegate)
	case lexer.TokenBang:
		p.emitOp(chunk.OpNot)
	}
}

// factorial is the postfix `!`: unlike the prefix Bang of unary, it
// takes no further operand — the value to apply it to is already on
// the stack from whatever came before.
func factorial(p *parser, _ bool) {
	p.emitOp(chunk.OpFactorial)
}

func binary(p *parser, _ bool) {
	op := p.previous.Type
	rule := p.rule(op)
	p.parsePrecedence(rule.precedence + 1)

	switch op {
	case lexer.TokenPlus:
		p.emitOp(chunk.OpAdd)
	case lexer.TokenMinus:
		p.emitOp(chunk.OpSubtract)
	case lexer.TokenStar:
		p.emitOp(chunk.OpMultiply)
	case lexer.TokenSlash:
		p.emitOp(chunk.OpDivide)
	case lexer.TokenPercent:
		p.emitOp(chunk.OpModulo)
	case lexer.TokenEqualEqual:
		p.emitOp(chunk.OpEqual)
	case lexer.TokenBangEqual:
		p.emitOp(chunk.OpNotEqual)
	case lexer.TokenLess:
		p.emitOp(chunk.OpLess)
	case lexer.TokenLessEqual:
		p.emitOp(chunk.OpLessEqual)
	case lexer.TokenGreater:
		p.emitOp(chunk.OpGreater)
	case lexer.TokenGreaterEqual:
		p.emitOp(chunk.OpGreaterEqual)
	}
}

// and_ and or_ implement short-circuit evaluation by jumping over the
// right-hand operand rather than always evaluating both sides and
// ANDing/ORing the bools together.
func and_(p *parser, _ bool) {
	endJump := p.emitJump(chunk.OpJumpIfFalse)
	p.emitOp(chunk.OpPop)
	p.parsePrecedence(precAnd)
	p.patchJump(endJump)
}

func or_(p *parser, _ bool) {
	elseJump := p.emitJump(chunk.OpJumpIfFalse)
	endJump := p.emitJump(chunk.OpJump)
	p.patchJump(elseJump)
	p.emitOp(chunk.OpPop)
	p.parsePrecedence(precOr)
	p.patchJump(endJump)
}

func index(p *parser, _ bool) {
	p.expression()
	p.consume(lexer.TokenRightBracket, "expected ']' after index")
	p.emitOp(chunk.OpMapIndex)
}

// call parses a `(args...)` argument list and emits OP_CALL with the
// argument count as its operand — the callee is already on the stack
// beneath the arguments from whatever parsed before it.
func call(p *parser, _ bool) {
	argc := p.argumentList()
	p.emitOps(chunk.OpCall, argc)
}

func (p *parser) argumentList() byte {
	var argc int
	if !p.check(lexer.TokenRightParen) {
		for {
			p.expression()
			if argc == 255 {
				p.error("cannot have more than 255 arguments")
			}
			argc++
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRightParen, "expected ')' after arguments")
	return byte(argc)
}

// dot parses a `.name` field access, and its two sugared forms: a
// trailing `= value` assigns the field, and a trailing `(args)` fuses
// the field lookup and call into a single OP_INVOKE (spec §4.6) rather
// than emitting a separate OP_GET_FIELD followed by OP_CALL.
func dot(p *parser, canAssign bool) {
	p.consume(lexer.TokenIdentifier, "expected property name after '.'")
	nameConst := p.identifierConstant(p.previous.Lexeme)

	switch {
	case canAssign && p.match(lexer.TokenEqual):
		p.expression()
		p.emitOps(chunk.OpSetField, nameConst)
	case p.match(lexer.TokenLeftParen):
		argc := p.argumentList()
		p.emitOps(chunk.OpInvoke, nameConst)
		p.emitByte(argc)
	default:
		p.emitOps(chunk.OpGetField, nameConst)
	}
}

func thisExpr(p *parser, _ bool) {
	if p.class == nil {
		p.error("cannot use 'this' outside of a method")
		return
	}
	p.namedVariable("this", false)
}

func variable(p *parser, canAssign bool) {
	p.namedVariable(p.previous.Lexeme, canAssign)
}

// namedVariable resolves name in local -> upvalue -> global order
// (spec §4.5) and emits the matching get/set opcode.
func (p *parser) namedVariable(name string, canAssign bool) {
	var getOp, setOp chunk.Op
	slot := resolveLocal(p.cur, name)
	switch {
	case slot == -2:
		p.error("cannot read local variable in its own initializer")
		return
	case slot >= 0:
		getOp, setOp = chunk.OpGetLocal, chunk.OpSetLocal
	default:
		if up := resolveUpvalue(p.cur, name); up >= 0 {
			slot = up
			getOp, setOp = chunk.OpGetUpvalue, chunk.OpSetUpvalue
		} else {
			slot = int(p.identifierConstant(name))
			getOp, setOp = chunk.OpGetGlobal, chunk.OpSetGlobal
		}
	}

	if canAssign && p.match(lexer.TokenEqual) {
		p.expression()
		p.emitOps(setOp, byte(slot))
	} else {
		p.emitOps(getOp, byte(slot))
	}
}
