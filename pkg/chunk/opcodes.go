package chunk

// Op is a single bytecode instruction opcode. Opcodes are one byte,
// compact and fast to dispatch on on the VM's central switch.
type Op byte

// The complete opcode set (spec §4.6 table). Operand widths are
// documented alongside each opcode's emission site in the compiler and
// its handling site in the VM.
const (
	OpConstant Op = iota // idx:u8 — push constants[idx]
	OpNull               // push null
	OpTrue               // push true
	OpFalse              // push false
	OpPop                // drop top
	OpPopN               // n:u8 — drop n values

	OpGetLocal // slot:u8
	OpSetLocal // slot:u8

	OpGetGlobal    // name_idx:u8
	OpDefineGlobal // name_idx:u8
	OpSetGlobal    // name_idx:u8

	OpGetUpvalue // slot:u8
	OpSetUpvalue // slot:u8
	OpCloseUpvalue

	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual

	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo

	OpNegate
	OpNot
	OpFactorial

	OpPrint

	OpJump         // off:u16
	OpJumpIfFalse  // off:u16
	OpLoop         // off:u16

	OpCall // argc:u8

	OpClosure // const:u8, then one (isLocal:u8, index:u8) pair per upvalue of the function

	OpClass      // name_idx:u8
	OpMethod     // name_idx:u8
	OpGetField   // name_idx:u8
	OpSetField   // name_idx:u8
	OpInvoke     // name_idx:u8, argc:u8

	OpMapIndex // string[i] indexing

	OpReturn
)

var opNames = [...]string{
	"OP_CONSTANT", "OP_NULL", "OP_TRUE", "OP_FALSE", "OP_POP", "OP_POPN",
	"OP_GET_LOCAL", "OP_SET_LOCAL",
	"OP_GET_GLOBAL", "OP_DEFINE_GLOBAL", "OP_SET_GLOBAL",
	"OP_GET_UPVALUE", "OP_SET_UPVALUE", "OP_CLOSE_UPVALUE",
	"OP_EQUAL", "OP_NOT_EQUAL", "OP_LESS", "OP_LESS_EQUAL", "OP_GREATER", "OP_GREATER_EQUAL",
	"OP_ADD", "OP_SUBTRACT", "OP_MULTIPLY", "OP_DIVIDE", "OP_MODULO",
	"OP_NEGATE", "OP_NOT", "OP_FACTORIAL",
	"OP_PRINT",
	"OP_JUMP", "OP_JUMP_IF_FALSE", "OP_LOOP",
	"OP_CALL",
	"OP_CLOSURE",
	"OP_CLASS", "OP_METHOD", "OP_GET_FIELD", "OP_SET_FIELD", "OP_INVOKE",
	"OP_MAP_INDEX",
	"OP_RETURN",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "OP_UNKNOWN"
}
