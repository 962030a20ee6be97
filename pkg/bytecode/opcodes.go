package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// The numbering follows the engine's historical instruction order; compiled
// images depend on it, so new opcodes are only ever appended.
type Opcode byte

// MaxPar is the fixed parameter count of script functions. Calls through
// CALL/CALLFS/CALLGLOBAL always pass exactly this many arguments.
const MaxPar = 10

const (
	// ========================================================================
	// Dereference and element access
	// ========================================================================

	OpDeref       Opcode = iota // Replace a reference on top of stack by its value
	OpMapAR                     // map[property] as reference: OpMapAR <string>
	OpMapAV                     // map[property] as value: OpMapAV <string>
	OpArrayAR                   // container[index] as reference
	OpArrayAV                   // container[index] as value
	OpArrayAppend               // reference to a new element at the end of an array

	// ========================================================================
	// Named variables
	// ========================================================================

	OpVarNR     // Push reference to function variable: OpVarNR <slot>
	OpVarNV     // Push value of function variable
	OpParNR     // Push reference to parameter: OpParNR <index>
	OpParNV     // Push value of parameter
	OpLocalNR   // Push reference to object local: OpLocalNR <slot>
	OpLocalNV   // Push value of object local
	OpGlobalNR  // Push reference to global variable: OpGlobalNR <slot>
	OpGlobalNV  // Push value of global variable
	OpVarR      // Replace index on top of stack by reference to var[index]
	OpVarV      // Replace index on top of stack by value of var[index]
	OpParR      // Replace index on top of stack by reference to par[index]
	OpParV      // Replace index on top of stack by value of par[index]
	OpFunc      // Direct call: OpFunc <func>

	// ========================================================================
	// Unary operators (operand: operator id)
	// ========================================================================

	OpInc1        // ++x
	OpDec1        // --x
	OpBitNot      // ~x
	OpNot         // !x
	OpNeg         // -x
	OpInc1Postfix // x++
	OpDec1Postfix // x--

	// ========================================================================
	// Binary operators (operand: operator id)
	// ========================================================================

	OpPow
	OpDiv
	OpMul
	OpMod
	OpSub
	OpSum
	OpLeftShift
	OpRightShift
	OpLessThan
	OpLessThanEqual
	OpGreaterThan
	OpGreaterThanEqual
	OpConcat
	OpEqualIdent
	OpEqual
	OpNotEqualIdent
	OpNotEqual
	OpSEqual
	OpSNEqual
	OpBitAnd
	OpBitXOr
	OpBitOr
	OpAnd
	OpOr
	OpNilCoalescing // never emitted; lowered to OpJumpNotNil

	// ========================================================================
	// Compound assignment (operand: operator id)
	// ========================================================================

	OpPowIt
	OpMulIt
	OpDivIt
	OpModIt
	OpInc // +=
	OpDec // -=
	OpLeftShiftIt
	OpRightShiftIt
	OpConcatIt
	OpAndIt
	OpOrIt
	OpXOrIt
	OpNilCoalescingIt // jump over the assignment if the target is not nil
	OpSet

	// ========================================================================
	// Calls through a target value
	// ========================================================================

	OpCallGlobal // Call global function, target slot ignored: OpCallGlobal <func>
	OpCall       // Call on object target: OpCall <func>
	OpCallFS     // Failsafe call on object target: OpCallFS <func>
	OpCallNS     // Namespace for the following call: OpCallNS <id>

	// ========================================================================
	// Stack and constants
	// ========================================================================

	OpStack // Push nils (x > 0) or pop values (x < 0): OpStack <n>
	OpNil
	OpInt    // OpInt <value>
	OpBool   // OpBool <0|1>
	OpString // OpString <string>
	OpC4ID   // OpC4ID <id>
	OpArray  // Build array from n values: OpArray <n>
	OpMap    // Build map from n key/value pairs: OpMap <n>
	OpIVarN  // Pop value into function variable: OpIVarN <slot>

	// ========================================================================
	// Control flow (operand: relative distance)
	// ========================================================================

	OpJump
	OpJumpAnd    // Jump if top is falsy, else pop
	OpJumpOr     // Jump if top is truthy, else pop
	OpJumpNil    // Jump if top is nil
	OpJumpNotNil // Jump if top is not nil, else pop
	OpCondN      // Pop; jump if it was falsy
	OpForeachNext
	OpForeachMapNext
	OpReturn

	// ========================================================================
	// Markers
	// ========================================================================

	OpErr  // Compiled error stub
	OpEOFN // End of function
	OpEOF  // End of script
	OpThis // Push the context object
)

// OperandKind describes how an instruction's operand is interpreted.
type OperandKind uint8

const (
	OperandNone   OperandKind = iota
	OperandInt                // literal integer
	OperandBool               // literal 0/1
	OperandID                 // four-character definition id
	OperandCount              // element/slot count (STACK, ARRAY, MAP)
	OperandSlot               // variable slot or parameter index
	OperandJump               // relative jump distance
	OperandString             // string table handle
	OperandFunc               // function handle
	OperandOp                 // operator id
)

// OpcodeInfo contains metadata about an opcode.
type OpcodeInfo struct {
	Name      string
	StackPop  int         // values popped on the fall-through path (-1 = operand dependent)
	StackPush int         // values pushed on the fall-through path (-1 = operand dependent)
	Operand   OperandKind // how X is interpreted
	TakenPop  int         // values popped when a conditional jump is taken
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpDeref:       {"DEREF", 1, 1, OperandNone, 0},
	OpMapAR:       {"MAPA_R", 1, 1, OperandString, 0},
	OpMapAV:       {"MAPA_V", 1, 1, OperandString, 0},
	OpArrayAR:     {"ARRAYA_R", 2, 1, OperandNone, 0},
	OpArrayAV:     {"ARRAYA_V", 2, 1, OperandNone, 0},
	OpArrayAppend: {"ARRAY_APPEND", 1, 1, OperandNone, 0},

	OpVarNR:    {"VARN_R", 0, 1, OperandSlot, 0},
	OpVarNV:    {"VARN_V", 0, 1, OperandSlot, 0},
	OpParNR:    {"PARN_R", 0, 1, OperandSlot, 0},
	OpParNV:    {"PARN_V", 0, 1, OperandSlot, 0},
	OpLocalNR:  {"LOCALN_R", 0, 1, OperandSlot, 0},
	OpLocalNV:  {"LOCALN_V", 0, 1, OperandSlot, 0},
	OpGlobalNR: {"GLOBALN_R", 0, 1, OperandSlot, 0},
	OpGlobalNV: {"GLOBALN_V", 0, 1, OperandSlot, 0},
	OpVarR:     {"VAR_R", 1, 1, OperandNone, 0},
	OpVarV:     {"VAR_V", 1, 1, OperandNone, 0},
	OpParR:     {"PAR_R", 1, 1, OperandNone, 0},
	OpParV:     {"PAR_V", 1, 1, OperandNone, 0},
	OpFunc:     {"FUNC", -1, 1, OperandFunc, 0},

	OpInc1:        {"Inc1", 1, 1, OperandOp, 0},
	OpDec1:        {"Dec1", 1, 1, OperandOp, 0},
	OpBitNot:      {"BitNot", 1, 1, OperandOp, 0},
	OpNot:         {"Not", 1, 1, OperandOp, 0},
	OpNeg:         {"Neg", 1, 1, OperandOp, 0},
	OpInc1Postfix: {"Inc1_P", 1, 1, OperandOp, 0},
	OpDec1Postfix: {"Dec1_P", 1, 1, OperandOp, 0},

	OpPow:              {"Pow", 2, 1, OperandOp, 0},
	OpDiv:              {"Div", 2, 1, OperandOp, 0},
	OpMul:              {"Mul", 2, 1, OperandOp, 0},
	OpMod:              {"Mod", 2, 1, OperandOp, 0},
	OpSub:              {"Sub", 2, 1, OperandOp, 0},
	OpSum:              {"Sum", 2, 1, OperandOp, 0},
	OpLeftShift:        {"LeftShift", 2, 1, OperandOp, 0},
	OpRightShift:       {"RightShift", 2, 1, OperandOp, 0},
	OpLessThan:         {"LessThan", 2, 1, OperandOp, 0},
	OpLessThanEqual:    {"LessThanEqual", 2, 1, OperandOp, 0},
	OpGreaterThan:      {"GreaterThan", 2, 1, OperandOp, 0},
	OpGreaterThanEqual: {"GreaterThanEqual", 2, 1, OperandOp, 0},
	OpConcat:           {"Concat", 2, 1, OperandOp, 0},
	OpEqualIdent:       {"EqualIdent", 2, 1, OperandOp, 0},
	OpEqual:            {"Equal", 2, 1, OperandOp, 0},
	OpNotEqualIdent:    {"NotEqualIdent", 2, 1, OperandOp, 0},
	OpNotEqual:         {"NotEqual", 2, 1, OperandOp, 0},
	OpSEqual:           {"SEqual", 2, 1, OperandOp, 0},
	OpSNEqual:          {"SNEqual", 2, 1, OperandOp, 0},
	OpBitAnd:           {"BitAnd", 2, 1, OperandOp, 0},
	OpBitXOr:           {"BitXOr", 2, 1, OperandOp, 0},
	OpBitOr:            {"BitOr", 2, 1, OperandOp, 0},
	OpAnd:              {"And", 2, 1, OperandOp, 0},
	OpOr:               {"Or", 2, 1, OperandOp, 0},
	OpNilCoalescing:    {"NilCoalescing", 2, 1, OperandOp, 0},

	OpPowIt:           {"PowIt", 2, 1, OperandOp, 0},
	OpMulIt:           {"MulIt", 2, 1, OperandOp, 0},
	OpDivIt:           {"DivIt", 2, 1, OperandOp, 0},
	OpModIt:           {"ModIt", 2, 1, OperandOp, 0},
	OpInc:             {"Inc", 2, 1, OperandOp, 0},
	OpDec:             {"Dec", 2, 1, OperandOp, 0},
	OpLeftShiftIt:     {"LeftShiftIt", 2, 1, OperandOp, 0},
	OpRightShiftIt:    {"RightShiftIt", 2, 1, OperandOp, 0},
	OpConcatIt:        {"ConcatIt", 2, 1, OperandOp, 0},
	OpAndIt:           {"AndIt", 2, 1, OperandOp, 0},
	OpOrIt:            {"OrIt", 2, 1, OperandOp, 0},
	OpXOrIt:           {"XOrIt", 2, 1, OperandOp, 0},
	OpNilCoalescingIt: {"NilCoalescingIt", 1, 1, OperandJump, 0},
	OpSet:             {"Set", 2, 1, OperandOp, 0},

	OpCallGlobal: {"CALLGLOBAL", MaxPar + 1, 1, OperandFunc, 0},
	OpCall:       {"CALL", MaxPar + 1, 1, OperandFunc, 0},
	OpCallFS:     {"CALLFS", MaxPar + 1, 1, OperandFunc, 0},
	OpCallNS:     {"CALLNS", 0, 0, OperandID, 0},

	OpStack:  {"STACK", -1, -1, OperandCount, 0},
	OpNil:    {"NIL", 0, 1, OperandNone, 0},
	OpInt:    {"INT", 0, 1, OperandInt, 0},
	OpBool:   {"BOOL", 0, 1, OperandBool, 0},
	OpString: {"STRING", 0, 1, OperandString, 0},
	OpC4ID:   {"C4ID", 0, 1, OperandID, 0},
	OpArray:  {"ARRAY", -1, 1, OperandCount, 0},
	OpMap:    {"MAP", -1, 1, OperandCount, 0},
	OpIVarN:  {"IVARN", 1, 0, OperandSlot, 0},

	OpJump:           {"JUMP", 0, 0, OperandJump, 0},
	OpJumpAnd:        {"JUMPAND", 1, 0, OperandJump, 0},
	OpJumpOr:         {"JUMPOR", 1, 0, OperandJump, 0},
	OpJumpNil:        {"JUMPNIL", 1, 1, OperandJump, 0},
	OpJumpNotNil:     {"JUMPNOTNIL", 1, 0, OperandJump, 0},
	OpCondN:          {"CONDN", 1, 0, OperandJump, 1},
	OpForeachNext:    {"FOREACH_NEXT", 0, 0, OperandSlot, 0},
	OpForeachMapNext: {"FOREACH_MAP_NEXT", 0, 0, OperandSlot, 0},
	OpReturn:         {"RETURN", 1, 0, OperandNone, 0},

	OpErr:  {"ERR", 0, 0, OperandNone, 0},
	OpEOFN: {"EOFN", 0, 0, OperandNone, 0},
	OpEOF:  {"EOF", 0, 0, OperandNone, 0},
	OpThis: {"THIS", 0, 1, OperandNone, 0},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// Operand returns how the instruction operand is interpreted.
func (op Opcode) Operand() OperandKind {
	return GetOpcodeInfo(op).Operand
}

// IsJump reports whether the operand is a relative jump distance that the
// generator patches. OpForeachNext and OpForeachMapNext skip exactly one
// instruction and are not patched, so they are not jumps in this sense.
func (op Opcode) IsJump() bool {
	switch op {
	case OpJump, OpJumpAnd, OpJumpOr, OpCondN, OpJumpNil, OpJumpNotNil, OpNilCoalescingIt:
		return true
	}
	return false
}

// IsConditional reports whether a jump may fall through.
func (op Opcode) IsConditional() bool {
	return op.IsJump() && op != OpJump
}

// IsTerminator reports whether control never continues past the opcode.
func (op Opcode) IsTerminator() bool {
	switch op {
	case OpReturn, OpErr, OpEOFN, OpEOF:
		return true
	}
	return false
}

// IsCall reports whether the opcode calls a function through a target slot.
func (op Opcode) IsCall() bool {
	return op == OpCallGlobal || op == OpCall || op == OpCallFS
}

// ArityFunc resolves the parameter count of the function behind an
// OperandFunc handle.
type ArityFunc func(handle int64) int

// StackDelta returns the net stack effect of an instruction on its
// fall-through path. arity may be nil when op is not OpFunc.
func StackDelta(op Opcode, x int64, arity ArityFunc) int {
	switch op {
	case OpStack:
		return int(x)
	case OpArray:
		return -(int(x) - 1)
	case OpMap:
		return -(2*int(x) - 1)
	case OpFunc:
		n := MaxPar
		if arity != nil {
			n = arity(x)
		}
		return -(n - 1)
	}
	info := GetOpcodeInfo(op)
	return info.StackPush - info.StackPop
}

// AllOpcodes returns a slice of all defined opcodes in numeric order.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := OpDeref; op <= OpThis; op++ {
		if _, ok := opcodeInfoTable[op]; ok {
			opcodes = append(opcodes, op)
		}
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
