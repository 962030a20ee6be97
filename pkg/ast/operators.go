package ast

import (
	"fmt"

	"github.com/chazu/aul/pkg/bytecode"
)

// OpID indexes the operator table.
type OpID int

// Operator ids, in table order. The parser picks the first entry whose
// token and Postfix flag match.
const (
	OpPreInc OpID = iota
	OpPreDec
	OpBitNot
	OpNot
	OpPlus
	OpNeg
	OpPostInc
	OpPostDec
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
	OpEqual
	OpNotEqual
	OpSEqual
	OpEq
	OpNe
	OpBitAnd
	OpBitXOr
	OpBitOr
	OpAnd
	OpOr
	OpNilCoalescing
	OpPowIt
	OpMulIt
	OpDivIt
	OpModIt
	OpAddIt
	OpSubIt
	OpLeftShiftIt
	OpRightShiftIt
	OpConcatIt
	OpAndIt
	OpOrIt
	OpXOrIt
	OpNilCoalescingIt
	OpSet

	opCount
)

// OperatorDef describes one operator. Priority and associativity are only
// used by parsers; the generator needs Code and Result.
type OperatorDef struct {
	Priority          int
	Token             string
	Code              bytecode.Opcode
	Postfix           bool
	RightAssociative  bool
	NoSecondStatement bool // postfix ++ and --
	Result            ValueType
	Type1             ValueType
	Type2             ValueType
}

var operatorTable = [opCount]OperatorDef{
	// prefix
	{16, "++", bytecode.OpInc1, false, true, false, TypeInt, TypeRef, TypeAny},
	{16, "--", bytecode.OpDec1, false, true, false, TypeInt, TypeRef, TypeAny},
	{16, "~", bytecode.OpBitNot, false, true, false, TypeInt, TypeInt, TypeAny},
	{16, "!", bytecode.OpNot, false, true, false, TypeBool, TypeBool, TypeAny},
	{16, "+", bytecode.OpErr, false, true, false, TypeInt, TypeInt, TypeAny},
	{16, "-", bytecode.OpNeg, false, true, false, TypeInt, TypeInt, TypeAny},

	// postfix without second operand
	{17, "++", bytecode.OpInc1Postfix, true, true, true, TypeInt, TypeRef, TypeAny},
	{17, "--", bytecode.OpDec1Postfix, true, true, true, TypeInt, TypeRef, TypeAny},

	// binary
	{15, "**", bytecode.OpPow, true, false, false, TypeInt, TypeInt, TypeInt},
	{14, "/", bytecode.OpDiv, true, false, false, TypeInt, TypeInt, TypeInt},
	{14, "*", bytecode.OpMul, true, false, false, TypeInt, TypeInt, TypeInt},
	{14, "%", bytecode.OpMod, true, false, false, TypeInt, TypeInt, TypeInt},
	{13, "-", bytecode.OpSub, true, false, false, TypeInt, TypeInt, TypeInt},
	{13, "+", bytecode.OpSum, true, false, false, TypeInt, TypeInt, TypeInt},
	{12, "<<", bytecode.OpLeftShift, true, false, false, TypeInt, TypeInt, TypeInt},
	{12, ">>", bytecode.OpRightShift, true, false, false, TypeInt, TypeInt, TypeInt},
	{11, "<", bytecode.OpLessThan, true, false, false, TypeBool, TypeInt, TypeInt},
	{11, "<=", bytecode.OpLessThanEqual, true, false, false, TypeBool, TypeInt, TypeInt},
	{11, ">", bytecode.OpGreaterThan, true, false, false, TypeBool, TypeInt, TypeInt},
	{11, ">=", bytecode.OpGreaterThanEqual, true, false, false, TypeBool, TypeInt, TypeInt},
	{10, "..", bytecode.OpConcat, true, false, false, TypeString, TypeAny, TypeAny},
	{9, "==", bytecode.OpEqual, true, false, false, TypeBool, TypeAny, TypeAny},
	{9, "!=", bytecode.OpNotEqual, true, false, false, TypeBool, TypeAny, TypeAny},
	{9, "S=", bytecode.OpSEqual, true, false, false, TypeBool, TypeString, TypeString},
	{9, "eq", bytecode.OpSEqual, true, false, false, TypeBool, TypeString, TypeString},
	{9, "ne", bytecode.OpSNEqual, true, false, false, TypeBool, TypeString, TypeString},
	{8, "&", bytecode.OpBitAnd, true, false, false, TypeInt, TypeInt, TypeInt},
	{6, "^", bytecode.OpBitXOr, true, false, false, TypeInt, TypeInt, TypeInt},
	{6, "|", bytecode.OpBitOr, true, false, false, TypeInt, TypeInt, TypeInt},
	{5, "&&", bytecode.OpAnd, true, false, false, TypeBool, TypeBool, TypeBool},
	{4, "||", bytecode.OpOr, true, false, false, TypeBool, TypeBool, TypeBool},
	{3, "??", bytecode.OpNilCoalescing, true, false, false, TypeAny, TypeAny, TypeAny},

	// assignment
	{2, "**=", bytecode.OpPowIt, true, true, false, TypeAny, TypeRef, TypeInt},
	{2, "*=", bytecode.OpMulIt, true, true, false, TypeAny, TypeRef, TypeInt},
	{2, "/=", bytecode.OpDivIt, true, true, false, TypeAny, TypeRef, TypeInt},
	{2, "%=", bytecode.OpModIt, true, true, false, TypeAny, TypeRef, TypeInt},
	{2, "+=", bytecode.OpInc, true, true, false, TypeAny, TypeRef, TypeInt},
	{2, "-=", bytecode.OpDec, true, true, false, TypeAny, TypeRef, TypeInt},
	{2, "<<=", bytecode.OpLeftShiftIt, true, true, false, TypeAny, TypeRef, TypeInt},
	{2, ">>=", bytecode.OpRightShiftIt, true, true, false, TypeAny, TypeRef, TypeInt},
	{2, "..=", bytecode.OpConcatIt, true, true, false, TypeAny, TypeRef, TypeAny},
	{2, "&=", bytecode.OpAndIt, true, true, false, TypeAny, TypeRef, TypeInt},
	{2, "|=", bytecode.OpOrIt, true, true, false, TypeAny, TypeRef, TypeInt},
	{2, "^=", bytecode.OpXOrIt, true, true, false, TypeAny, TypeRef, TypeInt},
	{2, "??=", bytecode.OpNilCoalescingIt, true, true, false, TypeAny, TypeRef, TypeAny},
	{2, "=", bytecode.OpSet, true, true, false, TypeAny, TypeRef, TypeAny},
}

// Valid reports whether id names a table entry.
func (id OpID) Valid() bool {
	return id >= 0 && id < opCount
}

// Def returns the operator's table entry. Invalid ids yield a zero entry
// whose Code is ERR.
func (id OpID) Def() OperatorDef {
	if !id.Valid() {
		return OperatorDef{Code: bytecode.OpErr}
	}
	return operatorTable[id]
}

func (id OpID) String() string {
	if !id.Valid() {
		return fmt.Sprintf("OpID(%d)", int(id))
	}
	return operatorTable[id].Token
}

// Operator returns the table entry for id.
func Operator(id OpID) (OperatorDef, bool) {
	if !id.Valid() {
		return OperatorDef{}, false
	}
	return operatorTable[id], true
}

// LookupOperator returns the first operator with the given token and
// position. Postfix selects binary and postfix unary operators.
func LookupOperator(token string, postfix bool) (OpID, bool) {
	for i := range operatorTable {
		if operatorTable[i].Token == token && operatorTable[i].Postfix == postfix {
			return OpID(i), true
		}
	}
	return -1, false
}

// Operators returns a copy of the whole table in id order.
func Operators() []OperatorDef {
	out := make([]OperatorDef, len(operatorTable))
	copy(out, operatorTable[:])
	return out
}

// IsAssignment reports whether the operator stores into its left operand.
func (id OpID) IsAssignment() bool {
	return id.Valid() && operatorTable[id].Priority == 2
}
