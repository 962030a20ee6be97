package ast

import "fmt"

// Kind enumerates the closed set of node types.
type Kind uint8

const (
	KindNil Kind = iota
	KindIntLiteral
	KindBoolLiteral
	KindStringLiteral
	KindC4IDLiteral
	KindArrayLiteral
	KindMapLiteral
	KindGlobalConstant
	KindParameterRef
	KindParameterExpr
	KindVarRef
	KindVarExpr
	KindLocalRef
	KindGlobalRef
	KindDeclaration
	KindDeclarationList
	KindUnaryOp
	KindBinaryOp
	KindPrototype
	KindFunction
	KindBlock
	KindInclude
	KindAppend
	KindStrictDirective
	KindReturn
	KindReturnAsParam
	KindCall
	KindArrayAccess
	KindArrayAppend
	KindPropertyAccess
	KindIndirectCall
	KindIf
	KindExprIf
	KindWhile
	KindFor
	KindForEach
	KindBreak
	KindContinue
	KindInheritedCall
	KindThis
	KindNop
	KindError
	KindScript

	kindCount
)

var kindNames = [kindCount]string{
	"Nil", "IntLiteral", "BoolLiteral", "StringLiteral", "C4IDLiteral",
	"ArrayLiteral", "MapLiteral", "GlobalConstant", "ParameterRef",
	"ParameterExpr", "VarRef", "VarExpr", "LocalRef", "GlobalRef",
	"Declaration", "DeclarationList", "UnaryOp", "BinaryOp", "Prototype",
	"Function", "Block", "Include", "Append", "StrictDirective", "Return",
	"ReturnAsParam", "Call", "ArrayAccess", "ArrayAppend", "PropertyAccess",
	"IndirectCall", "If", "ExprIf", "While", "For", "ForEach", "Break",
	"Continue", "InheritedCall", "This", "Nop", "Error", "Script",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// KindByName returns the kind with the given String() name.
func KindByName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return 0, false
}
