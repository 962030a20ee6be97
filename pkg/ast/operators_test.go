package ast

import (
	"testing"

	"github.com/chazu/aul/pkg/bytecode"
)

func TestLookupOperator(t *testing.T) {
	tests := []struct {
		token   string
		postfix bool
		want    OpID
	}{
		{"++", false, OpPreInc},
		{"++", true, OpPostInc},
		{"-", false, OpNeg},
		{"-", true, OpSub},
		{"eq", true, OpEq},
		{"??", true, OpNilCoalescing},
		{"??=", true, OpNilCoalescingIt},
		{"=", true, OpSet},
	}
	for _, tt := range tests {
		got, ok := LookupOperator(tt.token, tt.postfix)
		if !ok || got != tt.want {
			t.Errorf("LookupOperator(%q, %v) = %v, %v; want %v", tt.token, tt.postfix, got, ok, tt.want)
		}
	}
	if _, ok := LookupOperator("<=>", true); ok {
		t.Error("LookupOperator found a token that does not exist")
	}
}

func TestOperatorTable(t *testing.T) {
	tests := []struct {
		id       OpID
		priority int
		code     bytecode.Opcode
	}{
		{OpPlus, 16, bytecode.OpErr},
		{OpPostDec, 17, bytecode.OpDec1Postfix},
		{OpPow, 15, bytecode.OpPow},
		{OpConcat, 10, bytecode.OpConcat},
		{OpNe, 9, bytecode.OpSNEqual},
		{OpBitXOr, 6, bytecode.OpBitXOr},
		{OpAnd, 5, bytecode.OpAnd},
		{OpAddIt, 2, bytecode.OpInc},
		{OpSet, 2, bytecode.OpSet},
	}
	for _, tt := range tests {
		def, ok := Operator(tt.id)
		if !ok {
			t.Fatalf("Operator(%d) failed", tt.id)
		}
		if def.Priority != tt.priority || def.Code != tt.code {
			t.Errorf("%s: priority %d code %s, want %d %s", def.Token, def.Priority, def.Code, tt.priority, tt.code)
		}
	}

	for _, def := range Operators() {
		if def.Priority == 2 && !def.RightAssociative {
			t.Errorf("assignment %q is not right associative", def.Token)
		}
	}
	if !OpSubIt.IsAssignment() || OpSub.IsAssignment() {
		t.Error("IsAssignment misclassifies -= and -")
	}
	if OpID(999).Def().Code != bytecode.OpErr {
		t.Error("invalid operator does not lower to ERR")
	}
}
