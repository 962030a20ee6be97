package bytecode

import (
	"strings"
	"testing"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" || strings.HasPrefix(info.Name, "UNKNOWN") {
			t.Errorf("Opcode 0x%02X has no metadata", byte(op))
		}
	}
	if got := len(AllOpcodes()); got != OpcodeCount() {
		t.Errorf("AllOpcodes() has %d entries, OpcodeCount() = %d", got, OpcodeCount())
	}
}

func TestOpcodeNumberingIsStable(t *testing.T) {
	// Compiled images depend on these values.
	tests := []struct {
		op   Opcode
		want byte
	}{
		{OpDeref, 0},
		{OpFunc, 18},
		{OpSet, 64},
		{OpStack, 69},
		{OpJump, 78},
		{OpThis, 90},
	}
	for _, tt := range tests {
		if byte(tt.op) != tt.want {
			t.Errorf("%s = %d, want %d", tt.op, byte(tt.op), tt.want)
		}
	}
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{OpDeref, "DEREF"},
		{OpVarNR, "VARN_R"},
		{OpFunc, "FUNC"},
		{OpSum, "Sum"},
		{OpSet, "Set"},
		{OpCallFS, "CALLFS"},
		{OpStack, "STACK"},
		{OpCondN, "CONDN"},
		{OpForeachMapNext, "FOREACH_MAP_NEXT"},
		{OpEOFN, "EOFN"},
	}

	for _, tt := range tests {
		got := tt.op.String()
		if got != tt.want {
			t.Errorf("Opcode(0x%02X).String() = %q, want %q", byte(tt.op), got, tt.want)
		}
	}
}

func TestUnknownOpcodeString(t *testing.T) {
	op := Opcode(0xEE)
	got := op.String()
	if !strings.HasPrefix(got, "UNKNOWN") {
		t.Errorf("Unknown opcode should return UNKNOWN, got %q", got)
	}
}

func TestStackDelta(t *testing.T) {
	tests := []struct {
		name string
		op   Opcode
		x    int64
		want int
	}{
		{"push nils", OpStack, 3, 3},
		{"pop", OpStack, -2, -2},
		{"array of 3", OpArray, 3, -2},
		{"empty array", OpArray, 0, 1},
		{"map of 2", OpMap, 2, -3},
		{"empty map", OpMap, 0, 1},
		{"call", OpCall, 0, -MaxPar},
		{"global call", OpCallGlobal, 0, -MaxPar},
		{"namespace", OpCallNS, 0, 0},
		{"jumpand", OpJumpAnd, 4, -1},
		{"jumpnil", OpJumpNil, 4, 0},
		{"nil coalescing assign", OpNilCoalescingIt, 4, 0},
		{"condn", OpCondN, 4, -1},
		{"binary", OpSum, 0, -1},
		{"unary", OpNeg, 0, 0},
		{"ivarn", OpIVarN, 0, -1},
		{"this", OpThis, 0, 1},
		{"foreach", OpForeachNext, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StackDelta(tt.op, tt.x, nil); got != tt.want {
				t.Errorf("StackDelta(%s, %d) = %d, want %d", tt.op, tt.x, got, tt.want)
			}
		})
	}
}

func TestStackDeltaFuncArity(t *testing.T) {
	if got := StackDelta(OpFunc, 7, nil); got != -(MaxPar - 1) {
		t.Errorf("script FUNC delta = %d, want %d", got, -(MaxPar - 1))
	}
	arity := func(h int64) int {
		if h == 7 {
			return 2
		}
		return MaxPar
	}
	if got := StackDelta(OpFunc, 7, arity); got != -1 {
		t.Errorf("host FUNC delta = %d, want -1", got)
	}
}

func TestOpcodeClassification(t *testing.T) {
	for _, op := range []Opcode{OpJump, OpJumpAnd, OpJumpOr, OpJumpNil, OpJumpNotNil, OpCondN, OpNilCoalescingIt} {
		if !op.IsJump() {
			t.Errorf("%s should be a jump", op)
		}
	}
	for _, op := range []Opcode{OpForeachNext, OpForeachMapNext, OpReturn, OpStack} {
		if op.IsJump() {
			t.Errorf("%s should not be a jump", op)
		}
	}
	if OpJump.IsConditional() {
		t.Error("JUMP is unconditional")
	}
	if !OpCondN.IsConditional() {
		t.Error("CONDN is conditional")
	}
	for _, op := range []Opcode{OpReturn, OpErr, OpEOFN, OpEOF} {
		if !op.IsTerminator() {
			t.Errorf("%s should terminate", op)
		}
	}
	if !OpCallFS.IsCall() || OpFunc.IsCall() {
		t.Error("IsCall misclassifies FUNC or CALLFS")
	}
}
