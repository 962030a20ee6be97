package bytecode

import (
	"strings"
	"testing"
)

type testSymbols struct{}

func (testSymbols) FuncName(h int64) string    { return "Foo" }
func (testSymbols) StringValue(h int64) string { return "hello world" }
func (testSymbols) OperatorToken(id int64) string {
	return "+"
}

func TestDisassembleEmpty(t *testing.T) {
	output := Code{}.Disassemble()
	if !strings.Contains(output, "Aul Bytecode") {
		t.Error("Disassembly missing header")
	}
}

func TestDisassembleJumps(t *testing.T) {
	code := Code{
		{Op: OpParNV, X: 0},
		{Op: OpCondN, X: 3},
		{Op: OpInt, X: 1},
		{Op: OpReturn},
		{Op: OpNil},
		{Op: OpReturn},
	}
	lines := code.DisassembleToLines(Listing{})
	if len(lines) != 6 {
		t.Fatalf("DisassembleToLines() returned %d lines, want 6", len(lines))
	}
	if !strings.HasPrefix(lines[1], "0001  CONDN") || !strings.Contains(lines[1], "+3 (-> 0004)") {
		t.Errorf("jump line = %q", lines[1])
	}
	if !strings.Contains(lines[3], "RETURN") {
		t.Errorf("line 3 = %q", lines[3])
	}
}

func TestDisassembleWithNames(t *testing.T) {
	code := Code{
		{Op: OpParNV, X: 0},
		{Op: OpVarNR, X: 1},
		{Op: OpString, X: 4},
		{Op: OpFunc, X: 9},
		{Op: OpSum, X: 12},
		{Op: OpC4ID, X: 0x4B4E4C43},
		{Op: OpForeachNext, X: 0},
	}
	output := code.DisassembleWith(Listing{
		Name:     "Test::f",
		ParNames: []string{"a"},
		VarNames: []string{"i", "sum"},
		Symbols:  testSymbols{},
	})
	for _, want := range []string{
		"; === Test::f ===",
		"; Parameters (1): a",
		"; Vars (2): i, sum",
		"PARN_V           0 ; a",
		"VARN_R           1 ; sum",
		`"hello world"`,
		"; Foo",
		`Sum              "+"`,
		"CLNK",
		"FOREACH_NEXT     0 ; i (-> 0008)",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Disassembly missing %q:\n%s", want, output)
		}
	}
}

func TestDisassembleInstructionOutOfRange(t *testing.T) {
	if got := (Code{}).DisassembleInstruction(3, Listing{}); got != "<end of code>" {
		t.Errorf("DisassembleInstruction(3) = %q", got)
	}
}
