package bytecode

import "testing"

func TestChunkString(t *testing.T) {
	tests := []struct {
		c    Chunk
		want string
	}{
		{Chunk{Op: OpDeref}, "DEREF"},
		{Chunk{Op: OpInt, X: 42}, "INT 42"},
		{Chunk{Op: OpJump, X: -3}, "JUMP -3"},
	}
	for _, tt := range tests {
		if got := tt.c.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestCodeJumpTargets(t *testing.T) {
	code := Code{
		{Op: OpVarNV, X: 0},
		{Op: OpCondN, X: 3},
		{Op: OpInt, X: 1},
		{Op: OpReturn},
		{Op: OpNil},
		{Op: OpReturn},
	}
	targets := code.JumpTargets()
	if len(targets) != len(code)+1 {
		t.Fatalf("len(JumpTargets()) = %d, want %d", len(targets), len(code)+1)
	}
	for i, want := range []bool{false, false, false, false, true, false, false} {
		if targets[i] != want {
			t.Errorf("targets[%d] = %v, want %v", i, targets[i], want)
		}
	}
}

func TestCodeForeachTarget(t *testing.T) {
	code := Code{
		{Op: OpForeachNext, X: 0},
		{Op: OpJump, X: 2},
		{Op: OpJump, X: -2},
		{Op: OpStack, X: -2},
	}
	if got := code.Target(0); got != 2 {
		t.Errorf("Target(0) = %d, want 2", got)
	}
	targets := code.JumpTargets()
	if !targets[0] || !targets[2] || !targets[3] {
		t.Errorf("JumpTargets() = %v", targets)
	}
}

func TestCodeCloneIsIndependent(t *testing.T) {
	code := Code{{Op: OpInt, X: 1}, {Op: OpReturn}}
	clone := code.Clone()
	clone[0].X = 2
	if code[0].X != 1 {
		t.Error("Clone shares storage with the original")
	}
	if code.Equal(clone) {
		t.Error("Equal should see the modified operand")
	}
	clone[0].X = 1
	if !code.Equal(clone) {
		t.Error("Equal should hold after restoring the operand")
	}
}

func TestCodeCountAndOps(t *testing.T) {
	code := Code{{Op: OpNil}, {Op: OpStack, X: -1}, {Op: OpNil}, {Op: OpReturn}}
	if got := code.Count(OpNil); got != 2 {
		t.Errorf("Count(NIL) = %d, want 2", got)
	}
	ops := code.Ops()
	if len(ops) != 4 || ops[3] != OpReturn {
		t.Errorf("Ops() = %v", ops)
	}
}
