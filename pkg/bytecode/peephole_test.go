package bytecode

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestCanMergeStack(t *testing.T) {
	tests := []struct {
		prev, next int64
		want       bool
	}{
		{2, 3, true},
		{2, -1, true},
		{-2, -1, true},
		{-1, 1, false},
		{0, 5, true},
		{-3, 0, true},
	}
	for _, tt := range tests {
		if got := CanMergeStack(tt.prev, tt.next); got != tt.want {
			t.Errorf("CanMergeStack(%d, %d) = %v, want %v", tt.prev, tt.next, got, tt.want)
		}
	}
}

func TestMergeStackRelocatesJumps(t *testing.T) {
	code := Code{
		{Op: OpParNV, X: 0},
		{Op: OpCondN, X: 4},
		{Op: OpStack, X: 2},
		{Op: OpStack, X: -1},
		{Op: OpStack, X: -1},
		{Op: OpNil},
		{Op: OpNil},
		{Op: OpReturn},
	}
	got := MergeStack(code)
	want := Code{
		{Op: OpParNV, X: 0},
		{Op: OpCondN, X: 1},
		{Op: OpNil},
		{Op: OpNil},
		{Op: OpReturn},
	}
	if !got.Equal(want) {
		t.Errorf("MergeStack() =\n%s\nwant\n%s", got.Disassemble(), want.Disassemble())
	}
}

func TestMergeStackKeepsJumpTargets(t *testing.T) {
	code := Code{
		{Op: OpStack, X: 1},
		{Op: OpParNV, X: 0},
		{Op: OpCondN, X: 2},
		{Op: OpStack, X: 1},
		{Op: OpStack, X: -1},
		{Op: OpReturn},
	}
	got := MergeStack(code)
	if got.Len() != 6 {
		t.Fatalf("MergeStack() has %d chunks, want 6:\n%s", got.Len(), got.Disassemble())
	}
	if got[2].X != 2 || got[4].Op != OpStack || got[4].X != -1 {
		t.Errorf("jump target was merged away:\n%s", got.Disassemble())
	}
}

func TestMergeStackPreservesStackEffect(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("merged code has the same net effect and is no longer", prop.ForAll(
		func(xs []int) bool {
			code := make(Code, 0, len(xs)+1)
			sum := int64(0)
			for _, x := range xs {
				code = append(code, Chunk{Op: OpStack, X: int64(x)})
				sum += int64(x)
			}
			code = append(code, Chunk{Op: OpEOFN})
			merged := MergeStack(code)
			got := int64(0)
			for _, ch := range merged {
				if ch.Op == OpStack {
					got += ch.X
				}
			}
			return got == sum && merged.Len() <= code.Len() && merged[merged.Len()-1].Op == OpEOFN
		},
		gen.SliceOf(gen.IntRange(-5, 5)),
	))

	properties.TestingRun(t)
}

func TestMergeStackIsFixpoint(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("merging merged code changes nothing", prop.ForAll(
		func(xs []int, jumpAt int) bool {
			code := Code{{Op: OpNil}}
			for _, x := range xs {
				code = append(code, Chunk{Op: OpStack, X: int64(x)})
			}
			// a forward jump into the middle pins one chunk
			if jumpAt < len(xs) {
				code = append(Code{{Op: OpJump, X: int64(jumpAt + 2)}}, code...)
			}
			code = append(code, Chunk{Op: OpEOFN})
			once := MergeStack(code)
			return MergeStack(once).Equal(once)
		},
		gen.SliceOf(gen.IntRange(-4, 4)),
		gen.IntRange(0, 8),
	))

	properties.TestingRun(t)
}
