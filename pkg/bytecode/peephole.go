package bytecode

// CanMergeStack reports whether STACK next may be folded into an
// immediately preceding STACK prev. A negative prev followed by a
// positive next is kept apart: popping values and pushing fresh nils is
// not the same as leaving the old values in place.
func CanMergeStack(prev, next int64) bool {
	return next <= 0 || prev >= 0
}

// MergeStack folds adjacent STACK chunks with the same rule the generator
// applies while emitting, never folding across a jump target, and
// relocates every jump accordingly. The result is a fixpoint: merging it
// again returns an equal sequence.
func MergeStack(code Code) Code {
	targets := code.JumpTargets()
	newIndex := make([]int, len(code)+1)
	var b Builder

	for i, ch := range code {
		if targets[i] {
			b.MarkJumpTarget()
		}
		newIndex[i] = b.Len()
		b.Append(ch)
	}
	newIndex[len(code)] = b.Len()

	out := b.Code()
	for i, ch := range code {
		if !ch.Op.IsJump() {
			continue
		}
		to := i + int(ch.X)
		if to < 0 || to > len(code) {
			continue
		}
		from := newIndex[i]
		out[from].X = int64(newIndex[to] - from)
	}
	return out
}
