package bytecode

// Builder appends chunks while folding adjacent STACK adjustments. A chunk
// appended right after MarkJumpTarget is pinned and is never folded into
// its predecessor.
type Builder struct {
	code   Code
	pinned []bool
	jump   bool
}

// Len returns the index the next appended chunk will get.
func (b *Builder) Len() int {
	return len(b.code)
}

// Code returns the chunks appended so far. The slice aliases the
// builder's storage.
func (b *Builder) Code() Code {
	return b.code
}

// At returns the chunk at i for patching.
func (b *Builder) At(i int) *Chunk {
	return &b.code[i]
}

// Last returns the most recently appended chunk, or nil.
func (b *Builder) Last() *Chunk {
	if len(b.code) == 0 {
		return nil
	}
	return &b.code[len(b.code)-1]
}

// MarkJumpTarget pins the next appended chunk.
func (b *Builder) MarkJumpTarget() {
	b.jump = true
}

// AtJumpTarget reports whether the next chunk will be pinned.
func (b *Builder) AtJumpTarget() bool {
	return b.jump
}

// Append adds ch, folding a STACK into a preceding unpinned STACK when
// CanMergeStack allows it. A fold that sums to zero drops the chunk.
func (b *Builder) Append(ch Chunk) {
	if ch.Op == OpStack && !b.jump {
		if last := b.Last(); last != nil && last.Op == OpStack && CanMergeStack(last.X, ch.X) {
			last.X += ch.X
			b.settle()
			return
		}
	}
	b.code = append(b.code, ch)
	b.pinned = append(b.pinned, b.jump)
	b.jump = false
}

// RemoveLast drops the last chunk. Pending pins are kept.
func (b *Builder) RemoveLast() {
	n := len(b.code) - 1
	b.code = b.code[:n]
	b.pinned = b.pinned[:n]
}

// settle restores the invariant that no two adjacent chunks can be folded
// after the top chunk changed.
func (b *Builder) settle() {
	for {
		n := len(b.code)
		top := b.code[n-1]
		if top.X == 0 {
			if b.pinned[n-1] {
				// the target now lands on whatever comes next
				b.jump = true
			}
			b.RemoveLast()
			return
		}
		if n < 2 || b.pinned[n-1] {
			return
		}
		prev := &b.code[n-2]
		if prev.Op != OpStack || !CanMergeStack(prev.X, top.X) {
			return
		}
		prev.X += top.X
		b.RemoveLast()
	}
}
