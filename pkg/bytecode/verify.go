package bytecode

import "fmt"

// VerifyError reports a stack or jump contract violation at Offset.
type VerifyError struct {
	Offset int
	Msg    string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("bytecode: %04X: %s", e.Offset, e.Msg)
}

// popCount returns how many values an instruction needs on the stack on
// its fall-through path.
func popCount(ch Chunk, arity ArityFunc) int {
	switch ch.Op {
	case OpStack:
		if ch.X < 0 {
			return int(-ch.X)
		}
		return 0
	case OpArray:
		return int(ch.X)
	case OpMap:
		return 2 * int(ch.X)
	case OpFunc:
		if arity != nil {
			return arity(ch.X)
		}
		return MaxPar
	}
	return GetOpcodeInfo(ch.Op).StackPop
}

// Verify simulates the static stack effect of every reachable instruction
// starting from an empty stack. It fails when the stack would underflow,
// when two paths reach an instruction with different depths, when a jump
// lands outside [0, len(code)], or on an unknown opcode. ERR chunks may be
// reached at any depth.
//
// Depth reached at each index is returned for reachable instructions and
// -1 otherwise; index len(code) is included.
func Verify(code Code, arity ArityFunc) ([]int, error) {
	depth := make([]int, len(code)+1)
	for i := range depth {
		depth[i] = -1
	}
	depth[0] = 0
	work := []int{0}

	reach := func(from, to, d int) error {
		if to < 0 || to > len(code) {
			return &VerifyError{from, fmt.Sprintf("jump target %d out of range [0, %d]", to, len(code))}
		}
		if depth[to] == -1 {
			depth[to] = d
			work = append(work, to)
			return nil
		}
		// error stubs are reached by every unpatched jump
		if to < len(code) && code[to].Op == OpErr {
			return nil
		}
		if depth[to] != d {
			return &VerifyError{to, fmt.Sprintf("inconsistent stack depth: %d vs %d", depth[to], d)}
		}
		return nil
	}

	for len(work) > 0 {
		i := work[len(work)-1]
		work = work[:len(work)-1]
		if i == len(code) {
			continue
		}
		ch := code[i]
		d := depth[i]
		if _, ok := opcodeInfoTable[ch.Op]; !ok {
			return depth, &VerifyError{i, fmt.Sprintf("unknown opcode 0x%02X", byte(ch.Op))}
		}
		if need := popCount(ch, arity); need > d {
			return depth, &VerifyError{i, fmt.Sprintf("%s needs %d values, stack has %d", ch.Op, need, d)}
		}
		next := d + StackDelta(ch.Op, ch.X, arity)

		switch {
		case ch.Op.IsTerminator():
			continue
		case ch.Op == OpJump:
			if err := reach(i, i+int(ch.X), d); err != nil {
				return depth, err
			}
		case ch.Op.IsJump():
			if err := reach(i, i+1, next); err != nil {
				return depth, err
			}
			taken := d - GetOpcodeInfo(ch.Op).TakenPop
			if err := reach(i, i+int(ch.X), taken); err != nil {
				return depth, err
			}
		case ch.Op == OpForeachNext || ch.Op == OpForeachMapNext:
			if err := reach(i, i+1, next); err != nil {
				return depth, err
			}
			if err := reach(i, i+2, next); err != nil {
				return depth, err
			}
		default:
			if err := reach(i, i+1, next); err != nil {
				return depth, err
			}
		}
	}
	return depth, nil
}
