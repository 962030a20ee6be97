package bytecode

import (
	"fmt"
	"strings"
)

// Symbols resolves operand handles to names for listings. Implementations
// return "" when a handle is unknown.
type Symbols interface {
	FuncName(handle int64) string
	StringValue(handle int64) string
	OperatorToken(id int64) string
}

// Listing carries optional annotations for a disassembly.
type Listing struct {
	Name     string
	ParNames []string
	VarNames []string
	Symbols  Symbols
}

// Disassemble returns a human-readable bytecode listing.
func (c Code) Disassemble() string {
	return c.DisassembleWith(Listing{})
}

// DisassembleWith returns a listing annotated with names from l.
func (c Code) DisassembleWith(l Listing) string {
	var sb strings.Builder

	if l.Name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", l.Name))
	}
	sb.WriteString(fmt.Sprintf("; Aul Bytecode v%d, %d chunks\n", BytecodeVersion, len(c)))
	if len(l.ParNames) > 0 {
		sb.WriteString(fmt.Sprintf("; Parameters (%d): %s\n", len(l.ParNames), strings.Join(l.ParNames, ", ")))
	}
	if len(l.VarNames) > 0 {
		sb.WriteString(fmt.Sprintf("; Vars (%d): %s\n", len(l.VarNames), strings.Join(l.VarNames, ", ")))
	}
	sb.WriteString("\n")

	for _, line := range c.DisassembleToLines(l) {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

// DisassembleToLines returns one "%04X  ..." line per chunk.
func (c Code) DisassembleToLines(l Listing) []string {
	lines := make([]string, 0, len(c))
	for i := range c {
		lines = append(lines, fmt.Sprintf("%04X  %s", i, c.DisassembleInstruction(i, l)))
	}
	return lines
}

// DisassembleInstruction renders the chunk at index i.
func (c Code) DisassembleInstruction(i int, l Listing) string {
	if i < 0 || i >= len(c) {
		return "<end of code>"
	}
	ch := c[i]
	name := ch.Op.String()

	switch ch.Op.Operand() {
	case OperandNone:
		return name
	case OperandJump:
		return fmt.Sprintf("%-16s %+d (-> %04X)", name, ch.X, i+int(ch.X))
	case OperandSlot:
		if ch.Op == OpForeachNext || ch.Op == OpForeachMapNext {
			return fmt.Sprintf("%-16s %d%s (-> %04X)", name, ch.X, slotNote(ch, l), i+2)
		}
		return fmt.Sprintf("%-16s %d%s", name, ch.X, slotNote(ch, l))
	case OperandBool:
		return fmt.Sprintf("%-16s %t", name, ch.X != 0)
	case OperandID:
		return fmt.Sprintf("%-16s %s", name, idText(uint32(ch.X)))
	case OperandString:
		if l.Symbols != nil {
			return fmt.Sprintf("%-16s %d ; %q", name, ch.X, truncate(l.Symbols.StringValue(ch.X)))
		}
	case OperandFunc:
		if l.Symbols != nil {
			return fmt.Sprintf("%-16s %d ; %s", name, ch.X, l.Symbols.FuncName(ch.X))
		}
	case OperandOp:
		if l.Symbols != nil {
			return fmt.Sprintf("%-16s %q", name, l.Symbols.OperatorToken(ch.X))
		}
	}
	return fmt.Sprintf("%-16s %d", name, ch.X)
}

func slotNote(ch Chunk, l Listing) string {
	var names []string
	switch ch.Op {
	case OpParNR, OpParNV:
		names = l.ParNames
	case OpVarNR, OpVarNV, OpIVarN, OpForeachNext, OpForeachMapNext:
		names = l.VarNames
	}
	if ch.X >= 0 && int(ch.X) < len(names) {
		return " ; " + names[ch.X]
	}
	return ""
}

func truncate(s string) string {
	if len(s) > 40 {
		return s[:37] + "..."
	}
	return s
}

// idText renders a definition id the way ast.ID does: "NONE", four
// digits for numeric ids, else four characters low byte first.
func idText(id uint32) string {
	if id == 0 {
		return "NONE"
	}
	if id <= 9999 {
		return fmt.Sprintf("%04d", id)
	}
	if id == 0xFFFFFFFF {
		return "*"
	}
	b := []byte{byte(id), byte(id >> 8), byte(id >> 16), byte(id >> 24)}
	for _, c := range b {
		if c < 0x20 || c > 0x7E {
			return fmt.Sprintf("%d", id)
		}
	}
	return string(b)
}
