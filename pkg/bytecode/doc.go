// Package bytecode defines the instruction set executed by the Aul VM.
//
// A function's compiled form is a Code value: a flat sequence of Chunk
// instructions, each an opcode plus one integer operand. There are no
// basic blocks; jumps carry a distance relative to the jumping chunk and
// are patched in place by the generator once the target is known.
//
// # Stack contract
//
// Every opcode has a static stack effect on its fall-through path, see
// StackDelta. The generator tracks the running depth while emitting and
// the Verify function replays it over finished code:
//
//   - STACK n pushes n nils (n > 0) or drops -n values (n < 0)
//   - ARRAY n and MAP n consume n elements or n key/value pairs
//   - FUNC consumes the callee's parameter count and pushes the result
//   - CALL, CALLFS and CALLGLOBAL consume a target plus MaxPar arguments
//   - conditional jumps consume their operand on the fall-through path
//
// # Peephole
//
// Adjacent STACK instructions are merged while emitting unless the second
// one is a jump target. MergeStack performs the same merge on finished code
// and relocates jumps; it is used to check that generator output is
// already in normal form.
//
// # Serialization
//
// MarshalCode and UnmarshalCode use canonical CBOR. Identical code always
// encodes to identical bytes, which the image and cache layers rely on.
package bytecode
