// Package vm implements the Aul script engine.
//
// This package contains:
//   - the function arena and the name-hashed function map
//   - scripts and their link state machine (preparse, includes, appends,
//     overload chains, same-name rings)
//   - the engine registry with strings, global variables and constants
//   - the bytecode executor
//
// Function bodies are compiled by an injected CompileFunc (see
// SetCompileFunc); the compiler package imports vm, never the other way.
package vm
