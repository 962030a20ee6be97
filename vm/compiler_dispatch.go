package vm

import (
	"errors"

	"github.com/chazu/aul/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// CompileFunc: injected bytecode generator
// ---------------------------------------------------------------------------

// CompileFunc compiles one script function. It is used to inject the
// compiler package without creating an import cycle. The returned code is
// stored even when err is non-nil; a failed compile yields an ERR stub.
type CompileFunc func(e *Engine, fn *Function) (bytecode.Code, error)

// errNoCompiler is returned by Link when no CompileFunc is installed.
var errNoCompiler = errors.New("vm: no compiler installed (see SetCompileFunc)")

// SetCompileFunc installs the generator used by the parse phase of Link.
// The compiler package passes compiler.Compile here.
func (e *Engine) SetCompileFunc(fn CompileFunc) {
	e.compile = fn
}

// HasCompiler reports whether a CompileFunc is installed.
func (e *Engine) HasCompiler() bool {
	return e.compile != nil
}

// CompileScope returns the script whose names a function body is resolved
// against: its owner, or the declaring script for global functions.
func (e *Engine) CompileScope(fn *Function) *Script {
	if fn.Owner == EngineScope && fn.OrgScript != EngineScope {
		return e.scripts[fn.OrgScript]
	}
	return e.scripts[fn.Owner]
}
