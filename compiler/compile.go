// Package compiler turns function bodies into bytecode for the vm
// package. Install it on an engine with Install or vm.SetCompileFunc.
package compiler

import (
	"github.com/chazu/aul/pkg/bytecode"
	"github.com/chazu/aul/vm"
)

// Compile is the vm.CompileFunc: it compiles fn against its compile scope,
// adds the implicit "return nil" and terminates the code with EOFN. On
// error the code ends in an ERR stub followed by EOFN.
func Compile(e *vm.Engine, fn *vm.Function) (bytecode.Code, error) {
	g := newGenerator(e, fn, e.CompileScope(fn))
	err := g.body()
	pos := fn.Pos()
	if fn.Decl != nil && fn.Decl.Body != nil {
		pos = fn.Decl.Body.PosVal
	}
	if err == nil {
		last := g.b.Last()
		if last == nil || last.Op != bytecode.OpReturn || g.b.AtJumpTarget() {
			g.emit(pos, bytecode.OpNil, 0)
			g.emit(pos, bytecode.OpReturn, 0)
		}
	}
	g.emit(pos, bytecode.OpEOFN, 0)
	return g.b.Code().Clone(), err
}

// Install makes e compile with Compile.
func Install(e *vm.Engine) *vm.Engine {
	e.SetCompileFunc(Compile)
	return e
}

// NewEngine returns an engine with the compiler installed.
func NewEngine(cfg vm.Config) *vm.Engine {
	return Install(vm.NewEngine(cfg))
}
