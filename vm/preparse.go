package vm

import (
	"fmt"

	"github.com/chazu/aul/pkg/ast"
	"github.com/chazu/aul/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Preparse: declarations, directives and function heads
// ---------------------------------------------------------------------------

// preparser walks the top level of one script.
type preparser struct {
	e *Engine
	s *Script
}

// preparseAbort carries a hard error out of the walk.
type preparseAbort struct{ err *PreparseError }

func (p *preparser) fail(pos int32, format string, args ...any) {
	panic(preparseAbort{&PreparseError{Script: p.s.Name, Pos: pos, Msg: fmt.Sprintf(format, args...)}})
}

// strict2 reports a warning below #strict 2 and a hard error from it on.
func (p *preparser) strict2(pos int32, format string, args ...any) {
	if p.s.Strict < ast.Strict2 {
		p.e.warnf(p.s, pos, format, args...)
		return
	}
	p.fail(pos, format, args...)
}

// Preparse records the directives, variables, constants and function
// heads of a script in state None. A malformed declaration leaves the
// script in the Error state with no functions and returns a
// *PreparseError; other scripts are unaffected.
func (e *Engine) Preparse(s *Script) (err error) {
	if s == nil || s.ID == EngineScope {
		return ErrUnknownScript
	}
	if s.State != StateNone {
		return nil
	}

	e.clearScriptFuncs(s)
	s.Includes, s.Appends, s.LocalNamed = nil, nil, nil
	s.Strict = ast.NonStrict
	s.IncludesResolved = false

	p := &preparser{e: e, s: s}
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		abort, ok := r.(preparseAbort)
		if !ok {
			panic(r)
		}
		e.report(SeverityError, s, nil, abort.err.Pos, abort.err.Msg)
		e.clearScriptFuncs(s)
		s.State = StateError
		err = abort.err
	}()

	for _, n := range s.Root.Statements {
		p.statement(n)
	}
	if s.Strict == ast.NonStrict {
		e.counters.NonStrict++
	}
	s.State = StatePreparsed
	return nil
}

func (p *preparser) statement(n ast.Node) {
	switch n := n.(type) {
	case *ast.StrictDirective:
		if n.Level < ast.Strict1 || n.Level > ast.Strict3 {
			p.fail(n.PosVal, "unknown strict level")
		}
		p.s.Strict = n.Level
	case *ast.Include:
		p.s.Includes = append(p.s.Includes, Dependency{ID: n.ID, NoWarn: n.NoWarn})
	case *ast.Append:
		p.s.Appends = append(p.s.Appends, Dependency{ID: n.ID, NoWarn: n.NoWarn})
	case *ast.Declarations:
		for _, d := range n.Decls {
			p.declaration(d)
		}
	case *ast.Declaration:
		p.declaration(n)
	case *ast.Function:
		p.function(n)
	case *ast.Nop:
	case *ast.Error:
		p.fail(n.PosVal, "%s", n.Message)
	case nil:
	default:
		p.fail(n.Position(), "unexpected %s outside function", n.Kind())
	}
}

func (p *preparser) declaration(d *ast.Declaration) {
	e, s := p.e, p.s
	if err := checkIdentifier(d.Name); err != "" {
		p.fail(d.PosVal, "variable definition: %s", err)
	}
	switch d.Type {
	case ast.DeclLocal:
		if e.GetFunc(s.ID, d.Name) != 0 {
			p.fail(d.PosVal, "variable definition: name already in use")
		}
		s.addLocal(d.Name)

	case ast.DeclStatic:
		if e.GetFuncRecursive(EngineScope, d.Name) != 0 {
			p.fail(d.PosVal, "variable definition: name already in use")
		}
		if _, ok := e.GetGlobalConstant(d.Name); ok {
			p.strict2(d.PosVal, "constant and variable with name %s", d.Name)
		}
		e.AddGlobal(d.Name)

	case ast.DeclStaticConst:
		if e.GetFuncRecursive(EngineScope, d.Name) != 0 {
			p.strict2(d.PosVal, "definition of constant hidden by function %s", d.Name)
		}
		if e.GlobalIndex(d.Name) >= 0 {
			p.strict2(d.PosVal, "constant and variable with name %s", d.Name)
		}
		e.RegisterGlobalConstant(d.Name, p.constValue(d))

	default:
		p.fail(d.PosVal, "unexpected variable definition outside function")
	}
}

// constValue evaluates the initialiser of a static const. Only literals
// and other constants are accepted.
func (p *preparser) constValue(d *ast.Declaration) Value {
	switch v := d.Value.(type) {
	case nil, *ast.Nil:
		return Value{}
	case *ast.IntLiteral:
		return Int(v.Value)
	case *ast.BoolLiteral:
		return Bool(v.Value)
	case *ast.StringLiteral:
		return String(v.Value)
	case *ast.C4IDLiteral:
		return IDValue(v.Value)
	case *ast.GlobalConstant:
		if c, ok := p.e.GetGlobalConstant(v.Name); ok {
			return c
		}
		p.fail(v.PosVal, "unexpected constant value: %s", v.Name)
	default:
		p.fail(d.PosVal, "constant value expected")
	}
	return Value{}
}

func (p *preparser) function(fn *ast.Function) {
	e, s := p.e, p.s
	proto := fn.Proto
	if proto == nil {
		p.fail(fn.PosVal, "function name expected")
	}
	if err := checkIdentifier(proto.Name); err != "" {
		p.fail(proto.PosVal, "function definition: %s", err)
	}

	access := proto.Access
	if access != ast.AccessGlobal && s.LocalIndex(proto.Name) >= 0 {
		p.fail(proto.PosVal, "function definition: name already in use (local variable)")
	}
	if access == ast.AccessGlobal || s.Def == ast.NoID {
		if e.GlobalIndex(proto.Name) >= 0 {
			p.fail(proto.PosVal, "function definition: name already in use (global variable)")
		}
		if _, ok := e.GetGlobalConstant(proto.Name); ok {
			p.strict2(proto.PosVal, "function definition: name already in use (global variable)")
		}
	}

	if len(proto.Params) > bytecode.MaxPar {
		p.fail(proto.PosVal, "'func' parameter list: too many parameters (max %d)", bytecode.MaxPar)
	}
	f := &Function{
		Name:      proto.Name,
		OrgScript: s.ID,
		Access:    access,
		ReturnRef: proto.ReturnRef,
		Decl:      fn,
		ParTypes:  make([]ast.ValueType, bytecode.MaxPar),
	}
	seen := make(map[string]bool, len(proto.Params))
	for i, par := range proto.Params {
		if err := checkIdentifier(par.Name); err != "" {
			p.fail(proto.PosVal, "'func' parameter list: %s", err)
		}
		if seen[par.Name] {
			p.fail(proto.PosVal, "'func' parameter list: duplicate parameter %s", par.Name)
		}
		seen[par.Name] = true
		f.ParNames = append(f.ParNames, par.Name)
		f.ParTypes[i] = par.Type
		if par.IsRef {
			f.ParTypes[i] = ast.TypeRef
		}
	}
	if fn.Body != nil {
		f.VarNames = ast.VarNames(fn.Body)
	}

	if access == ast.AccessGlobal {
		f.Global = true
		f.Access = ast.AccessPublic
		f.Owner = EngineScope
		id := e.addFunc(f, true)
		s.Funcs = append(s.Funcs, id)
		return
	}
	f.Owner = s.ID
	e.addFunc(f, true)
}

// checkIdentifier returns a description of what is wrong with name, or "".
func checkIdentifier(name string) string {
	switch {
	case name == "":
		return "identifier expected"
	case len(name) >= ast.MaxIdentifier:
		return fmt.Sprintf("identifier too long (max %d)", ast.MaxIdentifier-1)
	}
	return ""
}
