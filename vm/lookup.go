package vm

import (
	"strings"

	"github.com/chazu/aul/pkg/ast"
)

// ---------------------------------------------------------------------------
// Name lookup
// ---------------------------------------------------------------------------

// GetFunc returns the highest-priority function called name owned by
// scope, or 0.
func (e *Engine) GetFunc(scope ScriptID, name string) FuncID {
	return e.funcMap.GetFunc(name, scope, 0)
}

// GetFuncRecursive looks in scope first and then in the engine scope.
func (e *Engine) GetFuncRecursive(scope ScriptID, name string) FuncID {
	if id := e.GetFunc(scope, name); id != 0 {
		return id
	}
	if scope != EngineScope {
		return e.GetFunc(EngineScope, name)
	}
	return 0
}

// GetOverloadedFunc returns the function fn overloads: the previous
// same-name function in its owner's list, or else the engine-scope
// function of that name.
func (e *Engine) GetOverloadedFunc(fn *Function) FuncID {
	owner := e.scripts[fn.Owner]
	for i := owner.indexOf(fn.ID) - 1; i >= 0; i-- {
		prev := e.funcs[owner.Funcs[i]]
		if prev.Owner == owner.ID && prev.Name == fn.Name {
			return prev.ID
		}
	}
	if fn.Owner != EngineScope {
		return e.GetFunc(EngineScope, fn.Name)
	}
	return 0
}

// topOverload follows OverloadedBy to the function that currently wins.
func (e *Engine) topOverload(id FuncID) FuncID {
	for seen := 0; id != 0 && seen < len(e.funcs); seen++ {
		next := e.funcs[id].OverloadedBy
		if next == 0 {
			break
		}
		id = next
	}
	return id
}

// FindSameNameFunc walks the same-name ring of fn for the version visible
// from scope: a function owned by scope wins, otherwise the last engine
// scope function on the ring.
func (e *Engine) FindSameNameFunc(fn *Function, scope ScriptID) FuncID {
	if fn == nil {
		return 0
	}
	var global FuncID
	id := fn.ID
	for steps := 0; steps < len(e.funcs); steps++ {
		f := e.funcs[id]
		if f == nil {
			break
		}
		if f.Owner == scope {
			return id
		}
		if f.Owner == EngineScope {
			global = id
		}
		id = f.NextSNFunc
		if id == 0 || id == fn.ID {
			break
		}
	}
	return global
}

// related reports whether two scripts are joined by #include or
// #appendto in either direction.
func (e *Engine) related(a, b *Script) bool {
	if a.Def != ast.NoID {
		for _, d := range b.Includes {
			if d.ID == a.Def {
				return true
			}
		}
		for _, d := range b.Appends {
			if d.ID == a.Def || d.ID == ast.AllIDs {
				return true
			}
		}
	}
	if b.Def != ast.NoID {
		for _, d := range a.Includes {
			if d.ID == b.Def {
				return true
			}
		}
		for _, d := range a.Appends {
			if d.ID == b.Def || d.ID == ast.AllIDs {
				return true
			}
		}
	}
	return false
}

// GetAllowedAccess returns the lowest access level fn needs to be callable
// from caller. Related scripts, the declaring script itself and any
// non-strict party may call anything; strict3 strangers need public.
func (e *Engine) GetAllowedAccess(fn *Function, caller ScriptID) ast.Access {
	if !fn.IsScript() || fn.OrgScript == caller {
		return ast.AccessPrivate
	}
	org, from := e.Script(fn.OrgScript), e.Script(caller)
	if org == nil || from == nil || caller == EngineScope {
		return ast.AccessPrivate
	}
	if e.related(org, from) {
		return ast.AccessPrivate
	}
	if org.Strict >= ast.Strict3 && from.Strict >= ast.Strict3 {
		return ast.AccessPublic
	}
	return ast.AccessPrivate
}

// CanCall reports whether caller may call fn.
func (e *Engine) CanCall(fn *Function, caller ScriptID) bool {
	return fn.Access >= e.GetAllowedAccess(fn, caller)
}

// GetSFunc looks up a script function of scope by name. A leading '~'
// makes the lookup failsafe: missing functions are not reported. A
// function below need is reported but still returned.
func (e *Engine) GetSFunc(scope ScriptID, name string, need ast.Access, failsafe bool) FuncID {
	if strings.HasPrefix(name, "~") {
		name = name[1:]
		failsafe = true
	}
	s := e.Script(scope)
	id := e.GetFunc(scope, name)
	for id != 0 && !e.funcs[id].IsScript() {
		id = e.funcMap.GetFunc(name, scope, id)
	}
	if id == 0 {
		if !failsafe && s != nil {
			e.errorf(s, 0, "Undefined function: %s", name)
		}
		return 0
	}
	if e.funcs[id].Access < need && s != nil {
		e.errorf(s, 0, "insufficient access level")
	}
	return id
}

// FindFunc resolves a function by full name ("ID::name", "global name"
// or a bare name searched in the engine scope, then in every script in
// registration order).
func (e *Engine) FindFunc(full string) *Function {
	if rest, ok := strings.CutPrefix(full, "global "); ok {
		return e.Func(e.GetFunc(EngineScope, rest))
	}
	if rest, ok := strings.CutPrefix(full, "game "); ok {
		for _, s := range e.scripts[1:] {
			if s.Def == ast.NoID {
				if id := e.GetFunc(s.ID, rest); id != 0 {
					return e.Func(id)
				}
			}
		}
		return nil
	}
	if def, name, ok := strings.Cut(full, "::"); ok {
		id, err := ast.ParseID(def)
		if err != nil {
			return nil
		}
		s := e.ScriptByDef(id)
		if s == nil {
			return nil
		}
		return e.Func(e.GetFunc(s.ID, name))
	}
	if id := e.GetFunc(EngineScope, full); id != 0 {
		return e.Func(id)
	}
	for _, s := range e.scripts[1:] {
		if id := e.GetFunc(s.ID, full); id != 0 {
			return e.Func(id)
		}
	}
	return nil
}
