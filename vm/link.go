package vm

import (
	"github.com/chazu/aul/pkg/ast"
)

// ---------------------------------------------------------------------------
// Link state machine
// ---------------------------------------------------------------------------

// Summary describes one finished link.
type Summary struct {
	Scripts   int
	Lines     int
	Warnings  int
	Errors    int
	NonStrict int
}

// LastSummary returns the summary of the most recent link.
func (e *Engine) LastSummary() Summary {
	return e.lastSummary
}

// Link preparses new scripts, resolves #appendto and #include, compiles
// every function and builds the same-name rings. A linked engine is
// unlinked first, so Link always links the whole engine. Problems in
// individual scripts are reported as diagnostics; the returned error only
// signals a misconfigured engine.
func (e *Engine) Link() (Summary, error) {
	if e.compile == nil {
		return Summary{}, errNoCompiler
	}
	for _, s := range e.scripts[1:] {
		if s.State == StateLinked || s.State == StateParsed {
			e.UnLink()
			break
		}
	}

	for _, s := range e.scripts[1:] {
		if s.State == StateNone {
			_ = e.Preparse(s)
		}
	}
	e.ResolveAppends()
	for _, s := range e.scripts[1:] {
		e.ResolveIncludes(s)
	}
	e.parse()
	e.AfterLink()

	if e.counters.NonStrict > 0 {
		for _, s := range e.scripts[1:] {
			if s.Strict == ast.NonStrict && s.State == StateParsed {
				e.warnf(s, 0, "using non-#strict syntax!")
				break
			}
		}
		e.warnf(nil, 0, "%d script(s) use non-#strict syntax!", e.counters.NonStrict)
	}

	sum := Summary{
		Lines:     e.counters.Lines,
		Warnings:  e.counters.Warnings,
		Errors:    e.counters.Errors,
		NonStrict: e.counters.NonStrict,
	}
	for _, s := range e.scripts[1:] {
		if s.IsReady() {
			sum.Scripts++
		}
	}
	e.log.Infof("linked - %d line(s), %d warning(s), %d error(s)", sum.Lines, sum.Warnings, sum.Errors)
	e.lastSummary = sum
	e.counters = Counters{}
	return sum, nil
}

// UnLink drops every include/append copy, clears all link state and code
// and returns scripts to Preparsed. Held strings are released; global
// variables and constants survive.
func (e *Engine) UnLink() {
	for _, s := range e.scripts {
		for _, id := range append([]FuncID(nil), s.Funcs...) {
			f := e.funcs[id]
			if f == nil || f.Owner != s.ID {
				continue
			}
			if f.IsCopy() {
				e.deleteFunc(id)
				continue
			}
			f.OverloadedBy, f.OwnerOverloaded, f.NextSNFunc = 0, 0, 0
			if f.IsScript() {
				f.Code = nil
			}
		}
		if s.ID == EngineScope {
			continue
		}
		s.IncludesResolved = false
		s.Resolving = false
		if s.State == StateLinked || s.State == StateParsed {
			s.State = StatePreparsed
		}
	}
	e.strings.ClearHeld()
}

// ReLink unlinks and links again.
func (e *Engine) ReLink() (Summary, error) {
	e.UnLink()
	return e.Link()
}

// ReloadScript replaces the tree (and optionally the source) of a script,
// resets it to state None and relinks the engine.
func (e *Engine) ReloadScript(name string, root *ast.Script, source []byte) (Summary, error) {
	s := e.ScriptByName(name)
	if s == nil {
		return Summary{}, ErrUnknownScript
	}
	if root == nil {
		return Summary{}, &LinkError{Script: name, Msg: "reload without a tree"}
	}
	e.UnLink()
	e.clearScriptFuncs(s)
	s.Root = root
	if source != nil {
		s.Source = source
	}
	s.State = StateNone
	return e.Link()
}

// ---------------------------------------------------------------------------
// Appends and includes
// ---------------------------------------------------------------------------

// ResolveAppends copies the functions of every #appendto script into its
// targets with high priority. Runs before includes are resolved.
func (e *Engine) ResolveAppends() {
	for _, s := range e.scripts[1:] {
		if s.State != StatePreparsed {
			continue
		}
		for _, dep := range s.Appends {
			if dep.ID != ast.AllIDs {
				if t := e.ScriptByDef(dep.ID); t != nil {
					e.AppendTo(s, t, true)
				} else if !dep.NoWarn {
					e.warnf(s, 0, "script to #appendto not found: %s", dep.ID)
				}
				continue
			}
			for _, t := range e.scripts[1:] {
				if t.Def == ast.NoID || t.Def == s.Def || t.State == StateError {
					continue
				}
				e.AppendTo(s, t, true)
			}
		}
	}
}

// ResolveIncludes copies included scripts' functions into s with low
// priority, resolving the included scripts first. It reports false when
// s is part of an include cycle.
func (e *Engine) ResolveIncludes(s *Script) bool {
	if s.IncludesResolved {
		return true
	}
	if s.State == StateError || s.State == StateNone {
		return false
	}
	if s.Resolving {
		e.errorf(s, 0, "Circular include chain detected - ignoring all includes!")
		s.IncludesResolved = true
		s.State = StateLinked
		return false
	}
	s.Resolving = true
	// includes end up in front of each other, so walk them backwards
	for i := len(s.Includes) - 1; i >= 0; i-- {
		dep := s.Includes[i]
		t := e.ScriptByDef(dep.ID)
		if t == nil {
			if !dep.NoWarn {
				e.warnf(s, 0, "script to #include not found: %s", dep.ID)
			}
			continue
		}
		if !e.ResolveIncludes(t) {
			continue
		}
		e.AppendTo(t, s, false)
	}
	s.IncludesResolved = true
	s.Resolving = false
	s.State = StateLinked
	return true
}

// AppendTo copies the non-global functions of src into dst. With
// highPrio the copies shadow dst's own functions, otherwise dst's own
// functions shadow them. Local variable names are copied as well.
func (e *Engine) AppendTo(src, dst *Script, highPrio bool) {
	list := append([]FuncID(nil), src.Funcs...)
	n := len(list)
	for k := 0; k < n; k++ {
		i := k
		if !highPrio {
			i = n - 1 - k
		}
		f := e.funcs[list[i]]
		if f == nil || f.Owner != src.ID || f.Access == ast.AccessGlobal {
			continue
		}
		e.addFunc(copyFunction(f, dst.ID), highPrio)
	}
	if len(src.LocalNamed) == 0 {
		return
	}
	if dst.Def == ast.NoID {
		e.warnf(src, 0, "could not append local variables to global script!")
		return
	}
	for _, name := range src.LocalNamed {
		dst.addLocal(name)
	}
}

// ---------------------------------------------------------------------------
// Parse phase
// ---------------------------------------------------------------------------

// parse compiles every function of every linked script in registration
// order.
func (e *Engine) parse() {
	for _, s := range e.scripts[1:] {
		if s.State != StateLinked {
			continue
		}
		for _, id := range append([]FuncID(nil), s.Funcs...) {
			f := e.funcs[id]
			if f == nil || !f.IsScript() {
				continue
			}
			if f.Owner != s.ID && !(f.Owner == EngineScope && f.OrgScript == s.ID) {
				continue
			}
			e.parseFn(s, f)
		}
		e.counters.Lines += s.lines()
		s.State = StateParsed
	}
}

func (e *Engine) parseFn(s *Script, f *Function) {
	f.OwnerOverloaded = e.GetOverloadedFunc(f)
	if ov := e.Func(f.OwnerOverloaded); ov != nil && ov.Owner == f.Owner {
		ov.OverloadedBy = f.ID
	}
	f.NextSNFunc = 0

	code, err := e.compile(e, f)
	f.Code = code
	if err == nil {
		return
	}
	owner := e.scripts[f.Owner]
	if owner.Def == ast.NoID && len(owner.Appends) > 0 {
		// pure #appendto scripts only fail in their targets
		return
	}
	e.report(SeverityError, s, f, f.Pos(), err.Error())
	if f.OrgScript != s.ID {
		if org := e.Script(f.OrgScript); org != nil {
			e.log.Debugf("(as #appendto/#include to %s, from %s)", s.Name, org.Name)
		}
	}
}

// AfterLink builds the NextSNFunc rings: every function that heads an
// overload chain is linked with the winning same-name function of each
// later scope.
func (e *Engine) AfterLink() {
	for i, s := range e.scripts {
		if s.ID != EngineScope && s.State != StateParsed {
			continue
		}
		for _, id := range s.Funcs {
			f := e.funcs[id]
			if f == nil || f.Owner != s.ID || f.NextSNFunc != 0 || f.OverloadedBy != 0 {
				continue
			}
			f.NextSNFunc = f.ID
			for _, later := range e.scripts[i+1:] {
				if later.State != StateParsed {
					continue
				}
				other := e.topOverload(e.GetFunc(later.ID, f.Name))
				if other == 0 || other == f.ID {
					continue
				}
				e.funcs[other].NextSNFunc = f.NextSNFunc
				f.NextSNFunc = other
			}
		}
	}
}
