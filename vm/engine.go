package vm

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/aul/pkg/ast"
	"github.com/chazu/aul/pkg/bytecode"
)

// Execution limits.
const (
	DefaultMaxCallDepth  = 512
	DefaultMaxValueStack = 1024
)

// Config holds engine limits. Zero fields take the defaults.
type Config struct {
	MaxCallDepth  int
	MaxValueStack int
	StepBudget    int64 // 0 = unlimited
	Trace         bool  // log every call and return at debug level
}

func (c Config) withDefaults() Config {
	if c.MaxCallDepth <= 0 {
		c.MaxCallDepth = DefaultMaxCallDepth
	}
	if c.MaxValueStack <= 0 {
		c.MaxValueStack = DefaultMaxValueStack
	}
	return c
}

// Counters accumulate during one link and are reset by it.
type Counters struct {
	Warnings  int
	Errors    int
	NonStrict int
	Lines     int
}

// Severity of a diagnostic.
type Severity uint8

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "ERROR"
	}
	return "WARNING"
}

// Diagnostic is one warning or error recorded while preparsing, linking
// or compiling.
type Diagnostic struct {
	Severity Severity
	Script   string
	Func     string
	Pos      int32
	Msg      string
}

func (d Diagnostic) String() string {
	switch {
	case d.Func != "":
		return fmt.Sprintf("%s: %s (in %s, %s:%d)", d.Severity, d.Msg, d.Func, d.Script, d.Pos)
	case d.Script != "":
		return fmt.Sprintf("%s: %s (%s:%d)", d.Severity, d.Msg, d.Script, d.Pos)
	}
	return fmt.Sprintf("%s: %s", d.Severity, d.Msg)
}

// ---------------------------------------------------------------------------
// Engine
// ---------------------------------------------------------------------------

// Engine owns every script, function, interned string, global variable
// and global constant. It is not safe for concurrent use.
type Engine struct {
	cfg Config
	log commonlog.Logger

	scripts []*Script // index = ScriptID, [0] is the engine scope
	byName  map[string]ScriptID

	funcs   []*Function // index = FuncID, [0] unused
	funcMap *FuncMap
	strings *StringTable

	globalNames  []string
	globalValues []*Value
	constNames   []string
	constValues  []Value

	counters    Counters
	lastSummary Summary
	diags       []Diagnostic

	compile CompileFunc
}

// NewEngine creates an engine with an empty engine scope.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		cfg:     cfg.withDefaults(),
		log:     commonlog.GetLogger("aul.vm"),
		byName:  make(map[string]ScriptID),
		funcs:   make([]*Function, 1),
		funcMap: NewFuncMap(),
		strings: NewStringTable(),
	}
	e.scripts = []*Script{{
		ID:               EngineScope,
		Name:             "engine",
		Strict:           ast.MaxStrict,
		State:            StateParsed,
		IncludesResolved: true,
	}}
	return e
}

// Config returns the effective limits.
func (e *Engine) Config() Config {
	return e.cfg
}

// ---------------------------------------------------------------------------
// Script registry
// ---------------------------------------------------------------------------

// AddScript registers a script in state None. Scripts are linked in
// registration order.
func (e *Engine) AddScript(name string, def ast.ID, root *ast.Script, source []byte) (*Script, error) {
	if name == "" {
		return nil, fmt.Errorf("vm: script name is empty")
	}
	if _, dup := e.byName[name]; dup {
		return nil, fmt.Errorf("vm: duplicate script %q", name)
	}
	if root == nil {
		return nil, fmt.Errorf("vm: script %q has no tree", name)
	}
	if def == ast.AllIDs {
		return nil, fmt.Errorf("vm: script %q: %s is not a definition id", name, def)
	}
	if def != ast.NoID {
		if other := e.ScriptByDef(def); other != nil {
			return nil, fmt.Errorf("vm: script %q: definition %s already registered by %q", name, def, other.Name)
		}
	}
	s := &Script{
		ID:     ScriptID(len(e.scripts)),
		Name:   name,
		Def:    def,
		Root:   root,
		Source: source,
	}
	e.scripts = append(e.scripts, s)
	e.byName[name] = s.ID
	return s, nil
}

// EngineScript returns the engine scope.
func (e *Engine) EngineScript() *Script {
	return e.scripts[EngineScope]
}

// Script returns the script with the given handle, or nil.
func (e *Engine) Script(id ScriptID) *Script {
	if id < 0 || int(id) >= len(e.scripts) {
		return nil
	}
	return e.scripts[id]
}

// ScriptByName returns a registered script, or nil.
func (e *Engine) ScriptByName(name string) *Script {
	id, ok := e.byName[name]
	if !ok {
		return nil
	}
	return e.scripts[id]
}

// ScriptByDef returns the definition script for def. Scripts in the Error
// state are not definitions anyone can include or append to.
func (e *Engine) ScriptByDef(def ast.ID) *Script {
	if def == ast.NoID {
		return nil
	}
	for _, s := range e.scripts[1:] {
		if s.Def == def && s.State != StateError {
			return s
		}
	}
	return nil
}

// Scripts returns the registered scripts in registration order.
func (e *Engine) Scripts() []*Script {
	return append([]*Script(nil), e.scripts[1:]...)
}

// ---------------------------------------------------------------------------
// Function arena
// ---------------------------------------------------------------------------

// Func returns the function with the given handle, or nil.
func (e *Engine) Func(id FuncID) *Function {
	if id <= 0 || int(id) >= len(e.funcs) {
		return nil
	}
	return e.funcs[id]
}

// Funcs returns every live function in handle order.
func (e *Engine) Funcs() []*Function {
	var out []*Function
	for _, f := range e.funcs[1:] {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}

// FuncMap exposes the name lookup table.
func (e *Engine) FuncMap() *FuncMap {
	return e.funcMap
}

// Strings exposes the string table.
func (e *Engine) Strings() *StringTable {
	return e.strings
}

// allocFunc places f in the lowest free slot.
func (e *Engine) allocFunc(f *Function) FuncID {
	for i := 1; i < len(e.funcs); i++ {
		if e.funcs[i] == nil {
			f.ID = FuncID(i)
			e.funcs[i] = f
			return f.ID
		}
	}
	f.ID = FuncID(len(e.funcs))
	e.funcs = append(e.funcs, f)
	return f.ID
}

// addFunc allocates f and enters it into its owner's list and the map.
// atEnd gives it the highest priority.
func (e *Engine) addFunc(f *Function, atEnd bool) FuncID {
	id := e.allocFunc(f)
	owner := e.scripts[f.Owner]
	if atEnd {
		owner.Funcs = append(owner.Funcs, id)
	} else {
		owner.Funcs = append([]FuncID{id}, owner.Funcs...)
	}
	e.funcMap.Add(id, f.Name, f.Owner, atEnd)
	return id
}

// deleteFunc removes a function from every list it appears in.
func (e *Engine) deleteFunc(id FuncID) {
	f := e.Func(id)
	if f == nil {
		return
	}
	e.scripts[f.Owner].removeFunc(id)
	if f.Owner != f.OrgScript {
		if org := e.Script(f.OrgScript); org != nil {
			org.removeFunc(id)
		}
	}
	e.funcMap.Remove(id)
	e.funcs[id] = nil
}

// clearScriptFuncs deletes every function a script declared, including
// copies of them and its global functions.
func (e *Engine) clearScriptFuncs(s *Script) {
	for id := len(e.funcs) - 1; id > 0; id-- {
		f := e.funcs[id]
		if f != nil && f.OrgScript == s.ID && f.IsScript() {
			e.deleteFunc(FuncID(id))
		}
	}
	s.Funcs = nil
}

// RegisterHost adds a Go function to the engine scope. Later
// registrations of the same name shadow earlier ones.
func (e *Engine) RegisterHost(name string, parTypes []ast.ValueType, fn HostFunc) (FuncID, error) {
	if name == "" || fn == nil {
		return 0, fmt.Errorf("vm: host function needs a name and an implementation")
	}
	if len(parTypes) > bytecode.MaxPar {
		return 0, fmt.Errorf("vm: host function %q: too many parameters (max %d)", name, bytecode.MaxPar)
	}
	f := &Function{
		Name:      name,
		Owner:     EngineScope,
		OrgScript: EngineScope,
		Access:    ast.AccessPublic,
		ParTypes:  append([]ast.ValueType(nil), parTypes...),
		Host:      fn,
	}
	return e.addFunc(f, true), nil
}

// FullName formats a function for diagnostics: "ID::name" for
// definition scripts, "global name" for the engine scope and "game name"
// for scripts without a definition.
func (e *Engine) FullName(f *Function) string {
	if f == nil {
		return ""
	}
	owner := e.Script(f.Owner)
	switch {
	case owner == nil:
		return "(unknown) " + f.Name
	case owner.ID == EngineScope:
		return "global " + f.Name
	case owner.Def != ast.NoID:
		return owner.Def.String() + "::" + f.Name
	}
	return "game " + f.Name
}

// ---------------------------------------------------------------------------
// Global variables and constants
// ---------------------------------------------------------------------------

// GlobalIndex returns the slot of a global variable, or -1.
func (e *Engine) GlobalIndex(name string) int {
	for i, n := range e.globalNames {
		if n == name {
			return i
		}
	}
	return -1
}

// AddGlobal declares a global variable and returns its slot. Declaring an
// existing name returns the existing slot.
func (e *Engine) AddGlobal(name string) int {
	if i := e.GlobalIndex(name); i >= 0 {
		return i
	}
	e.globalNames = append(e.globalNames, name)
	e.globalValues = append(e.globalValues, &Value{})
	return len(e.globalNames) - 1
}

// Global returns the storage of global slot i, or nil.
func (e *Engine) Global(i int) *Value {
	if i < 0 || i >= len(e.globalValues) {
		return nil
	}
	return e.globalValues[i]
}

// GlobalNames returns the declared globals in slot order.
func (e *Engine) GlobalNames() []string {
	return append([]string(nil), e.globalNames...)
}

// RegisterGlobalConstant defines or overwrites a global constant.
func (e *Engine) RegisterGlobalConstant(name string, v Value) {
	for i, n := range e.constNames {
		if n == name {
			e.constValues[i] = v
			return
		}
	}
	e.constNames = append(e.constNames, name)
	e.constValues = append(e.constValues, v)
}

// GetGlobalConstant looks up a global constant.
func (e *Engine) GetGlobalConstant(name string) (Value, bool) {
	for i, n := range e.constNames {
		if n == name {
			return e.constValues[i], true
		}
	}
	return Value{}, false
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

// Counters returns the counters of the link in progress.
func (e *Engine) Counters() Counters {
	return e.counters
}

// Diagnostics returns every diagnostic recorded since the last
// ClearDiagnostics.
func (e *Engine) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), e.diags...)
}

// ClearDiagnostics drops the recorded diagnostics.
func (e *Engine) ClearDiagnostics() {
	e.diags = nil
}

func (e *Engine) report(sev Severity, s *Script, f *Function, pos int32, msg string) Diagnostic {
	d := Diagnostic{Severity: sev, Pos: pos, Msg: msg}
	if s != nil {
		d.Script = s.Name
	}
	if f != nil {
		d.Func = e.FullName(f)
	}
	e.diags = append(e.diags, d)
	if sev == SeverityError {
		e.counters.Errors++
		e.log.Error(msg, "script", d.Script, "func", d.Func, "pos", pos)
	} else {
		e.counters.Warnings++
		e.log.Warning(msg, "script", d.Script, "func", d.Func, "pos", pos)
	}
	return d
}

func (e *Engine) warnf(s *Script, pos int32, format string, args ...any) {
	e.report(SeverityWarning, s, nil, pos, fmt.Sprintf(format, args...))
}

func (e *Engine) errorf(s *Script, pos int32, format string, args ...any) {
	e.report(SeverityError, s, nil, pos, fmt.Sprintf(format, args...))
}

// ---------------------------------------------------------------------------
// Listings
// ---------------------------------------------------------------------------

// FuncName implements bytecode.Symbols.
func (e *Engine) FuncName(handle int64) string {
	return e.FullName(e.Func(FuncID(handle)))
}

// StringValue implements bytecode.Symbols.
func (e *Engine) StringValue(handle int64) string {
	s, _ := e.strings.Value(StringID(handle))
	return s
}

// OperatorToken implements bytecode.Symbols.
func (e *Engine) OperatorToken(id int64) string {
	op := ast.OpID(id)
	if !op.Valid() {
		return ""
	}
	return op.String()
}

// Listing returns the disassembly annotations for f.
func (e *Engine) Listing(f *Function) bytecode.Listing {
	return bytecode.Listing{
		Name:     e.FullName(f),
		ParNames: f.ParNames,
		VarNames: f.VarNames,
		Symbols:  e,
	}
}

// Disassemble lists the code of f.
func (e *Engine) Disassemble(f *Function) string {
	return f.Code.DisassembleWith(e.Listing(f))
}

// Arity is the bytecode.ArityFunc of this engine.
func (e *Engine) Arity(handle int64) int {
	if f := e.Func(FuncID(handle)); f != nil {
		return f.ParCount()
	}
	return bytecode.MaxPar
}
