package vm

import (
	"github.com/chazu/aul/pkg/ast"
	"github.com/chazu/aul/pkg/bytecode"
)

// FuncID is a handle into the engine's function arena. 0 is no function.
type FuncID int32

// HostFunc implements an engine function in Go. args holds exactly
// ParCount values, already converted to the declared parameter types.
type HostFunc func(c *Context, args []Value) (Value, error)

// Function is a script function, a link-time copy of one, or a host
// function registered on the engine.
type Function struct {
	ID        FuncID
	Name      string
	Owner     ScriptID // scope the function is looked up in
	OrgScript ScriptID // script that declared it
	CopyOf    FuncID   // source of an append/include copy

	Access    ast.Access
	Global    bool // declared with the global keyword
	ParTypes  []ast.ValueType
	ParNames  []string
	VarNames  []string
	ReturnRef bool

	Decl *ast.Function
	Code bytecode.Code

	// Link state, rebuilt on every link.
	OverloadedBy    FuncID
	OwnerOverloaded FuncID
	NextSNFunc      FuncID

	Host HostFunc
}

// IsScript reports whether the function has a bytecode body.
func (f *Function) IsScript() bool {
	return f.Host == nil
}

// IsCopy reports whether the function was created by #include or
// #appendto.
func (f *Function) IsCopy() bool {
	return f.CopyOf != 0
}

// ParCount is the number of stack values a FUNC instruction passes.
// Script functions always take MaxPar.
func (f *Function) ParCount() int {
	if f.IsScript() {
		return bytecode.MaxPar
	}
	return len(f.ParTypes)
}

// ParType returns the declared type of parameter i.
func (f *Function) ParType(i int) ast.ValueType {
	if i < 0 || i >= len(f.ParTypes) {
		return ast.TypeAny
	}
	return f.ParTypes[i]
}

// VarIndex returns the slot of a function variable, or -1.
func (f *Function) VarIndex(name string) int {
	for i, n := range f.VarNames {
		if n == name {
			return i
		}
	}
	return -1
}

// ParIndex returns the index of a named parameter, or -1.
func (f *Function) ParIndex(name string) int {
	for i, n := range f.ParNames {
		if n == name {
			return i
		}
	}
	return -1
}

// Pos returns the declaration position, or 0 for host functions.
func (f *Function) Pos() int32 {
	if f.Decl == nil {
		return 0
	}
	return f.Decl.PosVal
}

// copyFunction returns the skeleton of an append/include copy of f owned
// by owner. Link state and code are left empty.
func copyFunction(f *Function, owner ScriptID) *Function {
	return &Function{
		Name:      f.Name,
		Owner:     owner,
		OrgScript: f.OrgScript,
		CopyOf:    f.ID,
		Access:    f.Access,
		Global:    f.Global,
		ParTypes:  append([]ast.ValueType(nil), f.ParTypes...),
		ParNames:  append([]string(nil), f.ParNames...),
		VarNames:  append([]string(nil), f.VarNames...),
		ReturnRef: f.ReturnRef,
		Decl:      f.Decl,
	}
}
