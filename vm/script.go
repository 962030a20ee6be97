package vm

import (
	"fmt"

	"github.com/chazu/aul/pkg/ast"
)

// ScriptID is a handle into the engine's script registry.
type ScriptID int32

// EngineScope is the engine's own scope. Global and host functions are
// owned by it.
const EngineScope ScriptID = 0

// State is the link state of a script.
type State uint8

const (
	StateNone State = iota
	StatePreparsed
	StateLinked
	StateParsed
	StateError // absorbing until the script is reloaded
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StatePreparsed:
		return "preparsed"
	case StateLinked:
		return "linked"
	case StateParsed:
		return "parsed"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Dependency is one #include or #appendto entry.
type Dependency struct {
	ID     ast.ID
	NoWarn bool
}

// Script is a unit of source registered with the engine. A script with a
// Def is a definition script; objects of that definition run its code.
type Script struct {
	ID     ScriptID
	Name   string
	Def    ast.ID
	Source []byte // optional, only used for line counts
	Root   *ast.Script

	// Funcs is the priority list: later entries shadow earlier ones.
	// Global functions declared here appear as entries owned by
	// EngineScope.
	Funcs []FuncID

	Includes   []Dependency
	Appends    []Dependency
	LocalNamed []string
	Strict     ast.Strictness

	State            State
	Resolving        bool
	IncludesResolved bool
}

// IsReady reports whether the script's functions can be called.
func (s *Script) IsReady() bool {
	return s.State == StateParsed
}

// LocalIndex returns the slot of an object-local variable, or -1.
func (s *Script) LocalIndex(name string) int {
	for i, n := range s.LocalNamed {
		if n == name {
			return i
		}
	}
	return -1
}

func (s *Script) addLocal(name string) {
	if s.LocalIndex(name) < 0 {
		s.LocalNamed = append(s.LocalNamed, name)
	}
}

func (s *Script) removeFunc(id FuncID) {
	for i, f := range s.Funcs {
		if f == id {
			s.Funcs = append(s.Funcs[:i], s.Funcs[i+1:]...)
			return
		}
	}
}

func (s *Script) indexOf(id FuncID) int {
	for i, f := range s.Funcs {
		if f == id {
			return i
		}
	}
	return -1
}

// lines counts source lines for the link summary.
func (s *Script) lines() int {
	if len(s.Source) == 0 {
		return 0
	}
	n := 1
	for _, b := range s.Source {
		if b == '\n' {
			n++
		}
	}
	return n
}
