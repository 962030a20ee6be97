package vm

import (
	"fmt"

	"github.com/chazu/aul/pkg/ast"
)

// Object is a game object as seen by scripts: it belongs to a definition
// and carries the object-local variables that definition declares.
type Object interface {
	Def() ast.ID
	// Local returns the storage of local variable slot, or nil when the
	// slot does not exist.
	Local(slot int) *Value
}

// Instance is a minimal Object with a name and a local variable list.
type Instance struct {
	name   string
	def    ast.ID
	locals []*Value
}

// NewInstance creates an object of the definition def with room for the
// locals its script declares.
func (e *Engine) NewInstance(name string, def ast.ID) (*Instance, error) {
	s := e.ScriptByDef(def)
	if s == nil {
		return nil, fmt.Errorf("%w: no definition %s", ErrUnknownScript, def)
	}
	o := &Instance{name: name, def: def, locals: make([]*Value, len(s.LocalNamed))}
	for i := range o.locals {
		o.locals[i] = &Value{}
	}
	return o, nil
}

// Def implements Object.
func (o *Instance) Def() ast.ID { return o.def }

// Name is used when the object is printed.
func (o *Instance) Name() string {
	if o.name == "" {
		return "object " + o.def.String()
	}
	return o.name
}

// Local implements Object. Slots past the end are created on demand,
// since relinking can add locals to a definition.
func (o *Instance) Local(slot int) *Value {
	if slot < 0 {
		return nil
	}
	for slot >= len(o.locals) {
		o.locals = append(o.locals, &Value{})
	}
	return o.locals[slot]
}

// LocalByName returns the storage of a named local of o's definition, or
// nil.
func (e *Engine) LocalByName(o Object, name string) *Value {
	s := e.ScriptByDef(o.Def())
	if s == nil {
		return nil
	}
	i := s.LocalIndex(name)
	if i < 0 {
		return nil
	}
	return o.Local(i)
}
