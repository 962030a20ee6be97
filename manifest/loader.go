package manifest

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/chazu/aul/pkg/ast"
	"github.com/chazu/aul/vm"
)

// Loaded records where a registered script came from.
type Loaded struct {
	Script   *vm.Script
	Entry    ScriptEntry
	Manifest *Manifest
}

// Apply registers the dependencies' and then m's constants, global
// variables and scripts with e. It does not link.
func (m *Manifest) Apply(e *vm.Engine) ([]Loaded, error) {
	deps, err := m.Resolve()
	if err != nil {
		return nil, err
	}
	var loaded []Loaded
	for _, d := range deps {
		l, err := d.Manifest.register(e)
		if err != nil {
			return nil, fmt.Errorf("dependency %s: %w", d.Name, err)
		}
		loaded = append(loaded, l...)
	}
	own, err := m.register(e)
	if err != nil {
		return nil, err
	}
	return append(loaded, own...), nil
}

func (m *Manifest) register(e *vm.Engine) ([]Loaded, error) {
	names := make([]string, 0, len(m.Constants))
	for name := range m.Constants {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v, err := constantValue(m.Constants[name])
		if err != nil {
			return nil, fmt.Errorf("constant %s: %w", name, err)
		}
		e.RegisterGlobalConstant(name, v)
	}
	for _, name := range m.Globals {
		e.AddGlobal(name)
	}

	var loaded []Loaded
	for _, entry := range m.Scripts {
		s, err := m.addScript(e, entry)
		if err != nil {
			return nil, err
		}
		loaded = append(loaded, Loaded{Script: s, Entry: entry, Manifest: m})
	}
	return loaded, nil
}

func (m *Manifest) addScript(e *vm.Engine, entry ScriptEntry) (*vm.Script, error) {
	def := ast.NoID
	if entry.Def != "" {
		id, err := ast.ParseID(entry.Def)
		if err != nil {
			return nil, fmt.Errorf("script %s: definition %q: %w", entry.Name, entry.Def, err)
		}
		def = id
	}
	data, err := os.ReadFile(m.Path(entry.AST))
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", entry.Name, err)
	}
	root, err := ast.UnmarshalScript(data)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", entry.Name, err)
	}
	var source []byte
	if entry.Source != "" {
		if source, err = os.ReadFile(m.Path(entry.Source)); err != nil {
			return nil, fmt.Errorf("script %s: %w", entry.Name, err)
		}
	}
	s, err := e.AddScript(entry.Name, def, root, source)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", entry.Name, err)
	}
	return s, nil
}

// constantValue converts a TOML value. Integers must fit in 32 bits.
func constantValue(x any) (vm.Value, error) {
	switch v := x.(type) {
	case int64:
		if v < math.MinInt32 || v > math.MaxInt32 {
			return vm.Nil, fmt.Errorf("%d does not fit in an int", v)
		}
		return vm.Int(int32(v)), nil
	case bool:
		return vm.Bool(v), nil
	case string:
		return vm.String(v), nil
	}
	return vm.Nil, fmt.Errorf("unsupported value %v (%T)", x, x)
}
