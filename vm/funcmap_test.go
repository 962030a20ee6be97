package vm

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestFuncMapPriority(t *testing.T) {
	m := NewFuncMap()
	m.Add(1, "Initialize", 1, false)
	m.Add(2, "Initialize", 2, false)
	m.Add(3, "Initialize", 1, true)
	m.Add(4, "Initialize", 1, false)

	if got := m.GetFunc("Initialize", 1, 0); got != 3 {
		t.Errorf("GetFunc() = %d, want the front entry 3", got)
	}
	if got := m.GetFunc("Initialize", 1, 3); got != 1 {
		t.Errorf("GetFunc(after 3) = %d, want 1", got)
	}
	if got := m.GetFunc("Initialize", 1, 1); got != 4 {
		t.Errorf("GetFunc(after 1) = %d, want 4", got)
	}
	if got := m.GetFunc("Initialize", 2, 0); got != 2 {
		t.Errorf("GetFunc(owner 2) = %d, want 2", got)
	}
	if got := m.GetFirstFunc("Initialize"); got != 3 {
		t.Errorf("GetFirstFunc() = %d, want 3", got)
	}
	if got := m.GetFunc("Missing", 1, 0); got != 0 {
		t.Errorf("GetFunc(Missing) = %d, want 0", got)
	}
}

func TestFuncMapSameNameChain(t *testing.T) {
	m := NewFuncMap()
	m.Add(1, "A", 1, false)
	m.Add(2, "B", 1, false)
	m.Add(3, "A", 2, false)

	if got := m.GetNextSNFunc(1); got != 3 {
		t.Errorf("GetNextSNFunc(1) = %d, want 3", got)
	}
	if got := m.GetNextSNFunc(3); got != 0 {
		t.Errorf("GetNextSNFunc(3) = %d, want 0", got)
	}

	m.Remove(1)
	if got := m.GetFirstFunc("A"); got != 3 {
		t.Errorf("after Remove(1): GetFirstFunc(A) = %d, want 3", got)
	}
	m.Remove(1)
	if m.Len() != 2 {
		t.Errorf("Len() = %d after removing twice, want 2", m.Len())
	}
	if got := m.GetNextSNFunc(1); got != 0 {
		t.Errorf("GetNextSNFunc of a removed id = %d, want 0", got)
	}
}

func TestFuncMapGrowsAndKeepsOrder(t *testing.T) {
	m := NewFuncMap()
	n := funcMapCapacityInc*2 + 10
	for i := 1; i <= n; i++ {
		m.Add(FuncID(i), fmt.Sprintf("f%d", i%50), ScriptID(i%3), false)
	}
	if m.Capacity() <= funcMapCapacityInc {
		t.Fatalf("Capacity() = %d, map did not grow", m.Capacity())
	}
	if m.Len() != n {
		t.Fatalf("Len() = %d, want %d", m.Len(), n)
	}
	for name := 0; name < 50; name++ {
		for owner := 0; owner < 3; owner++ {
			prev := FuncID(0)
			for id := m.GetFunc(fmt.Sprintf("f%d", name), ScriptID(owner), 0); id != 0; id = m.GetFunc(fmt.Sprintf("f%d", name), ScriptID(owner), id) {
				if id <= prev {
					t.Fatalf("f%d/%d: %d found after %d, tail insertion order lost", name, owner, id, prev)
				}
				prev = id
			}
		}
	}
}

func TestFuncMapAddRemoveProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("every added and not removed id is found", prop.ForAll(
		func(names []uint8, removeEvery int) bool {
			m := NewFuncMap()
			for i, n := range names {
				m.Add(FuncID(i+1), fmt.Sprintf("n%d", n%8), 1, n%2 == 0)
			}
			removed := make(map[FuncID]bool)
			for i := range names {
				if i%removeEvery == 0 {
					m.Remove(FuncID(i + 1))
					removed[FuncID(i+1)] = true
				}
			}
			if m.Len() != len(names)-len(removed) {
				return false
			}
			for i, n := range names {
				id := FuncID(i + 1)
				found := false
				for f := m.GetFunc(fmt.Sprintf("n%d", n%8), 1, 0); f != 0; f = m.GetFunc(fmt.Sprintf("n%d", n%8), 1, f) {
					if f == id {
						found = true
					}
				}
				if found == removed[id] {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(40, gen.UInt8()),
		gen.IntRange(2, 5),
	))

	properties.TestingRun(t)
}
