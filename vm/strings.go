package vm

// StringID is a handle into the engine's string table. 0 is no string.
type StringID int32

type stringEntry struct {
	value string
	refs  int
	held  bool
}

// StringTable interns strings used as bytecode operands. Entries are
// reference counted; a held entry is pinned until ClearHeld. Freed slots
// are reused lowest first, so interning the same strings in the same
// order after a ClearHeld reproduces the same handles.
type StringTable struct {
	entries []stringEntry // index 0 unused
	index   map[string]StringID
}

// NewStringTable creates an empty table.
func NewStringTable() *StringTable {
	return &StringTable{
		entries: make([]stringEntry, 1),
		index:   make(map[string]StringID),
	}
}

// Intern returns the handle for s and takes a reference to it.
func (t *StringTable) Intern(s string) StringID {
	if id, ok := t.index[s]; ok {
		t.entries[id].refs++
		return id
	}
	id := StringID(0)
	for i := 1; i < len(t.entries); i++ {
		if t.entries[i].refs == 0 {
			id = StringID(i)
			break
		}
	}
	if id == 0 {
		id = StringID(len(t.entries))
		t.entries = append(t.entries, stringEntry{})
	}
	t.entries[id] = stringEntry{value: s, refs: 1}
	t.index[s] = id
	return id
}

// Hold pins id until the next ClearHeld.
func (t *StringTable) Hold(id StringID) {
	if t.valid(id) {
		t.entries[id].held = true
	}
}

// Release drops one reference. An entry without references is freed
// unless it is held.
func (t *StringTable) Release(id StringID) {
	if !t.valid(id) {
		return
	}
	e := &t.entries[id]
	e.refs--
	if e.refs <= 0 && !e.held {
		t.free(id)
	}
}

// ClearHeld unpins every held entry, dropping the reference the holder
// took, and frees what is left unreferenced.
func (t *StringTable) ClearHeld() {
	for i := 1; i < len(t.entries); i++ {
		e := &t.entries[i]
		if !e.held {
			continue
		}
		e.held = false
		e.refs--
		if e.refs <= 0 {
			t.free(StringID(i))
		}
	}
	// trailing free slots are dropped so handles stay dense
	n := len(t.entries)
	for n > 1 && t.entries[n-1].refs == 0 {
		n--
	}
	t.entries = t.entries[:n]
}

func (t *StringTable) free(id StringID) {
	delete(t.index, t.entries[id].value)
	t.entries[id] = stringEntry{}
}

func (t *StringTable) valid(id StringID) bool {
	return id > 0 && int(id) < len(t.entries) && t.entries[id].refs > 0
}

// Value returns the string behind id.
func (t *StringTable) Value(id StringID) (string, bool) {
	if !t.valid(id) {
		return "", false
	}
	return t.entries[id].value, true
}

// Lookup returns the handle of s without taking a reference.
func (t *StringTable) Lookup(s string) (StringID, bool) {
	id, ok := t.index[s]
	return id, ok
}

// Refs returns the reference count of id.
func (t *StringTable) Refs(id StringID) int {
	if !t.valid(id) {
		return 0
	}
	return t.entries[id].refs
}

// IsHeld reports whether id is pinned.
func (t *StringTable) IsHeld(id StringID) bool {
	return t.valid(id) && t.entries[id].held
}

// Len returns the number of live entries.
func (t *StringTable) Len() int {
	return len(t.index)
}

// Strings returns the live entries in handle order.
func (t *StringTable) Strings() []string {
	out := make([]string, 0, len(t.index))
	for i := 1; i < len(t.entries); i++ {
		if t.entries[i].refs > 0 {
			out = append(out, t.entries[i].value)
		}
	}
	return out
}
