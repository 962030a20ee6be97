package vm

// ---------------------------------------------------------------------------
// FuncMap: name-hashed lookup of every function in the engine
// ---------------------------------------------------------------------------

// funcMapCapacityInc is the initial bucket count and the growth step.
const funcMapCapacityInc = 1024

// mapEntry is the per-function link of the intrusive bucket lists.
type mapEntry struct {
	name  string
	owner ScriptID
	next  FuncID
	used  bool
}

// FuncMap is a chained hash map from function name to functions. Each
// bucket is a singly linked list; a function added at the front shadows
// older same-owner functions of the same name for GetFunc.
type FuncMap struct {
	buckets []FuncID
	entries []mapEntry // indexed by FuncID
	count   int
}

// NewFuncMap creates an empty map.
func NewFuncMap() *FuncMap {
	return &FuncMap{buckets: make([]FuncID, funcMapCapacityInc)}
}

// hashName is 32-bit FNV-1a.
func hashName(name string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(name); i++ {
		h = (h ^ uint32(name[i])) * 16777619
	}
	return h
}

func (m *FuncMap) bucket(name string) int {
	return int(hashName(name) % uint32(len(m.buckets)))
}

func (m *FuncMap) entry(id FuncID) *mapEntry {
	if id <= 0 || int(id) >= len(m.entries) {
		return nil
	}
	return &m.entries[id]
}

// Len returns the number of functions in the map.
func (m *FuncMap) Len() int {
	return m.count
}

// Capacity returns the current bucket count.
func (m *FuncMap) Capacity() int {
	return len(m.buckets)
}

// Add inserts id under name for owner, at the head of its bucket when
// atFront is set and at the tail otherwise.
func (m *FuncMap) Add(id FuncID, name string, owner ScriptID, atFront bool) {
	for int(id) >= len(m.entries) {
		m.entries = append(m.entries, mapEntry{})
	}
	m.count++
	if m.count > len(m.buckets) {
		m.grow()
	}
	m.entries[id] = mapEntry{name: name, owner: owner, used: true}

	b := m.bucket(name)
	if atFront {
		m.entries[id].next = m.buckets[b]
		m.buckets[b] = id
		return
	}
	if m.buckets[b] == 0 {
		m.buckets[b] = id
		return
	}
	last := m.buckets[b]
	for m.entries[last].next != 0 {
		last = m.entries[last].next
	}
	m.entries[last].next = id
}

// grow rehashes into funcMapCapacityInc more buckets, keeping the relative
// order of every chain.
func (m *FuncMap) grow() {
	old := m.buckets
	m.buckets = make([]FuncID, len(old)+funcMapCapacityInc)
	tails := make([]FuncID, len(m.buckets))
	for _, head := range old {
		for id := head; id != 0; {
			next := m.entries[id].next
			m.entries[id].next = 0
			b := m.bucket(m.entries[id].name)
			if tails[b] == 0 {
				m.buckets[b] = id
			} else {
				m.entries[tails[b]].next = id
			}
			tails[b] = id
			id = next
		}
	}
}

// Remove unlinks id. Removing an absent id is a no-op.
func (m *FuncMap) Remove(id FuncID) {
	e := m.entry(id)
	if e == nil || !e.used {
		return
	}
	b := m.bucket(e.name)
	if m.buckets[b] == id {
		m.buckets[b] = e.next
	} else {
		for prev := m.buckets[b]; prev != 0; prev = m.entries[prev].next {
			if m.entries[prev].next == id {
				m.entries[prev].next = e.next
				break
			}
		}
	}
	*e = mapEntry{}
	m.count--
}

// GetFirstFunc returns the first function called name, regardless of
// owner, or 0.
func (m *FuncMap) GetFirstFunc(name string) FuncID {
	if name == "" {
		return 0
	}
	id := m.buckets[m.bucket(name)]
	for id != 0 && m.entries[id].name != name {
		id = m.entries[id].next
	}
	return id
}

// GetNextSNFunc returns the next function in after's chain that has the
// same name, or 0.
func (m *FuncMap) GetNextSNFunc(after FuncID) FuncID {
	e := m.entry(after)
	if e == nil || !e.used {
		return 0
	}
	id := e.next
	for id != 0 && m.entries[id].name != e.name {
		id = m.entries[id].next
	}
	return id
}

// GetFunc returns the first function called name owned by owner. With a
// non-zero after, the search starts behind that function.
func (m *FuncMap) GetFunc(name string, owner ScriptID, after FuncID) FuncID {
	if name == "" {
		return 0
	}
	id := m.buckets[m.bucket(name)]
	if after != 0 {
		for id != 0 && id != after {
			id = m.entries[id].next
		}
		if id != 0 {
			id = m.entries[id].next
		}
	}
	for id != 0 && (m.entries[id].owner != owner || m.entries[id].name != name) {
		id = m.entries[id].next
	}
	return id
}
