package vm

import (
	"strconv"
	"strings"

	"github.com/chazu/aul/pkg/ast"
)

// ---------------------------------------------------------------------------
// Value: the dynamically typed script value
// ---------------------------------------------------------------------------

// Value is a script value. The zero Value is nil. Arrays and maps are
// shared by reference; a TypeRef value points at a variable.
type Value struct {
	kind ast.ValueType
	i    int32
	s    string
	arr  *Array
	m    *Map
	obj  Object
	ref  *Value
}

// Nil is the nil value.
var Nil = Value{}

// Int returns an int value.
func Int(n int32) Value { return Value{kind: ast.TypeInt, i: n} }

// Bool returns a bool value.
func Bool(b bool) Value {
	v := Value{kind: ast.TypeBool}
	if b {
		v.i = 1
	}
	return v
}

// IDValue returns a definition id value.
func IDValue(id ast.ID) Value { return Value{kind: ast.TypeID, i: int32(id)} }

// String returns a string value.
func String(s string) Value { return Value{kind: ast.TypeString, s: s} }

// ArrayValue wraps an array. A nil array yields nil.
func ArrayValue(a *Array) Value {
	if a == nil {
		return Nil
	}
	return Value{kind: ast.TypeArray, arr: a}
}

// ArrayOf returns a new array value holding vals.
func ArrayOf(vals ...Value) Value {
	return ArrayValue(NewArray(vals...))
}

// MapValue wraps a map. A nil map yields nil.
func MapValue(m *Map) Value {
	if m == nil {
		return Nil
	}
	return Value{kind: ast.TypeMap, m: m}
}

// ObjectValue wraps an object. A nil object yields nil.
func ObjectValue(o Object) Value {
	if o == nil {
		return Nil
	}
	return Value{kind: ast.TypeObject, obj: o}
}

func refTo(p *Value) Value { return Value{kind: ast.TypeRef, ref: p} }

// Type returns the value's type; nil is TypeAny.
func (v Value) Type() ast.ValueType { return v.kind }

// IsNil reports whether v is nil.
func (v Value) IsNil() bool { return v.kind == ast.TypeAny }

// IsRef reports whether v is a reference.
func (v Value) IsRef() bool { return v.kind == ast.TypeRef }

// Deref follows references to the stored value.
func (v Value) Deref() Value {
	for v.kind == ast.TypeRef {
		v = *v.ref
	}
	return v
}

// target returns the variable a reference points at.
func (v Value) target() *Value {
	p := v.ref
	for p.kind == ast.TypeRef {
		p = p.ref
	}
	return p
}

// AsInt returns the integer payload of int, bool and id values and 0 for
// everything else.
func (v Value) AsInt() int32 {
	v = v.Deref()
	switch v.kind {
	case ast.TypeInt, ast.TypeBool, ast.TypeID:
		return v.i
	}
	return 0
}

// AsBool returns the truth value.
func (v Value) AsBool() bool {
	v = v.Deref()
	switch v.kind {
	case ast.TypeAny:
		return false
	case ast.TypeInt, ast.TypeBool, ast.TypeID:
		return v.i != 0
	}
	return true
}

// AsID returns the id payload.
func (v Value) AsID() ast.ID { return ast.ID(uint32(v.Deref().AsInt())) }

// AsString returns the string payload, or "".
func (v Value) AsString() string { return v.Deref().s }

// AsArray returns the array, or nil.
func (v Value) AsArray() *Array { return v.Deref().arr }

// AsMap returns the map, or nil.
func (v Value) AsMap() *Map { return v.Deref().m }

// AsObject returns the object, or nil.
func (v Value) AsObject() Object { return v.Deref().obj }

// TypeName is the name used in runtime errors.
func (v Value) TypeName() string {
	if v.kind == ast.TypeAny {
		return "nil"
	}
	return v.kind.String()
}

// String renders the value for diagnostics.
func (v Value) String() string {
	switch v.kind {
	case ast.TypeAny:
		return "nil"
	case ast.TypeRef:
		return v.ref.String() + "*"
	case ast.TypeInt:
		return strconv.Itoa(int(v.i))
	case ast.TypeBool:
		if v.i != 0 {
			return "true"
		}
		return "false"
	case ast.TypeID:
		return ast.ID(uint32(v.i)).String()
	case ast.TypeString:
		return strconv.Quote(v.s)
	case ast.TypeObject:
		if n, ok := v.obj.(interface{ Name() string }); ok {
			return n.Name()
		}
		return "object " + v.obj.Def().String()
	case ast.TypeArray:
		parts := make([]string, len(v.arr.elems))
		for i, e := range v.arr.elems {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case ast.TypeMap:
		if v.m.Len() == 0 {
			return "{}"
		}
		parts := make([]string, v.m.Len())
		for i := range v.m.keys {
			parts[i] = v.m.keys[i].String() + " = " + v.m.vals[i].String()
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	}
	return "-unknown type-"
}

// text converts scalars for the concatenation operator.
func (v Value) text() (string, bool) {
	v = v.Deref()
	switch v.kind {
	case ast.TypeString:
		return v.s, true
	case ast.TypeInt, ast.TypeBool:
		return strconv.Itoa(int(v.i)), true
	case ast.TypeID:
		return ast.ID(uint32(v.i)).String(), true
	}
	return "", false
}

// ---------------------------------------------------------------------------
// Equality
// ---------------------------------------------------------------------------

// Equals compares two values under a dialect. Non-strict and #strict 1
// compare payloads only; #strict 2 lets int, bool and numeric ids meet;
// #strict 3 requires equal types.
func (v Value) Equals(o Value, strict ast.Strictness) bool {
	v, o = v.Deref(), o.Deref()
	switch strict {
	case ast.NonStrict, ast.Strict1:
		return rawEqual(v, o)
	case ast.Strict2:
		return looseEqual(v, o)
	}
	return typedEqual(v, o)
}

func isScalar(k ast.ValueType) bool {
	return k == ast.TypeAny || k == ast.TypeInt || k == ast.TypeBool || k == ast.TypeID
}

func rawEqual(a, b Value) bool {
	if isScalar(a.kind) && isScalar(b.kind) {
		return a.i == b.i
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case ast.TypeString:
		return a.s == b.s
	case ast.TypeArray:
		return a.arr == b.arr
	case ast.TypeMap:
		return a.m == b.m
	case ast.TypeObject:
		return a.obj == b.obj
	}
	return false
}

func looseEqual(a, b Value) bool {
	numericID := func(v Value) bool { return v.kind == ast.TypeID && v.i >= 0 && v.i <= 9999 }
	switch a.kind {
	case ast.TypeAny:
		return isScalar(b.kind) && b.i == 0
	case ast.TypeInt:
		switch b.kind {
		case ast.TypeAny, ast.TypeInt, ast.TypeBool:
			return a.i == b.i
		case ast.TypeID:
			return numericID(b) && a.i == b.i
		}
		return false
	case ast.TypeBool:
		switch b.kind {
		case ast.TypeAny, ast.TypeInt, ast.TypeBool:
			return a.i == b.i
		}
		return false
	case ast.TypeID:
		switch b.kind {
		case ast.TypeAny, ast.TypeID:
			return a.i == b.i
		case ast.TypeInt:
			return numericID(a) && a.i == b.i
		}
		return false
	}
	return typedEqual(a, b)
}

func typedEqual(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case ast.TypeAny:
		return true
	case ast.TypeInt, ast.TypeID:
		return a.i == b.i
	case ast.TypeBool:
		return (a.i != 0) == (b.i != 0)
	case ast.TypeString:
		return a.s == b.s
	case ast.TypeObject:
		return a.obj == b.obj
	case ast.TypeArray:
		if a.arr == b.arr {
			return true
		}
		if a.arr.Len() != b.arr.Len() {
			return false
		}
		for i := range a.arr.elems {
			if !typedEqual(a.arr.elems[i].Deref(), b.arr.elems[i].Deref()) {
				return false
			}
		}
		return true
	case ast.TypeMap:
		if a.m == b.m {
			return true
		}
		if a.m.Len() != b.m.Len() {
			return false
		}
		for i, k := range a.m.keys {
			ov, ok := b.m.Get(k)
			if !ok || !typedEqual(a.m.vals[i].Deref(), ov.Deref()) {
				return false
			}
		}
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Conversion
// ---------------------------------------------------------------------------

// ConvertTo checks whether v may be used where a value of type t is
// expected and returns the converted value. Only int to id changes the
// value; every other accepted conversion keeps it as is.
func (v Value) ConvertTo(t ast.ValueType) (Value, bool) {
	if t == ast.TypeRef {
		return v, v.kind == ast.TypeRef
	}
	v = v.Deref()
	if t == ast.TypeAny || v.kind == t || v.kind == ast.TypeAny {
		return v, true
	}
	switch v.kind {
	case ast.TypeInt:
		switch t {
		case ast.TypeBool:
			return v, true
		case ast.TypeID:
			if v.i >= 0 && v.i <= 9999 {
				return Value{kind: ast.TypeID, i: v.i}, true
			}
		}
	case ast.TypeBool:
		return v, t == ast.TypeInt
	case ast.TypeID, ast.TypeObject, ast.TypeString, ast.TypeArray, ast.TypeMap:
		return v, t == ast.TypeBool
	}
	return v, false
}

// ---------------------------------------------------------------------------
// Array and Map
// ---------------------------------------------------------------------------

// Array is a growable list of values. Elements have stable storage so
// references into an array survive growth.
type Array struct {
	elems []*Value
}

// NewArray creates an array holding a copy of vals.
func NewArray(vals ...Value) *Array {
	a := &Array{elems: make([]*Value, len(vals))}
	for i := range vals {
		v := vals[i]
		a.elems[i] = &v
	}
	return a
}

// Len returns the element count.
func (a *Array) Len() int { return len(a.elems) }

// At returns element i, or nil when out of range.
func (a *Array) At(i int) Value {
	if i < 0 || i >= len(a.elems) {
		return Nil
	}
	return *a.elems[i]
}

// Elements returns a copy of the elements.
func (a *Array) Elements() []Value {
	out := make([]Value, len(a.elems))
	for i, e := range a.elems {
		out[i] = *e
	}
	return out
}

// Append adds v at the end.
func (a *Array) Append(v Value) { a.elems = append(a.elems, &v) }

// slot returns the storage of element i, growing the array as needed.
func (a *Array) slot(i int) *Value {
	for i >= len(a.elems) {
		a.elems = append(a.elems, &Value{})
	}
	return a.elems[i]
}

func (a *Array) clone() *Array { return NewArray(a.Elements()...) }

// Map is an insertion-ordered dictionary keyed by value (compared with
// #strict 3 equality).
type Map struct {
	keys []Value
	vals []*Value
}

// NewMap creates an empty map.
func NewMap() *Map { return &Map{} }

// Len returns the entry count.
func (m *Map) Len() int { return len(m.keys) }

func (m *Map) index(k Value) int {
	k = k.Deref()
	for i := range m.keys {
		if typedEqual(m.keys[i], k) {
			return i
		}
	}
	return -1
}

// Get returns the value stored under k.
func (m *Map) Get(k Value) (Value, bool) {
	if i := m.index(k); i >= 0 {
		return *m.vals[i], true
	}
	return Nil, false
}

// Set stores v under k.
func (m *Map) Set(k, v Value) {
	*m.slot(k) = v
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []Value { return append([]Value(nil), m.keys...) }

// Entry returns the i-th entry in insertion order.
func (m *Map) Entry(i int) (Value, Value) { return m.keys[i], *m.vals[i] }

// slot returns the storage for k, inserting a nil entry if needed.
func (m *Map) slot(k Value) *Value {
	if i := m.index(k); i >= 0 {
		return m.vals[i]
	}
	m.keys = append(m.keys, k.Deref())
	m.vals = append(m.vals, &Value{})
	return m.vals[len(m.vals)-1]
}

func (m *Map) clone() *Map {
	c := NewMap()
	for i, k := range m.keys {
		c.Set(k, *m.vals[i])
	}
	return c
}
