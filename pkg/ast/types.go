// Package ast defines the syntax tree consumed by the Aul bytecode
// generator. The tree is produced by an external parser (or decoded from a
// CBOR file, see Unmarshal) and is never evaluated directly.
package ast

import (
	"fmt"
	"strconv"

	"github.com/chazu/aul/pkg/bytecode"
)

// Limits shared by the preparser and the generator.
const (
	MaxPar        = bytecode.MaxPar
	MaxIdentifier = 100
	MaxString     = 1024
)

// ValueType is the dynamic value tag of the language.
type ValueType uint8

const (
	TypeAny ValueType = iota
	TypeInt
	TypeBool
	TypeID
	TypeObject
	TypeString
	TypeArray
	TypeMap
	TypeRef // reference to a variable
)

var valueTypeNames = [...]string{"any", "int", "bool", "id", "object", "string", "array", "map", "&"}

func (t ValueType) String() string {
	if int(t) < len(valueTypeNames) {
		return valueTypeNames[t]
	}
	return fmt.Sprintf("ValueType(%d)", uint8(t))
}

// Access is the visibility of a function. Levels are ordered.
type Access uint8

const (
	AccessPrivate Access = iota
	AccessProtected
	AccessPublic
	AccessGlobal
)

func (a Access) String() string {
	switch a {
	case AccessPrivate:
		return "private"
	case AccessProtected:
		return "protected"
	case AccessPublic:
		return "public"
	case AccessGlobal:
		return "global"
	}
	return fmt.Sprintf("Access(%d)", uint8(a))
}

// Strictness is the dialect level selected by #strict.
type Strictness uint8

const (
	NonStrict Strictness = iota
	Strict1
	Strict2
	Strict3

	MaxStrict = Strict3
)

// ID is a four-character definition identifier. Characters are packed low
// byte first; values up to 9999 are numeric ids.
type ID uint32

const (
	NoID   ID = 0
	AllIDs ID = 0xFFFFFFFF // #appendto *
)

// ParseID converts "CLNK", "0042", "NONE" or "*" to an ID.
func ParseID(s string) (ID, error) {
	switch {
	case s == "*":
		return AllIDs, nil
	case s == "NONE":
		return NoID, nil
	case len(s) != 4:
		return NoID, fmt.Errorf("invalid id %q: must be four characters", s)
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return ID(n), nil
	}
	return ID(s[0]) | ID(s[1])<<8 | ID(s[2])<<16 | ID(s[3])<<24, nil
}

// MustParseID is ParseID for literals known to be valid.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id ID) String() string {
	switch {
	case id == NoID:
		return "NONE"
	case id == AllIDs:
		return "*"
	case id <= 9999:
		return fmt.Sprintf("%04d", uint32(id))
	}
	return string([]byte{byte(id), byte(id >> 8), byte(id >> 16), byte(id >> 24)})
}

// LooksLikeID reports whether id is a plausible definition id: a numeric
// id other than 0000, or four characters from A-Z, 0-9 and '_'.
func (id ID) LooksLikeID() bool {
	if id >= 1 && id <= 9999 {
		return true
	}
	for i := 0; i < 4; i++ {
		b := byte(id >> (8 * i))
		if !(b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_') {
			return false
		}
	}
	return true
}
