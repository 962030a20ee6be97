package bytecode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode encodes canonically so equal code always hashes equal.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// wireCode is the serialized form of a Code sequence.
type wireCode struct {
	Version uint16  `cbor:"1,keyasint"`
	Chunks  []Chunk `cbor:"2,keyasint"`
}

// MarshalCode serializes code to canonical CBOR bytes.
func MarshalCode(c Code) ([]byte, error) {
	return cborEncMode.Marshal(&wireCode{Version: BytecodeVersion, Chunks: c})
}

// UnmarshalCode deserializes code written by MarshalCode. Data from a
// different bytecode version is rejected.
func UnmarshalCode(data []byte) (Code, error) {
	var w wireCode
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal code: %w", err)
	}
	if w.Version != BytecodeVersion {
		return nil, fmt.Errorf("bytecode: version %d, want %d", w.Version, BytecodeVersion)
	}
	if w.Chunks == nil {
		return Code{}, nil
	}
	return Code(w.Chunks), nil
}

// Marshal encodes any value with the canonical mode used for code. Other
// packages share it so that images and caches hash consistently.
func Marshal(v any) ([]byte, error) {
	return cborEncMode.Marshal(v)
}
