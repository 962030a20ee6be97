package dist

import (
	"fmt"

	"github.com/chazu/aul/pkg/bytecode"
	"github.com/fxamacker/cbor/v2"
)

func unmarshal[T any](what string, data []byte) (*T, error) {
	var v T
	if err := cbor.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("dist: unmarshal %s: %w", what, err)
	}
	return &v, nil
}

// MarshalAnnouncement serializes a SyncAnnouncement to CBOR bytes.
func MarshalAnnouncement(a *SyncAnnouncement) ([]byte, error) {
	return bytecode.Marshal(a)
}

// UnmarshalAnnouncement deserializes a SyncAnnouncement from CBOR bytes.
func UnmarshalAnnouncement(data []byte) (*SyncAnnouncement, error) {
	return unmarshal[SyncAnnouncement]("announcement", data)
}

// MarshalSyncRequest serializes a SyncRequest to CBOR bytes.
func MarshalSyncRequest(r *SyncRequest) ([]byte, error) {
	return bytecode.Marshal(r)
}

// UnmarshalSyncRequest deserializes a SyncRequest from CBOR bytes.
func UnmarshalSyncRequest(data []byte) (*SyncRequest, error) {
	return unmarshal[SyncRequest]("sync request", data)
}

// MarshalSyncResponse serializes a SyncResponse to CBOR bytes.
func MarshalSyncResponse(r *SyncResponse) ([]byte, error) {
	return bytecode.Marshal(r)
}

// UnmarshalSyncResponse deserializes a SyncResponse from CBOR bytes.
func UnmarshalSyncResponse(data []byte) (*SyncResponse, error) {
	return unmarshal[SyncResponse]("sync response", data)
}

// MarshalFuncImage serializes one function image.
func MarshalFuncImage(fi *FuncImage) ([]byte, error) {
	return bytecode.Marshal(fi)
}

// UnmarshalFuncImage deserializes a function image.
func UnmarshalFuncImage(data []byte) (*FuncImage, error) {
	return unmarshal[FuncImage]("function image", data)
}

// MarshalImage serializes the functions of an image. Hashes are not
// stored; UnmarshalImage recomputes them.
func MarshalImage(im *Image) ([]byte, error) {
	return bytecode.Marshal(&wireImage{Version: HashVersion, Funcs: im.Funcs})
}

// UnmarshalImage decodes an image written by MarshalImage.
func UnmarshalImage(data []byte) (*Image, error) {
	w, err := unmarshal[wireImage]("image", data)
	if err != nil {
		return nil, err
	}
	if w.Version != HashVersion {
		return nil, fmt.Errorf("dist: image hash version %d, want %d", w.Version, HashVersion)
	}
	return NewImage(w.Funcs)
}

type wireImage struct {
	Version byte         `cbor:"1,keyasint"`
	Funcs   []*FuncImage `cbor:"2,keyasint"`
}

// VerifyChunk decodes a function chunk and checks that its content hashes
// to the declared hash.
func VerifyChunk(c *Chunk) (*FuncImage, error) {
	if c.Type != ChunkFunc {
		return nil, fmt.Errorf("dist: cannot verify non-function chunk (type=%d)", c.Type)
	}
	fi, err := UnmarshalFuncImage(c.Content)
	if err != nil {
		return nil, err
	}
	h, err := fi.Hash()
	if err != nil {
		return nil, err
	}
	if h != c.Hash {
		return nil, fmt.Errorf("dist: hash mismatch for %s: declared %x, computed %x", c.Name, c.Hash, h)
	}
	return fi, nil
}
