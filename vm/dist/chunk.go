// Package dist compares and exchanges compiled code between engines that
// must run in lock step. Every function is reduced to a handle-free
// FuncImage with a SHA-256 content hash; peers announce their hashes,
// ask for the ones they lack and verify what they receive. Messages are
// canonical CBOR.
package dist

// ChunkType identifies the kind of content in a Chunk.
type ChunkType uint8

const (
	ChunkFunc   ChunkType = 1 // one FuncImage
	ChunkScript ChunkType = 2 // the function hashes of one script
)

// HashVersion is announced with every image. Peers with a different
// version never compare equal.
const HashVersion byte = 1

// Chunk is the unit of transfer. Content is the canonical CBOR of a
// FuncImage (ChunkFunc) or the script name (ChunkScript); Hash covers the
// decoded value.
type Chunk struct {
	Hash         [32]byte   `cbor:"1,keyasint"`
	Type         ChunkType  `cbor:"2,keyasint"`
	Name         string     `cbor:"3,keyasint"`
	Content      []byte     `cbor:"4,keyasint"`
	Dependencies [][32]byte `cbor:"5,keyasint,omitempty"` // function hashes of a script
	Capabilities []string   `cbor:"6,keyasint,omitempty"` // host functions the code calls
}

// SyncAnnouncement advertises an engine's compiled code.
type SyncAnnouncement struct {
	RootHash    [32]byte            `cbor:"1,keyasint"`
	AllHashes   [][32]byte          `cbor:"2,keyasint"`
	Capability  *CapabilityManifest `cbor:"3,keyasint,omitempty"`
	HashVersion byte                `cbor:"4,keyasint"`
}

// SyncRequest is the have/want negotiation message.
type SyncRequest struct {
	Have [][32]byte `cbor:"1,keyasint"`
	Want [][32]byte `cbor:"2,keyasint"`
}

// SyncResponse carries the requested chunks.
type SyncResponse struct {
	Chunks []Chunk `cbor:"1,keyasint"`
}

// CapabilityManifest lists the host functions a set of chunks calls,
// by full name ("global Name").
type CapabilityManifest struct {
	Required []string `cbor:"1,keyasint"`
}

// AnnounceStatus indicates the result of an announcement.
type AnnounceStatus uint8

const (
	AnnounceAccepted    AnnounceStatus = 0
	AnnounceRejected    AnnounceStatus = 1
	AnnounceAlreadyHave AnnounceStatus = 2
)

// AnnounceResponse is the reply to a SyncAnnouncement.
type AnnounceResponse struct {
	Status       AnnounceStatus `cbor:"1,keyasint"`
	Want         [][32]byte     `cbor:"2,keyasint,omitempty"`
	RejectReason string         `cbor:"3,keyasint,omitempty"`
}

// TransferResult summarizes the outcome of a chunk transfer.
type TransferResult struct {
	Accepted     int        `cbor:"1,keyasint"`
	Rejected     int        `cbor:"2,keyasint"`
	FailedHashes [][32]byte `cbor:"3,keyasint,omitempty"`
}
