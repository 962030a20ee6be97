package dist

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/chazu/aul/pkg/bytecode"
)

// FuncToChunk wraps one function image for transfer.
func FuncToChunk(fi *FuncImage) (*Chunk, error) {
	data, err := bytecode.Marshal(fi)
	if err != nil {
		return nil, fmt.Errorf("dist: encode %s: %w", fi.Key, err)
	}
	h, err := fi.Hash()
	if err != nil {
		return nil, err
	}
	return &Chunk{
		Hash:         h,
		Type:         ChunkFunc,
		Name:         fi.Key,
		Content:      data,
		Capabilities: fi.Hosts,
	}, nil
}

// ScriptChunks groups the functions of im by declaring script. The chunk
// hash is the hash of the script's function list.
func ScriptChunks(im *Image) ([]*Chunk, error) {
	byScript := make(map[string][][32]byte)
	var names []string
	for i, fi := range im.Funcs {
		script := fi.Key[strings.IndexByte(fi.Key, '/')+1:]
		if _, ok := byScript[script]; !ok {
			names = append(names, script)
		}
		byScript[script] = append(byScript[script], im.Hashes[i])
	}
	sort.Strings(names)
	chunks := make([]*Chunk, 0, len(names))
	for _, name := range names {
		deps := byScript[name]
		data, err := bytecode.Marshal(deps)
		if err != nil {
			return nil, fmt.Errorf("dist: encode script %s: %w", name, err)
		}
		chunks = append(chunks, &Chunk{
			Hash:         sha256.Sum256(data),
			Type:         ChunkScript,
			Name:         name,
			Content:      []byte(name),
			Dependencies: deps,
		})
	}
	return chunks, nil
}

// Announce builds the announcement for im.
func Announce(im *Image) *SyncAnnouncement {
	hashes := make([][32]byte, len(im.Hashes))
	copy(hashes, im.Hashes)
	return &SyncAnnouncement{
		RootHash:    im.Root,
		AllHashes:   hashes,
		Capability:  im.Capabilities(),
		HashVersion: HashVersion,
	}
}

// Answer decides what local wants from an announced image. Images with
// another hash version, or calling host functions the policy refuses,
// are rejected.
func Answer(local *Image, a *SyncAnnouncement, policy *CapabilityPolicy) *AnnounceResponse {
	if a.HashVersion != HashVersion {
		return &AnnounceResponse{
			Status:       AnnounceRejected,
			RejectReason: fmt.Sprintf("hash version %d, want %d", a.HashVersion, HashVersion),
		}
	}
	if policy != nil {
		if err := policy.Check(a.Capability); err != nil {
			return &AnnounceResponse{Status: AnnounceRejected, RejectReason: err.Error()}
		}
	}
	if a.RootHash == local.Root {
		return &AnnounceResponse{Status: AnnounceAlreadyHave}
	}
	var want [][32]byte
	for _, h := range a.AllHashes {
		if !local.Has(h) {
			want = append(want, h)
		}
	}
	if len(want) == 0 {
		return &AnnounceResponse{Status: AnnounceAlreadyHave}
	}
	return &AnnounceResponse{Status: AnnounceAccepted, Want: want}
}

// Serve answers a request with the chunks of im that were asked for and
// are not already held by the requester.
func Serve(im *Image, req *SyncRequest) (*SyncResponse, error) {
	have := make(map[[32]byte]bool, len(req.Have))
	for _, h := range req.Have {
		have[h] = true
	}
	resp := &SyncResponse{}
	for _, h := range req.Want {
		fi := im.Lookup(h)
		if fi == nil || have[h] {
			continue
		}
		c, err := FuncToChunk(fi)
		if err != nil {
			return nil, err
		}
		resp.Chunks = append(resp.Chunks, *c)
	}
	return resp, nil
}

// Receive verifies the chunks of a response from peer and books the
// outcome in peers. A response from a banned peer is refused whole.
func Receive(peer string, resp *SyncResponse, peers *Peers) ([]*FuncImage, *TransferResult) {
	res := &TransferResult{}
	if peers != nil && peers.Banned(peer) {
		res.Rejected = len(resp.Chunks)
		for _, c := range resp.Chunks {
			res.FailedHashes = append(res.FailedHashes, c.Hash)
		}
		return nil, res
	}
	var got []*FuncImage
	for i := range resp.Chunks {
		c := &resp.Chunks[i]
		fi, err := VerifyChunk(c)
		if err != nil {
			res.Rejected++
			res.FailedHashes = append(res.FailedHashes, c.Hash)
			continue
		}
		res.Accepted++
		got = append(got, fi)
	}
	if peers != nil {
		peers.record(peer, res.Rejected)
	}
	return got, res
}
