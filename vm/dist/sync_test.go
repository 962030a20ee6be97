package dist

import (
	"testing"
)

func TestExchangeBringsPeerUpToDate(t *testing.T) {
	local := image(t, build(t, nil, scriptA(), scriptB(str("old"))))
	remote := image(t, build(t, shifted, scriptA(), defaultB()))

	// the announcement travels as CBOR
	data, err := MarshalAnnouncement(Announce(remote))
	if err != nil {
		t.Fatalf("MarshalAnnouncement: %v", err)
	}
	a, err := UnmarshalAnnouncement(data)
	if err != nil {
		t.Fatalf("UnmarshalAnnouncement: %v", err)
	}

	ans := Answer(local, a, NewPermissivePolicy())
	if ans.Status != AnnounceAccepted || len(ans.Want) != 1 {
		t.Fatalf("Answer() = %+v, want one wanted hash", ans)
	}

	resp, err := Serve(remote, &SyncRequest{Want: ans.Want})
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}
	data, err = MarshalSyncResponse(resp)
	if err != nil {
		t.Fatalf("MarshalSyncResponse: %v", err)
	}
	resp, err = UnmarshalSyncResponse(data)
	if err != nil {
		t.Fatalf("UnmarshalSyncResponse: %v", err)
	}

	peers := NewPeers(0)
	got, res := Receive("remote", resp, peers)
	if res.Accepted != 1 || res.Rejected != 0 || len(got) != 1 {
		t.Fatalf("Receive() = %+v", res)
	}
	if got[0].Key != "game H/b.c" {
		t.Errorf("received %s, want game H/b.c", got[0].Key)
	}
	if p, ok := peers.Get("remote"); !ok || p.Clean != 1 || p.Tainted != 0 {
		t.Errorf("ledger after a clean exchange = %+v", p)
	}

	if again := Answer(remote, a, nil); again.Status != AnnounceAlreadyHave {
		t.Errorf("answering its own announcement: %+v", again)
	}
}

func TestAnswerRejects(t *testing.T) {
	local := image(t, build(t, nil, defaultB(), scriptA()))
	a := Announce(image(t, build(t, nil, scriptA(), scriptB(num(3)))))

	denied := NewPermissivePolicy()
	denied.Deny("global Log")
	if ans := Answer(local, a, denied); ans.Status != AnnounceRejected || ans.RejectReason == "" {
		t.Errorf("Answer with Log denied = %+v", ans)
	}
	if ans := Answer(local, a, NewRestrictedPolicy([]string{"global Log"})); ans.Status != AnnounceAccepted {
		t.Errorf("Answer with Log allowed = %+v", ans)
	}

	a.HashVersion = HashVersion + 1
	if ans := Answer(local, a, nil); ans.Status != AnnounceRejected {
		t.Errorf("Answer to a foreign hash version = %+v", ans)
	}
}

func TestReceiveRejectsTamperedChunks(t *testing.T) {
	remote := image(t, build(t, nil, scriptA(), defaultB()))
	resp, err := Serve(remote, &SyncRequest{Want: remote.Hashes})
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if len(resp.Chunks) != 3 {
		t.Fatalf("Serve returned %d chunks, want 3", len(resp.Chunks))
	}
	// claim the content of one function under the hash of another
	resp.Chunks[0].Content = resp.Chunks[1].Content

	peers := NewPeers(2)
	_, res := Receive("evil", resp, peers)
	if res.Accepted != 2 || res.Rejected != 1 || len(res.FailedHashes) != 1 || res.FailedHashes[0] != resp.Chunks[0].Hash {
		t.Fatalf("Receive() = %+v", res)
	}
	if peers.Banned("evil") {
		t.Fatalf("banned after one mismatch with threshold 2")
	}

	Receive("evil", resp, peers)
	if !peers.Banned("evil") {
		t.Fatalf("not banned after two mismatches")
	}
	got, res := Receive("evil", &SyncResponse{Chunks: resp.Chunks[1:]}, peers)
	if len(got) != 0 || res.Rejected != 2 {
		t.Errorf("banned peer still delivered %d function(s)", len(got))
	}

	peers.Forgive("evil")
	if got, _ := Receive("evil", &SyncResponse{Chunks: resp.Chunks[1:]}, peers); len(got) != 2 {
		t.Errorf("forgiven peer delivered %d function(s), want 2", len(got))
	}
}

func TestServeSkipsHeldAndUnknownHashes(t *testing.T) {
	im := image(t, build(t, nil, scriptA(), defaultB()))
	resp, err := Serve(im, &SyncRequest{
		Have: im.Hashes[:1],
		Want: append([][32]byte{{1, 2, 3}}, im.Hashes...),
	})
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if len(resp.Chunks) != 2 {
		t.Errorf("Serve returned %d chunks, want 2", len(resp.Chunks))
	}
	for _, c := range resp.Chunks {
		if _, err := VerifyChunk(&c); err != nil {
			t.Errorf("served chunk %s does not verify: %v", c.Name, err)
		}
	}
}

func TestVerifyChunkRejectsScriptChunks(t *testing.T) {
	if _, err := VerifyChunk(&Chunk{Type: ChunkScript}); err == nil {
		t.Error("script chunk verified as a function")
	}
}
