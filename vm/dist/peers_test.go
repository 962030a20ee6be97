package dist

import (
	"testing"
	"time"
)

func TestPeersBookResponses(t *testing.T) {
	p := NewPeers(0)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p.now = func() time.Time { return at }

	p.record("a", 0)
	p.record("a", 0)
	p.record("a", 1)
	got, ok := p.Get("a")
	if !ok || got.Clean != 2 || got.Tainted != 1 || got.BadChunks != 1 || got.Banned {
		t.Fatalf("Get(a) = %+v, %v", got, ok)
	}
	if !got.LastSeen.Equal(at) {
		t.Errorf("LastSeen = %v, want %v", got.LastSeen, at)
	}

	got.Clean = 99
	if again, _ := p.Get("a"); again.Clean != 2 {
		t.Errorf("Get returned the stored record, not a copy")
	}
}

func TestPeersBanAndForgive(t *testing.T) {
	p := NewPeers(0)
	p.record("evil", 2)
	if p.Banned("evil") {
		t.Fatalf("banned after 2 bad chunks with the default threshold")
	}
	p.record("evil", 1)
	if !p.Banned("evil") {
		t.Fatalf("not banned after %d bad chunks", DefaultBanThreshold)
	}
	if !p.Forgive("evil") || p.Banned("evil") {
		t.Errorf("Forgive did not lift the ban")
	}
	if got, _ := p.Get("evil"); got.BadChunks != 0 || got.Tainted != 2 {
		t.Errorf("after Forgive: %+v", got)
	}
	if p.Forgive("stranger") {
		t.Errorf("Forgive of an unknown peer reported success")
	}
	if _, ok := p.Get("stranger"); ok || p.Banned("stranger") {
		t.Errorf("unknown peer has a record")
	}
}

func TestPeersSeededAndListed(t *testing.T) {
	p := NewPeers(1, Peer{Name: "c", Clean: 4}, Peer{Name: "a", Banned: true})
	p.record("b", 1)

	list := p.List()
	if len(list) != 3 || list[0].Name != "a" || list[1].Name != "b" || list[2].Name != "c" {
		t.Fatalf("List() = %+v", list)
	}
	if !list[0].Banned || !list[1].Banned || list[2].Clean != 4 {
		t.Errorf("List() = %+v", list)
	}
}
