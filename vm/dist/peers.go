package dist

import (
	"sort"
	"sync"
	"time"
)

// DefaultBanThreshold is the number of bad chunks after which a peer is
// banned.
const DefaultBanThreshold = 3

// Peer is what an engine remembers about one peer it received code from.
type Peer struct {
	Name      string
	Clean     int // responses whose chunks all verified
	Tainted   int // responses with at least one bad chunk
	BadChunks int
	LastSeen  time.Time
	Banned    bool
}

// Peers is the ledger Receive keeps. Counts survive across runs when the
// caller stores List and hands it back to NewPeers.
type Peers struct {
	mu        sync.Mutex
	byName    map[string]*Peer
	threshold int
	now       func() time.Time
}

// NewPeers returns a ledger seeded with known. A threshold of zero or less
// means DefaultBanThreshold.
func NewPeers(threshold int, known ...Peer) *Peers {
	if threshold <= 0 {
		threshold = DefaultBanThreshold
	}
	p := &Peers{byName: make(map[string]*Peer, len(known)), threshold: threshold, now: time.Now}
	for _, k := range known {
		p.byName[k.Name] = &k
	}
	return p
}

// record books one response of name that carried bad bad chunks.
func (p *Peers) record(name string, bad int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.byName[name]
	if !ok {
		e = &Peer{Name: name}
		p.byName[name] = e
	}
	e.LastSeen = p.now()
	if bad == 0 {
		e.Clean++
		return
	}
	e.Tainted++
	e.BadChunks += bad
	if e.BadChunks >= p.threshold {
		e.Banned = true
	}
}

// Banned reports whether responses from name are refused.
func (p *Peers) Banned(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.byName[name]
	return ok && e.Banned
}

// Forgive lifts the ban on name and clears its bad chunk count. It
// reports whether name is known.
func (p *Peers) Forgive(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.byName[name]
	if ok {
		e.Banned = false
		e.BadChunks = 0
	}
	return ok
}

// Get returns a copy of the record of name.
func (p *Peers) Get(name string) (Peer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.byName[name]
	if !ok {
		return Peer{}, false
	}
	return *e, true
}

// List returns copies of every record, by name.
func (p *Peers) List() []Peer {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Peer, 0, len(p.byName))
	for _, e := range p.byName {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
