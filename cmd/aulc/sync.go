package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/chazu/aul/lib/codecache"
	"github.com/chazu/aul/vm/dist"
)

const syncUsage = `Usage: aulc sync announce <announcement-out>
       aulc sync answer <announcement> <request-out>
       aulc sync serve <request> <response-out>
       aulc sync receive [-peer NAME] <response> <image-out>
       aulc sync peers [forgive NAME]`

// syncCode handles `aulc sync`, the file based exchange of compiled code
// between checkouts that have to run in lock step. One side announces its
// image, the other answers with the hashes it lacks, the first serves
// them and the second verifies what it received.
func (c *cli) syncCode(p *project, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(c.stderr, syncUsage)
		return 2
	}
	sub, rest := args[0], args[1:]
	switch {
	case sub == "announce" && len(rest) == 1:
		return c.announce(p, rest[0])
	case sub == "answer" && len(rest) == 2:
		return c.answer(p, rest[0], rest[1])
	case sub == "serve" && len(rest) == 2:
		return c.serve(p, rest[0], rest[1])
	case sub == "receive":
		return c.receive(p, rest)
	case sub == "peers":
		return c.peers(p, rest)
	}
	fmt.Fprintln(c.stderr, syncUsage)
	return 2
}

// localImage links the project and snapshots its code.
func (c *cli) localImage(p *project) (*dist.Image, bool) {
	if _, ok := c.link(p, false); !ok {
		return nil, false
	}
	im, err := dist.BuildImage(p.e)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return nil, false
	}
	return im, true
}

func readMessage[T any](c *cli, path string, decode func([]byte) (*T, error)) (*T, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return nil, false
	}
	v, err := decode(data)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %s: %v\n", path, err)
		return nil, false
	}
	return v, true
}

func writeMessage[T any](c *cli, path string, v *T, encode func(*T) ([]byte, error)) bool {
	data, err := encode(v)
	if err == nil {
		err = os.WriteFile(path, data, 0o644)
	}
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return false
	}
	return true
}

func (c *cli) announce(p *project, out string) int {
	im, ok := c.localImage(p)
	if !ok {
		return 1
	}
	scripts, err := dist.ScriptChunks(im)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	if !writeMessage(c, out, dist.Announce(im), dist.MarshalAnnouncement) {
		return 1
	}
	fmt.Fprintf(c.stdout, "announced %d function(s) in %d script(s), root %s\n",
		len(im.Funcs), len(scripts), hex.EncodeToString(im.Root[:]))
	for _, s := range scripts {
		fmt.Fprintf(c.stdout, "  %s: %d function(s)\n", s.Name, len(s.Dependencies))
	}
	return 0
}

func (c *cli) answer(p *project, in, out string) int {
	im, ok := c.localImage(p)
	if !ok {
		return 1
	}
	a, ok := readMessage(c, in, dist.UnmarshalAnnouncement)
	if !ok {
		return 1
	}
	ans := dist.Answer(im, a, p.m.CapabilityPolicy())
	switch ans.Status {
	case dist.AnnounceRejected:
		fmt.Fprintf(c.stderr, "rejected: %s\n", ans.RejectReason)
		return 1
	case dist.AnnounceAlreadyHave:
		fmt.Fprintln(c.stdout, "already up to date")
		return 0
	}
	if !writeMessage(c, out, &dist.SyncRequest{Have: im.Hashes, Want: ans.Want}, dist.MarshalSyncRequest) {
		return 1
	}
	fmt.Fprintf(c.stdout, "want %d function(s)\n", len(ans.Want))
	return 0
}

func (c *cli) serve(p *project, in, out string) int {
	im, ok := c.localImage(p)
	if !ok {
		return 1
	}
	req, ok := readMessage(c, in, dist.UnmarshalSyncRequest)
	if !ok {
		return 1
	}
	resp, err := dist.Serve(im, req)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	if !writeMessage(c, out, resp, dist.MarshalSyncResponse) {
		return 1
	}
	fmt.Fprintf(c.stdout, "served %d chunk(s)\n", len(resp.Chunks))
	return 0
}

// receive verifies a response, books it against the peer in the code
// cache and writes the local image with the received functions installed.
func (c *cli) receive(p *project, args []string) int {
	fs := flag.NewFlagSet("sync receive", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	peer := fs.String("peer", "peer", "Name the response is booked under")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(c.stderr, syncUsage)
		return 2
	}
	im, ok := c.localImage(p)
	if !ok {
		return 1
	}
	resp, ok := readMessage(c, fs.Arg(0), dist.UnmarshalSyncResponse)
	if !ok {
		return 1
	}

	ctx := context.Background()
	cc, err := codecache.Open(p.m.CachePath())
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	defer cc.Close()
	peers, err := cc.Peers(ctx, p.m.Project.Name, p.m.Sync.BanThreshold)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	banned := peers.Banned(*peer)
	got, res := dist.Receive(*peer, resp, peers)
	if err := cc.SavePeers(ctx, p.m.Project.Name, peers); err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	if banned {
		fmt.Fprintf(c.stderr, "%s is banned; run `aulc sync peers forgive %s` to accept its code again\n", *peer, *peer)
		return 1
	}
	for _, h := range res.FailedHashes {
		fmt.Fprintf(c.stderr, "bad chunk %s\n", hex.EncodeToString(h[:]))
	}

	merged, err := im.Merge(got)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	if !writeMessage(c, fs.Arg(1), merged, dist.MarshalImage) {
		return 1
	}
	fmt.Fprintf(c.stdout, "accepted %d, rejected %d chunk(s) from %s, root %s\n",
		res.Accepted, res.Rejected, *peer, hex.EncodeToString(merged.Root[:]))
	if res.Rejected > 0 {
		return 1
	}
	return 0
}

// peers lists the ledger kept by receive, or forgives one peer.
func (c *cli) peers(p *project, args []string) int {
	if len(args) != 0 && (len(args) != 2 || args[0] != "forgive") {
		fmt.Fprintln(c.stderr, syncUsage)
		return 2
	}
	ctx := context.Background()
	cc, err := codecache.Open(p.m.CachePath())
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	defer cc.Close()
	peers, err := cc.Peers(ctx, p.m.Project.Name, p.m.Sync.BanThreshold)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}

	if len(args) == 2 {
		if !peers.Forgive(args[1]) {
			fmt.Fprintf(c.stderr, "Unknown peer: %s\n", args[1])
			return 1
		}
		if err := cc.SavePeers(ctx, p.m.Project.Name, peers); err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(c.stdout, "forgave %s\n", args[1])
		return 0
	}

	for _, r := range peers.List() {
		state := ""
		if r.Banned {
			state = " banned"
		}
		fmt.Fprintf(c.stdout, "%s: %d clean, %d tainted, %d bad chunk(s)%s\n",
			r.Name, r.Clean, r.Tainted, r.BadChunks, state)
	}
	return 0
}
