package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/chazu/aul/lib/codecache"
	"github.com/chazu/aul/vm/dist"
)

// cache handles `aulc cache [check|put|status]`.
func (c *cli) cache(p *project, args []string) int {
	sub := "check"
	if len(args) > 0 {
		sub = args[0]
	}
	if sub != "check" && sub != "put" && sub != "status" {
		fmt.Fprintf(c.stderr, "Unknown cache subcommand: %s\n", sub)
		fmt.Fprintln(c.stderr, "Usage: aulc cache [check|put|status]")
		return 2
	}

	ctx := context.Background()
	cc, err := codecache.Open(p.m.CachePath())
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	defer cc.Close()

	if sub == "status" {
		root, err := cc.Root(ctx, p.m.Project.Name)
		switch {
		case errors.Is(err, codecache.ErrNotFound):
			fmt.Fprintf(c.stdout, "%s: no cached build\n", p.m.Project.Name)
			return 0
		case err != nil:
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(c.stdout, "%s: %s\n", p.m.Project.Name, hex.EncodeToString(root[:]))
		return 0
	}

	if _, ok := c.link(p, false); !ok {
		return 1
	}
	im, err := dist.BuildImage(p.e)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	if sub == "put" {
		if err := cc.Put(ctx, p.m.Project.Name, im); err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(c.stdout, "cached %d function(s), root %s\n", len(im.Funcs), hex.EncodeToString(im.Root[:]))
		return 0
	}

	d, err := cc.Check(ctx, p.m.Project.Name, im)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	return c.printDrift(d, "cache")
}

// storeImage records the linked code in the project's cache.
func (c *cli) storeImage(p *project) error {
	im, err := dist.BuildImage(p.e)
	if err != nil {
		return err
	}
	cc, err := codecache.Open(p.m.CachePath())
	if err != nil {
		return err
	}
	defer cc.Close()
	return cc.Put(context.Background(), p.m.Project.Name, im)
}

// image handles `aulc image write <file>` and `aulc image diff <file>`.
func (c *cli) image(p *project, args []string) int {
	if len(args) != 2 || (args[0] != "write" && args[0] != "diff") {
		fmt.Fprintln(c.stderr, "Usage: aulc image [write|diff] <file>")
		return 2
	}
	if _, ok := c.link(p, false); !ok {
		return 1
	}
	im, err := dist.BuildImage(p.e)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}

	if args[0] == "write" {
		data, err := dist.MarshalImage(im)
		if err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			return 1
		}
		if err := os.WriteFile(args[1], data, 0o644); err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(c.stdout, "wrote %d function(s) to %s, root %s\n",
			len(im.Funcs), args[1], hex.EncodeToString(im.Root[:]))
		return 0
	}

	data, err := os.ReadFile(args[1])
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	other, err := dist.UnmarshalImage(data)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %s: %v\n", args[1], err)
		return 1
	}
	return c.printDrift(dist.Compare(im, other), args[1])
}

// printDrift lists the differences and returns 1 when there are any.
func (c *cli) printDrift(d dist.Drift, against string) int {
	if d.Empty() {
		fmt.Fprintf(c.stdout, "in sync with %s\n", against)
		return 0
	}
	for _, k := range d.Missing {
		fmt.Fprintf(c.stdout, "- %s\n", k)
	}
	for _, k := range d.Extra {
		fmt.Fprintf(c.stdout, "+ %s\n", k)
	}
	for _, k := range d.Changed {
		fmt.Fprintf(c.stdout, "~ %s\n", k)
	}
	return 1
}
