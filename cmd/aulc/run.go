package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/chazu/aul/pkg/ast"
	"github.com/chazu/aul/vm"
)

// call handles `aulc run [-this ID] <func> [args...]`.
func (c *cli) call(p *project, args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	this := fs.String("this", "", "Definition id of an object to run the function in")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(c.stderr, "Usage: aulc run [-this ID] <func> [args...]")
		return 2
	}
	if _, ok := c.link(p, false); !ok {
		return 1
	}

	var obj vm.Object
	name := fs.Arg(0)
	if *this != "" {
		def, err := ast.ParseID(*this)
		if err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			return 2
		}
		inst, err := p.e.NewInstance("", def)
		if err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			return 1
		}
		obj = inst
		if scoped := def.String() + "::" + name; p.e.FindFunc(scoped) != nil {
			name = scoped
		}
	}
	f := p.e.FindFunc(name)
	if f == nil {
		fmt.Fprintf(c.stderr, "Unknown function: %s\n", fs.Arg(0))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	res, err := p.e.Call(ctx, f.ID, obj, parseArgs(fs.Args()[1:]))
	if err != nil {
		fmt.Fprintf(c.stderr, "%v\n", err)
		return 1
	}
	fmt.Fprintln(c.stdout, res.String())
	return 0
}

// parseArgs reads command line values: integers, true, false and nil,
// anything else is a string.
func parseArgs(args []string) []vm.Value {
	vals := make([]vm.Value, 0, len(args))
	for _, a := range args {
		switch a {
		case "true":
			vals = append(vals, vm.Bool(true))
			continue
		case "false":
			vals = append(vals, vm.Bool(false))
			continue
		case "nil":
			vals = append(vals, vm.Nil)
			continue
		}
		if n, err := strconv.ParseInt(a, 0, 32); err == nil {
			vals = append(vals, vm.Int(int32(n)))
			continue
		}
		vals = append(vals, vm.String(a))
	}
	return vals
}
