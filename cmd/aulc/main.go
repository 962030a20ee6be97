// aulc compiles, links and runs the C4Script projects described by an
// aul.toml manifest.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/chazu/aul/compiler"
	"github.com/chazu/aul/manifest"
	"github.com/chazu/aul/vm"
	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"
	"github.com/tliron/commonlog/simple"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// cli carries the global options and output streams of one invocation.
type cli struct {
	stdout, stderr io.Writer
	dir            string
	verbose        int
	color          bool
}

// project is a loaded and registered, not yet linked, manifest.
type project struct {
	m      *manifest.Manifest
	e      *vm.Engine
	loaded []manifest.Loaded
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("aulc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	c := &cli{stdout: stdout, stderr: stderr}
	fs.StringVar(&c.dir, "C", ".", "Project directory (searched upwards for aul.toml)")
	fs.IntVar(&c.verbose, "v", 0, "Additional log verbosity")
	colorMode := fs.String("color", "auto", "Colour diagnostics: auto, always or never")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: aulc [options] <command> [args...]\n\n")
		fmt.Fprintf(stderr, "Commands:\n")
		fmt.Fprintf(stderr, "  build                        Link the project and print diagnostics (default)\n")
		fmt.Fprintf(stderr, "  tree [script]                Print the syntax tree of every or one script\n")
		fmt.Fprintf(stderr, "  disasm [func]                Disassemble every or one function\n")
		fmt.Fprintf(stderr, "  report [-format yaml|text]   Print the link report\n")
		fmt.Fprintf(stderr, "  run [-this ID] <func> [args] Call a function and print its result\n")
		fmt.Fprintf(stderr, "  cache [check|put|status]     Compare against or update the code cache\n")
		fmt.Fprintf(stderr, "  image [write|diff] <file>    Write the code image or diff against one\n")
		fmt.Fprintf(stderr, "  sync <step> [args]           Exchange compiled code with a peer (see aulc sync)\n")
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	switch *colorMode {
	case "always":
		c.color = true
	case "never":
		c.color = false
	case "auto":
		c.color = isTerminal(stdout)
	default:
		fmt.Fprintf(stderr, "Unknown colour mode: %s\n", *colorMode)
		return 2
	}

	cmd, rest := "build", fs.Args()
	if len(rest) > 0 {
		cmd, rest = rest[0], rest[1:]
	}

	p, err := c.load()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	switch cmd {
	case "build":
		return c.build(p)
	case "tree":
		return c.tree(p, rest)
	case "disasm":
		return c.disasm(p, rest)
	case "report":
		return c.report(p, rest)
	case "run":
		return c.call(p, rest)
	case "cache":
		return c.cache(p, rest)
	case "image":
		return c.image(p, rest)
	case "sync":
		return c.syncCode(p, rest)
	}
	fmt.Fprintf(stderr, "Unknown command: %s\n", cmd)
	fs.Usage()
	return 2
}

// load finds the manifest, configures logging from it and registers every
// script with a new engine.
func (c *cli) load() (*project, error) {
	m, err := manifest.FindAndLoad(c.dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("no %s found in %s or its parents", manifest.FileName, c.dir)
	}
	configureLogging(m.Log.Verbosity+c.verbose, m.Path(m.Log.File))

	e := compiler.NewEngine(m.EngineConfig())
	loaded, err := m.Apply(e)
	if err != nil {
		return nil, err
	}
	return &project{m: m, e: e, loaded: loaded}, nil
}

// configureLogging maps verbosity 0 to critical-only output.
func configureLogging(verbosity int, file string) {
	backend := simple.NewBackend()
	backend.Buffered = false
	commonlog.SetBackend(backend)
	var path *string
	if file != "" {
		path = &file
	}
	commonlog.Configure(verbosity-3, path)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
