package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/chazu/aul/manifest"
	"github.com/chazu/aul/pkg/ast"
	"github.com/chazu/aul/vm"
	"go.yaml.in/yaml/v3"
)

const (
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiReset  = "\x1b[0m"
)

// link links the project and prints its diagnostics. ok is false when the
// link failed or produced errors, or warnings under warnings-as-errors.
func (c *cli) link(p *project, quiet bool) (vm.Summary, bool) {
	sum, err := p.e.Link()
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return sum, false
	}
	if !quiet {
		for _, d := range p.e.Diagnostics() {
			c.printDiagnostic(p, d)
		}
	}
	if sum.Errors > 0 || (p.m.Engine.WarningsAsErrors && sum.Warnings > 0) {
		return sum, false
	}
	return sum, true
}

func (c *cli) printDiagnostic(p *project, d vm.Diagnostic) {
	sev := d.Severity.String()
	if c.color {
		colour := ansiYellow
		if d.Severity == vm.SeverityError {
			colour = ansiRed
		}
		sev = colour + sev + ansiReset
	}
	where := d.Script
	if d.Func != "" {
		where = d.Func + " in " + d.Script
	}
	loc, ok := locate(p, d)
	switch {
	case ok:
		fmt.Fprintf(c.stderr, "%s:%d:%d: %s: %s\n", d.Script, loc.Line, loc.Col, sev, d.Msg)
		fmt.Fprintf(c.stderr, "\t%s\n", loc.Text)
	case where != "":
		fmt.Fprintf(c.stderr, "%s: %s: %s\n", where, sev, d.Msg)
	default:
		fmt.Fprintf(c.stderr, "%s: %s\n", sev, d.Msg)
	}
}

// locate resolves a diagnostic against the source text of its script, if
// the manifest provided one.
func locate(p *project, d vm.Diagnostic) (manifest.Location, bool) {
	for _, l := range p.loaded {
		if l.Script.Name != d.Script {
			continue
		}
		if len(l.Script.Source) == 0 {
			return manifest.Location{}, false
		}
		loc, err := manifest.Locate(l.Script.Source, d.Pos, l.Entry.Encoding)
		return loc, err == nil
	}
	return manifest.Location{}, false
}

func (c *cli) build(p *project) int {
	sum, ok := c.link(p, false)
	fmt.Fprintf(c.stdout, "linked %d script(s) - %d line(s), %d warning(s), %d error(s)\n",
		sum.Scripts, sum.Lines, sum.Warnings, sum.Errors)
	if !ok {
		return 1
	}
	if p.m.Cache.Enabled {
		if err := c.storeImage(p); err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			return 1
		}
	}
	return 0
}

func (c *cli) tree(p *project, args []string) int {
	found := false
	for _, l := range p.loaded {
		if len(args) > 0 && l.Script.Name != args[0] {
			continue
		}
		found = true
		fmt.Fprintf(c.stdout, "; %s\n%s\n", l.Script.Name, ast.Dump(l.Script.Root))
	}
	if !found && len(args) > 0 {
		fmt.Fprintf(c.stderr, "Unknown script: %s\n", args[0])
		return 1
	}
	return 0
}

func (c *cli) disasm(p *project, args []string) int {
	if _, ok := c.link(p, false); !ok {
		return 1
	}
	if len(args) > 0 {
		f := p.e.FindFunc(args[0])
		if f == nil || !f.IsScript() {
			fmt.Fprintf(c.stderr, "Unknown function: %s\n", args[0])
			return 1
		}
		fmt.Fprint(c.stdout, p.e.Disassemble(f))
		return 0
	}
	for _, f := range p.e.Funcs() {
		if f.IsScript() && !f.IsCopy() {
			fmt.Fprint(c.stdout, p.e.Disassemble(f))
		}
	}
	return 0
}

// linkReport is the machine-readable result of a link.
type linkReport struct {
	Project     string         `yaml:"project"`
	Version     string         `yaml:"version,omitempty"`
	Scripts     int            `yaml:"scripts"`
	Lines       int            `yaml:"lines"`
	Warnings    int            `yaml:"warnings"`
	Errors      int            `yaml:"errors"`
	NonStrict   int            `yaml:"non-strict"`
	Functions   []string       `yaml:"functions"`
	Diagnostics []reportedDiag `yaml:"diagnostics,omitempty"`
}

type reportedDiag struct {
	Severity string `yaml:"severity"`
	Script   string `yaml:"script,omitempty"`
	Func     string `yaml:"func,omitempty"`
	Line     int    `yaml:"line,omitempty"`
	Col      int    `yaml:"col,omitempty"`
	Message  string `yaml:"message"`
}

func buildReport(p *project, sum vm.Summary) *linkReport {
	r := &linkReport{
		Project:   p.m.Project.Name,
		Version:   p.m.Project.Version,
		Scripts:   sum.Scripts,
		Lines:     sum.Lines,
		Warnings:  sum.Warnings,
		Errors:    sum.Errors,
		NonStrict: sum.NonStrict,
		Functions: []string{},
	}
	for _, f := range p.e.Funcs() {
		if f.IsScript() && !f.IsCopy() {
			r.Functions = append(r.Functions, p.e.FullName(f))
		}
	}
	for _, d := range p.e.Diagnostics() {
		rd := reportedDiag{
			Severity: strings.ToLower(d.Severity.String()),
			Script:   d.Script,
			Func:     d.Func,
			Message:  d.Msg,
		}
		if loc, ok := locate(p, d); ok {
			rd.Line, rd.Col = loc.Line, loc.Col
		}
		r.Diagnostics = append(r.Diagnostics, rd)
	}
	return r
}

func (c *cli) report(p *project, args []string) int {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	format := fs.String("format", "yaml", "Output format: yaml or text")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	sum, ok := c.link(p, true)
	r := buildReport(p, sum)
	switch *format {
	case "yaml":
		enc := yaml.NewEncoder(c.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			return 1
		}
		if err := enc.Close(); err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			return 1
		}
	case "text":
		fmt.Fprintf(c.stdout, "%s: %d script(s), %d line(s), %d warning(s), %d error(s), %d non-strict\n",
			r.Project, r.Scripts, r.Lines, r.Warnings, r.Errors, r.NonStrict)
		for _, name := range r.Functions {
			fmt.Fprintf(c.stdout, "  %s\n", name)
		}
		for _, d := range p.e.Diagnostics() {
			fmt.Fprintf(c.stdout, "%s\n", d)
		}
	default:
		fmt.Fprintf(c.stderr, "Unknown report format: %s\n", *format)
		return 2
	}
	if !ok {
		return 1
	}
	return 0
}
