// Package manifest handles aul.toml project configuration: engine limits,
// the scripts to link, global constants and variables, path dependencies
// on other projects, the code cache and code exchange with peers.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/chazu/aul/vm"
	"github.com/chazu/aul/vm/dist"
)

// FileName is the manifest file looked for by Load and FindAndLoad.
const FileName = "aul.toml"

// Manifest represents an aul.toml project configuration.
type Manifest struct {
	Project      Project               `toml:"project"`
	Engine       Engine                `toml:"engine"`
	Scripts      []ScriptEntry         `toml:"script"`
	Constants    map[string]any        `toml:"constants"`
	Globals      []string              `toml:"globals"`
	Dependencies map[string]Dependency `toml:"dependencies"`
	Cache        Cache                 `toml:"cache"`
	Sync         Sync                  `toml:"sync"`
	Log          Log                   `toml:"log"`

	// Dir is the directory containing the aul.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Engine configures the executor limits.
type Engine struct {
	MaxCallDepth     int   `toml:"max-call-depth"`
	MaxValueStack    int   `toml:"max-value-stack"`
	StepBudget       int64 `toml:"step-budget"`
	Trace            bool  `toml:"trace"`
	WarningsAsErrors bool  `toml:"warnings-as-errors"`
}

// ScriptEntry is one script to register. AST is a CBOR file written by
// ast.Marshal; Source is the optional original text used for line counts
// and diagnostics.
type ScriptEntry struct {
	Name     string `toml:"name"`
	Def      string `toml:"def"` // four-character id, empty for scenario scripts
	AST      string `toml:"ast"`
	Source   string `toml:"source"`
	Encoding string `toml:"encoding"` // of Source; default utf-8
}

// Dependency is another aul project whose scripts are registered before
// this project's own.
type Dependency struct {
	Path string `toml:"path"`
}

// Cache configures the compiled code cache.
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Sync configures what code received from peers may do. Allow and Deny
// name host functions, with or without the "global " prefix. An empty
// Allow list allows every host function that is not denied.
type Sync struct {
	Allow        []string `toml:"allow"`
	Deny         []string `toml:"deny"`
	BanThreshold int      `toml:"ban-threshold"`
}

// Log configures logging. Verbosity 0 logs only critical failures, 1 adds
// errors, 2 warnings, 3 notices, 4 info and 5 debug output.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Load parses an aul.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Project.Name == "" {
		m.Project.Name = filepath.Base(m.Dir)
	}
	if m.Cache.Path == "" {
		m.Cache.Path = filepath.Join(".aul", "codecache.db")
	}
	for i, s := range m.Scripts {
		if s.AST == "" {
			return nil, fmt.Errorf("%s: script %d (%s) has no ast file", path, i+1, s.Name)
		}
		if s.Name == "" {
			m.Scripts[i].Name = s.AST
		}
		if _, err := LookupEncoding(s.Encoding); err != nil {
			return nil, fmt.Errorf("%s: script %s: %w", path, m.Scripts[i].Name, err)
		}
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find an aul.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// EngineConfig converts the [engine] table.
func (m *Manifest) EngineConfig() vm.Config {
	return vm.Config{
		MaxCallDepth:  m.Engine.MaxCallDepth,
		MaxValueStack: m.Engine.MaxValueStack,
		StepBudget:    m.Engine.StepBudget,
		Trace:         m.Engine.Trace,
	}
}

// Path resolves a manifest-relative path.
func (m *Manifest) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// CachePath returns the absolute path of the code cache database.
func (m *Manifest) CachePath() string {
	return m.Path(m.Cache.Path)
}

// CapabilityPolicy converts the [sync] table.
func (m *Manifest) CapabilityPolicy() *dist.CapabilityPolicy {
	p := dist.NewPermissivePolicy()
	if len(m.Sync.Allow) > 0 {
		allowed := make([]string, len(m.Sync.Allow))
		for i, name := range m.Sync.Allow {
			allowed[i] = hostName(name)
		}
		p = dist.NewRestrictedPolicy(allowed)
	}
	for _, name := range m.Sync.Deny {
		p.Deny(hostName(name))
	}
	return p
}

func hostName(name string) string {
	if strings.HasPrefix(name, "global ") {
		return name
	}
	return "global " + name
}
