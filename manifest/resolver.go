package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ResolvedDep is a dependency whose manifest has been loaded.
type ResolvedDep struct {
	Name     string
	Dir      string
	Manifest *Manifest
}

// Resolve loads the dependencies of m recursively and returns them in
// load order: every project comes after the projects it depends on. A
// project reached twice is loaded once; a dependency cycle is an error.
func (m *Manifest) Resolve() ([]ResolvedDep, error) {
	r := &resolver{
		done:     make(map[string]bool),
		visiting: make(map[string]bool),
	}
	r.visiting[m.Dir] = true
	if err := r.resolveAll(m, []string{m.Project.Name}); err != nil {
		return nil, err
	}
	return r.order, nil
}

type resolver struct {
	order    []ResolvedDep
	done     map[string]bool // by absolute directory
	visiting map[string]bool
}

func (r *resolver) resolveAll(m *Manifest, chain []string) error {
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		dir, err := r.locate(m, name, m.Dependencies[name])
		if err != nil {
			return err
		}
		path := append(chain[:len(chain):len(chain)], name)
		if r.visiting[dir] {
			return fmt.Errorf("dependency cycle: %s", strings.Join(path, " -> "))
		}
		if r.done[dir] {
			continue
		}

		dm, err := Load(dir)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", name, err)
		}
		r.visiting[dir] = true
		if err := r.resolveAll(dm, path); err != nil {
			return err
		}
		delete(r.visiting, dir)
		r.done[dir] = true
		r.order = append(r.order, ResolvedDep{Name: name, Dir: dir, Manifest: dm})
	}
	return nil
}

func (r *resolver) locate(m *Manifest, name string, dep Dependency) (string, error) {
	if dep.Path == "" {
		return "", fmt.Errorf("dependency %q has no path specified", name)
	}
	dir, err := filepath.Abs(m.Path(dep.Path))
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", dep.Path, err)
	}
	if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
		return "", fmt.Errorf("dependency %q: no %s at %s: %w", name, FileName, dir, err)
	}
	return dir, nil
}
