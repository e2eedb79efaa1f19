package manifest

import (
	"slices"

	"github.com/goplus/ws/internal/depgraph"
)

// Graph is the validated project graph of a manifest. It is never modified
// after Decode returns.
type Graph struct {
	projects map[string]*Project
	names    []string // manifest order
}

// link validates the forward edges and derives the reverse ones. Validation
// finishes before any Downstream list is touched.
func (g *Graph) link() error {
	for _, name := range g.names {
		proj := g.projects[name]
		seen := make(map[string]bool, len(proj.Deps))
		for _, dep := range proj.Deps {
			if _, ok := g.projects[dep]; !ok {
				return errorf("project %s dependency %s not found in the manifest", name, dep)
			}
			if seen[dep] {
				return errorf("project %s has duplicate dependency %s", name, dep)
			}
			seen[dep] = true
		}
	}

	for _, name := range g.names {
		for _, dep := range g.projects[name].Deps {
			target := g.projects[dep]
			target.Downstream = append(target.Downstream, name)
		}
	}
	return nil
}

// Len returns the number of projects.
func (g *Graph) Len() int {
	return len(g.names)
}

// Names returns all project names in manifest order.
func (g *Graph) Names() []string {
	return slices.Clone(g.names)
}

// Project returns the named project.
func (g *Graph) Project(name string) (*Project, bool) {
	proj, ok := g.projects[name]
	return proj, ok
}

// Select validates a list of project names given by the user. An empty list
// selects every project.
func (g *Graph) Select(names []string) ([]string, error) {
	if len(names) == 0 {
		return g.Names(), nil
	}
	for _, name := range names {
		if _, ok := g.projects[name]; !ok {
			return nil, errorf("unknown project %s", name)
		}
	}
	return names, nil
}

// DependencyClosure returns roots and everything they transitively depend
// on, with every project placed after all of its dependencies.
func (g *Graph) DependencyClosure(roots ...string) ([]string, error) {
	if _, err := g.Select(roots); err != nil {
		return nil, err
	}
	return depgraph.Closure(roots, func(name string) []string {
		return g.projects[name].Deps
	})
}

// DownstreamClosure returns roots and every project that transitively
// depends on them. It walks the reverse edges, so consumers come before the
// projects they consume.
func (g *Graph) DownstreamClosure(roots ...string) ([]string, error) {
	if _, err := g.Select(roots); err != nil {
		return nil, err
	}
	return depgraph.Closure(roots, func(name string) []string {
		return g.projects[name].Downstream
	})
}
