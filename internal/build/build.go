// Package build drives backends over a manifest in dependency order,
// rebuilding only projects whose sources or dependencies changed.
package build

import (
	"context"
	"fmt"

	"github.com/goplus/ws/internal/checksum"
	"github.com/goplus/ws/internal/dryrun"
	"github.com/goplus/ws/internal/env"
	"github.com/goplus/ws/internal/manifest"
	"github.com/goplus/ws/internal/vcs"
	"github.com/goplus/ws/internal/workspace"
	"github.com/goplus/ws/pkgs/buildsys"
	log "github.com/sirupsen/logrus"
)

// Builder builds and cleans the projects of one workspace.
type Builder struct {
	WS       *workspace.Workspace
	Graph    *manifest.Graph
	Backends *buildsys.Registry
	Source   vcs.Source
	Store    checksum.Store
}

// NewBuilder returns a Builder keeping fingerprints in the workspace's
// checksum directory.
func NewBuilder(ws *workspace.Workspace, g *manifest.Graph, backends *buildsys.Registry, src vcs.Source) *Builder {
	return &Builder{
		WS:       ws,
		Graph:    g,
		Backends: backends,
		Source:   src,
		Store:    ws.Checksums(),
	}
}

// Result reports what happened to one project during Build.
type Result struct {
	Project string
	Built   bool
}

// Error wraps a failure of a backend or of the bookkeeping around it.
type Error struct {
	Project string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Project, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Build brings projects and everything they depend on up to date. No
// projects means all of them. Projects are processed dependencies first and
// the first failure stops the run; the results gathered so far are returned
// with it.
func (b *Builder) Build(ctx context.Context, projects ...string) ([]Result, error) {
	roots, err := b.Graph.Select(projects)
	if err != nil {
		return nil, err
	}
	order, err := b.Graph.DependencyClosure(roots...)
	if err != nil {
		return nil, err
	}

	rebuilt := make(map[string]bool, len(order))
	results := make([]Result, 0, len(order))
	for _, name := range order {
		p, _ := b.Graph.Project(name)
		forced := false
		for _, dep := range p.Deps {
			if rebuilt[dep] {
				forced = true
				break
			}
		}
		built, err := b.buildOne(ctx, p, forced)
		if err != nil {
			return results, err
		}
		rebuilt[name] = built
		results = append(results, Result{Project: name, Built: built})
	}
	return results, nil
}

func (b *Builder) buildOne(ctx context.Context, p *manifest.Project, forced bool) (bool, error) {
	unlock, err := b.WS.LockProject(p.Name)
	if err != nil {
		return false, &Error{Project: p.Name, Op: "lock", Err: err}
	}
	defer unlock()

	// Checked under the lock: another process may have built it meanwhile.
	current, err := checksum.Calculate(ctx, b.Source, p.Path)
	if err != nil {
		return false, err
	}
	stored, ok := b.Store.Stored(p.Name)
	if ok && stored == current && !forced {
		log.Debugf("%s is up to date", p.Name)
		return false, nil
	}

	backend, err := b.Backends.Lookup(p.Name, p.Build)
	if err != nil {
		return false, err
	}

	// Consumers must not keep a fingerprint that predates this build, even
	// if the build below fails.
	downstream, err := b.Graph.DownstreamClosure(p.Name)
	if err != nil {
		return false, err
	}
	for _, proj := range downstream {
		if err := b.Store.Invalidate(proj); err != nil {
			return false, &Error{Project: proj, Op: "invalidate", Err: err}
		}
	}

	if err := b.WS.EnsureSourceLink(p.Name, p.Path); err != nil {
		return false, &Error{Project: p.Name, Op: "link", Err: err}
	}
	buildEnv, err := b.Env(p.Name)
	if err != nil {
		return false, err
	}

	buildDir := b.WS.BuildDir(p.Name)
	log.Infof("building %s", p.Name)
	if err := backend.Configure(ctx, p.Name, buildDir, buildEnv); err != nil {
		return false, &Error{Project: p.Name, Op: "configure", Err: err}
	}
	if err := backend.Build(ctx, p.Name, buildDir, buildEnv); err != nil {
		return false, &Error{Project: p.Name, Op: "build", Err: err}
	}
	if err := b.Store.Set(p.Name, current); err != nil {
		return false, &Error{Project: p.Name, Op: "store checksum", Err: err}
	}
	return true, nil
}

// Clean cleans projects, all of them if none are named. Every cleaned
// project loses its fingerprint. A polite clean asks the backend to clean a
// build directory that exists; a forced one removes the build directory and
// clears the workspace taint flag.
func (b *Builder) Clean(ctx context.Context, force bool, projects ...string) error {
	names, err := b.Graph.Select(projects)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := b.Store.Invalidate(name); err != nil {
			return &Error{Project: name, Op: "invalidate", Err: err}
		}
		if force {
			err = b.forceClean(name)
		} else {
			err = b.politeClean(ctx, name)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) forceClean(proj string) error {
	if err := b.WS.RemoveBuildDir(proj); err != nil {
		return &Error{Project: proj, Op: "clean", Err: err}
	}
	if dryrun.Enabled() {
		return nil
	}
	cfg, err := b.WS.LoadConfig()
	if err != nil {
		return err
	}
	cfg.Taint = false
	return b.WS.UpdateConfig(cfg)
}

func (b *Builder) politeClean(ctx context.Context, proj string) error {
	p, _ := b.Graph.Project(proj)
	backend, err := b.Backends.Lookup(proj, p.Build)
	if err != nil {
		return err
	}
	buildDir := b.WS.BuildDir(proj)
	if !buildsys.Exists(buildDir) {
		log.Debugf("%s has no build directory", proj)
		return nil
	}
	buildEnv, err := b.Env(proj)
	if err != nil {
		return err
	}
	if err := backend.Clean(ctx, proj, buildDir, buildEnv); err != nil {
		return &Error{Project: proj, Op: "clean", Err: err}
	}
	return nil
}

// Env returns the environment proj builds and runs with.
func (b *Builder) Env(proj string) (map[string]string, error) {
	return env.BuildEnv(b.WS, b.Graph, proj)
}

// Stale reports whether proj needs a rebuild on its own account, ignoring
// its dependencies.
func (b *Builder) Stale(ctx context.Context, proj string) (bool, error) {
	p, ok := b.Graph.Project(proj)
	if !ok {
		return false, fmt.Errorf("unknown project %s", proj)
	}
	return checksum.IsStale(ctx, b.Store, b.Source, proj, p.Path)
}
