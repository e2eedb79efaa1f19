// Package meson implements the Meson build backend.
package meson

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/goplus/ws/pkgs/buildsys"
)

var run = buildsys.Run

// Meson drives Meson projects through ninja.
type Meson struct {
	opts    buildsys.Options
	options []string
}

var _ buildsys.Backend = (*Meson)(nil)

// New creates a Meson backend passing the project options in opts.
func New(opts buildsys.Options) *Meson {
	m := &Meson{opts: opts}
	keys := make([]string, 0, len(opts.MesonOptions))
	for k := range opts.MesonOptions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		m.Option(k, opts.MesonOptions[k])
	}
	return m
}

// Option adds a -Dkey=value project option passed at setup.
func (m *Meson) Option(key, value string) *Meson {
	m.options = append(m.options, "-D"+key+"="+value)
	return m
}

func (m *Meson) buildType() string {
	if m.opts.Release() {
		return "release"
	}
	return "debug"
}

// Configure runs meson setup unless the build tree is already generated.
func (m *Meson) Configure(ctx context.Context, proj, buildDir string, env map[string]string) error {
	if buildsys.Exists(filepath.Join(buildDir, "build.ninja")) {
		return nil
	}
	src := buildsys.SourceDir(buildDir)
	args := []string{
		"setup",
		"--buildtype=" + m.buildType(),
		"--prefix=" + buildsys.InstallDir(buildDir),
		"--libdir=lib",
	}
	args = append(args, m.options...)
	args = append(args, buildDir, src)
	return run(ctx, src, env, "meson", args...)
}

// Build runs ninja install, which builds first.
func (m *Meson) Build(ctx context.Context, proj, buildDir string, env map[string]string) error {
	return run(ctx, buildDir, env, "ninja", "-C", buildDir, "install")
}

// Clean runs ninja clean.
func (m *Meson) Clean(ctx context.Context, proj, buildDir string, env map[string]string) error {
	if !buildsys.Exists(buildDir) {
		return nil
	}
	return run(ctx, buildDir, env, "ninja", "-C", buildDir, "clean")
}
