// Package setuptools implements the Python setuptools build backend.
//
// Packages install under the build directory itself so that the
// site-packages path exported to dependents stays stable.
package setuptools

import (
	"context"

	"github.com/goplus/ws/pkgs/buildsys"
)

var run = buildsys.Run

// Setuptools drives setup.py based projects.
type Setuptools struct {
	opts   buildsys.Options
	python string
}

var _ buildsys.Backend = (*Setuptools)(nil)

// New creates a setuptools backend using opts.Python, or python3 if unset.
func New(opts buildsys.Options) *Setuptools {
	s := &Setuptools{opts: opts, python: "python3"}
	if opts.Python != "" {
		s.Python(opts.Python)
	}
	return s
}

// Python overrides the interpreter.
func (s *Setuptools) Python(bin string) *Setuptools {
	s.python = bin
	return s
}

// Configure only creates the build directory; setup.py has no separate
// configure step.
func (s *Setuptools) Configure(ctx context.Context, proj, buildDir string, env map[string]string) error {
	return buildsys.MkdirAll(buildDir)
}

// Build builds and installs into buildDir.
func (s *Setuptools) Build(ctx context.Context, proj, buildDir string, env map[string]string) error {
	src := buildsys.SourceDir(buildDir)
	args := []string{"setup.py", "build", "--build-base", buildDir}
	if !s.opts.Release() {
		args = append(args, "--debug")
	}
	if err := run(ctx, src, env, s.python, args...); err != nil {
		return err
	}
	return run(ctx, src, env, s.python, "setup.py", "install", "--prefix", buildDir)
}

// Clean runs setup.py clean --all.
func (s *Setuptools) Clean(ctx context.Context, proj, buildDir string, env map[string]string) error {
	if !buildsys.Exists(buildDir) {
		return nil
	}
	src := buildsys.SourceDir(buildDir)
	return run(ctx, src, env, s.python, "setup.py", "clean", "--all", "--build-base", buildDir)
}
