// Package autotools implements the GNU Autotools build backend.
package autotools

import (
	"context"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/goplus/ws/pkgs/buildsys"
)

var run = buildsys.Run

// AutoTools drives configure/make projects.
type AutoTools struct {
	opts buildsys.Options
	args []string
	jobs int
}

var _ buildsys.Backend = (*AutoTools)(nil)

// New creates an Autotools backend passing opts.ConfigureArgs to configure.
// make runs opts.Jobs jobs, or one per CPU if unset.
func New(opts buildsys.Options) *AutoTools {
	a := &AutoTools{opts: opts, jobs: runtime.NumCPU()}
	if opts.Jobs > 0 {
		a.Jobs(opts.Jobs)
	}
	for _, arg := range opts.ConfigureArgs {
		a.Arg(arg)
	}
	return a
}

// Arg appends an extra argument passed to configure.
func (a *AutoTools) Arg(arg string) *AutoTools {
	a.args = append(a.args, arg)
	return a
}

// Jobs sets the make parallelism. Values below one mean serial builds.
func (a *AutoTools) Jobs(n int) *AutoTools {
	a.jobs = n
	return a
}

// Configure runs the source tree's configure script out of tree.
func (a *AutoTools) Configure(ctx context.Context, proj, buildDir string, env map[string]string) error {
	if buildsys.Exists(filepath.Join(buildDir, "Makefile")) {
		return nil
	}
	if err := buildsys.MkdirAll(buildDir); err != nil {
		return err
	}
	args := []string{"--prefix=" + buildsys.InstallDir(buildDir)}
	if !a.opts.Release() {
		args = append(args, "CFLAGS=-g -O0", "CXXFLAGS=-g -O0")
	}
	args = append(args, a.args...)
	script := filepath.Join(buildsys.SourceDir(buildDir), "configure")
	return run(ctx, buildDir, env, script, args...)
}

// Build runs make and make install.
func (a *AutoTools) Build(ctx context.Context, proj, buildDir string, env map[string]string) error {
	if err := run(ctx, buildDir, env, "make", a.makeArgs()...); err != nil {
		return err
	}
	return run(ctx, buildDir, env, "make", "install")
}

// Clean runs make clean.
func (a *AutoTools) Clean(ctx context.Context, proj, buildDir string, env map[string]string) error {
	if !buildsys.Exists(filepath.Join(buildDir, "Makefile")) {
		return nil
	}
	return run(ctx, buildDir, env, "make", "clean")
}

func (a *AutoTools) makeArgs() []string {
	if a.jobs <= 1 {
		return nil
	}
	return []string{"-j" + strconv.Itoa(a.jobs)}
}
