// Package cmake implements the CMake build backend.
package cmake

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/goplus/ws/pkgs/buildsys"
)

// run is swapped out by tests.
var run = buildsys.Run

// CMake drives CMake-based projects.
type CMake struct {
	opts      buildsys.Options
	generator string
	defines   map[string]string
}

var _ buildsys.Backend = (*CMake)(nil)

// New creates a CMake backend using the generator and cache entries in
// opts.
func New(opts buildsys.Options) *CMake {
	c := &CMake{
		opts:    opts,
		defines: map[string]string{},
	}
	if opts.CMakeGenerator != "" {
		c.Generator(opts.CMakeGenerator)
	}
	for k, v := range opts.CMakeDefines {
		c.Define(k, v)
	}
	return c
}

// Generator selects the CMake generator, such as "Ninja".
func (c *CMake) Generator(name string) *CMake {
	c.generator = name
	return c
}

// Define adds a -D cache entry passed to every configure.
func (c *CMake) Define(key, value string) *CMake {
	c.defines[key] = value
	return c
}

func (c *CMake) buildType() string {
	if c.opts.Release() {
		return "Release"
	}
	return "Debug"
}

// Configure generates the build tree unless it already has a cache.
func (c *CMake) Configure(ctx context.Context, proj, buildDir string, env map[string]string) error {
	if buildsys.Exists(filepath.Join(buildDir, "CMakeCache.txt")) {
		return nil
	}
	if err := buildsys.MkdirAll(buildDir); err != nil {
		return err
	}
	args := []string{"-S", buildsys.SourceDir(buildDir), "-B", buildDir}
	if c.generator != "" {
		args = append(args, "-G", c.generator)
	}
	args = append(args,
		"-DCMAKE_INSTALL_PREFIX:PATH="+buildsys.InstallDir(buildDir),
		"-DCMAKE_BUILD_TYPE:STRING="+c.buildType(),
	)
	args = append(args, c.definesArgs()...)
	return run(ctx, buildDir, env, "cmake", args...)
}

// Build builds and installs the project.
func (c *CMake) Build(ctx context.Context, proj, buildDir string, env map[string]string) error {
	if err := run(ctx, buildDir, env, "cmake", "--build", buildDir, "--config", c.buildType()); err != nil {
		return err
	}
	return run(ctx, buildDir, env, "cmake", "--install", buildDir, "--config", c.buildType())
}

// Clean runs the clean target.
func (c *CMake) Clean(ctx context.Context, proj, buildDir string, env map[string]string) error {
	if !buildsys.Exists(buildDir) {
		return nil
	}
	return run(ctx, buildDir, env, "cmake", "--build", buildDir, "--target", "clean")
}

func (c *CMake) definesArgs() []string {
	if len(c.defines) == 0 {
		return nil
	}
	keys := make([]string, 0, len(c.defines))
	for k := range c.defines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, len(keys))
	for _, k := range keys {
		args = append(args, "-D"+k+"="+c.defines[k])
	}
	return args
}
