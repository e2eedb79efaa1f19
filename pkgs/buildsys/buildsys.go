// Package buildsys defines the contract between ws and the native build
// tools it drives, and a registry resolving a project's declared build tag
// to an implementation.
package buildsys

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/goplus/ws/internal/dryrun"
	log "github.com/sirupsen/logrus"
)

// Tag names a build backend in the manifest.
type Tag string

// Built-in backends.
const (
	CMake      Tag = "cmake"
	Meson      Tag = "meson"
	Setuptools Tag = "setuptools"
	Autotools  Tag = "autotools"
)

// Backend drives one native build system. All operations take the project
// name, its build directory and the environment to run the tool with.
//
// The project's sources are reachable through SourceDir(buildDir) and it
// installs into InstallDir(buildDir).
type Backend interface {
	// Configure prepares buildDir for Build. Running it on an already
	// configured directory is harmless.
	Configure(ctx context.Context, proj, buildDir string, env map[string]string) error

	// Build builds and installs the project.
	Build(ctx context.Context, proj, buildDir string, env map[string]string) error

	// Clean asks the native tool to remove its build outputs. It does
	// nothing if buildDir does not exist.
	Clean(ctx context.Context, proj, buildDir string, env map[string]string) error
}

// Options carries the workspace-wide settings backends are created with.
// Zero values select each backend's defaults.
type Options struct {
	// BuildType is "debug" or "release".
	BuildType string

	Jobs           int               // make parallelism
	Python         string            // interpreter running setup.py
	CMakeGenerator string            // cmake -G
	CMakeDefines   map[string]string // cmake -D cache entries
	MesonOptions   map[string]string // meson -D project options
	ConfigureArgs  []string          // extra arguments to configure scripts
}

// Release reports whether an optimized build is requested.
func (o Options) Release() bool {
	return o.BuildType == "release"
}

// UnknownBackendError is returned for a project whose build tag has no
// registered backend.
type UnknownBackendError struct {
	Project string
	Tag     string
}

func (e *UnknownBackendError) Error() string {
	return fmt.Sprintf("unknown build tool %s for project %s", e.Tag, e.Project)
}

// Registry maps build tags to backends. It is filled once at startup.
type Registry struct {
	backends map[Tag]Backend
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[Tag]Backend)}
}

// Register makes b handle projects tagged tag. It panics if tag is already
// registered or b is nil.
func (r *Registry) Register(tag Tag, b Backend) {
	if b == nil {
		panic("buildsys: Register backend is nil")
	}
	if _, dup := r.backends[tag]; dup {
		panic("buildsys: Register called twice for " + string(tag))
	}
	r.backends[tag] = b
}

// Lookup returns the backend for proj, whose declared build tag is tag.
func (r *Registry) Lookup(proj, tag string) (Backend, error) {
	b, ok := r.backends[Tag(tag)]
	if !ok {
		return nil, &UnknownBackendError{Project: proj, Tag: tag}
	}
	return b, nil
}

// Tags returns the registered tags, sorted.
func (r *Registry) Tags() []Tag {
	tags := make([]Tag, 0, len(r.backends))
	for tag := range r.backends {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return tags
}

// SourceDir returns the source directory belonging to buildDir.
func SourceDir(buildDir string) string {
	return filepath.Join(filepath.Dir(buildDir), "src")
}

// InstallDir returns the install prefix belonging to buildDir.
func InstallDir(buildDir string) string {
	return filepath.Join(buildDir, "install")
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

// Run runs a native tool in dir with exactly the environment env. In dry-run
// mode it only logs the command.
func Run(ctx context.Context, dir string, env map[string]string, bin string, args ...string) error {
	log.WithField("dir", dir).Debugf("running %s %s", bin, strings.Join(args, " "))
	if dryrun.Enabled() {
		return nil
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = Environ(env)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", bin, err)
	}
	return nil
}

// MkdirAll creates dir unless in dry-run mode.
func MkdirAll(dir string) error {
	if dryrun.Enabled() {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}

// Environ converts env to the sorted KEY=VALUE form used by exec.Cmd.
func Environ(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
