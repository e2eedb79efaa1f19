// Package env composes the process environment of a project's build.
package env

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goplus/ws/internal/manifest"
	"github.com/goplus/ws/internal/workspace"
	"github.com/goplus/ws/pkgs/buildsys"
)

// HostTripletVar overrides the detected host triplet when set.
const HostTripletVar = "WS_HOST_TRIPLET"

// Path-like variables derived for every build.
const (
	PkgConfigPath = "PKG_CONFIG_PATH"
	LDLibraryPath = "LD_LIBRARY_PATH"
	PythonPath    = "PYTHONPATH"
)

// hostTriplet asks the compiler once per process.
var hostTriplet = sync.OnceValues(func() (string, error) {
	out, err := exec.Command("gcc", "-dumpmachine").Output()
	if err != nil {
		return "", fmt.Errorf("get host triplet: %w", err)
	}
	return string(bytes.TrimSpace(out)), nil
})

// pythonVersion is the "major.minor" version of python3, used to locate
// site-packages. It falls back to "3" without a python3 binary.
var pythonVersion = sync.OnceValue(func() string {
	out, err := exec.Command("python3", "-c", `import sys; print("%d.%d" % sys.version_info[:2])`).Output()
	if err != nil {
		return "3"
	}
	return string(bytes.TrimSpace(out))
})

// HostTriplet returns the GCC host triplet of this machine, such as
// x86_64-linux-gnu.
func HostTriplet() (string, error) {
	if v := os.Getenv(HostTripletVar); v != "" {
		return v, nil
	}
	return hostTriplet()
}

// LibDir returns the directory holding the installed libraries of proj.
func LibDir(ws *workspace.Workspace, proj string) (string, error) {
	triplet, err := HostTriplet()
	if err != nil {
		return "", err
	}
	return filepath.Join(ws.InstallDir(proj), "lib", triplet), nil
}

// PkgConfigDir returns the directory holding the .pc files of proj.
func PkgConfigDir(ws *workspace.Workspace, proj string) (string, error) {
	lib, err := LibDir(ws, proj)
	if err != nil {
		return "", err
	}
	return filepath.Join(lib, "pkgconfig"), nil
}

// SitePackagesDir returns where a setuptools project installs its Python
// packages.
func SitePackagesDir(ws *workspace.Workspace, proj string) string {
	return filepath.Join(ws.BuildDir(proj), "lib", "python"+pythonVersion(), "site-packages")
}

// Current returns the inherited process environment.
func Current() map[string]string {
	environ := os.Environ()
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// MergeVar appends vals to the colon-separated variable key. Entries already
// present stay first and in order; nothing is deduplicated.
func MergeVar(env map[string]string, key string, vals ...string) {
	var entries []string
	if current, ok := env[key]; ok {
		entries = strings.Split(current, ":")
	}
	env[key] = strings.Join(append(entries, vals...), ":")
}

// BuildEnv returns the environment for building proj and for running its
// outputs: the inherited environment extended with the library and
// pkg-config directories of proj and everything it depends on, followed by
// the project's own env overrides.
func BuildEnv(ws *workspace.Workspace, g *manifest.Graph, proj string) (map[string]string, error) {
	p, ok := g.Project(proj)
	if !ok {
		return nil, fmt.Errorf("unknown project %s", proj)
	}
	deps, err := g.DependencyClosure(proj)
	if err != nil {
		return nil, err
	}

	var pkgConfigPath, ldLibraryPath []string
	for _, dep := range deps {
		lib, err := LibDir(ws, dep)
		if err != nil {
			return nil, err
		}
		ldLibraryPath = append(ldLibraryPath, lib)
		pkgConfigPath = append(pkgConfigPath, filepath.Join(lib, "pkgconfig"))
	}

	env := Current()
	MergeVar(env, PkgConfigPath, pkgConfigPath...)
	MergeVar(env, LDLibraryPath, ldLibraryPath...)
	if buildsys.Tag(p.Build) == buildsys.Setuptools {
		MergeVar(env, PythonPath, SitePackagesDir(ws, proj))
	}

	libDir, err := LibDir(ws, proj)
	if err != nil {
		return nil, err
	}
	prefix := ws.InstallDir(proj)
	for key, val := range p.Env {
		val = strings.ReplaceAll(val, manifest.LibDirVar, libDir)
		val = strings.ReplaceAll(val, manifest.PrefixVar, prefix)
		MergeVar(env, key, val)
	}
	return env, nil
}
