// Package manifest parses the ws manifest into an immutable project graph.
//
// The manifest is a YAML mapping of project name to project record:
//
//	libfoo:
//	  build: meson
//	bar:
//	  build: cmake
//	  deps: libfoo          # a single name or a list of names
//	  env:
//	    LD_PRELOAD: ${LIBDIR}/libbar-preload.so
//
// Project names are paths relative to the directory containing the
// workspace root, which is also where their sources are checked out.
package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/mod/module"
	"gopkg.in/yaml.v3"
)

const (
	keyBuild = "build"
	keyDeps  = "deps"
	keyEnv   = "env"
)

// Placeholders substituted into the values of a project's env overrides.
const (
	LibDirVar = "${LIBDIR}"
	PrefixVar = "${PREFIX}"
)

// Error is returned for a missing or malformed manifest.
type Error struct {
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func errorf(format string, args ...any) error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}

// Project is a single buildable unit of the manifest. Projects returned by a
// Graph are shared and must be treated as read-only.
type Project struct {
	Name  string
	Build string // build backend tag
	Path  string // absolute path of the source checkout

	// Deps lists the projects this one depends on, in manifest order,
	// without duplicates.
	Deps []string
	// Downstream lists the projects that depend on this one. It is derived
	// from Deps and is never read from the manifest.
	Downstream []string
	// Env holds extra environment variables for the project's build. Values
	// may reference LibDirVar and PrefixVar.
	Env map[string]string
}

// PathOf returns the path of the manifest for the workspace root dir (the
// ".ws" directory).
func PathOf(root string) string {
	return filepath.Join(parentOf(root), ".repo", "manifests", "ws-manifest.yaml")
}

func parentOf(root string) string {
	if real, err := filepath.EvalSymlinks(root); err == nil {
		root = real
	} else if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return filepath.Dir(root)
}

// Parse reads and validates the manifest belonging to the workspace root
// dir.
func Parse(root string) (*Graph, error) {
	path := PathOf(root)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errorf("ws manifest %s not found; please run repo init", path)
		}
		return nil, &Error{Msg: fmt.Sprintf("ws manifest %s not readable; please run repo init", path), Err: err}
	}
	return Decode(data, parentOf(root))
}

// Decode parses manifest data. Project paths are resolved against parent.
func Decode(data []byte, parent string) (*Graph, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &Error{Msg: "invalid ws manifest", Err: err}
	}

	g := &Graph{projects: make(map[string]*Project)}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return g, nil
	}
	top := doc.Content[0]
	if top.Kind == yaml.ScalarNode && top.Tag == "!!null" {
		return g, nil
	}
	if top.Kind != yaml.MappingNode {
		return nil, errorf("ws manifest must map project names to projects (line %d)", top.Line)
	}

	for i := 0; i+1 < len(top.Content); i += 2 {
		name := top.Content[i].Value
		if _, ok := g.projects[name]; ok {
			return nil, errorf("project %s specified twice in manifest (line %d)", name, top.Content[i].Line)
		}
		if err := module.CheckFilePath(name); err != nil {
			return nil, &Error{Msg: fmt.Sprintf("invalid project name %q in manifest", name), Err: err}
		}
		proj, err := decodeProject(name, top.Content[i+1])
		if err != nil {
			return nil, err
		}
		proj.Path = filepath.Join(parent, filepath.FromSlash(name))
		g.projects[name] = proj
		g.names = append(g.names, name)
	}

	if err := g.link(); err != nil {
		return nil, err
	}

	// Reject cycles up front so a run either fully validates or touches
	// nothing.
	if _, err := g.DependencyClosure(g.names...); err != nil {
		return nil, err
	}
	return g, nil
}

func decodeProject(name string, node *yaml.Node) (*Project, error) {
	proj := &Project{Name: name, Env: map[string]string{}}
	if node.Kind != yaml.MappingNode {
		if isNull(node) {
			return nil, errorf("%s key missing from project %s in manifest", keyBuild, name)
		}
		return nil, errorf("project %s in manifest must be a mapping (line %d)", name, node.Line)
	}

	hasBuild := false
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i].Value, node.Content[i+1]
		switch key {
		case keyBuild:
			if val.Kind != yaml.ScalarNode || isNull(val) {
				return nil, errorf("%s key of project %s must be a string", keyBuild, name)
			}
			proj.Build = val.Value
			hasBuild = true
		case keyDeps:
			var deps stringList
			if err := val.Decode(&deps); err != nil {
				return nil, &Error{Msg: fmt.Sprintf("%s key of project %s must be a string or a list of strings", keyDeps, name), Err: err}
			}
			proj.Deps = deps
		case keyEnv:
			if isNull(val) {
				continue
			}
			if val.Kind != yaml.MappingNode {
				return nil, errorf("%s key in project %s must be a dictionary", keyEnv, name)
			}
			if err := val.Decode(&proj.Env); err != nil {
				return nil, &Error{Msg: fmt.Sprintf("%s key in project %s must map names to strings", keyEnv, name), Err: err}
			}
		default:
			return nil, errorf("unknown key %s for project %s specified in manifest", key, name)
		}
	}
	if !hasBuild {
		return nil, errorf("%s key missing from project %s in manifest", keyBuild, name)
	}
	return proj, nil
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}

// stringList accepts either a single string or a sequence of strings.
type stringList []string

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	switch {
	case isNull(node):
		*l = nil
		return nil
	case node.Kind == yaml.ScalarNode:
		*l = stringList{node.Value}
		return nil
	case node.Kind == yaml.SequenceNode:
		var s []string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*l = s
		return nil
	}
	return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
}
