// Package workspace manages the on-disk state of a ws workspace.
//
// Layout:
//
//	<parent>/                 # holds the project source checkouts
//	  .ws/                    # root, found by walking up from the cwd
//	    default -> <name>     # the workspace used when none is named
//	    <name>/               # one workspace
//	      config.yaml
//	      checksum/<project>  # fingerprint of the last successful build
//	      build/<project>/
//	        src -> <parent>/<project>
//	        build/            # backend build directory
//	          install/        # install prefix
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goplus/ws/internal/checksum"
	"github.com/goplus/ws/internal/dryrun"
	log "github.com/sirupsen/logrus"
)

const (
	// RootName is the name of the directory marking a workspace root.
	RootName = ".ws"
	// DefaultName is the name of the workspace used when none is given.
	DefaultName = "default"
)

// ErrNoRoot is returned by FindRoot when no workspace root exists above
// the starting directory.
var ErrNoRoot = errors.New("no .ws directory found; please run ws init")

// FindRoot walks up from dir looking for a RootName directory and returns
// the first one found.
func FindRoot(dir string) (string, error) {
	path, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if real, err := filepath.EvalSymlinks(path); err == nil {
		path = real
	}
	for {
		root := filepath.Join(path, RootName)
		if info, err := os.Stat(root); err == nil && info.IsDir() {
			return root, nil
		}
		parent := filepath.Dir(path)
		if parent == path {
			return "", ErrNoRoot
		}
		path = parent
	}
}

// Workspace is one named workspace below a root.
type Workspace struct {
	Root string // the .ws directory
	Name string
	Dir  string
}

// DefaultLink returns the path of the symlink naming the default workspace.
func DefaultLink(root string) string {
	return filepath.Join(root, DefaultName)
}

// Open returns the workspace called name below root. An empty name selects
// the default workspace.
func Open(root, name string) (*Workspace, error) {
	if name == "" {
		name = DefaultName
	}
	dir := filepath.Join(root, name)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("workspace %s: %w", name, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace %s: %s is not a directory", name, dir)
	}
	return &Workspace{Root: root, Name: name, Dir: dir}, nil
}

// Init creates the workspace called name below root with a fresh config.
// The first workspace created also becomes the default one.
func Init(root, name, buildType string) (*Workspace, error) {
	if name == "" {
		name = DefaultName
	}
	if err := validBuildType(buildType); err != nil {
		return nil, err
	}
	ws := &Workspace{Root: root, Name: name, Dir: filepath.Join(root, name)}
	if _, err := os.Lstat(ws.Dir); err == nil {
		return nil, fmt.Errorf("workspace %s already exists", name)
	}

	log.Debugf("creating workspace %s", ws.Dir)
	if dryrun.Enabled() {
		return ws, nil
	}
	for _, dir := range []string{ws.ChecksumDir(), ws.TopBuildDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	if err := ws.UpdateConfig(&Config{Type: buildType, Taint: false}); err != nil {
		return nil, err
	}

	link := DefaultLink(root)
	if name != DefaultName {
		if _, err := os.Lstat(link); errors.Is(err, fs.ErrNotExist) {
			if err := os.Symlink(name, link); err != nil {
				return nil, err
			}
		}
	}
	return ws, nil
}

// ConfigPath returns the file tracking the state of the workspace.
func (ws *Workspace) ConfigPath() string {
	return filepath.Join(ws.Dir, "config.yaml")
}

// ChecksumDir returns the directory holding project fingerprints.
func (ws *Workspace) ChecksumDir() string {
	return filepath.Join(ws.Dir, "checksum")
}

// ChecksumFile returns the fingerprint file of proj.
func (ws *Workspace) ChecksumFile(proj string) string {
	return filepath.Join(ws.ChecksumDir(), filepath.FromSlash(proj))
}

// Checksums returns the fingerprint store of the workspace.
func (ws *Workspace) Checksums() *checksum.Dir {
	return checksum.NewDir(ws.ChecksumDir())
}

// TopBuildDir returns the directory holding the build artifacts of all
// projects.
func (ws *Workspace) TopBuildDir() string {
	return filepath.Join(ws.Dir, "build")
}

// ProjDir returns the root directory of proj inside the workspace.
func (ws *Workspace) ProjDir(proj string) string {
	return filepath.Join(ws.TopBuildDir(), filepath.FromSlash(proj))
}

// SourceLink returns the symlink inside the project directory that points
// back at the project's source checkout.
func (ws *Workspace) SourceLink(proj string) string {
	return filepath.Join(ws.ProjDir(proj), "src")
}

// BuildDir returns the build directory of proj.
func (ws *Workspace) BuildDir(proj string) string {
	return filepath.Join(ws.ProjDir(proj), "build")
}

// InstallDir returns the install prefix of proj.
func (ws *Workspace) InstallDir(proj string) string {
	return filepath.Join(ws.BuildDir(proj), "install")
}

// EnsureSourceLink points the source link of proj at src.
func (ws *Workspace) EnsureSourceLink(proj, src string) error {
	link := ws.SourceLink(proj)
	if target, err := os.Readlink(link); err == nil && target == src {
		return nil
	}
	log.Debugf("linking %s -> %s", link, src)
	if dryrun.Enabled() {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(link), 0755); err != nil {
		return err
	}
	if err := os.Remove(link); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.Symlink(src, link)
}

// RemoveBuildDir removes the whole build directory of proj. A directory that
// is already gone is not an error.
func (ws *Workspace) RemoveBuildDir(proj string) error {
	dir := ws.BuildDir(proj)
	log.Debugf("removing %s", dir)
	if dryrun.Enabled() {
		return nil
	}
	if _, err := os.Lstat(dir); errors.Is(err, fs.ErrNotExist) {
		log.Debugf("%s already removed", dir)
		return nil
	}
	return os.RemoveAll(dir)
}
