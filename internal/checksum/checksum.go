// Package checksum decides whether a project needs rebuilding by comparing a
// fingerprint of its source checkout against the one stored after its last
// successful build.
//
// The fingerprint covers the checked-out commit, every uncommitted change,
// and the same for all nested submodules. Files ignored by version control
// are assumed to have no effect on the build. A project for which that does
// not hold has a bug in its ignore rules.
package checksum

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/goplus/ws/internal/dryrun"
	"github.com/goplus/ws/internal/vcs"
	log "github.com/sirupsen/logrus"
)

// Placeholder values reported in dry-run mode. They never match, so every
// project looks stale.
const (
	DryRunCalculated = "bogus-calculated-checksum"
	DryRunStored     = "bogus-stored-checksum"
)

// SourceError is returned when a source directory is missing or is not a
// valid checkout.
type SourceError struct {
	Dir string
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("cannot fingerprint source %s: %v", e.Dir, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Calculate returns the hex fingerprint of the checkout in dir.
func Calculate(ctx context.Context, src vcs.Source, dir string) (string, error) {
	if dryrun.Enabled() {
		return DryRunCalculated, nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return "", &SourceError{Dir: dir, Err: err}
	}
	if !info.IsDir() {
		return "", &SourceError{Dir: dir, Err: errors.New("not a directory")}
	}

	head, err := src.Head(ctx, dir)
	if err != nil {
		return "", &SourceError{Dir: dir, Err: err}
	}
	diff, err := src.Diff(ctx, dir)
	if err != nil {
		return "", &SourceError{Dir: dir, Err: err}
	}
	subDiff, err := src.SubmoduleDiff(ctx, dir)
	if err != nil {
		return "", &SourceError{Dir: dir, Err: err}
	}

	h := sha256.New()
	h.Write(head)
	h.Write(diff)
	h.Write(subDiff)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Store persists fingerprints per project.
type Store interface {
	// Stored returns the fingerprint recorded for proj, if any.
	Stored(proj string) (string, bool)
	// Set records sum as the fingerprint of proj.
	Set(proj, sum string) error
	// Invalidate forgets the fingerprint of proj. Forgetting an absent
	// fingerprint is not an error.
	Invalidate(proj string) error
}

// Dir is a Store keeping one file per project in a directory.
type Dir struct {
	dir string
}

var _ Store = (*Dir)(nil)

// NewDir returns a Store rooted at dir.
func NewDir(dir string) *Dir {
	return &Dir{dir: dir}
}

func (d *Dir) file(proj string) string {
	return filepath.Join(d.dir, filepath.FromSlash(proj))
}

// Stored returns the recorded fingerprint. A file that cannot be read counts
// as absent. A corrupt file needs no special handling: it will not match a
// freshly calculated fingerprint and the project gets rebuilt.
func (d *Dir) Stored(proj string) (string, bool) {
	if dryrun.Enabled() {
		return DryRunStored, true
	}
	data, err := os.ReadFile(d.file(proj))
	if err != nil {
		return "", false
	}
	return strings.TrimRight(string(data), "\r\n"), true
}

// Set records the fingerprint. The write is not atomic: a torn write leaves
// a value that cannot match, which only costs a rebuild.
func (d *Dir) Set(proj, sum string) error {
	if dryrun.Enabled() {
		return nil
	}
	file := d.file(proj)
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return err
	}
	return os.WriteFile(file, []byte(sum+"\n"), 0644)
}

// Invalidate removes the recorded fingerprint so the project rebuilds, for
// example after one of its dependencies rebuilt.
func (d *Dir) Invalidate(proj string) error {
	log.Debugf("invalidating checksum for %s", proj)
	if dryrun.Enabled() {
		return nil
	}
	err := os.Remove(d.file(proj))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// IsStale reports whether the project whose sources live in dir has no
// recorded fingerprint or one that differs from the current sources.
func IsStale(ctx context.Context, store Store, src vcs.Source, proj, dir string) (bool, error) {
	stored, ok := store.Stored(proj)
	if !ok {
		return true, nil
	}
	current, err := Calculate(ctx, src, dir)
	if err != nil {
		return false, err
	}
	return stored != current, nil
}
