//go:build unix

package workspace

import (
	"os"
	"path/filepath"

	"github.com/goplus/ws/internal/dryrun"
	"golang.org/x/sys/unix"
)

// LockProject takes an exclusive advisory lock serializing writers of the
// fingerprint and build directories of proj. It blocks until the lock is
// available.
func (ws *Workspace) LockProject(proj string) (unlock func(), err error) {
	if dryrun.Enabled() {
		return func() {}, nil
	}
	path := ws.ProjDir(proj) + ".lock"
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	for {
		err = unix.Flock(int(f.Fd()), unix.LOCK_EX)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	return func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, nil
}
