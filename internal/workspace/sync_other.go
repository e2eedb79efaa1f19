//go:build !linux

package workspace

import "os"

func datasync(f *os.File) error {
	return f.Sync()
}
