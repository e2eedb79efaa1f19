//go:build !unix

package workspace

// LockProject is a no-op on platforms without flock.
func (ws *Workspace) LockProject(proj string) (unlock func(), err error) {
	return func() {}, nil
}
