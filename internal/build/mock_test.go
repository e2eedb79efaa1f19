package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// fakeSource implements vcs.Source. Each source directory reports the head
// recorded for it, "rev0" by default.
type fakeSource struct {
	mu    sync.Mutex
	heads map[string]string
}

func newFakeSource() *fakeSource {
	return &fakeSource{heads: make(map[string]string)}
}

func (f *fakeSource) set(dir, head string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heads[dir] = head
}

func (f *fakeSource) Head(ctx context.Context, dir string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.heads[dir]; ok {
		return []byte(h), nil
	}
	return []byte("rev0"), nil
}

func (f *fakeSource) Diff(ctx context.Context, dir string) ([]byte, error) {
	return nil, nil
}

func (f *fakeSource) SubmoduleDiff(ctx context.Context, dir string) ([]byte, error) {
	return nil, nil
}

// fakeBackend implements buildsys.Backend, recording every operation as
// "<op> <project>".
type fakeBackend struct {
	ops  []string
	envs map[string]map[string]string
	fail map[string]error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		envs: make(map[string]map[string]string),
		fail: make(map[string]error),
	}
}

func (f *fakeBackend) do(op, proj string, env map[string]string) error {
	key := fmt.Sprintf("%s %s", op, proj)
	f.ops = append(f.ops, key)
	f.envs[proj] = env
	return f.fail[key]
}

func (f *fakeBackend) Configure(ctx context.Context, proj, buildDir string, env map[string]string) error {
	if err := f.do("configure", proj, env); err != nil {
		return err
	}
	return os.MkdirAll(buildDir, 0755)
}

func (f *fakeBackend) Build(ctx context.Context, proj, buildDir string, env map[string]string) error {
	if err := f.do("build", proj, env); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(buildDir, "artifact"), []byte(proj), 0644)
}

func (f *fakeBackend) Clean(ctx context.Context, proj, buildDir string, env map[string]string) error {
	if err := f.do("clean", proj, env); err != nil {
		return err
	}
	return os.Remove(filepath.Join(buildDir, "artifact"))
}

func (f *fakeBackend) reset() {
	f.ops = nil
}
