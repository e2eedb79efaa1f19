package checksum

import (
	"context"
	"errors"
)

// fakeSource implements vcs.Source with canned output.
type fakeSource struct {
	head, diff, subDiff string
	err                 error
	calls               int
}

func (f *fakeSource) Head(ctx context.Context, dir string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.head), nil
}

func (f *fakeSource) Diff(ctx context.Context, dir string) ([]byte, error) {
	return []byte(f.diff), nil
}

func (f *fakeSource) SubmoduleDiff(ctx context.Context, dir string) ([]byte, error) {
	return []byte(f.subDiff), nil
}

var errNotRepo = errors.New("fatal: not a git repository")
