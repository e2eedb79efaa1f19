package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Source defines the read-only queries needed to fingerprint a source
// checkout. All methods return the raw output of the underlying tool.
type Source interface {
	// Head returns the identifier of the commit checked out in dir.
	Head(ctx context.Context, dir string) ([]byte, error)

	// Diff returns the diff of the working tree in dir against Head. It
	// covers staged and unstaged changes alike.
	Diff(ctx context.Context, dir string) ([]byte, error)

	// SubmoduleDiff returns the same diff for every submodule of dir,
	// recursively.
	SubmoduleDiff(ctx context.Context, dir string) ([]byte, error)
}

// gitVCS implements Source using git.
type gitVCS struct {
	git string
}

// GitOption configures gitVCS.
type GitOption func(*gitVCS)

// WithGitPath sets a custom git executable path.
func WithGitPath(path string) GitOption {
	return func(g *gitVCS) {
		g.git = path
	}
}

// NewGitVCS creates a new git Source.
func NewGitVCS(opts ...GitOption) Source {
	g := &gitVCS{git: "git"}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// "git diff HEAD" rather than "git diff" or "git diff --cached": only the
// former collects staged and unstaged changes at once.
var diffArgs = []string{"diff", "HEAD", "--diff-algorithm=myers", "--no-renames"}

func (g *gitVCS) Head(ctx context.Context, dir string) ([]byte, error) {
	out, err := g.output(ctx, dir, "rev-parse", "--verify", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("rev-parse HEAD: %w", err)
	}
	return out, nil
}

func (g *gitVCS) Diff(ctx context.Context, dir string) ([]byte, error) {
	args := append(append([]string{}, diffArgs...), "--submodule=short")
	out, err := g.output(ctx, dir, args...)
	if err != nil {
		return nil, fmt.Errorf("diff HEAD: %w", err)
	}
	return out, nil
}

func (g *gitVCS) SubmoduleDiff(ctx context.Context, dir string) ([]byte, error) {
	args := append([]string{"submodule", "foreach", "--recursive", g.git}, diffArgs...)
	out, err := g.output(ctx, dir, args...)
	if err != nil {
		return nil, fmt.Errorf("submodule diff: %w", err)
	}
	return out, nil
}

func (g *gitVCS) output(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, g.git, args...)
	if dir != "" {
		cmd.Dir = dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s", msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
