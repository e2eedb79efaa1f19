package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/goplus/ws/internal/checksum"
	"github.com/goplus/ws/internal/depgraph"
	"github.com/goplus/ws/internal/dryrun"
	"github.com/goplus/ws/internal/env"
	"github.com/goplus/ws/internal/manifest"
	"github.com/goplus/ws/internal/workspace"
	"github.com/goplus/ws/pkgs/buildsys"
)

const chainManifest = `
A:
  build: fake
  deps: []
B:
  build: fake
  deps: [A]
C:
  build: fake
  deps: B
  env:
    CFLAGS: -I${PREFIX}/include
D:
  build: fake
`

type fixture struct {
	b       *Builder
	src     *fakeSource
	backend *fakeBackend
	parent  string
}

func newFixture(t *testing.T, data string) *fixture {
	t.Helper()
	t.Setenv(env.HostTripletVar, "x86_64-linux-gnu")
	parent := t.TempDir()
	g, err := manifest.Decode([]byte(data), parent)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for _, name := range g.Names() {
		if err := os.MkdirAll(filepath.Join(parent, name), 0755); err != nil {
			t.Fatal(err)
		}
	}
	ws, err := workspace.Init(filepath.Join(parent, workspace.RootName), "", "debug")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	backend := newFakeBackend()
	reg := buildsys.NewRegistry()
	reg.Register("fake", backend)
	src := newFakeSource()
	return &fixture{
		b:       NewBuilder(ws, g, reg, src),
		src:     src,
		backend: backend,
		parent:  parent,
	}
}

func (f *fixture) stored(proj string) bool {
	_, ok := f.b.Store.Stored(proj)
	return ok
}

func built(results []Result) []string {
	var names []string
	for _, r := range results {
		if r.Built {
			names = append(names, r.Project)
		}
	}
	return names
}

func TestBuild(t *testing.T) {
	f := newFixture(t, chainManifest)
	ctx := context.Background()

	results, err := f.b.Build(ctx, "C")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := []Result{{"A", true}, {"B", true}, {"C", true}}
	if diff := cmp.Diff(want, results); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	wantOps := []string{
		"configure A", "build A",
		"configure B", "build B",
		"configure C", "build C",
	}
	if diff := cmp.Diff(wantOps, f.backend.ops); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}
	for _, p := range []string{"A", "B", "C"} {
		if !f.stored(p) {
			t.Errorf("no fingerprint stored for %s", p)
		}
		if target, err := os.Readlink(f.b.WS.SourceLink(p)); err != nil || target != filepath.Join(f.parent, p) {
			t.Errorf("source link of %s = %q, %v", p, target, err)
		}
	}
	if f.stored("D") {
		t.Errorf("D was not requested but has a fingerprint")
	}

	f.backend.reset()
	results, err = f.b.Build(ctx, "C")
	if err != nil {
		t.Fatal(err)
	}
	if got := built(results); len(got) != 0 {
		t.Errorf("second build rebuilt %v", got)
	}
	if len(f.backend.ops) != 0 {
		t.Errorf("second build ran %v", f.backend.ops)
	}
}

func TestBuildAll(t *testing.T) {
	f := newFixture(t, chainManifest)
	results, err := f.b.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"A", "B", "C", "D"}, built(results)); diff != "" {
		t.Errorf("built mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildPropagatesChanges(t *testing.T) {
	tests := []struct {
		name    string
		changed string
		want    []string
	}{
		{"upstream", "A", []string{"A", "B", "C"}},
		{"middle", "B", []string{"B", "C"}},
		{"leaf", "C", []string{"C"}},
		{"unrelated", "D", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, chainManifest)
			ctx := context.Background()
			if _, err := f.b.Build(ctx, "C"); err != nil {
				t.Fatal(err)
			}
			f.src.set(filepath.Join(f.parent, tt.changed), "rev1")

			results, err := f.b.Build(ctx, "C")
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, built(results)); diff != "" {
				t.Errorf("built mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildFailure(t *testing.T) {
	f := newFixture(t, chainManifest)
	ctx := context.Background()
	if _, err := f.b.Build(ctx, "C"); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	f.backend.fail["build B"] = boom
	f.backend.reset()
	f.src.set(filepath.Join(f.parent, "B"), "rev1")

	results, err := f.b.Build(ctx, "C")
	if !errors.Is(err, boom) {
		t.Fatalf("Build error = %v, want %v", err, boom)
	}
	var be *Error
	if !errors.As(err, &be) || be.Project != "B" || be.Op != "build" {
		t.Errorf("Build error = %#v, want build failure of B", err)
	}
	if diff := cmp.Diff([]Result{{"A", false}}, results); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"configure B", "build B"}, f.backend.ops); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}
	if !f.stored("A") {
		t.Errorf("fingerprint of A lost")
	}
	for _, p := range []string{"B", "C"} {
		if f.stored(p) {
			t.Errorf("fingerprint of %s survived a failed build of B", p)
		}
	}

	// Once fixed, the next run picks up where the failed one stopped.
	delete(f.backend.fail, "build B")
	results, err = f.b.Build(ctx, "C")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"B", "C"}, built(results)); diff != "" {
		t.Errorf("built mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildEnv(t *testing.T) {
	f := newFixture(t, chainManifest)
	if _, err := f.b.Build(context.Background(), "C"); err != nil {
		t.Fatal(err)
	}
	got := f.backend.envs["C"]
	want := "-I" + f.b.WS.InstallDir("C") + "/include"
	if !strings.HasSuffix(got["CFLAGS"], want) {
		t.Errorf("CFLAGS = %q, want suffix %q", got["CFLAGS"], want)
	}
	libA, err := env.LibDir(f.b.WS, "A")
	if err != nil {
		t.Fatal(err)
	}
	envC, err := f.b.Env("C")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(envC, got); diff != "" {
		t.Errorf("backend env differs from Env (-want +got):\n%s", diff)
	}
	if ld := got[env.LDLibraryPath]; !containsEntry(ld, libA) {
		t.Errorf("%s = %q, missing %s", env.LDLibraryPath, ld, libA)
	}
}

func containsEntry(list, entry string) bool {
	for _, e := range filepath.SplitList(list) {
		if e == entry {
			return true
		}
	}
	return false
}

func TestBuildErrors(t *testing.T) {
	f := newFixture(t, chainManifest+"E:\n  build: bazel\n")
	ctx := context.Background()

	if _, err := f.b.Build(ctx, "nope"); err == nil {
		t.Errorf("Build of an unknown project succeeded")
	}
	if len(f.backend.ops) != 0 {
		t.Errorf("unknown project ran %v", f.backend.ops)
	}

	_, err := f.b.Build(ctx, "E")
	var ue *buildsys.UnknownBackendError
	if !errors.As(err, &ue) || ue.Project != "E" || ue.Tag != "bazel" {
		t.Errorf("Build(E) error = %v, want UnknownBackendError", err)
	}

	if err := os.RemoveAll(filepath.Join(f.parent, "D")); err != nil {
		t.Fatal(err)
	}
	_, err = f.b.Build(ctx, "D")
	var se *checksum.SourceError
	if !errors.As(err, &se) {
		t.Errorf("Build of a project without sources: %v", err)
	}
}

func TestCycleRejected(t *testing.T) {
	_, err := manifest.Decode([]byte("A:\n  build: fake\n  deps: [B]\nB:\n  build: fake\n  deps: [A]\n"), t.TempDir())
	var ce *depgraph.CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("Decode error = %v, want CycleError", err)
	}
}

func TestCleanForce(t *testing.T) {
	f := newFixture(t, "A:\n  build: fake\n  deps: []\nB:\n  build: fake\n  deps: [A]\n")
	ctx := context.Background()
	ws := f.b.WS
	if _, err := f.b.Build(ctx); err != nil {
		t.Fatal(err)
	}
	if err := ws.UpdateConfig(&workspace.Config{Type: "debug", Taint: true}); err != nil {
		t.Fatal(err)
	}

	f.backend.reset()
	if err := f.b.Clean(ctx, true, "B"); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if len(f.backend.ops) != 0 {
		t.Errorf("force clean called the backend: %v", f.backend.ops)
	}
	if buildsys.Exists(ws.BuildDir("B")) {
		t.Errorf("build dir of B still exists")
	}
	if !buildsys.Exists(ws.BuildDir("A")) {
		t.Errorf("build dir of A was removed")
	}
	if f.stored("B") {
		t.Errorf("fingerprint of B survived")
	}
	if !f.stored("A") {
		t.Errorf("fingerprint of A was removed")
	}
	cfg, err := ws.LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Taint {
		t.Errorf("taint not cleared")
	}

	// Cleaning again is harmless.
	if err := f.b.Clean(ctx, true, "B"); err != nil {
		t.Errorf("second Clean: %v", err)
	}
}

func TestCleanForceKeepsConfig(t *testing.T) {
	f := newFixture(t, chainManifest)
	ws := f.b.WS
	data := "type: release\ntaint: true\ncmake_generator: Ninja\nextra: keepme\n"
	if err := os.WriteFile(ws.ConfigPath(), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	if err := f.b.Clean(context.Background(), true, "B"); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	cfg, err := ws.LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Taint {
		t.Errorf("taint not cleared")
	}
	if cfg.Type != "release" || cfg.CMakeGenerator != "Ninja" {
		t.Errorf("config = %+v, want release with Ninja generator", cfg)
	}
	if got := cfg.Extra["extra"]; got != "keepme" {
		t.Errorf("extra = %v, want keepme", got)
	}
}

func TestCleanForceDryRunWithoutConfig(t *testing.T) {
	f := newFixture(t, chainManifest)
	if err := os.Remove(f.b.WS.ConfigPath()); err != nil {
		t.Fatal(err)
	}
	dryrun.Set(true)
	defer dryrun.Set(false)

	if err := f.b.Clean(context.Background(), true, "A"); err != nil {
		t.Errorf("dry-run force clean: %v", err)
	}
	if _, err := os.Stat(f.b.WS.ConfigPath()); !os.IsNotExist(err) {
		t.Errorf("dry run wrote a config: %v", err)
	}
}

func TestCleanPolite(t *testing.T) {
	f := newFixture(t, chainManifest)
	ctx := context.Background()
	if _, err := f.b.Build(ctx, "B"); err != nil {
		t.Fatal(err)
	}

	f.backend.reset()
	if err := f.b.Clean(ctx, false); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	// C and D were never built, so they have no build directory.
	if diff := cmp.Diff([]string{"clean A", "clean B"}, f.backend.ops); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}
	for _, p := range []string{"A", "B"} {
		if f.stored(p) {
			t.Errorf("fingerprint of %s survived", p)
		}
		if !buildsys.Exists(f.b.WS.BuildDir(p)) {
			t.Errorf("polite clean removed the build dir of %s", p)
		}
	}

	if err := f.b.Clean(ctx, false, "nope"); err == nil {
		t.Errorf("Clean of an unknown project succeeded")
	}
}

func TestStale(t *testing.T) {
	f := newFixture(t, chainManifest)
	ctx := context.Background()
	if stale, err := f.b.Stale(ctx, "A"); err != nil || !stale {
		t.Errorf("Stale(A) before build = %v, %v", stale, err)
	}
	if _, err := f.b.Build(ctx, "A"); err != nil {
		t.Fatal(err)
	}
	if stale, err := f.b.Stale(ctx, "A"); err != nil || stale {
		t.Errorf("Stale(A) after build = %v, %v", stale, err)
	}
	f.src.set(filepath.Join(f.parent, "A"), "rev1")
	if stale, err := f.b.Stale(ctx, "A"); err != nil || !stale {
		t.Errorf("Stale(A) after change = %v, %v", stale, err)
	}
	if _, err := f.b.Stale(ctx, "nope"); err == nil {
		t.Errorf("Stale of an unknown project succeeded")
	}
}

func TestDryRun(t *testing.T) {
	f := newFixture(t, chainManifest)
	ctx := context.Background()
	if _, err := f.b.Build(ctx, "A"); err != nil {
		t.Fatal(err)
	}

	dryrun.Set(true)
	defer dryrun.Set(false)

	f.backend.reset()
	results, err := f.b.Build(ctx, "B")
	if err != nil {
		t.Fatal(err)
	}
	// Everything looks stale in dry-run mode.
	if diff := cmp.Diff([]string{"A", "B"}, built(results)); diff != "" {
		t.Errorf("built mismatch (-want +got):\n%s", diff)
	}
	if err := f.b.Clean(ctx, true, "A"); err != nil {
		t.Fatal(err)
	}

	dryrun.Set(false)
	if !f.stored("A") {
		t.Errorf("dry run removed the fingerprint of A")
	}
	if f.stored("B") {
		t.Errorf("dry run stored a fingerprint for B")
	}
	if _, err := os.Lstat(f.b.WS.SourceLink("B")); err == nil {
		t.Errorf("dry run created the source link of B")
	}
	if !buildsys.Exists(f.b.WS.BuildDir("A")) {
		t.Errorf("dry run removed the build dir of A")
	}
}
