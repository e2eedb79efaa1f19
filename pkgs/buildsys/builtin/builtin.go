// Package builtin registers the build backends shipped with ws.
package builtin

import (
	"github.com/goplus/ws/pkgs/buildsys"
	"github.com/goplus/ws/pkgs/buildsys/autotools"
	"github.com/goplus/ws/pkgs/buildsys/cmake"
	"github.com/goplus/ws/pkgs/buildsys/meson"
	"github.com/goplus/ws/pkgs/buildsys/setuptools"
)

// Register adds every built-in backend to r.
func Register(r *buildsys.Registry, opts buildsys.Options) {
	r.Register(buildsys.CMake, cmake.New(opts))
	r.Register(buildsys.Meson, meson.New(opts))
	r.Register(buildsys.Setuptools, setuptools.New(opts))
	r.Register(buildsys.Autotools, autotools.New(opts))
}

// NewRegistry returns a registry holding the built-in backends.
func NewRegistry(opts buildsys.Options) *buildsys.Registry {
	r := buildsys.NewRegistry()
	Register(r, opts)
	return r
}
