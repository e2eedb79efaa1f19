// Package dryrun holds the process-wide dry-run switch.
//
// When enabled, components must not mutate anything on disk or run tools
// with real effects, but still return representative placeholder results so
// the whole control flow can be inspected.
package dryrun

import "sync/atomic"

var enabled atomic.Bool

// Enabled reports whether dry-run mode is active.
func Enabled() bool {
	return enabled.Load()
}

// Set turns dry-run mode on or off. It is meant to be called once at startup.
func Set(on bool) {
	enabled.Store(on)
}
