package workspace

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/goplus/ws/internal/dryrun"
	"gopkg.in/yaml.v3"
)

// BuildTypes lists the accepted values of Config.Type.
var BuildTypes = []string{"debug", "release"}

// ErrNoConfig is returned when the workspace config cannot be read.
var ErrNoConfig = errors.New("workspace config not found")

// Config is the persistent state of a workspace.
type Config struct {
	// Type is the build type passed to backends, one of BuildTypes.
	Type string `yaml:"type"`
	// Taint marks a workspace whose build trees may be inconsistent. Force
	// cleaning always resets it.
	Taint bool `yaml:"taint"`

	// Backend tuning, all optional.
	Jobs           int               `yaml:"jobs,omitempty"`
	Python         string            `yaml:"python,omitempty"`
	CMakeGenerator string            `yaml:"cmake_generator,omitempty"`
	CMakeDefines   map[string]string `yaml:"cmake_defines,omitempty"`
	MesonOptions   map[string]string `yaml:"meson_options,omitempty"`
	ConfigureArgs  []string          `yaml:"configure_args,omitempty"`

	// Extra keeps keys ws does not know about, so rewriting the config
	// never loses them.
	Extra map[string]any `yaml:",inline"`
}

func validBuildType(t string) error {
	if !slices.Contains(BuildTypes, t) {
		return fmt.Errorf("invalid build type %q, must be one of %v", t, BuildTypes)
	}
	return nil
}

// LoadConfig reads the workspace config.
func (ws *Workspace) LoadConfig() (*Config, error) {
	data, err := os.ReadFile(ws.ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoConfig, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ws.ConfigPath(), err)
	}
	if err := validBuildType(cfg.Type); err != nil {
		return nil, fmt.Errorf("%s: %w", ws.ConfigPath(), err)
	}
	return &cfg, nil
}

// UpdateConfig atomically replaces the workspace config: the new content is
// written to a temporary file on the same filesystem, synced to disk, then
// renamed over the live file. Readers see either the old or the new config,
// even across a crash.
func (ws *Workspace) UpdateConfig(cfg *Config) error {
	if dryrun.Enabled() {
		return nil
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	path := ws.ConfigPath()
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := datasync(f); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
