// Package config loads the ambient workspace configuration.
//
// Configuration lives in .tkt/config.yml under the workspace root. A
// missing file yields defaults; the tool never requires configuration to
// run.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/tkt-dev/tkt/internal/tkterr"
)

// WorkDirName is the per-workspace state directory.
const WorkDirName = ".tkt"

// Default file names inside the workspace directory.
const (
	DefaultLogName   = "tickets.jsonl"
	DefaultCacheName = "cache.db"
	configName       = "config.yml"
)

// Limits bounds every collection-returning operation. Exceeding a limit is
// a reportable OVERFLOW error, not a silent truncation; this bounds
// worst-case latency and memory deterministically.
type Limits struct {
	MaxResults int `yaml:"max_results"`
	MaxDeps    int `yaml:"max_deps"`
	MaxLabels  int `yaml:"max_labels"`
}

// DefaultLimits are applied where the config file is absent or partial.
var DefaultLimits = Limits{
	MaxResults: 500,
	MaxDeps:    64,
	MaxLabels:  32,
}

// Config is the workspace configuration.
type Config struct {
	Actor  string `yaml:"actor"`
	Log    string `yaml:"log"` // log filename, relative to .tkt/
	Limits Limits `yaml:"limits"`
}

// Load reads .tkt/config.yml under dir, filling defaults for anything
// unset. A missing file is not an error.
func Load(dir string) (Config, error) {
	cfg := Config{
		Actor:  os.Getenv("USER"),
		Log:    DefaultLogName,
		Limits: DefaultLimits,
	}

	data, err := os.ReadFile(filepath.Join(dir, WorkDirName, configName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, tkterr.Wrap(tkterr.CodeStorage, err, "read config")
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, tkterr.Wrap(tkterr.CodeInvalidArg, err, "parse config")
	}

	if file.Actor != "" {
		cfg.Actor = file.Actor
	}
	if file.Log != "" {
		cfg.Log = file.Log
	}
	if file.Limits.MaxResults > 0 {
		cfg.Limits.MaxResults = file.Limits.MaxResults
	}
	if file.Limits.MaxDeps > 0 {
		cfg.Limits.MaxDeps = file.Limits.MaxDeps
	}
	if file.Limits.MaxLabels > 0 {
		cfg.Limits.MaxLabels = file.Limits.MaxLabels
	}
	return cfg, nil
}

// LogPath returns the absolute event log path for a workspace.
func (c Config) LogPath(dir string) string {
	return filepath.Join(dir, WorkDirName, c.Log)
}

// CachePath returns the absolute cache database path for a workspace.
func (c Config) CachePath(dir string) string {
	return filepath.Join(dir, WorkDirName, DefaultCacheName)
}
