// Package config loads the optional .anycop.toml project file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the config file looked up in the inspected root.
const FileName = ".anycop.toml"

// DefaultMaxFileSize is the size above which files are skipped.
const DefaultMaxFileSize = 1_000_000 // 1 MB

// Config is the decoded project configuration.
type Config struct {
	Rule  RuleConfig  `toml:"rule"`
	Files FilesConfig `toml:"files"`
	Run   RunConfig   `toml:"run"`

	// Path is the file the config was read from, or "" for defaults.
	Path string `toml:"-"`
}

type RuleConfig struct {
	Enabled bool `toml:"enabled"`
}

type FilesConfig struct {
	// Exclude holds gitignore-style patterns relative to the root.
	Exclude     []string `toml:"exclude"`
	MaxFileSize int      `toml:"max_file_size"`
}

type RunConfig struct {
	// Jobs is the worker count; 0 means GOMAXPROCS.
	Jobs int `toml:"jobs"`
	// MaxIterations bounds autocorrect passes per file.
	MaxIterations int `toml:"max_iterations"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Rule:  RuleConfig{Enabled: true},
		Files: FilesConfig{MaxFileSize: DefaultMaxFileSize},
	}
}

// Load reads path, or root/.anycop.toml when path is empty. A missing
// default file yields Default(); a missing explicit path is an error.
func Load(root, path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(root, FileName)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

func (c Config) validate() error {
	if c.Files.MaxFileSize < 0 {
		return fmt.Errorf("files.max_file_size must not be negative")
	}
	if c.Run.Jobs < 0 {
		return fmt.Errorf("run.jobs must not be negative")
	}
	if c.Run.MaxIterations < 0 {
		return fmt.Errorf("run.max_iterations must not be negative")
	}
	for _, p := range c.Files.Exclude {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("files.exclude contains an empty pattern")
		}
	}
	return nil
}
