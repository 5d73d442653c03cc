// Package config loads the orchestrator configuration file.
//
// Everything in the file is optional; unset fields fall back to
// defaults relative to the current directory. Precedence across the
// whole tool is flags > environment > config file > defaults.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where Load looks when no --config flag is given.
const DefaultPath = ".nbtest.yaml"

// Config holds the orchestrator settings.
type Config struct {
	// TestsFile is the Nix entry point exposing the scenarios.
	TestsFile string `yaml:"testsFile"`

	// ContainerScript is the external container-creation script the
	// container command delegates to.
	ContainerScript string `yaml:"containerScript"`

	// HistoryDB is the run-history database path. Empty disables
	// history recording.
	HistoryDB string `yaml:"historyDB"`

	// ScenariosDir holds extra CUE scenario definitions. Empty means
	// only built-in scenarios are known.
	ScenariosDir string `yaml:"scenariosDir"`

	// OutLinkPrefix is the default result symlink prefix, overridden
	// by --out-link-prefix.
	OutLinkPrefix string `yaml:"outLinkPrefix"`

	// NumCPUs and MemoryMiB override the resolved resource limits
	// when non-zero. Environment variables still win over these.
	NumCPUs   int `yaml:"numCPUs"`
	MemoryMiB int `yaml:"memoryMiB"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		TestsFile:       "./test/tests.nix",
		ContainerScript: "./test/container.sh",
	}
}

// Load reads the config file at path. A missing file at the default
// path is not an error; a missing file at an explicitly given path is.
func Load(path string, explicit bool) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if explicit {
			return Config{}, fmt.Errorf("config file not found: %s", path)
		}
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}

	// Strict decoding catches typos like "testFile:" immediately.
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := validate(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.TestsFile == "" {
		return fmt.Errorf("testsFile must not be empty")
	}
	if cfg.NumCPUs < 0 {
		return fmt.Errorf("numCPUs must not be negative")
	}
	if cfg.MemoryMiB < 0 {
		return fmt.Errorf("memoryMiB must not be negative")
	}
	return nil
}
