package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Scaffold is the commented TOML config written on first run.
//
//go:embed default.toml
var Scaffold []byte

// ScaffoldYAML is the same config for .yaml and .yml paths.
//
//go:embed default.yaml
var ScaffoldYAML []byte

// ScaffoldFor returns the scaffold matching the format Load uses for path.
func ScaffoldFor(path string) []byte {
	if isYAML(path) {
		return ScaffoldYAML
	}
	return Scaffold
}

// ErrScaffolded is returned when a fresh config was written and the user
// has to fill it in before the daemon can start.
var ErrScaffolded = errors.New("config created, please set config")

// WriteScaffold writes the default config to path, in YAML or TOML
// depending on its extension.
// Creates parent directories if needed. An existing file is only
// replaced when force is set.
func WriteScaffold(path string, force bool) error {
	if path == "" {
		path = Path()
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	// The file will hold a token.
	return os.WriteFile(path, ScaffoldFor(path), 0600)
}
