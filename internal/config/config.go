// Package config handles configuration file loading and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultCommandPrefix = "dms."
	DefaultMinLength     = 10
	DefaultInterval      = 8 * time.Second
	DefaultStartupDelay  = 1 * time.Second
	DefaultLogLevel      = "info"
	DefaultLogFile       = "last-run.log"
)

// Config represents the nowplaying configuration.
// It is loaded once at startup and treated as read-only afterwards.
type Config struct {
	Discord DiscordConfig `toml:"discord" yaml:"discord"`
	Watch   WatchConfig   `toml:"watch" yaml:"watch"`
	Log     LogConfig     `toml:"log" yaml:"log"`
}

// DiscordConfig holds the chat session settings.
type DiscordConfig struct {
	CommandPrefix string `toml:"command_prefix" yaml:"command_prefix"` // Prefix for chat commands, e.g. "dms.quit"
	Bot           bool   `toml:"bot" yaml:"bot"`                       // false = user account (self-bot)
	Token         string `toml:"token" yaml:"token"`
}

// WatchConfig holds the watched file settings.
type WatchConfig struct {
	Path         string   `toml:"path" yaml:"path"`
	MinLength    int      `toml:"min_length" yaml:"min_length"`       // Shorter content counts as "nothing playing"
	Interval     Duration `toml:"interval" yaml:"interval"`           // Time between polls
	StartupDelay Duration `toml:"startup_delay" yaml:"startup_delay"` // Wait after the session is ready
	Notify       bool     `toml:"notify" yaml:"notify"`               // Wake early on filesystem events
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"` // debug, info, warn, error, critical
	File  string `toml:"file" yaml:"file"`   // Truncated on each run, empty = stdout only
}

// DefaultConfig returns a Config with default values.
// Token and path have no sensible default and are left empty.
func DefaultConfig() *Config {
	return &Config{
		Discord: DiscordConfig{
			CommandPrefix: DefaultCommandPrefix,
			Bot:           true,
		},
		Watch: WatchConfig{
			MinLength:    DefaultMinLength,
			Interval:     Duration(DefaultInterval),
			StartupDelay: Duration(DefaultStartupDelay),
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
			File:  DefaultLogFile,
		},
	}
}

// Path returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func Path() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "nowplaying", "config.toml")
}

// Load reads configuration from the specified path on top of the defaults.
// If path is empty, uses the default config path. Files ending in .yaml or
// .yml are decoded as YAML, everything else as TOML.
//
// A missing file is reported as an error wrapping os.ErrNotExist so the
// caller can decide whether to scaffold one.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, &ValidationError{Field: "file", Reason: fmt.Sprintf("cannot parse %s: %v", path, err)}
	}

	return cfg, nil
}

// isYAML reports whether path is decoded as YAML rather than TOML.
func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// IsNotExist reports whether err means the config file is absent.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

// ValidationError describes a missing or invalid config field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// Validate checks that all required fields are set and in range.
// It returns the first problem found as a *ValidationError.
func (c *Config) Validate() error {
	switch {
	case c.Discord.CommandPrefix == "":
		return &ValidationError{Field: "discord.command_prefix", Reason: "no command prefix set"}
	case c.Discord.Token == "":
		return &ValidationError{Field: "discord.token", Reason: "no token set"}
	case c.Watch.Path == "":
		return &ValidationError{Field: "watch.path", Reason: "no path set"}
	case c.Watch.MinLength < 0:
		return &ValidationError{Field: "watch.min_length", Reason: "must not be negative"}
	case c.Watch.Interval <= 0:
		return &ValidationError{Field: "watch.interval", Reason: "must be positive"}
	case c.Watch.StartupDelay < 0:
		return &ValidationError{Field: "watch.startup_delay", Reason: "must not be negative"}
	}

	if !validLogLevel(c.Log.Level) {
		return &ValidationError{Field: "log.level", Reason: fmt.Sprintf("unknown level %q", c.Log.Level)}
	}

	return nil
}

func validLogLevel(level string) bool {
	switch strings.ToLower(level) {
	case "", "debug", "info", "warn", "warning", "error", "critical":
		return true
	}
	return false
}
