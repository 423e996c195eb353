// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath is the environment variable naming the config file.
const EnvConfigPath = "PATCHLINE_CONFIG"

// Duration wraps time.Duration so YAML files can use human-readable
// forms like "100ms" or "2s" (yaml.v3 has no native duration support).
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the configuration shared by the Patchline binaries.
type Config struct {
	// Socket is the Unix socket path of the routing daemon.
	// Default: $XDG_RUNTIME_DIR/patchline.sock, falling back to
	// /tmp/patchline-<uid>.sock when XDG_RUNTIME_DIR is unset.
	Socket string `yaml:"socket"`

	// PollInterval is the period of the bridge's command-drain timer.
	// The poll bounds command latency only; daemon notifications wake
	// the loop on their own.
	PollInterval Duration `yaml:"poll_interval"`

	// CommandBuffer is the capacity of the UI-to-bridge command queue.
	CommandBuffer int `yaml:"command_buffer"`

	// NotificationBuffer is the capacity of the bridge-to-UI
	// notification queue.
	NotificationBuffer int `yaml:"notification_buffer"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log"`
}

// LogConfig configures slog output.
type LogConfig struct {
	// Level is "debug", "info", "warn", or "error". Default "info".
	Level string `yaml:"level"`

	// Output is a file path for log records. Empty means stderr.
	// The TUI binary always logs to a file when logging is enabled,
	// since stderr belongs to the terminal renderer.
	Output string `yaml:"output"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Socket:             DefaultSocketPath(),
		PollInterval:       Duration(100 * time.Millisecond),
		CommandBuffer:      64,
		NotificationBuffer: 256,
		Log:                LogConfig{Level: "info"},
	}
}

// DefaultSocketPath returns the conventional daemon socket path.
func DefaultSocketPath() string {
	if runtimeDirectory := os.Getenv("XDG_RUNTIME_DIR"); runtimeDirectory != "" {
		return filepath.Join(runtimeDirectory, "patchline.sock")
	}
	return fmt.Sprintf("/tmp/patchline-%d.sock", os.Getuid())
}

// Load reads configuration from path. An empty path consults
// PATCHLINE_CONFIG; if that is also empty, defaults are returned. A
// named file that does not exist or does not parse is an error; a
// requested configuration is never silently replaced by defaults.
func Load(path string) (Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	configuration := Default()
	if path == "" {
		return configuration, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &configuration); err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := configuration.validate(); err != nil {
		return Config{}, fmt.Errorf("config file %s: %w", path, err)
	}
	return configuration, nil
}

func (c *Config) validate() error {
	if c.Socket == "" {
		return fmt.Errorf("socket must not be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", c.PollInterval.Std())
	}
	if c.CommandBuffer <= 0 {
		return fmt.Errorf("command_buffer must be positive, got %d", c.CommandBuffer)
	}
	if c.NotificationBuffer <= 0 {
		return fmt.Errorf("notification_buffer must be positive, got %d", c.NotificationBuffer)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a level name to its slog.Level. Empty input means
// Info. Kept here so the binaries share one mapping.
func ParseLevel(name string) (slog.Level, error) {
	switch name {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("log level %q is not one of debug, info, warn, error", name)
}
