// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patchline.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")

	configuration, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if configuration.PollInterval.Std() != 100*time.Millisecond {
		t.Errorf("default poll interval = %v, want 100ms", configuration.PollInterval.Std())
	}
	if configuration.Socket == "" {
		t.Error("default socket path is empty")
	}
	if configuration.Log.Level != "info" {
		t.Errorf("default log level = %q, want info", configuration.Log.Level)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
socket: /tmp/test-daemon.sock
poll_interval: 5ms
log:
  level: debug
`)

	configuration, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if configuration.Socket != "/tmp/test-daemon.sock" {
		t.Errorf("socket = %q", configuration.Socket)
	}
	if configuration.PollInterval.Std() != 5*time.Millisecond {
		t.Errorf("poll interval = %v, want 5ms", configuration.PollInterval.Std())
	}
	if configuration.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", configuration.Log.Level)
	}
	// Untouched fields keep their defaults.
	if configuration.CommandBuffer != 64 {
		t.Errorf("command buffer = %d, want default 64", configuration.CommandBuffer)
	}
}

func TestLoadEnvironmentVariable(t *testing.T) {
	path := writeConfig(t, "socket: /tmp/env-daemon.sock\n")
	t.Setenv(EnvConfigPath, path)

	configuration, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if configuration.Socket != "/tmp/env-daemon.sock" {
		t.Errorf("socket = %q, want value from env-named file", configuration.Socket)
	}
}

func TestLoadMissingNamedFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("Load of missing named file succeeded; want error")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name     string
		contents string
		fragment string
	}{
		{"negative interval", "poll_interval: -10ms\n", "poll_interval"},
		{"bad duration", "poll_interval: often\n", "parsing duration"},
		{"bad level", "log:\n  level: loud\n", "log level"},
		{"empty socket", "socket: \"\"\n", "socket"},
	}
	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, testCase.contents))
			if err == nil {
				t.Fatal("Load succeeded; want error")
			}
			if !strings.Contains(err.Error(), testCase.fragment) {
				t.Errorf("error %q does not mention %q", err, testCase.fragment)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	if level, err := ParseLevel(""); err != nil || level != slog.LevelInfo {
		t.Errorf("ParseLevel(\"\") = %v, %v; want info", level, err)
	}
	if level, err := ParseLevel("debug"); err != nil || level != slog.LevelDebug {
		t.Errorf("ParseLevel(debug) = %v, %v", level, err)
	}
	if _, err := ParseLevel("noisy"); err == nil {
		t.Error("ParseLevel(noisy) succeeded; want error")
	}
}
