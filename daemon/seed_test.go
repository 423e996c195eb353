// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	content := `
nodes:
  - name: mixer
    inputs: [in_L, in_R]
    outputs: [out_L, out_R]
  - name: mic
    outputs: [capture]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing seed file: %v", err)
	}

	seed, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	if len(seed.Nodes) != 2 {
		t.Fatalf("loaded %d nodes, want 2", len(seed.Nodes))
	}
	if seed.Nodes[0].Name != "mixer" || len(seed.Nodes[0].Inputs) != 2 {
		t.Fatalf("first node = %+v", seed.Nodes[0])
	}
}

func TestLoadSeedMissingFile(t *testing.T) {
	if _, err := LoadSeed(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("LoadSeed succeeded on a missing file")
	}
}

func TestLoadSeedRejectsInvalidTopology(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte("nodes: []\n"), 0o644); err != nil {
		t.Fatalf("writing seed file: %v", err)
	}
	if _, err := LoadSeed(path); err == nil {
		t.Fatal("LoadSeed accepted an empty topology")
	}
}

func TestDefaultSeedIsValid(t *testing.T) {
	if err := DefaultSeed().validate(); err != nil {
		t.Fatalf("default seed invalid: %v", err)
	}
}
