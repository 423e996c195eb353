// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed describes the object graph the simulator advertises at startup.
type Seed struct {
	Nodes []SeedNode `yaml:"nodes"`
}

// SeedNode is one node with its named ports.
type SeedNode struct {
	Name    string   `yaml:"name"`
	Inputs  []string `yaml:"inputs"`
	Outputs []string `yaml:"outputs"`
}

// LoadSeed reads a seed topology from a YAML file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("daemon: reading seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("daemon: parsing seed file %s: %w", path, err)
	}
	if err := seed.validate(); err != nil {
		return nil, fmt.Errorf("daemon: seed file %s: %w", path, err)
	}
	return &seed, nil
}

func (s *Seed) validate() error {
	if len(s.Nodes) == 0 {
		return fmt.Errorf("no nodes defined")
	}
	seen := make(map[string]bool, len(s.Nodes))
	for _, node := range s.Nodes {
		if node.Name == "" {
			return fmt.Errorf("node with empty name")
		}
		if seen[node.Name] {
			return fmt.Errorf("duplicate node name %q", node.Name)
		}
		seen[node.Name] = true
		if len(node.Inputs)+len(node.Outputs) == 0 {
			return fmt.Errorf("node %q has no ports", node.Name)
		}
	}
	return nil
}

// DefaultSeed is the built-in demo graph: a stereo capture source and
// a stereo playback sink.
func DefaultSeed() *Seed {
	return &Seed{
		Nodes: []SeedNode{
			{
				Name:    "demo-capture",
				Outputs: []string{"capture_FL", "capture_FR"},
			},
			{
				Name:   "demo-playback",
				Inputs: []string{"playback_FL", "playback_FR"},
			},
		},
	}
}
